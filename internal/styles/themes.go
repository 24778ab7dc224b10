package styles

import (
	"regexp"
	"sort"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// themeMu protects access to themeRegistry and currentTheme
var themeMu sync.RWMutex

// hexColorRegex validates hex color codes (#RRGGBB or #RRGGBBAA with alpha)
var hexColorRegex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}([0-9A-Fa-f]{2})?$`)

// ColorPalette holds all theme colors
type ColorPalette struct {
	Primary string `json:"primary"`
	Accent  string `json:"accent"`
	Success string `json:"success"`
	Error   string `json:"error"`

	TextPrimary   string `json:"textPrimary"`
	TextMuted     string `json:"textMuted"`
	TextSubtle    string `json:"textSubtle"`
	TextSelection string `json:"textSelection"` // text on selection backgrounds (BgTertiary)
	TextInverse   string `json:"textInverse"`

	BgTertiary string `json:"bgTertiary"`
}

// Theme represents a complete theme configuration
type Theme struct {
	Name        string       `json:"name"`
	DisplayName string       `json:"displayName"`
	Colors      ColorPalette `json:"colors"`
}

// Built-in themes
var (
	DefaultTheme = Theme{
		Name:        "default",
		DisplayName: "Default Dark",
		Colors: ColorPalette{
			Primary: "#7C3AED", // Purple
			Accent:  "#F59E0B", // Amber
			Success: "#10B981", // Green
			Error:   "#EF4444", // Red

			TextPrimary:   "#F9FAFB",
			TextMuted:     "#6B7280",
			TextSubtle:    "#4B5563",
			TextSelection: "#F9FAFB",
			TextInverse:   "#000000",

			BgTertiary: "#374151",
		},
	}

	DraculaTheme = Theme{
		Name:        "dracula",
		DisplayName: "Dracula",
		Colors: ColorPalette{
			Primary: "#BD93F9", // Purple
			Accent:  "#FFB86C", // Orange
			Success: "#50FA7B", // Green
			Error:   "#FF5555", // Red

			TextPrimary:   "#F8F8F2", // Foreground
			TextMuted:     "#6272A4", // Comment
			TextSubtle:    "#44475A", // Current Line
			TextSelection: "#F8F8F2",
			TextInverse:   "#282A36",

			BgTertiary: "#44475A",
		},
	}

	NordTheme = Theme{
		Name:        "nord",
		DisplayName: "Nord",
		Colors: ColorPalette{
			Primary: "#88C0D0", // Frost Cyan
			Accent:  "#EBCB8B", // Aurora Yellow
			Success: "#A3BE8C", // Aurora Green
			Error:   "#BF616A", // Aurora Red

			TextPrimary:   "#D8DEE9", // Snow Storm 1
			TextMuted:     "#4C566A", // Polar Night 4
			TextSubtle:    "#434C5E", // Polar Night 3
			TextSelection: "#D8DEE9",
			TextInverse:   "#2E3440",

			BgTertiary: "#434C5E",
		},
	}
)

// themeRegistry holds all available themes
var themeRegistry = map[string]Theme{
	"default": DefaultTheme,
	"dracula": DraculaTheme,
	"nord":    NordTheme,
}

var currentTheme = "default"

// Colors of the active theme.
var (
	Primary       lipgloss.Color
	Accent        lipgloss.Color
	Success       lipgloss.Color
	Error         lipgloss.Color
	TextPrimary   lipgloss.Color
	TextMuted     lipgloss.Color
	TextSubtle    lipgloss.Color
	TextSelection lipgloss.Color
	TextInverse   lipgloss.Color
	BgTertiary    lipgloss.Color
)

// Styles built from the active theme.
var (
	Title            lipgloss.Style
	Muted            lipgloss.Style
	Subtle           lipgloss.Style
	KeyHint          lipgloss.Style
	DirIcon          lipgloss.Style
	ListItemNormal   lipgloss.Style
	ListItemSelected lipgloss.Style
	ToastSuccess     lipgloss.Style
	ToastError       lipgloss.Style
)

func init() {
	ApplyThemeColors(DefaultTheme)
}

// IsValidHexColor checks if a string is a valid hex color code (#RRGGBB or #RRGGBBAA)
func IsValidHexColor(hex string) bool {
	return hexColorRegex.MatchString(hex)
}

// IsValidTheme checks if a theme name exists in the registry
func IsValidTheme(name string) bool {
	themeMu.RLock()
	defer themeMu.RUnlock()
	_, ok := themeRegistry[name]
	return ok
}

// GetTheme returns a theme by name, or the default theme if not found
func GetTheme(name string) Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	if theme, ok := themeRegistry[name]; ok {
		return theme
	}
	return DefaultTheme
}

// GetCurrentThemeName returns the name of the currently active theme
func GetCurrentThemeName() string {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTheme
}

// ListThemes returns the names of all available themes in sorted order
func ListThemes() []string {
	themeMu.RLock()
	defer themeMu.RUnlock()
	names := make([]string, 0, len(themeRegistry))
	for name := range themeRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyTheme applies a theme by name, with optional color overrides keyed by
// palette JSON name. Invalid override colors are ignored.
func ApplyTheme(name string, overrides map[string]string) {
	theme := GetTheme(name)
	for key, value := range overrides {
		applySingleOverride(&theme.Colors, key, value)
	}
	ApplyThemeColors(theme)

	themeMu.Lock()
	currentTheme = theme.Name
	themeMu.Unlock()
}

func applySingleOverride(palette *ColorPalette, key, value string) {
	if !IsValidHexColor(value) {
		return
	}
	switch key {
	case "primary":
		palette.Primary = value
	case "accent":
		palette.Accent = value
	case "success":
		palette.Success = value
	case "error":
		palette.Error = value
	case "textPrimary":
		palette.TextPrimary = value
	case "textMuted":
		palette.TextMuted = value
	case "textSubtle":
		palette.TextSubtle = value
	case "textSelection":
		palette.TextSelection = value
	case "textInverse":
		palette.TextInverse = value
	case "bgTertiary":
		palette.BgTertiary = value
	}
}

// ApplyThemeColors sets the color variables from theme and rebuilds styles.
func ApplyThemeColors(theme Theme) {
	c := theme.Colors
	Primary = lipgloss.Color(c.Primary)
	Accent = lipgloss.Color(c.Accent)
	Success = lipgloss.Color(c.Success)
	Error = lipgloss.Color(c.Error)
	TextPrimary = lipgloss.Color(c.TextPrimary)
	TextMuted = lipgloss.Color(c.TextMuted)
	TextSubtle = lipgloss.Color(c.TextSubtle)
	TextSelection = lipgloss.Color(c.TextSelection)
	TextInverse = lipgloss.Color(c.TextInverse)
	BgTertiary = lipgloss.Color(c.BgTertiary)

	rebuildStyles()
}

// rebuildStyles recreates all lipgloss styles with current colors
func rebuildStyles() {
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Muted = lipgloss.NewStyle().
		Foreground(TextMuted)

	Subtle = lipgloss.NewStyle().
		Foreground(TextSubtle)

	KeyHint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Background(BgTertiary).
		Padding(0, 1)

	DirIcon = lipgloss.NewStyle().
		Foreground(Accent)

	ListItemNormal = lipgloss.NewStyle().
		Foreground(TextPrimary)

	ListItemSelected = lipgloss.NewStyle().
		Foreground(TextSelection).
		Background(BgTertiary).
		Bold(true)

	ToastSuccess = lipgloss.NewStyle().
		Background(Success).
		Foreground(TextInverse).
		Bold(true).
		Padding(0, 1)

	ToastError = lipgloss.NewStyle().
		Background(Error).
		Foreground(TextInverse).
		Bold(true).
		Padding(0, 1)
}
