package browser

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// keyMap holds the browser's bindings. Action names are the keys accepted
// in the keymap overrides of the config file.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Expand   key.Binding
	Collapse key.Binding
	Copy     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "page down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		Expand: key.NewBinding(
			key.WithKeys("l", "right", "enter"),
			key.WithHelp("l", "expand"),
		),
		Collapse: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h", "collapse"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy path"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// byAction maps override names to bindings.
func (k *keyMap) byAction() map[string]*key.Binding {
	return map[string]*key.Binding{
		"up":       &k.Up,
		"down":     &k.Down,
		"pageUp":   &k.PageUp,
		"pageDown": &k.PageDown,
		"top":      &k.Top,
		"bottom":   &k.Bottom,
		"expand":   &k.Expand,
		"collapse": &k.Collapse,
		"copy":     &k.Copy,
		"quit":     &k.Quit,
	}
}

// applyOverrides rebinds actions to comma-separated key lists, e.g.
// {"copy": "c,Y"}. Unknown actions and empty lists are ignored.
func (k *keyMap) applyOverrides(overrides map[string]string) {
	actions := k.byAction()
	for action, spec := range overrides {
		b, ok := actions[action]
		if !ok {
			continue
		}
		var keys []string
		for _, s := range strings.Split(spec, ",") {
			if s = strings.TrimSpace(s); s != "" {
				keys = append(keys, s)
			}
		}
		if len(keys) == 0 {
			continue
		}
		b.SetKeys(keys...)
		b.SetHelp(keys[0], b.Help().Desc)
	}
}

// shortHelp lists the bindings shown in the footer.
func (k keyMap) shortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.Expand, k.Collapse, k.Copy, k.Quit}
}
