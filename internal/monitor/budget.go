package monitor

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"
)

const (
	// DefaultWarnWatches is the watched-directory count that triggers a warning.
	DefaultWarnWatches = 512
	// DefaultWarnFDs is the open file descriptor count that triggers a warning.
	DefaultWarnFDs = 500
	// DefaultCheckInterval rate-limits budget checks.
	DefaultCheckInterval = 10 * time.Second
)

// Budget sets the thresholds above which a Monitor logs warnings. Watches
// consume inotify watch descriptors on Linux and one FD each on kqueue
// systems, so both are tracked.
type Budget struct {
	WarnWatches   int
	WarnFDs       int
	CheckInterval time.Duration
}

type budget struct {
	Budget
	logger  *slog.Logger
	fdCount func() int

	mu        sync.Mutex
	lastCheck time.Time
}

func newBudget(b Budget, logger *slog.Logger) *budget {
	if b.WarnWatches <= 0 {
		b.WarnWatches = DefaultWarnWatches
	}
	if b.WarnFDs <= 0 {
		b.WarnFDs = DefaultWarnFDs
	}
	if b.CheckInterval <= 0 {
		b.CheckInterval = DefaultCheckInterval
	}
	return &budget{Budget: b, logger: logger, fdCount: FDCount}
}

// check logs when either threshold is exceeded. Returns whether it warned.
func (b *budget) check(watches int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.lastCheck.IsZero() && time.Since(b.lastCheck) < b.CheckInterval {
		return false
	}
	b.lastCheck = time.Now()

	warned := false
	if watches >= b.WarnWatches {
		b.logger.Warn("monitor: many watched directories", "count", watches, "threshold", b.WarnWatches)
		warned = true
	}
	if fds := b.fdCount(); fds >= b.WarnFDs {
		b.logger.Warn("monitor: high FD count", "count", fds, "threshold", b.WarnFDs)
		warned = true
	}
	return warned
}

// FDCount returns the number of open file descriptors of this process, or -1
// where that cannot be determined.
func FDCount() int {
	var fdDir string
	switch runtime.GOOS {
	case "darwin":
		fdDir = "/dev/fd"
	case "linux":
		fdDir = fmt.Sprintf("/proc/%d/fd", os.Getpid())
	default:
		return -1
	}

	entries, err := os.ReadDir(fdDir)
	if err != nil {
		return -1
	}
	return len(entries)
}
