// Package cliutil provides the terminal progress reporting and
// cancellation plumbing shared by the five sbxfs command-line binaries.
package cliutil

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sbxfs/sbxfs/internal/util"
)

// Reporter drives a single overwritten progress line on stderr and tracks
// whether the operation should be cancelled (e.g. on SIGINT).
type Reporter struct {
	mu        sync.Mutex
	status    string
	progress  float32
	quiet     bool
	cancelled atomic.Bool
	lastLine  int
	start     time.Time
}

// NewReporter creates a reporter. If quiet is true, progress and success
// lines are suppressed and only error lines print.
func NewReporter(quiet bool) *Reporter {
	return &Reporter{quiet: quiet}
}

// Progress is a container.ProgressFunc-shaped callback that updates and
// redraws the progress line.
func (r *Reporter) Progress(done, total int64) {
	r.mu.Lock()
	if r.start.IsZero() {
		r.start = time.Now()
	}
	progress, speed, eta := util.Statify(done, total, r.start)
	r.progress = progress
	r.status = fmt.Sprintf("%s/%s %.2f MiB/s (ETA %s)", util.Sizeify(done), util.Sizeify(total), speed, eta)
	r.mu.Unlock()
	r.update()
}

// Cancel is a container.CancelFunc-shaped callback: it reports whether
// RequestCancel has been called.
func (r *Reporter) Cancel() bool {
	return r.cancelled.Load()
}

// RequestCancel marks the operation cancelled, e.g. from a signal handler.
func (r *Reporter) RequestCancel() {
	r.cancelled.Store(true)
}

func (r *Reporter) update() {
	if r.quiet {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	barWidth := 30
	filled := min(int(r.progress*float32(barWidth)), barWidth)
	bar := strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)
	line := fmt.Sprintf("\r[%s] %s", bar, r.status)
	if len(line) < r.lastLine {
		line += strings.Repeat(" ", r.lastLine-len(line))
	}
	r.lastLine = len(line)
	fmt.Fprint(os.Stderr, line)
}

// Finish ends the progress line with a newline.
func (r *Reporter) Finish() {
	if !r.quiet {
		fmt.Fprintln(os.Stderr)
	}
}

// PrintError prints an error message, first moving past any in-progress line.
func (r *Reporter) PrintError(format string, args ...any) {
	if !r.quiet && r.lastLine > 0 {
		fmt.Fprintln(os.Stderr)
	}
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// PrintSuccess prints a success message, suppressed in quiet mode.
func (r *Reporter) PrintSuccess(format string, args ...any) {
	if r.quiet {
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
