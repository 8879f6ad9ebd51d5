// Package progress renders transfer.Monitor snapshots on a terminal.
//
// Two displays are provided: Board draws one mpb bar per transfer, and
// SummaryBar draws a single bar driven by the aggregate percent. Both fall
// back to plain lines when the output is not a terminal.
package progress

import (
	"context"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/rescale/interlink-transfers/internal/transfer"
)

// Display consumes snapshots of the tracker.
type Display interface {
	// Refresh redraws from the given entries. aggregate is
	// Monitor.AggregateProgress(), -1 when nothing is active.
	Refresh(uploads, downloads []transfer.FileEntry, aggregate int)

	// Writer returns an io.Writer that prints above the bars without
	// corrupting them.
	Writer() io.Writer

	// IsTerminal reports whether bars are drawn.
	IsTerminal() bool

	// Close stops rendering. The display must not be used afterwards.
	Close()
}

// Render refreshes d from m every interval until ctx is done, then draws a
// last frame and closes d.
func Render(ctx context.Context, m *transfer.Monitor, d Display, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	draw := func() {
		d.Refresh(m.Snapshot(transfer.Upload), m.Snapshot(transfer.Download), m.AggregateProgress())
	}

	draw()
	for {
		select {
		case <-ctx.Done():
			draw()
			d.Close()
			return
		case <-ticker.C:
			draw()
		}
	}
}

// isTerminal reports whether w is a terminal, enabling escape sequences on
// Windows consoles when it is.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false
	}
	enableANSI(f)
	return true
}
