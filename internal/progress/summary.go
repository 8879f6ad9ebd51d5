package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/rescale/interlink-transfers/internal/transfer"
)

// SummaryBar draws a single bar for the mean percent of active transfers.
// Off a terminal it prints one plain line whenever the summary changes.
type SummaryBar struct {
	mu         sync.Mutex
	bar        *progressbar.ProgressBar // nil when not a terminal
	out        io.Writer
	isTerminal bool
	percent    int
	lastLine   string
	closed     bool
}

// NewSummaryBar creates an aggregate bar writing to w.
func NewSummaryBar(w io.Writer) *SummaryBar {
	return newSummaryBar(w, isTerminal(w))
}

func newSummaryBar(w io.Writer, tty bool) *SummaryBar {
	s := &SummaryBar{
		out:        w,
		isTerminal: tty,
	}
	if tty {
		// Render already paces refreshes, so the bar draws every update.
		s.bar = progressbar.NewOptions(100,
			progressbar.OptionSetDescription("Waiting for transfers"),
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetWidth(50),
			progressbar.OptionThrottle(0),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	return s
}

// Refresh implements Display. While nothing is active the bar keeps its
// last position, except that it fills up once every transfer ended and at
// least one of them completed.
func (s *SummaryBar) Refresh(uploads, downloads []transfer.FileEntry, aggregate int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	var active, pending, done, failed int
	for _, list := range [][]transfer.FileEntry{uploads, downloads} {
		for _, e := range list {
			switch {
			case e.Status.Active():
				active++
			case e.Status.Phase == transfer.PhaseFinishing:
				done++
			case e.Status.Phase == transfer.PhaseFailed:
				failed++
			default:
				pending++
			}
		}
	}

	switch {
	case aggregate >= 0:
		s.percent = aggregate
	case active == 0 && pending == 0 && done > 0:
		s.percent = 100
	}
	desc := fmt.Sprintf("%d active / %d done / %d failed", active, done, failed)

	if s.bar == nil {
		line := fmt.Sprintf("[summary] %3d%% %s", s.percent, desc)
		if line != s.lastLine {
			fmt.Fprintln(s.out, line)
			s.lastLine = line
		}
		return
	}
	_ = s.bar.Set(s.percent)
	s.bar.Describe(desc)
}

// Writer implements Display.
func (s *SummaryBar) Writer() io.Writer {
	return s.out
}

// IsTerminal implements Display.
func (s *SummaryBar) IsTerminal() bool {
	return s.isTerminal
}

// Close implements Display. The bar is left at its last position.
func (s *SummaryBar) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.bar != nil {
		fmt.Fprintln(s.out)
	}
}
