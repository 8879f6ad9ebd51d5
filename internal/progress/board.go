package progress

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/rescale/interlink-transfers/internal/transfer"
)

// Board draws one bar per tracked transfer using mpb.
type Board struct {
	mu         sync.Mutex
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
	bars       map[uuid.UUID]*entryBar
	closed     bool
}

// entryBar is the board state of one transfer.
type entryBar struct {
	bar   *mpb.Bar
	desc  atomic.Value // string; read by the mpb render goroutine
	phase transfer.Phase
	done  bool
}

// NewBoard creates a board writing to w, redrawn every refresh.
// When w is not a terminal, the board prints one line per phase change.
func NewBoard(w io.Writer, refresh time.Duration) *Board {
	return newBoard(w, refresh, isTerminal(w))
}

func newBoard(w io.Writer, refresh time.Duration, tty bool) *Board {
	var p *mpb.Progress
	if tty {
		p = mpb.New(
			mpb.WithOutput(w),
			mpb.WithAutoRefresh(),
			mpb.WithRefreshRate(refresh),
			mpb.WithWidth(100),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}
	return &Board{
		progress:   p,
		out:        w,
		isTerminal: tty,
		bars:       make(map[uuid.UUID]*entryBar),
	}
}

// Refresh implements Display. Entries missing from the snapshot were
// removed from the tracker; their bars are dropped.
func (b *Board) Refresh(uploads, downloads []transfer.FileEntry, aggregate int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	seen := make(map[uuid.UUID]bool, len(uploads)+len(downloads))
	for _, e := range uploads {
		seen[e.ID] = true
		b.refreshEntry(transfer.Upload, e)
	}
	for _, e := range downloads {
		seen[e.ID] = true
		b.refreshEntry(transfer.Download, e)
	}

	for id, eb := range b.bars {
		if seen[id] {
			continue
		}
		if eb.bar != nil && !eb.done {
			eb.bar.Abort(true)
		}
		delete(b.bars, id)
	}
}

func (b *Board) refreshEntry(dir transfer.Direction, e transfer.FileEntry) {
	eb, ok := b.bars[e.ID]
	if !ok {
		eb = b.addBar(dir, e)
		b.bars[e.ID] = eb
	}
	eb.desc.Store(e.Description)

	changed := eb.phase != e.Status.Phase
	eb.phase = e.Status.Phase

	if !b.isTerminal {
		if changed {
			fmt.Fprintf(b.out, "[%s] %s: %s\n", dir, e.Name, e.Description)
		}
		return
	}
	if eb.done {
		return
	}

	switch e.Status.Phase {
	case transfer.PhaseFinishing:
		eb.bar.SetCurrent(100)
		eb.bar.SetTotal(100, true)
		eb.done = true
		b.progress.Write([]byte(fmt.Sprintf("✓ %s: %s\n", e.Name, e.Description)))
	case transfer.PhaseFailed:
		eb.bar.Abort(false)
		eb.done = true
		b.progress.Write([]byte(fmt.Sprintf("✗ %s: %s\n", e.Name, e.Description)))
	default:
		eb.bar.SetCurrent(int64(e.Status.PercentOrZero()))
	}
}

// addBar creates the board entry for e. Bars count percent, not bytes:
// the total is often unknown when the transfer starts.
func (b *Board) addBar(dir transfer.Direction, e transfer.FileEntry) *entryBar {
	eb := &entryBar{}
	eb.desc.Store(e.Description)
	if !b.isTerminal {
		return eb
	}

	arrow := "↑"
	if dir == transfer.Download {
		arrow = "↓"
	}
	label := arrow + " " + truncatePath(e.Name, 2)

	eb.bar = b.progress.New(100,
		mpb.BarStyle().
			Lbound("[").
			Filler("█").
			Tip("█").
			Padding("░").
			Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(label, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string {
				s, _ := eb.desc.Load().(string)
				return s
			}, decor.WCSyncSpace),
		),
		mpb.BarRemoveOnComplete(),
	)
	return eb
}

// Writer implements Display.
func (b *Board) Writer() io.Writer {
	if b.isTerminal {
		return b.progress
	}
	return b.out
}

// IsTerminal implements Display.
func (b *Board) IsTerminal() bool {
	return b.isTerminal
}

// Close aborts the bars still running, leaving them on screen, and waits
// for mpb to flush.
func (b *Board) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, eb := range b.bars {
		if eb.bar != nil && !eb.done {
			eb.bar.Abort(false)
		}
	}
	b.mu.Unlock()

	b.progress.Wait()
}

// truncatePath shortens a path to its last maxComponents components.
// Example: truncatePath("/a/b/c/d/file.txt", 3) → "…/c/d/file.txt"
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return path
	}
	return "…/" + strings.Join(parts[len(parts)-maxComponents:], "/")
}
