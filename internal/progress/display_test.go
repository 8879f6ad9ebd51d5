package progress

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rescale/interlink-transfers/internal/localization"
	"github.com/rescale/interlink-transfers/internal/transfer"
)

// syncBuffer guards a bytes.Buffer written by a render goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func entry(name string, status transfer.Status, desc string) transfer.FileEntry {
	return transfer.FileEntry{ID: transfer.NewID(), Name: name, Status: status, Description: desc, State: transfer.NewStateCell()}
}

func TestBoardPlainOutputPrintsPhaseChanges(t *testing.T) {
	var buf bytes.Buffer
	b := NewBoard(&buf, 50*time.Millisecond)
	if b.IsTerminal() {
		t.Fatal("a bytes.Buffer is not a terminal")
	}

	e := entry("data/a.txt", transfer.Starting(), "starting")
	b.Refresh([]transfer.FileEntry{e}, nil, -1)

	e.Status, e.Description = transfer.InProgress(10), "10%"
	b.Refresh([]transfer.FileEntry{e}, nil, 10)
	e.Status, e.Description = transfer.InProgress(20), "20%"
	b.Refresh([]transfer.FileEntry{e}, nil, 20)

	e.Status, e.Description = transfer.Finishing(), "finishing"
	b.Refresh([]transfer.FileEntry{e}, nil, -1)
	b.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{
		"[upload] data/a.txt: starting",
		"[upload] data/a.txt: 10%",
		"[upload] data/a.txt: finishing",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestBoardDropsRemovedEntries(t *testing.T) {
	var buf bytes.Buffer
	b := NewBoard(&buf, 50*time.Millisecond)

	up := entry("a", transfer.InProgress(5), "up")
	down := entry("b", transfer.InProgress(5), "down")
	b.Refresh([]transfer.FileEntry{up}, []transfer.FileEntry{down}, 5)
	if len(b.bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(b.bars))
	}

	b.Refresh(nil, []transfer.FileEntry{down}, 5)
	if _, ok := b.bars[up.ID]; ok || len(b.bars) != 1 {
		t.Errorf("removed entry still on the board")
	}
	b.Close()
}

func TestBoardTerminalLifecycle(t *testing.T) {
	buf := &syncBuffer{}
	b := newBoard(buf, 10*time.Millisecond, true)

	ok := entry("ok.bin", transfer.InProgress(40), "40%")
	bad := entry("bad.bin", transfer.InProgress(10), "10%")
	gone := entry("gone.bin", transfer.Starting(), "starting")
	b.Refresh([]transfer.FileEntry{ok, gone}, []transfer.FileEntry{bad}, 25)

	ok.Status, ok.Description = transfer.Finishing(), "done"
	bad.Status, bad.Description = transfer.Failed(10), "broken"
	b.Refresh([]transfer.FileEntry{ok}, []transfer.FileEntry{bad}, -1)

	finished := make(chan struct{})
	go func() {
		b.Close()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	out := buf.String()
	if !strings.Contains(out, "✓ ok.bin: done") {
		t.Errorf("missing completion line in output:\n%s", out)
	}
	if !strings.Contains(out, "✗ bad.bin: broken") {
		t.Errorf("missing failure line in output:\n%s", out)
	}

	// Refresh after Close is ignored.
	b.Refresh([]transfer.FileEntry{entry("late", transfer.Starting(), "")}, nil, -1)
}

func TestSummaryBarPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	s := NewSummaryBar(&buf)
	if s.IsTerminal() {
		t.Fatal("bytes.Buffer should not be a terminal")
	}

	uploads := []transfer.FileEntry{
		entry("a", transfer.InProgress(40), ""),
		entry("b", transfer.Finishing(), ""),
	}
	downloads := []transfer.FileEntry{
		entry("c", transfer.Paused(60), ""),
		entry("d", transfer.Failed(3), ""),
	}
	s.Refresh(uploads, downloads, 50)
	s.Refresh(uploads, downloads, 50)
	s.Close()
	s.Close()

	out := buf.String()
	if want := "[summary]  50% 2 active / 1 done / 1 failed\n"; out != want {
		t.Errorf("summary output = %q, want %q", out, want)
	}
	if strings.Contains(out, "\r") {
		t.Errorf("plain output contains redraw frames: %q", out)
	}
}

func TestSummaryBarShowsLatestPercent(t *testing.T) {
	for _, tty := range []bool{false, true} {
		var buf syncBuffer
		s := newSummaryBar(&buf, tty)
		for _, p := range []int{40, 70, 95} {
			s.Refresh([]transfer.FileEntry{entry("a", transfer.InProgress(uint8(p)), "")}, nil, p)
			time.Sleep(10 * time.Millisecond)
		}
		s.Close()

		out := buf.String()
		for _, want := range []string{"70%", "95%"} {
			if !strings.Contains(out, want) {
				t.Errorf("tty=%v: output missing %q: %q", tty, want, out)
			}
		}
	}
}

func TestSummaryBarFillsWhenAllEnded(t *testing.T) {
	var buf bytes.Buffer
	s := NewSummaryBar(&buf)

	s.Refresh([]transfer.FileEntry{entry("a", transfer.InProgress(60), "")}, nil, 60)
	s.Refresh([]transfer.FileEntry{entry("a", transfer.Finishing(), "")}, nil, -1)
	s.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if got := lines[len(lines)-1]; got != "[summary] 100% 0 active / 1 done / 0 failed" {
		t.Errorf("last line = %q", got)
	}
}

func TestSummaryBarKeepsPercentWhileStarting(t *testing.T) {
	var buf bytes.Buffer
	s := NewSummaryBar(&buf)

	// A done transfer next to one not yet started is not the end of the run.
	s.Refresh([]transfer.FileEntry{entry("a", transfer.Finishing(), ""), entry("b", transfer.Starting(), "")}, nil, -1)
	s.Close()

	if got := strings.TrimSpace(buf.String()); got != "[summary]   0% 0 active / 1 done / 0 failed" {
		t.Errorf("output = %q", got)
	}
}

func TestRenderDrawsUntilCancelled(t *testing.T) {
	m := transfer.NewMonitor(transfer.NewTracker(transfer.WithLocalizer(localization.KeyOnly{})), nil)
	id := transfer.NewID()
	m.Start(id, "a.txt", transfer.NewStateCell(), transfer.Download)

	d := &recordingDisplay{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Render(ctx, m, d, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	m.Apply(transfer.Update{ID: id, Direction: transfer.Download, Progression: transfer.CurrentProgress("a.txt", 1, transfer.KnownSize(2))})
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Render did not return")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.frames < 2 {
		t.Errorf("frames = %d, want at least 2", d.frames)
	}
	if !d.closed {
		t.Error("display not closed")
	}
	if d.lastAggregate != 50 {
		t.Errorf("final frame aggregate = %d, want 50", d.lastAggregate)
	}
	if len(d.lastDownloads) != 1 || d.lastDownloads[0].Size != 1 {
		t.Errorf("final frame downloads = %+v", d.lastDownloads)
	}
}

type recordingDisplay struct {
	mu            sync.Mutex
	frames        int
	lastAggregate int
	lastDownloads []transfer.FileEntry
	closed        bool
}

func (r *recordingDisplay) Refresh(uploads, downloads []transfer.FileEntry, aggregate int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
	r.lastAggregate = aggregate
	r.lastDownloads = downloads
}

func (r *recordingDisplay) Writer() io.Writer { return io.Discard }
func (r *recordingDisplay) IsTerminal() bool  { return false }

func (r *recordingDisplay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func TestTruncatePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"file.txt", "file.txt"},
		{"dir/file.txt", "dir/file.txt"},
		{"/a/b/c/file.txt", "…/c/file.txt"},
	}
	for _, tt := range tests {
		if got := truncatePath(tt.path, 2); got != tt.want {
			t.Errorf("truncatePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
