package transfer

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/rescale/interlink-transfers/internal/logging"
)

// Monitor serializes access to a Tracker so transfer engines and the
// display can use it from different goroutines.
//
// Every method takes the lock for the duration of one Tracker call; no I/O
// happens under it. Reads return copies.
type Monitor struct {
	tracker *Tracker
	logger  *logging.Logger
	mu      sync.RWMutex
}

// NewMonitor wraps tracker. A nil logger disables logging.
func NewMonitor(tracker *Tracker, logger *logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Monitor{
		tracker: tracker,
		logger:  logger,
	}
}

// Start registers a transfer. See Tracker.Start.
func (m *Monitor) Start(id uuid.UUID, name string, state *StateCell, dir Direction) {
	m.mu.Lock()
	m.tracker.Start(id, name, state, dir)
	m.mu.Unlock()

	m.logger.Debug().
		Str("id", id.String()).
		Str("name", name).
		Str("direction", string(dir)).
		Msg("transfer registered")
}

// Apply routes one engine update to the tracker.
func (m *Monitor) Apply(u Update) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tracker.find(u.ID, u.Direction) == nil {
		m.logger.Debug().
			Str("id", u.ID.String()).
			Str("direction", string(u.Direction)).
			Msg("dropping update for untracked transfer")
		return
	}
	m.tracker.Apply(u.ID, u.Progression, u.Direction)
}

// Consume applies updates until the channel is closed or ctx is done.
// Returns ctx.Err() when stopped by the context, nil otherwise.
func (m *Monitor) Consume(ctx context.Context, updates <-chan Update) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			m.Apply(u)
		}
	}
}

// SetDescription see Tracker.SetDescription.
func (m *Monitor) SetDescription(id uuid.UUID, description string, dir Direction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracker.SetDescription(id, description, dir)
}

// Pause changes the display status only. See Tracker.Pause.
func (m *Monitor) Pause(id uuid.UUID, dir Direction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracker.Pause(id, dir)
}

// Cancel changes the display status only. See Tracker.Cancel.
func (m *Monitor) Cancel(id uuid.UUID, dir Direction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracker.Cancel(id, dir)
}

// MarkErrored see Tracker.MarkErrored.
func (m *Monitor) MarkErrored(id uuid.UUID, dir Direction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracker.MarkErrored(id, dir)
}

// Remove see Tracker.Remove.
func (m *Monitor) Remove(id uuid.UUID, dir Direction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracker.Remove(id, dir)
}

// ClearFinished see Tracker.ClearFinished.
func (m *Monitor) ClearFinished(dir Direction) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.ClearFinished(dir)
}

// RequestPause is what a pause button does: it updates the display status
// and then toggles the entry's StateCell so the executor suspends (or
// resumes, if it was paused). Pressing it on a paused entry only resumes
// the executor; the display moves back to in-progress on the next update.
// Cancelling, finishing and failed entries keep their display status.
func (m *Monitor) RequestPause(id uuid.UUID, dir Direction) bool {
	m.mu.Lock()
	f := m.tracker.find(id, dir)
	if f == nil {
		m.mu.Unlock()
		return false
	}
	cell := f.State
	if f.Status.Phase == PhaseStarting || f.Status.Phase == PhaseInProgress {
		m.tracker.Pause(id, dir)
	}
	m.mu.Unlock()

	if cell != nil {
		cell.Toggle(false)
	}
	m.logger.Debug().Str("id", id.String()).Msg("pause toggled")
	return true
}

// RequestCancel is what a cancel button does: display status first, then
// the StateCell. Cancellation is final. Finishing and failed entries keep
// their display status; only the cell is cancelled.
func (m *Monitor) RequestCancel(id uuid.UUID, dir Direction) bool {
	m.mu.Lock()
	f := m.tracker.find(id, dir)
	if f == nil {
		m.mu.Unlock()
		return false
	}
	cell := f.State
	switch f.Status.Phase {
	case PhaseStarting, PhaseInProgress, PhasePaused:
		m.tracker.Cancel(id, dir)
	}
	m.mu.Unlock()

	if cell != nil {
		cell.Toggle(true)
	}
	m.logger.Debug().Str("id", id.String()).Msg("cancel requested")
	return true
}

// Snapshot returns a copy of the entries for dir.
func (m *Monitor) Snapshot(dir Direction) []FileEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src := m.tracker.Entries(dir)
	result := make([]FileEntry, len(src))
	copy(result, src)
	return result
}

// Entry returns a copy of one entry.
func (m *Monitor) Entry(id uuid.UUID, dir Direction) (FileEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracker.Entry(id, dir)
}

// AggregateProgress see Tracker.AggregateProgress.
func (m *Monitor) AggregateProgress() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracker.AggregateProgress()
}

// Len returns the number of entries for dir.
func (m *Monitor) Len(dir Direction) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracker.Len(dir)
}

// Active returns the number of entries, across both directions, that are
// not yet finished or failed.
func (m *Monitor) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, dir := range []Direction{Upload, Download} {
		for _, e := range m.tracker.Entries(dir) {
			if e.Status.Phase != PhaseFinishing && e.Status.Phase != PhaseFailed {
				n++
			}
		}
	}
	return n
}
