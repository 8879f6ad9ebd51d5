package transfer

import "sync"

// Mode is the execution-control signal of one transfer.
type Mode int

const (
	ModeNormal    Mode = iota // Transfer runs
	ModePaused                // Executor should hold at the next chunk boundary
	ModeCancelled             // Executor should unwind; terminal
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModePaused:
		return "paused"
	case ModeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// NextMode returns the mode that follows current when a pause
// (wantCancel=false) or cancel (wantCancel=true) request is applied.
// Pause toggles Normal and Paused; Cancelled is absorbing.
func NextMode(current Mode, wantCancel bool) Mode {
	switch current {
	case ModeCancelled:
		return ModeCancelled
	case ModePaused:
		if wantCancel {
			return ModeCancelled
		}
		return ModeNormal
	default:
		if wantCancel {
			return ModeCancelled
		}
		return ModePaused
	}
}

// StateCell is the pause/cancel flag shared between the goroutine executing
// a transfer and whoever displays or controls it. Copy the pointer, not the
// struct: all holders must observe the same value.
//
// The executor polls Read on every chunk of work. There is no wake-up on
// change, so a request is observed at the next poll.
type StateCell struct {
	mu   sync.Mutex
	mode Mode
}

// NewStateCell returns a cell in ModeNormal.
func NewStateCell() *StateCell {
	return &StateCell{}
}

// Read returns the current mode.
func (c *StateCell) Read() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Matches reports whether the cell currently holds mode.
func (c *StateCell) Matches(mode Mode) bool {
	return c.Read() == mode
}

// Toggle applies a pause (wantCancel=false) or cancel (wantCancel=true)
// request. The read-modify-write happens under one lock acquisition.
func (c *StateCell) Toggle(wantCancel bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = NextMode(c.mode, wantCancel)
}
