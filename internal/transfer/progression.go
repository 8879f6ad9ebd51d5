package transfer

import "github.com/google/uuid"

// ProgressionKind tags a Progression.
type ProgressionKind int

const (
	ProgressCurrent  ProgressionKind = iota // Bytes moved so far
	ProgressComplete                        // Transfer finished
	ProgressFailed                          // Transfer aborted with an error
)

// SizeHint is a byte count the engine may not know yet.
type SizeHint struct {
	Value uint64
	Valid bool
}

// KnownSize returns a valid hint holding v.
func KnownSize(v uint64) SizeHint {
	return SizeHint{Value: v, Valid: true}
}

// Progression is an update emitted by a transfer engine.
//
//   - ProgressCurrent uses Name, Current and Total.
//   - ProgressComplete uses Name and Total.
//   - ProgressFailed uses Name, Total (the last known size) and Err.
type Progression struct {
	Kind    ProgressionKind
	Name    string
	Current uint64
	Total   SizeHint
	Err     error
}

// CurrentProgress builds a ProgressCurrent event.
func CurrentProgress(name string, current uint64, total SizeHint) Progression {
	return Progression{Kind: ProgressCurrent, Name: name, Current: current, Total: total}
}

// Complete builds a ProgressComplete event.
func Complete(name string, total SizeHint) Progression {
	return Progression{Kind: ProgressComplete, Name: name, Total: total}
}

// ProgressionFailed builds a ProgressFailed event.
func ProgressionFailed(name string, lastSize SizeHint, err error) Progression {
	return Progression{Kind: ProgressFailed, Name: name, Total: lastSize, Err: err}
}

// Update routes a Progression to one tracked transfer.
type Update struct {
	ID          uuid.UUID
	Direction   Direction
	Progression Progression
}
