package transfer

import "github.com/google/uuid"

// Direction selects one of the tracker's two collections.
type Direction string

const (
	Upload   Direction = "upload"
	Download Direction = "download"
)

// NewID returns a transfer identity. IDs are random UUIDs so two files
// with the same name never collide.
func NewID() uuid.UUID {
	return uuid.New()
}

// FileEntry is one tracked transfer.
type FileEntry struct {
	ID          uuid.UUID
	Name        string // Display name
	Status      Status
	Size        uint64 // Bytes transferred so far
	TotalSize   uint64 // 0 until the engine knows it
	Description string

	// State is the pause/cancel flag polled by the executor. The tracker
	// stores it for the display layer but never toggles it.
	State *StateCell
}

// Equal compares identity, name, status and description. Byte counters and
// the state handle are left out so a redraw is only triggered by changes
// the user can see.
func (e FileEntry) Equal(other FileEntry) bool {
	return e.ID == other.ID &&
		e.Name == other.Name &&
		e.Status == other.Status &&
		e.Description == other.Description
}
