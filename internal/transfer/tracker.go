// Package transfer tracks the live status of concurrent uploads and downloads.
//
// The Tracker is a plain data structure: it records entries, applies
// progression events from transfer engines and answers display queries.
// It is NOT safe for concurrent use; wrap it in a Monitor (or confine it to
// one goroutine) when engines and the display run in parallel.
//
// Pause and cancel travel on two independent channels:
//   - Tracker.Pause / Tracker.Cancel change what the display shows.
//   - StateCell.Toggle changes what the executor obeys.
//
// Neither calls the other.
package transfer

import (
	"math"
	"math/bits"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/rescale/interlink-transfers/internal/events"
	"github.com/rescale/interlink-transfers/internal/localization"
)

// Tracker owns the upload and download collections.
type Tracker struct {
	uploads   []FileEntry
	downloads []FileEntry

	text     localization.Localizer
	eventBus *events.EventBus
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithEventBus publishes a TransferEvent after every mutation that finds
// its entry.
func WithEventBus(bus *events.EventBus) Option {
	return func(t *Tracker) {
		t.eventBus = bus
	}
}

// WithLocalizer sets the text lookup used for descriptions.
func WithLocalizer(l localization.Localizer) Option {
	return func(t *Tracker) {
		t.text = l
	}
}

// NewTracker returns an empty tracker. Without WithLocalizer descriptions
// are rendered from the English catalog.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		uploads:   make([]FileEntry, 0),
		downloads: make([]FileEntry, 0),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.text == nil {
		t.text = localization.MustCatalog("en")
	}
	return t
}

// Start appends a new entry in the Starting phase. The caller must not reuse
// an id already present in that direction; duplicates are not detected.
func (t *Tracker) Start(id uuid.UUID, name string, state *StateCell, dir Direction) {
	entries := t.collection(dir)
	*entries = append(*entries, FileEntry{
		ID:          id,
		Name:        name,
		Status:      Starting(),
		Description: t.text.Lookup(localization.KeyTransferStart),
		State:       state,
	})
	t.publish(events.EventTransferStarted, dir, &(*entries)[len(*entries)-1], nil)
}

// Apply updates the entry id with an engine progression. Unknown ids are
// ignored: late events for a removed transfer are expected.
func (t *Tracker) Apply(id uuid.UUID, p Progression, dir Direction) {
	f := t.find(id, dir)
	if f == nil {
		return
	}

	switch p.Kind {
	case ProgressCurrent:
		f.Size = p.Current
		if p.Total.Valid {
			f.TotalSize = p.Total.Value
		}
		percent := progressPercent(p.Current, p.Total)
		f.Description = t.progressDescription(f, dir, percent)
		f.Status = InProgress(percent)
		t.publish(events.EventTransferProgress, dir, f, nil)

	case ProgressComplete:
		if p.Total.Valid {
			f.TotalSize = p.Total.Value
		}
		f.Description = t.text.LookupWithArgs(localization.KeyTransferFinishing,
			localization.Arg{Key: "size", Value: humanize.Bytes(f.TotalSize)})
		f.Status = Finishing()
		t.publish(events.EventTransferFinishing, dir, f, nil)

	case ProgressFailed:
		errText := ""
		if p.Err != nil {
			errText = p.Err.Error()
		}
		f.Description = t.text.LookupWithArgs(localization.KeyTransferError,
			localization.Arg{Key: "error", Value: errText})
		if p.Total.Valid {
			f.TotalSize = p.Total.Value
		}
		f.Status = Failed(f.Status.PercentOrZero())
		t.publish(events.EventTransferFailed, dir, f, p.Err)
	}
}

// SetDescription overwrites the description without touching the status.
func (t *Tracker) SetDescription(id uuid.UUID, description string, dir Direction) {
	if f := t.find(id, dir); f != nil {
		f.Description = description
		t.publish(events.EventTransferDescription, dir, f, nil)
	}
}

// Pause marks the entry paused for display. It does not toggle the entry's
// StateCell; the executor keeps running until someone does.
func (t *Tracker) Pause(id uuid.UUID, dir Direction) {
	f := t.find(id, dir)
	if f == nil {
		return
	}
	percent := f.Status.PercentOrZero()
	current, total := FormatSizePair(f.Size, f.TotalSize)
	f.Description = t.text.LookupWithArgs(localization.KeyTransferPaused,
		localization.Arg{Key: "progress", Value: strconv.Itoa(int(percent))},
		localization.Arg{Key: "size", Value: current},
		localization.Arg{Key: "total", Value: total},
	)
	f.Status = Paused(percent)
	t.publish(events.EventTransferPaused, dir, f, nil)
}

// Cancel marks the entry as cancelling for display. Like Pause, the
// StateCell is left alone.
func (t *Tracker) Cancel(id uuid.UUID, dir Direction) {
	if f := t.find(id, dir); f != nil {
		f.Description = t.text.Lookup(localization.KeyTransferCancelling)
		f.Status = Cancelling(f.Status.PercentOrZero())
		t.publish(events.EventTransferCancelling, dir, f, nil)
	}
}

// MarkErrored fails the entry with a generic message, for errors raised
// outside the engine's progression stream.
func (t *Tracker) MarkErrored(id uuid.UUID, dir Direction) {
	if f := t.find(id, dir); f != nil {
		f.Status = Failed(f.Status.PercentOrZero())
		f.Description = t.text.Lookup(localization.KeyTransferFailedGeneric)
		t.publish(events.EventTransferFailed, dir, f, nil)
	}
}

// Remove drops every entry with id from the collection. The entry's
// StateCell reference goes with it.
func (t *Tracker) Remove(id uuid.UUID, dir Direction) {
	entries := t.collection(dir)
	kept := (*entries)[:0]
	for i := range *entries {
		e := (*entries)[i]
		if e.ID == id {
			t.publish(events.EventTransferRemoved, dir, &e, nil)
			continue
		}
		kept = append(kept, e)
	}
	// Clear the tail so dropped StateCells are not pinned by the backing array.
	for i := len(kept); i < len(*entries); i++ {
		(*entries)[i] = FileEntry{}
	}
	*entries = kept
}

// ClearFinished removes entries that reached Finishing or Failed and
// returns how many were dropped.
func (t *Tracker) ClearFinished(dir Direction) int {
	var done []uuid.UUID
	for _, e := range *t.collection(dir) {
		if e.Status.Phase == PhaseFinishing || e.Status.Phase == PhaseFailed {
			done = append(done, e.ID)
		}
	}
	for _, id := range done {
		t.Remove(id, dir)
	}
	return len(done)
}

// Entries returns the collection for dir in insertion order. The slice is
// the tracker's own storage: read it under the same serialization as every
// other call and do not modify it. Monitor.Snapshot returns a copy.
func (t *Tracker) Entries(dir Direction) []FileEntry {
	return *t.collection(dir)
}

// Entry returns a copy of the entry id.
func (t *Tracker) Entry(id uuid.UUID, dir Direction) (FileEntry, bool) {
	if f := t.find(id, dir); f != nil {
		return *f, true
	}
	return FileEntry{}, false
}

// Len returns the number of entries tracked for dir.
func (t *Tracker) Len(dir Direction) int {
	return len(*t.collection(dir))
}

// AggregateProgress returns the rounded mean percent of all in-progress and
// paused entries across both directions, or -1 when there are none. Each
// entry weighs the same regardless of its size.
func (t *Tracker) AggregateProgress() int {
	sum, count := 0, 0
	for _, list := range [][]FileEntry{t.uploads, t.downloads} {
		for _, e := range list {
			if e.Status.Active() {
				sum += int(e.Status.Percent)
				count++
			}
		}
	}
	if count == 0 {
		return -1
	}
	return int(math.Round(float64(sum) / float64(count)))
}

func (t *Tracker) progressDescription(f *FileEntry, dir Direction, percent uint8) string {
	key := localization.KeyTransferProgressUpload
	if dir == Download {
		key = localization.KeyTransferProgressDownload
	}
	current, total := FormatSizePair(f.Size, f.TotalSize)
	return t.text.LookupWithArgs(key,
		localization.Arg{Key: "progress", Value: strconv.Itoa(int(percent))},
		localization.Arg{Key: "size", Value: current},
		localization.Arg{Key: "total", Value: total},
	)
}

// progressPercent is floor(current/total*100), 0 when total is unknown or
// zero, capped at 100 when current overshoots.
func progressPercent(current uint64, total SizeHint) uint8 {
	if !total.Valid || total.Value == 0 {
		return 0
	}
	if current >= total.Value {
		return 100
	}
	// Integer floor: float division turns 29/100 into 28.999...
	hi, lo := bits.Mul64(current, 100)
	q, _ := bits.Div64(hi, lo, total.Value)
	return uint8(q)
}

func (t *Tracker) collection(dir Direction) *[]FileEntry {
	if dir == Download {
		return &t.downloads
	}
	return &t.uploads
}

// find returns a pointer into the collection; linear scan, the number of
// live transfers is small.
func (t *Tracker) find(id uuid.UUID, dir Direction) *FileEntry {
	entries := *t.collection(dir)
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i]
		}
	}
	return nil
}

// publish sends a copy of f to the event bus, if one is attached.
func (t *Tracker) publish(eventType events.EventType, dir Direction, f *FileEntry, err error) {
	if t.eventBus == nil {
		return
	}
	t.eventBus.Publish(&events.TransferEvent{
		BaseEvent: events.BaseEvent{
			EventType: eventType,
			Time:      time.Now(),
		},
		TransferID:  f.ID.String(),
		Direction:   string(dir),
		Name:        f.Name,
		Phase:       string(f.Status.Phase),
		Percent:     f.Status.PercentOrZero(),
		Current:     f.Size,
		Total:       f.TotalSize,
		Description: f.Description,
		Error:       err,
	})
}
