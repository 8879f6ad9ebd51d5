package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rescale/interlink-transfers/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventTransferStarted     EventType = "transfer_started"     // Entry added to the tracker
	EventTransferProgress    EventType = "transfer_progress"    // Byte counters moved
	EventTransferFinishing   EventType = "transfer_finishing"   // Engine reported completion
	EventTransferFailed      EventType = "transfer_failed"      // Engine error or MarkErrored
	EventTransferPaused      EventType = "transfer_paused"      // Display status set to paused
	EventTransferCancelling  EventType = "transfer_cancelling"  // Display status set to cancelling
	EventTransferDescription EventType = "transfer_description" // Description overwritten
	EventTransferRemoved     EventType = "transfer_removed"     // Entry dropped from the tracker
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// TransferEvent carries a copy of one tracker entry after a mutation.
// Fields are plain values so subscribers never share memory with the tracker.
type TransferEvent struct {
	BaseEvent
	TransferID  string // Entry identity
	Direction   string // "upload" or "download"
	Name        string // Display name (filename)
	Phase       string // Status phase after the mutation
	Percent     uint8  // Status percent (0 when the phase has none)
	Current     uint64 // Bytes transferred
	Total       uint64 // Total bytes, 0 if unknown
	Description string
	Error       error // Set for engine failures
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking.
// Events for a full subscriber are dropped and counted.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
