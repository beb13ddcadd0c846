package orchestrator

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// EventEmitter delivers events to one subscriber through a buffered
// channel. Emit never blocks for long: when the buffer stays full the
// event is dropped and counted.
type EventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64
	wait         time.Duration
	logger       *slog.Logger
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan Event, bufferSize),
		wait:   100 * time.Millisecond,
		logger: slog.New(slog.DiscardHandler),
	}
}

// Emit sends an event, waiting briefly for the receiver when the buffer is full.
func (e *EventEmitter) Emit(event Event) {
	select {
	case e.events <- event:
		return
	default:
	}

	t := time.NewTimer(e.wait)
	defer t.Stop()
	select {
	case e.events <- event:
	case <-t.C:
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			e.logger.Warn("event channel full, dropping events", "dropped", count, "type", event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns the channel subscribers read from.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel. Emit must not be called afterwards.
func (e *EventEmitter) Close() {
	close(e.events)
}
