package orchestrator

import (
	"context"
	"sync"

	"github.com/ShayCichocki/taskweave/pkg/models"
)

// Handle is a run started with Start. Each handle owns its event stream
// and its halt signal, so concurrent runs never see each other's events.
type Handle struct {
	id     string
	events *EventEmitter

	halt     chan struct{}
	haltOnce sync.Once

	done    chan struct{}
	outcome *models.RunOutcome
	err     error
}

// Start runs request in the background and returns at once. Events must be
// drained by the caller; the channel is closed after run_completed.
func (o *Orchestrator) Start(ctx context.Context, request string, data map[string]any) *Handle {
	h := &Handle{
		events: NewEventEmitter(o.eventBuffer),
		halt:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	r := o.newRun(request, h.events, h.halt)
	h.id = r.id

	go func() {
		defer close(h.done)
		defer h.events.Close()
		h.outcome, h.err = o.submit(ctx, r, request, data)
	}()
	return h
}

// ID returns the run id carried by every event of this run.
func (h *Handle) ID() string { return h.id }

// Events returns the run's event stream.
func (h *Handle) Events() <-chan Event { return h.events.Events() }

// DroppedEvents returns how many events were dropped because the stream
// was not drained fast enough.
func (h *Handle) DroppedEvents() uint64 { return h.events.DroppedCount() }

// Halt stops the run from scheduling further levels. Subtasks already
// dispatched finish and are recorded; the rest are skipped as halted.
// Synthesis still runs. Halt may be called more than once.
func (h *Handle) Halt() {
	h.haltOnce.Do(func() { close(h.halt) })
}

// Done is closed once the outcome is available.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the run finished and returns what Submit would have.
func (h *Handle) Wait() (*models.RunOutcome, error) {
	<-h.done
	return h.outcome, h.err
}
