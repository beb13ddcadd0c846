// Package dispatch routes subtasks to capability handlers, calls the
// reasoning service and validates replies against typed schemas.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ShayCichocki/taskweave/internal/cache"
	"github.com/ShayCichocki/taskweave/internal/reasoning"
	"github.com/ShayCichocki/taskweave/pkg/models"
)

// DefaultTaskTimeout bounds a single subtask, retries included.
const DefaultTaskTimeout = 2 * time.Minute

// Dispatcher executes subtasks against the reasoning service.
// It is safe for concurrent use.
type Dispatcher struct {
	svc reasoning.Service

	mu       sync.RWMutex
	handlers map[models.Capability]Handler
	fallback Handler

	retry       RetryPolicy
	taskTimeout time.Duration
	cache       cache.Store
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(d *Dispatcher) { d.retry = p }
}

// WithTaskTimeout sets the per-subtask timeout. Zero disables it.
func WithTaskTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.taskTimeout = t }
}

// WithCache enables the result cache.
func WithCache(s cache.Store) Option {
	return func(d *Dispatcher) { d.cache = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithHandler registers an extra handler, replacing any for the same capability.
func WithHandler(h Handler) Option {
	return func(d *Dispatcher) { d.handlers[h.Capability()] = h }
}

// WithFallback sets the handler used for unknown capabilities.
// Passing nil makes unknown capabilities fail with CapabilityNotFoundError.
func WithFallback(h Handler) Option {
	return func(d *Dispatcher) { d.fallback = h }
}

// New creates a dispatcher with the built-in handlers. Unknown capabilities
// fall back to the generic handler unless WithFallback(nil) is given.
func New(svc reasoning.Service, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		svc:         svc,
		handlers:    make(map[models.Capability]Handler),
		retry:       DefaultRetryPolicy(),
		taskTimeout: DefaultTaskTimeout,
		logger:      slog.New(slog.DiscardHandler),
		now:         time.Now,
	}
	for _, h := range DefaultHandlers() {
		d.handlers[h.Capability()] = h
	}
	d.fallback = d.handlers[models.CapabilityGeneric]
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds or replaces the handler for h's capability.
func (d *Dispatcher) Register(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[h.Capability()] = h
}

// Route returns the handler for a capability tag.
func (d *Dispatcher) Route(c models.Capability) (Handler, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if h, ok := d.handlers[c]; ok {
		return h, nil
	}
	if d.fallback != nil {
		return d.fallback, nil
	}
	return nil, &CapabilityNotFoundError{Capability: c}
}

// Capabilities returns the registered capability tags, sorted.
func (d *Dispatcher) Capabilities() []models.Capability {
	d.mu.RLock()
	defer d.mu.RUnlock()
	caps := make([]models.Capability, 0, len(d.handlers))
	for c := range d.handlers {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// Dispatch runs one subtask and always returns a terminal result. The
// subtask's data is only read.
func (d *Dispatcher) Dispatch(ctx context.Context, task models.Subtask) models.TaskResult {
	res := models.TaskResult{
		TaskID:     task.ID,
		Capability: task.Capability,
		StartedAt:  d.now(),
	}
	defer func() {
		res.CompletedAt = d.now()
		res.Duration = res.CompletedAt.Sub(res.StartedAt)
	}()

	log := d.logger.With("task_id", task.ID, "capability", string(task.Capability))

	h, err := d.Route(task.Capability)
	if err != nil {
		fail(&res, err)
		log.Warn("no handler for subtask")
		return res
	}

	req := h.BuildRequest(task)

	key := d.cacheKey(log, task)
	if key != "" {
		if payload, entry, ok := d.lookup(ctx, log, key); ok {
			res.Status = models.TaskStatusComplete
			res.Payload = payload
			res.Confidence = entry.Confidence
			res.ConfidenceReasoning = entry.ConfidenceReasoning
			res.Cached = true
			log.Debug("cache hit")
			return res
		}
	}

	payload, err := d.attempt(ctx, log, h, req, &res)
	if err != nil {
		fail(&res, err)
		log.Warn("subtask failed", "attempts", res.Attempts, "error", err)
		return res
	}

	a := payload.Assess()
	res.Status = models.TaskStatusComplete
	res.Payload = payload
	res.Confidence = a.Confidence
	res.ConfidenceReasoning = a.ConfidenceReasoning

	if key != "" {
		d.store(ctx, log, key, h.Capability(), payload)
	}
	log.Debug("subtask complete", "attempts", res.Attempts, "confidence", a.Confidence)
	return res
}

// attempt calls the service until a reply passes the schema, the retry
// policy gives up or the task times out. Usage of every call, rejected
// replies included, is added to res.
func (d *Dispatcher) attempt(ctx context.Context, log *slog.Logger, h Handler, req reasoning.Request, res *models.TaskResult) (models.Payload, error) {
	callCtx := ctx
	if d.taskTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.taskTimeout)
		defer cancel()
	}

	var violations []string
	max := d.retry.Attempts()
	for n := 1; n <= max; n++ {
		if n > 1 {
			if err := d.retry.Wait(callCtx, n-1); err != nil {
				return nil, d.contextError(ctx, callCtx, req.TaskID, err)
			}
		}

		res.Attempts = n
		resp, err := d.svc.Complete(callCtx, req)
		if resp != nil {
			res.Usage = res.Usage.Add(resp.Usage)
		}
		if err != nil {
			if callCtx.Err() != nil {
				return nil, d.contextError(ctx, callCtx, req.TaskID, err)
			}
			var svcErr *reasoning.ServiceError
			if !errors.As(err, &svcErr) {
				err = &reasoning.ServiceError{Op: "complete", Err: err}
			}
			if !d.retry.RetryTransport || n == max {
				return nil, err
			}
			log.Debug("reasoning call failed, retrying", "attempt", n, "error", err)
			continue
		}

		payload, v := h.Parse(resp.Content)
		if len(v) == 0 {
			return payload, nil
		}
		violations = v
		log.Debug("reply violates schema", "attempt", n, "violations", v,
			"reply", reasoning.Truncate(resp.Content, 200))
	}

	return nil, &SchemaValidationError{
		Capability: h.Capability(),
		Attempts:   res.Attempts,
		Violations: violations,
	}
}

// contextError tells a task timeout apart from cancellation of the caller.
func (d *Dispatcher) contextError(parent, call context.Context, taskID string, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("dispatch %s: %w", taskID, parent.Err())
	}
	if errors.Is(call.Err(), context.DeadlineExceeded) {
		return &TaskTimeoutError{TaskID: taskID, Timeout: d.taskTimeout}
	}
	return fmt.Errorf("dispatch %s: %w", taskID, err)
}

func (d *Dispatcher) cacheKey(log *slog.Logger, task models.Subtask) string {
	if d.cache == nil {
		return ""
	}
	key, err := cache.Key(task.Capability, task.Objective, task.Data)
	if err != nil {
		log.Warn("cannot hash subtask for cache", "error", err)
		return ""
	}
	return key
}

func (d *Dispatcher) lookup(ctx context.Context, log *slog.Logger, key string) (models.Payload, cache.Entry, bool) {
	entry, ok, err := d.cache.Get(ctx, key)
	if err != nil {
		log.Warn("cache read failed", "error", err)
		return nil, cache.Entry{}, false
	}
	if !ok {
		return nil, cache.Entry{}, false
	}
	payload, err := entry.Decode()
	if err != nil {
		log.Warn("discarding undecodable cache entry", "error", err)
		return nil, cache.Entry{}, false
	}
	return payload, entry, true
}

func (d *Dispatcher) store(ctx context.Context, log *slog.Logger, key string, c models.Capability, p models.Payload) {
	entry, err := cache.NewEntry(c, p, d.now())
	if err == nil {
		err = d.cache.Set(ctx, key, entry)
	}
	if err != nil {
		log.Warn("cache write failed", "error", err)
	}
}

func fail(res *models.TaskResult, err error) {
	res.Status = models.TaskStatusFailed
	res.ErrorKind = KindOf(err)
	res.Error = err.Error()
}
