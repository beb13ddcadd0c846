package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/taskweave/internal/decompose"
	"github.com/ShayCichocki/taskweave/internal/graph"
	"github.com/ShayCichocki/taskweave/internal/logging"
	"github.com/ShayCichocki/taskweave/internal/metrics"
	"github.com/ShayCichocki/taskweave/internal/synthesis"
	"github.com/ShayCichocki/taskweave/pkg/models"
)

// PhaseSynthesis is the overhead phase of the final narrative call.
const PhaseSynthesis = "synthesis"

// Dispatcher executes one subtask. It must always return a terminal result.
type Dispatcher interface {
	Dispatch(ctx context.Context, task models.Subtask) models.TaskResult
}

// Synthesizer writes the final narrative of a run.
type Synthesizer interface {
	Synthesize(ctx context.Context, request string, results []models.TaskResult) (models.Synthesis, error)
}

// Orchestrator coordinates runs. Runs share no mutable state, so one
// Orchestrator may serve concurrent Submit calls.
type Orchestrator struct {
	cfg         Config
	decomposer  decompose.Decomposer
	dispatcher  Dispatcher
	synthesizer Synthesizer
	rules       graph.RuleTable

	logger      *slog.Logger
	metrics     *metrics.Collector
	eventBuffer int
	now         func() time.Time
}

// New creates an orchestrator.
func New(cfg Config, d decompose.Decomposer, disp Dispatcher, s Synthesizer, opts ...Option) *Orchestrator {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = FailureContinue
	}
	o := &Orchestrator{
		cfg:         cfg,
		decomposer:  d,
		dispatcher:  disp,
		synthesizer: s,
		rules:       graph.DefaultRules,
		logger:      logging.Discard(),
		eventBuffer: DefaultEventBuffer,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Plan decomposes and analyzes a request without dispatching anything.
func (o *Orchestrator) Plan(ctx context.Context, request string, data map[string]any) (*decompose.Decomposition, *models.ExecutionPlan, error) {
	dec, err := o.decompose(ctx, request, data)
	if err != nil {
		return nil, nil, err
	}
	_, plan, err := graph.Analyze(dec.Subtasks, o.rules)
	if err != nil {
		return dec, nil, err
	}
	decompose.AssignPriorities(dec.Subtasks, plan)
	return dec, plan, nil
}

func (o *Orchestrator) decompose(ctx context.Context, request string, data map[string]any) (*decompose.Decomposition, error) {
	dec, err := o.decomposer.Decompose(ctx, request, data)
	if err != nil {
		if !errors.Is(err, decompose.ErrDecomposition) {
			err = &decompose.DecompositionError{Index: -1, Err: err}
		}
		return nil, err
	}
	return dec, nil
}

// Submit runs request end to end and emits no events. Decomposition and
// dependency errors (*decompose.DecompositionError, *graph.CycleError,
// *graph.MissingDependencyError) are returned before anything is
// dispatched. Once dispatch started, subtask failures are reported in the
// outcome and the error is nil.
//
// Cancelling ctx cancels in-flight reasoning calls too. Use Start and
// Handle.Halt to stop scheduling while letting dispatched subtasks finish.
func (o *Orchestrator) Submit(ctx context.Context, request string, data map[string]any) (*models.RunOutcome, error) {
	return o.submit(ctx, o.newRun(request, nil, nil), request, data)
}

func (o *Orchestrator) submit(ctx context.Context, r *run, request string, data map[string]any) (*models.RunOutcome, error) {
	r.log.Info("run started", "policy", o.cfg.FailurePolicy, "max_concurrency", o.cfg.MaxConcurrency)
	r.emit(Event{Type: EventRunStarted, Level: -1, Message: request})

	schedCtx := ctx
	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		schedCtx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	dec, err := o.decompose(schedCtx, request, data)
	if err != nil {
		r.log.Error("decomposition failed", "error", err)
		r.finish(models.RunStatusFailed, err.Error())
		return nil, err
	}
	r.recordPhases(dec.Phases)

	g, plan, err := graph.Analyze(dec.Subtasks, o.rules)
	if err != nil {
		r.log.Error("dependency analysis failed", "error", err)
		r.finish(models.RunStatusFailed, err.Error())
		return nil, err
	}
	decompose.AssignPriorities(dec.Subtasks, plan)
	for _, risk := range plan.RiskFactors {
		r.log.Warn("plan risk", "risk", risk)
	}
	r.log.Info("plan ready", "subtasks", g.Size(), "levels", len(plan.Levels),
		"strategy", plan.Strategy, "graph_confidence", plan.Confidence)

	halted, haltReason := r.execute(ctx, schedCtx, plan, dec.Subtasks)

	agg := synthesis.Collect(plan, r.results)
	status := synthesis.Status(agg.Results, halted)

	synth, err := o.synthesizer.Synthesize(ctx, request, agg.Results)
	r.ledger.RecordOverhead(PhaseSynthesis, synth.Usage)
	if err != nil {
		r.log.Warn("synthesis degraded", "error", err)
	}

	outcome := &models.RunOutcome{
		RunID:      r.id,
		Request:    request,
		Status:     status,
		HaltReason: haltReason,
		Subtasks:   dec.Subtasks,
		Plan:       plan,
		Analysis:   dec.Analysis,
		Results:    agg.Results,
		Synthesis:  synth,
		Cost:       r.ledger.Rollup(),
		Confidence: agg.Confidence,
		Summary:    agg.Summary,
		StartedAt:  r.started,
	}
	outcome.Duration = o.now().Sub(r.started)
	outcome.Summary.Duration = outcome.Duration

	if o.metrics != nil {
		o.metrics.ObserveRun(status, outcome.Cost.Overhead)
	}
	r.finish(status, haltReason)
	return outcome, nil
}

func (r *run) recordPhases(phases map[string]models.Usage) {
	names := make([]string, 0, len(phases))
	for name := range phases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r.ledger.RecordOverhead(name, phases[name])
	}
}

func (r *run) finish(status models.RunStatus, reason string) {
	total := r.ledger.Total()
	r.log.Info("run completed", "status", status, "tokens", total.Tokens(),
		"cost", fmt.Sprintf("$%.4f", total.Cost), "duration", r.o.now().Sub(r.started))
	r.emit(Event{
		Type:     EventRunCompleted,
		Level:    -1,
		Status:   string(status),
		Message:  reason,
		Duration: r.o.now().Sub(r.started),
	})
}

func newRunID() string {
	return uuid.New().String()[:8]
}
