package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/taskweave/internal/cost"
	"github.com/ShayCichocki/taskweave/internal/logging"
	"github.com/ShayCichocki/taskweave/pkg/models"
)

// run is the state of one submission. Only the scheduling goroutine adds
// results; workers of the level being executed write their own slot and
// flip their entry to running under mu.
type run struct {
	o       *Orchestrator
	id      string
	started time.Time
	log     *slog.Logger
	ledger  *cost.Ledger
	budget  *cost.Budget
	events  *EventEmitter
	halt    <-chan struct{}
	tasks   map[string]models.Subtask

	mu      sync.Mutex
	results map[string]models.TaskResult
}

// newRun creates the state of one submission. events and halt may be nil.
func (o *Orchestrator) newRun(request string, events *EventEmitter, halt <-chan struct{}) *run {
	id := newRunID()
	ledger := cost.NewLedger()
	budget := cost.NewBudget(o.cfg.MaxCost, ledger)
	budget.SetWarningThreshold(o.cfg.BudgetWarning)
	r := &run{
		o:       o,
		id:      id,
		started: o.now(),
		log:     logging.WithRun(o.logger, id),
		ledger:  ledger,
		budget:  budget,
		events:  events,
		halt:    halt,
		results: make(map[string]models.TaskResult),
	}
	if events != nil {
		events.logger = r.log
	}
	return r
}

func (r *run) emit(e Event) {
	if r.events == nil {
		return
	}
	e.RunID = r.id
	e.Timestamp = r.o.now()
	e.Cost = r.ledger.Total().Cost
	r.events.Emit(e)
}

// halted reports whether Halt was called on the run's handle.
func (r *run) halted() bool {
	select {
	case <-r.halt:
		return true
	default:
		return false
	}
}

// status returns the current status of a subtask.
func (r *run) status(id string) models.TaskStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[id].Status
}

func (r *run) setRunning(t models.Subtask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[t.ID] = models.TaskResult{
		TaskID:     t.ID,
		Capability: t.Capability,
		Status:     models.TaskStatusRunning,
		StartedAt:  r.o.now(),
	}
}

// execute dispatches the plan level by level. ctx is the caller's context
// and is handed to workers. schedCtx carries the run timeout and, like the
// halt signal, is only consulted between levels, so in-flight subtasks are
// never cut short by it.
func (r *run) execute(ctx, schedCtx context.Context, plan *models.ExecutionPlan, subtasks []models.Subtask) (halted bool, reason string) {
	r.tasks = make(map[string]models.Subtask, len(subtasks))
	for _, t := range subtasks {
		r.tasks[t.ID] = t
		r.results[t.ID] = models.TaskResult{TaskID: t.ID, Capability: t.Capability, Status: models.TaskStatusPending}
	}

	var abortedBy string
	for li, level := range plan.Levels {
		if skip, why := r.stopReason(ctx, schedCtx, abortedBy); skip != "" {
			r.log.Warn("halting run", "reason", why, "unscheduled_levels", len(plan.Levels)-li)
			r.skipFrom(plan, li, skip)
			return true, why
		}

		failed := r.runLevel(ctx, li, level)
		if len(failed) > 0 && r.o.cfg.FailurePolicy == FailureAbort && abortedBy == "" {
			abortedBy = failed[0]
		}

		if r.budget.ShouldWarn() {
			spent, limit, frac := r.budget.GetUsage()
			r.log.Warn("budget warning", "spent", spent, "limit", limit, "fraction", frac)
			r.emit(Event{
				Type:    EventBudgetWarning,
				Level:   li,
				Message: fmt.Sprintf("$%.4f of $%.2f spent (%.0f%%)", spent, limit, frac*100),
			})
		}
	}
	return false, ""
}

// stopReason returns the skip reason and a description when no further
// level may be scheduled.
func (r *run) stopReason(ctx, schedCtx context.Context, abortedBy string) (string, string) {
	switch {
	case abortedBy != "":
		return models.SkipReasonUpstreamFailure, fmt.Sprintf("task %s failed under abort policy", abortedBy)
	case r.halted():
		return models.SkipReasonHalted, "halted on request"
	case ctx.Err() != nil:
		return models.SkipReasonCancelled, "cancelled: " + ctx.Err().Error()
	case errors.Is(schedCtx.Err(), context.DeadlineExceeded):
		return models.SkipReasonRunTimeout, fmt.Sprintf("run timeout of %s elapsed", r.o.cfg.RunTimeout)
	case !r.budget.CanStartNew():
		r.budget.OnExhausted()
		spent, limit, _ := r.budget.GetUsage()
		return models.SkipReasonBudgetExhausted, fmt.Sprintf("budget of $%.2f exhausted ($%.4f spent)", limit, spent)
	}
	return "", ""
}

// runLevel dispatches one level and waits for all of its subtasks. It
// returns the ids of the subtasks that failed, in submission order.
func (r *run) runLevel(ctx context.Context, li int, level []string) []string {
	ordered := r.byPriority(level)
	r.log.Info("level started", "level", li, "subtasks", len(ordered))
	r.emit(Event{Type: EventLevelStarted, Level: li, Message: fmt.Sprintf("%d subtask(s)", len(ordered))})

	// Payloads are built before any worker starts, from results of
	// earlier levels only.
	prepared := make([]models.Subtask, len(ordered))
	for i, t := range ordered {
		prepared[i] = r.withDependencies(t)
	}

	slots := make([]models.TaskResult, len(prepared))
	var g errgroup.Group
	g.SetLimit(r.o.cfg.MaxConcurrency)
	for i, t := range prepared {
		g.Go(func() error {
			r.setRunning(t)
			r.emit(Event{Type: EventTaskStarted, Level: li, TaskID: t.ID, Capability: t.Capability,
				Status: string(models.TaskStatusRunning), Message: t.Objective})
			slots[i] = r.o.dispatcher.Dispatch(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	var failed []string
	for i, res := range slots {
		res = terminal(prepared[i], res)
		r.record(li, res)
		if res.Status == models.TaskStatusFailed {
			failed = append(failed, res.TaskID)
		}
	}

	r.log.Info("level completed", "level", li, "failed", len(failed))
	r.emit(Event{Type: EventLevelCompleted, Level: li, Message: fmt.Sprintf("%d failed", len(failed))})
	return failed
}

// byPriority returns the level's subtasks with higher priorities first.
// Ties keep decomposition order.
func (r *run) byPriority(level []string) []models.Subtask {
	out := make([]models.Subtask, 0, len(level))
	for _, id := range level {
		out = append(out, r.tasks[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.Rank() > out[j].Priority.Rank()
	})
	return out
}

// withDependencies returns a copy of t whose data also carries the outputs
// of its prerequisites. A prerequisite without a result is passed as a
// missing marker.
func (r *run) withDependencies(t models.Subtask) models.Subtask {
	if len(t.DependsOn) == 0 {
		return t
	}
	deps := make([]models.DependencyOutput, 0, len(t.DependsOn))
	for _, id := range t.DependsOn {
		res := r.results[id]
		out := models.DependencyOutput{
			TaskID:     id,
			Objective:  r.tasks[id].Objective,
			Capability: r.tasks[id].Capability,
			Status:     res.Status,
		}
		if res.Succeeded() {
			out.Result = res.Payload
			out.Confidence = res.Confidence
		} else {
			out.Missing = true
			out.Kind = res.ErrorKind
			out.Reason = res.Error
			if res.SkipReason != "" {
				out.Reason = res.SkipReason
			}
		}
		deps = append(deps, out)
	}
	return t.WithData(map[string]any{models.DependencyResultsKey: deps})
}

// terminal guards against dispatchers returning a non-terminal result.
func terminal(t models.Subtask, res models.TaskResult) models.TaskResult {
	if res.TaskID == "" {
		res.TaskID = t.ID
	}
	if res.Capability == "" {
		res.Capability = t.Capability
	}
	if !res.Status.Terminal() || (res.Status == models.TaskStatusComplete && res.Payload == nil) {
		res.Status = models.TaskStatusFailed
		res.ErrorKind = models.ErrorKindInternal
		if res.Error == "" {
			res.Error = "dispatcher returned no terminal result"
		}
	}
	return res
}

func (r *run) record(li int, res models.TaskResult) {
	r.ledger.Record(res.TaskID, res.Capability, res.Usage)
	r.mu.Lock()
	r.results[res.TaskID] = res
	r.mu.Unlock()
	if r.o.metrics != nil {
		r.o.metrics.ObserveTask(res)
	}

	log := logging.WithTask(r.log, res.TaskID, string(res.Capability))
	e := Event{
		Level:      li,
		TaskID:     res.TaskID,
		Capability: res.Capability,
		Status:     string(res.Status),
		Duration:   res.Duration,
	}
	switch res.Status {
	case models.TaskStatusComplete:
		log.Info("subtask completed", "confidence", res.Confidence, "attempts", res.Attempts,
			"cached", res.Cached, "cost", res.Usage.Cost, "duration", res.Duration)
		e.Type = EventTaskCompleted
	case models.TaskStatusSkipped:
		log.Info("subtask skipped", "reason", res.SkipReason)
		e.Type = EventTaskSkipped
		e.Message = res.SkipReason
	default:
		log.Warn("subtask failed", "kind", res.ErrorKind, "error", res.Error, "attempts", res.Attempts)
		e.Type = EventTaskFailed
		e.Message = res.Error
	}
	r.emit(e)
}

// skipFrom marks every subtask of levels from..end as skipped.
func (r *run) skipFrom(plan *models.ExecutionPlan, from int, reason string) {
	for li := from; li < len(plan.Levels); li++ {
		for _, id := range plan.Levels[li] {
			res := models.TaskResult{
				TaskID:     id,
				Capability: r.tasks[id].Capability,
				Status:     models.TaskStatusSkipped,
				SkipReason: reason,
			}
			if reason == models.SkipReasonCancelled {
				res.ErrorKind = models.ErrorKindCancelled
			}
			r.record(li, res)
		}
	}
}
