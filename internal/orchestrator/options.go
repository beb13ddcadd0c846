package orchestrator

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ShayCichocki/taskweave/internal/graph"
	"github.com/ShayCichocki/taskweave/internal/metrics"
)

// FailurePolicy decides what a failed subtask does to the rest of the run.
type FailurePolicy string

const (
	// FailureContinue records the failure and keeps scheduling levels.
	FailureContinue FailurePolicy = "continue"
	// FailureAbort stops scheduling after the level in which a subtask failed.
	FailureAbort FailurePolicy = "abort"
)

// ParseFailurePolicy parses "continue" or "abort". Empty means continue.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailureContinue:
		return FailureContinue, nil
	case FailureAbort:
		return FailureAbort, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want continue or abort)", s)
	}
}

// DefaultMaxConcurrency bounds concurrent dispatches within a level.
const DefaultMaxConcurrency = 8

// DefaultEventBuffer is the event channel size of a started run.
const DefaultEventBuffer = 256

// Config holds the run limits.
type Config struct {
	// MaxConcurrency bounds concurrent subtasks within a level.
	MaxConcurrency int
	FailurePolicy  FailurePolicy
	// RunTimeout stops scheduling new levels once elapsed. Zero disables it.
	RunTimeout time.Duration
	// MaxCost in dollars stops scheduling new levels once reached. Zero
	// disables it.
	MaxCost float64
	// BudgetWarning is the fraction of MaxCost that triggers a warning.
	BudgetWarning float64
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: DefaultMaxConcurrency,
		FailurePolicy:  FailureContinue,
		BudgetWarning:  0.8,
	}
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*Orchestrator)

// WithRules replaces the capability rule table used by the analyzer.
func WithRules(rules graph.RuleTable) Option {
	return func(o *Orchestrator) { o.rules = rules }
}

// WithLogger sets the logger. Each run derives its own child logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records task and run metrics in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *Orchestrator) { o.metrics = c }
}

// WithEventBuffer sizes the event channel of each run started with Start.
func WithEventBuffer(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.eventBuffer = n
		}
	}
}

// withClock overrides time.Now in tests.
func withClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}
