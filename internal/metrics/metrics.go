// Package metrics exposes run and subtask counters in Prometheus format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ShayCichocki/taskweave/pkg/models"
)

const namespace = "taskweave"

// Collector holds the taskweave metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	tasks        *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	tokens       *prometheus.CounterVec
	cost         *prometheus.CounterVec
	runs         *prometheus.CounterVec
}

// New creates and registers the collector's metrics.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Subtasks by capability and terminal status.",
		}, []string{"capability", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time of dispatched subtasks.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"capability"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Tokens consumed, by direction.",
		}, []string{"direction"}),
		cost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cost_dollars_total",
			Help:      "Dollars spent, by kind (task or overhead).",
		}, []string{"kind"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs by final status.",
		}, []string{"status"}),
	}
	c.registry.MustRegister(c.tasks, c.taskDuration, c.tokens, c.cost, c.runs)
	return c
}

// Registry returns the registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveTask records a terminal subtask result.
func (c *Collector) ObserveTask(r models.TaskResult) {
	capability := string(r.Capability)
	c.tasks.WithLabelValues(capability, string(r.Status)).Inc()
	if r.Status != models.TaskStatusSkipped {
		c.taskDuration.WithLabelValues(capability).Observe(r.Duration.Seconds())
	}
	c.tokens.WithLabelValues("input").Add(float64(r.Usage.InputTokens))
	c.tokens.WithLabelValues("output").Add(float64(r.Usage.OutputTokens))
	c.cost.WithLabelValues("task").Add(r.Usage.Cost)
}

// ObserveRun records a finished run. Task usage is counted by ObserveTask,
// so only overhead is added here.
func (c *Collector) ObserveRun(status models.RunStatus, overhead models.Usage) {
	c.runs.WithLabelValues(string(status)).Inc()
	c.tokens.WithLabelValues("input").Add(float64(overhead.InputTokens))
	c.tokens.WithLabelValues("output").Add(float64(overhead.OutputTokens))
	c.cost.WithLabelValues("overhead").Add(overhead.Cost)
}

// WriteTextfile writes the metrics in text exposition format to path, for
// the node_exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
