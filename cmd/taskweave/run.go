package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskweave/internal/config"
	"github.com/ShayCichocki/taskweave/internal/orchestrator"
	"github.com/ShayCichocki/taskweave/internal/report"
	"github.com/ShayCichocki/taskweave/pkg/models"
)

var (
	runDataPath    string
	runPlanPath    string
	runPolicy      string
	runConcurrency int
	runMaxCost     float64
	runTimeout     time.Duration
	runJSON        bool
	runQuiet       bool
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Decompose a request and run its subtasks",
	Long: `Run decomposes the request into subtasks, orders them by dependency and
dispatches each level in parallel. Progress is printed as subtasks finish;
the summary, cost report and synthesized answer follow.

Failure policies (--policy):
  continue  Keep running; dependents of a failed subtask see it as missing (default)
  abort     Stop scheduling new levels after the first failure

Use --plan to run a saved plan file (see 'taskweave plan') instead of
asking the reasoning service to decompose the request.`,
	Args: cobra.ExactArgs(1),
	RunE: runRequest,
}

func init() {
	runCmd.Flags().StringVar(&runDataPath, "data", "", "JSON or YAML file with request data")
	runCmd.Flags().StringVar(&runPlanPath, "plan", "", "Run a saved plan file instead of decomposing")
	runCmd.Flags().StringVar(&runPolicy, "policy", "", "Failure policy: continue or abort")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "Maximum subtasks in flight per level")
	runCmd.Flags().Float64Var(&runMaxCost, "max-cost", 0, "Stop scheduling new levels after this many dollars")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Stop scheduling new levels after this long")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the outcome as JSON")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Do not print progress")
}

// applyRunFlags overrides cfg with the flags that were set.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("policy") {
		cfg.Orchestrator.FailurePolicy = runPolicy
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Orchestrator.MaxConcurrency = runConcurrency
	}
	if cmd.Flags().Changed("max-cost") {
		cfg.Orchestrator.MaxCost = runMaxCost
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Orchestrator.RunTimeout = runTimeout
	}
	return cfg.Validate()
}

func runRequest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	data, err := loadData(runDataPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rt, err := buildSession(ctx, cfg, buildOptions{planPath: runPlanPath})
	if err != nil {
		return err
	}
	defer rt.Close()

	h := rt.orch.Start(ctx, args[0], data)

	// First signal halts scheduling, the second cancels in-flight calls.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt, finishing in-flight subtasks... (again to cancel)")
			h.Halt()
		case <-h.Done():
			return
		}
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "Cancelling in-flight subtasks...")
			cancel()
		case <-h.Done():
		}
	}()

	progress := io.Discard
	if !runQuiet && !runJSON {
		progress = os.Stderr
	}
	printProgress(progress, h.Events())

	outcome, err := h.Wait()
	if err != nil {
		return err
	}

	if path := cfg.Metrics.Textfile; path != "" {
		if err := rt.metrics.WriteTextfile(path); err != nil {
			rt.logger.Warn("writing metrics failed", "path", path, "error", err)
		}
	}

	out := cmd.OutOrStdout()
	if runJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcome); err != nil {
			return fmt.Errorf("encode outcome: %w", err)
		}
	} else {
		fmt.Fprint(out, report.NewSummaryView(cfg.Orchestrator.MaxCost).Render(outcome))
	}

	if outcome.Status == models.RunStatusFailed || outcome.Status == models.RunStatusAborted {
		return fmt.Errorf("run %s %s", outcome.RunID, outcome.Status)
	}
	return nil
}

// printProgress prints one line per event until the channel is closed.
func printProgress(w io.Writer, events <-chan orchestrator.Event) {
	for e := range events {
		if line := progressLine(e); line != "" {
			fmt.Fprintln(w, line)
		}
	}
}

func progressLine(e orchestrator.Event) string {
	switch e.Type {
	case orchestrator.EventRunStarted:
		return color.CyanString("▶ run %s started", e.RunID)
	case orchestrator.EventLevelStarted:
		return color.CyanString("• level %d: %s", e.Level, e.Message)
	case orchestrator.EventTaskCompleted:
		return fmt.Sprintf("  %s %s (%s) %s", color.GreenString("✓"), e.TaskID, e.Capability, e.Duration.Round(time.Millisecond))
	case orchestrator.EventTaskFailed:
		return fmt.Sprintf("  %s %s (%s) %s", color.RedString("✗"), e.TaskID, e.Capability, e.Message)
	case orchestrator.EventTaskSkipped:
		return fmt.Sprintf("  %s %s skipped: %s", color.YellowString("⚠"), e.TaskID, e.Message)
	case orchestrator.EventBudgetWarning:
		return color.YellowString("⚠ %s", e.Message)
	case orchestrator.EventRunCompleted:
		return fmt.Sprintf("■ run %s %s ($%.4f)", e.RunID, e.Status, e.Cost)
	default:
		return ""
	}
}
