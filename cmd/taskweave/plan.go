package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskweave/internal/decompose"
	"github.com/ShayCichocki/taskweave/internal/report"
)

var (
	planDataPath string
	planOutput   string
)

var planCmd = &cobra.Command{
	Use:   "plan <request>",
	Short: "Decompose a request without running it",
	Long: `Plan decomposes the request and analyzes its dependencies without
dispatching any subtask. The levels are printed to stderr and the plan
file is written to stdout or --output. Edit it and pass it back with
'taskweave run --plan'.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planDataPath, "data", "", "JSON or YAML file with request data")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "", "Write the plan file here instead of stdout")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := loadData(planDataPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := buildSession(ctx, cfg, buildOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	dec, plan, err := rt.orch.Plan(ctx, args[0], data)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.ErrOrStderr(), report.RenderPlan(plan, dec.Subtasks))

	b, err := decompose.MarshalPlan(args[0], dec.Subtasks)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	if planOutput == "" {
		_, err = cmd.OutOrStdout().Write(b)
		return err
	}
	if err := os.WriteFile(planOutput, b, 0644); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "\nPlan written to %s\n", planOutput)
	return nil
}
