package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kestrel-qa/testpilot/logger"
	"github.com/kestrel-qa/testpilot/plan"
	"github.com/kestrel-qa/testpilot/workflow"
)

var (
	runTarget string
)

var runCmd = &cobra.Command{
	Use:   "run [objective]",
	Short: "Run a single test workflow from the command line",
	Long:  `Plans, generates, validates and executes a browser test for the given objective without queueing a job.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWorkflow,
}

func init() {
	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path")
	runCmd.Flags().StringVarP(&runTarget, "target", "t", "", "target URL for the test")
	rootCmd.AddCommand(runCmd)
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewLogrusLogger(cfg.Log.Level)

	store, err := newBlobStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	orchestrator, err := newOrchestrator(cfg, store, log)
	if err != nil {
		return fmt.Errorf("failed to initialize workflow: %w", err)
	}

	objective := plan.Objective{
		Text:   strings.Join(args, " "),
		Target: runTarget,
	}

	report, runErr := orchestrator.Run(ctx, objective)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(report)
	}
	if runErr != nil {
		return fmt.Errorf("workflow failed: %w", runErr)
	}

	// Outcome is the exit signal for CI callers: anything other than a
	// passing run is a non-zero exit.
	if report.Outcome != workflow.OutcomeAcceptedAndPassed {
		return fmt.Errorf("workflow finished with outcome %s", report.Outcome)
	}

	return nil
}
