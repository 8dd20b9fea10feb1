package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/isdmx/dataagent/config"
	"github.com/isdmx/dataagent/dataset"
	"github.com/isdmx/dataagent/logger"
	"github.com/isdmx/dataagent/sandbox"
)

var (
	execData     string
	execCode     string
	execCodeFile string
	execPNG      string
	execBackend  string
)

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Run one analysis snippet against a local file",
	Long: `Run one analysis snippet against a local dataset file and print its
output. A chart drawn on ax is written to --png when given.

Examples:
  dataagent exec -d sales.csv -c 'print(df["units"].sum())'
  dataagent exec -d sales.csv -f plot.py --png chart.png
  dataagent exec -d sales.csv -f plot.py --backend docker

The command exits with status 2 when the snippet is rejected or fails.`,
	RunE: runExec,
}

func init() {
	execCmd.Flags().StringVarP(&execData, "data", "d", "", "dataset file bound as df (required)")
	execCmd.Flags().StringVarP(&execCode, "code", "c", "", "snippet source")
	execCmd.Flags().StringVarP(&execCodeFile, "file", "f", "", "read the snippet from a file")
	execCmd.Flags().StringVar(&execPNG, "png", "", "write the chart to this path")
	execCmd.Flags().StringVar(&execBackend, "backend", "", "override sandbox.backend")
	_ = execCmd.MarkFlagRequired("data")
	execCmd.MarkFlagsMutuallyExclusive("code", "file")
}

func runExec(cmd *cobra.Command, _ []string) error {
	code := execCode
	if execCodeFile != "" {
		data, err := os.ReadFile(execCodeFile)
		if err != nil {
			return fmt.Errorf("reading snippet: %w", err)
		}
		code = string(data)
	}
	if code == "" {
		return errors.New("either --code or --file is required")
	}

	cfg, err := config.New()
	if err != nil {
		return err
	}
	if execBackend != "" {
		cfg.Sandbox.Backend = execBackend
	}

	log, err := logger.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	table, err := dataset.LoadFile(execData, dataset.LoadOptions{MaxRows: cfg.Dataset.MaxRows})
	if err != nil {
		return err
	}

	executor, err := sandbox.NewExecutor(log, cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := executor.Execute(ctx, sandbox.ExecuteRequest{Code: code, Dataset: table})
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), result.Output)
	if result.State != sandbox.StateSucceeded {
		os.Exit(2)
	}

	if result.HasImage() {
		if execPNG == "" {
			fmt.Fprintln(cmd.ErrOrStderr(), "chart produced, pass --png to save it")
			return nil
		}
		if err := os.WriteFile(execPNG, result.Image, sandbox.FilePermission); err != nil {
			return fmt.Errorf("writing chart: %w", err)
		}
	}
	return nil
}
