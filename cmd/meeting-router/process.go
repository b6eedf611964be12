package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"meeting-router-go/internal/pipeline"
	"meeting-router-go/internal/processor"
	"meeting-router-go/internal/watcher"
)

func newProcessCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "process <transcript>",
		Short: "Process a single transcript file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			proc, err := processor.New(cfg, log, nil)
			if err != nil {
				return err
			}

			res := proc.ProcessFile(cmd.Context(), args[0])
			out := cmd.OutOrStdout()
			if opts.output == outputText {
				if res.State == pipeline.Done {
					fmt.Fprint(out, res.Summary)
				}
				printOutcome(cmd, res)
			} else if err := opts.encode(out, res); err != nil {
				return err
			}
			if res.Err != nil {
				return res.Err
			}
			return nil
		},
	}
}

func printOutcome(cmd *cobra.Command, res *processor.Result) {
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "run %s: %s (%d action items, %d tasks failed, %d risk points)\n",
		res.RunID, res.State, res.Insight.TotalItems, res.Insight.TotalItems-res.Insight.TotalCreated, res.Insight.RiskPoints)
	switch {
	case res.Delivered:
		fmt.Fprintln(w, "summary delivered")
	case res.FallbackPath != "":
		fmt.Fprintf(w, "summary saved to %s\n", res.FallbackPath)
	}
	if res.ReportPath != "" {
		fmt.Fprintf(w, "report written to %s\n", res.ReportPath)
	}
	fmt.Fprintf(w, "follow-up: %s\n", res.FollowUp.Action)
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var settle time.Duration
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Process new " + watcher.Pattern + " files as they appear",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			dir := cfg.WatchDir
			if len(args) == 1 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create watch dir: %w", err)
			}
			abs, err := filepath.Abs(dir)
			if err == nil {
				dir = abs
			}

			proc, err := processor.New(cfg, log, nil)
			if err != nil {
				return err
			}
			w, err := watcher.New(dir, func(ctx context.Context, path string) {
				res := proc.ProcessFile(ctx, path)
				log.WithRun(res.RunID, path).WithField("state", res.State).
					WithField("duration_ms", res.DurationMs).Info("transcript processed")
			}, watcher.Options{
				Concurrency: cfg.WatchConcurrency,
				Settle:      settle,
				Logger:      log.Entry,
			})
			if err != nil {
				return err
			}
			return w.Run(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&settle, "settle", 500*time.Millisecond, "wait after a file appears before reading it")
	return cmd
}
