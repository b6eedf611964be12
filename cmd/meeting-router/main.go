// Command meeting-router turns meeting transcripts into tasks and a posted
// summary, either one file at a time or by watching a directory.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"meeting-router-go/internal/config"
	"meeting-router-go/internal/logger"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configFile string
	logLevel   string
	output     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "meeting-router",
		Short: "Route meeting transcripts to tasks and summaries",
		Long: `meeting-router reads meeting transcripts, extracts action items and decisions,
creates one task per action item, flags decisions discussed with negative
sentiment, and posts a markdown summary.

Examples:
  # Process one transcript
  meeting-router process ./transcripts/meeting_transcript_0412.txt

  # Watch a directory for new meeting_transcript_*.txt files
  meeting-router watch ./transcripts

  # List tasks written to the markdown ledger
  meeting-router ledger -o json`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (default $MEETING_ROUTER_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "output format: text, json, yaml")

	cmd.AddCommand(newProcessCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newLedgerCommand(opts))
	return cmd
}

// load reads configuration and builds the logger at the configured level.
// The --log-level flag wins over the config file and environment.
func (o *rootOptions) load() (*config.Config, *logger.Logger, error) {
	boot := logger.NewWithLevel(o.logLevel)
	boot.Logger.SetOutput(os.Stderr)
	cfg, err := config.Load(o.configFile, boot.Entry)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	log := logger.NewWithLevel(level)
	// stdout carries the summary or encoded output
	log.Logger.SetOutput(os.Stderr)
	return cfg, log, nil
}

func (o *rootOptions) encode(w io.Writer, v any) error {
	switch o.output {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format %q", o.output)
	}
}
