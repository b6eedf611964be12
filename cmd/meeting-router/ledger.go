package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"meeting-router-go/internal/tasks"
)

func newLedgerCommand(opts *rootOptions) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "ledger [file]",
		Short: "List tasks recorded in the markdown ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, _, err := opts.load()
				if err != nil {
					return err
				}
				path = cfg.MarkdownFile
			}

			entries, err := tasks.ReadLedger(path)
			if err != nil {
				return fmt.Errorf("read ledger: %w", err)
			}
			if owner != "" {
				kept := entries[:0]
				for _, e := range entries {
					if e.Owner == owner {
						kept = append(kept, e)
					}
				}
				entries = kept
			}

			out := cmd.OutOrStdout()
			if opts.output != outputText {
				return opts.encode(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No tasks found.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tOWNER\tCREATED\tTASK")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Owner, e.Created.Format("2006-01-02 15:04"), e.Task)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "only list tasks owned by this person")
	return cmd
}
