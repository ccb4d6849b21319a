package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/strandlight/sacnd/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded source events",
		Long: `Show the source event history recorded by a running receiver.

Events are listed newest first: sources joining and leaving the
universe and admissions refused at the source ceiling.

Example:
  sacnd history --db /var/lib/sacnd/history.db --limit 50`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to history database (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 100, "maximum number of events to show (0 = all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// historyEntry is the JSON shape of one listed event.
type historyEntry struct {
	Seq      int64  `json:"seq"`
	At       string `json:"at"`
	Universe uint16 `json:"universe"`
	Kind     string `json:"kind"`
	CID      string `json:"cid"`
	Priority uint8  `json:"priority"`
	Winning  uint8  `json:"winning"`
	Sources  int    `json:"sources"`
}

func showHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "history database not found", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open history database", err)
	}
	defer st.Close()

	events, err := st.List(context.Background(), opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}

	if opts.Format == "json" {
		entries := make([]historyEntry, len(events))
		for i, ev := range events {
			entries[i] = historyEntry{
				Seq:      ev.Seq,
				At:       ev.At.Format(time.RFC3339),
				Universe: ev.Universe,
				Kind:     ev.Kind,
				CID:      ev.CID,
				Priority: ev.Priority,
				Winning:  ev.Winning,
				Sources:  ev.Sources,
			}
		}
		f := &Formatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return f.Success(entries)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tAT\tUNIVERSE\tKIND\tCID\tPRIO\tWINNING\tSOURCES")
	for _, ev := range events {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%d\t%d\t%d\n",
			ev.Seq, ev.At.Format(time.RFC3339), ev.Universe, ev.Kind,
			ev.CID, ev.Priority, ev.Winning, ev.Sources)
	}
	return w.Flush()
}
