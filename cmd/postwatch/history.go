package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/aleister1102/postwatch/internal/datastore"
	"github.com/aleister1102/postwatch/internal/models"
	"github.com/spf13/cobra"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <tenant> <name>",
		Short: "Print the latest notification decisions of one monitor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}

			store, err := datastore.NewSQLiteStore(cfg.StorageConfig.SQLitePath, cfg.StorageConfig.BusyTimeoutMs, log)
			if err != nil {
				return fmt.Errorf("could not open store: %w", err)
			}
			defer store.Close()

			return printHistory(cmd.Context(), cmd.OutOrStdout(), store, args[0], args[1], limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of records to show")
	return cmd
}

func printHistory(ctx context.Context, out io.Writer, store models.DispatchHistoryStore, tenantID, name string, limit int) error {
	records, err := store.RecentDispatches(ctx, tenantID, name, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		_, err := fmt.Fprintf(out, "no dispatches recorded for %s/%s\n", tenantID, name)
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSTATUS\tFINGERPRINT\tTITLE\tLINK")
	for _, rec := range records {
		status := "delivered"
		if !rec.Delivered {
			status = "failed: " + rec.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.CreatedAt.UTC().Format(time.RFC3339), status, shortFingerprint(rec.Fingerprint), rec.Title, rec.Link)
	}
	return w.Flush()
}
