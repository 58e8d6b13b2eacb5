package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/aleister1102/postwatch/internal/datastore"
	"github.com/spf13/cobra"
)

func newListCommand(opts *rootOptions) *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the stored monitors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}

			store, err := datastore.NewSQLiteStore(cfg.StorageConfig.SQLitePath, cfg.StorageConfig.BusyTimeoutMs, log)
			if err != nil {
				return fmt.Errorf("could not open store: %w", err)
			}
			defer store.Close()

			configs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TENANT\tNAME\tURL\tDESTINATION\tINTERVAL\tFINGERPRINT")
			for _, c := range configs {
				if tenantID != "" && c.TenantID != tenantID {
					continue
				}
				fp := "-"
				if c.LastFingerprint != nil {
					fp = shortFingerprint(*c.LastFingerprint)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", c.TenantID, c.Name, c.URL, c.Destination, c.Interval(), fp)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Only show monitors of this tenant (guild ID)")
	return cmd
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
