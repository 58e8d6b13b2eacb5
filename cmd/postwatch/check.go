package main

import (
	"fmt"

	"github.com/aleister1102/postwatch/internal/fingerprint"
	"github.com/aleister1102/postwatch/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func newCheckCommand(opts *rootOptions) *cobra.Command {
	var (
		all      bool
		noRender bool
	)

	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Crawl a page once and print what would be posted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if noRender {
				cfg.HeadlessBrowserConfig.Enabled = false
			}

			renderer, crawler := newCrawler(cfg, metrics.NewMetrics(prometheus.NewRegistry()), log)
			defer renderer.Close()

			candidates, err := crawler.Crawl(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			newest, ok := fingerprint.Newest(candidates)
			if !ok {
				fmt.Fprintln(out, "No posts found on the page.")
				return nil
			}
			fmt.Fprintf(out, "Newest post\n  title: %s\n  link:  %s\n  image: %s\n  fingerprint: %s\n",
				newest.Title, newest.Link, newest.Image, fingerprint.Of(newest))

			if all {
				fmt.Fprintf(out, "\nAll %d candidates:\n", len(candidates))
				for i, c := range candidates {
					fmt.Fprintf(out, "%3d. %s <%s>\n", i+1, c.Title, c.Link)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Print every extracted candidate")
	cmd.Flags().BoolVar(&noRender, "no-render", false, "Skip the headless browser phase")
	return cmd
}
