package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show item and source counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		svc, st, err := buildService(cfg, nil)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := svc.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Total items:\t%d\n", stats.TotalItems)
		fmt.Fprintf(w, "Active items:\t%d\n", stats.ActiveItems)
		for category, count := range stats.ByCategory {
			fmt.Fprintf(w, "  %s:\t%d\n", category, count)
		}
		fmt.Fprintf(w, "Sources:\t%d (%d enabled)\n", stats.TotalSources, stats.EnabledSources)
		if stats.LastRefreshAt != nil {
			fmt.Fprintf(w, "Last refresh:\t%s\n", stats.LastRefreshAt.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Fprintf(w, "Last refresh:\tnever\n")
		}
		return w.Flush()
	},
}
