package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/i474232898/weather-cache/internal/weather"
)

func newCleanupCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete cached cities first stored more than --days ago",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()

			if !cmd.Flags().Changed("days") {
				days = rt.cfg.CleanupDays
			}
			if days < 0 {
				return fmt.Errorf("--days must not be negative")
			}

			n, err := rt.service.ClearOldCache(cmd.Context(), days)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if n == 0 {
				fmt.Fprintln(out, "Nothing to clean up.")
			} else {
				fmt.Fprintf(out, "Removed %d cached cities older than %d days.\n", n, days)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "days of cache to keep")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()

			stats, err := rt.service.GetCacheStats(cmd.Context())
			if err != nil {
				return err
			}
			snapshots, err := rt.store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing cached cities: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Store: %s\n", rt.cfg.Store.Driver)
			fmt.Fprintf(out, "Cached cities: %d\n", stats.TotalCachedCities)
			fmt.Fprintf(out, "Fresh: %d\n", stats.FreshCacheEntries)
			fmt.Fprintf(out, "Stale: %d\n", stats.StaleCacheEntries)
			fmt.Fprintf(out, "TTL: %d minutes\n", stats.CacheMaxAgeMinutes)

			if len(snapshots) == 0 {
				return nil
			}

			cm := rt.service.Cache()
			fmt.Fprintln(out)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CITY\tCOUNTRY\tTEMP\tAGE (MIN)\tFRESH\tLAST UPDATED")
			for _, s := range snapshots {
				fmt.Fprintf(tw, "%s\t%s\t%.1f\t%d\t%t\t%s\n",
					s.City, s.Country, s.Temperature, cm.AgeMinutes(s),
					cm.IsFresh(s, stats.CacheMaxAgeMinutes),
					s.LastUpdated.Format(weather.TimestampLayout))
			}
			return tw.Flush()
		},
	}
}
