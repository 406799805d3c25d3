package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/i474232898/weather-cache/internal/logger"
	"github.com/i474232898/weather-cache/internal/weather"
)

type fixture struct {
	attrs weather.WeatherAttributes
	age   time.Duration
}

// demoFixtures mixes fresh and stale entries against the default TTL.
var demoFixtures = []fixture{
	{weather.WeatherAttributes{City: "London", Country: "United Kingdom", Temperature: 15.0,
		Condition: "Partly cloudy", Humidity: 65, WindSpeed: 12.5}, time.Hour},
	{weather.WeatherAttributes{City: "Paris", Country: "France", Temperature: 18.0,
		Condition: "Sunny", Humidity: 45, WindSpeed: 8.0}, 2 * time.Hour},
	{weather.WeatherAttributes{City: "New York", Country: "United States", Temperature: 22.0,
		Condition: "Clear", Humidity: 55, WindSpeed: 15.0}, 30 * time.Minute},
	{weather.WeatherAttributes{City: "Tokyo", Country: "Japan", Temperature: 25.0,
		Condition: "Humid", Humidity: 75, WindSpeed: 10.0}, 45 * time.Minute},
}

// SeedFixtures writes the demo cities through a CacheManager whose clock is
// backdated per fixture, so LastUpdated and CreatedAt both reflect the age.
func SeedFixtures(ctx context.Context, st weather.RecordStore, now time.Time, log logger.Logger) (int, error) {
	for _, f := range demoFixtures {
		at := now.Add(-f.age)
		attrs := f.attrs
		attrs.LastUpdated = at.Format("2006-01-02 15:04")

		cm := weather.NewCacheManager(st, func() time.Time { return at }, log)
		if _, err := cm.SaveFromFetch(ctx, attrs); err != nil {
			return 0, fmt.Errorf("seeding %s: %w", attrs.City, err)
		}
	}
	return len(demoFixtures), nil
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo cities with backdated timestamps",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()

			n, err := SeedFixtures(cmd.Context(), rt.store, time.Now(), rt.log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d cities.\n", n)
			return nil
		},
	}
}
