package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/i474232898/weather-cache/internal/config"
	"github.com/i474232898/weather-cache/internal/logger"
	"github.com/i474232898/weather-cache/internal/store"
	"github.com/i474232898/weather-cache/internal/weather"
	"github.com/i474232898/weather-cache/internal/weather/providers"
)

var (
	version = "dev"
	commit  = "none"
)

// NewRootCmd builds the weather-cache command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "weather-cache",
		Short: "Caching front for a current-weather API",
		Long: `weather-cache serves current weather per city from a local cache,
refreshing from the upstream weather API when the cached copy is older than
the configured TTL and falling back to the last known data when the API fails.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newCleanupCmd(),
		newStatsCmd(),
		newSeedCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "weather-cache %s (commit: %s)\n", version, commit)
			},
		},
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// SetVersionInfo is called from main with build-time values.
func SetVersionInfo(v, c string) {
	version = v
	commit = c
}

// deps is everything a command needs, built from configuration.
type deps struct {
	cfg     *config.AppConfig
	log     logger.Logger
	store   weather.RecordStore
	service *weather.Service
}

// setup loads configuration and opens the store. The upstream client is only
// built when withUpstream is set, so maintenance commands run without an API key.
func setup(ctx context.Context, withUpstream bool) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log := logger.New(cfg.LogLevel, cfg.Env)

	var upstream weather.UpstreamClient
	if withUpstream {
		upstream, err = newUpstream(cfg, log)
		if err != nil {
			return nil, err
		}
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}

	svc := weather.NewService(st, upstream, cfg.CacheMaxAgeMinutes, weather.WithLogger(log))
	return &deps{cfg: cfg, log: log, store: st, service: svc}, nil
}

func (r *deps) Close() {
	if err := r.store.Close(); err != nil {
		r.log.WithError(err).Warnf("closing store")
	}
}

func newUpstream(cfg *config.AppConfig, log logger.Logger) (weather.UpstreamClient, error) {
	pcfg := providers.Config{
		HTTPClient:        &http.Client{Timeout: cfg.HTTPTimeout},
		APIKey:            cfg.APIKey(),
		MaxRetries:        cfg.MaxRetries,
		RequestsPerSecond: cfg.RateLimit,
		Logger:            log,
	}

	if cfg.Provider == config.ProviderOpenWeather {
		c, err := providers.NewOpenWeatherClient(pcfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	pcfg.BaseURL = cfg.WeatherAPIURL
	c, err := providers.NewWeatherAPIClient(pcfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}
