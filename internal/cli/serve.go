package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/weather-cache/internal/api/http"
	"github.com/i474232898/weather-cache/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background maintenance jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			sched := scheduler.New(scheduler.Config{
				CleanupInterval: rt.cfg.CleanupInterval,
				CleanupDays:     rt.cfg.CleanupDays,
				WarmCities:      rt.cfg.WarmCities,
				WarmInterval:    rt.cfg.WarmInterval,
			}, rt.service, rt.log)
			if err := sched.Start(); err != nil {
				return err
			}
			defer sched.Stop()

			app := httpapi.NewApp(rt.service, rt.log, httpapi.AppOptions{AccessLog: true})

			errCh := make(chan error, 1)
			go func() {
				rt.log.WithFields(map[string]interface{}{
					"port":     rt.cfg.Port,
					"store":    rt.cfg.Store.Driver,
					"provider": rt.cfg.Provider,
					"ttl":      rt.service.MaxAgeMinutes(),
				}).Infof("weather-cache listening")
				errCh <- app.Listen(":" + rt.cfg.Port)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := app.ShutdownWithContext(shutdownCtx); err != nil {
				rt.log.WithError(err).Errorf("error during shutdown")
			}
			return nil
		},
	}
}
