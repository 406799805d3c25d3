package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-cache/internal/logger"
	"github.com/i474232898/weather-cache/internal/weather"
)

// jobTimeout bounds a single run of either job.
const jobTimeout = 30 * time.Second

// Config controls the maintenance jobs. A zero interval disables a job.
type Config struct {
	CleanupInterval time.Duration
	CleanupDays     int

	WarmCities   []string
	WarmInterval time.Duration
}

// Scheduler runs cache maintenance in the background: an age-based cleanup
// sweep and an optional warm-up that force-refreshes a fixed list of cities.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *weather.Service
	cfg       Config
	log       logger.Logger
}

// New creates a new Scheduler.
func New(cfg Config, service *weather.Service, log logger.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		service:   service,
		cfg:       cfg,
		log:       log.WithField("component", "scheduler"),
	}
}

// Start schedules the configured jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	scheduled := 0

	if s.cfg.CleanupInterval > 0 {
		if _, err := s.scheduler.Every(s.cfg.CleanupInterval).Tag("cleanup").Do(s.RunCleanup); err != nil {
			return err
		}
		scheduled++
	}

	if s.cfg.WarmInterval > 0 && len(s.cfg.WarmCities) > 0 {
		if _, err := s.scheduler.Every(s.cfg.WarmInterval).Tag("warm").Do(s.RunWarmUp); err != nil {
			return err
		}
		scheduled++
	}

	if scheduled == 0 {
		s.log.Infof("no jobs configured; nothing to schedule")
		return nil
	}

	s.scheduler.StartAsync()
	s.log.WithField("jobs", scheduled).Infof("scheduler started")
	return nil
}

// RunCleanup deletes snapshots older than the configured retention.
func (s *Scheduler) RunCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	s.log.Infof("running cache cleanup job")
	n, err := s.service.ClearOldCache(ctx, s.cfg.CleanupDays)
	if err != nil {
		s.log.WithError(err).Errorf("cache cleanup failed")
		return
	}
	s.log.WithField("deleted_count", n).Infof("completed cache cleanup job")
}

// RunWarmUp force-refreshes every warm city concurrently. Failures are
// logged; the service falls back to stale data on its own.
func (s *Scheduler) RunWarmUp() {
	s.log.Infof("running cache warm-up job")

	var wg sync.WaitGroup
	for _, city := range s.cfg.WarmCities {
		city := city
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()

			res, err := s.service.GetWeather(ctx, city, true)
			log := s.log.WithField("city", city)
			switch {
			case err != nil:
				log.WithError(err).Errorf("warm-up failed")
			case res.Stale:
				log.Warnf("warm-up served stale data")
			}
		}()
	}
	wg.Wait()
	s.log.Infof("completed cache warm-up job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
