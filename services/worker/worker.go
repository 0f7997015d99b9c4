package worker

import (
	"context"
	"sync"
	"time"

	"sjsage522/pepperworker/helpers"
	"sjsage522/pepperworker/internal/category"
	"sjsage522/pepperworker/internal/matcher"
	"sjsage522/pepperworker/logger"
	"sjsage522/pepperworker/services/publisher"
	"sjsage522/pepperworker/services/store"
)

// AlertSweeper runs one alert sweep
type AlertSweeper interface {
	Sweep(ctx context.Context) (*matcher.SweepResult, error)
}

// DigestRunner builds category and flight digests
type DigestRunner interface {
	Sweep(ctx context.Context) ([]category.Digest, error)
	Flights(ctx context.Context, manual bool) (*category.Digest, error)
}

// Cleaner prunes old ledger rows
type Cleaner interface {
	Cleanup(ctx context.Context, cutoff time.Time) (*store.CleanupResult, error)
}

// Config holds the schedule of the periodic jobs
type Config struct {
	WatchInterval    time.Duration
	CategoryInterval time.Duration
	FlightHour       int
	CleanupInterval  time.Duration
	Retention        time.Duration
	// Location of the flight schedule hour. Default: time.Local.
	Location *time.Location
}

// Worker runs the alert, category, flight and cleanup jobs and publishes their output
type Worker struct {
	alerts     AlertSweeper
	digests    DigestRunner
	cleaner    Cleaner
	publisher  publisher.Publisher
	dispatcher *publisher.Dispatcher
	config     Config
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewWorker creates a new worker
func NewWorker(
	alerts AlertSweeper,
	digests DigestRunner,
	cleaner Cleaner,
	pub publisher.Publisher,
	cfg Config,
) *Worker {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Worker{
		alerts:     alerts,
		digests:    digests,
		cleaner:    cleaner,
		publisher:  pub,
		dispatcher: publisher.NewDispatcher(pub),
		config:     cfg,
		now:        time.Now,
		sleep:      helpers.Sleep,
	}
}

// Start runs every job in its own goroutine until ctx is cancelled
func (w *Worker) Start(ctx context.Context) error {
	log := logger.ForWorker()

	jobs := []struct {
		name string
		run  func(ctx context.Context)
		next func() time.Duration
	}{
		{"alerts", w.RunAlerts, w.every(w.config.WatchInterval)},
		{"categories", w.RunCategories, w.every(w.config.CategoryInterval)},
		{"cleanup", w.RunCleanup, w.every(w.config.CleanupInterval)},
	}

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Str("job", job.name).Msg("Job started")
			for {
				job.run(ctx)
				if err := w.sleep(ctx, job.next()); err != nil {
					return
				}
			}
		}()
	}

	// The flight report waits for its hour before the first run
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("job", "flights").Int("hour", w.config.FlightHour).Msg("Job started")
		for {
			if err := w.sleep(ctx, w.untilFlightHour()); err != nil {
				return
			}
			w.RunFlights(ctx)
		}
	}()

	wg.Wait()
	logger.LogInfo("worker", "All jobs stopped")
	return ctx.Err()
}

func (w *Worker) every(d time.Duration) func() time.Duration {
	return func() time.Duration { return d }
}

func (w *Worker) untilFlightHour() time.Duration {
	now := w.now().In(w.config.Location)
	return NextDaily(now, w.config.FlightHour).Sub(now)
}

// NextDaily returns the first time strictly after now at hour:00 in now's location
func NextDaily(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunAlerts runs one alert sweep and publishes its notifications
func (w *Worker) RunAlerts(ctx context.Context) {
	log := logger.ForWorker().WithStr("job", "alerts")
	start := w.now()

	result, err := w.alerts.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Alert sweep failed")
		return
	}

	published, err := w.dispatcher.PublishNotifications(ctx, result.Notifications)
	if err != nil {
		log.Warn().Err(err).Int("published", published).Int("total", len(result.Notifications)).Msg("Some notifications were not published")
	}
	w.trim(ctx)

	log.Info().
		Int("queries", result.Queries).
		Int("notifications", published).
		Dur("elapsed", w.now().Sub(start)).
		Msg("Alert sweep published")
}

// RunCategories runs one category sweep and publishes its digests
func (w *Worker) RunCategories(ctx context.Context) {
	log := logger.ForWorker().WithStr("job", "categories")

	digests, err := w.digests.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Category sweep failed")
	}
	if len(digests) == 0 {
		return
	}

	for _, d := range digests {
		w.dispatcher.PublishDigest(ctx, d)
	}
	w.trim(ctx)
	log.Info().Int("digests", len(digests)).Msg("Category digests published")
}

// RunFlights builds and publishes the daily flight report
func (w *Worker) RunFlights(ctx context.Context) {
	log := logger.ForWorker().WithStr("job", "flights")

	digest, err := w.digests.Flights(ctx, false)
	if err != nil {
		log.Error().Err(err).Msg("Flight digest failed")
		return
	}
	if digest == nil {
		return
	}

	if err := w.dispatcher.PublishDigest(ctx, *digest); err == nil {
		log.Info().Int("deals", len(digest.Deals)).Msg("Flight digest published")
	}
	w.trim(ctx)
}

// RunCleanup removes ledger rows older than the retention window
func (w *Worker) RunCleanup(ctx context.Context) {
	if _, err := w.cleaner.Cleanup(ctx, w.now().Add(-w.config.Retention)); err != nil {
		logger.ForWorker().Error().Err(err).Str("job", "cleanup").Msg("Cleanup failed")
	}
}

func (w *Worker) trim(ctx context.Context) {
	if err := w.publisher.TrimStreams(ctx); err != nil {
		logger.LogError("worker", err, "Stream trimming failed")
	}
}
