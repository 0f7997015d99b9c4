package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/pepperworker/config"
	"sjsage522/pepperworker/internal/category"
	"sjsage522/pepperworker/internal/crawler"
	"sjsage522/pepperworker/internal/matcher"
	"sjsage522/pepperworker/logger"
	"sjsage522/pepperworker/services/cache"
	"sjsage522/pepperworker/services/publisher"
	"sjsage522/pepperworker/services/store"
	"sjsage522/pepperworker/services/worker"

	"github.com/joho/godotenv"
)

const rateLimitKey = "pepper_rate_limited"

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("base_url", cfg.BaseURL).
		Dur("watch_interval", cfg.WatchInterval).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	client := newClient(cfg, services.Cache)

	w := worker.NewWorker(
		matcher.New(services.Store, client, matcher.Config{}),
		category.NewRunner(services.Store, client, category.Config{
			ShouldRun: category.EveryInterval(cfg.CategoryRunInterval),
		}),
		services.Store,
		services.Publisher,
		worker.Config{
			WatchInterval:    cfg.WatchInterval,
			CategoryInterval: cfg.CategoryCheckInterval,
			FlightHour:       cfg.FlightScheduleHour,
			CleanupInterval:  cfg.CleanupInterval,
			Retention:        cfg.CleanupRetention,
		},
	)

	// Start worker in a goroutine
	workerDone := make(chan error, 1)
	go func() {
		log.Info().Msg("Starting pepper worker")
		workerDone <- w.Start(ctx)
	}()

	// Wait for shutdown signal or worker exit
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
		<-workerDone
	case err := <-workerDone:
		if err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Worker exited with error")
		} else {
			log.Info().Msg("Worker exited normally")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
}

// newClient wires the fetcher, extractor and listing URLs
func newClient(cfg *config.Config, cacheSvc cache.CacheService) *crawler.Client {
	fetcher := crawler.NewFetcher(crawler.FetcherConfig{
		Timeout:     cfg.FetchTimeout,
		MaxAttempts: cfg.FetchMaxAttempts,
		BaseDelay:   cfg.FetchBackoff,
		Referer:     cfg.BaseURL + "/",
		Cooldown:    cache.NewCooldown(cacheSvc, rateLimitKey, cfg.RateLimitBlock),
	}, nil)

	return crawler.NewClient(
		fetcher,
		crawler.NewExtractor(cfg.BaseURL, cfg.AssetURL),
		crawler.URLs{
			Base:           cfg.BaseURL,
			SearchTemplate: cfg.SearchURLTemplate,
			GroupTemplate:  cfg.GroupURLTemplate,
			Flights:        cfg.FlightCategoryURL,
		},
	)
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Store     *store.Store
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	services.Store = db

	// The rate limit cooldown is optional; without memcache the fetcher just retries
	memcacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
	if err := memcacheService.Ping(); err != nil {
		logger.ForCache().Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable, rate limit cooldown disabled")
	} else {
		services.Cache = memcacheService
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	}

	redisPublisher := publisher.NewRedisPublisher(
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)
	if err := redisPublisher.Ping(ctx); err != nil {
		services.Cleanup()
		return nil, err
	}
	services.Publisher = redisPublisher

	logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
		cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)

	return services, nil
}
