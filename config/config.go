package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/pepperworker/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Target site
	BaseURL           string
	AssetURL          string
	SearchURLTemplate string
	GroupURLTemplate  string
	FlightCategoryURL string

	// Fetch policy
	FetchTimeout     time.Duration
	FetchMaxAttempts int
	FetchBackoff     time.Duration
	RateLimitBlock   time.Duration

	// Periodic jobs
	WatchInterval         time.Duration
	CategoryCheckInterval time.Duration
	CategoryRunInterval   time.Duration
	FlightScheduleHour    int
	CleanupInterval       time.Duration
	CleanupRetention      time.Duration

	// Storage
	DatabasePath string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	baseURL := strings.TrimRight(getEnv("PEPPER_BASE_URL", "https://www.pepper.pl"), "/")

	return &Config{
		BaseURL:           baseURL,
		AssetURL:          strings.TrimRight(getEnv("PEPPER_ASSET_URL", "https://static.pepper.pl"), "/"),
		SearchURLTemplate: getEnv("SEARCH_URL_TEMPLATE", baseURL+"/search?q=%s"),
		GroupURLTemplate:  getEnv("GROUP_URL_TEMPLATE", baseURL+"/grupa/%s"),
		FlightCategoryURL: getEnv("FLIGHT_CATEGORY_URL", baseURL+"/grupa/loty"),

		FetchTimeout:     getSeconds("FETCH_TIMEOUT_SECONDS", 15),
		FetchMaxAttempts: getInt("FETCH_MAX_ATTEMPTS", 3),
		FetchBackoff:     getSeconds("FETCH_BACKOFF_SECONDS", 2),
		RateLimitBlock:   getSeconds("RATE_LIMIT_BLOCK_SECONDS", 300),

		WatchInterval:         time.Duration(getInt("WATCH_INTERVAL_MINUTES", 15)) * time.Minute,
		CategoryCheckInterval: getSeconds("CATEGORY_CHECK_SECONDS", 60),
		CategoryRunInterval:   time.Duration(getInt("CATEGORY_RUN_MINUTES", 60)) * time.Minute,
		FlightScheduleHour:    getInt("FLIGHT_SCHEDULE_HOUR", 8),
		CleanupInterval:       time.Duration(getInt("CLEANUP_INTERVAL_HOURS", 24)) * time.Hour,
		CleanupRetention:      time.Duration(getInt("CLEANUP_DAYS_OLD", 30)) * 24 * time.Hour,

		DatabasePath: getEnv("DATABASE_PATH", "./pepper.db"),

		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "pepper"),
		RedisStreamCount:     getInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getInt("REDIS_STREAM_MAX_LENGTH", 1000),

		MemcacheAddr: getEnv("MEMCACHE_ADDR", "localhost:11211"),

		Environment: getEnv("PEPPER_ENVIRONMENT", "development"),
	}
}

// Validate rejects values the workers cannot run with
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return errors.NewConfiguration("PEPPER_BASE_URL is not a valid URL", err)
	}
	if strings.Count(c.SearchURLTemplate, "%s") != 1 {
		return errors.NewConfiguration("SEARCH_URL_TEMPLATE must contain exactly one %s", nil)
	}
	if strings.Count(c.GroupURLTemplate, "%s") != 1 {
		return errors.NewConfiguration("GROUP_URL_TEMPLATE must contain exactly one %s", nil)
	}
	if c.FetchTimeout <= 0 {
		return errors.NewConfiguration("FETCH_TIMEOUT_SECONDS must be positive", nil)
	}
	if c.FetchMaxAttempts < 1 {
		return errors.NewConfiguration("FETCH_MAX_ATTEMPTS must be at least 1", nil)
	}
	if c.WatchInterval <= 0 || c.CategoryCheckInterval <= 0 || c.CategoryRunInterval <= 0 || c.CleanupInterval <= 0 {
		return errors.NewConfiguration("job intervals must be positive", nil)
	}
	if c.CleanupRetention <= 0 {
		return errors.NewConfiguration("CLEANUP_DAYS_OLD must be positive", nil)
	}
	if c.FlightScheduleHour < 0 || c.FlightScheduleHour > 23 {
		return errors.NewConfiguration(fmt.Sprintf("FLIGHT_SCHEDULE_HOUR out of range: %d", c.FlightScheduleHour), nil)
	}
	if c.RedisStreamCount < 1 {
		return errors.NewConfiguration("REDIS_STREAM_COUNT must be at least 1", nil)
	}
	if c.DatabasePath == "" {
		return errors.NewConfiguration("DATABASE_PATH is required", nil)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}

func getSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getInt(key, defaultValue)) * time.Second
}
