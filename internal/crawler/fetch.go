package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"sjsage522/pepperworker/helpers"
	"sjsage522/pepperworker/logger"
	"sjsage522/pepperworker/pkg/errors"
	"sjsage522/pepperworker/services/cache"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultMaxAttempts  = 3
	defaultBaseDelay    = 2 * time.Second
	defaultMaxBodyBytes = 10 << 20
)

// FetcherConfig configures the page fetcher
type FetcherConfig struct {
	// Timeout bounds every single request. Default: 15s.
	Timeout time.Duration
	// MaxAttempts caps transient retries. Default: 3.
	MaxAttempts int
	// BaseDelay is multiplied by the attempt number between retries. Default: 2s.
	BaseDelay time.Duration
	// MaxBodyBytes rejects larger responses instead of truncating them. Default: 10 MiB.
	MaxBodyBytes int64
	// Referer sent with every request
	Referer string
	// Cooldown, when set, short-circuits requests after the source rate limited us
	Cooldown *cache.Cooldown
}

func (c *FetcherConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultFetchTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
}

// Fetcher issues GET requests with retry, linear backoff and failure classification
type Fetcher struct {
	client *http.Client
	config FetcherConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a Fetcher. A nil client gets a fresh one with the configured timeout.
func NewFetcher(cfg FetcherConfig, client *http.Client) *Fetcher {
	cfg.defaults()
	if client == nil {
		client = &http.Client{}
	}
	client.Timeout = cfg.Timeout

	return &Fetcher{
		client: client,
		config: cfg,
		sleep:  helpers.Sleep,
	}
}

// Fetch returns the UTF-8 page body for url.
// Bodies larger than MaxBodyBytes fail with a parsing error and are not retried.
// Transient failures are retried; once the attempt cap is hit the result is a
// max_retries error wrapping the last failure. Other statuses fail at once.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	log := logger.ForFetcher().WithStr("url", url)

	if f.config.Cooldown.Active() {
		return "", errors.NewRateLimit("fetcher", f.config.Cooldown.Duration())
	}

	var lastErr error
	for attempt := 1; attempt <= f.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(attempt-1) * f.config.BaseDelay
			if err := f.sleep(ctx, delay); err != nil {
				return "", errors.NewNetwork("fetcher", "fetch interrupted", err)
			}
		}

		log.Debug().Int("attempt", attempt).Int("max_attempts", f.config.MaxAttempts).Msg("Fetching page")

		body, err := f.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}

		if ctx.Err() != nil {
			return "", errors.NewNetwork("fetcher", "fetch interrupted", ctx.Err())
		}
		if !errors.IsRetryable(err) {
			log.Warn().Err(err).Msg("Permanent fetch failure")
			return "", err
		}

		log.Warn().Err(err).Int("attempt", attempt).Msg("Transient fetch failure")
		lastErr = err
	}

	if errors.Is(lastErr, errors.ErrorTypeRateLimit) {
		if err := f.config.Cooldown.Start(); err != nil {
			log.Warn().Err(err).Msg("Rate limit cooldown not stored")
		}
	}

	log.Error().Err(lastErr).Int("attempts", f.config.MaxAttempts).Msg("Giving up on page")
	return "", errors.NewMaxRetries("fetcher", f.config.MaxAttempts, lastErr)
}

// fetchOnce performs a single request and classifies its failure
func (f *Fetcher) fetchOnce(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.NewParsing("fetcher", "failed to create request", err)
	}
	helpers.SetBrowserHeaders(req, f.config.Referer)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.NewStatus("fetcher", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes+1))
	if err != nil {
		return "", classifyTransportError(err)
	}
	if int64(len(data)) > f.config.MaxBodyBytes {
		return "", errors.NewParsing("fetcher", fmt.Sprintf("body exceeds %d bytes", f.config.MaxBodyBytes), nil)
	}

	body, err := helpers.DecodeBody(data, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", errors.NewParsing("fetcher", "failed to decode body", err)
	}
	return body, nil
}

func classifyTransportError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewTimeout("fetcher", "request timed out", err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewTimeout("fetcher", "request timed out", err)
	}
	return errors.NewNetwork("fetcher", "failed to fetch URL", err)
}
