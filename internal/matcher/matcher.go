// Package matcher runs alert sweeps: it matches the newest listings of every
// watched query against its subscribers and notifies each of a deal at most once.
package matcher

import (
	"context"
	"time"

	"sjsage522/pepperworker/helpers"
	"sjsage522/pepperworker/internal/crawler"
	"sjsage522/pepperworker/internal/deal"
	"sjsage522/pepperworker/internal/filter"
	"sjsage522/pepperworker/logger"
	"sjsage522/pepperworker/pkg/errors"
)

const (
	defaultLimit         = 5
	defaultPaceThreshold = 5
	defaultPaceDelay     = 1500 * time.Millisecond
)

// Store is the persistence the matcher needs: alerts plus the seen ledger
type Store interface {
	UniqueQueries(ctx context.Context) ([]string, error)
	AlertsByQuery(ctx context.Context, query string) ([]deal.Alert, error)
	IsDealSeenByAlert(ctx context.Context, alertID int64, link string) (bool, error)
	MarkDealsSeen(ctx context.Context, keys []deal.SeenKey) error
}

// Searcher fetches the newest listings for a query
type Searcher interface {
	SearchNewest(ctx context.Context, query string, limit int) (*crawler.Listing, error)
}

// Notification is one deal to deliver to one user
type Notification struct {
	AlertID int64     `json:"alert_id"`
	UserID  string    `json:"user_id"`
	Query   string    `json:"query"`
	Deal    deal.Deal `json:"deal"`
}

// SweepResult summarizes one sweep
type SweepResult struct {
	Queries       int
	Skipped       int
	Notifications []Notification
	Marked        int
}

// Config configures the matcher
type Config struct {
	// Limit is the number of newest listings checked per query. Default: 5.
	Limit int
	// PaceThreshold enables PaceDelay between queries when exceeded. Default: 5.
	PaceThreshold int
	// PaceDelay is the pause between queries. Default: 1.5s.
	PaceDelay time.Duration
	// Filter is applied to every fetched listing. Default: filter.DefaultOptions().
	Filter *filter.Options
}

func (c *Config) defaults() {
	if c.Limit <= 0 {
		c.Limit = defaultLimit
	}
	if c.PaceThreshold <= 0 {
		c.PaceThreshold = defaultPaceThreshold
	}
	if c.PaceDelay <= 0 {
		c.PaceDelay = defaultPaceDelay
	}
	if c.Filter == nil {
		opts := filter.DefaultOptions()
		c.Filter = &opts
	}
}

// Matcher runs alert sweeps
type Matcher struct {
	store    Store
	searcher Searcher
	config   Config
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a Matcher
func New(store Store, searcher Searcher, cfg Config) *Matcher {
	cfg.defaults()
	return &Matcher{
		store:    store,
		searcher: searcher,
		config:   cfg,
		sleep:    helpers.Sleep,
	}
}

// Sweep checks every distinct watched query once.
// Notifications are returned only after every newly notified pair has been
// recorded in the ledger with a single batch write; if that write fails no
// notification is returned.
func (m *Matcher) Sweep(ctx context.Context) (*SweepResult, error) {
	log := logger.ForMatcher()

	queries, err := m.store.UniqueQueries(ctx)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Queries: len(queries)}
	seen := make(map[deal.SeenKey]struct{})
	var staged []deal.SeenKey
	pace := len(queries) > m.config.PaceThreshold

	for i, query := range queries {
		if i > 0 && pace {
			if err := m.sleep(ctx, m.config.PaceDelay); err != nil {
				return nil, errors.NewNetwork("matcher", "sweep interrupted", err)
			}
		}

		notifications, keys, ok := m.processQuery(ctx, query, seen)
		if !ok {
			result.Skipped++
			continue
		}
		result.Notifications = append(result.Notifications, notifications...)
		staged = append(staged, keys...)
	}

	if len(staged) > 0 {
		if err := m.store.MarkDealsSeen(ctx, staged); err != nil {
			log.Error().Err(err).Int("keys", len(staged)).Msg("Failed to record notified deals")
			return nil, err
		}
	}
	result.Marked = len(staged)

	log.Info().
		Int("queries", result.Queries).
		Int("skipped", result.Skipped).
		Int("notifications", len(result.Notifications)).
		Msg("Alert sweep finished")

	return result, nil
}

// processQuery resolves one query. ok is false when the query was skipped entirely.
func (m *Matcher) processQuery(ctx context.Context, query string, seen map[deal.SeenKey]struct{}) ([]Notification, []deal.SeenKey, bool) {
	log := logger.ForMatcher().WithStr("query", query)

	listing, err := m.searcher.SearchNewest(ctx, query, m.config.Limit)
	if err != nil {
		log.Warn().Err(err).Msg("Fetch failed, skipping query")
		return nil, nil, false
	}

	alerts, err := m.store.AlertsByQuery(ctx, query)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load subscribers, skipping query")
		return nil, nil, false
	}
	if len(alerts) == 0 {
		log.Debug().Msg("No subscribers, skipping query")
		return nil, nil, false
	}

	deals := filter.Apply(listing.Deals, *m.config.Filter)

	var notifications []Notification
	var keys []deal.SeenKey
	for _, d := range deals {
		for _, alert := range alerts {
			key := deal.SeenKey{AlertID: alert.ID, Link: d.Link}
			if _, done := seen[key]; done {
				continue
			}

			already, err := m.store.IsDealSeenByAlert(ctx, alert.ID, d.Link)
			if err != nil {
				log.Warn().Err(err).Int64("alert_id", alert.ID).Str("link", d.Link).Msg("Ledger lookup failed")
				continue
			}
			if already {
				seen[key] = struct{}{}
				continue
			}

			// Left unmarked so the deal is evaluated again if its price drops
			if alert.MaxPrice != nil && filter.AboveCap(d, *alert.MaxPrice) {
				continue
			}

			notifications = append(notifications, Notification{
				AlertID: alert.ID,
				UserID:  alert.UserID,
				Query:   query,
				Deal:    d,
			})
			keys = append(keys, key)
			seen[key] = struct{}{}
		}
	}

	if len(notifications) > 0 {
		log.Info().Int("notifications", len(notifications)).Msg("New deals matched")
	}
	return notifications, keys, true
}
