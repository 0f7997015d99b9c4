// Package category builds the periodic category and flight digests.
package category

import (
	"context"
	"time"

	"sjsage522/pepperworker/internal/crawler"
	"sjsage522/pepperworker/internal/deal"
)

// Status of a category subscription
type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusDisabled Status = "disabled"
)

// Category is a group page a channel is subscribed to
type Category struct {
	ID             int64      `json:"id"`
	GuildID        string     `json:"guild_id"`
	ChannelID      string     `json:"channel_id"`
	Slug           string     `json:"slug"`
	Name           string     `json:"name"`
	Status         Status     `json:"status"`
	MinTemperature int        `json:"min_temperature"`
	MaxPrice       *float64   `json:"max_price,omitempty"`
	LastRun        *time.Time `json:"last_run,omitempty"`
	TotalChecked   int        `json:"total_checked"`
	TotalSent      int        `json:"total_sent"`
	Errors         int        `json:"errors"`
}

// DisplayName returns the name, falling back to the slug
func (c Category) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Slug
}

// Digest is one batch of new deals for a category or the flight report
type Digest struct {
	Kind       string      `json:"kind"`
	CategoryID int64       `json:"category_id,omitempty"`
	GuildID    string      `json:"guild_id,omitempty"`
	ChannelID  string      `json:"channel_id,omitempty"`
	Title      string      `json:"title"`
	Found      int         `json:"found"`
	Deals      []deal.Deal `json:"deals"`
	Manual     bool        `json:"manual"`
	CreatedAt  time.Time   `json:"created_at"`
}

const (
	KindCategory = "category"
	KindFlights  = "flights"
)

// Store persists categories, their sent ledgers and the flight ledger
type Store interface {
	ActiveCategories(ctx context.Context) ([]Category, error)
	IsCategoryDealSent(ctx context.Context, categoryID int64, link string) (bool, error)
	MarkCategoryDealsSent(ctx context.Context, categoryID int64, links []string) error
	UpdateCategoryStats(ctx context.Context, categoryID int64, checked, sent, errs int) error
	UpdateCategoryLastRun(ctx context.Context, categoryID int64, at time.Time) error

	IsDealSent(ctx context.Context, link string) (bool, error)
	MarkDealsSent(ctx context.Context, links []string) error
}

// Lister fetches group listings
type Lister interface {
	Group(ctx context.Context, slug string, limit int) (*crawler.Listing, error)
	Flights(ctx context.Context, limit int) (*crawler.Listing, error)
}

// ShouldRun decides whether a category is due at now
type ShouldRun func(c Category, now time.Time) bool

// EveryInterval runs a category when it never ran or its last run is at least d ago
func EveryInterval(d time.Duration) ShouldRun {
	return func(c Category, now time.Time) bool {
		if c.LastRun == nil {
			return true
		}
		return now.Sub(*c.LastRun) >= d
	}
}
