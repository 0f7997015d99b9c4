// Package filter drops stale, lukewarm and badly priced deals.
package filter

import (
	"time"

	"sjsage522/pepperworker/helpers"
	"sjsage522/pepperworker/internal/deal"
	"sjsage522/pepperworker/logger"
)

const (
	// DefaultMaxAge is the freshness cutoff
	DefaultMaxAge = 24 * time.Hour
	// DefaultMinTemperature is the lowest accepted community temperature
	DefaultMinTemperature = 50
	// PriceCeiling rejects implausible prices
	PriceCeiling = 1_000_000.0
)

// Options toggles the individual gates. All gates must pass for a deal to survive.
type Options struct {
	CheckFreshness   bool
	CheckTemperature bool
	CheckPrice       bool

	// MaxAge is the freshness window. Default: 24h.
	MaxAge time.Duration
	// MinTemperature is the temperature threshold. Default: 50.
	MinTemperature int
	// MaxPrice, when set, additionally rejects non-free deals priced above it.
	// A deal whose price cannot be parsed is not rejected by this cap.
	MaxPrice *float64

	// Now defaults to time.Now
	Now func() time.Time
}

func (o *Options) defaults() {
	if o.MaxAge <= 0 {
		o.MaxAge = DefaultMaxAge
	}
	if o.MinTemperature <= 0 {
		o.MinTemperature = DefaultMinTemperature
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// DefaultOptions enables every gate with the standard thresholds
func DefaultOptions() Options {
	return Options{
		CheckFreshness:   true,
		CheckTemperature: true,
		CheckPrice:       true,
		MaxAge:           DefaultMaxAge,
		MinTemperature:   DefaultMinTemperature,
	}
}

// Apply returns the deals that pass every enabled gate, in their original order.
// The input slice is never modified.
func Apply(deals []deal.Deal, opts Options) []deal.Deal {
	opts.defaults()
	cutoff := opts.Now().Add(-opts.MaxAge)

	out := make([]deal.Deal, 0, len(deals))
	for _, d := range deals {
		if reason := reject(d, opts, cutoff); reason != "" {
			logger.ForFilter().Debug().
				Str("title", helpers.Truncate(d.Title, 40)).
				Str("link", d.Link).
				Str("reason", reason).
				Msg("Deal filtered out")
			continue
		}
		out = append(out, d)
	}

	logger.ForFilter().Debug().
		Int("input", len(deals)).
		Int("passed", len(out)).
		Msg("Quality filter applied")

	return out
}

func reject(d deal.Deal, opts Options, cutoff time.Time) string {
	if opts.CheckFreshness && !IsFresh(d, cutoff) {
		return "stale"
	}
	if opts.CheckTemperature && d.Temperature < opts.MinTemperature {
		return "temperature"
	}
	if opts.CheckPrice {
		price, err := d.NumericPrice()
		if err != nil {
			return "price_unparsable"
		}
		if price > PriceCeiling {
			return "price_ceiling"
		}
	}
	if opts.MaxPrice != nil && AboveCap(d, *opts.MaxPrice) {
		return "price_cap"
	}
	return ""
}

// IsFresh reports whether d was posted at or after cutoff.
// Deals without a timestamp cannot be judged and count as fresh; this is
// always the case for deals read from the card markup.
func IsFresh(d deal.Deal, cutoff time.Time) bool {
	if d.PostedAt == nil {
		return true
	}
	return !d.PostedAt.Before(cutoff)
}

// AboveCap reports whether d has a positive parsed price strictly greater than limit.
// Free and unparsable prices are never above a cap.
func AboveCap(d deal.Deal, limit float64) bool {
	price, err := d.NumericPrice()
	if err != nil {
		return false
	}
	return price > 0 && price > limit
}
