package category

import (
	"context"
	"fmt"
	"sort"
	"time"

	"sjsage522/pepperworker/helpers"
	"sjsage522/pepperworker/internal/deal"
	"sjsage522/pepperworker/internal/filter"
	"sjsage522/pepperworker/logger"
)

const (
	defaultLimit    = 20
	defaultMaxDeals = 10
	defaultStagger  = 2 * time.Second
)

// Config configures the digest runner
type Config struct {
	// Limit is the number of listings fetched per page. Default: 20.
	Limit int
	// MaxDeals caps the deals in one digest. Default: 10.
	MaxDeals int
	// Stagger is the pause between categories in one sweep. Default: 2s.
	Stagger time.Duration
	// ShouldRun decides which active categories are due. Default: EveryInterval(time.Hour).
	ShouldRun ShouldRun
	Now       func() time.Time
}

func (c *Config) defaults() {
	if c.Limit <= 0 {
		c.Limit = defaultLimit
	}
	if c.MaxDeals <= 0 {
		c.MaxDeals = defaultMaxDeals
	}
	if c.Stagger <= 0 {
		c.Stagger = defaultStagger
	}
	if c.ShouldRun == nil {
		c.ShouldRun = EveryInterval(time.Hour)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Runner produces category and flight digests
type Runner struct {
	store  Store
	lister Lister
	config Config
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a Runner
func NewRunner(store Store, lister Lister, cfg Config) *Runner {
	cfg.defaults()
	return &Runner{
		store:  store,
		lister: lister,
		config: cfg,
		sleep:  helpers.Sleep,
	}
}

// Sweep processes every active category that is due and returns the digests produced.
// A failing category is counted in its stats and does not stop the sweep.
func (r *Runner) Sweep(ctx context.Context) ([]Digest, error) {
	log := logger.ForCategory()

	categories, err := r.store.ActiveCategories(ctx)
	if err != nil {
		return nil, err
	}

	now := r.config.Now()
	var due []Category
	for _, c := range categories {
		if r.config.ShouldRun(c, now) {
			due = append(due, c)
		}
	}
	if len(due) == 0 {
		return nil, nil
	}

	log.Info().Int("active", len(categories)).Int("due", len(due)).Msg("Processing categories")

	var digests []Digest
	for i, c := range due {
		if i > 0 {
			if err := r.sleep(ctx, r.config.Stagger); err != nil {
				return digests, err
			}
		}

		digest, err := r.Process(ctx, c, false)
		if err != nil {
			log.Error().Err(err).Str("slug", c.Slug).Msg("Category run failed")
			continue
		}
		if digest != nil {
			digests = append(digests, *digest)
		}
	}

	return digests, nil
}

// Process builds the digest of one category. A nil digest means nothing new.
// Manual runs include deals already sent and leave the ledger untouched.
func (r *Runner) Process(ctx context.Context, c Category, manual bool) (*Digest, error) {
	log := logger.ForCategory().WithStr("slug", c.Slug)

	listing, err := r.lister.Group(ctx, c.Slug, r.config.Limit)
	if err != nil {
		r.updateStats(ctx, c.ID, 0, 0, 1)
		return nil, err
	}
	if len(listing.Deals) == 0 {
		log.Info().Msg("No deals found")
		r.updateStats(ctx, c.ID, 0, 0, 0)
		return nil, nil
	}

	var fresh []deal.Deal
	var toMark []string
	for _, d := range listing.Deals {
		if c.MinTemperature > 0 && d.Temperature < c.MinTemperature {
			continue
		}
		if c.MaxPrice != nil && filter.AboveCap(d, *c.MaxPrice) {
			continue
		}

		sent, err := r.store.IsCategoryDealSent(ctx, c.ID, d.Link)
		if err != nil {
			log.Warn().Err(err).Str("link", d.Link).Msg("Ledger lookup failed")
			continue
		}
		if manual || !sent {
			fresh = append(fresh, d)
			if !manual {
				toMark = append(toMark, d.Link)
			}
		}
	}

	if len(toMark) > 0 {
		if err := r.store.MarkCategoryDealsSent(ctx, c.ID, toMark); err != nil {
			r.updateStats(ctx, c.ID, 0, 0, 1)
			return nil, err
		}
	}

	if len(fresh) == 0 {
		log.Info().Msg("No new deals since last check")
		r.updateStats(ctx, c.ID, len(listing.Deals), 0, 0)
		return nil, nil
	}

	now := r.config.Now()
	if err := r.store.UpdateCategoryLastRun(ctx, c.ID, now); err != nil {
		log.Warn().Err(err).Msg("Failed to update last run")
	}
	r.updateStats(ctx, c.ID, len(listing.Deals), len(fresh), 0)

	digest := &Digest{
		Kind:       KindCategory,
		CategoryID: c.ID,
		GuildID:    c.GuildID,
		ChannelID:  c.ChannelID,
		Title:      c.DisplayName(),
		Found:      len(fresh),
		Deals:      hottest(fresh, r.config.MaxDeals),
		Manual:     manual,
		CreatedAt:  now,
	}

	log.Info().Int("found", digest.Found).Int("sent", len(digest.Deals)).Bool("manual", manual).Msg("Category digest ready")
	return digest, nil
}

// Flights builds the daily flight report, deduplicated against the global sent ledger
func (r *Runner) Flights(ctx context.Context, manual bool) (*Digest, error) {
	log := logger.ForCategory().WithStr("slug", "flights")

	listing, err := r.lister.Flights(ctx, r.config.Limit)
	if err != nil {
		return nil, err
	}

	var fresh []deal.Deal
	var toMark []string
	for _, d := range listing.Deals {
		sent, err := r.store.IsDealSent(ctx, d.Link)
		if err != nil {
			log.Warn().Err(err).Str("link", d.Link).Msg("Ledger lookup failed")
			continue
		}
		if manual || !sent {
			fresh = append(fresh, d)
			if !manual {
				toMark = append(toMark, d.Link)
			}
		}
	}

	if len(toMark) > 0 {
		if err := r.store.MarkDealsSent(ctx, toMark); err != nil {
			return nil, err
		}
	}

	if len(fresh) == 0 {
		log.Info().Msg("No new flight deals")
		return nil, nil
	}

	now := r.config.Now()
	digest := &Digest{
		Kind:      KindFlights,
		Title:     fmt.Sprintf("Flight report %s", now.Format("2006-01-02")),
		Found:     len(fresh),
		Deals:     hottest(fresh, r.config.MaxDeals),
		Manual:    manual,
		CreatedAt: now,
	}

	log.Info().Int("found", digest.Found).Int("sent", len(digest.Deals)).Msg("Flight digest ready")
	return digest, nil
}

func (r *Runner) updateStats(ctx context.Context, id int64, checked, sent, errs int) {
	if err := r.store.UpdateCategoryStats(ctx, id, checked, sent, errs); err != nil {
		logger.ForCategory().Warn().Err(err).Int64("category_id", id).Msg("Failed to update stats")
	}
}

// hottest returns up to n deals ordered by temperature, hottest first.
// Deals with equal temperature keep their page order.
func hottest(deals []deal.Deal, n int) []deal.Deal {
	sorted := make([]deal.Deal, len(deals))
	copy(sorted, deals)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Temperature > sorted[j].Temperature
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
