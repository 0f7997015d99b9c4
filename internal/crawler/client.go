package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"sjsage522/pepperworker/logger"
)

// URLs holds the listing endpoints of the source site
type URLs struct {
	Base string
	// SearchTemplate contains one %s for the escaped query
	SearchTemplate string
	// GroupTemplate contains one %s for the group slug
	GroupTemplate string
	Flights       string
}

// Client fetches listing pages and extracts deals from them
type Client struct {
	fetcher   PageFetcher
	extractor *Extractor
	urls      URLs
}

// NewClient creates a listing client
func NewClient(fetcher PageFetcher, extractor *Extractor, urls URLs) *Client {
	return &Client{
		fetcher:   fetcher,
		extractor: extractor,
		urls:      urls,
	}
}

// FetchDeals fetches url and returns at most limit deals in page order.
// Truncation happens after extraction; Total reports the untruncated count.
// A limit of 0 or less means no limit.
func (c *Client) FetchDeals(ctx context.Context, pageURL string, limit int) (*Listing, error) {
	body, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	deals, err := c.extractor.Extract(body)
	if err != nil {
		return nil, err
	}

	listing := &Listing{Deals: deals, Total: len(deals)}
	if limit > 0 && len(listing.Deals) > limit {
		listing.Deals = listing.Deals[:limit]
	}

	logger.ForExtractor().Debug().
		Str("url", pageURL).
		Int("total", listing.Total).
		Int("returned", len(listing.Deals)).
		Msg("Listing fetched")

	return listing, nil
}

// SearchURL builds the search page URL for query in the given order
func (c *Client) SearchURL(query string, sort Sort) string {
	u := fmt.Sprintf(c.urls.SearchTemplate, url.QueryEscape(strings.TrimSpace(query)))
	switch sort {
	case SortNew, SortHot:
		u += "&sort=" + string(sort)
	}
	return u
}

// Search returns deals matching query
func (c *Client) Search(ctx context.Context, query string, sort Sort, limit int) (*Listing, error) {
	return c.FetchDeals(ctx, c.SearchURL(query, sort), limit)
}

// SearchNewest returns the newest deals matching query
func (c *Client) SearchNewest(ctx context.Context, query string, limit int) (*Listing, error) {
	return c.Search(ctx, query, SortNew, limit)
}

// Hot returns the front page listing
func (c *Client) Hot(ctx context.Context, limit int) (*Listing, error) {
	return c.FetchDeals(ctx, c.urls.Base, limit)
}

// Group returns the listing of one group page
func (c *Client) Group(ctx context.Context, slug string, limit int) (*Listing, error) {
	return c.FetchDeals(ctx, fmt.Sprintf(c.urls.GroupTemplate, url.PathEscape(slug)), limit)
}

// Flights returns the flight group listing
func (c *Client) Flights(ctx context.Context, limit int) (*Listing, error) {
	return c.FetchDeals(ctx, c.urls.Flights, limit)
}
