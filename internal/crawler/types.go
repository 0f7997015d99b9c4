package crawler

import (
	"context"

	"sjsage522/pepperworker/internal/deal"

	"github.com/PuerkitoBio/goquery"
)

// Listing is the result of one page fetch: the first Limit deals plus the untruncated count
type Listing struct {
	Deals []deal.Deal `json:"deals"`
	Total int         `json:"total"`
}

// PageFetcher retrieves raw markup for a URL
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Strategy turns a parsed page into deals. An empty result lets the next strategy run.
type Strategy struct {
	Name    string
	Extract func(doc *goquery.Document) []deal.Deal
}

// Sort selects the ordering of search results
type Sort string

const (
	SortRelevance Sort = "relevance"
	SortNew       Sort = "new"
	SortHot       Sort = "hot"
)
