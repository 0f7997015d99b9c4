package crawler

import (
	"strings"

	"sjsage522/pepperworker/internal/deal"
	"sjsage522/pepperworker/logger"
	"sjsage522/pepperworker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// Extractor runs its strategies in order and keeps the first non-empty result
type Extractor struct {
	strategies []Strategy
}

// NewExtractor creates the default extractor: embedded JSON first, deal cards as fallback
func NewExtractor(baseURL, assetURL string) *Extractor {
	baseURL = strings.TrimRight(baseURL, "/")
	assetURL = strings.TrimRight(assetURL, "/")

	return NewExtractorWithStrategies(
		embedStrategy{baseURL: baseURL, assetURL: assetURL}.strategy(),
		domStrategy{baseURL: baseURL, selectors: DefaultSelectors}.strategy(),
	)
}

// NewExtractorWithStrategies creates an extractor over an explicit strategy list
func NewExtractorWithStrategies(strategies ...Strategy) *Extractor {
	return &Extractor{strategies: strategies}
}

// Extract returns the deals found in html in document order.
// A page with no deals is an empty, successful result.
func (e *Extractor) Extract(html string) ([]deal.Deal, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.NewParsing("extractor", "HTML parsing failed", err)
	}
	return e.ExtractDocument(doc), nil
}

// ExtractDocument runs the strategies over an already parsed document
func (e *Extractor) ExtractDocument(doc *goquery.Document) []deal.Deal {
	log := logger.ForExtractor()

	for i, strategy := range e.strategies {
		deals := strategy.Extract(doc)
		if len(deals) > 0 {
			log.Info().
				Str("strategy", strategy.Name).
				Int("deals", len(deals)).
				Msg("Extracted deals")
			return deals
		}
		if i < len(e.strategies)-1 {
			log.Info().
				Str("strategy", strategy.Name).
				Msg("Strategy yielded 0 deals, trying fallback")
		}
	}

	return []deal.Deal{}
}
