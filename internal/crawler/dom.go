package crawler

import (
	"strconv"
	"strings"

	"sjsage522/pepperworker/helpers"
	"sjsage522/pepperworker/internal/deal"
	"sjsage522/pepperworker/logger"
	"sjsage522/pepperworker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// Selectors contains CSS selectors for the deal cards
type Selectors struct {
	DealList    string
	Title       string
	Price       string
	Temperature string
	Merchant    string
	Image       string
}

// DefaultSelectors matches the server-rendered thread cards
var DefaultSelectors = Selectors{
	DealList:    "article.thread",
	Title:       ".thread-title a",
	Price:       ".thread-price",
	Temperature: ".vote-temp",
	Merchant:    ".thread-card-merchant",
	Image:       "img.thread-image",
}

// domStrategy reads deal cards from the markup. It cannot recover the posting
// time or voucher code, so those stay empty and freshness filtering always passes.
type domStrategy struct {
	baseURL   string
	selectors Selectors
}

func (s domStrategy) strategy() Strategy {
	return Strategy{Name: "dom", Extract: s.extract}
}

func (s domStrategy) extract(doc *goquery.Document) []deal.Deal {
	log := logger.ForExtractor()
	var deals []deal.Deal

	doc.Find(s.selectors.DealList).Each(func(i int, sel *goquery.Selection) {
		d, err := s.processDeal(sel)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Msg("Skipping unparsable deal card")
			return
		}
		if d != nil {
			deals = append(deals, *d)
		}
	})

	return deals
}

// processDeal returns nil without error for cards that carry no title anchor
func (s domStrategy) processDeal(sel *goquery.Selection) (*deal.Deal, error) {
	titleSel := sel.Find(s.selectors.Title).First()
	if titleSel.Length() == 0 {
		return nil, nil
	}

	title := strings.TrimSpace(titleSel.Text())
	if title == "" {
		if attr, ok := titleSel.Attr("title"); ok {
			title = strings.TrimSpace(attr)
		}
	}

	href, _ := titleSel.Attr("href")
	link := helpers.ResolveURL(s.baseURL, href)
	if link == "" {
		return nil, errors.NewParsing("extractor", "deal card without link", nil)
	}
	if title == "" {
		title = defaultTitle
	}

	merchant := textOf(sel, s.selectors.Merchant)
	if merchant == "" {
		merchant = deal.DefaultMerchant
	}

	var image string
	if img := sel.Find(s.selectors.Image).First(); img.Length() > 0 {
		image, _ = img.Attr("src")
		image = strings.TrimSpace(image)
	}

	return &deal.Deal{
		Title:       title,
		Link:        link,
		Price:       textOf(sel, s.selectors.Price),
		Temperature: parseCardTemperature(textOf(sel, s.selectors.Temperature)),
		Merchant:    merchant,
		ImageURL:    image,
		Status:      deal.StatusUnknown,
	}, nil
}

// textOf returns the trimmed text of the first match, or "" when absent
func textOf(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	found := sel.Find(selector).First()
	if found.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(found.Text())
}

// parseCardTemperature strips the degree marker; anything unparsable is 0
func parseCardTemperature(raw string) int {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "°", ""))
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
