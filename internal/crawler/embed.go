package crawler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"sjsage522/pepperworker/helpers"
	"sjsage522/pepperworker/internal/deal"
	"sjsage522/pepperworker/logger"
	"sjsage522/pepperworker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

const (
	embedAttr        = "data-vue3"
	threadNormalizer = "ThreadMainListItemNormalizer"
	defaultTitle     = "untitled"
)

// jsonText accepts a JSON string or number and keeps its literal text. null leaves it empty.
type jsonText string

func (t *jsonText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = jsonText(strings.TrimSpace(s))
		return nil
	}
	if b[0] == '{' || b[0] == '[' {
		return fmt.Errorf("expected scalar, got %s", b[:1])
	}
	*t = jsonText(b)
	return nil
}

type vueIsland struct {
	Name  string `json:"name"`
	Props struct {
		Thread json.RawMessage `json:"thread"`
	} `json:"props"`
}

type threadMerchant struct {
	MerchantName string `json:"merchantName"`
}

type threadImage struct {
	Path jsonText `json:"path"`
	Name jsonText `json:"name"`
	Ext  jsonText `json:"ext"`
}

type threadData struct {
	ThreadID      jsonText        `json:"threadId"`
	Title         string          `json:"title"`
	TitleSlug     string          `json:"titleSlug"`
	ShareableLink string          `json:"shareableLink"`
	Price         jsonText        `json:"price"`
	NextBestPrice jsonText        `json:"nextBestPrice"`
	Temperature   jsonText        `json:"temperature"`
	Merchant      json.RawMessage `json:"merchant"`
	MainImage     json.RawMessage `json:"mainImage"`
	PublishedAt   jsonText        `json:"publishedAt"`
	VoucherCode   jsonText        `json:"voucherCode"`
	Status        string          `json:"status"`
	IsExpired     bool            `json:"isExpired"`
	IsArchived    bool            `json:"isArchived"`
}

// embedStrategy reads the JSON islands the site renders for its list items
type embedStrategy struct {
	baseURL  string
	assetURL string
}

func (s embedStrategy) strategy() Strategy {
	return Strategy{Name: "embed", Extract: s.extract}
}

func (s embedStrategy) extract(doc *goquery.Document) []deal.Deal {
	log := logger.ForExtractor()
	var deals []deal.Deal

	doc.Find("[" + embedAttr + "]").Each(func(i int, sel *goquery.Selection) {
		raw, _ := sel.Attr(embedAttr)
		if !strings.Contains(raw, threadNormalizer) {
			return
		}

		d, err := s.parseIsland(raw)
		if err != nil {
			log.Warn().Err(err).
				Int("index", i).
				Str("payload", helpers.Truncate(raw, 120)).
				Msg("Skipping unparsable listing item")
			return
		}
		if d == nil {
			return
		}
		deals = append(deals, *d)
	})

	return deals
}

// parseIsland returns nil without error for items that are intentionally dropped
func (s embedStrategy) parseIsland(raw string) (*deal.Deal, error) {
	var island vueIsland
	if err := json.Unmarshal([]byte(raw), &island); err != nil {
		return nil, errors.NewParsing("extractor", "invalid embedded JSON", err)
	}
	if len(island.Props.Thread) == 0 || bytes.Equal(island.Props.Thread, []byte("null")) {
		return nil, nil
	}

	var thread threadData
	if err := json.Unmarshal(island.Props.Thread, &thread); err != nil {
		return nil, errors.NewParsing("extractor", "invalid thread payload", err)
	}
	return s.toDeal(thread)
}

func (s embedStrategy) toDeal(t threadData) (*deal.Deal, error) {
	status := deal.ParseStatus(t.Status)
	if t.IsExpired || t.IsArchived || status.Unavailable() {
		logger.ForExtractor().Debug().
			Str("status", t.Status).
			Bool("expired", t.IsExpired).
			Bool("archived", t.IsArchived).
			Msg("Skipping unavailable deal")
		return nil, nil
	}

	link := s.threadLink(t)
	if link == "" {
		return nil, errors.NewParsing("extractor", "thread has neither slug+id nor shareable link", nil)
	}

	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = defaultTitle
	}

	d := &deal.Deal{
		Title:       title,
		Link:        link,
		Temperature: parseTemperature(string(t.Temperature)),
		Merchant:    parseMerchant(t.Merchant),
		ImageURL:    s.imageURL(t.MainImage),
		VoucherCode: string(t.VoucherCode),
		PostedAt:    parseTimestamp(string(t.PublishedAt)),
		Status:      status,
	}
	if t.Price != "" {
		d.Price = deal.FormatAmount(string(t.Price))
	}
	if t.NextBestPrice != "" {
		d.NextBestPrice = deal.FormatAmount(string(t.NextBestPrice))
	}
	return d, nil
}

// threadLink builds the canonical link. It depends only on slug and id so
// repeated extractions of the same thread always agree.
func (s embedStrategy) threadLink(t threadData) string {
	slug := strings.TrimSpace(t.TitleSlug)
	id := strings.TrimSpace(string(t.ThreadID))
	if slug != "" && id != "" {
		return fmt.Sprintf("%s/promocje/%s-%s", s.baseURL, slug, id)
	}
	return strings.TrimSpace(t.ShareableLink)
}

func (s embedStrategy) imageURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var img threadImage
	if err := json.Unmarshal(raw, &img); err != nil {
		return ""
	}
	if img.Path == "" || img.Name == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s/re/600x600/qt/80/%s.%s", s.assetURL, img.Path, img.Name, img.Name, img.Ext)
}

func parseMerchant(raw json.RawMessage) string {
	if len(raw) == 0 {
		return deal.DefaultMerchant
	}
	var m threadMerchant
	if err := json.Unmarshal(raw, &m); err != nil || strings.TrimSpace(m.MerchantName) == "" {
		return deal.DefaultMerchant
	}
	return strings.TrimSpace(m.MerchantName)
}

// parseTemperature accepts integer or fractional text; anything else is 0
func parseTemperature(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || value < 0 || value > 1e9 {
		return 0
	}
	return int(value)
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04-07:00",
}

var naiveTimestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseTimestamp reads ISO-8601 text (a trailing Z becomes +00:00) or unix seconds.
// Malformed input yields nil. Values without an offset are taken as UTC.
func parseTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if secs <= 0 {
			return nil
		}
		t := time.Unix(secs, 0).UTC()
		return &t
	}

	if strings.HasSuffix(raw, "Z") || strings.HasSuffix(raw, "z") {
		raw = raw[:len(raw)-1] + "+00:00"
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	for _, layout := range naiveTimestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}
