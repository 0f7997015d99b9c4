package deal

import (
	"time"
)

// DefaultMerchant is used when a listing does not name its merchant
const DefaultMerchant = "unknown"

// Status represents the availability of a deal as reported by the source
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
)

// ParseStatus maps a raw source status onto the known set. Anything unrecognized is unknown.
func ParseStatus(raw string) Status {
	switch Status(raw) {
	case StatusActive, StatusExpired, StatusArchived, StatusDeleted:
		return Status(raw)
	default:
		return StatusUnknown
	}
}

// Unavailable reports whether the status marks a deal that can no longer be taken
func (s Status) Unavailable() bool {
	return s == StatusExpired || s == StatusArchived || s == StatusDeleted
}

// Deal is the canonical record for a single posted offer.
// Empty text fields mean the value was not present on the page.
type Deal struct {
	Title         string     `json:"title"`
	Link          string     `json:"link"`
	Price         string     `json:"price,omitempty"`
	NextBestPrice string     `json:"next_best_price,omitempty"`
	Temperature   int        `json:"temperature"`
	Merchant      string     `json:"merchant"`
	ImageURL      string     `json:"image_url,omitempty"`
	VoucherCode   string     `json:"voucher_code,omitempty"`
	PostedAt      *time.Time `json:"posted_timestamp"`
	Status        Status     `json:"status"`
}

// NumericPrice derives the numeric value of the price text.
// It fails for missing or unparsable prices; 0 is only returned for free listings.
func (d Deal) NumericPrice() (float64, error) {
	return ParsePrice(d.Price)
}

// SeenKey identifies a (watch, deal) pair in the seen ledger
type SeenKey struct {
	AlertID int64  `json:"alert_id"`
	Link    string `json:"link"`
}

// Alert is one user's persisted watch query
type Alert struct {
	ID       int64    `json:"id"`
	UserID   string   `json:"user_id"`
	Query    string   `json:"query"`
	MaxPrice *float64 `json:"max_price,omitempty"`
}
