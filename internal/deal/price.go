package deal

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"sjsage522/pepperworker/pkg/errors"
)

// CurrencySuffix is appended to amounts taken from the embedded listing data
const CurrencySuffix = "zł"

// freeMarkers lists every spelling the site uses for a free-of-charge offer.
// Entries are compared against the normalized price text (lowercase, no whitespace).
var freeMarkers = map[string]struct{}{
	"free":       {},
	"gratis":     {},
	"darmo":      {},
	"zadarmo":    {},
	"darmowe":    {},
	"darmowa":    {},
	"darmowy":    {},
	"bezpłatne":  {},
	"bezpłatna":  {},
	"bezpłatny":  {},
	"bezpłatnie": {},
	"bezplatne":  {},
	"bezplatnie": {},
}

// IsFreeMarker reports whether the normalized price text is a recognized free keyword
func IsFreeMarker(normalized string) bool {
	_, ok := freeMarkers[normalized]
	return ok
}

// NormalizePrice lowercases the text, strips the currency marker and every
// whitespace rune, and turns a decimal comma into a dot.
func NormalizePrice(raw string) string {
	s := strings.ToLower(raw)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if IsFreeMarker(s) {
		return s
	}
	s = strings.ReplaceAll(s, CurrencySuffix, "")
	return strings.ReplaceAll(s, ",", ".")
}

// ParsePrice converts listing price text into a number.
// Free keywords map to 0; empty or non-numeric text is an error, never 0.
func ParsePrice(raw string) (float64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, errors.NewPrice(raw, nil)
	}

	clean := NormalizePrice(raw)
	if IsFreeMarker(clean) {
		return 0, nil
	}

	value, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, errors.NewPrice(raw, err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errors.NewPrice(raw, nil)
	}
	return value, nil
}

// FormatAmount renders a source amount as "<amount> zł"
func FormatAmount(amount string) string {
	return amount + " " + CurrencySuffix
}
