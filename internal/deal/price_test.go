package deal

import (
	"testing"

	"sjsage522/pepperworker/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"12,50 zł", 12.5},
		{"199.99 zł", 199.99},
		{"1 299 zł", 1299},
		{"1 299,99 zł", 1299.99},
		{"0 zł", 0},
		{"42", 42},
		{"Za darmo", 0},
		{"GRATIS", 0},
		{"Bezpłatnie", 0},
		{"free", 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParsePrice(tt.raw)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestParsePriceRejectsNonNumeric(t *testing.T) {
	for _, raw := range []string{"", "   ", "abc", "od 10 zł", "NaN", "Inf zł"} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParsePrice(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrorTypePrice))
		})
	}
}

func TestNumericPriceOfMissingPrice(t *testing.T) {
	d := Deal{Title: "Bez ceny", Link: "https://www.pepper.pl/promocje/x-1"}
	_, err := d.NumericPrice()
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, StatusExpired, ParseStatus("expired"))
	assert.Equal(t, StatusUnknown, ParseStatus("Activated"))
	assert.Equal(t, StatusUnknown, ParseStatus(""))

	assert.True(t, StatusExpired.Unavailable())
	assert.True(t, StatusArchived.Unavailable())
	assert.True(t, StatusDeleted.Unavailable())
	assert.False(t, StatusActive.Unavailable())
	assert.False(t, StatusUnknown.Unavailable())
}
