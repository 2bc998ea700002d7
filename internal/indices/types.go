package indices

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// IndexType identifies an economic index series used for rent adjustment.
type IndexType string

const (
	// IndexICL is the rental contract index published by the central bank.
	IndexICL IndexType = "ICL"
	// IndexIPC is the consumer price index; stored values are monthly
	// percentage changes, not absolute index levels.
	IndexIPC IndexType = "IPC"
	// Dollar exchange rates, one series per market.
	IndexDolarBlue    IndexType = "DOLAR_BLUE"
	IndexDolarOficial IndexType = "DOLAR_OFICIAL"
	IndexDolarMEP     IndexType = "DOLAR_MEP"
	// IndexNone is the "no adjustment" sentinel: every factor computed
	// against it is the identity.
	IndexNone IndexType = "NONE"
)

// AllIndexTypes lists every real index series, excluding the NONE sentinel.
var AllIndexTypes = []IndexType{
	IndexICL,
	IndexIPC,
	IndexDolarOficial,
	IndexDolarBlue,
	IndexDolarMEP,
}

// ParseIndexType validates caller-supplied index type names.
func ParseIndexType(s string) (IndexType, error) {
	t := IndexType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case IndexICL, IndexIPC, IndexDolarBlue, IndexDolarOficial, IndexDolarMEP, IndexNone:
		return t, nil
	}
	return "", fmt.Errorf("unknown index type %q", s)
}

// ParseCountryCode validates and normalizes a 2-letter ISO country code.
func ParseCountryCode(s string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if len(code) != 2 {
		return "", fmt.Errorf("invalid country code %q", s)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("invalid country code %q", s)
		}
	}
	return code, nil
}

// IndexValue is one observation of one index series in one country on one
// date. The tuple (IndexType, CountryCode, ValueDate) is unique; the series
// is append-only.
type IndexValue struct {
	ID          int64           `json:"id"`
	IndexType   IndexType       `json:"indexType"`
	CountryCode string          `json:"countryCode"`
	ValueDate   time.Time       `json:"valueDate"`
	Value       decimal.Decimal `json:"value"`
	Source      string          `json:"source"`
	RawResponse string          `json:"-"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Key returns the uniqueness key of the observation.
func (v IndexValue) Key() string {
	return string(v.IndexType) + "|" + v.CountryCode + "|" + v.ValueDate.Format("2006-01-02")
}

// DateOnly truncates a timestamp to calendar-date precision in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
