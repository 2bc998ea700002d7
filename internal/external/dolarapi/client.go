// Package dolarapi fetches dollar exchange rates from dolarapi.com.
// One GET returns every quoted market; the rates relevant for rent
// adjustment are mapped to index series by an explicit table.
package dolarapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/proppilot/indices/internal/indices"
	"github.com/proppilot/indices/pkg/httputil"
	"github.com/proppilot/indices/pkg/logger"
)

const source = "dolarapi.com"

// casaToIndex maps the source's market names to index series. Unknown
// names are dropped with a log line, never passed through.
var casaToIndex = map[string]indices.IndexType{
	"blue":    indices.IndexDolarBlue,
	"bolsa":   indices.IndexDolarMEP,
	"oficial": indices.IndexDolarOficial,
}

// Client fetches dollar rates from dolarapi.com.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	apiURL     string
}

var _ indices.Fetcher = (*Client)(nil)

// New creates a dolarapi fetcher.
func New(httpClient *httputil.Client, log *logger.Logger, apiURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("fetcher", source),
		apiURL:     apiURL,
	}
}

// SupportedIndexTypes returns the exchange-rate series this fetcher provides.
func (c *Client) SupportedIndexTypes() []indices.IndexType {
	return []indices.IndexType{indices.IndexDolarBlue, indices.IndexDolarMEP, indices.IndexDolarOficial}
}

// CountryCode returns the country this fetcher provides data for.
func (c *Client) CountryCode() string {
	return "AR"
}

// rateQuote is one market entry in the dolarapi response.
type rateQuote struct {
	Casa               string           `json:"casa"`
	Nombre             string           `json:"nombre"`
	Compra             *decimal.Decimal `json:"compra"`
	Venta              *decimal.Decimal `json:"venta"`
	FechaActualizacion string           `json:"fechaActualizacion"`
}

// FetchLatest retrieves the current quote for every mapped market.
func (c *Client) FetchLatest(ctx context.Context) ([]indices.IndexValue, error) {
	resp, err := c.httpClient.Get(ctx, c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("fetch dollar rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch dollar rates: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read dollar rates response: %w", err)
	}

	var quotes []rateQuote
	if err := json.Unmarshal(body, &quotes); err != nil {
		return nil, fmt.Errorf("parse dollar rates response: %w", err)
	}

	var values []indices.IndexValue
	for _, quote := range quotes {
		indexType, ok := casaToIndex[quote.Casa]
		if !ok {
			c.logger.WithField("casa", quote.Casa).Debug("Skipping unmapped rate type")
			continue
		}
		if quote.Venta == nil {
			c.logger.WithField("casa", quote.Casa).Debug("Skipping quote without sell price")
			continue
		}

		raw, _ := json.Marshal(quote)
		values = append(values, indices.IndexValue{
			IndexType:   indexType,
			CountryCode: c.CountryCode(),
			ValueDate:   c.valueDate(quote.FechaActualizacion),
			Value:       *quote.Venta,
			Source:      source,
			RawResponse: string(raw),
		})

		c.logger.WithFields(map[string]interface{}{
			"index_type": indexType,
			"value":      quote.Venta,
		}).Debug("Fetched dollar rate")
	}

	return values, nil
}

// FetchAllHistorical delegates to FetchLatest: the source has no bulk
// endpoint, so history accumulates one refresh at a time.
func (c *Client) FetchAllHistorical(ctx context.Context) ([]indices.IndexValue, error) {
	return c.FetchLatest(ctx)
}

// valueDate uses the response's own update timestamp, falling back to the
// current date when absent or malformed.
func (c *Client) valueDate(fecha string) time.Time {
	if fecha != "" {
		if t, err := time.Parse(time.RFC3339, fecha); err == nil {
			return indices.DateOnly(t)
		}
		c.logger.WithField("fecha", fecha).Debug("Unparseable update timestamp, using today")
	}
	return indices.DateOnly(time.Now())
}
