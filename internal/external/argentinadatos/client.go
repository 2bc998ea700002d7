// Package argentinadatos fetches the IPC (consumer price index) series
// from the ArgentinaDatos API. One GET returns the full history; each
// entry is a monthly percentage change, not an absolute index level.
package argentinadatos

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/proppilot/indices/internal/indices"
	"github.com/proppilot/indices/pkg/httputil"
	"github.com/proppilot/indices/pkg/logger"
)

const source = "argentinadatos.com"

// Client fetches the IPC series from ArgentinaDatos.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	apiURL     string
}

var _ indices.Fetcher = (*Client)(nil)

// New creates an ArgentinaDatos IPC fetcher.
func New(httpClient *httputil.Client, log *logger.Logger, apiURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("fetcher", source),
		apiURL:     apiURL,
	}
}

// SupportedIndexTypes returns the IPC series.
func (c *Client) SupportedIndexTypes() []indices.IndexType {
	return []indices.IndexType{indices.IndexIPC}
}

// CountryCode returns the country this fetcher provides data for.
func (c *Client) CountryCode() string {
	return "AR"
}

// seriesEntry is one data point in the ArgentinaDatos response.
type seriesEntry struct {
	Fecha string           `json:"fecha"`
	Valor *decimal.Decimal `json:"valor"`
}

// FetchLatest returns only the final entry of the series.
func (c *Client) FetchLatest(ctx context.Context) ([]indices.IndexValue, error) {
	all, err := c.FetchAllHistorical(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all[len(all)-1:], nil
}

// FetchAllHistorical retrieves the full IPC series sorted ascending by date.
func (c *Client) FetchAllHistorical(ctx context.Context) ([]indices.IndexValue, error) {
	resp, err := c.httpClient.Get(ctx, c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("fetch IPC series: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch IPC series: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read IPC response: %w", err)
	}

	var entries []seriesEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("parse IPC response: %w", err)
	}

	var values []indices.IndexValue
	for _, entry := range entries {
		if entry.Fecha == "" || entry.Valor == nil {
			continue
		}

		valueDate, err := time.Parse("2006-01-02", entry.Fecha)
		if err != nil {
			c.logger.WithField("fecha", entry.Fecha).Debug("Skipping entry with unparseable date")
			continue
		}

		values = append(values, indices.IndexValue{
			IndexType:   indices.IndexIPC,
			CountryCode: c.CountryCode(),
			ValueDate:   indices.DateOnly(valueDate),
			Value:       *entry.Valor,
			Source:      source,
		})
	}

	sort.Slice(values, func(i, j int) bool {
		return values[i].ValueDate.Before(values[j].ValueDate)
	})

	c.logger.WithField("count", len(values)).Info("Fetched IPC series")
	return values, nil
}
