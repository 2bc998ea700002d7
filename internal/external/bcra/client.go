// Package bcra fetches the ICL (rental contract index) from the central
// bank's published spreadsheet. The file has no API around it: dates in
// column 0, values in column 1, data starting at the third row, with cell
// encodings that vary between publications.
package bcra

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/proppilot/indices/internal/indices"
	"github.com/proppilot/indices/pkg/httputil"
	"github.com/proppilot/indices/pkg/logger"
)

const (
	source = "bcra.gob.ar"

	// Data rows start here; the first two rows are headers.
	firstDataRow = 2
)

// excelEpoch is the base of spreadsheet date serial numbers.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Client fetches ICL history from the BCRA spreadsheet.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	fileURL    string
}

var _ indices.Fetcher = (*Client)(nil)

// New creates a BCRA ICL fetcher.
func New(httpClient *httputil.Client, log *logger.Logger, fileURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("fetcher", source),
		fileURL:    fileURL,
	}
}

// SupportedIndexTypes returns the ICL series.
func (c *Client) SupportedIndexTypes() []indices.IndexType {
	return []indices.IndexType{indices.IndexICL}
}

// CountryCode returns the country this fetcher provides data for.
func (c *Client) CountryCode() string {
	return "AR"
}

// FetchLatest returns only the newest row of the spreadsheet. The source
// has no incremental endpoint, so this still downloads the full file.
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

// FetchAllHistorical downloads and parses the full spreadsheet, skipping
// rows it cannot parse, and returns the series sorted ascending by date.
func (c *Client) FetchAllHistorical(ctx context.Context) ([]indices.IndexValue, error) {
	resp, err := c.httpClient.Get(ctx, c.fileURL)
	if err != nil {
		return nil, fmt.Errorf("download ICL spreadsheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download ICL spreadsheet: unexpected status %d", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ICL spreadsheet: %w", err)
	}
	c.logger.WithField("bytes", len(content)).Debug("Downloaded ICL spreadsheet")

	values, err := c.parseWorkbook(content)
	if err != nil {
		return nil, err
	}

	sort.Slice(values, func(i, j int) bool {
		return values[i].ValueDate.Before(values[j].ValueDate)
	})

	c.logger.WithField("count", len(values)).Info("Parsed ICL history from spreadsheet")
	return values, nil
}

// parseWorkbook extracts the (date, value) series from the first sheet.
func (c *Client) parseWorkbook(content []byte) ([]indices.IndexValue, error) {
	workbook, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open ICL spreadsheet: %w", err)
	}
	defer workbook.Close()

	rows, err := workbook.GetRows(workbook.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read ICL sheet: %w", err)
	}

	var values []indices.IndexValue
	for rowNum := firstDataRow; rowNum < len(rows); rowNum++ {
		row := rows[rowNum]
		if len(row) < 2 {
			continue
		}

		valueDate, err := parseCellDate(row[0])
		if err != nil {
			c.logger.WithFields(map[string]interface{}{
				"row":   rowNum,
				"cell":  row[0],
				"error": err.Error(),
			}).Debug("Skipping row with unparseable date")
			continue
		}

		value, err := parseCellNumber(row[1])
		if err != nil {
			c.logger.WithFields(map[string]interface{}{
				"row":   rowNum,
				"cell":  row[1],
				"error": err.Error(),
			}).Debug("Skipping row with unparseable value")
			continue
		}

		values = append(values, indices.IndexValue{
			IndexType:   indices.IndexICL,
			CountryCode: c.CountryCode(),
			ValueDate:   valueDate,
			Value:       value,
			Source:      source,
		})
	}

	return values, nil
}

// parseCellDate handles the three date encodings seen in the file:
// dd/mm/yyyy text, ISO text, and a numeric spreadsheet date serial.
func parseCellDate(cell string) (time.Time, error) {
	text := strings.TrimSpace(cell)
	if text == "" {
		return time.Time{}, fmt.Errorf("empty date cell")
	}

	if strings.Contains(text, "/") {
		t, err := time.Parse("2/1/2006", text)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse dd/mm/yyyy date %q: %w", text, err)
		}
		return indices.DateOnly(t), nil
	}

	if t, err := time.Parse("2006-01-02", text); err == nil {
		return indices.DateOnly(t), nil
	}

	// Numeric spreadsheet date serial, days since the 1899-12-30 epoch.
	serial, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date cell %q", text)
	}
	if serial <= 0 {
		return time.Time{}, fmt.Errorf("non-positive date serial %q", text)
	}
	return indices.DateOnly(excelEpoch.AddDate(0, 0, int(serial))), nil
}

// parseCellNumber handles native numeric text and comma-as-decimal text.
func parseCellNumber(cell string) (decimal.Decimal, error) {
	text := strings.TrimSpace(cell)
	if text == "" {
		return decimal.Zero, fmt.Errorf("empty value cell")
	}

	text = strings.ReplaceAll(text, ",", ".")
	value, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unrecognized value cell %q: %w", cell, err)
	}
	return value, nil
}
