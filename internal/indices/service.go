package indices

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/proppilot/indices/pkg/logger"
)

const (
	factorScale  = 6 // adjustment factors
	percentScale = 2 // percentage changes
	amountScale  = 2 // monetary amounts
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Service orchestrates fetchers, deduplicates observations into the store,
// and computes adjustment factors and percentage changes. It holds no state
// beyond its collaborators.
//
// Missing data degrades to safe defaults (factor 1, change 0) rather than
// failing: the results feed multiplicatively into rent amounts, where an
// error would block payment processing. Those fallbacks are logged with
// reason=no_data so operators can tell "no data yet" from a real fault.
type Service struct {
	store    ValueStore
	fetchers []Fetcher
	logger   *logger.Logger

	// now is a clock hook so period-relative computations are testable.
	now func() time.Time
}

// NewService creates a valuation service over the given store and fetchers.
func NewService(store ValueStore, fetchers []Fetcher, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		fetchers: fetchers,
		logger:   log.WithField("module", "indices"),
		now:      time.Now,
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetLatest returns the newest observation for the index in the country.
func (s *Service) GetLatest(ctx context.Context, countryCode string, indexType IndexType) (*IndexValue, error) {
	return s.store.GetLatest(ctx, indexType, normalizeCountry(countryCode))
}

// GetAtDate returns the observation for the exact date.
func (s *Service) GetAtDate(ctx context.Context, countryCode string, indexType IndexType, date time.Time) (*IndexValue, error) {
	return s.store.GetAtDate(ctx, indexType, normalizeCountry(countryCode), date)
}

// GetClosestOnOrBefore returns the newest observation dated on or before target.
func (s *Service) GetClosestOnOrBefore(ctx context.Context, countryCode string, indexType IndexType, target time.Time) (*IndexValue, error) {
	return s.store.GetClosestOnOrBefore(ctx, indexType, normalizeCountry(countryCode), target)
}

// GetHistory returns observations in [from, to], newest first.
func (s *Service) GetHistory(ctx context.Context, countryCode string, indexType IndexType, from, to time.Time) ([]IndexValue, error) {
	return s.store.GetRange(ctx, indexType, normalizeCountry(countryCode), from, to)
}

// GetAllLatest returns the newest observation of every index series present
// for the country.
func (s *Service) GetAllLatest(ctx context.Context, countryCode string) ([]IndexValue, error) {
	return s.store.GetAllLatestForCountry(ctx, normalizeCountry(countryCode))
}

// AdjustmentFactor returns the multiplicative ratio of the index between
// two dates, rounded half-up to 6 decimals. Interval endpoints resolve via
// closest-on-or-before lookup. The NONE type, missing data and a zero
// from-value all yield exactly 1.
func (s *Service) AdjustmentFactor(ctx context.Context, countryCode string, indexType IndexType, fromDate, toDate time.Time) (decimal.Decimal, error) {
	if indexType == IndexNone {
		return one, nil
	}

	fromValue, err := s.GetClosestOnOrBefore(ctx, countryCode, indexType, fromDate)
	if err != nil {
		return one, err
	}
	toValue, err := s.GetClosestOnOrBefore(ctx, countryCode, indexType, toDate)
	if err != nil {
		return one, err
	}

	if fromValue == nil || toValue == nil {
		s.logger.WithFields(map[string]interface{}{
			"reason":     "no_data",
			"index_type": indexType,
			"country":    normalizeCountry(countryCode),
			"from":       fromDate.Format("2006-01-02"),
			"to":         toDate.Format("2006-01-02"),
		}).Warn("Adjustment factor fell back to 1: missing index values")
		return one, nil
	}

	if fromValue.Value.IsZero() {
		s.logger.WithFields(map[string]interface{}{
			"reason":     "no_data",
			"index_type": indexType,
			"country":    normalizeCountry(countryCode),
		}).Warn("Adjustment factor fell back to 1: from-value is zero")
		return one, nil
	}

	return toValue.Value.Div(fromValue.Value).Round(factorScale), nil
}

// AnnualPercentageChange compares now to one year ago, rounded half-up to
// 2 decimals. IPC observations are monthly percentage changes and are
// compounded over the trailing twelve months; other series use the simple
// ratio of the latest value to the year-ago value. Missing data yields 0.
func (s *Service) AnnualPercentageChange(ctx context.Context, countryCode string, indexType IndexType) (decimal.Decimal, error) {
	if indexType == IndexNone {
		return decimal.Zero, nil
	}

	now := DateOnly(s.now())
	oneYearAgo := now.AddDate(-1, 0, 0)

	if indexType == IndexIPC {
		history, err := s.GetHistory(ctx, countryCode, indexType, oneYearAgo, now)
		if err != nil {
			return decimal.Zero, err
		}
		if len(history) == 0 {
			s.logger.WithFields(map[string]interface{}{
				"reason":  "no_data",
				"country": normalizeCountry(countryCode),
			}).Warn("No IPC history for annual change")
			return decimal.Zero, nil
		}

		accumulated := one
		for _, v := range history {
			// Each stored value is a monthly percentage, e.g. 2.3 means 2.3%.
			accumulated = accumulated.Mul(one.Add(v.Value.Div(hundred)))
		}
		return accumulated.Sub(one).Mul(hundred).Round(percentScale), nil
	}

	return s.ratioChange(ctx, countryCode, indexType, oneYearAgo, "annual")
}

// MonthlyPercentageChange compares now to one month ago, rounded half-up to
// 2 decimals. For IPC the latest stored value already is the monthly
// percentage change and is returned directly. Missing data yields 0.
func (s *Service) MonthlyPercentageChange(ctx context.Context, countryCode string, indexType IndexType) (decimal.Decimal, error) {
	if indexType == IndexNone {
		return decimal.Zero, nil
	}

	if indexType == IndexIPC {
		latest, err := s.GetLatest(ctx, countryCode, indexType)
		if err != nil {
			return decimal.Zero, err
		}
		if latest == nil {
			s.logger.WithFields(map[string]interface{}{
				"reason":  "no_data",
				"country": normalizeCountry(countryCode),
			}).Warn("No IPC value for monthly change")
			return decimal.Zero, nil
		}
		return latest.Value.Round(percentScale), nil
	}

	oneMonthAgo := DateOnly(s.now()).AddDate(0, -1, 0)
	return s.ratioChange(ctx, countryCode, indexType, oneMonthAgo, "monthly")
}

// ratioChange computes (latest / closest(since) - 1) * 100 for non-IPC series.
func (s *Service) ratioChange(ctx context.Context, countryCode string, indexType IndexType, since time.Time, period string) (decimal.Decimal, error) {
	latest, err := s.GetLatest(ctx, countryCode, indexType)
	if err != nil {
		return decimal.Zero, err
	}
	baseline, err := s.GetClosestOnOrBefore(ctx, countryCode, indexType, since)
	if err != nil {
		return decimal.Zero, err
	}

	if latest == nil || baseline == nil || baseline.Value.IsZero() {
		s.logger.WithFields(map[string]interface{}{
			"reason":     "no_data",
			"index_type": indexType,
			"country":    normalizeCountry(countryCode),
			"period":     period,
		}).Warn("Percentage change fell back to 0: missing index values")
		return decimal.Zero, nil
	}

	return latest.Value.Div(baseline.Value).Sub(one).Mul(hundred).Round(percentScale), nil
}

// AdjustedAmount applies the adjustment factor for [fromDate, toDate] to a
// base amount, rounded half-up to 2 decimals. Non-positive amounts and the
// NONE type pass through unchanged.
func (s *Service) AdjustedAmount(ctx context.Context, baseAmount decimal.Decimal, countryCode string, indexType IndexType, fromDate, toDate time.Time) (decimal.Decimal, error) {
	if baseAmount.LessThanOrEqual(decimal.Zero) || indexType == IndexNone {
		return baseAmount, nil
	}

	factor, err := s.AdjustmentFactor(ctx, countryCode, indexType, fromDate, toDate)
	if err != nil {
		return baseAmount, err
	}

	adjusted := baseAmount.Mul(factor).Round(amountScale)

	s.logger.WithFields(map[string]interface{}{
		"base":       baseAmount,
		"factor":     factor,
		"adjusted":   adjusted,
		"index_type": indexType,
		"from":       fromDate.Format("2006-01-02"),
		"to":         toDate.Format("2006-01-02"),
	}).Info("Calculated adjusted amount")

	return adjusted, nil
}

// RefreshAll refreshes the latest values for every country that has
// registered fetchers.
func (s *Service) RefreshAll(ctx context.Context) error {
	s.logger.Info("Starting refresh of all indices")

	seen := make(map[string]bool)
	for _, f := range s.fetchers {
		country := f.CountryCode()
		if seen[country] {
			continue
		}
		seen[country] = true
		if err := s.Refresh(ctx, country); err != nil {
			return err
		}
	}

	s.logger.Info("Finished refreshing all indices")
	return nil
}

// Refresh fetches the latest observations for the country from every
// matching fetcher and stores the ones not seen before. A failing fetcher
// is logged and skipped; it never blocks the others.
func (s *Service) Refresh(ctx context.Context, countryCode string) error {
	country := normalizeCountry(countryCode)
	s.logger.WithField("country", country).Info("Refreshing indices")

	for _, f := range s.fetchers {
		if f.CountryCode() != country {
			continue
		}

		values, err := f.FetchLatest(ctx)
		if err != nil {
			s.logger.WithError(err).WithField("fetcher", fetcherName(f)).
				Error("Fetcher failed during refresh")
			continue
		}

		stored := 0
		for _, v := range values {
			ok, err := s.saveIfNew(ctx, v)
			if err != nil {
				s.logger.WithError(err).WithField("fetcher", fetcherName(f)).
					Error("Failed to store index value")
				continue
			}
			if ok {
				stored++
			}
		}

		s.logger.WithFields(map[string]interface{}{
			"fetcher": fetcherName(f),
			"fetched": len(values),
			"stored":  stored,
		}).Info("Fetcher refresh completed")
	}

	return nil
}

// Backfill imports the full available history from every fetcher. Intended
// for one-time population; fully idempotent through the same existence
// check, so re-running it only fills gaps.
func (s *Service) Backfill(ctx context.Context) error {
	s.logger.Info("Starting historical index backfill")

	for _, f := range s.fetchers {
		values, err := f.FetchAllHistorical(ctx)
		if err != nil {
			s.logger.WithError(err).WithField("fetcher", fetcherName(f)).
				Error("Fetcher failed during backfill")
			continue
		}

		imported := 0
		for _, v := range values {
			ok, err := s.saveIfNew(ctx, v)
			if err != nil {
				s.logger.WithError(err).WithField("fetcher", fetcherName(f)).
					Error("Failed to store historical index value")
				continue
			}
			if ok {
				imported++
			}
		}

		s.logger.WithFields(map[string]interface{}{
			"fetcher":  fetcherName(f),
			"fetched":  len(values),
			"imported": imported,
		}).Info("Fetcher backfill completed")
	}

	s.logger.Info("Finished historical index backfill")
	return nil
}

// saveIfNew inserts the observation unless one already exists for its key.
// Reports whether a new row was stored.
func (s *Service) saveIfNew(ctx context.Context, value IndexValue) (bool, error) {
	value.CountryCode = normalizeCountry(value.CountryCode)
	value.ValueDate = DateOnly(value.ValueDate)

	exists, err := s.store.Exists(ctx, value.IndexType, value.CountryCode, value.ValueDate)
	if err != nil {
		return false, err
	}
	if exists {
		s.logger.WithFields(map[string]interface{}{
			"index_type": value.IndexType,
			"country":    value.CountryCode,
			"date":       value.ValueDate.Format("2006-01-02"),
		}).Debug("Index value already exists, skipping")
		return false, nil
	}

	if _, err := s.store.Insert(ctx, value); err != nil {
		return false, err
	}
	return true, nil
}

func normalizeCountry(countryCode string) string {
	return strings.ToUpper(strings.TrimSpace(countryCode))
}

// fetcherName names a fetcher for log lines by its country and series.
func fetcherName(f Fetcher) string {
	types := f.SupportedIndexTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return f.CountryCode() + ":" + strings.Join(names, ",")
}
