package indices_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proppilot/indices/internal/indices"
	"github.com/proppilot/indices/internal/indices/store"
	"github.com/proppilot/indices/pkg/logger"
)

// stubFetcher is a scripted indices.Fetcher for service tests.
type stubFetcher struct {
	country     string
	types       []indices.IndexType
	latest      []indices.IndexValue
	historical  []indices.IndexValue
	err         error
	latestCalls int
}

func (f *stubFetcher) SupportedIndexTypes() []indices.IndexType { return f.types }
func (f *stubFetcher) CountryCode() string                      { return f.country }

func (f *stubFetcher) FetchLatest(_ context.Context) ([]indices.IndexValue, error) {
	f.latestCalls++
	return f.latest, f.err
}

func (f *stubFetcher) FetchAllHistorical(_ context.Context) ([]indices.IndexValue, error) {
	return f.historical, f.err
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}

func newTestService(t *testing.T, values ...indices.IndexValue) (*indices.Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	for _, v := range values {
		_, err := st.Insert(context.Background(), v)
		require.NoError(t, err)
	}
	return indices.NewService(st, nil, logger.NewNop()), st
}

func iclValue(t *testing.T, day time.Time, value string) indices.IndexValue {
	t.Helper()
	return indices.IndexValue{
		IndexType:   indices.IndexICL,
		CountryCode: "AR",
		ValueDate:   day,
		Value:       dec(t, value),
		Source:      "bcra",
	}
}

func TestAdjustmentFactor(t *testing.T) {
	svc, _ := newTestService(t,
		iclValue(t, date(2025, 1, 10), "900"),
		iclValue(t, date(2026, 1, 10), "950"),
	)
	ctx := context.Background()

	factor, err := svc.AdjustmentFactor(ctx, "AR", indices.IndexICL, date(2025, 1, 10), date(2026, 1, 10))
	require.NoError(t, err)
	assert.Equal(t, "1.055556", factor.StringFixed(6))
}

func TestAdjustmentFactor_ClosestOnOrBefore(t *testing.T) {
	// Neither requested date has an exact observation; both resolve to the
	// newest value on or before the date.
	svc, _ := newTestService(t,
		iclValue(t, date(2025, 1, 10), "900"),
		iclValue(t, date(2026, 1, 10), "950"),
	)
	ctx := context.Background()

	factor, err := svc.AdjustmentFactor(ctx, "AR", indices.IndexICL, date(2025, 1, 15), date(2026, 1, 15))
	require.NoError(t, err)
	assert.Equal(t, "1.055556", factor.StringFixed(6))
}

func TestAdjustmentFactor_NoneIsIdentity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	factor, err := svc.AdjustmentFactor(ctx, "AR", indices.IndexNone, date(2025, 1, 1), date(2026, 1, 1))
	require.NoError(t, err)
	assert.True(t, factor.Equal(decimal.NewFromInt(1)))
}

func TestAdjustmentFactor_MissingDataFallsBackToOne(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	factor, err := svc.AdjustmentFactor(ctx, "AR", indices.IndexICL, date(2025, 1, 1), date(2026, 1, 1))
	require.NoError(t, err)
	assert.True(t, factor.Equal(decimal.NewFromInt(1)))
}

func TestAdjustmentFactor_ZeroFromValueFallsBackToOne(t *testing.T) {
	svc, _ := newTestService(t,
		iclValue(t, date(2025, 1, 10), "0"),
		iclValue(t, date(2026, 1, 10), "950"),
	)
	ctx := context.Background()

	factor, err := svc.AdjustmentFactor(ctx, "AR", indices.IndexICL, date(2025, 1, 10), date(2026, 1, 10))
	require.NoError(t, err)
	assert.True(t, factor.Equal(decimal.NewFromInt(1)))
}

func TestAnnualPercentageChange_IPCCompounds(t *testing.T) {
	// IPC stores monthly percentage changes; the annual figure compounds
	// them: (1.02 * 1.03 - 1) * 100 = 5.06.
	ipc := func(day time.Time, value string) indices.IndexValue {
		return indices.IndexValue{
			IndexType:   indices.IndexIPC,
			CountryCode: "AR",
			ValueDate:   day,
			Value:       dec(t, value),
			Source:      "argentinadatos",
		}
	}

	svc, _ := newTestService(t,
		ipc(date(2026, 5, 15), "2.0"),
		ipc(date(2026, 6, 15), "3.0"),
	)
	svc.WithClock(func() time.Time { return date(2026, 7, 1) })
	ctx := context.Background()

	change, err := svc.AnnualPercentageChange(ctx, "AR", indices.IndexIPC)
	require.NoError(t, err)
	assert.Equal(t, "5.06", change.StringFixed(2))
}

func TestAnnualPercentageChange_RatioSeries(t *testing.T) {
	svc, _ := newTestService(t,
		iclValue(t, date(2025, 7, 1), "800"),
		iclValue(t, date(2026, 6, 30), "1000"),
	)
	svc.WithClock(func() time.Time { return date(2026, 7, 1) })
	ctx := context.Background()

	change, err := svc.AnnualPercentageChange(ctx, "AR", indices.IndexICL)
	require.NoError(t, err)
	assert.Equal(t, "25.00", change.StringFixed(2))
}

func TestAnnualPercentageChange_NoDataIsZero(t *testing.T) {
	svc, _ := newTestService(t)
	svc.WithClock(func() time.Time { return date(2026, 7, 1) })
	ctx := context.Background()

	for _, indexType := range []indices.IndexType{indices.IndexIPC, indices.IndexICL, indices.IndexNone} {
		change, err := svc.AnnualPercentageChange(ctx, "AR", indexType)
		require.NoError(t, err)
		assert.True(t, change.IsZero(), "expected zero change for %s", indexType)
	}
}

func TestMonthlyPercentageChange_IPCReturnsLatest(t *testing.T) {
	svc, _ := newTestService(t, indices.IndexValue{
		IndexType:   indices.IndexIPC,
		CountryCode: "AR",
		ValueDate:   date(2026, 6, 15),
		Value:       dec(t, "2.345"),
		Source:      "argentinadatos",
	})
	ctx := context.Background()

	change, err := svc.MonthlyPercentageChange(ctx, "AR", indices.IndexIPC)
	require.NoError(t, err)
	assert.Equal(t, "2.35", change.StringFixed(2))
}

func TestMonthlyPercentageChange_RatioSeries(t *testing.T) {
	svc, _ := newTestService(t,
		iclValue(t, date(2026, 6, 1), "1000"),
		iclValue(t, date(2026, 7, 1), "1050"),
	)
	svc.WithClock(func() time.Time { return date(2026, 7, 1) })
	ctx := context.Background()

	change, err := svc.MonthlyPercentageChange(ctx, "AR", indices.IndexICL)
	require.NoError(t, err)
	assert.Equal(t, "5.00", change.StringFixed(2))
}

func TestAdjustedAmount(t *testing.T) {
	svc, _ := newTestService(t,
		iclValue(t, date(2025, 1, 10), "900"),
		iclValue(t, date(2026, 1, 10), "950"),
	)
	ctx := context.Background()

	adjusted, err := svc.AdjustedAmount(ctx, dec(t, "100000"), "AR", indices.IndexICL,
		date(2025, 1, 10), date(2026, 1, 10))
	require.NoError(t, err)
	// 100000 * 1.055556 = 105555.60
	assert.Equal(t, "105555.60", adjusted.StringFixed(2))
}

func TestAdjustedAmount_PassThrough(t *testing.T) {
	svc, _ := newTestService(t,
		iclValue(t, date(2025, 1, 10), "900"),
		iclValue(t, date(2026, 1, 10), "950"),
	)
	ctx := context.Background()

	tests := []struct {
		name      string
		amount    string
		indexType indices.IndexType
	}{
		{name: "zero amount", amount: "0", indexType: indices.IndexICL},
		{name: "negative amount", amount: "-50", indexType: indices.IndexICL},
		{name: "none index", amount: "100000", indexType: indices.IndexNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := dec(t, tt.amount)
			adjusted, err := svc.AdjustedAmount(ctx, base, "AR", tt.indexType,
				date(2025, 1, 10), date(2026, 1, 10))
			require.NoError(t, err)
			assert.True(t, adjusted.Equal(base))
		})
	}
}

func TestRefresh_StoresNewValuesOnce(t *testing.T) {
	fetcher := &stubFetcher{
		country: "AR",
		types:   []indices.IndexType{indices.IndexICL},
		latest: []indices.IndexValue{
			iclValue(t, date(2026, 8, 26), "1200.5"),
		},
	}

	st := store.NewMemoryStore()
	svc := indices.NewService(st, []indices.Fetcher{fetcher}, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, svc.Refresh(ctx, "ar"))
	require.NoError(t, svc.Refresh(ctx, "AR"))

	// Same observation refreshed twice lands exactly once.
	stored, err := st.GetRange(ctx, indices.IndexICL, "AR", date(2026, 1, 1), date(2026, 12, 31))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(1), stored[0].ID)
	assert.True(t, stored[0].Value.Equal(dec(t, "1200.5")))
}

func TestRefresh_FailingFetcherDoesNotBlockOthers(t *testing.T) {
	broken := &stubFetcher{
		country: "AR",
		types:   []indices.IndexType{indices.IndexIPC},
		err:     errors.New("upstream down"),
	}
	working := &stubFetcher{
		country: "AR",
		types:   []indices.IndexType{indices.IndexICL},
		latest: []indices.IndexValue{
			iclValue(t, date(2026, 8, 26), "1200.5"),
		},
	}

	st := store.NewMemoryStore()
	svc := indices.NewService(st, []indices.Fetcher{broken, working}, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, svc.Refresh(ctx, "AR"))

	v, err := st.GetLatest(ctx, indices.IndexICL, "AR")
	require.NoError(t, err)
	require.NotNil(t, v)
}

func TestRefresh_SkipsOtherCountries(t *testing.T) {
	other := &stubFetcher{country: "UY", types: []indices.IndexType{indices.IndexIPC}}

	st := store.NewMemoryStore()
	svc := indices.NewService(st, []indices.Fetcher{other}, logger.NewNop())

	require.NoError(t, svc.Refresh(context.Background(), "AR"))
	assert.Zero(t, other.latestCalls)
}

func TestRefreshAll_RefreshesEachCountryOnce(t *testing.T) {
	first := &stubFetcher{country: "AR", types: []indices.IndexType{indices.IndexICL}}
	second := &stubFetcher{country: "AR", types: []indices.IndexType{indices.IndexIPC}}

	st := store.NewMemoryStore()
	svc := indices.NewService(st, []indices.Fetcher{first, second}, logger.NewNop())

	require.NoError(t, svc.RefreshAll(context.Background()))

	// Two fetchers share one country; each fetches exactly once.
	assert.Equal(t, 1, first.latestCalls)
	assert.Equal(t, 1, second.latestCalls)
}

func TestBackfill_ImportsHistoryIdempotently(t *testing.T) {
	fetcher := &stubFetcher{
		country: "AR",
		types:   []indices.IndexType{indices.IndexICL},
		historical: []indices.IndexValue{
			iclValue(t, date(2026, 8, 24), "1198.1"),
			iclValue(t, date(2026, 8, 25), "1199.3"),
			iclValue(t, date(2026, 8, 26), "1200.5"),
		},
	}

	st := store.NewMemoryStore()
	svc := indices.NewService(st, []indices.Fetcher{fetcher}, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, svc.Backfill(ctx))
	require.NoError(t, svc.Backfill(ctx))

	stored, err := st.GetRange(ctx, indices.IndexICL, "AR", date(2026, 1, 1), date(2026, 12, 31))
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}
