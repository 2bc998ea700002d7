package indices

import "context"

// Fetcher pulls observations of one or more index series from a single
// external source and normalizes them into IndexValue records.
//
// Implementations skip individual rows they cannot parse and return an
// error only when the whole fetch fails (transport error, unusable
// payload). The valuation service absorbs those errors per fetcher, so one
// broken source never blocks the others.
type Fetcher interface {
	// SupportedIndexTypes returns the index series this fetcher provides.
	SupportedIndexTypes() []IndexType

	// CountryCode returns the country this fetcher provides data for.
	CountryCode() string

	// FetchLatest retrieves the most recent available observation(s).
	FetchLatest(ctx context.Context) ([]IndexValue, error)

	// FetchAllHistorical retrieves the full available history, sorted
	// ascending by date. Sources without a bulk endpoint delegate to
	// FetchLatest.
	FetchAllHistorical(ctx context.Context) ([]IndexValue, error)
}
