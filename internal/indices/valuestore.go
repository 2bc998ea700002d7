package indices

import (
	"context"
	"time"
)

// ValueStore is the persistence contract for index observations.
// All queries are scoped by (index type, country code) unless noted.
// Implementations live in the store subpackage.
type ValueStore interface {
	// GetLatest returns the observation with the maximum value date,
	// or nil when the series is empty.
	GetLatest(ctx context.Context, indexType IndexType, countryCode string) (*IndexValue, error)

	// GetAtDate returns the observation for the exact date, or nil.
	GetAtDate(ctx context.Context, indexType IndexType, countryCode string, date time.Time) (*IndexValue, error)

	// GetClosestOnOrBefore returns the observation with the maximum value
	// date <= target, or nil when every observation is after target.
	// Tolerates weekends and holidays with no published value.
	GetClosestOnOrBefore(ctx context.Context, indexType IndexType, countryCode string, target time.Time) (*IndexValue, error)

	// GetRange returns all observations with value date in [from, to],
	// descending by date.
	GetRange(ctx context.Context, indexType IndexType, countryCode string, from, to time.Time) ([]IndexValue, error)

	// GetAllLatestForCountry returns the latest observation per index type
	// present for the country, one row per type.
	GetAllLatestForCountry(ctx context.Context, countryCode string) ([]IndexValue, error)

	// Exists reports whether an observation is stored for the key.
	Exists(ctx context.Context, indexType IndexType, countryCode string, date time.Time) (bool, error)

	// Insert appends an observation. A concurrent insert for the same
	// (type, country, date) key is a no-op, never a duplicate row.
	Insert(ctx context.Context, value IndexValue) (*IndexValue, error)
}
