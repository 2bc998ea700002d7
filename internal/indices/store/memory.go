package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/proppilot/indices/internal/indices"
)

// MemoryStore is an in-memory indices.ValueStore with the same semantics as the
// Postgres implementation. Used by tests and by environments without a
// database.
type MemoryStore struct {
	mu     sync.RWMutex
	byKey  map[string]indices.IndexValue
	nextID int64
}

var _ indices.ValueStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byKey:  make(map[string]indices.IndexValue),
		nextID: 1,
	}
}

// GetLatest returns the observation with the maximum value date.
func (s *MemoryStore) GetLatest(_ context.Context, indexType indices.IndexType, countryCode string) (*indices.IndexValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *indices.IndexValue
	for _, v := range s.byKey {
		v := v
		if v.IndexType != indexType || v.CountryCode != countryCode {
			continue
		}
		if latest == nil || v.ValueDate.After(latest.ValueDate) {
			latest = &v
		}
	}
	return latest, nil
}

// GetAtDate returns the observation for the exact date.
func (s *MemoryStore) GetAtDate(_ context.Context, indexType indices.IndexType, countryCode string, date time.Time) (*indices.IndexValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := indices.IndexValue{IndexType: indexType, CountryCode: countryCode, ValueDate: indices.DateOnly(date)}.Key()
	if v, ok := s.byKey[key]; ok {
		return &v, nil
	}
	return nil, nil
}

// GetClosestOnOrBefore returns the newest observation dated on or before target.
func (s *MemoryStore) GetClosestOnOrBefore(_ context.Context, indexType indices.IndexType, countryCode string, target time.Time) (*indices.IndexValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := indices.DateOnly(target)
	var closest *indices.IndexValue
	for _, v := range s.byKey {
		v := v
		if v.IndexType != indexType || v.CountryCode != countryCode {
			continue
		}
		if v.ValueDate.After(day) {
			continue
		}
		if closest == nil || v.ValueDate.After(closest.ValueDate) {
			closest = &v
		}
	}
	return closest, nil
}

// GetRange returns observations in [from, to], descending by date.
func (s *MemoryStore) GetRange(_ context.Context, indexType indices.IndexType, countryCode string, from, to time.Time) ([]indices.IndexValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fromDay, toDay := indices.DateOnly(from), indices.DateOnly(to)
	var values []indices.IndexValue
	for _, v := range s.byKey {
		if v.IndexType != indexType || v.CountryCode != countryCode {
			continue
		}
		if v.ValueDate.Before(fromDay) || v.ValueDate.After(toDay) {
			continue
		}
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i].ValueDate.After(values[j].ValueDate)
	})
	return values, nil
}

// GetAllLatestForCountry returns the latest observation per index type.
func (s *MemoryStore) GetAllLatestForCountry(_ context.Context, countryCode string) ([]indices.IndexValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[indices.IndexType]indices.IndexValue)
	for _, v := range s.byKey {
		if v.CountryCode != countryCode {
			continue
		}
		if cur, ok := latest[v.IndexType]; !ok || v.ValueDate.After(cur.ValueDate) {
			latest[v.IndexType] = v
		}
	}

	values := make([]indices.IndexValue, 0, len(latest))
	for _, v := range latest {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i].IndexType < values[j].IndexType
	})
	return values, nil
}

// Exists reports whether an observation is stored for the key.
func (s *MemoryStore) Exists(_ context.Context, indexType indices.IndexType, countryCode string, date time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := indices.IndexValue{IndexType: indexType, CountryCode: countryCode, ValueDate: indices.DateOnly(date)}.Key()
	_, ok := s.byKey[key]
	return ok, nil
}

// Insert appends an observation. Inserting a duplicate key keeps the
// stored row and returns it, mirroring the Postgres ON CONFLICT behavior.
func (s *MemoryStore) Insert(_ context.Context, value indices.IndexValue) (*indices.IndexValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value.ValueDate = indices.DateOnly(value.ValueDate)
	key := value.Key()
	if existing, ok := s.byKey[key]; ok {
		return &existing, nil
	}

	value.ID = s.nextID
	s.nextID++
	if value.CreatedAt.IsZero() {
		value.CreatedAt = time.Now().UTC()
	}
	s.byKey[key] = value
	return &value, nil
}
