package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proppilot/indices/internal/indices"
)

// schema is applied by Migrate. The unique constraint is what makes the
// check-then-insert protocol race-free: a concurrent duplicate insert
// becomes a no-op instead of a second row.
const schema = `
CREATE TABLE IF NOT EXISTS index_values (
	id            BIGSERIAL PRIMARY KEY,
	index_type    VARCHAR(20) NOT NULL,
	country_code  VARCHAR(2) NOT NULL,
	value_date    DATE NOT NULL,
	value         NUMERIC(18,6) NOT NULL,
	source        VARCHAR(100) NOT NULL,
	raw_response  TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT uk_index_country_date UNIQUE (index_type, country_code, value_date)
);
CREATE INDEX IF NOT EXISTS idx_index_values_type ON index_values (index_type);
CREATE INDEX IF NOT EXISTS idx_index_values_date ON index_values (value_date);
CREATE INDEX IF NOT EXISTS idx_index_values_country ON index_values (country_code);
`

const selectColumns = `id, index_type, country_code, value_date, value, source, COALESCE(raw_response, ''), created_at`

// PostgresStore is the pgx-backed indices.ValueStore.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ indices.ValueStore = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the index_values schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply index_values schema: %w", err)
	}
	return nil
}

// GetLatest returns the observation with the maximum value date.
func (s *PostgresStore) GetLatest(ctx context.Context, indexType indices.IndexType, countryCode string) (*indices.IndexValue, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM index_values
		WHERE index_type = $1 AND country_code = $2
		ORDER BY value_date DESC
		LIMIT 1
	`
	return s.queryOne(ctx, query, indexType, countryCode)
}

// GetAtDate returns the observation for the exact date.
func (s *PostgresStore) GetAtDate(ctx context.Context, indexType indices.IndexType, countryCode string, date time.Time) (*indices.IndexValue, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM index_values
		WHERE index_type = $1 AND country_code = $2 AND value_date = $3
	`
	return s.queryOne(ctx, query, indexType, countryCode, indices.DateOnly(date))
}

// GetClosestOnOrBefore returns the newest observation dated on or before target.
func (s *PostgresStore) GetClosestOnOrBefore(ctx context.Context, indexType indices.IndexType, countryCode string, target time.Time) (*indices.IndexValue, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM index_values
		WHERE index_type = $1 AND country_code = $2 AND value_date <= $3
		ORDER BY value_date DESC
		LIMIT 1
	`
	return s.queryOne(ctx, query, indexType, countryCode, indices.DateOnly(target))
}

// GetRange returns observations in [from, to], descending by date.
func (s *PostgresStore) GetRange(ctx context.Context, indexType indices.IndexType, countryCode string, from, to time.Time) ([]indices.IndexValue, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM index_values
		WHERE index_type = $1 AND country_code = $2
		  AND value_date >= $3 AND value_date <= $4
		ORDER BY value_date DESC
	`
	rows, err := s.pool.Query(ctx, query, indexType, countryCode, indices.DateOnly(from), indices.DateOnly(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanValues(rows)
}

// GetAllLatestForCountry returns the latest observation per index type.
func (s *PostgresStore) GetAllLatestForCountry(ctx context.Context, countryCode string) ([]indices.IndexValue, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM index_values iv
		WHERE country_code = $1
		  AND value_date = (
			SELECT MAX(value_date)
			FROM index_values
			WHERE index_type = iv.index_type AND country_code = iv.country_code
		  )
		ORDER BY index_type
	`
	rows, err := s.pool.Query(ctx, query, countryCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanValues(rows)
}

// Exists reports whether an observation is stored for the key.
func (s *PostgresStore) Exists(ctx context.Context, indexType indices.IndexType, countryCode string, date time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM index_values
			WHERE index_type = $1 AND country_code = $2 AND value_date = $3
		)
	`
	var exists bool
	err := s.pool.QueryRow(ctx, query, indexType, countryCode, indices.DateOnly(date)).Scan(&exists)
	return exists, err
}

// Insert appends an observation. A duplicate key is silently dropped and
// the already-stored row is returned instead.
func (s *PostgresStore) Insert(ctx context.Context, value indices.IndexValue) (*indices.IndexValue, error) {
	query := `
		INSERT INTO index_values (index_type, country_code, value_date, value, source, raw_response)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		ON CONFLICT ON CONSTRAINT uk_index_country_date DO NOTHING
		RETURNING id, created_at
	`
	inserted := value
	inserted.ValueDate = indices.DateOnly(value.ValueDate)

	err := s.pool.QueryRow(ctx, query,
		value.IndexType, value.CountryCode, inserted.ValueDate,
		value.Value, value.Source, value.RawResponse,
	).Scan(&inserted.ID, &inserted.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race to a concurrent insert; the stored row wins.
		return s.GetAtDate(ctx, value.IndexType, value.CountryCode, value.ValueDate)
	}
	if err != nil {
		return nil, err
	}
	return &inserted, nil
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (*indices.IndexValue, error) {
	var v indices.IndexValue
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&v.ID, &v.IndexType, &v.CountryCode, &v.ValueDate,
		&v.Value, &v.Source, &v.RawResponse, &v.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func scanValues(rows pgx.Rows) ([]indices.IndexValue, error) {
	var values []indices.IndexValue
	for rows.Next() {
		var v indices.IndexValue
		if err := rows.Scan(
			&v.ID, &v.IndexType, &v.CountryCode, &v.ValueDate,
			&v.Value, &v.Source, &v.RawResponse, &v.CreatedAt,
		); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
