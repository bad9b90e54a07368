package formulary

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/priorauth-engine/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL coverage store.
// It expects the coverage table to already exist.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL coverage store from a
// connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores or updates the coverage record for its (plan, drug) pair.
func (s *PostgresStore) Save(ctx context.Context, record *domain.CoverageRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("failed to save coverage record: %w", err)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode coverage record: %w", err)
	}

	key := keyFor(record.InsurancePlan, record.DrugName)
	now := time.Now()

	query := `
		INSERT INTO coverage (
			plan_norm, drug_norm, record, category_norm, pool_order,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (plan_norm, drug_norm) DO UPDATE SET
			record = EXCLUDED.record,
			category_norm = EXCLUDED.category_norm,
			pool_order = EXCLUDED.pool_order,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		key.plan,
		key.drug,
		string(payload),
		domain.NormalizeName(record.Category),
		record.PoolOrder,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save coverage record: %w", err)
	}
	return nil
}

// ResolveCoverage retrieves the coverage record for a (plan, drug) pair.
func (s *PostgresStore) ResolveCoverage(ctx context.Context, insurancePlan, drugName string) (*domain.CoverageRecord, error) {
	key := keyFor(insurancePlan, drugName)

	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT record FROM coverage WHERE plan_norm = $1 AND drug_norm = $2 LIMIT 1",
		key.plan, key.drug,
	).Scan(&payload)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("plan %q drug %q: %w", insurancePlan, drugName, domain.ErrCoverageNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query coverage: %w", err)
	}

	return decodeRecord(payload)
}

// CandidatesByCategory returns the plan's records in a therapeutic category
// ordered by pool order then drug name.
func (s *PostgresStore) CandidatesByCategory(ctx context.Context, insurancePlan, category string) ([]*domain.CoverageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record FROM coverage
		WHERE plan_norm = $1 AND category_norm = $2
		ORDER BY pool_order, drug_norm
	`,
		domain.NormalizeName(insurancePlan),
		domain.NormalizeName(category),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var records []*domain.CoverageRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		record, err := decodeRecord(payload)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ListPlans returns the distinct insurance plans with configuration.
func (s *PostgresStore) ListPlans(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT plan_norm FROM coverage ORDER BY plan_norm")
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []string
	for rows.Next() {
		var plan string
		if err := rows.Scan(&plan); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// Count returns the total number of coverage records.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM coverage").Scan(&count)
	return count, err
}

// Delete removes the record for a (plan, drug) pair.
func (s *PostgresStore) Delete(ctx context.Context, insurancePlan, drugName string) error {
	key := keyFor(insurancePlan, drugName)
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM coverage WHERE plan_norm = $1 AND drug_norm = $2",
		key.plan, key.drug,
	)
	return err
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
