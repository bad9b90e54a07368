package formulary

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/priorauth-engine/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite coverage store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS coverage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		plan_norm TEXT NOT NULL,
		drug_norm TEXT NOT NULL,
		record TEXT NOT NULL,
		category_norm TEXT DEFAULT '',
		pool_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(plan_norm, drug_norm)
	);

	CREATE INDEX IF NOT EXISTS idx_coverage_plan ON coverage(plan_norm);
	CREATE INDEX IF NOT EXISTS idx_coverage_category ON coverage(plan_norm, category_norm);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or updates the coverage record for its (plan, drug) pair.
func (s *SQLiteStore) Save(ctx context.Context, record *domain.CoverageRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("failed to save coverage record: %w", err)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode coverage record: %w", err)
	}

	key := keyFor(record.InsurancePlan, record.DrugName)
	now := time.Now()

	var existingID int64
	err = s.db.QueryRowContext(ctx,
		"SELECT id FROM coverage WHERE plan_norm = ? AND drug_norm = ?",
		key.plan, key.drug,
	).Scan(&existingID)

	if err == nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE coverage SET
				record = ?,
				category_norm = ?,
				pool_order = ?,
				updated_at = ?
			WHERE id = ?
		`,
			string(payload),
			domain.NormalizeName(record.Category),
			record.PoolOrder,
			now,
			existingID,
		)
		return err
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO coverage (
			plan_norm, drug_norm, record, category_norm, pool_order,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		key.plan,
		key.drug,
		string(payload),
		domain.NormalizeName(record.Category),
		record.PoolOrder,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	return nil
}

// ResolveCoverage retrieves the coverage record for a (plan, drug) pair.
func (s *SQLiteStore) ResolveCoverage(ctx context.Context, insurancePlan, drugName string) (*domain.CoverageRecord, error) {
	key := keyFor(insurancePlan, drugName)

	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT record FROM coverage WHERE plan_norm = ? AND drug_norm = ? LIMIT 1",
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
func (s *SQLiteStore) CandidatesByCategory(ctx context.Context, insurancePlan, category string) ([]*domain.CoverageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record FROM coverage
		WHERE plan_norm = ? AND category_norm = ?
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
func (s *SQLiteStore) ListPlans(ctx context.Context) ([]string, error) {
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM coverage").Scan(&count)
	return count, err
}

// Delete removes the record for a (plan, drug) pair.
func (s *SQLiteStore) Delete(ctx context.Context, insurancePlan, drugName string) error {
	key := keyFor(insurancePlan, drugName)
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM coverage WHERE plan_norm = ? AND drug_norm = ?",
		key.plan, key.drug,
	)
	return err
}

// Seed inserts the given records, skipping pairs that already exist.
func (s *SQLiteStore) Seed(ctx context.Context, records []*domain.CoverageRecord) (inserted int, err error) {
	for _, record := range records {
		key := keyFor(record.InsurancePlan, record.DrugName)
		var existingID int64
		err := s.db.QueryRowContext(ctx,
			"SELECT id FROM coverage WHERE plan_norm = ? AND drug_norm = ?",
			key.plan, key.drug,
		).Scan(&existingID)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return inserted, fmt.Errorf("failed to check existing: %w", err)
		}
		if err := s.Save(ctx, record); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeRecord(payload string) (*domain.CoverageRecord, error) {
	record := &domain.CoverageRecord{}
	if err := json.Unmarshal([]byte(payload), record); err != nil {
		return nil, fmt.Errorf("failed to decode coverage record: %w", err)
	}
	return record, nil
}
