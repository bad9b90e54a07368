// Package formulary provides storage for payer coverage configuration.
// A store holds per-plan coverage records keyed by normalized plan and drug
// names and serves as the engine's CoverageSource.
package formulary

import (
	"context"

	"github.com/priorauth-engine/internal/domain"
)

// Store defines the interface for coverage-record storage operations.
type Store interface {
	// Save stores or updates the coverage record for its (plan, drug) pair.
	Save(ctx context.Context, record *domain.CoverageRecord) error

	// ResolveCoverage retrieves the coverage record for a (plan, drug) pair
	// using normalized matching. Returns domain.ErrCoverageNotFound when the
	// pair is not configured.
	ResolveCoverage(ctx context.Context, insurancePlan, drugName string) (*domain.CoverageRecord, error)

	// CandidatesByCategory returns the plan's records in a therapeutic
	// category ordered by pool order then drug name.
	CandidatesByCategory(ctx context.Context, insurancePlan, category string) ([]*domain.CoverageRecord, error)

	// ListPlans returns the distinct insurance plans with configuration.
	ListPlans(ctx context.Context) ([]string, error)

	// Count returns the total number of coverage records.
	Count(ctx context.Context) (int64, error)

	// Delete removes the record for a (plan, drug) pair.
	Delete(ctx context.Context, insurancePlan, drugName string) error

	// Close closes the store and releases resources.
	Close() error
}
