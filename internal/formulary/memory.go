package formulary

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/priorauth-engine/internal/domain"
)

// MemoryStore is an in-memory Store used for development and as the seed
// target for the bundled reference formulary.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]*domain.CoverageRecord
}

type recordKey struct {
	plan string
	drug string
}

func keyFor(insurancePlan, drugName string) recordKey {
	return recordKey{
		plan: domain.NormalizeName(insurancePlan),
		drug: domain.NormalizeName(drugName),
	}
}

// NewMemoryStore creates an empty in-memory coverage store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[recordKey]*domain.CoverageRecord)}
}

// NewMemoryStoreWithRecords creates a store pre-loaded with records.
// Invalid records are rejected.
func NewMemoryStoreWithRecords(records []*domain.CoverageRecord) (*MemoryStore, error) {
	store := NewMemoryStore()
	for _, record := range records {
		if err := store.Save(context.Background(), record); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Save stores or updates the coverage record for its (plan, drug) pair.
func (s *MemoryStore) Save(_ context.Context, record *domain.CoverageRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("failed to save coverage record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[keyFor(record.InsurancePlan, record.DrugName)] = record
	return nil
}

// ResolveCoverage retrieves the coverage record for a (plan, drug) pair.
func (s *MemoryStore) ResolveCoverage(_ context.Context, insurancePlan, drugName string) (*domain.CoverageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[keyFor(insurancePlan, drugName)]
	if !ok {
		return nil, fmt.Errorf("plan %q drug %q: %w", insurancePlan, drugName, domain.ErrCoverageNotFound)
	}
	return record, nil
}

// CandidatesByCategory returns the plan's records in a therapeutic category
// ordered by pool order then drug name.
func (s *MemoryStore) CandidatesByCategory(_ context.Context, insurancePlan, category string) ([]*domain.CoverageRecord, error) {
	planNorm := domain.NormalizeName(insurancePlan)
	categoryNorm := domain.NormalizeName(category)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*domain.CoverageRecord
	for key, record := range s.records {
		if key.plan != planNorm {
			continue
		}
		if domain.NormalizeName(record.Category) != categoryNorm {
			continue
		}
		matches = append(matches, record)
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].PoolOrder != matches[b].PoolOrder {
			return matches[a].PoolOrder < matches[b].PoolOrder
		}
		return matches[a].DrugName < matches[b].DrugName
	})

	return matches, nil
}

// ListPlans returns the distinct insurance plans with configuration.
func (s *MemoryStore) ListPlans(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]string)
	for _, record := range s.records {
		seen[domain.NormalizeName(record.InsurancePlan)] = record.InsurancePlan
	}

	plans := make([]string, 0, len(seen))
	for _, plan := range seen {
		plans = append(plans, plan)
	}
	sort.Strings(plans)
	return plans, nil
}

// Count returns the total number of coverage records.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// Delete removes the record for a (plan, drug) pair.
func (s *MemoryStore) Delete(_ context.Context, insurancePlan, drugName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, keyFor(insurancePlan, drugName))
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
