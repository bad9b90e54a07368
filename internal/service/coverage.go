package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/priorauth-engine/internal/domain"
)

// CoverageResolver resolves coverage records and classifies the selected dose
// into its schedule phase.
type CoverageResolver struct {
	logger *logrus.Logger
	source domain.CoverageSource
}

// NewCoverageResolver creates a new coverage resolver backed by a coverage source.
func NewCoverageResolver(source domain.CoverageSource, logger *logrus.Logger) *CoverageResolver {
	return &CoverageResolver{
		logger: logger,
		source: source,
	}
}

// ResolveCoverage looks up the coverage record for (plan, drug). Matching is
// case- and whitespace-insensitive; the store performs the normalized lookup.
func (r *CoverageResolver) ResolveCoverage(ctx context.Context, insurancePlan, drugName string) (*domain.CoverageRecord, error) {
	record, err := r.source.ResolveCoverage(ctx, insurancePlan, drugName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve coverage for plan %q drug %q: %w", insurancePlan, drugName, err)
	}

	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("coverage configuration for plan %q drug %q is invalid: %w", insurancePlan, drugName, err)
	}

	r.logger.WithFields(logrus.Fields{
		"plan":        record.InsurancePlan,
		"drug":        record.DrugName,
		"pa_required": record.PARequired,
		"criteria":    len(record.Criteria),
	}).Debug("Resolved coverage record")

	return record, nil
}

// ClassifyPhase assigns the dose phase from the position of the selected dose
// within the coverage dose schedule. Index 0 is starting, the last index is
// maintenance, interior indexes are titration, and a single-entry schedule is
// always maintenance.
//
// When the record has no schedule or no dose was supplied, no phase is
// assigned and nil error is returned: criteria filtering falls back to the
// unfiltered set. When the schedule is present but the dose does not match
// any entry, ErrDoseNotInSchedule is returned; callers should treat it as a
// warning, not abort evaluation.
func (r *CoverageResolver) ClassifyPhase(coverage *domain.CoverageRecord, dose string) (domain.DosePhase, error) {
	if len(coverage.DoseSchedule) == 0 || dose == "" {
		return "", nil
	}

	idx := coverage.ScheduleIndex(dose)
	if idx < 0 {
		return "", fmt.Errorf("dose %q for drug %q: %w", dose, coverage.DrugName, domain.ErrDoseNotInSchedule)
	}

	phase := phaseForIndex(idx, len(coverage.DoseSchedule))

	r.logger.WithFields(logrus.Fields{
		"drug":           coverage.DrugName,
		"dose":           dose,
		"schedule_index": idx,
		"phase":          phase.String(),
	}).Debug("Classified dose phase")

	return phase, nil
}

// phaseForIndex maps a schedule position to its phase. A single-entry
// schedule is maintenance.
func phaseForIndex(idx, scheduleLen int) domain.DosePhase {
	switch {
	case idx == scheduleLen-1:
		return domain.PhaseMaintenance
	case idx == 0:
		return domain.PhaseStarting
	default:
		return domain.PhaseTitration
	}
}
