package service

import (
	"github.com/priorauth-engine/internal/domain"
)

// ApplicableCriteria selects the subset of the coverage record's criteria
// relevant to the classified phase and continuation state, preserving the
// original configuration order. An empty result is valid: the drug requires
// no PA review.
//
// Phase filtering: a criterion with an empty phase set applies everywhere;
// when no phase could be classified (empty phase), filtering is skipped
// entirely and the full set applies.
//
// Continuation filtering: weight-loss, weight-maintained and weight-program
// criteria never apply to continuations. Age, BMI and dose-progression
// criteria form the basic eligibility set and are never filtered out by
// continuation status; other types honor their SkipOnContinuation flag.
func ApplicableCriteria(coverage *domain.CoverageRecord, phase domain.DosePhase, continuation bool) []domain.CriterionSpec {
	applicable := make([]domain.CriterionSpec, 0, len(coverage.Criteria))

	for _, spec := range coverage.Criteria {
		if phase != "" && !spec.AppliesToPhase(phase) {
			continue
		}
		if continuation && skippedOnContinuation(&spec) {
			continue
		}
		applicable = append(applicable, spec)
	}

	return applicable
}

// skippedOnContinuation reports whether a criterion is waived for
// continuation requests.
func skippedOnContinuation(spec *domain.CriterionSpec) bool {
	switch spec.Type {
	case domain.CriterionWeightLoss, domain.CriterionWeightMaintained, domain.CriterionWeightProgram:
		return true
	case domain.CriterionAge, domain.CriterionBMI, domain.CriterionDoseProgression:
		return false
	default:
		return spec.SkipOnContinuation
	}
}
