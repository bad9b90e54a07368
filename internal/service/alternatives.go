package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/priorauth-engine/internal/domain"
)

// AlternativeRanker finds higher-likelihood medications in the same
// therapeutic category when the current assessment is weak.
type AlternativeRanker struct {
	logger         *logrus.Logger
	engine         *CriterionEngine
	calculator     *Calculator
	maxCandidates  int
	maxConcurrency int
}

// NewAlternativeRanker creates a ranker sharing the engine's evaluators and
// calculator. maxCandidates bounds the returned list (default 3) and
// maxConcurrency bounds parallel candidate evaluations (default 4).
func NewAlternativeRanker(engine *CriterionEngine, calculator *Calculator, maxCandidates, maxConcurrency int, logger *logrus.Logger) *AlternativeRanker {
	if maxCandidates <= 0 {
		maxCandidates = 3
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &AlternativeRanker{
		logger:         logger,
		engine:         engine,
		calculator:     calculator,
		maxCandidates:  maxCandidates,
		maxConcurrency: maxConcurrency,
	}
}

// rankedCandidate pairs a candidate with its pool position for deterministic
// tie-breaking regardless of goroutine completion order.
type rankedCandidate struct {
	candidate domain.AlternativeCandidate
	poolOrder int
}

// RankAlternatives evaluates each candidate coverage record at its starting
// dose against the same patient snapshot, keeps those whose likelihood
// strictly exceeds the current one, and returns the top candidates sorted by
// likelihood descending with ties broken by pool order.
//
// Candidate evaluations are mutually independent and run concurrently under
// a semaphore; the ordering of the final list does not depend on completion
// order.
func (r *AlternativeRanker) RankAlternatives(
	ctx context.Context,
	patient *domain.PatientSnapshot,
	currentDrug string,
	currentLikelihood int,
	pool []*domain.CoverageRecord,
	now time.Time,
) []domain.AlternativeCandidate {
	if len(pool) == 0 {
		return nil
	}

	currentNorm := domain.NormalizeName(currentDrug)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ranked    []rankedCandidate
		semaphore = make(chan struct{}, r.maxConcurrency)
	)

	for i, record := range pool {
		if domain.NormalizeName(record.DrugName) == currentNorm {
			continue
		}

		wg.Add(1)
		go func(poolOrder int, rec *domain.CoverageRecord) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				return
			}

			candidate, ok := r.evaluateCandidate(patient, rec, currentLikelihood, now)
			if !ok {
				return
			}

			mu.Lock()
			ranked = append(ranked, rankedCandidate{candidate: candidate, poolOrder: poolOrder})
			mu.Unlock()
		}(i, record)
	}

	wg.Wait()

	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].candidate.ApprovalLikelihood != ranked[b].candidate.ApprovalLikelihood {
			return ranked[a].candidate.ApprovalLikelihood > ranked[b].candidate.ApprovalLikelihood
		}
		return ranked[a].poolOrder < ranked[b].poolOrder
	})

	if len(ranked) > r.maxCandidates {
		ranked = ranked[:r.maxCandidates]
	}

	candidates := make([]domain.AlternativeCandidate, 0, len(ranked))
	for _, rc := range ranked {
		candidates = append(candidates, rc.candidate)
	}

	r.logger.WithFields(logrus.Fields{
		"current_drug":       currentDrug,
		"current_likelihood": currentLikelihood,
		"pool_size":          len(pool),
		"alternatives":       len(candidates),
	}).Info("Completed alternative ranking")

	return candidates
}

// evaluateCandidate runs the full applicability/evaluation/likelihood
// pipeline for one candidate at its starting dose. Candidates that do not
// strictly improve on the current likelihood are excluded.
func (r *AlternativeRanker) evaluateCandidate(
	patient *domain.PatientSnapshot,
	record *domain.CoverageRecord,
	currentLikelihood int,
	now time.Time,
) (domain.AlternativeCandidate, bool) {
	dose := record.StartingDose()

	var phase domain.DosePhase
	if len(record.DoseSchedule) > 0 {
		phase = phaseForIndex(0, len(record.DoseSchedule))
	}

	continuation := DetectContinuation(patient, record.DrugName, dose)
	specs := ApplicableCriteria(record, phase, continuation)

	drugCtx := &DrugContext{
		Coverage:            record,
		Dose:                dose,
		Phase:               phase,
		WeightLossThreshold: classThreshold(record, nil),
		Now:                 now,
	}

	results := r.engine.EvaluateAll(patient, specs, drugCtx)
	assessment := r.calculator.AssessApproval(results, nil)

	if assessment.Likelihood <= currentLikelihood {
		return domain.AlternativeCandidate{}, false
	}

	return domain.AlternativeCandidate{
		Medication:         record.DrugName,
		GenericName:        record.GenericName,
		Category:           record.Category,
		SuggestedDose:      dose,
		ApprovalLikelihood: assessment.Likelihood,
		Improvement:        assessment.Likelihood - currentLikelihood,
		Factors:            assessment.Factors,
	}, true
}
