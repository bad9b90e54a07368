package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priorauth-engine/internal/domain"
)

// poolRecord builds a minimal coverage record whose sole criterion is a
// minimum-age check, so the candidate's likelihood is controlled entirely by
// the patient's age.
func poolRecord(drug string, poolOrder, minAge int) *domain.CoverageRecord {
	return &domain.CoverageRecord{
		InsurancePlan: "Acme Health PPO",
		DrugName:      drug,
		Category:      "GLP-1 receptor agonist",
		PARequired:    true,
		PoolOrder:     poolOrder,
		DoseSchedule: []domain.DoseScheduleEntry{
			{Dose: "0.25 mg", DurationWeeks: 4},
			{Dose: "2.4 mg"},
		},
		Criteria: []domain.CriterionSpec{
			{Type: domain.CriterionAge, Rule: "minimum age", MinAge: minAge},
		},
	}
}

func newTestRanker(maxCandidates int) *AlternativeRanker {
	logger := newTestLogger()
	return NewAlternativeRanker(NewCriterionEngine(logger), NewCalculator(logger), maxCandidates, 4, logger)
}

func TestAlternativeRanker_RankAlternatives(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	patient := basePatient() // age 42

	t.Run("Strictly_Improving_Candidates_Only", func(t *testing.T) {
		ranker := newTestRanker(3)
		pool := []*domain.CoverageRecord{
			poolRecord("Saxenda", 0, 18),  // passes, likelihood 100
			poolRecord("Zepbound", 1, 65), // fails required age, likelihood 20
		}

		alternatives := ranker.RankAlternatives(ctx, patient, "Wegovy", 40, pool, now)
		require.Len(t, alternatives, 1)
		assert.Equal(t, "Saxenda", alternatives[0].Medication)
		assert.Equal(t, 100, alternatives[0].ApprovalLikelihood)
		assert.Equal(t, 60, alternatives[0].Improvement)
	})

	t.Run("Equal_Likelihood_Excluded", func(t *testing.T) {
		ranker := newTestRanker(3)
		pool := []*domain.CoverageRecord{poolRecord("Saxenda", 0, 18)}

		alternatives := ranker.RankAlternatives(ctx, patient, "Wegovy", 100, pool, now)
		assert.Empty(t, alternatives)
	})

	t.Run("Current_Drug_Excluded_From_Pool", func(t *testing.T) {
		ranker := newTestRanker(3)
		pool := []*domain.CoverageRecord{
			poolRecord("Wegovy", 0, 18),
			poolRecord("Saxenda", 1, 18),
		}

		alternatives := ranker.RankAlternatives(ctx, patient, "wegovy", 40, pool, now)
		require.Len(t, alternatives, 1)
		assert.Equal(t, "Saxenda", alternatives[0].Medication)
	})

	t.Run("Sorted_By_Likelihood_Then_Pool_Order", func(t *testing.T) {
		ranker := newTestRanker(3)
		// All pass their age criteria at likelihood 100; mixed-status pool
		// gives distinct likelihoods.
		weak := poolRecord("Zepbound", 2, 18)
		weak.Criteria = append(weak.Criteria, domain.CriterionSpec{
			Type: domain.CriterionWeightProgram, Rule: "structured weight program", Required: boolPtr(false),
		})

		noProgram := basePatient()
		noProgram.ClinicalNotes.HasWeightProgram = false // weight program warns, likelihood 60

		pool := []*domain.CoverageRecord{
			weak,
			poolRecord("Saxenda", 0, 18),
			poolRecord("Contrave", 1, 18),
		}

		alternatives := ranker.RankAlternatives(ctx, noProgram, "Wegovy", 40, pool, now)
		require.Len(t, alternatives, 3)
		assert.Equal(t, "Saxenda", alternatives[0].Medication)
		assert.Equal(t, "Contrave", alternatives[1].Medication)
		assert.Equal(t, "Zepbound", alternatives[2].Medication)
		assert.GreaterOrEqual(t, alternatives[0].ApprovalLikelihood, alternatives[1].ApprovalLikelihood)
		assert.GreaterOrEqual(t, alternatives[1].ApprovalLikelihood, alternatives[2].ApprovalLikelihood)
	})

	t.Run("Truncated_To_Max_Candidates", func(t *testing.T) {
		ranker := newTestRanker(3)
		pool := []*domain.CoverageRecord{
			poolRecord("Saxenda", 0, 18),
			poolRecord("Zepbound", 1, 18),
			poolRecord("Contrave", 2, 18),
			poolRecord("Qsymia", 3, 18),
			poolRecord("Xenical", 4, 18),
		}

		alternatives := ranker.RankAlternatives(ctx, patient, "Wegovy", 40, pool, now)
		assert.Len(t, alternatives, 3)
	})

	t.Run("Deterministic_Across_Runs", func(t *testing.T) {
		ranker := newTestRanker(3)
		pool := []*domain.CoverageRecord{
			poolRecord("Saxenda", 0, 18),
			poolRecord("Zepbound", 1, 18),
			poolRecord("Contrave", 2, 18),
			poolRecord("Qsymia", 3, 18),
		}

		first := ranker.RankAlternatives(ctx, patient, "Wegovy", 40, pool, now)
		require.Len(t, first, 3)
		for i := 0; i < 10; i++ {
			again := ranker.RankAlternatives(ctx, patient, "Wegovy", 40, pool, now)
			require.Len(t, again, len(first))
			for j := range first {
				assert.Equal(t, first[j].Medication, again[j].Medication)
				assert.Equal(t, first[j].ApprovalLikelihood, again[j].ApprovalLikelihood)
			}
		}
	})

	t.Run("Ties_Broken_By_Pool_Order", func(t *testing.T) {
		ranker := newTestRanker(3)
		pool := []*domain.CoverageRecord{
			poolRecord("Qsymia", 0, 18),
			poolRecord("Saxenda", 1, 18),
			poolRecord("Contrave", 2, 18),
		}

		alternatives := ranker.RankAlternatives(ctx, patient, "Wegovy", 40, pool, now)
		require.Len(t, alternatives, 3)
		assert.Equal(t, "Qsymia", alternatives[0].Medication)
		assert.Equal(t, "Saxenda", alternatives[1].Medication)
		assert.Equal(t, "Contrave", alternatives[2].Medication)
	})

	t.Run("Empty_Pool", func(t *testing.T) {
		ranker := newTestRanker(3)
		assert.Empty(t, ranker.RankAlternatives(ctx, patient, "Wegovy", 40, nil, now))
	})

	t.Run("Suggested_Dose_Is_Starting_Dose", func(t *testing.T) {
		ranker := newTestRanker(3)
		pool := []*domain.CoverageRecord{poolRecord("Saxenda", 0, 18)}

		alternatives := ranker.RankAlternatives(ctx, patient, "Wegovy", 40, pool, now)
		require.Len(t, alternatives, 1)
		assert.Equal(t, "0.25 mg", alternatives[0].SuggestedDose)
	})

	t.Run("Cancelled_Context_Returns_Early", func(t *testing.T) {
		ranker := newTestRanker(3)
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		pool := make([]*domain.CoverageRecord, 0, 16)
		names := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
		for i, n := range names {
			pool = append(pool, poolRecord("Drug "+n, i, 18))
		}

		// No hang and no panic; partial or empty results are both fine.
		alternatives := ranker.RankAlternatives(cancelled, patient, "Wegovy", 40, pool, now)
		assert.LessOrEqual(t, len(alternatives), 3)
	})
}
