package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/priorauth-engine/internal/domain"
)

func criterionTypes(specs []domain.CriterionSpec) []domain.CriterionType {
	types := make([]domain.CriterionType, 0, len(specs))
	for _, s := range specs {
		types = append(types, s.Type)
	}
	return types
}

func TestApplicableCriteria_PhaseFiltering(t *testing.T) {
	coverage := wegovyCoverage()

	t.Run("Starting_Phase_Excludes_Later_Criteria", func(t *testing.T) {
		specs := ApplicableCriteria(coverage, domain.PhaseStarting, false)
		types := criterionTypes(specs)

		assert.Contains(t, types, domain.CriterionAge)
		assert.Contains(t, types, domain.CriterionBMI)
		assert.Contains(t, types, domain.CriterionDoseProgression)
		assert.Contains(t, types, domain.CriterionWeightProgram)
		assert.NotContains(t, types, domain.CriterionWeightLoss)
		assert.NotContains(t, types, domain.CriterionMaintenance)
	})

	t.Run("Titration_Phase_Includes_Weight_Loss", func(t *testing.T) {
		specs := ApplicableCriteria(coverage, domain.PhaseTitration, false)
		types := criterionTypes(specs)

		assert.Contains(t, types, domain.CriterionWeightLoss)
		assert.NotContains(t, types, domain.CriterionMaintenance)
	})

	t.Run("Maintenance_Phase_Includes_All", func(t *testing.T) {
		specs := ApplicableCriteria(coverage, domain.PhaseMaintenance, false)
		assert.Len(t, specs, len(coverage.Criteria))
	})

	t.Run("Unclassified_Phase_Skips_Filtering", func(t *testing.T) {
		specs := ApplicableCriteria(coverage, "", false)
		assert.Len(t, specs, len(coverage.Criteria))
	})

	t.Run("Order_Preserved", func(t *testing.T) {
		specs := ApplicableCriteria(coverage, domain.PhaseMaintenance, false)
		for i, spec := range specs {
			assert.Equal(t, coverage.Criteria[i].Type, spec.Type)
		}
	})
}

func TestApplicableCriteria_Continuation(t *testing.T) {
	coverage := wegovyCoverage()

	t.Run("Weight_Criteria_Waived_On_Continuation", func(t *testing.T) {
		specs := ApplicableCriteria(coverage, domain.PhaseMaintenance, true)
		types := criterionTypes(specs)

		assert.NotContains(t, types, domain.CriterionWeightLoss)
		assert.NotContains(t, types, domain.CriterionWeightProgram)
		assert.Contains(t, types, domain.CriterionAge)
		assert.Contains(t, types, domain.CriterionBMI)
		assert.Contains(t, types, domain.CriterionDoseProgression)
	})

	t.Run("Weight_Maintained_Waived_On_Continuation", func(t *testing.T) {
		record := &domain.CoverageRecord{
			InsurancePlan: "Acme Health PPO",
			DrugName:      "Saxenda",
			Criteria: []domain.CriterionSpec{
				{Type: domain.CriterionWeightMaintained, Rule: "weight loss maintained"},
				{Type: domain.CriterionAge, Rule: "age >= 18", MinAge: 18},
			},
		}
		specs := ApplicableCriteria(record, "", true)
		types := criterionTypes(specs)

		assert.NotContains(t, types, domain.CriterionWeightMaintained)
		assert.Contains(t, types, domain.CriterionAge)
	})

	t.Run("SkipOnContinuation_Honored_For_Other_Types", func(t *testing.T) {
		record := &domain.CoverageRecord{
			InsurancePlan: "Acme Health PPO",
			DrugName:      "Zepbound",
			Criteria: []domain.CriterionSpec{
				{Type: domain.CriterionDocumentation, Rule: "chart notes on file", SkipOnContinuation: true, RequiredDocuments: []string{"chart_notes"}},
				{Type: domain.CriterionComorbidity, Rule: "one qualifying comorbidity"},
			},
		}

		renewal := criterionTypes(ApplicableCriteria(record, "", true))
		assert.NotContains(t, renewal, domain.CriterionDocumentation)
		assert.Contains(t, renewal, domain.CriterionComorbidity)

		initiation := criterionTypes(ApplicableCriteria(record, "", false))
		assert.Contains(t, initiation, domain.CriterionDocumentation)
	})

	t.Run("Empty_Criteria_Set_Is_Valid", func(t *testing.T) {
		record := &domain.CoverageRecord{InsurancePlan: "Acme Health PPO", DrugName: "Metformin"}
		specs := ApplicableCriteria(record, "", false)
		assert.Empty(t, specs)
	})
}
