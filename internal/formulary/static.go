package formulary

import (
	"github.com/priorauth-engine/internal/domain"
)

func optional() *bool {
	b := false
	return &b
}

// ReferenceRecords returns the bundled anti-obesity formulary used for
// development and as seed data. Dose schedules and criteria follow typical
// commercial-plan PA policies for the drug class.
func ReferenceRecords() []*domain.CoverageRecord {
	var records []*domain.CoverageRecord
	for _, plan := range []string{"Acme Health PPO", "Meridian Choice HMO"} {
		records = append(records, planRecords(plan)...)
	}
	return records
}

func planRecords(plan string) []*domain.CoverageRecord {
	adultBMI := []domain.CriterionSpec{
		{Type: domain.CriterionAge, Rule: "18 years of age or older", MinAge: 18},
		{
			Type:                domain.CriterionBMI,
			Rule:                "BMI >= 30, or >= 27 with a weight-related comorbidity",
			MinBMI:              30,
			ComorbidityBMIFloor: 27,
		},
	}

	return []*domain.CoverageRecord{
		{
			InsurancePlan: plan,
			DrugName:      "Wegovy",
			GenericName:   "semaglutide",
			Category:      "GLP-1 receptor agonist",
			Indication:    "chronic weight management",
			Tier:          3,
			Copay:         60,
			PARequired:    true,
			Preferred:     true,
			PoolOrder:     0,
			DoseSchedule: []domain.DoseScheduleEntry{
				{Dose: "0.25 mg", PhaseTag: "initiation", DurationWeeks: 4},
				{Dose: "0.5 mg", PhaseTag: "escalation", DurationWeeks: 4},
				{Dose: "1 mg", PhaseTag: "escalation", DurationWeeks: 4},
				{Dose: "1.7 mg", PhaseTag: "escalation", DurationWeeks: 4},
				{Dose: "2.4 mg", PhaseTag: "maintenance", DurationWeeks: 0},
			},
			Criteria: append(append([]domain.CriterionSpec{}, adultBMI...),
				domain.CriterionSpec{
					Type: domain.CriterionDoseProgression,
					Rule: "dose escalated per the titration schedule",
				},
				domain.CriterionSpec{
					Type:     domain.CriterionWeightProgram,
					Rule:     "concurrent participation in a structured weight-management program",
					Required: optional(),
				},
				domain.CriterionSpec{
					Type:                domain.CriterionWeightLoss,
					Rule:                "at least 5% weight loss from baseline on therapy",
					Phases:              []domain.DosePhase{domain.PhaseTitration, domain.PhaseMaintenance},
					WeightLossThreshold: 5,
				},
				domain.CriterionSpec{
					Type:                   domain.CriterionMaintenance,
					Rule:                   "stable on the maintenance dose",
					Phases:                 []domain.DosePhase{domain.PhaseMaintenance},
					MaintenanceGuideMonths: 3,
				},
			),
		},
		{
			InsurancePlan: plan,
			DrugName:      "Zepbound",
			GenericName:   "tirzepatide",
			Category:      "GLP-1 receptor agonist",
			Indication:    "chronic weight management",
			Tier:          3,
			Copay:         60,
			PARequired:    true,
			PoolOrder:     1,
			DoseSchedule: []domain.DoseScheduleEntry{
				{Dose: "2.5 mg", PhaseTag: "initiation", DurationWeeks: 4},
				{Dose: "5 mg", PhaseTag: "escalation", DurationWeeks: 4},
				{Dose: "7.5 mg", PhaseTag: "escalation", DurationWeeks: 4},
				{Dose: "10 mg", PhaseTag: "escalation", DurationWeeks: 4},
				{Dose: "12.5 mg", PhaseTag: "escalation", DurationWeeks: 4},
				{Dose: "15 mg", PhaseTag: "maintenance", DurationWeeks: 0},
			},
			Criteria: append(append([]domain.CriterionSpec{}, adultBMI...),
				domain.CriterionSpec{
					Type: domain.CriterionDoseProgression,
					Rule: "dose escalated per the titration schedule",
				},
				domain.CriterionSpec{
					Type:                domain.CriterionWeightLoss,
					Rule:                "at least 5% weight loss from baseline on therapy",
					Phases:              []domain.DosePhase{domain.PhaseTitration, domain.PhaseMaintenance},
					WeightLossThreshold: 5,
				},
			),
		},
		{
			InsurancePlan: plan,
			DrugName:      "Saxenda",
			GenericName:   "liraglutide",
			Category:      "GLP-1 receptor agonist",
			Indication:    "chronic weight management",
			Tier:          3,
			Copay:         75,
			PARequired:    true,
			StepTherapy:   true,
			PoolOrder:     2,
			DoseSchedule: []domain.DoseScheduleEntry{
				{Dose: "0.6 mg", PhaseTag: "initiation", DurationWeeks: 1},
				{Dose: "1.2 mg", PhaseTag: "escalation", DurationWeeks: 1},
				{Dose: "1.8 mg", PhaseTag: "escalation", DurationWeeks: 1},
				{Dose: "2.4 mg", PhaseTag: "escalation", DurationWeeks: 1},
				{Dose: "3 mg", PhaseTag: "maintenance", DurationWeeks: 0},
			},
			// Liraglutide labeling discontinues therapy below 4% loss at
			// 16 weeks, so the threshold is lower than the class default.
			Criteria: append(append([]domain.CriterionSpec{}, adultBMI...),
				domain.CriterionSpec{
					Type: domain.CriterionDoseProgression,
					Rule: "dose escalated per the titration schedule",
				},
				domain.CriterionSpec{
					Type:                domain.CriterionWeightLoss,
					Rule:                "at least 4% weight loss from baseline at 16 weeks",
					Phases:              []domain.DosePhase{domain.PhaseMaintenance},
					WeightLossThreshold: 4,
				},
			),
		},
		{
			InsurancePlan: plan,
			DrugName:      "Qsymia",
			GenericName:   "phentermine-topiramate",
			Category:      "sympathomimetic combination",
			Indication:    "chronic weight management",
			Tier:          2,
			Copay:         40,
			PARequired:    true,
			PoolOrder:     0,
			DoseSchedule: []domain.DoseScheduleEntry{
				{Dose: "3.75 mg", PhaseTag: "initiation", DurationWeeks: 2},
				{Dose: "7.5 mg", PhaseTag: "maintenance", DurationWeeks: 0},
			},
			Criteria: append(append([]domain.CriterionSpec{}, adultBMI...),
				domain.CriterionSpec{
					Type:                domain.CriterionWeightLoss,
					Rule:                "at least 3% weight loss from baseline at 12 weeks",
					Phases:              []domain.DosePhase{domain.PhaseMaintenance},
					WeightLossThreshold: 3,
				},
				domain.CriterionSpec{
					Type:              domain.CriterionDocumentation,
					Rule:              "negative pregnancy test on file for patients of childbearing potential",
					RequiredDocuments: []string{"pregnancy_test"},
					SkipOnContinuation: false,
				},
			),
		},
		{
			InsurancePlan: plan,
			DrugName:      "Contrave",
			GenericName:   "naltrexone-bupropion",
			Category:      "opioid antagonist combination",
			Indication:    "chronic weight management",
			Tier:          2,
			Copay:         40,
			PARequired:    true,
			PoolOrder:     0,
			DoseSchedule: []domain.DoseScheduleEntry{
				{Dose: "8/90 mg", PhaseTag: "initiation", DurationWeeks: 1},
				{Dose: "16/180 mg", PhaseTag: "escalation", DurationWeeks: 1},
				{Dose: "24/270 mg", PhaseTag: "escalation", DurationWeeks: 1},
				{Dose: "32/360 mg", PhaseTag: "maintenance", DurationWeeks: 0},
			},
			Criteria: append(append([]domain.CriterionSpec{}, adultBMI...),
				domain.CriterionSpec{
					Type:                domain.CriterionWeightLoss,
					Rule:                "at least 5% weight loss from baseline at 12 weeks",
					Phases:              []domain.DosePhase{domain.PhaseMaintenance},
					WeightLossThreshold: 5,
				},
			),
		},
		{
			InsurancePlan: plan,
			DrugName:      "Xenical",
			GenericName:   "orlistat",
			Category:      "lipase inhibitor",
			Indication:    "chronic weight management",
			Tier:          1,
			Copay:         15,
			PARequired:    false,
			PoolOrder:     0,
			DoseSchedule: []domain.DoseScheduleEntry{
				{Dose: "120 mg", PhaseTag: "maintenance", DurationWeeks: 0},
			},
		},
	}
}
