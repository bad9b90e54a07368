package domain

import (
	"errors"
	"fmt"
)

// DoseScheduleEntry is one step of a drug's titration schedule. Order within
// CoverageRecord.DoseSchedule defines the titration sequence.
type DoseScheduleEntry struct {
	Dose          string `json:"dose"`           // e.g. "0.25 mg"
	PhaseTag      string `json:"phase_tag,omitempty"`
	DurationWeeks int    `json:"duration_weeks"` // minimum weeks at this dose before escalating
}

// CriterionSpec is one payer-defined PA criterion with its applicability
// predicate and numeric/boolean parameters. Which parameters are meaningful
// depends on Type.
type CriterionSpec struct {
	Type CriterionType `json:"type"`
	Rule string        `json:"rule"` // human-readable criterion text

	// Applicability: empty Phases means the criterion applies in every phase.
	Phases             []DosePhase `json:"phases,omitempty"`
	SkipOnContinuation bool        `json:"skip_on_continuation,omitempty"`

	// Numeric/boolean parameters by type.
	MinAge                 int      `json:"min_age,omitempty"`                  // age
	MinBMI                 float64  `json:"min_bmi,omitempty"`                  // bmi
	ComorbidityBMIFloor    float64  `json:"comorbidity_bmi_floor,omitempty"`    // bmi
	WeightLossThreshold    float64  `json:"weight_loss_threshold,omitempty"`    // weightLoss/weightMaintained, percent
	MinComorbidityCount    int      `json:"min_comorbidity_count,omitempty"`    // comorbidity
	MaintenanceGuideMonths int      `json:"maintenance_guide_months,omitempty"` // maintenance
	RequiredDocuments      []string `json:"required_documents,omitempty"`       // documentation

	// Required defaults to true; informational criteria set it false.
	Required *bool `json:"required,omitempty"`
}

// IsRequired reports whether a failed evaluation of this criterion should be
// treated as disqualifying. Unset means required.
func (c *CriterionSpec) IsRequired() bool {
	return c.Required == nil || *c.Required
}

// AppliesToPhase reports whether the criterion applies in the given phase.
// An empty phase set applies everywhere, including when no phase could be
// classified.
func (c *CriterionSpec) AppliesToPhase(phase DosePhase) bool {
	if len(c.Phases) == 0 {
		return true
	}
	for _, p := range c.Phases {
		if p == phase {
			return true
		}
	}
	return false
}

// Validate ensures the criterion configuration is well formed. Malformed
// criteria are configuration errors and abort evaluation.
func (c *CriterionSpec) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("criterion validation: %w: %q", ErrMalformedCriterion, c.Type)
	}
	for _, p := range c.Phases {
		if !p.IsValid() {
			return fmt.Errorf("criterion validation: %w: phase %q", ErrMalformedCriterion, p)
		}
	}
	if c.MinAge < 0 || c.MinBMI < 0 || c.ComorbidityBMIFloor < 0 || c.WeightLossThreshold < 0 {
		return fmt.Errorf("criterion validation: %w: negative threshold", ErrMalformedCriterion)
	}
	if c.ComorbidityBMIFloor > 0 && c.MinBMI > 0 && c.ComorbidityBMIFloor >= c.MinBMI {
		return fmt.Errorf("criterion validation: %w: comorbidity BMI floor must be below min BMI", ErrMalformedCriterion)
	}
	return nil
}

// CoverageRecord is a payer's coverage configuration for one drug, keyed by
// (insurance plan, drug name). Created by configuration loading; read-only to
// the engine.
type CoverageRecord struct {
	InsurancePlan string `json:"insurance_plan"`
	DrugName      string `json:"drug_name"`
	GenericName   string `json:"generic_name,omitempty"`
	Category      string `json:"category,omitempty"` // therapeutic category, e.g. "GLP-1 receptor agonist"
	Indication    string `json:"indication,omitempty"`

	Tier        int     `json:"tier,omitempty"`
	Copay       float64 `json:"copay,omitempty"`
	PARequired  bool    `json:"pa_required"`
	StepTherapy bool    `json:"step_therapy,omitempty"`
	Preferred   bool    `json:"preferred,omitempty"`

	DoseSchedule []DoseScheduleEntry `json:"dose_schedule,omitempty"`
	Criteria     []CriterionSpec     `json:"criteria,omitempty"`
	Note         string              `json:"note,omitempty"`

	// PoolOrder is the record's declared priority within its category's
	// candidate pool; it breaks likelihood ties in alternative ranking.
	PoolOrder int `json:"pool_order,omitempty"`
}

// Validate ensures the coverage record is usable by the engine.
func (r *CoverageRecord) Validate() error {
	if r.InsurancePlan == "" {
		return fmt.Errorf("coverage validation: %w", errors.New("insurance plan is required"))
	}
	if r.DrugName == "" {
		return fmt.Errorf("coverage validation: %w", errors.New("drug name is required"))
	}
	for i := range r.Criteria {
		if err := r.Criteria[i].Validate(); err != nil {
			return fmt.Errorf("coverage validation: criterion %d: %w", i, err)
		}
	}
	return nil
}

// StartingDose returns the first schedule entry's dose, or empty when the
// record has no dose schedule.
func (r *CoverageRecord) StartingDose() string {
	if len(r.DoseSchedule) == 0 {
		return ""
	}
	return r.DoseSchedule[0].Dose
}

// ScheduleIndex locates a dose within the schedule by normalized equality.
// It returns -1 when the dose is not part of the schedule.
func (r *CoverageRecord) ScheduleIndex(dose string) int {
	for i, entry := range r.DoseSchedule {
		if DoseEqual(entry.Dose, dose) {
			return i
		}
	}
	return -1
}

// classWeightLossThresholds maps generic names to the weight-loss percentage
// their labeling ties continued therapy to, where it differs from the
// payer-typical 5%. Liraglutide labeling uses 4% at 16 weeks and
// phentermine-topiramate 3% at 12 weeks.
var classWeightLossThresholds = map[string]float64{
	"liraglutide":            4,
	"phentermine-topiramate": 3,
}

// ClassWeightLossThreshold returns the labeling-derived weight-loss threshold
// for a generic name, or 0 when the payer-typical default applies.
func ClassWeightLossThreshold(genericName string) float64 {
	return classWeightLossThresholds[NormalizeName(genericName)]
}
