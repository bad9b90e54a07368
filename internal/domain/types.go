// Package domain contains core business entities and types for prior-authorization
// (PA) criteria evaluation and approval-likelihood estimation.
//
// The engine evaluates payer-defined PA criteria against a patient's clinical
// snapshot and folds the results into a bounded 0-100 approval-likelihood estimate
// with a human-readable rationale. It estimates payer behavior; it never decides
// real insurance outcomes.
package domain

import (
	"errors"
	"fmt"
)

// DosePhase represents the position of a dose within a drug's titration schedule.
// It is always derived from the dose schedule, never stored.
type DosePhase string

const (
	PhaseStarting    DosePhase = "starting"
	PhaseTitration   DosePhase = "titration"
	PhaseMaintenance DosePhase = "maintenance"
)

// CriterionType identifies one payer-defined PA criterion kind.
type CriterionType string

const (
	CriterionAge              CriterionType = "age"
	CriterionBMI              CriterionType = "bmi"
	CriterionDoseProgression  CriterionType = "doseProgression"
	CriterionMaintenance      CriterionType = "maintenance"
	CriterionWeightLoss       CriterionType = "weightLoss"
	CriterionWeightMaintained CriterionType = "weightMaintained"
	CriterionWeightProgram    CriterionType = "weightProgram"
	CriterionDocumentation    CriterionType = "documentation"
	CriterionComorbidity      CriterionType = "comorbidity"
)

// EvaluationStatus represents the outcome of a single criterion evaluation.
type EvaluationStatus string

const (
	StatusPass          EvaluationStatus = "pass"
	StatusWarning       EvaluationStatus = "warning"
	StatusFail          EvaluationStatus = "fail"
	StatusNotApplicable EvaluationStatus = "not_applicable"
)

// ConfidenceLevel represents the confidence bucket of an approval assessment.
type ConfidenceLevel string

const (
	ConfidenceHigh    ConfidenceLevel = "high"
	ConfidenceMedium  ConfidenceLevel = "medium"
	ConfidenceLow     ConfidenceLevel = "low"
	ConfidenceVeryLow ConfidenceLevel = "very-low"
)

// Validation errors for coverage configuration and engine inputs.
var (
	ErrCoverageNotFound     = errors.New("coverage not found for plan and drug")
	ErrDoseNotInSchedule    = errors.New("selected dose not in coverage dose schedule")
	ErrUnsupportedCriterion = errors.New("unsupported criterion type")
	ErrMalformedCriterion   = errors.New("malformed criterion specification")
	ErrInvalidPhase         = errors.New("invalid dose phase")
	ErrInvalidStatus        = errors.New("invalid evaluation status")
)

// IsValid reports whether the phase is one of the three schedule positions.
func (p DosePhase) IsValid() bool {
	switch p {
	case PhaseStarting, PhaseTitration, PhaseMaintenance:
		return true
	default:
		return false
	}
}

// String returns the string representation of the phase.
func (p DosePhase) String() string {
	return string(p)
}

// IsValid reports whether the criterion type is one the engine can evaluate.
func (t CriterionType) IsValid() bool {
	switch t {
	case CriterionAge, CriterionBMI, CriterionDoseProgression, CriterionMaintenance,
		CriterionWeightLoss, CriterionWeightMaintained, CriterionWeightProgram,
		CriterionDocumentation, CriterionComorbidity:
		return true
	default:
		return false
	}
}

// String returns the string representation of the criterion type.
func (t CriterionType) String() string {
	return string(t)
}

// IsValid reports whether the status is a recognized evaluation outcome.
func (s EvaluationStatus) IsValid() bool {
	switch s {
	case StatusPass, StatusWarning, StatusFail, StatusNotApplicable:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s EvaluationStatus) String() string {
	return string(s)
}

// IsValid validates the confidence level.
func (c ConfidenceLevel) IsValid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow, ConfidenceVeryLow:
		return true
	default:
		return false
	}
}

// String returns the string representation of the confidence level.
func (c ConfidenceLevel) String() string {
	return string(c)
}

// Color returns the UI color tag associated with the confidence bucket.
func (c ConfidenceLevel) Color() string {
	switch c {
	case ConfidenceHigh:
		return "green"
	case ConfidenceMedium:
		return "yellow"
	case ConfidenceLow:
		return "orange"
	case ConfidenceVeryLow:
		return "red"
	default:
		return "red"
	}
}

// LogFields returns structured logging fields for audit trails.
func (c ConfidenceLevel) LogFields() map[string]any {
	return map[string]any{
		"confidence": string(c),
		"color":      c.Color(),
		"is_valid":   c.IsValid(),
	}
}

// EvaluationResult is the per-criterion outcome of running one CriterionSpec
// against a patient snapshot.
type EvaluationResult struct {
	Criterion    CriterionType    `json:"criterion"`
	Status       EvaluationStatus `json:"status"`
	Value        string           `json:"value,omitempty"`
	DisplayValue string           `json:"display_value,omitempty"`
	Requirement  string           `json:"requirement,omitempty"`
	Reason       string           `json:"reason,omitempty"`
	Required     bool             `json:"required"`
}

// Validate ensures the evaluation result is well formed before aggregation.
func (r *EvaluationResult) Validate() error {
	if !r.Criterion.IsValid() {
		return fmt.Errorf("evaluation result validation: %w", ErrUnsupportedCriterion)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("evaluation result validation: %w", ErrInvalidStatus)
	}
	return nil
}

// Factor is one signed contribution to the approval likelihood, recorded so
// the final estimate can be explained item by item.
type Factor struct {
	Name          string `json:"name"`
	ImpactPercent int    `json:"impact_percent"`
	Detail        string `json:"detail,omitempty"`
}

// ApprovalAssessment is the aggregated approval-likelihood estimate for one
// (patient, drug, dose, coverage) evaluation. Computed fresh on every call.
type ApprovalAssessment struct {
	Likelihood      int             `json:"likelihood"` // clamped to [0,100]
	Confidence      ConfidenceLevel `json:"confidence"`
	Color           string          `json:"color"`
	Reason          string          `json:"reason"`
	Action          string          `json:"action"`
	Factors         []Factor        `json:"factors,omitempty"`
	RxnormValidated bool            `json:"rxnorm_validated"`
}

// Validate ensures the assessment invariants hold.
func (a *ApprovalAssessment) Validate() error {
	if a.Likelihood < 0 || a.Likelihood > 100 {
		return fmt.Errorf("approval assessment validation: likelihood %d out of range [0,100]", a.Likelihood)
	}
	if !a.Confidence.IsValid() {
		return fmt.Errorf("approval assessment validation: invalid confidence %q", a.Confidence)
	}
	return nil
}

// AlternativeCandidate is a better-scoring medication suggested when the
// current assessment is weak. Derived, ephemeral.
type AlternativeCandidate struct {
	Medication         string   `json:"medication"`
	GenericName        string   `json:"generic_name,omitempty"`
	Category           string   `json:"category,omitempty"`
	SuggestedDose      string   `json:"suggested_dose"`
	ApprovalLikelihood int      `json:"approval_likelihood"`
	Improvement        int      `json:"improvement_over_current"`
	Factors            []Factor `json:"factors,omitempty"`
}
