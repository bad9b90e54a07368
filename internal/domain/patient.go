package domain

import (
	"errors"
	"fmt"
	"time"
)

// Measurement is a numeric clinical quantity with its unit.
type Measurement struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// LabResult is a single lab observation keyed by test code in the snapshot.
type LabResult struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// TherapyEntry is one historical medication record. Entries for a drug are
// ordered by StartDate ascending.
type TherapyEntry struct {
	Drug      string    `json:"drug"`
	Dose      string    `json:"dose"`
	StartDate time.Time `json:"start_date"`
}

// ClinicalNotes carries the weight-management documentation a payer asks for
// when reviewing anti-obesity therapy.
type ClinicalNotes struct {
	HasWeightProgram        bool    `json:"has_weight_program"`
	BaselineWeight          float64 `json:"baseline_weight,omitempty"`
	CurrentWeight           float64 `json:"current_weight,omitempty"`
	WeightLossPercentage    float64 `json:"weight_loss_percentage,omitempty"`
	MonthsOnMaintenanceDose int     `json:"months_on_maintenance_dose,omitempty"`
}

// PatientSnapshot is the immutable clinical picture the engine evaluates
// criteria against. It is owned by the calling context; the engine never
// mutates it and performs no I/O to enrich it.
type PatientSnapshot struct {
	Age    int          `json:"age"`
	Sex    string       `json:"sex,omitempty"`
	Height *Measurement `json:"height,omitempty"`
	Weight *Measurement `json:"weight,omitempty"`
	BMI    *Measurement `json:"bmi,omitempty"`

	Labs      map[string]LabResult `json:"labs,omitempty"`
	Diagnoses []string             `json:"diagnoses,omitempty"`

	// TherapyHistory maps normalized drug name to its entries, ordered by
	// StartDate ascending.
	TherapyHistory map[string][]TherapyEntry `json:"therapy_history,omitempty"`

	ClinicalNotes ClinicalNotes `json:"clinical_notes"`

	// Documentation maps required-document keys to whether the caller has
	// the document on file. Supplied by the attestation collaborator.
	Documentation map[string]bool `json:"documentation,omitempty"`
}

// Validate ensures the snapshot carries the minimum data the engine needs.
// Missing optional measurements are tolerated; evaluators report those
// criteria as not measurable rather than failing.
func (p *PatientSnapshot) Validate() error {
	if p.Age < 0 {
		return fmt.Errorf("patient snapshot validation: %w", errors.New("age must be non-negative"))
	}
	if p.BMI != nil && p.BMI.Value < 0 {
		return fmt.Errorf("patient snapshot validation: %w", errors.New("BMI must be non-negative"))
	}
	return nil
}

// HistoryFor returns the therapy entries for a drug, matching by normalized
// drug name. The returned slice is ordered by StartDate ascending.
func (p *PatientSnapshot) HistoryFor(drug string) []TherapyEntry {
	if p.TherapyHistory == nil {
		return nil
	}
	norm := NormalizeName(drug)
	for name, entries := range p.TherapyHistory {
		if NormalizeName(name) == norm {
			return entries
		}
	}
	return nil
}

// LatestTherapy returns the most recent therapy entry for a drug, or nil if
// the patient has no history for it.
func (p *PatientSnapshot) LatestTherapy(drug string) *TherapyEntry {
	entries := p.HistoryFor(drug)
	if len(entries) == 0 {
		return nil
	}
	return &entries[len(entries)-1]
}

// HasDiagnosis reports whether any recorded diagnosis matches the given term,
// case-insensitively and allowing partial matches in either direction, so
// "Type 2 Diabetes" matches "Type 2 Diabetes Mellitus".
func (p *PatientSnapshot) HasDiagnosis(term string) bool {
	norm := NormalizeName(term)
	for _, dx := range p.Diagnoses {
		d := NormalizeName(dx)
		if d == norm || containsFold(d, norm) || containsFold(norm, d) {
			return true
		}
	}
	return false
}
