package service

import (
	"github.com/priorauth-engine/internal/domain"
)

// DetectContinuation reports whether the request renews therapy the patient
// is already stably established on, as opposed to a new initiation or a
// titration step.
//
// The request is a continuation when the most recent therapy-history entry
// for the drug carries the same normalized dose as the selection and the
// patient has spent at least one month on the maintenance dose. Continuations
// are assumed to have cleared weight-loss and program documentation in a
// prior cycle and are re-checked only on basic eligibility.
func DetectContinuation(patient *domain.PatientSnapshot, drug, dose string) bool {
	if patient == nil || dose == "" {
		return false
	}

	latest := patient.LatestTherapy(drug)
	if latest == nil {
		return false
	}

	return domain.DoseEqual(latest.Dose, dose) && patient.ClinicalNotes.MonthsOnMaintenanceDose > 0
}
