package domain

import "time"

// DrugIdentification is the result of resolving a drug name against an
// external terminology service (RxNorm).
type DrugIdentification struct {
	RxCUI       string   `json:"rxcui"`
	Name        string   `json:"name"`
	GenericName string   `json:"generic_name,omitempty"`
	Classes     []string `json:"classes,omitempty"`
}

// ApprovalInfo describes regulatory approval of a drug for an indication.
type ApprovalInfo struct {
	Approved   bool   `json:"approved"`
	Indication string `json:"indication,omitempty"`
	MaxDose    string `json:"max_dose,omitempty"`
}

// Formulation is one marketed strength of a drug.
type Formulation struct {
	Strength string `json:"strength"` // e.g. "2.4 mg"
}

// DrugMetadata aggregates every externally-sourced fact the enhanced
// evaluation path uses. Any field may be nil when its lookup failed; the
// engine degrades to static fallback data in that case.
type DrugMetadata struct {
	Identification *DrugIdentification `json:"identification,omitempty"`
	Approval       *ApprovalInfo       `json:"approval,omitempty"`
	Formulations   []Formulation       `json:"formulations,omitempty"`

	// WeightLossThreshold is the labeling-derived weight-loss percentage for
	// the drug's generic, carried by the static fallback profiles. Zero when
	// the source does not record one.
	WeightLossThreshold float64 `json:"weight_loss_threshold,omitempty"`

	// Validated is true only when the drug was identified by the external
	// terminology service rather than the static fallback profile.
	Validated  bool      `json:"validated"`
	GatheredAt time.Time `json:"gathered_at"`
}

// HasStrength reports whether any formulation matches the dose under
// normalized comparison.
func (m *DrugMetadata) HasStrength(dose string) bool {
	for _, f := range m.Formulations {
		if DoseEqual(f.Strength, dose) {
			return true
		}
	}
	return false
}
