package external

import (
	"github.com/priorauth-engine/internal/domain"
)

// fallbackProfiles carries static metadata for the anti-obesity drugs the
// engine most commonly assesses. It is consulted when live terminology
// services are unavailable; results carry Validated=false so downstream
// consumers know the data was not externally verified.
var fallbackProfiles = map[string]fallbackProfile{
	"wegovy": {
		generic:   "semaglutide",
		classes:   []string{"GLP-1 receptor agonists"},
		strengths: []string{"0.25 mg", "0.5 mg", "1 mg", "1.7 mg", "2.4 mg"},
		approved:  "chronic weight management",
	},
	"semaglutide": {
		generic:   "semaglutide",
		classes:   []string{"GLP-1 receptor agonists"},
		strengths: []string{"0.25 mg", "0.5 mg", "1 mg", "1.7 mg", "2.4 mg"},
		approved:  "chronic weight management",
	},
	"saxenda": {
		generic:   "liraglutide",
		classes:   []string{"GLP-1 receptor agonists"},
		strengths: []string{"0.6 mg", "1.2 mg", "1.8 mg", "2.4 mg", "3 mg"},
		approved:  "chronic weight management",
	},
	"liraglutide": {
		generic:   "liraglutide",
		classes:   []string{"GLP-1 receptor agonists"},
		strengths: []string{"0.6 mg", "1.2 mg", "1.8 mg", "2.4 mg", "3 mg"},
		approved:  "chronic weight management",
	},
	"zepbound": {
		generic:   "tirzepatide",
		classes:   []string{"GLP-1 receptor agonists", "GIP receptor agonists"},
		strengths: []string{"2.5 mg", "5 mg", "7.5 mg", "10 mg", "12.5 mg", "15 mg"},
		approved:  "chronic weight management",
	},
	"qsymia": {
		generic:   "phentermine-topiramate",
		classes:   []string{"sympathomimetic combinations"},
		strengths: []string{"3.75 mg", "7.5 mg", "11.25 mg", "15 mg"},
		approved:  "chronic weight management",
	},
	"contrave": {
		generic:   "naltrexone-bupropion",
		classes:   []string{"opioid antagonist combinations"},
		strengths: []string{"8/90 mg", "16/180 mg", "24/270 mg", "32/360 mg"},
		approved:  "chronic weight management",
	},
	"xenical": {
		generic:   "orlistat",
		classes:   []string{"lipase inhibitors"},
		strengths: []string{"120 mg"},
		approved:  "chronic weight management",
	},
}

type fallbackProfile struct {
	generic   string
	classes   []string
	strengths []string
	approved  string
}

// FallbackMetadata returns static metadata for a drug, or nil when no
// profile exists. The result is marked unvalidated.
func FallbackMetadata(drugName, indication string) *domain.DrugMetadata {
	profile, ok := fallbackProfiles[domain.NormalizeName(drugName)]
	if !ok {
		return nil
	}

	metadata := &domain.DrugMetadata{
		Identification: &domain.DrugIdentification{
			Name:        drugName,
			GenericName: profile.generic,
			Classes:     profile.classes,
		},
		WeightLossThreshold: domain.ClassWeightLossThreshold(profile.generic),
		Validated:           false,
	}

	for _, strength := range profile.strengths {
		metadata.Formulations = append(metadata.Formulations, domain.Formulation{Strength: strength})
	}

	if indication == "" || domain.NormalizeName(indication) == domain.NormalizeName(profile.approved) {
		metadata.Approval = &domain.ApprovalInfo{
			Approved:   true,
			Indication: profile.approved,
		}
	}

	return metadata
}
