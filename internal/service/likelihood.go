package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/priorauth-engine/internal/domain"
)

// Likelihood bucket thresholds and their recommended actions.
const (
	thresholdHigh   = 80
	thresholdMedium = 50
	thresholdLow    = 30

	actionHigh    = "Proceed: submit prescription"
	actionMedium  = "Address warnings before submitting"
	actionLow     = "Gather documentation, expect delay"
	actionVeryLow = "Do not submit without meeting required criteria; consider alternatives"
)

// External-metadata factor weights (enhanced path).
const (
	factorFDAApproved    = 10  // FDA-approved indication match
	factorClassConfirmed = 5   // therapeutic-class membership confirmed
	factorDoseUnverified = -15 // selected dose absent from external formulation list
	factorDrugUnknown    = -5  // drug not identified in external reference
)

// Calculator folds per-criterion evaluation results and optional external
// factors into a bounded approval-likelihood assessment.
type Calculator struct {
	logger *logrus.Logger
}

// NewCalculator creates a new approval-likelihood calculator.
func NewCalculator(logger *logrus.Logger) *Calculator {
	return &Calculator{logger: logger}
}

// AssessApproval computes the approval likelihood from evaluation results
// plus optional signed external factors.
//
// Any failed required criterion is treated as near-disqualifying regardless
// of how many optional criteria pass: base = max(0, 30 - 10*failedRequired).
// Otherwise base = met/total*100 + partial/total*20. Results with status
// not_applicable are excluded from the denominator: an unmeasurable
// criterion neither helps nor hurts. External factors are added as recorded
// and the total is clamped to [0,100]; when a required criterion failed,
// factors may lower the estimate but never raise it above the
// required-failure base.
func (c *Calculator) AssessApproval(results []domain.EvaluationResult, factors []domain.Factor) *domain.ApprovalAssessment {
	var total, met, partial, failedRequired, failedOptional int
	for _, r := range results {
		switch r.Status {
		case domain.StatusPass:
			total++
			met++
		case domain.StatusWarning:
			total++
			partial++
		case domain.StatusFail:
			total++
			if r.Required {
				failedRequired++
			} else {
				failedOptional++
			}
		}
	}

	var base float64
	if failedRequired > 0 {
		base = math.Max(0, float64(30-10*failedRequired))
	} else if total > 0 {
		base = float64(met)/float64(total)*100 + float64(partial)/float64(total)*20
	}

	adjusted := base
	for _, f := range factors {
		adjusted += float64(f.ImpactPercent)
	}

	// External bonuses never lift a required-failure assessment above its base.
	if failedRequired > 0 && adjusted > base {
		adjusted = base
	}

	likelihood := clampLikelihood(int(math.Round(adjusted)))
	confidence := bucketConfidence(likelihood)

	assessment := &domain.ApprovalAssessment{
		Likelihood: likelihood,
		Confidence: confidence,
		Color:      confidence.Color(),
		Reason:     c.summarize(total, met, partial, failedRequired, failedOptional),
		Action:     bucketAction(likelihood),
		Factors:    factors,
	}

	c.logger.WithFields(logrus.Fields{
		"likelihood":      assessment.Likelihood,
		"confidence":      assessment.Confidence.String(),
		"total_criteria":  total,
		"met":             met,
		"partial":         partial,
		"failed_required": failedRequired,
		"factors":         len(factors),
	}).Debug("Computed approval assessment")

	return assessment
}

// BuildMetadataFactors derives the signed external factors from gathered
// drug metadata. A nil metadata means the enhanced path was not taken and no
// factors apply.
func (c *Calculator) BuildMetadataFactors(metadata *domain.DrugMetadata, coverage *domain.CoverageRecord, dose string) []domain.Factor {
	if metadata == nil {
		return nil
	}

	var factors []domain.Factor

	if metadata.Identification == nil {
		factors = append(factors, domain.Factor{
			Name:          "drug not identified",
			ImpactPercent: factorDrugUnknown,
			Detail:        "drug could not be identified in the external reference",
		})
	} else if classMatches(metadata.Identification.Classes, coverage.Category) {
		factors = append(factors, domain.Factor{
			Name:          "therapeutic class confirmed",
			ImpactPercent: factorClassConfirmed,
			Detail:        fmt.Sprintf("confirmed membership in class %q", coverage.Category),
		})
	}

	if metadata.Approval != nil && metadata.Approval.Approved {
		factors = append(factors, domain.Factor{
			Name:          "FDA-approved indication",
			ImpactPercent: factorFDAApproved,
			Detail:        fmt.Sprintf("approved for %q", metadata.Approval.Indication),
		})
	}

	if dose != "" && len(metadata.Formulations) > 0 && !metadata.HasStrength(dose) {
		factors = append(factors, domain.Factor{
			Name:          "dose not validated",
			ImpactPercent: factorDoseUnverified,
			Detail:        fmt.Sprintf("dose %q not found among known formulations", dose),
		})
	}

	return factors
}

// classMatches reports whether the coverage category appears among the
// externally-reported therapeutic classes.
func classMatches(classes []string, category string) bool {
	if category == "" {
		return false
	}
	norm := domain.NormalizeName(category)
	for _, class := range classes {
		c := domain.NormalizeName(class)
		if c == norm || strings.Contains(c, norm) || strings.Contains(norm, c) {
			return true
		}
	}
	return false
}

// clampLikelihood bounds the estimate to [0,100].
func clampLikelihood(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// bucketConfidence maps a likelihood to its confidence bucket.
func bucketConfidence(likelihood int) domain.ConfidenceLevel {
	switch {
	case likelihood >= thresholdHigh:
		return domain.ConfidenceHigh
	case likelihood >= thresholdMedium:
		return domain.ConfidenceMedium
	case likelihood >= thresholdLow:
		return domain.ConfidenceLow
	default:
		return domain.ConfidenceVeryLow
	}
}

// bucketAction maps a likelihood to its recommended next step.
func bucketAction(likelihood int) string {
	switch {
	case likelihood >= thresholdHigh:
		return actionHigh
	case likelihood >= thresholdMedium:
		return actionMedium
	case likelihood >= thresholdLow:
		return actionLow
	default:
		return actionVeryLow
	}
}

// summarize produces the human-readable rationale line for the assessment.
func (c *Calculator) summarize(total, met, partial, failedRequired, failedOptional int) string {
	if total == 0 {
		return "no applicable criteria could be evaluated"
	}
	if failedRequired > 0 {
		return fmt.Sprintf("%d required criteria not met out of %d applicable; approval unlikely until resolved", failedRequired, total)
	}

	summary := fmt.Sprintf("%d of %d applicable criteria met", met, total)
	if partial > 0 {
		summary += fmt.Sprintf(", %d with warnings", partial)
	}
	if failedOptional > 0 {
		summary += fmt.Sprintf(", %d optional criteria not met", failedOptional)
	}
	return summary
}
