package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/priorauth-engine/internal/domain"
)

// DefaultWeightLossThreshold is the payer-typical documented weight-loss
// requirement in percent, used when a criterion does not override it.
const DefaultWeightLossThreshold = 5.0

// qualifyingComorbidities lists the diagnoses payers accept as BMI-lowering
// comorbidities for anti-obesity therapy.
var qualifyingComorbidities = []string{
	"hypertension",
	"type 2 diabetes",
	"dyslipidemia",
	"obstructive sleep apnea",
	"cardiovascular disease",
}

// DrugContext carries the request-scoped drug facts evaluators need beyond
// the patient snapshot: the coverage record, the selected dose, and optional
// externally-sourced metadata. Now anchors elapsed-time arithmetic so
// evaluation stays a deterministic function of its inputs.
type DrugContext struct {
	Coverage *domain.CoverageRecord
	Dose     string
	Phase    domain.DosePhase
	Metadata *domain.DrugMetadata

	// WeightLossThreshold is the drug-class default applied when the
	// criterion spec does not set its own threshold. Zero means the
	// engine-wide default.
	WeightLossThreshold float64

	Now time.Time
}

func (dc *DrugContext) now() time.Time {
	if dc.Now.IsZero() {
		return time.Now()
	}
	return dc.Now
}

func (dc *DrugContext) weightLossThreshold(spec *domain.CriterionSpec) float64 {
	if spec.WeightLossThreshold > 0 {
		return spec.WeightLossThreshold
	}
	if dc.WeightLossThreshold > 0 {
		return dc.WeightLossThreshold
	}
	return DefaultWeightLossThreshold
}

// classThreshold resolves the class-default weight-loss threshold for a drug,
// preferring externally gathered metadata over the coverage record's generic
// name. Zero means no class default is on record.
func classThreshold(coverage *domain.CoverageRecord, metadata *domain.DrugMetadata) float64 {
	if metadata != nil && metadata.WeightLossThreshold > 0 {
		return metadata.WeightLossThreshold
	}
	return domain.ClassWeightLossThreshold(coverage.GenericName)
}

// evaluatorFunc is a pure per-type criterion evaluator. No evaluator performs
// I/O; every input arrives pre-resolved in the snapshot and drug context.
type evaluatorFunc func(patient *domain.PatientSnapshot, spec *domain.CriterionSpec, drugCtx *DrugContext) domain.EvaluationResult

// CriterionEngine routes criterion specs to per-type evaluators.
type CriterionEngine struct {
	logger     *logrus.Logger
	evaluators map[domain.CriterionType]evaluatorFunc
}

// NewCriterionEngine creates a criterion engine with all supported evaluators
// registered.
func NewCriterionEngine(logger *logrus.Logger) *CriterionEngine {
	e := &CriterionEngine{
		logger:     logger,
		evaluators: make(map[domain.CriterionType]evaluatorFunc),
	}

	e.evaluators[domain.CriterionAge] = evaluateAge
	e.evaluators[domain.CriterionBMI] = evaluateBMI
	e.evaluators[domain.CriterionDoseProgression] = evaluateDoseProgression
	e.evaluators[domain.CriterionMaintenance] = evaluateMaintenance
	e.evaluators[domain.CriterionWeightLoss] = evaluateWeightLoss
	e.evaluators[domain.CriterionWeightMaintained] = evaluateWeightMaintained
	e.evaluators[domain.CriterionWeightProgram] = evaluateWeightProgram
	e.evaluators[domain.CriterionDocumentation] = evaluateDocumentation
	e.evaluators[domain.CriterionComorbidity] = evaluateComorbidity

	return e
}

// Evaluate runs a single criterion against the patient snapshot. Unknown
// criterion types fail softly: the result is not_applicable, a warning is
// logged, and the caller's batch continues unaffected.
func (e *CriterionEngine) Evaluate(patient *domain.PatientSnapshot, spec *domain.CriterionSpec, drugCtx *DrugContext) domain.EvaluationResult {
	eval, ok := e.evaluators[spec.Type]
	if !ok {
		e.logger.WithFields(logrus.Fields{
			"criterion": spec.Type.String(),
			"drug":      drugCtx.Coverage.DrugName,
		}).Warn("Unsupported criterion type, skipping")

		return domain.EvaluationResult{
			Criterion:   spec.Type,
			Status:      domain.StatusNotApplicable,
			Requirement: spec.Rule,
			Reason:      fmt.Sprintf("criterion type %q is not supported by this engine version", spec.Type),
			Required:    false,
		}
	}

	return eval(patient, spec, drugCtx)
}

// EvaluateAll runs every applicable criterion in order. No single evaluation
// may abort the batch.
func (e *CriterionEngine) EvaluateAll(patient *domain.PatientSnapshot, specs []domain.CriterionSpec, drugCtx *DrugContext) []domain.EvaluationResult {
	results := make([]domain.EvaluationResult, 0, len(specs))
	for i := range specs {
		results = append(results, e.Evaluate(patient, &specs[i], drugCtx))
	}

	e.logger.WithFields(logrus.Fields{
		"drug":      drugCtx.Coverage.DrugName,
		"criteria":  len(specs),
		"evaluated": len(results),
	}).Debug("Completed criteria evaluation")

	return results
}

// evaluateAge passes when the patient meets the payer's minimum age.
func evaluateAge(patient *domain.PatientSnapshot, spec *domain.CriterionSpec, _ *DrugContext) domain.EvaluationResult {
	result := domain.EvaluationResult{
		Criterion:    domain.CriterionAge,
		Requirement:  fmt.Sprintf("age >= %d years", spec.MinAge),
		Value:        fmt.Sprintf("%d", patient.Age),
		DisplayValue: fmt.Sprintf("%d years", patient.Age),
		Required:     spec.IsRequired(),
	}

	if patient.Age <= 0 {
		result.Status = domain.StatusNotApplicable
		result.Reason = "patient age not recorded"
		return result
	}

	if patient.Age >= spec.MinAge {
		result.Status = domain.StatusPass
		result.Reason = fmt.Sprintf("patient age %d meets minimum %d", patient.Age, spec.MinAge)
	} else {
		result.Status = domain.StatusFail
		result.Reason = fmt.Sprintf("patient age %d below minimum %d", patient.Age, spec.MinAge)
	}

	return result
}

// evaluateBMI passes at or above the BMI cutoff, or within the comorbidity
// window when a qualifying diagnosis is present.
func evaluateBMI(patient *domain.PatientSnapshot, spec *domain.CriterionSpec, _ *DrugContext) domain.EvaluationResult {
	result := domain.EvaluationResult{
		Criterion:   domain.CriterionBMI,
		Requirement: bmiRequirementText(spec),
		Required:    spec.IsRequired(),
	}

	if patient.BMI == nil || patient.BMI.Value <= 0 {
		result.Status = domain.StatusWarning
		result.Reason = "BMI not recorded, criterion not measurable"
		return result
	}

	bmi := patient.BMI.Value
	result.Value = fmt.Sprintf("%.1f", bmi)
	result.DisplayValue = fmt.Sprintf("BMI %.1f %s", bmi, patient.BMI.Unit)

	if bmi >= spec.MinBMI {
		result.Status = domain.StatusPass
		result.Reason = fmt.Sprintf("BMI %.1f meets minimum %.1f", bmi, spec.MinBMI)
		return result
	}

	if spec.ComorbidityBMIFloor > 0 && bmi >= spec.ComorbidityBMIFloor {
		if dx, ok := firstQualifyingComorbidity(patient); ok {
			result.Status = domain.StatusPass
			result.Reason = fmt.Sprintf("BMI %.1f within comorbidity window [%.1f, %.1f) with qualifying diagnosis %q",
				bmi, spec.ComorbidityBMIFloor, spec.MinBMI, dx)
			return result
		}
		result.Status = domain.StatusFail
		result.Reason = fmt.Sprintf("BMI %.1f within comorbidity window but no qualifying comorbidity documented", bmi)
		return result
	}

	result.Status = domain.StatusFail
	result.Reason = fmt.Sprintf("BMI %.1f below minimum %.1f", bmi, spec.MinBMI)
	return result
}

func bmiRequirementText(spec *domain.CriterionSpec) string {
	if spec.ComorbidityBMIFloor > 0 {
		return fmt.Sprintf("BMI >= %.0f, or >= %.0f with a qualifying comorbidity", spec.MinBMI, spec.ComorbidityBMIFloor)
	}
	return fmt.Sprintf("BMI >= %.0f", spec.MinBMI)
}

// firstQualifyingComorbidity returns the first diagnosis matching the
// qualifying-comorbidity list.
func firstQualifyingComorbidity(patient *domain.PatientSnapshot) (string, bool) {
	for _, term := range qualifyingComorbidities {
		if patient.HasDiagnosis(term) {
			return term, true
		}
	}
	return "", false
}

// countQualifyingComorbidities counts distinct qualifying diagnoses.
func countQualifyingComorbidities(patient *domain.PatientSnapshot) int {
	count := 0
	for _, term := range qualifyingComorbidities {
		if patient.HasDiagnosis(term) {
			count++
		}
	}
	return count
}

// evaluateDoseProgression passes when the selected dose is reachable: either
// the first dose of the schedule, or the immediately preceding dose is
// documented in therapy history and has been held for at least its required
// duration.
func evaluateDoseProgression(patient *domain.PatientSnapshot, spec *domain.CriterionSpec, drugCtx *DrugContext) domain.EvaluationResult {
	result := domain.EvaluationResult{
		Criterion:   domain.CriterionDoseProgression,
		Requirement: "titration schedule followed in sequence",
		Required:    spec.IsRequired(),
	}

	schedule := drugCtx.Coverage.DoseSchedule
	if len(schedule) == 0 || drugCtx.Dose == "" {
		result.Status = domain.StatusNotApplicable
		result.Reason = "no dose schedule configured for this drug"
		return result
	}

	idx := drugCtx.Coverage.ScheduleIndex(drugCtx.Dose)
	if idx < 0 {
		result.Status = domain.StatusWarning
		result.Reason = fmt.Sprintf("selected dose %q not found in titration schedule", drugCtx.Dose)
		return result
	}

	result.Value = drugCtx.Dose
	result.DisplayValue = fmt.Sprintf("dose %s (step %d of %d)", drugCtx.Dose, idx+1, len(schedule))

	if idx == 0 {
		result.Status = domain.StatusPass
		result.Reason = "starting dose, no prior titration step required"
		return result
	}

	previous := schedule[idx-1]
	requiredDuration := time.Duration(previous.DurationWeeks) * 7 * 24 * time.Hour

	for _, entry := range patient.HistoryFor(drugCtx.Coverage.DrugName) {
		if !domain.DoseEqual(entry.Dose, previous.Dose) {
			continue
		}
		held := drugCtx.now().Sub(entry.StartDate)
		if held >= requiredDuration {
			result.Status = domain.StatusPass
			result.Reason = fmt.Sprintf("preceding dose %s held %d weeks (requires %d)",
				previous.Dose, int(held.Hours()/(24*7)), previous.DurationWeeks)
			return result
		}
		result.Status = domain.StatusFail
		result.Reason = fmt.Sprintf("preceding dose %s held only %d of %d required weeks",
			previous.Dose, int(held.Hours()/(24*7)), previous.DurationWeeks)
		return result
	}

	result.Status = domain.StatusFail
	result.Reason = "dose progression not documented"
	return result
}

// evaluateMaintenance is informational only: it reports whether the selected
// dose is the schedule's final entry and how long the patient has held it
// versus payer guidance. It never disqualifies a request.
func evaluateMaintenance(patient *domain.PatientSnapshot, spec *domain.CriterionSpec, drugCtx *DrugContext) domain.EvaluationResult {
	result := domain.EvaluationResult{
		Criterion:   domain.CriterionMaintenance,
		Requirement: "stable on maintenance dose",
		Required:    false,
	}

	schedule := drugCtx.Coverage.DoseSchedule
	if len(schedule) == 0 || drugCtx.Dose == "" {
		result.Status = domain.StatusNotApplicable
		result.Reason = "no dose schedule configured for this drug"
		return result
	}

	idx := drugCtx.Coverage.ScheduleIndex(drugCtx.Dose)
	if idx != len(schedule)-1 {
		result.Status = domain.StatusWarning
		result.Reason = "patient has not reached the maintenance dose"
		return result
	}

	months := patient.ClinicalNotes.MonthsOnMaintenanceDose
	result.Status = domain.StatusPass
	result.Value = fmt.Sprintf("%d", months)
	result.DisplayValue = fmt.Sprintf("%d months at maintenance dose", months)
	if spec.MaintenanceGuideMonths > 0 {
		result.Reason = fmt.Sprintf("%d months at maintenance dose (guidance: %d months)", months, spec.MaintenanceGuideMonths)
	} else {
		result.Reason = fmt.Sprintf("%d months at maintenance dose", months)
	}
	return result
}

// evaluateWeightLoss passes when documented weight loss meets the per-drug
// threshold percentage.
func evaluateWeightLoss(patient *domain.PatientSnapshot, spec *domain.CriterionSpec, drugCtx *DrugContext) domain.EvaluationResult {
	threshold := drugCtx.weightLossThreshold(spec)

	result := domain.EvaluationResult{
		Criterion:   domain.CriterionWeightLoss,
		Requirement: fmt.Sprintf("documented weight loss >= %.1f%% of baseline", threshold),
		Required:    spec.IsRequired(),
	}

	baseline := patient.ClinicalNotes.BaselineWeight
	current := patient.ClinicalNotes.CurrentWeight
	if baseline <= 0 || current <= 0 {
		result.Status = domain.StatusWarning
		result.Reason = "baseline or current weight not recorded, criterion not measurable"
		return result
	}

	lossPct := (baseline - current) / baseline * 100
	result.Value = fmt.Sprintf("%.1f", lossPct)
	result.DisplayValue = fmt.Sprintf("%.1f%% weight loss", lossPct)

	if lossPct >= threshold {
		result.Status = domain.StatusPass
		result.Reason = fmt.Sprintf("weight loss %.1f%% meets threshold %.1f%%", lossPct, threshold)
	} else {
		result.Status = domain.StatusFail
		result.Reason = fmt.Sprintf("weight loss %.1f%% below threshold %.1f%%", lossPct, threshold)
	}
	return result
}

// evaluateWeightMaintained passes when the previously achieved weight loss
// has not regressed below the threshold.
func evaluateWeightMaintained(patient *domain.PatientSnapshot, spec *domain.CriterionSpec, drugCtx *DrugContext) domain.EvaluationResult {
	threshold := drugCtx.weightLossThreshold(spec)

	result := domain.EvaluationResult{
		Criterion:   domain.CriterionWeightMaintained,
		Requirement: fmt.Sprintf("weight loss maintained at >= %.1f%%", threshold),
		Required:    spec.IsRequired(),
	}

	pct := patient.ClinicalNotes.WeightLossPercentage
	if pct == 0 {
		result.Status = domain.StatusWarning
		result.Reason = "maintained weight-loss percentage not recorded"
		return result
	}

	result.Value = fmt.Sprintf("%.1f", pct)
	result.DisplayValue = fmt.Sprintf("%.1f%% maintained", pct)

	if pct >= threshold {
		result.Status = domain.StatusPass
		result.Reason = fmt.Sprintf("weight loss of %.1f%% maintained above threshold %.1f%%", pct, threshold)
	} else {
		result.Status = domain.StatusFail
		result.Reason = fmt.Sprintf("weight loss regressed to %.1f%%, below threshold %.1f%%", pct, threshold)
	}
	return result
}

// evaluateWeightProgram warns rather than fails when no structured weight
// program is documented: many payers accept after-the-fact attestation.
func evaluateWeightProgram(patient *domain.PatientSnapshot, spec *domain.CriterionSpec, _ *DrugContext) domain.EvaluationResult {
	result := domain.EvaluationResult{
		Criterion:   domain.CriterionWeightProgram,
		Requirement: "participation in a structured weight-management program",
		Required:    spec.IsRequired(),
	}

	if patient.ClinicalNotes.HasWeightProgram {
		result.Status = domain.StatusPass
		result.Reason = "structured weight-management program documented"
	} else {
		result.Status = domain.StatusWarning
		result.Reason = "no weight-management program documented; payer may accept attestation"
	}
	return result
}

// evaluateDocumentation passes when every required document is on file;
// missing items are listed individually.
func evaluateDocumentation(patient *domain.PatientSnapshot, spec *domain.CriterionSpec, _ *DrugContext) domain.EvaluationResult {
	result := domain.EvaluationResult{
		Criterion:   domain.CriterionDocumentation,
		Requirement: fmt.Sprintf("documents on file: %s", strings.Join(spec.RequiredDocuments, ", ")),
		Required:    spec.IsRequired(),
	}

	if len(spec.RequiredDocuments) == 0 {
		result.Status = domain.StatusPass
		result.Reason = "no documents required"
		return result
	}

	var missing []string
	for _, doc := range spec.RequiredDocuments {
		if !patient.Documentation[doc] {
			missing = append(missing, doc)
		}
	}
	sort.Strings(missing)

	if len(missing) == 0 {
		result.Status = domain.StatusPass
		result.Reason = fmt.Sprintf("all %d required documents on file", len(spec.RequiredDocuments))
	} else {
		result.Status = domain.StatusFail
		result.Reason = fmt.Sprintf("missing documents: %s", strings.Join(missing, ", "))
	}
	return result
}

// evaluateComorbidity passes when the count of qualifying diagnoses meets the
// criterion's minimum (default 1).
func evaluateComorbidity(patient *domain.PatientSnapshot, spec *domain.CriterionSpec, _ *DrugContext) domain.EvaluationResult {
	minCount := spec.MinComorbidityCount
	if minCount <= 0 {
		minCount = 1
	}

	result := domain.EvaluationResult{
		Criterion:   domain.CriterionComorbidity,
		Requirement: fmt.Sprintf("at least %d qualifying comorbidity diagnoses", minCount),
		Required:    spec.IsRequired(),
	}

	count := countQualifyingComorbidities(patient)
	result.Value = fmt.Sprintf("%d", count)
	result.DisplayValue = fmt.Sprintf("%d qualifying diagnoses", count)

	if count >= minCount {
		result.Status = domain.StatusPass
		result.Reason = fmt.Sprintf("%d qualifying comorbidities documented (requires %d)", count, minCount)
	} else {
		result.Status = domain.StatusFail
		result.Reason = fmt.Sprintf("%d qualifying comorbidities documented, requires %d", count, minCount)
	}
	return result
}
