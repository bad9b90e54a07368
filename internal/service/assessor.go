package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/priorauth-engine/internal/domain"
)

// AssessmentParams carries the inputs for one prior-authorization assessment.
type AssessmentParams struct {
	InsurancePlan string                  `json:"insurancePlan"`
	DrugName      string                  `json:"drugName"`
	Dose          string                  `json:"dose"`
	Indication    string                  `json:"indication,omitempty"`
	Patient       *domain.PatientSnapshot `json:"patient"`

	// Enhanced enables external drug-metadata lookups. When false the
	// assessment runs on coverage configuration and patient data alone.
	Enhanced bool `json:"enhanced,omitempty"`
}

// AssessmentResult is the complete outcome of one assessment run.
type AssessmentResult struct {
	InsurancePlan  string                        `json:"insurancePlan"`
	DrugName       string                        `json:"drugName"`
	Dose           string                        `json:"dose"`
	Phase          domain.DosePhase              `json:"phase,omitempty"`
	Continuation   bool                          `json:"continuation"`
	Coverage       *domain.CoverageRecord        `json:"coverage"`
	Criteria       []domain.EvaluationResult     `json:"criteria"`
	Assessment     *domain.ApprovalAssessment    `json:"assessment"`
	Alternatives   []domain.AlternativeCandidate `json:"alternatives,omitempty"`
	Metadata       *domain.DrugMetadata          `json:"metadata,omitempty"`
	ProcessingTime time.Duration                 `json:"processingTime"`
}

// AssessmentService implements the full assessment workflow: coverage
// resolution, phase classification, continuation detection, criteria
// filtering and evaluation, likelihood calculation, and alternative ranking.
type AssessmentService struct {
	logger     *logrus.Logger
	resolver   *CoverageResolver
	engine     *CriterionEngine
	calculator *Calculator
	ranker     *AlternativeRanker
	metadata   domain.DrugMetadataProvider
	source     domain.CoverageSource
	cfg        *domain.EngineConfig
}

// NewAssessmentService wires the assessment pipeline. metadata may be nil,
// in which case enhanced assessments degrade to the standard path.
func NewAssessmentService(
	logger *logrus.Logger,
	source domain.CoverageSource,
	metadata domain.DrugMetadataProvider,
	cfg *domain.EngineConfig,
) *AssessmentService {
	engine := NewCriterionEngine(logger)
	calculator := NewCalculator(logger)
	return &AssessmentService{
		logger:     logger,
		resolver:   NewCoverageResolver(source, logger),
		engine:     engine,
		calculator: calculator,
		ranker:     NewAlternativeRanker(engine, calculator, cfg.MaxAlternatives, cfg.MaxConcurrentCandidates, logger),
		metadata:   metadata,
		source:     source,
		cfg:        cfg,
	}
}

// Assess runs the complete prior-authorization assessment workflow.
func (s *AssessmentService) Assess(ctx context.Context, params *AssessmentParams) (*AssessmentResult, error) {
	startTime := time.Now()

	if err := s.validateParams(params); err != nil {
		return nil, fmt.Errorf("invalid assessment parameters: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"insurance_plan": params.InsurancePlan,
		"drug":           params.DrugName,
		"dose":           params.Dose,
		"enhanced":       params.Enhanced,
	}).Info("Starting prior-authorization assessment")

	// Step 1: Resolve coverage configuration for the (plan, drug) pair
	coverage, err := s.resolver.ResolveCoverage(ctx, params.InsurancePlan, params.DrugName)
	if err != nil {
		return nil, err
	}

	// Step 2: Classify the requested dose within the titration schedule.
	// An unrecognized dose degrades phase filtering rather than failing the
	// assessment.
	phase, err := s.resolver.ClassifyPhase(coverage, params.Dose)
	if err != nil {
		if errors.Is(err, domain.ErrDoseNotInSchedule) {
			s.logger.WithFields(logrus.Fields{
				"drug": params.DrugName,
				"dose": params.Dose,
			}).Warn("Requested dose not in titration schedule, evaluating all criteria")
			phase = ""
		} else {
			return nil, err
		}
	}

	// Step 3: Detect continuation of an established therapy
	continuation := DetectContinuation(params.Patient, params.DrugName, params.Dose)

	// Step 4: Filter criteria by phase and continuation status
	specs := ApplicableCriteria(coverage, phase, continuation)

	// Step 5 (enhanced path): gather external drug metadata with a hard
	// timeout. Failures lower confidence instead of failing the assessment.
	now := time.Now()
	var metadata *domain.DrugMetadata
	var factors []domain.Factor
	if params.Enhanced && s.metadata != nil {
		metadata = s.gatherMetadata(ctx, params)
		factors = s.calculator.BuildMetadataFactors(metadata, coverage, params.Dose)
	}

	// Step 6: Evaluate each applicable criterion
	drugCtx := &DrugContext{
		Coverage:            coverage,
		Dose:                params.Dose,
		Phase:               phase,
		Metadata:            metadata,
		WeightLossThreshold: classThreshold(coverage, metadata),
		Now:                 now,
	}
	results := s.engine.EvaluateAll(params.Patient, specs, drugCtx)

	// Step 7: Calculate approval likelihood
	assessment := s.calculator.AssessApproval(results, factors)
	if params.Enhanced {
		assessment.RxnormValidated = metadata != nil && metadata.Validated
	}

	// Step 8: Rank alternatives when the likelihood is below the trigger
	var alternatives []domain.AlternativeCandidate
	if assessment.Likelihood < s.alternativeTrigger(params.Enhanced) {
		alternatives = s.rankAlternatives(ctx, params, coverage, assessment.Likelihood, now)
	}

	result := &AssessmentResult{
		InsurancePlan:  params.InsurancePlan,
		DrugName:       params.DrugName,
		Dose:           params.Dose,
		Phase:          phase,
		Continuation:   continuation,
		Coverage:       coverage,
		Criteria:       results,
		Assessment:     assessment,
		Alternatives:   alternatives,
		Metadata:       metadata,
		ProcessingTime: time.Since(startTime),
	}

	s.logger.WithFields(logrus.Fields{
		"insurance_plan":  params.InsurancePlan,
		"drug":            params.DrugName,
		"dose":            params.Dose,
		"phase":           string(phase),
		"continuation":    continuation,
		"likelihood":      assessment.Likelihood,
		"confidence":      string(assessment.Confidence),
		"alternatives":    len(alternatives),
		"processing_time": result.ProcessingTime,
	}).Info("Prior-authorization assessment completed")

	return result, nil
}

// ClassifyPhase implements domain.AssessmentEngine.
func (s *AssessmentService) ClassifyPhase(coverage *domain.CoverageRecord, dose string) (domain.DosePhase, error) {
	return s.resolver.ClassifyPhase(coverage, dose)
}

// DetectContinuation implements domain.AssessmentEngine.
func (s *AssessmentService) DetectContinuation(patient *domain.PatientSnapshot, drug, dose string) bool {
	return DetectContinuation(patient, drug, dose)
}

// ApplicableCriteria implements domain.AssessmentEngine.
func (s *AssessmentService) ApplicableCriteria(coverage *domain.CoverageRecord, phase domain.DosePhase, continuation bool) []domain.CriterionSpec {
	return ApplicableCriteria(coverage, phase, continuation)
}

// AssessApproval implements domain.AssessmentEngine.
func (s *AssessmentService) AssessApproval(results []domain.EvaluationResult, factors []domain.Factor) *domain.ApprovalAssessment {
	return s.calculator.AssessApproval(results, factors)
}

func (s *AssessmentService) validateParams(params *AssessmentParams) error {
	if params == nil {
		return domain.NewValidationError("params", "assessment parameters are required", nil)
	}
	if params.InsurancePlan == "" {
		return domain.NewValidationError("insurancePlan", "insurance plan is required", params.InsurancePlan)
	}
	if params.DrugName == "" {
		return domain.NewValidationError("drugName", "drug name is required", params.DrugName)
	}
	if params.Patient == nil {
		return domain.NewValidationError("patient", "patient snapshot is required", nil)
	}
	return params.Patient.Validate()
}

// gatherMetadata runs the fan-out metadata lookup under the configured
// timeout. Any failure returns nil so the caller proceeds unvalidated.
func (s *AssessmentService) gatherMetadata(ctx context.Context, params *AssessmentParams) *domain.DrugMetadata {
	timeout := s.cfg.MetadataTimeout
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	mctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	metadata, err := s.metadata.GatherMetadata(mctx, params.DrugName, params.Indication)
	if err != nil {
		s.logger.WithError(err).WithField("drug", params.DrugName).
			Warn("Failed to gather drug metadata, proceeding without validation")
		return nil
	}
	return metadata
}

func (s *AssessmentService) alternativeTrigger(enhanced bool) int {
	if enhanced {
		if s.cfg.AlternativeTrigger > 0 {
			return s.cfg.AlternativeTrigger
		}
		return 70
	}
	if s.cfg.AlternativeTriggerLegacy > 0 {
		return s.cfg.AlternativeTriggerLegacy
	}
	return 50
}

func (s *AssessmentService) rankAlternatives(
	ctx context.Context,
	params *AssessmentParams,
	coverage *domain.CoverageRecord,
	currentLikelihood int,
	now time.Time,
) []domain.AlternativeCandidate {
	pool, err := s.source.CandidatesByCategory(ctx, params.InsurancePlan, coverage.Category)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"insurance_plan": params.InsurancePlan,
			"category":       coverage.Category,
		}).Warn("Failed to load alternative candidate pool")
		return nil
	}
	return s.ranker.RankAlternatives(ctx, params.Patient, params.DrugName, currentLikelihood, pool, now)
}
