package domain

import (
	"context"
)

// CoverageSource resolves coverage configuration for (plan, drug) pairs and
// supplies candidate pools for alternative ranking.
type CoverageSource interface {
	ResolveCoverage(ctx context.Context, insurancePlan, drugName string) (*CoverageRecord, error)
	CandidatesByCategory(ctx context.Context, insurancePlan, category string) ([]*CoverageRecord, error)
}

// DrugMetadataProvider exposes external drug-terminology lookups. A failing
// or absent provider must never fail evaluation; the engine falls back to
// static profiles and lowers confidence.
type DrugMetadataProvider interface {
	Identify(ctx context.Context, drugName string) (*DrugIdentification, error)
	ApprovalInfo(ctx context.Context, genericName, indication string) (*ApprovalInfo, error)
	Formulations(ctx context.Context, genericName string) ([]Formulation, error)
	GatherMetadata(ctx context.Context, drugName, indication string) (*DrugMetadata, error)
}

// AssessmentEngine is the engine's functional boundary.
type AssessmentEngine interface {
	ClassifyPhase(coverage *CoverageRecord, dose string) (DosePhase, error)
	DetectContinuation(patient *PatientSnapshot, drug, dose string) bool
	ApplicableCriteria(coverage *CoverageRecord, phase DosePhase, continuation bool) []CriterionSpec
	AssessApproval(results []EvaluationResult, factors []Factor) *ApprovalAssessment
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetExternalAPIConfig() *ExternalAPIConfig
	GetEngineConfig() *EngineConfig
	Reload() error
	Validate() error
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
