package external

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/priorauth-engine/internal/domain"
)

// ResilientMetadataClient wraps the terminology clients with circuit
// breakers and an optional Redis cache tier.
type ResilientMetadataClient struct {
	logger        *logrus.Logger
	rxnormClient  *RxNormClient
	openFDAClient *OpenFDAClient
	cacheClient   *CacheClient

	rxnormBreaker  *gobreaker.CircuitBreaker
	openFDABreaker *gobreaker.CircuitBreaker
}

// NewResilientMetadataClient creates a resilient client. cacheClient may be
// nil, in which case every lookup goes to the live services.
func NewResilientMetadataClient(
	rxnormConfig RxNormConfig,
	openFDAConfig OpenFDAConfig,
	cacheClient *CacheClient,
	logger *logrus.Logger,
) *ResilientMetadataClient {
	rxnormBreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "RxNorm",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	openFDABreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openFDA",
		MaxRequests: 3, // More conservative: openFDA rate limits are tighter
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 2 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &ResilientMetadataClient{
		logger:         logger,
		rxnormClient:   NewRxNormClient(rxnormConfig),
		openFDAClient:  NewOpenFDAClient(openFDAConfig),
		cacheClient:    cacheClient,
		rxnormBreaker:  rxnormBreaker,
		openFDABreaker: openFDABreaker,
	}
}

// Identify resolves drug identification with cache and circuit breaking.
func (r *ResilientMetadataClient) Identify(ctx context.Context, drugName string) (*domain.DrugIdentification, error) {
	if r.cacheClient != nil {
		if cached, hit, err := r.cacheClient.GetIdentification(ctx, drugName); err == nil && hit {
			return cached, nil
		}
	}

	result, err := r.rxnormBreaker.Execute(func() (interface{}, error) {
		return r.rxnormClient.Identify(ctx, drugName)
	})
	if err != nil {
		return nil, fmt.Errorf("RxNorm identification failed: %w", err)
	}

	identification := result.(*domain.DrugIdentification)
	if r.cacheClient != nil {
		if err := r.cacheClient.SetIdentification(ctx, drugName, identification); err != nil {
			r.logger.WithError(err).Debug("Failed to cache drug identification")
		}
	}
	return identification, nil
}

// ApprovalInfo resolves FDA approval status with cache and circuit breaking.
func (r *ResilientMetadataClient) ApprovalInfo(ctx context.Context, genericName, indication string) (*domain.ApprovalInfo, error) {
	if r.cacheClient != nil {
		if cached, hit, err := r.cacheClient.GetApproval(ctx, genericName, indication); err == nil && hit {
			return cached, nil
		}
	}

	result, err := r.openFDABreaker.Execute(func() (interface{}, error) {
		return r.openFDAClient.ApprovalInfo(ctx, genericName, indication)
	})
	if err != nil {
		return nil, fmt.Errorf("openFDA approval lookup failed: %w", err)
	}

	info := result.(*domain.ApprovalInfo)
	if r.cacheClient != nil {
		if err := r.cacheClient.SetApproval(ctx, genericName, indication, info); err != nil {
			r.logger.WithError(err).Debug("Failed to cache approval info")
		}
	}
	return info, nil
}

// Formulations resolves known strengths with cache and circuit breaking.
func (r *ResilientMetadataClient) Formulations(ctx context.Context, drugName string) ([]domain.Formulation, error) {
	if r.cacheClient != nil {
		if cached, hit, err := r.cacheClient.GetFormulations(ctx, drugName); err == nil && hit {
			return cached, nil
		}
	}

	result, err := r.rxnormBreaker.Execute(func() (interface{}, error) {
		return r.rxnormClient.Formulations(ctx, drugName)
	})
	if err != nil {
		return nil, fmt.Errorf("RxNorm formulations lookup failed: %w", err)
	}

	formulations := result.([]domain.Formulation)
	if r.cacheClient != nil {
		if err := r.cacheClient.SetFormulations(ctx, drugName, formulations); err != nil {
			r.logger.WithError(err).Debug("Failed to cache formulations")
		}
	}
	return formulations, nil
}

// GatherMetadata runs the full metadata fan-out: identification first, then
// approval and formulations concurrently. Partial failures degrade the
// result instead of failing it; Validated is true only when identification
// succeeded against the live service.
func (r *ResilientMetadataClient) GatherMetadata(ctx context.Context, drugName, indication string) (*domain.DrugMetadata, error) {
	metadata := &domain.DrugMetadata{GatheredAt: time.Now()}

	identification, err := r.Identify(ctx, drugName)
	if err != nil {
		return nil, fmt.Errorf("failed to identify drug %q: %w", drugName, err)
	}
	metadata.Identification = identification
	metadata.Validated = true

	genericName := identification.GenericName
	if genericName == "" {
		genericName = drugName
	}

	type approvalResult struct {
		info *domain.ApprovalInfo
		err  error
	}
	type formulationsResult struct {
		formulations []domain.Formulation
		err          error
	}

	approvalCh := make(chan approvalResult, 1)
	formulationsCh := make(chan formulationsResult, 1)

	go func() {
		info, err := r.ApprovalInfo(ctx, genericName, indication)
		approvalCh <- approvalResult{info: info, err: err}
	}()
	go func() {
		formulations, err := r.Formulations(ctx, drugName)
		formulationsCh <- formulationsResult{formulations: formulations, err: err}
	}()

	for i := 0; i < 2; i++ {
		select {
		case res := <-approvalCh:
			if res.err != nil {
				r.logger.WithError(res.err).WithField("drug", drugName).
					Warn("Approval lookup failed, continuing without it")
				continue
			}
			metadata.Approval = res.info
		case res := <-formulationsCh:
			if res.err != nil {
				r.logger.WithError(res.err).WithField("drug", drugName).
					Warn("Formulations lookup failed, continuing without them")
				continue
			}
			metadata.Formulations = res.formulations
		case <-ctx.Done():
			return metadata, nil
		}
	}

	return metadata, nil
}

// BreakerStates returns the current state of each circuit breaker.
func (r *ResilientMetadataClient) BreakerStates() map[string]gobreaker.State {
	return map[string]gobreaker.State{
		"rxnorm":  r.rxnormBreaker.State(),
		"openfda": r.openFDABreaker.State(),
	}
}
