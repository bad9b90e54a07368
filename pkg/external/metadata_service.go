package external

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/priorauth-engine/internal/domain"
)

// defaultMemoryCacheSize bounds the in-process metadata cache.
const defaultMemoryCacheSize = 256

// MetadataService is the engine-facing facade over the terminology stack.
// Lookup order is memory LRU, Redis, live services; when the live path
// fails it falls back to static profiles with Validated=false.
type MetadataService struct {
	logger          *logrus.Logger
	resilientClient *ResilientMetadataClient
	memoryCache     *lru.Cache
}

// NewMetadataService creates the metadata service. cacheClient may be nil to
// run without the Redis tier.
func NewMetadataService(
	rxnormConfig RxNormConfig,
	openFDAConfig OpenFDAConfig,
	cacheClient *CacheClient,
	logger *logrus.Logger,
) (*MetadataService, error) {
	memoryCache, err := lru.New(defaultMemoryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return &MetadataService{
		logger:          logger,
		resilientClient: NewResilientMetadataClient(rxnormConfig, openFDAConfig, cacheClient, logger),
		memoryCache:     memoryCache,
	}, nil
}

// Identify implements domain.DrugMetadataProvider.
func (m *MetadataService) Identify(ctx context.Context, drugName string) (*domain.DrugIdentification, error) {
	return m.resilientClient.Identify(ctx, drugName)
}

// ApprovalInfo implements domain.DrugMetadataProvider.
func (m *MetadataService) ApprovalInfo(ctx context.Context, genericName, indication string) (*domain.ApprovalInfo, error) {
	return m.resilientClient.ApprovalInfo(ctx, genericName, indication)
}

// Formulations implements domain.DrugMetadataProvider.
func (m *MetadataService) Formulations(ctx context.Context, genericName string) ([]domain.Formulation, error) {
	return m.resilientClient.Formulations(ctx, genericName)
}

// GatherMetadata implements domain.DrugMetadataProvider. A live failure
// degrades to the static profile when one exists; the unvalidated result
// still lets the engine assess, at lower confidence.
func (m *MetadataService) GatherMetadata(ctx context.Context, drugName, indication string) (*domain.DrugMetadata, error) {
	cacheKey := domain.NormalizeName(drugName) + ":" + domain.NormalizeName(indication)
	if cached, ok := m.memoryCache.Get(cacheKey); ok {
		return cached.(*domain.DrugMetadata), nil
	}

	metadata, err := m.resilientClient.GatherMetadata(ctx, drugName, indication)
	if err != nil {
		fallback := FallbackMetadata(drugName, indication)
		if fallback == nil {
			return nil, fmt.Errorf("metadata unavailable for %q: %w", drugName, err)
		}

		m.logger.WithError(err).WithField("drug", drugName).
			Warn("Live metadata unavailable, using static profile")
		return fallback, nil
	}

	m.memoryCache.Add(cacheKey, metadata)
	return metadata, nil
}

// HealthCheck reports the state of the external dependencies.
func (m *MetadataService) HealthCheck(ctx context.Context) map[string]bool {
	health := make(map[string]bool)
	for service, state := range m.resilientClient.BreakerStates() {
		health[service] = state == gobreaker.StateClosed
	}
	if m.resilientClient.cacheClient != nil {
		health["cache"] = m.resilientClient.cacheClient.Ping(ctx) == nil
	}
	return health
}

// Close releases the service's connections.
func (m *MetadataService) Close() error {
	if m.resilientClient.cacheClient != nil {
		return m.resilientClient.cacheClient.Close()
	}
	return nil
}
