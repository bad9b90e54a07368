package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/priorauth-engine/internal/api"
	"github.com/priorauth-engine/internal/config"
	"github.com/priorauth-engine/internal/domain"
	"github.com/priorauth-engine/internal/formulary"
	"github.com/priorauth-engine/internal/service"
	"github.com/priorauth-engine/pkg/external"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	logger.WithFields(logrus.Fields{
		"host":   cfg.Server.Host,
		"port":   cfg.Server.Port,
		"driver": cfg.Database.Driver,
	}).Info("Starting prior-authorization engine")

	// Open the formulary store and seed the bundled reference formulary
	store, err := openStore(configManager, logger)
	if err != nil {
		log.Fatalf("Failed to open formulary store: %v", err)
	}
	defer store.Close()

	// Optional Redis tier for drug-metadata caching
	var cacheClient *external.CacheClient
	if cfg.Cache.RedisURL != "" {
		cacheClient, err = external.NewCacheClient(cfg.Cache)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, running without metadata cache")
			cacheClient = nil
		}
	}

	// Drug terminology stack: RxNorm and openFDA behind circuit breakers
	metadataService, err := external.NewMetadataService(
		external.RxNormConfig{
			BaseURL:   cfg.ExternalAPI.RxNorm.BaseURL,
			Timeout:   cfg.ExternalAPI.RxNorm.Timeout,
			RateLimit: cfg.ExternalAPI.RxNorm.RateLimit,
		},
		external.OpenFDAConfig{
			BaseURL:   cfg.ExternalAPI.OpenFDA.BaseURL,
			APIKey:    cfg.ExternalAPI.OpenFDA.APIKey,
			Timeout:   cfg.ExternalAPI.OpenFDA.Timeout,
			RateLimit: cfg.ExternalAPI.OpenFDA.RateLimit,
		},
		cacheClient,
		logger,
	)
	if err != nil {
		log.Fatalf("Failed to create metadata service: %v", err)
	}
	defer metadataService.Close()

	// Assessment pipeline and HTTP server
	assessor := service.NewAssessmentService(logger, store, metadataService, &cfg.Engine)
	server := api.NewServer(configManager, logger, assessor, store, metadataService)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}

	logger.Info("Server stopped")
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}

// openStore opens the configured formulary backend. SQLite and memory stores
// are seeded with the bundled reference formulary; postgres deployments load
// coverage through their own migration tooling.
func openStore(configManager domain.ConfigManager, logger *logrus.Logger) (formulary.Store, error) {
	cfg := configManager.GetConfig()

	switch cfg.Database.Driver {
	case "postgres":
		return formulary.NewPostgresStoreFromURL(buildPostgresDSN(&cfg.Database))
	case "memory":
		return formulary.NewMemoryStoreWithRecords(formulary.ReferenceRecords())
	default:
		store, err := formulary.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		inserted, err := store.Seed(context.Background(), formulary.ReferenceRecords())
		if err != nil {
			store.Close()
			return nil, err
		}
		if inserted > 0 {
			logger.WithField("records", inserted).Info("Seeded reference formulary")
		}
		return store, nil
	}
}

func buildPostgresDSN(db *domain.DatabaseConfig) string {
	parts := []string{
		"host=" + db.Host,
		"user=" + db.Username,
		"dbname=" + db.Database,
		"sslmode=" + db.SSLMode,
	}
	if db.Port > 0 {
		parts = append(parts, "port="+strconv.Itoa(db.Port))
	}
	if db.Password != "" {
		parts = append(parts, "password="+db.Password)
	}
	return strings.Join(parts, " ")
}
