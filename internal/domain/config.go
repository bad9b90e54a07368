package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	ExternalAPI ExternalAPIConfig `mapstructure:"external_api"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Engine      EngineConfig      `mapstructure:"engine"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLSEnabled   bool          `mapstructure:"tls_enabled"`
	CertFile     string        `mapstructure:"cert_file"`
	KeyFile      string        `mapstructure:"key_file"`
}

// DatabaseConfig represents the formulary database configuration. Driver is
// "sqlite" or "postgres"; the remaining fields apply to postgres only.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"` // sqlite file path
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ExternalAPIConfig represents external API configuration
type ExternalAPIConfig struct {
	RxNorm  RxNormConfig  `mapstructure:"rxnorm"`
	OpenFDA OpenFDAConfig `mapstructure:"openfda"`
}

// RxNormConfig represents RxNorm API configuration
type RxNormConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RetryCount int           `mapstructure:"retry_count"`
}

// OpenFDAConfig represents openFDA API configuration
type OpenFDAConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RetryCount int           `mapstructure:"retry_count"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	RedisURL        string        `mapstructure:"redis_url"`
	DefaultTTL      time.Duration `mapstructure:"default_ttl"`
	IdentifyTTL     time.Duration `mapstructure:"identify_ttl"`
	ApprovalTTL     time.Duration `mapstructure:"approval_ttl"`
	FormulationsTTL time.Duration `mapstructure:"formulations_ttl"`
	MaxRetries      int           `mapstructure:"max_retries"`
	PoolSize        int           `mapstructure:"pool_size"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// EngineConfig carries tunable engine thresholds.
type EngineConfig struct {
	AlternativeTrigger       int           `mapstructure:"alternative_trigger"`        // standard path, default 70
	AlternativeTriggerLegacy int           `mapstructure:"alternative_trigger_legacy"` // legacy simple path, default 50
	MaxAlternatives          int           `mapstructure:"max_alternatives"`           // default 3
	MetadataTimeout          time.Duration `mapstructure:"metadata_timeout"`           // per external call, default 4s
	MaxConcurrentCandidates  int           `mapstructure:"max_concurrent_candidates"`  // ranker fan-out bound
}
