package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Quality    QualityConfig    `yaml:"quality" mapstructure:"quality"`
	Validator  ValidatorConfig  `yaml:"validator" mapstructure:"validator"`
	Roster     RosterConfig     `yaml:"roster" mapstructure:"roster"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the record store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// QualityConfig configures quality scoring and priority tiers. Scores are on
// a 0-100 scale; confidences on 0-1.
type QualityConfig struct {
	RequiredFields         []string `yaml:"required_fields" mapstructure:"required_fields"`
	CompletenessWeight     float64  `yaml:"completeness_weight" mapstructure:"completeness_weight"`
	ConfidenceWeight       float64  `yaml:"confidence_weight" mapstructure:"confidence_weight"`
	HighThreshold          float64  `yaml:"high_threshold" mapstructure:"high_threshold"`
	MediumThreshold        float64  `yaml:"medium_threshold" mapstructure:"medium_threshold"`
	CorrectedConfidence    float64  `yaml:"corrected_confidence" mapstructure:"corrected_confidence"`
	ReextractionConfidence float64  `yaml:"reextraction_confidence" mapstructure:"reextraction_confidence"`
}

// ValidatorConfig configures the taxonomic/locality validator.
type ValidatorConfig struct {
	Enabled            bool          `yaml:"enabled" mapstructure:"enabled"`
	GBIFBaseURL        string        `yaml:"gbif_base_url" mapstructure:"gbif_base_url"`
	TimeoutSecs        int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec         float64       `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst              int           `yaml:"burst" mapstructure:"burst"`
	CacheSize          int           `yaml:"cache_size" mapstructure:"cache_size"`
	CacheTTLMins       int           `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
	MinMatchConfidence int           `yaml:"min_match_confidence" mapstructure:"min_match_confidence"`
	Retry              RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit            CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
}

// RetryConfig holds retry settings for validator calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig holds circuit breaker settings for validator calls.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// RosterConfig points at the actor directory.
type RosterConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// IngestConfig configures bulk ingestion.
type IngestConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// MonitoringConfig configures backlog alerting in serve mode.
type MonitoringConfig struct {
	Enabled                bool   `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs      int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	WebhookURL             string `yaml:"webhook_url" mapstructure:"webhook_url"`
	CriticalBacklog        int    `yaml:"critical_backlog" mapstructure:"critical_backlog"`
	ModifiedSinceExport    int    `yaml:"modified_since_export" mapstructure:"modified_since_export"`
	EntrantBacklogPerActor int    `yaml:"entrant_backlog_per_actor" mapstructure:"entrant_backlog_per_actor"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HERBARIUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "herbarium.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("quality.required_fields", []string{
		"catalogNumber", "scientificName", "eventDate", "recordedBy",
		"country", "stateProvince", "locality",
	})
	v.SetDefault("quality.completeness_weight", 0.6)
	v.SetDefault("quality.confidence_weight", 0.4)
	v.SetDefault("quality.high_threshold", 50.0)
	v.SetDefault("quality.medium_threshold", 75.0)
	v.SetDefault("quality.corrected_confidence", 1.0)
	v.SetDefault("quality.reextraction_confidence", 0.70)
	v.SetDefault("validator.enabled", false)
	v.SetDefault("validator.gbif_base_url", "https://api.gbif.org/v1")
	v.SetDefault("validator.timeout_secs", 10)
	v.SetDefault("validator.rate_per_sec", 5.0)
	v.SetDefault("validator.burst", 5)
	v.SetDefault("validator.cache_size", 10000)
	v.SetDefault("validator.cache_ttl_mins", 1440)
	v.SetDefault("validator.min_match_confidence", 90)
	v.SetDefault("validator.retry.max_attempts", 3)
	v.SetDefault("validator.retry.initial_backoff_ms", 500)
	v.SetDefault("validator.retry.max_backoff_ms", 10000)
	v.SetDefault("validator.retry.multiplier", 2.0)
	v.SetDefault("validator.retry.jitter_fraction", 0.25)
	v.SetDefault("validator.circuit.failure_threshold", 5)
	v.SetDefault("validator.circuit.reset_timeout_secs", 30)
	v.SetDefault("roster.path", "roster.yaml")
	v.SetDefault("ingest.concurrency", 4)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.critical_backlog", 100)
	v.SetDefault("monitoring.modified_since_export", 1)
	v.SetDefault("monitoring.entrant_backlog_per_actor", 50)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes: "serve",
// "ingest", "cli".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "ingest":
		if c.Ingest.Concurrency < 1 || c.Ingest.Concurrency > 64 {
			errs = append(errs, "ingest.concurrency must be between 1 and 64")
		}
	case "cli":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of memory, sqlite, postgres", c.Store.Driver))
	}

	q := c.Quality
	if len(q.RequiredFields) == 0 {
		errs = append(errs, "quality.required_fields must not be empty")
	}
	if q.CompletenessWeight < 0 || q.ConfidenceWeight < 0 {
		errs = append(errs, "quality weights must be >= 0")
	}
	if q.HighThreshold < 0 || q.MediumThreshold > 100 || q.HighThreshold > q.MediumThreshold {
		errs = append(errs, "quality thresholds must satisfy 0 <= high_threshold <= medium_threshold <= 100")
	}
	if q.CorrectedConfidence < 0 || q.CorrectedConfidence > 1 {
		errs = append(errs, "quality.corrected_confidence must be between 0 and 1")
	}
	if q.ReextractionConfidence < 0 || q.ReextractionConfidence > 1 {
		errs = append(errs, "quality.reextraction_confidence must be between 0 and 1")
	}

	if c.Validator.Enabled && c.Validator.GBIFBaseURL == "" {
		errs = append(errs, "validator.gbif_base_url is required when the validator is enabled")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
