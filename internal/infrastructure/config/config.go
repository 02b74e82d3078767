package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/meridianrisk/fraud-impact-engine/internal/domain/investigation"
	"github.com/meridianrisk/fraud-impact-engine/internal/service/scoring"
)

const envPrefix = "FRAUD_"

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Database     DatabaseConfig     `koanf:"database"`
	Redis        RedisConfig        `koanf:"redis"`
	Engine       EngineConfig       `koanf:"engine"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`

	// MerchantAdjustments is the pluggable score adjustment table,
	// keyed by merchant name.
	MerchantAdjustments map[string]scoring.MerchantAdjustment `koanf:"merchant_adjustments"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL      string        `koanf:"url"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	TTL      time.Duration `koanf:"ttl"`
}

// EngineConfig carries the investigation parameters. None of these have
// defaults: a missing value is a fatal configuration error at startup,
// never a silent fallback.
type EngineConfig struct {
	RiskThreshold        float64       `koanf:"risk_threshold"`
	MaxTransactions      int           `koanf:"max_transactions"`
	CapOrder             string        `koanf:"cap_order"`
	ScoringBatchSize     int           `koanf:"scoring_batch_size"`
	Timeout              time.Duration `koanf:"per_investigation_timeout"`
	TimeWindowDuration   time.Duration `koanf:"time_window_duration"`
	LookbackOffset       time.Duration `koanf:"lookback_offset"`
	ImpactWindowDuration time.Duration `koanf:"impact_window_duration"`
	MinAnomalySamples    int           `koanf:"min_anomaly_samples"`
	Contamination        float64       `koanf:"contamination"`
	TakeRate             float64       `koanf:"take_rate"`
	LifetimeMultiplier   float64       `koanf:"lifetime_multiplier"`
	ConfidenceBasis      string        `koanf:"confidence_basis"`
}

// Parameters converts the engine section into validated domain parameters
func (e EngineConfig) Parameters() (investigation.Parameters, error) {
	params := investigation.Parameters{
		RiskThreshold:        e.RiskThreshold,
		MaxTransactions:      e.MaxTransactions,
		CapOrder:             investigation.CapOrder(e.CapOrder),
		ScoringBatchSize:     e.ScoringBatchSize,
		Timeout:              e.Timeout,
		TimeWindowDuration:   e.TimeWindowDuration,
		LookbackOffset:       e.LookbackOffset,
		ImpactWindowDuration: e.ImpactWindowDuration,
		MinAnomalySamples:    e.MinAnomalySamples,
		Contamination:        e.Contamination,
		TakeRate:             e.TakeRate,
		LifetimeMultiplier:   e.LifetimeMultiplier,
		ConfidenceBasis:      investigation.ConfidenceBasis(e.ConfidenceBasis),
	}
	if err := params.Validate(); err != nil {
		return investigation.Parameters{}, err
	}
	return params, nil
}

type OrchestratorConfig struct {
	Concurrency      int           `koanf:"concurrency" validate:"min=1"`
	FetchMaxAttempts int           `koanf:"fetch_max_attempts" validate:"min=1"`
	FetchBackoffBase time.Duration `koanf:"fetch_backoff_base"`
	StoreRateLimit   float64       `koanf:"store_rate_limit" validate:"gt=0"`
	StoreRateBurst   int           `koanf:"store_rate_burst" validate:"min=1"`
}

// Load reads configuration from configs/config.yaml and the environment
func Load() (*Config, error) {
	return LoadFromPath("configs/config.yaml")
}

// LoadFromPath layers defaults, the given yaml file, and FRAUD_-prefixed
// environment variables, in increasing precedence. Infrastructure knobs
// carry defaults; the engine section deliberately does not.
func LoadFromPath(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB:  0,
			TTL: 24 * time.Hour,
		},
		Orchestrator: OrchestratorConfig{
			Concurrency:      4,
			FetchMaxAttempts: 3,
			FetchBackoffBase: 100 * time.Millisecond,
			StoreRateLimit:   50,
			StoreRateBurst:   10,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// Config file is optional; the environment can carry everything
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, envPrefix)), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
