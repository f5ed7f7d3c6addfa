package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Engine   EngineConfig   `yaml:"engine" mapstructure:"engine"`
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Notion   NotionConfig   `yaml:"notion" mapstructure:"notion"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	TimeoutSecs    int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FlagAdjustment is the percentage-point shift a practice flag applies to a
// firm's upfront and backend rates.
type FlagAdjustment struct {
	Upfront float64 `yaml:"upfront" mapstructure:"upfront"`
	Backend float64 `yaml:"backend" mapstructure:"backend"`
}

// EngineConfig holds the projection coefficients. Values other than the
// fee-based thresholds and shifts are provisional and may be overridden per
// firm through registry parameters.
type EngineConfig struct {
	FeeBasedHighThreshold float64 `yaml:"fee_based_high_threshold" mapstructure:"fee_based_high_threshold"`
	FeeBasedLowThreshold  float64 `yaml:"fee_based_low_threshold" mapstructure:"fee_based_low_threshold"`
	FeeBasedHighUpfront   float64 `yaml:"fee_based_high_upfront" mapstructure:"fee_based_high_upfront"`
	FeeBasedHighBackend   float64 `yaml:"fee_based_high_backend" mapstructure:"fee_based_high_backend"`
	FeeBasedLowUpfront    float64 `yaml:"fee_based_low_upfront" mapstructure:"fee_based_low_upfront"`
	FeeBasedLowBackend    float64 `yaml:"fee_based_low_backend" mapstructure:"fee_based_low_backend"`

	// MaxAdjustment caps the combined shift in percentage points.
	MaxAdjustment float64 `yaml:"max_adjustment" mapstructure:"max_adjustment"`

	// FlagAdjustments is keyed by lower-cased flag name (e.g. "banking").
	FlagAdjustments map[string]FlagAdjustment `yaml:"flag_adjustments" mapstructure:"flag_adjustments"`

	BandPosition         float64 `yaml:"band_position" mapstructure:"band_position"`
	RetentionPivot       float64 `yaml:"retention_pivot" mapstructure:"retention_pivot"`
	RetentionSensitivity float64 `yaml:"retention_sensitivity" mapstructure:"retention_sensitivity"`

	DefaultDealLength    int     `yaml:"default_deal_length" mapstructure:"default_deal_length"`
	MaxDealLength        int     `yaml:"max_deal_length" mapstructure:"max_deal_length"`
	DefaultGridPayout    float64 `yaml:"default_grid_payout" mapstructure:"default_grid_payout"`
	DefaultCurrentPayout float64 `yaml:"default_current_payout" mapstructure:"default_current_payout"`
	DefaultGrowthRate    float64 `yaml:"default_growth_rate" mapstructure:"default_growth_rate"`
	DefaultRetention     float64 `yaml:"default_retention" mapstructure:"default_retention"`

	BackendGrowthWeight  float64 `yaml:"backend_growth_weight" mapstructure:"backend_growth_weight"`
	BackendAssetsWeight  float64 `yaml:"backend_assets_weight" mapstructure:"backend_assets_weight"`
	BackendServiceWeight float64 `yaml:"backend_service_weight" mapstructure:"backend_service_weight"`
}

// RegistryConfig configures how the firm deal registry is read.
type RegistryConfig struct {
	// Source is "store", "file" or "notion".
	Source           string `yaml:"source" mapstructure:"source"`
	FixturePath      string `yaml:"fixture_path" mapstructure:"fixture_path"`
	RetryAttempts    int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs   int    `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	RetryMaxMs       int    `yaml:"retry_max_ms" mapstructure:"retry_max_ms"`
	CircuitThreshold int    `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
	CircuitResetSecs int    `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// NotionConfig holds Notion API credentials and the CMS database IDs.
type NotionConfig struct {
	Token        string  `yaml:"token" mapstructure:"token"`
	DealsDB      string  `yaml:"deals_db" mapstructure:"deals_db"`
	ParamsDB     string  `yaml:"params_db" mapstructure:"params_db"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FAAXIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "faaxis.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.timeout_secs", 15)
	v.SetDefault("batch.max_concurrent", 8)
	v.SetDefault("registry.source", "store")
	v.SetDefault("registry.retry_attempts", 3)
	v.SetDefault("registry.retry_backoff_ms", 200)
	v.SetDefault("registry.retry_max_ms", 2000)
	v.SetDefault("registry.circuit_threshold", 5)
	v.SetDefault("registry.circuit_reset_secs", 30)
	v.SetDefault("notion.rate_limit_rps", 3.0)

	v.SetDefault("engine.fee_based_high_threshold", 85.0)
	v.SetDefault("engine.fee_based_low_threshold", 65.0)
	v.SetDefault("engine.fee_based_high_upfront", 5.0)
	v.SetDefault("engine.fee_based_high_backend", 10.0)
	v.SetDefault("engine.fee_based_low_upfront", -5.0)
	v.SetDefault("engine.fee_based_low_backend", -5.0)
	v.SetDefault("engine.max_adjustment", 10.0)
	v.SetDefault("engine.band_position", 0.5)
	v.SetDefault("engine.retention_pivot", 90.0)
	v.SetDefault("engine.retention_sensitivity", 0.025)
	v.SetDefault("engine.default_deal_length", 10)
	v.SetDefault("engine.max_deal_length", 15)
	v.SetDefault("engine.default_grid_payout", 45.0)
	v.SetDefault("engine.default_current_payout", 40.0)
	v.SetDefault("engine.default_growth_rate", 5.0)
	v.SetDefault("engine.default_retention", 90.0)
	v.SetDefault("engine.backend_growth_weight", 40.0)
	v.SetDefault("engine.backend_assets_weight", 35.0)
	v.SetDefault("engine.backend_service_weight", 25.0)

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
