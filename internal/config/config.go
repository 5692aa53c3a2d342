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
	Here      HereConfig      `yaml:"here" mapstructure:"here"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Plot      PlotConfig      `yaml:"plot" mapstructure:"plot"`
	Rules     RulesConfig     `yaml:"rules" mapstructure:"rules"`
	Strategy  StrategyConfig  `yaml:"strategy" mapstructure:"strategy"`
	Neighbor  NeighborConfig  `yaml:"neighbor" mapstructure:"neighbor"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Sheet     SheetConfig     `yaml:"sheet" mapstructure:"sheet"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// HereConfig holds HERE Geocoding API settings.
type HereConfig struct {
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Country     string  `yaml:"country" mapstructure:"country"`
	Lang        string  `yaml:"lang" mapstructure:"lang"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`

	// BreakerThreshold consecutive transient failures open the circuit.
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// CacheConfig selects the geocode query cache.
type CacheConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"`
	Size     int    `yaml:"size" mapstructure:"size"`
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

// MatchConfig holds candidate selection thresholds and weights.
type MatchConfig struct {
	CitySimilarity      float64 `yaml:"city_similarity" mapstructure:"city_similarity"`
	StreetSimilarity    float64 `yaml:"street_similarity" mapstructure:"street_similarity"`
	ShortcutStreet      float64 `yaml:"shortcut_street" mapstructure:"shortcut_street"`
	NeighborhoodCutoff  float64 `yaml:"neighborhood_cutoff" mapstructure:"neighborhood_cutoff"`
	MinStreetLen        int     `yaml:"min_street_len" mapstructure:"min_street_len"`
	ScoreQuadra         int     `yaml:"score_quadra" mapstructure:"score_quadra"`
	ScoreStreet         int     `yaml:"score_street" mapstructure:"score_street"`
	PenaltyNeighborhood int     `yaml:"penalty_neighborhood" mapstructure:"penalty_neighborhood"`
	Algorithm           string  `yaml:"algorithm" mapstructure:"algorithm"`
}

// PlotConfig bounds plausible quadra/lote numbers.
type PlotConfig struct {
	Ceiling int `yaml:"ceiling" mapstructure:"ceiling"`
}

// RulesConfig points at an optional normalization rule file.
type RulesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// StrategyConfig configures query construction.
type StrategyConfig struct {
	Region string `yaml:"region" mapstructure:"region"`
}

// NeighborConfig configures the adjacent-lot probe.
type NeighborConfig struct {
	MaxOffset int `yaml:"max_offset" mapstructure:"max_offset"`
}

// BatchConfig configures batch resolution.
type BatchConfig struct {
	MaxConcurrentCalls int    `yaml:"max_concurrent_calls" mapstructure:"max_concurrent_calls"`
	MaxConcurrentRows  int    `yaml:"max_concurrent_rows" mapstructure:"max_concurrent_rows"`
	DefaultCity        string `yaml:"default_city" mapstructure:"default_city"`
}

// SheetConfig names the input workbook columns.
type SheetConfig struct {
	AddressColumn      string `yaml:"address_column" mapstructure:"address_column"`
	NeighborhoodColumn string `yaml:"neighborhood_column" mapstructure:"neighborhood_column"`
	CityColumn         string `yaml:"city_column" mapstructure:"city_column"`
	PostalCodeColumn   string `yaml:"postal_code_column" mapstructure:"postal_code_column"`
	SheetIndex         int    `yaml:"sheet_index" mapstructure:"sheet_index"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds settings for the address hint provider.
type AnthropicConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	MaxUploadMB int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOLOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("here.api_key", "")
	v.SetDefault("here.base_url", "https://geocode.search.hereapi.com/v1")
	v.SetDefault("here.country", "BRA")
	v.SetDefault("here.lang", "pt-BR")
	v.SetDefault("here.timeout_secs", 10)
	v.SetDefault("here.rate_limit", 20)
	v.SetDefault("here.max_retries", 2)
	v.SetDefault("here.breaker_threshold", 5)
	v.SetDefault("here.breaker_reset_secs", 30)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.size", 10000)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl_hours", 168)
	v.SetDefault("cache.prefix", "geolote:q:")
	v.SetDefault("match.city_similarity", 0.80)
	v.SetDefault("match.street_similarity", 0.80)
	v.SetDefault("match.shortcut_street", 0.83)
	v.SetDefault("match.neighborhood_cutoff", 0.40)
	v.SetDefault("match.min_street_len", 5)
	v.SetDefault("match.score_quadra", 100)
	v.SetDefault("match.score_street", 30)
	v.SetDefault("match.penalty_neighborhood", 30)
	v.SetDefault("match.algorithm", "token_set")
	v.SetDefault("plot.ceiling", 2000)
	v.SetDefault("rules.path", "")
	v.SetDefault("strategy.region", "Goiás")
	v.SetDefault("neighbor.max_offset", 5)
	v.SetDefault("batch.max_concurrent_calls", 10)
	v.SetDefault("batch.max_concurrent_rows", 64)
	v.SetDefault("batch.default_city", "Goiânia")
	v.SetDefault("sheet.address_column", "Destination Address")
	v.SetDefault("sheet.neighborhood_column", "Bairro")
	v.SetDefault("sheet.city_column", "City")
	v.SetDefault("sheet.postal_code_column", "Zipcode/Postal code")
	v.SetDefault("sheet.sheet_index", 0)
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("anthropic.enabled", false)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.timeout_secs", 8)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a command mode depends on. Mode is "serve" or
// "resolve"; offline resolution skips the HERE key check.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.MaxUploadMB <= 0 {
			errs = append(errs, "server.max_upload_mb must be > 0")
		}
		if c.Here.APIKey == "" {
			errs = append(errs, "here.api_key is required")
		}
	case "resolve":
		if c.Here.APIKey == "" {
			errs = append(errs, "here.api_key is required")
		}
	case "offline":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Batch.MaxConcurrentCalls < 1 || c.Batch.MaxConcurrentCalls > 100 {
		errs = append(errs, "batch.max_concurrent_calls must be between 1 and 100")
	}
	if c.Batch.MaxConcurrentRows < 1 {
		errs = append(errs, "batch.max_concurrent_rows must be >= 1")
	}
	if c.Neighbor.MaxOffset < 0 {
		errs = append(errs, "neighbor.max_offset must be >= 0")
	}
	if c.Plot.Ceiling <= 0 {
		errs = append(errs, "plot.ceiling must be > 0")
	}

	for name, v := range map[string]float64{
		"city_similarity":     c.Match.CitySimilarity,
		"street_similarity":   c.Match.StreetSimilarity,
		"shortcut_street":     c.Match.ShortcutStreet,
		"neighborhood_cutoff": c.Match.NeighborhoodCutoff,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("match.%s must be between 0 and 1", name))
		}
	}
	if c.Match.ScoreQuadra <= c.Match.ScoreStreet {
		errs = append(errs, "match.score_quadra must exceed match.score_street")
	}

	switch c.Cache.Driver {
	case "", "none", "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			errs = append(errs, "cache.redis_url is required for the redis driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.driver %q is not supported", c.Cache.Driver))
	}

	switch c.Store.Driver {
	case "", "none", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}

	if c.Anthropic.Enabled && c.Anthropic.Key == "" {
		errs = append(errs, "anthropic.key is required when anthropic.enabled is set")
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
