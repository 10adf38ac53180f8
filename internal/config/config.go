package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Pricing PricingConfig `yaml:"pricing" mapstructure:"pricing"`
	Verify  VerifyConfig  `yaml:"verify" mapstructure:"verify"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// PricingConfig holds pricing service API settings.
type PricingConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey            string  `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// VerifyConfig holds the default knobs for a verification run; flags
// override them per invocation.
type VerifyConfig struct {
	Workers                 int      `yaml:"workers" mapstructure:"workers"`
	DelaySecs               float64  `yaml:"delay_secs" mapstructure:"delay_secs"`
	OutlierThresholdPct     float64  `yaml:"outlier_threshold_pct" mapstructure:"outlier_threshold_pct"`
	IgnoreCheaperThanMarket bool     `yaml:"ignore_cheaper_than_market" mapstructure:"ignore_cheaper_than_market"`
	ExcludedPartTypes       []string `yaml:"excluded_part_types" mapstructure:"excluded_part_types"`
}

// Delay returns the inter-request delay as a duration.
func (c VerifyConfig) Delay() time.Duration {
	return time.Duration(c.DelaySecs * float64(time.Second))
}

// StoreConfig configures the run-history database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the serve mode.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("DESGUAPRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("pricing.base_url", "https://api.desguapro.com")
	v.SetDefault("pricing.api_key", "")
	v.SetDefault("pricing.timeout_secs", 30)
	v.SetDefault("pricing.requests_per_second", 0)
	v.SetDefault("verify.workers", 4)
	v.SetDefault("verify.delay_secs", 0.5)
	v.SetDefault("verify.outlier_threshold_pct", 25)
	v.SetDefault("verify.ignore_cheaper_than_market", false)
	v.SetDefault("store.path", "desguapro.db")
	v.SetDefault("server.port", 8080)
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
