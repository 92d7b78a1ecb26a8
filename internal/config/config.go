package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Engine   EngineConfig   `yaml:"engine" mapstructure:"engine"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// EngineConfig selects and configures the scan backend.
type EngineConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CacheConfig configures the histogram cache.
type CacheConfig struct {
	Backend  string `yaml:"backend" mapstructure:"backend"`
	Path     string `yaml:"path" mapstructure:"path"`
	Recreate bool   `yaml:"recreate" mapstructure:"recreate"`
}

// AnalysisConfig holds analysis-wide defaults.
type AnalysisConfig struct {
	Luminosity       float64 `yaml:"luminosity" mapstructure:"luminosity"`
	DefaultSourceTag string  `yaml:"default_source_tag" mapstructure:"default_source_tag"`
	KeepResident     bool    `yaml:"keep_resident" mapstructure:"keep_resident"`
	SampleCatalog    string  `yaml:"sample_catalog" mapstructure:"sample_catalog"`
	ProcessCatalog   string  `yaml:"process_catalog" mapstructure:"process_catalog"`
}

// ServerConfig configures the query API server.
type ServerConfig struct {
	Port             int `yaml:"port" mapstructure:"port"`
	ReadTimeoutSecs  int `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs int `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
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
	v.SetEnvPrefix("ANALYSIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("engine.driver", "sqlite")
	v.SetDefault("cache.backend", "sqlite")
	v.SetDefault("cache.path", "histogram-cache.db")
	v.SetDefault("analysis.luminosity", 1.0)
	v.SetDefault("analysis.default_source_tag", "nominal")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_secs", 30)
	v.SetDefault("server.write_timeout_secs", 60)
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
