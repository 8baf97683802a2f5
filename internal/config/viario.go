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
	IBGE      IBGEConfig      `yaml:"ibge" mapstructure:"ibge"`
	Nominatim NominatimConfig `yaml:"nominatim" mapstructure:"nominatim"`
	Overpass  OverpassConfig  `yaml:"overpass" mapstructure:"overpass"`
	Malha     MalhaConfig     `yaml:"malha" mapstructure:"malha"`
	Boundary  BoundaryConfig  `yaml:"boundary" mapstructure:"boundary"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// IBGEConfig configures the IBGE localidades registry client.
type IBGEConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	DTBPath     string `yaml:"dtb_path" mapstructure:"dtb_path"`
}

// NominatimConfig configures the Nominatim geocoding client.
type NominatimConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	EmailContact string  `yaml:"email_contact" mapstructure:"email_contact"`
}

// OverpassConfig configures the Overpass API client.
type OverpassConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	QueryTimeout int     `yaml:"query_timeout_secs" mapstructure:"query_timeout_secs"`
}

// MalhaConfig configures the IBGE malha municipal shapefile source.
type MalhaConfig struct {
	FTPURL      string `yaml:"ftp_url" mapstructure:"ftp_url"`
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// BoundaryConfig selects how municipal boundaries are fetched.
type BoundaryConfig struct {
	Source string `yaml:"source" mapstructure:"source"` // nominatim, malha, auto
}

// StoreConfig configures the run-history database.
type StoreConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	Disabled bool   `yaml:"disabled" mapstructure:"disabled"`
}

// ServerConfig configures the job server.
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
	v.SetConfigName("viario")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/viario")

	// Environment
	v.SetEnvPrefix("VIARIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ibge.base_url", "https://servicodados.ibge.gov.br/api/v1")
	v.SetDefault("ibge.timeout_secs", 30)
	v.SetDefault("nominatim.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("nominatim.user_agent", "viario-cli/1.0")
	v.SetDefault("nominatim.rate_per_sec", 1)
	v.SetDefault("nominatim.timeout_secs", 60)
	v.SetDefault("overpass.base_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.rate_per_sec", 0.5)
	v.SetDefault("overpass.query_timeout_secs", 180)
	v.SetDefault("malha.ftp_url", "ftp://geoftp.ibge.gov.br/organizacao_do_territorio/malhas_territoriais/malhas_municipais")
	v.SetDefault("malha.timeout_secs", 60)
	v.SetDefault("boundary.source", "nominatim")
	v.SetDefault("store.path", "viario_runs.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

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
