// Package config loads landview configuration using Viper: a TOML file
// (default ~/.landview/config.toml) with LANDVIEW_-prefixed environment
// variable overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kestrelgeo/landview/errors"
)

// Config is the full landview configuration tree.
type Config struct {
	Backend   BackendConfig   `mapstructure:"backend"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Detection DetectionConfig `mapstructure:"detection"`
}

// BackendConfig describes the detection backend the API client talks to.
type BackendConfig struct {
	// BaseURL of the detection backend, e.g. "https://detect.example.com"
	BaseURL string `mapstructure:"base_url"`
	// Timeout per request. Detection runs are compute-heavy; keep this
	// generous (minutes, not seconds).
	Timeout time.Duration `mapstructure:"timeout"`
	// AccessToken / RefreshToken for bearer auth. The access token is
	// refreshed transparently on 401.
	AccessToken  string `mapstructure:"access_token"`
	RefreshToken string `mapstructure:"refresh_token"`
}

// ServerConfig describes the websocket bridge the browser UI connects to.
type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	MaxClients int    `mapstructure:"max_clients"`
	// ClickRatePerSec caps incoming click events per client.
	ClickRatePerSec float64 `mapstructure:"click_rate_per_sec"`
}

// StorageConfig describes local persistence.
type StorageConfig struct {
	// Path to the sqlite job history database.
	Path string `mapstructure:"path"`
}

// DetectionConfig carries defaults for detection runs.
type DetectionConfig struct {
	StartYear int `mapstructure:"start_year"`
}

var globalConfig *Config

// Load reads configuration from the default locations, caching the result.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := newViper()
	// Missing config file is fine: defaults plus env are a working setup.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	globalConfig = &cfg
	return globalConfig, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", path)
	}
	return &cfg, nil
}

// Reset clears the cached configuration (useful for testing).
func Reset() {
	globalConfig = nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix("LANDVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".landview"))
	}
	v.AddConfigPath(".")

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", "http://localhost:5000")
	v.SetDefault("backend.timeout", 10*time.Minute)
	v.SetDefault("server.addr", ":8790")
	v.SetDefault("server.max_clients", 50)
	v.SetDefault("server.click_rate_per_sec", 5.0)
	v.SetDefault("detection.start_year", 2010)

	defaultDB := "landview.db"
	if home, err := os.UserHomeDir(); err == nil {
		defaultDB = filepath.Join(home, ".landview", "landview.db")
	}
	v.SetDefault("storage.path", defaultDB)
}
