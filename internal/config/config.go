// Package config loads runtime configuration from an optional YAML file and
// the environment. Environment variables use the DECKHAND_ prefix with
// underscores, e.g. DECKHAND_BACKEND_URL.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// BackendURL is the base URL of the stats backend for pull and
	// mutation calls. The push URL is derived from it unless PushURL is
	// set explicitly.
	BackendURL string `mapstructure:"backend_url"`
	PushURL    string `mapstructure:"push_url"`

	PullInterval  time.Duration `mapstructure:"pull_interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxReconnects int           `mapstructure:"max_reconnects"`

	// Listen is the address the local view API binds to.
	Listen string `mapstructure:"listen"`
	// DataDir holds the preferences database.
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
}

func Default() *Config {
	return &Config{
		BackendURL:    "http://localhost:8080",
		PullInterval:  10 * time.Second,
		Timeout:       5 * time.Second,
		MaxReconnects: 10,
		Listen:        "127.0.0.1:7380",
		DataDir:       "./data",
		LogLevel:      "info",
	}
}

// Load reads configuration from path (optional; empty means env and
// defaults only) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DECKHAND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	v.SetDefault("backend_url", cfg.BackendURL)
	v.SetDefault("push_url", cfg.PushURL)
	v.SetDefault("pull_interval", cfg.PullInterval)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("max_reconnects", cfg.MaxReconnects)
	v.SetDefault("listen", cfg.Listen)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("log_level", cfg.LogLevel)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("invalid config format: %w", err)
	}
	if cfg.BackendURL == "" {
		return nil, fmt.Errorf("backend_url is required")
	}
	if cfg.PullInterval <= 0 {
		cfg.PullInterval = Default().PullInterval
	}
	return cfg, nil
}
