package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env         string        `mapstructure:"ENV"`
	APIBaseURL  string        `mapstructure:"API_BASE_URL"`
	TokenPath   string        `mapstructure:"TOKEN_PATH"`
	Language    string        `mapstructure:"LANGUAGE"`
	FontDir     string        `mapstructure:"FONT_DIR"`
	HTTPTimeout time.Duration `mapstructure:"HTTP_TIMEOUT"`
	DemoAddr    string        `mapstructure:"DEMO_ADDR"`
	DemoSecret  string        `mapstructure:"DEMO_SECRET"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("API_BASE_URL", "http://localhost:8000")
	v.SetDefault("LANGUAGE", "en")
	v.SetDefault("HTTP_TIMEOUT", "30s")
	v.SetDefault("DEMO_ADDR", ":8000")
	v.SetDefault("DEMO_SECRET", "change-me-in-production")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("ENV")
	v.BindEnv("API_BASE_URL")
	v.BindEnv("TOKEN_PATH")
	v.BindEnv("LANGUAGE")
	v.BindEnv("FONT_DIR")
	v.BindEnv("HTTP_TIMEOUT")
	v.BindEnv("DEMO_ADDR")
	v.BindEnv("DEMO_SECRET")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.TokenPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		cfg.TokenPath = filepath.Join(dir, "companion", "token")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run with. The demo
// server refuses to start outside development with the default signing
// secret.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if !c.IsDev() && c.DemoSecret == "change-me-in-production" {
		return fmt.Errorf("DEMO_SECRET must be set when ENV is not development")
	}
	return nil
}
