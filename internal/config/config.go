// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel      string        `mapstructure:"LOG_LEVEL"`
	DBURL         string        `mapstructure:"DB_URL"`
	GithubToken   string        `mapstructure:"GITHUB_TOKEN"`
	GithubBaseURL string        `mapstructure:"GITHUB_BASE_URL"`
	MaxRepos      int           `mapstructure:"MAX_REPOS"`
	BatchSize     int           `mapstructure:"BATCH_SIZE"`
	CrawlInterval time.Duration `mapstructure:"CRAWL_INTERVAL"`
	HTTPAddr      string        `mapstructure:"HTTP_ADDR"`
	ExportPath    string        `mapstructure:"EXPORT_PATH"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values. Empty defaults register the required keys so
	// AutomaticEnv picks them up during Unmarshal.
	viper.SetDefault("DB_URL", "")
	viper.SetDefault("GITHUB_TOKEN", "")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REPOS", 100000)
	viper.SetDefault("BATCH_SIZE", 100)
	viper.SetDefault("CRAWL_INTERVAL", "1h")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("EXPORT_PATH", "")
	viper.SetDefault("GITHUB_BASE_URL", "")

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.GithubToken == "" {
		return nil, errors.New("GITHUB_TOKEN is a required configuration field")
	}
	if cfg.MaxRepos <= 0 {
		return nil, fmt.Errorf("MAX_REPOS must be positive, got %d", cfg.MaxRepos)
	}
	// The search API caps page size at 100.
	if cfg.BatchSize < 1 || cfg.BatchSize > 100 {
		return nil, fmt.Errorf("BATCH_SIZE must be between 1 and 100, got %d", cfg.BatchSize)
	}
	if cfg.CrawlInterval < time.Minute {
		return nil, fmt.Errorf("CRAWL_INTERVAL must be at least 1m, got %s", cfg.CrawlInterval)
	}

	return &cfg, nil
}
