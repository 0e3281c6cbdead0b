// Package config has the configuration file for the app
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port     string
	Address  string
	Env      string
	LogLevel string
	LogDir   string

	// FormularyDir is the directory containing one JSON file per insurance plan
	FormularyDir string

	// Text-generation backend
	OpenAIAPIKey string
	OpenAIModel  string

	// Remote coverage agent
	ToolhouseURL    string
	ToolhouseAPIKey string

	// Per-call budgets. The resolver budget is deliberately shorter than
	// the normalizer budget: that path falls back to local formulary data.
	ResolverTimeout   time.Duration
	NormalizerTimeout time.Duration
	ResearchTimeout   time.Duration

	MaxRequestBody int64 // Maximum request body size in bytes
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               getEnvWithDefault("ENV", "dev"),
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		FormularyDir:      getEnvWithDefault("FORMULARY_DIR", "data/plans"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       getEnvWithDefault("OPENAI_MODEL", "gpt-4o-mini"),
		ToolhouseURL:      os.Getenv("TOOLHOUSE_URL"),
		ToolhouseAPIKey:   os.Getenv("TOOLHOUSE_API_KEY"),
		ResolverTimeout:   getMillisEnvWithDefault("RESOLVER_TIMEOUT_MS", 5000),
		NormalizerTimeout: getMillisEnvWithDefault("NORMALIZER_TIMEOUT_MS", 30000),
		ResearchTimeout:   getMillisEnvWithDefault("RESEARCH_TIMEOUT_MS", 20000),
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576), // 1MB default
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateEnv(cfg.Env); err != nil {
		return fmt.Errorf("invalid ENV: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if cfg.FormularyDir == "" {
		return fmt.Errorf("FORMULARY_DIR cannot be empty")
	}

	if err := validateTimeout(cfg.ResolverTimeout, "RESOLVER_TIMEOUT_MS"); err != nil {
		return err
	}
	if err := validateTimeout(cfg.NormalizerTimeout, "NORMALIZER_TIMEOUT_MS"); err != nil {
		return err
	}
	if err := validateTimeout(cfg.ResearchTimeout, "RESEARCH_TIMEOUT_MS"); err != nil {
		return err
	}

	if cfg.ResolverTimeout >= cfg.NormalizerTimeout {
		return fmt.Errorf("RESOLVER_TIMEOUT_MS must be shorter than NORMALIZER_TIMEOUT_MS")
	}

	if cfg.MaxRequestBody < 1024 || cfg.MaxRequestBody > 100*1024*1024 {
		return fmt.Errorf("MAX_REQUEST_BODY must be between 1KB and 100MB")
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "localhost" {
		return nil
	}

	if ip := net.ParseIP(address); ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or localhost")
	}

	return nil
}

// validateEnv validates the ENV environment variable
func validateEnv(env string) error {
	switch env {
	case "dev", "staging", "production":
		return nil
	}
	return fmt.Errorf("ENV must be one of: dev, staging, production")
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(level string) error {
	switch level {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
}

func validateTimeout(d time.Duration, name string) error {
	if d < 100*time.Millisecond || d > 5*time.Minute {
		return fmt.Errorf("invalid %s: must be between 100ms and 5m", name)
	}
	return nil
}

// getEnvWithDefault returns the environment variable value or a default
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt64EnvWithDefault returns the environment variable as int64 or a default
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getMillisEnvWithDefault returns the environment variable interpreted as
// milliseconds, or a default
func getMillisEnvWithDefault(key string, defaultMillis int64) time.Duration {
	return time.Duration(getInt64EnvWithDefault(key, defaultMillis)) * time.Millisecond
}
