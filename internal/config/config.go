// Package config provides application configuration management.
// It loads settings from environment variables and provides defaults for
// server mode, handler deadlines, and rule file locations.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Slack Configuration
	SlackSigningSecret string // Shared secret for request signature verification
	SlackBotToken      string // Bot token for posting responses
	SlackBotUserID     string // Bot's own user ID, used to skip self-authored events

	// Handler Configuration
	RulesPath      string        // Path to the rule definitions YAML file
	ScriptsDir     string        // Directory containing script handlers
	PromptsDir     string        // Directory containing prompt files
	HandlerTimeout time.Duration // Per-invocation handler deadline
	OpenAIAPIKey   string        // API key for the prompt-agent handler
	OpenAIModel    string        // Model used by the prompt-agent handler
	FailureNotice  string        // Posted to the source channel when a handler fails (empty = silent)

	// Rate Limiting
	SenderRateTokens float64 // Per-sender burst capacity for handler dispatch (0 = disabled)
	SenderRateRefill float64 // Per-sender tokens refilled per second

	// Metrics Authentication
	MetricsUsername string // Username for /metrics endpoint Basic Auth (default: "prometheus")
	MetricsPassword string // Password for /metrics endpoint Basic Auth (empty = no auth)

	// Sentry Configuration
	SentryDSN         string  // Sentry DSN (empty = disabled)
	SentryEnvironment string  // Deployment environment tag
	SentrySampleRate  float64 // Error sampling rate (0.0-1.0)

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables
// It attempts to load .env file first, then reads from env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		// Slack Configuration
		SlackSigningSecret: getEnv("SLACK_SIGNING_SECRET", ""),
		SlackBotToken:      getEnv("SLACK_BOT_TOKEN", ""),
		SlackBotUserID:     getEnv("SLACK_BOT_USER_ID", ""),

		// Handler Configuration
		RulesPath:      getEnv("RULES_PATH", "rules.yaml"),
		ScriptsDir:     getEnv("SCRIPTS_DIR", "scripts"),
		PromptsDir:     getEnv("PROMPTS_DIR", "prompts"),
		HandlerTimeout: getDurationEnv("HANDLER_TIMEOUT", HandlerInvocation),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4.1"),
		FailureNotice:  getEnv("FAILURE_NOTICE", "Something went wrong while handling that request."),

		// Rate Limiting
		SenderRateTokens: getFloatEnv("SENDER_RATE_TOKENS", 6),
		SenderRateRefill: getFloatEnv("SENDER_RATE_REFILL", 0.2),

		// Metrics Authentication
		MetricsUsername: getEnv("METRICS_USERNAME", "prometheus"),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),

		// Sentry Configuration
		SentryDSN:         getEnv("SENTRY_DSN", ""),
		SentryEnvironment: getEnv("SENTRY_ENVIRONMENT", "production"),
		SentrySampleRate:  getFloatEnv("SENTRY_SAMPLE_RATE", 1.0),

		// Server Configuration
		Port:            getEnv("PORT", "5000"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", GracefulShutdown),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if c.SlackSigningSecret == "" {
		errs = append(errs, errors.New("SLACK_SIGNING_SECRET is required"))
	}
	if c.SlackBotToken == "" {
		errs = append(errs, errors.New("SLACK_BOT_TOKEN is required"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if c.RulesPath == "" {
		errs = append(errs, errors.New("RULES_PATH is required"))
	}
	if c.HandlerTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HANDLER_TIMEOUT must be positive, got %v", c.HandlerTimeout))
	}
	if c.SentrySampleRate < 0 || c.SentrySampleRate > 1 {
		errs = append(errs, fmt.Errorf("SENTRY_SAMPLE_RATE must be in [0,1], got %v", c.SentrySampleRate))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ScriptPath returns the full path to a script handler by name.
func (c *Config) ScriptPath(name string) string {
	return filepath.Join(c.ScriptsDir, name)
}

// PromptPath returns the full path to a prompt file by name.
func (c *Config) PromptPath(name string) string {
	return filepath.Join(c.PromptsDir, name)
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
