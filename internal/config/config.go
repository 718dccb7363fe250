package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Text generation providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config holds all application configuration.
type Config struct {
	// Database
	DatabasePath string

	// Text generation
	TextProvider   string // "anthropic" or "openai" (default: anthropic)
	TextAPIKey     string
	TextAPIKeyFile string
	TextModel      string // Provider default when empty
	TextBaseURL    string
	MaxTokens      int

	// Image generation
	ImageAPIKey     string
	ImageAPIKeyFile string
	ImageModel      string
	ImageBaseURL    string

	// Pacing for both services, 0 disables it
	RequestsPerMinute int

	// Output
	OutputDir     string
	FailurePolicy string
	PromptsPath   string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables.
// It automatically loads .env file if present.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath:    getEnv("DATABASE_PATH", "data/inkbloom.db"),
		TextProvider:    strings.ToLower(getEnv("TEXT_PROVIDER", ProviderAnthropic)),
		TextAPIKey:      getEnv("TEXT_API_KEY", ""),
		TextAPIKeyFile:  getEnv("TEXT_API_KEY_FILE", "secrets/text_api_key"),
		TextModel:       getEnv("TEXT_MODEL", ""),
		TextBaseURL:     getEnv("TEXT_BASE_URL", ""),
		ImageAPIKey:     getEnv("IMAGE_API_KEY", ""),
		ImageAPIKeyFile: getEnv("IMAGE_API_KEY_FILE", "secrets/image_api_key"),
		ImageModel:      getEnv("IMAGE_MODEL", "dall-e-3"),
		ImageBaseURL:    getEnv("IMAGE_BASE_URL", ""),
		OutputDir:       getEnv("OUTPUT_DIR", "illustrations"),
		FailurePolicy:   getEnv("ON_FAILURE", "abort"),
		PromptsPath:     getEnv("PROMPTS_FILE", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.TextAPIKey == "" {
		if cfg.TextAPIKey, err = readSecret(cfg.TextAPIKeyFile); err != nil {
			return nil, fmt.Errorf("invalid TEXT_API_KEY_FILE: %w", err)
		}
	}
	if cfg.ImageAPIKey == "" {
		if cfg.ImageAPIKey, err = readSecret(cfg.ImageAPIKeyFile); err != nil {
			return nil, fmt.Errorf("invalid IMAGE_API_KEY_FILE: %w", err)
		}
	}

	// Parse integers
	cfg.MaxTokens, err = strconv.Atoi(getEnv("MAX_TOKENS", "1024"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_TOKENS: %w", err)
	}

	cfg.RequestsPerMinute, err = strconv.Atoi(getEnv("REQUESTS_PER_MINUTE", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUESTS_PER_MINUTE: %w", err)
	}

	return cfg, nil
}

// SlogLevel parses LogLevel (debug, info, warn or error).
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL: %s", c.LogLevel)
	}
	return level, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	return nil
}

// ValidateForIllustration checks configuration needed to illustrate a book.
func (c *Config) ValidateForIllustration() error {
	if err := c.Validate(); err != nil {
		return err
	}
	switch c.TextProvider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("invalid TEXT_PROVIDER: %s (must be 'anthropic' or 'openai')", c.TextProvider)
	}
	if c.TextAPIKey == "" {
		return fmt.Errorf("TEXT_API_KEY or TEXT_API_KEY_FILE is required for illustration")
	}
	if c.ImageAPIKey == "" {
		return fmt.Errorf("IMAGE_API_KEY or IMAGE_API_KEY_FILE is required for illustration")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("MAX_TOKENS must be positive")
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("REQUESTS_PER_MINUTE must not be negative")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// readSecret returns the trimmed contents of path. A missing file yields an
// empty key so validation can report which variable is needed.
func readSecret(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
