// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	APIKeys  APIKeyConfig
	Billing  BillingConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	URI      string
	Database string
}

// APIKeyConfig holds the keys the gate accepts. Loaded once at startup and
// injected into the middleware; nothing reads the environment per request.
type APIKeyConfig struct {
	PrimaryKey     string
	AdditionalKeys []string
}

// BillingConfig carries optional rate overrides for the cost policy.
// A zero value means "keep the built-in default rate".
type BillingConfig struct {
	ConversionRatePerMB        float64
	TranscriptionRatePerMinute float64
}

func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
			Host: getEnvOrDefault("HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URI:      os.Getenv("MONGODB_URI"),
			Database: getEnvOrDefault("MONGODB_DATABASE", "metering"),
		},
		APIKeys: APIKeyConfig{
			PrimaryKey:     os.Getenv("API_KEY"),
			AdditionalKeys: splitKeyList(os.Getenv("ADDITIONAL_API_KEYS")),
		},
		Billing: BillingConfig{
			ConversionRatePerMB:        getEnvAsFloat("CONVERSION_RATE_PER_MB", 0),
			TranscriptionRatePerMinute: getEnvAsFloat("TRANSCRIPTION_RATE_PER_MINUTE", 0),
		},
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.Database.URI == "" {
		return fmt.Errorf("MONGODB_URI is required")
	}
	return nil
}

// splitKeyList parses a comma-separated key list, dropping empty entries.
func splitKeyList(raw string) []string {
	if raw == "" {
		return nil
	}
	var keys []string
	for _, part := range strings.Split(raw, ",") {
		if key := strings.TrimSpace(part); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
