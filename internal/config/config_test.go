// internal/config/config_test.go
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresMongoURI(t *testing.T) {
	t.Setenv("MONGODB_URI", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGODB_URI")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("PORT", "")
	t.Setenv("MONGODB_DATABASE", "")
	t.Setenv("API_KEY", "")
	t.Setenv("ADDITIONAL_API_KEYS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "metering", cfg.Database.Database)
	assert.Empty(t, cfg.APIKeys.PrimaryKey)
	assert.Empty(t, cfg.APIKeys.AdditionalKeys)
	assert.Zero(t, cfg.Billing.ConversionRatePerMB)
}

func TestLoadAPIKeys(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("API_KEY", "primary-key")
	t.Setenv("ADDITIONAL_API_KEYS", "alpha, beta ,, gamma")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "primary-key", cfg.APIKeys.PrimaryKey)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, cfg.APIKeys.AdditionalKeys)
}

func TestLoadBillingOverrides(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("CONVERSION_RATE_PER_MB", "0.03")
	t.Setenv("TRANSCRIPTION_RATE_PER_MINUTE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.03, cfg.Billing.ConversionRatePerMB, 1e-9)
	assert.Zero(t, cfg.Billing.TranscriptionRatePerMinute)
}

func TestSplitKeyList(t *testing.T) {
	assert.Nil(t, splitKeyList(""))
	assert.Equal(t, []string{"one"}, splitKeyList("one"))
	assert.Equal(t, []string{"one", "two"}, splitKeyList(" one ,two, "))
}
