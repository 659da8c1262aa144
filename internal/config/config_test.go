package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cloak-engine/internal/engine"
)

func TestLoad_Defaults(t *testing.T) {
	// No configs/ directory here, so everything comes from validate().
	cfg := Load()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, "cloak_config_change", cfg.Listener.Channel)
	assert.Equal(t, "https://www.google.com/search?q=safe+fallback", cfg.Engine.FallbackURL)
	assert.Equal(t, 0.5, cfg.Engine.RiskThreshold)
	assert.Equal(t, engine.DefaultWeights(), cfg.Engine.Weights)
	assert.Equal(t, "https://challenges.cloudflare.com/turnstile/v0/siteverify", cfg.Verifier.URL)
	assert.Equal(t, 24, cfg.Auth.TokenTTLHours)
}

func TestValidate_Weights(t *testing.T) {
	t.Run("absent block falls back to defaults", func(t *testing.T) {
		var cfg Config
		validate(&cfg)
		assert.Equal(t, engine.DefaultWeights(), cfg.Engine.Weights)
	})

	t.Run("configured weights are kept as-is", func(t *testing.T) {
		var cfg Config
		cfg.Engine.Weights.Verifier = 0.9
		validate(&cfg)
		assert.Equal(t, 0.9, cfg.Engine.Weights.Verifier)
		// A partially configured block is an operator choice, not a gap
		// to paper over with defaults.
		assert.Equal(t, 0.0, cfg.Engine.Weights.Model)
	})
}

func TestDurationHelpers(t *testing.T) {
	var cfg Config
	validate(&cfg)

	assert.Equal(t, "5s", cfg.Backoff().String())
	assert.Equal(t, "3s", cfg.VerifierTimeout().String())
	assert.Equal(t, "1h0m0s", cfg.FingerprintTTL().String())
	assert.Equal(t, "30s", cfg.ConfigCacheTTL().String())
}
