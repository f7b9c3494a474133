package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_env(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("TEST_SERVER_TRUSTPROXY", "true")
	t.Setenv("TEST_RATELIMIT_SWEEPINTERVAL", "30s")
	t.Setenv("TEST_RATELIMIT_SENSITIVE_MAX", "5")

	conf := NewConfig()
	assert.Equal(t, "TEST", conf.Env)
	assert.True(t, conf.Server.TrustProxy)
	assert.Equal(t, 30*time.Second, conf.RateLimit.SweepInterval)
	assert.Equal(t, RateLimitPreset{Name: "sensitive", Max: 5, Window: 5 * time.Minute}, conf.RateLimit.Presets[0])
	assert.Equal(t, RateLimitPreset{Name: "standard", Max: 20, Window: time.Minute}, conf.RateLimit.Presets[1])
}

func TestNewConfig_defaults(t *testing.T) {
	t.Setenv("ENV", "test")

	conf := NewConfig()
	assert.False(t, conf.Server.TrustProxy)
	assert.True(t, conf.TestMode)
	assert.Equal(t, "memory", conf.RateLimit.Backend)
}
