package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
)

func TestNewPresets(t *testing.T) {
	tests := []struct {
		name    string
		presets []Preset
		wantErr bool
	}{
		{name: "defaults", presets: []Preset{Sensitive, Standard}},
		{name: "max < 1", presets: []Preset{{Name: "zero", Max: 0, Window: time.Minute}}, wantErr: true},
		{name: "negative max", presets: []Preset{{Name: "neg", Max: -3, Window: time.Minute}}, wantErr: true},
		{name: "zero window", presets: []Preset{{Name: "nowin", Max: 3}}, wantErr: true},
		{name: "negative window", presets: []Preset{{Name: "negwin", Max: 3, Window: -time.Second}}, wantErr: true},
		{name: "no name", presets: []Preset{{Max: 3, Window: time.Minute}}, wantErr: true},
		{name: "duplicate", presets: []Preset{Sensitive, {Name: "Sensitive ", Max: 5, Window: time.Hour}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			presets, err := NewPresets(tt.presets...)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, core.IsConfigurationError(err), "got %T", err)
				assert.Nil(t, presets)
				return
			}
			require.NoError(t, err)
			assert.Len(t, presets, len(tt.presets))
		})
	}
}

func TestFromConfig(t *testing.T) {
	presets, err := FromConfig(core.RateLimitConfig{Presets: []core.RateLimitPreset{
		{Name: "sensitive", Max: 3, Window: 5 * time.Minute},
		{Name: "standard", Max: 20, Window: time.Minute},
	}})
	require.NoError(t, err)

	p, ok := presets.Get("SENSITIVE")
	require.True(t, ok)
	assert.Equal(t, Sensitive, p)
	assert.Equal(t, Standard, presets.MustGet("standard"))

	_, ok = presets.Get("lol")
	assert.False(t, ok)
	assert.Panics(t, func() { presets.MustGet("lol") })
}

func TestNewRejection(t *testing.T) {
	rj := NewRejection(Result{Allowed: false, RetryAfterSeconds: 290, Preset: "sensitive", Count: 4})
	assert.Equal(t, 429, rj.Status)
	assert.Equal(t, 290, rj.RetryAfter)
	assert.Equal(t, "290", rj.Header().Get(RetryAfterHeader))
	assert.Contains(t, rj.Message, "290 seconds")

	rj = NewRejection(Result{})
	assert.Equal(t, 1, rj.RetryAfter, "retry hint is never below 1 second")
	assert.Equal(t, "1", rj.Header().Get("Retry-After"))
}
