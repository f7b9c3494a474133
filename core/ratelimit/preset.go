// Package ratelimit throttles callers with fixed-window counters keyed by (client identity, preset name).
//
// A rejected call is a normal Result, never an error. Presets are validated once at start-up;
// an invalid preset is a configuration error.
package ratelimit

import (
	"fmt"
	"strings"
	"time"

	"github.com/kat-co/vala"

	"github.com/trezcool/academia/core"
)

// Preset is a named budget: at most Max calls per Window.
type Preset struct {
	Name   string
	Max    int
	Window time.Duration
}

var (
	// Sensitive guards credential-recovery endpoints (forgot-password, resend-verification...).
	Sensitive = Preset{Name: "sensitive", Max: 3, Window: 5 * time.Minute}

	// Standard guards general API traffic.
	Standard = Preset{Name: "standard", Max: 20, Window: time.Minute}
)

func (p Preset) Validate() error {
	return vala.BeginValidation().Validate(
		nonEmpty(p.Name, "name"),
		atLeast(p.Max, 1, "max"),
		positive(p.Window, "window"),
	).Check()
}

func (p Preset) String() string {
	return fmt.Sprintf("%s(%d/%s)", p.Name, p.Max, p.Window)
}

// Presets is the immutable set of presets known to the process, by name.
type Presets map[string]Preset

// NewPresets validates the given presets. Any invalid or duplicate preset is a core.ConfigurationError.
func NewPresets(presets ...Preset) (Presets, error) {
	set := make(Presets, len(presets))
	for _, p := range presets {
		p.Name = core.CleanString(p.Name, true /* lower */)
		if err := p.Validate(); err != nil {
			return nil, core.NewConfigurationError("ratelimit preset "+p.String(), err)
		}
		if _, dup := set[p.Name]; dup {
			return nil, core.NewConfigurationError("ratelimit preset "+p.Name, fmt.Errorf("defined more than once"))
		}
		set[p.Name] = p
	}
	return set, nil
}

// FromConfig builds the presets declared in the configuration.
func FromConfig(conf core.RateLimitConfig) (Presets, error) {
	presets := make([]Preset, 0, len(conf.Presets))
	for _, p := range conf.Presets {
		presets = append(presets, Preset{Name: p.Name, Max: p.Max, Window: p.Window})
	}
	return NewPresets(presets...)
}

// Get returns the named preset. The boolean is false for unknown names.
func (ps Presets) Get(name string) (Preset, bool) {
	p, ok := ps[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// MustGet is Get for names the application itself declares; it panics on unknown names.
func (ps Presets) MustGet(name string) Preset {
	p, ok := ps.Get(name)
	if !ok {
		panic("ratelimit: unknown preset " + name)
	}
	return p
}

// Validation checkers

func nonEmpty(s, paramName string) vala.Checker {
	return func() (bool, string) {
		return strings.TrimSpace(s) != "", fmt.Sprintf("parameter %s must not be empty", paramName)
	}
}

func atLeast(n, min int, paramName string) vala.Checker {
	return func() (bool, string) {
		return n >= min, fmt.Sprintf("parameter %s must be >= %d (got %d)", paramName, min, n)
	}
}

func positive(d time.Duration, paramName string) vala.Checker {
	return func() (bool, string) {
		return d > 0, fmt.Sprintf("parameter %s must be > 0 (got %s)", paramName, d)
	}
}
