package hiermem

import (
	"fmt"
	"sync"

	"github.com/Hirogarden/AuraNexus/llmapi"
)

func ptr[T any](v T) *T { return &v }

// builtinPresets holds the five named defaults from the sampling-preset
// table. Registered once at package init and never mutated afterward.
var builtinPresets = map[string]llmapi.SamplingParams{
	"chat": {
		Temperature:  ptr(0.7),
		TopP:         ptr(0.95),
		TopK:         ptr(40),
		MinP:         ptr(0.05),
		DRY:          ptr(0.7),
		FrequencyPen: ptr(0.2),
		PresencePen:  ptr(0.1),
	},
	"storytelling": {
		Temperature: ptr(0.9),
		TopP:        ptr(0.95),
		TopK:        ptr(50),
		MinP:        ptr(0.05),
		DRY:         ptr(0.8),
		XTC:         ptr(0.1),
		DynaTemp:    ptr(0.15),
	},
	"creative": {
		Temperature: ptr(1.0),
		TopP:        ptr(0.95),
		DRY:         ptr(0.9),
		XTC:         ptr(0.15),
		DynaTemp:    ptr(0.2),
	},
	"assistant": {
		Temperature:  ptr(0.3),
		TopP:         ptr(0.9),
		TopK:         ptr(40),
		MinP:         ptr(0.1),
		DRY:          ptr(0.0),
		FrequencyPen: ptr(0.1),
	},
	"factual": {
		Temperature: ptr(0.2),
		TopP:        ptr(0.85),
		TopK:        ptr(30),
		MinP:        ptr(0.15),
		DRY:         ptr(0.0),
	},
}

// SamplingRegistry is a read-mostly map from preset name to generation
// parameters. Presets are immutable once registered; Resolve layers
// per-call overrides on top of a named preset without mutating the
// registry entry.
type SamplingRegistry struct {
	mu      sync.RWMutex
	presets map[string]llmapi.SamplingParams
}

// NewSamplingRegistry returns a registry pre-populated with the five
// built-in presets (chat, storytelling, creative, assistant, factual).
func NewSamplingRegistry() *SamplingRegistry {
	presets := make(map[string]llmapi.SamplingParams, len(builtinPresets))
	for name, params := range builtinPresets {
		presets[name] = params
	}
	return &SamplingRegistry{presets: presets}
}

// Register adds a new named preset. Fails with ErrAlreadyExists if name is
// already registered, since presets are immutable once set.
func (r *SamplingRegistry) Register(name string, params llmapi.SamplingParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.presets[name]; exists {
		return fmt.Errorf("%w: sampling preset %q", ErrAlreadyExists, name)
	}
	r.presets[name] = params
	return nil
}

// Get returns the named preset, or ErrNotFound.
func (r *SamplingRegistry) Get(name string) (llmapi.SamplingParams, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	params, ok := r.presets[name]
	if !ok {
		return llmapi.SamplingParams{}, fmt.Errorf("%w: sampling preset %q", ErrNotFound, name)
	}
	return params, nil
}

// Resolve returns the named preset with overrides applied field-by-field:
// any non-nil field in overrides replaces the preset's value.
func (r *SamplingRegistry) Resolve(name string, overrides llmapi.SamplingParams) (llmapi.SamplingParams, error) {
	base, err := r.Get(name)
	if err != nil {
		return llmapi.SamplingParams{}, err
	}
	if overrides.Temperature != nil {
		base.Temperature = overrides.Temperature
	}
	if overrides.TopP != nil {
		base.TopP = overrides.TopP
	}
	if overrides.TopK != nil {
		base.TopK = overrides.TopK
	}
	if overrides.MinP != nil {
		base.MinP = overrides.MinP
	}
	if overrides.DRY != nil {
		base.DRY = overrides.DRY
	}
	if overrides.FrequencyPen != nil {
		base.FrequencyPen = overrides.FrequencyPen
	}
	if overrides.PresencePen != nil {
		base.PresencePen = overrides.PresencePen
	}
	if overrides.XTC != nil {
		base.XTC = overrides.XTC
	}
	if overrides.DynaTemp != nil {
		base.DynaTemp = overrides.DynaTemp
	}
	return base, nil
}

// Names returns every registered preset name.
func (r *SamplingRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.presets))
	for name := range r.presets {
		names = append(names, name)
	}
	return names
}
