package hiermem

import (
	"testing"

	"github.com/Hirogarden/AuraNexus/llmapi"
	"github.com/stretchr/testify/require"
)

func TestBuiltinPresetsRegistered(t *testing.T) {
	reg := NewSamplingRegistry()
	for _, name := range []string{"chat", "storytelling", "creative", "assistant", "factual"} {
		_, err := reg.Get(name)
		require.NoError(t, err, name)
	}
}

func TestChatPresetMatchesTable(t *testing.T) {
	reg := NewSamplingRegistry()
	chat, err := reg.Get("chat")
	require.NoError(t, err)
	require.Equal(t, 0.7, *chat.Temperature)
	require.Equal(t, 0.95, *chat.TopP)
	require.Equal(t, 40, *chat.TopK)
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	reg := NewSamplingRegistry()
	err := reg.Register("chat", llmapi.SamplingParams{})
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestResolveAppliesOverridesOnly(t *testing.T) {
	reg := NewSamplingRegistry()
	resolved, err := reg.Resolve("factual", llmapi.SamplingParams{Temperature: ptr(0.5)})
	require.NoError(t, err)
	require.Equal(t, 0.5, *resolved.Temperature)
	require.Equal(t, 0.85, *resolved.TopP) // untouched, from the base preset
}

func TestResolveUnknownPreset(t *testing.T) {
	reg := NewSamplingRegistry()
	_, err := reg.Resolve("nonexistent", llmapi.SamplingParams{})
	require.ErrorIs(t, err, ErrNotFound)
}
