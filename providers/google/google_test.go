package google

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAppliesOptions(t *testing.T) {
	p := New(
		WithAPIKey("test-key"),
		WithChatModel("gemini-test"),
		WithEmbeddingModel("embed-test", 8),
		WithMaxRetries(5),
	)

	require.Equal(t, "test-key", p.apiKey)
	require.Equal(t, "gemini-test", p.chatModel)
	require.Equal(t, "embed-test", p.embeddingModel)
	require.Equal(t, 8, p.embeddingDim)
	require.Equal(t, 5, p.maxRetries)
	require.Equal(t, 8, p.Dimension())
}

func TestNewDefaultsFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("GOOGLE_API_KEY", "")
	p := New()
	require.Equal(t, "from-env", p.apiKey)
	require.Equal(t, DefaultChatModel, p.chatModel)
	require.Equal(t, DefaultEmbeddingModel, p.embeddingModel)
	require.Equal(t, DefaultEmbeddingDim, p.embeddingDim)
}

func TestNewFallsBackToGoogleAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "fallback")
	p := New()
	require.Equal(t, "fallback", p.apiKey)
}

func TestLevelInstructionVariesByLevel(t *testing.T) {
	require.Contains(t, levelInstruction(0), "brief")
	require.Contains(t, levelInstruction(1), "detailed")
	require.Contains(t, levelInstruction(2), "medium")
}
