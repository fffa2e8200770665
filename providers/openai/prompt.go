package openai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Hirogarden/AuraNexus/llmapi"
)

var errSummarizeFailed = errors.New("openai: summarization failed")

var summarizeSampling = llmapi.SamplingParams{
	Temperature: float64Ptr(0.2),
	TopP:        float64Ptr(0.85),
}

func float64Ptr(v float64) *float64 { return &v }

func levelInstruction(level llmapi.Level) string {
	switch level {
	case llmapi.LevelDetailed:
		return "Write a detailed paragraph summary."
	case llmapi.LevelMedium:
		return "Write a medium-length summary, a few sentences."
	default:
		return "Write a single brief sentence summary."
	}
}

func summarizePrompt(messages []llmapi.SourceMessage, level llmapi.Level) string {
	var b strings.Builder
	b.WriteString(levelInstruction(level))
	b.WriteString(" Extract entities if salient. Conversation follows:\n\n")
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}
