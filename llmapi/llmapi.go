// Package llmapi defines the three external collaborator contracts the
// engine consumes: embedding, text generation, and summarization. Concrete
// implementations live in providers/openai and providers/google; the rest
// of the engine depends only on these interfaces.
package llmapi

import "context"

// Embedder produces a fixed-dimensional embedding for text, deterministic
// for a given model. The dimension is fixed at session construction and
// must match every subsequent call for that session.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// SamplingParams is the generation-parameter surface consumed by Generate.
// Zero-value fields are omitted by adapters rather than sent as explicit
// zeros, so a caller supplying only Temperature doesn't implicitly pin
// TopK to 0.
type SamplingParams struct {
	Temperature  *float64
	TopP         *float64
	TopK         *int
	MinP         *float64
	DRY          *float64
	FrequencyPen *float64
	PresencePen  *float64
	XTC          *float64
	DynaTemp     *float64
}

// Generator wraps the opaque LLM text-generation capability.
type Generator interface {
	Generate(ctx context.Context, prompt string, sampling SamplingParams) (string, error)
}

// Level is a summary's compression level: 1 is a detailed paragraph, 2 a
// medium summary, 3 a brief sentence.
type Level int

const (
	LevelDetailed Level = 1
	LevelMedium   Level = 2
	LevelBrief    Level = 3
)

// SourceMessage is the minimal shape Summarize needs from a batch member.
type SourceMessage struct {
	ID      string
	Role    string
	Content string
}

// Entity is an extracted named entity, an optional output of summarization.
type Entity struct {
	Name    string
	Kind    string
	Salience float64
}

// Usage reports collaborator token consumption for one generate/summarize
// call, when the underlying provider exposes it. The zero value means the
// provider didn't report usage (e.g. Embed, which this type is not wired
// into — embedding responses in both wired providers carry no comparable
// token count to report).
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add returns the field-by-field sum of u and other, for a running total
// across many calls. The receiver is not modified.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// SummaryResult is what Summarize returns: content at the requested level,
// any extracted entities, and the source message ids it was derived from
// (echoed back so the caller doesn't need to thread that separately).
type SummaryResult struct {
	Content    string
	Entities   []Entity
	References []string
	Usage      Usage
}

// Summarizer wraps the summarization capability, normally implemented as a
// prompt template over Generate. Implementers may use a recursive
// chunk-and-synthesize pattern internally for very large batches; that
// choice is opaque to callers of this interface.
type Summarizer interface {
	Summarize(ctx context.Context, messages []SourceMessage, level Level) (SummaryResult, error)
}
