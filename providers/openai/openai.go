// Package openai adapts the OpenAI API to the llmapi collaborator
// interfaces, using the official github.com/openai/openai-go SDK rather
// than a hand-rolled HTTP client.
package openai

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Hirogarden/AuraNexus/llmapi"
	"github.com/Hirogarden/AuraNexus/retry"
)

var (
	DefaultChatModel      = "gpt-4o"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultEmbeddingDim   = 1536
	DefaultMaxRetries     = 3
	DefaultRetryBaseWait  = 1 * time.Second
)

// Option configures a Provider.
type Option func(*Provider)

func WithAPIKey(apiKey string) Option {
	return func(p *Provider) { p.clientOpts = append(p.clientOpts, option.WithAPIKey(apiKey)) }
}

func WithBaseURL(url string) Option {
	return func(p *Provider) { p.clientOpts = append(p.clientOpts, option.WithBaseURL(url)) }
}

func WithChatModel(model string) Option {
	return func(p *Provider) { p.chatModel = model }
}

func WithEmbeddingModel(model string, dim int) Option {
	return func(p *Provider) { p.embeddingModel = model; p.embeddingDim = dim }
}

func WithMaxRetries(n int) Option {
	return func(p *Provider) { p.maxRetries = n }
}

// Provider implements llmapi.Generator, llmapi.Embedder, and
// llmapi.Summarizer against the OpenAI API.
type Provider struct {
	client         openai.Client
	clientOpts     []option.RequestOption
	chatModel      string
	embeddingModel string
	embeddingDim   int
	maxRetries     int
	retryBaseWait  time.Duration
}

// New constructs a Provider. The API key defaults to OPENAI_API_KEY if
// WithAPIKey is not supplied, matching the SDK's own convention.
func New(opts ...Option) *Provider {
	p := &Provider{
		chatModel:      DefaultChatModel,
		embeddingModel: DefaultEmbeddingModel,
		embeddingDim:   DefaultEmbeddingDim,
		maxRetries:     DefaultMaxRetries,
		retryBaseWait:  DefaultRetryBaseWait,
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		p.clientOpts = append(p.clientOpts, option.WithAPIKey(key))
	}
	for _, opt := range opts {
		opt(p)
	}
	p.client = openai.NewClient(p.clientOpts...)
	return p
}

func (p *Provider) Dimension() int { return p.embeddingDim }

// Embed implements llmapi.Embedder.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := retry.Do(ctx, func() error {
		resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model: p.embeddingModel,
			Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		})
		if err != nil {
			return retry.NewRecoverableError(err)
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("openai: empty embedding response")
		}
		raw := resp.Data[0].Embedding
		out = make([]float32, len(raw))
		for i, v := range raw {
			out[i] = float32(v)
		}
		return nil
	}, retry.WithMaxRetries(p.maxRetries), retry.WithBaseWait(p.retryBaseWait))
	return out, err
}

// Generate implements llmapi.Generator.
func (p *Provider) Generate(ctx context.Context, prompt string, sampling llmapi.SamplingParams) (string, error) {
	out, _, err := p.generate(ctx, prompt, sampling)
	return out, err
}

// generate is Generate's body, plus the response's token usage — kept
// unexported so Summarize can report real usage without changing
// Generate's public signature.
func (p *Provider) generate(ctx context.Context, prompt string, sampling llmapi.SamplingParams) (string, llmapi.Usage, error) {
	var out string
	var usage llmapi.Usage
	err := retry.Do(ctx, func() error {
		params := openai.ChatCompletionNewParams{
			Model: p.chatModel,
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
		}
		if sampling.Temperature != nil {
			params.Temperature = openai.Float(*sampling.Temperature)
		}
		if sampling.TopP != nil {
			params.TopP = openai.Float(*sampling.TopP)
		}
		if sampling.FrequencyPen != nil {
			params.FrequencyPenalty = openai.Float(*sampling.FrequencyPen)
		}
		if sampling.PresencePen != nil {
			params.PresencePenalty = openai.Float(*sampling.PresencePen)
		}

		resp, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return retry.NewRecoverableError(err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("openai: empty completion response")
		}
		out = resp.Choices[0].Message.Content
		usage = llmapi.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		}
		return nil
	}, retry.WithMaxRetries(p.maxRetries), retry.WithBaseWait(p.retryBaseWait))
	return out, usage, err
}

// Summarize implements llmapi.Summarizer as a prompt template over
// Generate, per the engine's contract that summarization may be layered
// on top of the plain generation capability.
func (p *Provider) Summarize(ctx context.Context, messages []llmapi.SourceMessage, level llmapi.Level) (llmapi.SummaryResult, error) {
	prompt := summarizePrompt(messages, level)
	content, usage, err := p.generate(ctx, prompt, summarizeSampling)
	if err != nil {
		return llmapi.SummaryResult{}, fmt.Errorf("%w: %v", errSummarizeFailed, err)
	}
	refs := make([]string, len(messages))
	for i, m := range messages {
		refs[i] = m.ID
	}
	return llmapi.SummaryResult{Content: content, References: refs, Usage: usage}, nil
}
