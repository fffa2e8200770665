// Package google adapts Google's Gemini API to the llmapi collaborator
// interfaces via the official google.golang.org/genai SDK.
package google

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/Hirogarden/AuraNexus/llmapi"
	"github.com/Hirogarden/AuraNexus/retry"
)

var (
	DefaultChatModel      = "gemini-2.5-flash"
	DefaultEmbeddingModel = "text-embedding-004"
	DefaultEmbeddingDim   = 768
	DefaultTaskType       = "RETRIEVAL_DOCUMENT"
	DefaultMaxRetries     = 3
	DefaultRetryBaseWait  = 1 * time.Second
)

// Option configures a Provider.
type Option func(*Provider)

func WithAPIKey(apiKey string) Option {
	return func(p *Provider) { p.apiKey = apiKey }
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
// llmapi.Summarizer against the Gemini API. The genai client is created
// lazily on first use since it requires a context.
type Provider struct {
	mu     sync.Mutex
	client *genai.Client

	apiKey         string
	chatModel      string
	embeddingModel string
	embeddingDim   int
	taskType       string
	maxRetries     int
	retryBaseWait  time.Duration
}

func New(opts ...Option) *Provider {
	var apiKey string
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		apiKey = v
	} else if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		apiKey = v
	}
	p := &Provider{
		apiKey:         apiKey,
		chatModel:      DefaultChatModel,
		embeddingModel: DefaultEmbeddingModel,
		embeddingDim:   DefaultEmbeddingDim,
		taskType:       DefaultTaskType,
		maxRetries:     DefaultMaxRetries,
		retryBaseWait:  DefaultRetryBaseWait,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Dimension() int { return p.embeddingDim }

func (p *Provider) initClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: p.apiKey})
	if err != nil {
		return nil, fmt.Errorf("google: building client: %w", err)
	}
	p.client = client
	return client, nil
}

// Embed implements llmapi.Embedder.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	client, err := p.initClient(ctx)
	if err != nil {
		return nil, err
	}
	var out []float32
	err = retry.Do(ctx, func() error {
		resp, err := client.Models.EmbedContent(ctx, p.embeddingModel,
			[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
			&genai.EmbedContentConfig{TaskType: p.taskType})
		if err != nil {
			return retry.NewRecoverableError(err)
		}
		if len(resp.Embeddings) == 0 {
			return fmt.Errorf("google: empty embedding response")
		}
		out = resp.Embeddings[0].Values
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
	client, err := p.initClient(ctx)
	if err != nil {
		return "", llmapi.Usage{}, err
	}
	var out string
	var usage llmapi.Usage
	err = retry.Do(ctx, func() error {
		cfg := &genai.GenerateContentConfig{}
		if sampling.Temperature != nil {
			t := float32(*sampling.Temperature)
			cfg.Temperature = &t
		}
		if sampling.TopP != nil {
			t := float32(*sampling.TopP)
			cfg.TopP = &t
		}
		if sampling.TopK != nil {
			t := float32(*sampling.TopK)
			cfg.TopK = &t
		}
		resp, err := client.Models.GenerateContent(ctx, p.chatModel,
			[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, cfg)
		if err != nil {
			return retry.NewRecoverableError(err)
		}
		out = resp.Text()
		if resp.UsageMetadata != nil {
			usage = llmapi.Usage{
				PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
				CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
			}
		}
		return nil
	}, retry.WithMaxRetries(p.maxRetries), retry.WithBaseWait(p.retryBaseWait))
	return out, usage, err
}

// Summarize implements llmapi.Summarizer as a prompt template over
// Generate.
func (p *Provider) Summarize(ctx context.Context, messages []llmapi.SourceMessage, level llmapi.Level) (llmapi.SummaryResult, error) {
	var b strings.Builder
	b.WriteString(levelInstruction(level))
	b.WriteString(" Conversation follows:\n\n")
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	content, usage, err := p.generate(ctx, b.String(), llmapi.SamplingParams{})
	if err != nil {
		return llmapi.SummaryResult{}, fmt.Errorf("google: summarization failed: %w", err)
	}
	refs := make([]string, len(messages))
	for i, m := range messages {
		refs[i] = m.ID
	}
	return llmapi.SummaryResult{Content: content, References: refs, Usage: usage}, nil
}

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
