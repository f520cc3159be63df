// Package langchain adapts langchaingo models (Ollama, OpenAI) to domain.LanguageModel.
package langchain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/kailas-cloud/revdex/internal/domain"
	"github.com/kailas-cloud/revdex/internal/metrics"
)

// Model wraps an llms.Model.
type Model struct {
	llm      llms.Model
	provider string
	model    string
}

// New wraps an already constructed langchaingo model.
func New(llm llms.Model, provider, model string) *Model {
	return &Model{llm: llm, provider: provider, model: model}
}

// NewOllama connects to an Ollama server. An empty serverURL uses the client default.
func NewOllama(serverURL, model string) (*Model, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return New(llm, "ollama", model), nil
}

// NewOpenAI builds a langchaingo OpenAI client; used for providers that need
// langchaingo-specific request shaping.
func NewOpenAI(baseURL, token, model string) (*Model, error) {
	if token == "" {
		token = "none"
	}
	opts := []lcopenai.Option{lcopenai.WithModel(model), lcopenai.WithToken(token)}
	if baseURL != "" {
		opts = append(opts, lcopenai.WithBaseURL(baseURL))
	}
	llm, err := lcopenai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return New(llm, "openai", model), nil
}

// Complete implements domain.LanguageModel.
func (m *Model) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	content := make([]llms.MessageContent, 0, 2)
	if req.SystemPrompt != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, req.UserPrompt))

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	start := time.Now()
	resp, err := m.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(m.provider, m.model, "error").Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.Completion{}, fmt.Errorf("generate content: %w: %w", domain.ErrSummarizerTimeout, domain.ErrModel)
		}
		return domain.Completion{}, fmt.Errorf("generate content: %v: %w", err, domain.ErrModel)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		metrics.LLMRequestsTotal.WithLabelValues(m.provider, m.model, "empty").Inc()
		return domain.Completion{}, fmt.Errorf("empty completion: %w", domain.ErrModel)
	}

	choice := resp.Choices[0]
	out := domain.Completion{
		Text:             strings.TrimSpace(choice.Content),
		PromptTokens:     intInfo(choice.GenerationInfo, "PromptTokens"),
		CompletionTokens: intInfo(choice.GenerationInfo, "CompletionTokens"),
	}

	metrics.LLMRequestsTotal.WithLabelValues(m.provider, m.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(m.provider, m.model).Observe(time.Since(start).Seconds())
	metrics.LLMTokensTotal.WithLabelValues(m.provider, m.model, "prompt").Add(float64(out.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(m.provider, m.model, "completion").Add(float64(out.CompletionTokens))
	return out, nil
}

// intInfo reads a token count from GenerationInfo; backends disagree on the numeric type.
func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
