package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/revdex/internal/domain"
	"github.com/kailas-cloud/revdex/internal/metrics"
)

// ChatModel is a domain.LanguageModel over the chat completions endpoint.
type ChatModel struct {
	client   *openai.Client
	model    string
	provider string
	logger   *zap.Logger
}

// ChatConfig holds the chat model settings.
type ChatConfig struct {
	ClientConfig
	Model    string
	Provider string
	Logger   *zap.Logger
}

// NewChatModel creates an OpenAI-compatible language model.
func NewChatModel(cfg *ChatConfig) *ChatModel {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatModel{
		client:   newClient(cfg.ClientConfig),
		model:    cfg.Model,
		provider: cfg.Provider,
		logger:   logger,
	}
}

// Complete sends one system+user exchange. A blank completion is an error.
func (m *ChatModel) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt})

	start := time.Now()
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(m.provider, m.model, "error").Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.Completion{}, fmt.Errorf("chat completion: %w: %w", domain.ErrSummarizerTimeout, domain.ErrModel)
		}
		return domain.Completion{}, parseAPIError("chat", err, domain.ErrModel)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.LLMRequestsTotal.WithLabelValues(m.provider, m.model, "empty").Inc()
		return domain.Completion{}, fmt.Errorf("empty chat completion: %w", domain.ErrModel)
	}

	metrics.LLMRequestsTotal.WithLabelValues(m.provider, m.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(m.provider, m.model).Observe(duration.Seconds())
	metrics.LLMTokensTotal.WithLabelValues(m.provider, m.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(m.provider, m.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	return domain.Completion{
		Text:             strings.TrimSpace(resp.Choices[0].Message.Content),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels.
func (m *ChatModel) HealthCheck(ctx context.Context) error {
	if _, err := m.client.ListModels(ctx); err != nil {
		return parseAPIError("chat health", err, domain.ErrModel)
	}
	return nil
}
