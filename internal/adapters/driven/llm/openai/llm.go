// Package openai generates replies through an OpenAI-compatible
// /chat/completions endpoint.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/shopbot/internal/adapters/driven/httpapi"
	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig configures NewLLMService. APIKey is required.
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
	HTTPClient  *http.Client
}

// LLMService sends each prompt as a single-turn chat.
type LLMService struct {
	api      *httpapi.Client
	endpoint string
	auth     http.Header
	model    string
}

type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature"`
	Stop        []string            `json:"stop,omitempty"`
}

type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message      chatCompletionMsg `json:"message"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
}

// NewLLMService builds an OpenAI-backed LLMService.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, &domain.ConfigError{Field: "llm.api_key", Reason: "openai requires an API key"}
	}
	svc := &LLMService{
		endpoint: strings.TrimRight(cfg.BaseURL, "/"),
		auth:     http.Header{"Authorization": {"Bearer " + cfg.APIKey}},
		model:    cfg.Model,
	}
	if svc.endpoint == "" {
		svc.endpoint = DefaultBaseURL
	}
	if svc.model == "" {
		svc.model = DefaultLLMModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	svc.api = httpapi.New(httpapi.Config{
		Name:       "openai",
		Kind:       domain.ErrCompletionService,
		Timeout:    cfg.Timeout,
		Policy:     httpapi.DefaultPolicy().WithAttempts(cfg.MaxAttempts),
		HTTPClient: cfg.HTTPClient,
	})
	return svc, nil
}

// Generate returns the first choice's message content.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	body := chatCompletionRequest{
		Model:       s.model,
		Messages:    []chatCompletionMsg{{Role: "user", Content: prompt}},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stop:        opts.StopWords,
	}

	var out chatCompletionResponse
	if err := s.api.PostJSON(ctx, s.endpoint+"/chat/completions", s.auth, body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: openai: no choices returned", domain.ErrCompletionService)
	}
	return out.Choices[0].Message.Content, nil
}

func (s *LLMService) ModelName() string { return s.model }

// Ping checks the key against /models.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.api.GetJSON(ctx, s.endpoint+"/models", s.auth, nil)
}

func (s *LLMService) Close() error { return nil }
