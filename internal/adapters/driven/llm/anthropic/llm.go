// Package anthropic generates replies through the Anthropic Messages API.
package anthropic

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
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-3-5-haiku-latest"
	DefaultTimeout = 120 * time.Second

	// DefaultMaxTokens is sent when the caller sets no limit; the API
	// rejects requests without max_tokens.
	DefaultMaxTokens = 1024

	apiVersion = "2023-06-01"
)

// Config configures NewLLMService. APIKey is required.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
	HTTPClient  *http.Client
}

type LLMService struct {
	api      *httpapi.Client
	endpoint string
	auth     http.Header
	model    string
}

type messagesRequest struct {
	Model       string            `json:"model"`
	Messages    []messagesMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	Temperature float64           `json:"temperature"`
	StopSeqs    []string          `json:"stop_sequences,omitempty"`
}

type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

// text joins the response's text blocks, ignoring tool use and others.
func (r messagesResponse) text() string {
	var b strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// NewLLMService builds an Anthropic-backed LLMService.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, &domain.ConfigError{Field: "llm.api_key", Reason: "anthropic requires an API key"}
	}
	svc := &LLMService{
		endpoint: strings.TrimRight(cfg.BaseURL, "/"),
		auth: http.Header{
			"X-Api-Key":         {cfg.APIKey},
			"Anthropic-Version": {apiVersion},
		},
		model: cfg.Model,
	}
	if svc.endpoint == "" {
		svc.endpoint = DefaultBaseURL
	}
	if svc.model == "" {
		svc.model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	svc.api = httpapi.New(httpapi.Config{
		Name:       "anthropic",
		Kind:       domain.ErrCompletionService,
		Timeout:    cfg.Timeout,
		Policy:     httpapi.DefaultPolicy().WithAttempts(cfg.MaxAttempts),
		HTTPClient: cfg.HTTPClient,
	})
	return svc, nil
}

// Generate sends prompt as one user turn.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	body := messagesRequest{
		Model:       s.model,
		Messages:    []messagesMessage{{Role: "user", Content: prompt}},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		StopSeqs:    opts.StopWords,
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = DefaultMaxTokens
	}

	var out messagesResponse
	if err := s.api.PostJSON(ctx, s.endpoint+"/v1/messages", s.auth, body, &out); err != nil {
		return "", err
	}
	if len(out.Content) == 0 {
		return "", fmt.Errorf("%w: anthropic: no response content returned", domain.ErrCompletionService)
	}
	return out.text(), nil
}

func (s *LLMService) ModelName() string { return s.model }

// Ping checks the key against /v1/models.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.api.GetJSON(ctx, s.endpoint+"/v1/models", s.auth, nil)
}

func (s *LLMService) Close() error { return nil }
