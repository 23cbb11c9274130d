// Package ollama talks to a local Ollama daemon for reply generation.
package ollama

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
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig configures NewLLMService. Zero values take the defaults above.
type LLMConfig struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
	HTTPClient  *http.Client
}

// LLMService calls /api/generate with streaming disabled.
type LLMService struct {
	api      *httpapi.Client
	endpoint string
	model    string
}

type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *options `json:"options,omitempty"`
}

// options mirrors the subset of Ollama model parameters shopbot sets.
type options struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// NewLLMService builds an Ollama-backed LLMService.
func NewLLMService(cfg LLMConfig) *LLMService {
	base := strings.TrimRight(orDefault(cfg.BaseURL, DefaultBaseURL), "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}

	return &LLMService{
		api: httpapi.New(httpapi.Config{
			Name:       "ollama",
			Kind:       domain.ErrCompletionService,
			Timeout:    timeout,
			Policy:     httpapi.DefaultPolicy().WithAttempts(cfg.MaxAttempts),
			HTTPClient: cfg.HTTPClient,
		}),
		endpoint: base,
		model:    orDefault(cfg.Model, DefaultLLMModel),
	}
}

// Generate returns the full completion for prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	body := generateRequest{
		Model:  s.model,
		Prompt: prompt,
		Options: &options{
			NumPredict:  opts.MaxTokens,
			Temperature: opts.Temperature,
			Stop:        opts.StopWords,
		},
	}

	var out generateResponse
	if err := s.api.PostJSON(ctx, s.endpoint+"/api/generate", nil, body, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: ollama: %s", domain.ErrCompletionService, out.Error)
	}
	return out.Response, nil
}

func (s *LLMService) ModelName() string { return s.model }

// Ping lists local models; a reachable daemon answers even with none pulled.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.api.GetJSON(ctx, s.endpoint+"/api/tags", nil, nil)
}

func (s *LLMService) Close() error { return nil }

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
