// Package openai embeds text through any OpenAI-compatible /embeddings
// endpoint.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/shopbot/internal/adapters/driven/embedding"
	"github.com/custodia-labs/shopbot/internal/adapters/driven/httpapi"
	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Defaults applied when Config leaves a field zero.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second
)

// nativeDimensions lists the output width of known models. Only the
// text-embedding-3 family accepts a shorter "dimensions" request.
var nativeDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config configures NewEmbeddingService. APIKey is required; BaseURL may
// point at Azure or another compatible gateway.
type Config struct {
	// APIKey is sent as a bearer token.
	APIKey string

	// BaseURL is the API root, without the /embeddings suffix.
	BaseURL string

	// Model is the embedding model name.
	Model string

	// Timeout bounds one HTTP request.
	Timeout time.Duration

	// Dimensions is the vector size D. Zero takes the model's native width.
	Dimensions int

	// MaxAttempts bounds retries of transient failures.
	MaxAttempts int

	// RequestsPerSecond paces requests (0 = unlimited).
	RequestsPerSecond float64

	// HTTPClient replaces the default client, mainly in tests.
	HTTPClient *http.Client
}

// EmbeddingService implements driven.EmbeddingService against an
// OpenAI-compatible API.
type EmbeddingService struct {
	api        *httpapi.Client
	endpoint   string
	auth       http.Header
	model      string
	dimensions int
	shorten    bool
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewEmbeddingService builds an OpenAI-backed EmbeddingService.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, &domain.ConfigError{Field: "embedding.api_key", Reason: "openai requires an API key"}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = nativeDimensions[model]
	}
	if dims <= 0 {
		dims = 1536
	}
	endpoint := strings.TrimRight(cfg.BaseURL, "/")
	if endpoint == "" {
		endpoint = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &EmbeddingService{
		api: httpapi.New(httpapi.Config{
			Name:              "openai",
			Kind:              domain.ErrEmbeddingService,
			Timeout:           timeout,
			Policy:            httpapi.DefaultPolicy().WithAttempts(cfg.MaxAttempts),
			RequestsPerSecond: cfg.RequestsPerSecond,
			HTTPClient:        cfg.HTTPClient,
		}),
		endpoint:   endpoint,
		auth:       http.Header{"Authorization": {"Bearer " + cfg.APIKey}},
		model:      model,
		dimensions: dims,
		shorten:    strings.HasPrefix(model, "text-embedding-3-"),
	}, nil
}

// Embed returns the vector for a single text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedding.One(ctx, s.EmbedBatch, text)
}

// EmbedBatch sends all texts in one request. Results are placed by their
// reported index since the API does not promise ordering.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := embeddingRequest{Model: s.model, Input: texts}
	if s.shorten {
		req.Dimensions = s.dimensions
	}
	var out embeddingResponse
	if err := s.api.PostJSON(ctx, s.endpoint+"/embeddings", s.auth, req, &out); err != nil {
		return nil, err
	}
	if len(out.Data) != len(texts) {
		return nil, embedding.CountMismatch("openai", len(out.Data), len(texts))
	}

	vecs := make([][]float32, len(texts))
	for _, item := range out.Data {
		if item.Index < 0 || item.Index >= len(texts) || vecs[item.Index] != nil {
			return nil, fmt.Errorf("%w: openai: invalid embedding index %d", domain.ErrEmbeddingService, item.Index)
		}
		vec, err := embedding.Narrow(item.Embedding, s.dimensions, s.model)
		if err != nil {
			return nil, err
		}
		vecs[item.Index] = vec
	}
	return vecs, nil
}

// Dimensions returns the vector size every call yields.
func (s *EmbeddingService) Dimensions() int { return s.dimensions }

// ModelName returns the configured model.
func (s *EmbeddingService) ModelName() string { return s.model }

// Ping checks the key against /models without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.api.GetJSON(ctx, s.endpoint+"/models", s.auth, nil)
}

// Close is a no-op; the HTTP client holds no per-service resources.
func (s *EmbeddingService) Close() error { return nil }
