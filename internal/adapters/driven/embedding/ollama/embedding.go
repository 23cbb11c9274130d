// Package ollama embeds text through a local Ollama daemon's /api/embed.
package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/shopbot/internal/adapters/driven/embedding"
	"github.com/custodia-labs/shopbot/internal/adapters/driven/httpapi"
	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = 768
)

// Config configures NewEmbeddingService. Ollama cannot report a model's
// width up front, so Dimensions must match the pulled model.
type Config struct {
	BaseURL           string
	Model             string
	Timeout           time.Duration
	Dimensions        int
	MaxAttempts       int
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// EmbeddingService sends whole batches in one request.
type EmbeddingService struct {
	api        *httpapi.Client
	endpoint   string
	model      string
	dimensions int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// NewEmbeddingService builds an Ollama-backed EmbeddingService.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	svc := &EmbeddingService{
		endpoint:   strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
	if svc.endpoint == "" {
		svc.endpoint = DefaultBaseURL
	}
	if svc.model == "" {
		svc.model = DefaultModel
	}
	if svc.dimensions <= 0 {
		svc.dimensions = DefaultDimensions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	svc.api = httpapi.New(httpapi.Config{
		Name:              "ollama",
		Kind:              domain.ErrEmbeddingService,
		Timeout:           cfg.Timeout,
		Policy:            httpapi.DefaultPolicy().WithAttempts(cfg.MaxAttempts),
		RequestsPerSecond: cfg.RequestsPerSecond,
		HTTPClient:        cfg.HTTPClient,
	})
	return svc
}

func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedding.One(ctx, s.EmbedBatch, text)
}

// EmbedBatch returns one vector per text, in input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out embedResponse
	if err := s.api.PostJSON(ctx, s.endpoint+"/api/embed", nil, embedRequest{Model: s.model, Input: texts}, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) != len(texts) {
		return nil, embedding.CountMismatch("ollama", len(out.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(texts))
	for i, raw := range out.Embeddings {
		vec, err := embedding.Narrow(raw, s.dimensions, s.model)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (s *EmbeddingService) Dimensions() int   { return s.dimensions }
func (s *EmbeddingService) ModelName() string { return s.model }

// Ping lists local models so no inference runs.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.api.GetJSON(ctx, s.endpoint+"/api/tags", nil, nil)
}

func (s *EmbeddingService) Close() error { return nil }
