// Package ai turns provider settings into embedding and completion
// services, optionally checking that each one answers.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/shopbot/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/shopbot/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/shopbot/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/shopbot/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/shopbot/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
)

const (
	pingTimeout = 5 * time.Second
	fixHint     = "Run 'shopbot config set' to fix"
)

// InitResult holds whichever services could be built. A service that
// could not is nil and explained in Warnings.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	Warnings         []string
}

func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		_ = r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		_ = r.LLMService.Close()
	}
}

// Ready reports whether both services are available.
func (r *InitResult) Ready() bool {
	return r.EmbeddingService != nil && r.LLMService != nil
}

// note records a non-fatal problem. Configuration errors are returned so the
// caller can stop.
func (r *InitResult) note(err error, missing bool, what string) error {
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		return err
	case err != nil:
		r.Warnings = append(r.Warnings, err.Error())
	case missing:
		r.Warnings = append(r.Warnings, what+" provider not configured. "+fixHint)
	}
	return nil
}

// Initialise builds both services, pinging them first when validate is set.
// Unreachable or unconfigured providers only produce warnings, so a chat
// front end can still start and answer with the degraded-service reply.
func Initialise(settings *domain.AppSettings, validate bool) (*InitResult, error) {
	makeEmbedder, makeLLM := CreateEmbeddingService, CreateLLMService
	if validate {
		makeEmbedder, makeLLM = CreateAndValidateEmbeddingService, CreateAndValidateLLMService
	}

	result := &InitResult{}
	embedder, err := makeEmbedder(&settings.Embedding)
	if err := result.note(err, embedder == nil, "embedding"); err != nil {
		return nil, err
	}
	result.EmbeddingService = embedder

	llm, err := makeLLM(&settings.LLM)
	if err := result.note(err, llm == nil, "LLM"); err != nil {
		result.Close()
		return nil, err
	}
	result.LLMService = llm
	return result, nil
}

// pinger is the lifecycle both service kinds share.
type pinger interface {
	Ping(ctx context.Context) error
	Close() error
}

// reachable pings svc, closing it when it does not answer.
func reachable(svc pinger, unavailable error) error {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return fmt.Errorf("%w: service unreachable (%w). %s", unavailable, err, fixHint)
	}
	return nil
}

// CreateAndValidateEmbeddingService is CreateEmbeddingService followed by a
// ping. Errors wrap domain.ErrEmbeddingUnavailable and carry the fix hint.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. %s", domain.ErrEmbeddingUnavailable, err, fixHint)
	}
	if svc == nil {
		return nil, nil
	}
	if err := reachable(svc, domain.ErrEmbeddingUnavailable); err != nil {
		return nil, err
	}
	return svc, nil
}

// CreateAndValidateLLMService is CreateLLMService followed by a ping.
// Errors wrap domain.ErrLLMUnavailable and carry the fix hint.
func CreateAndValidateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. %s", domain.ErrLLMUnavailable, err, fixHint)
	}
	if svc == nil {
		return nil, nil
	}
	if err := reachable(svc, domain.ErrLLMUnavailable); err != nil {
		return nil, err
	}
	return svc, nil
}

type (
	embeddingBuilder func(*domain.EmbeddingSettings) (driven.EmbeddingService, error)
	llmBuilder       func(*domain.LLMSettings) (driven.LLMService, error)
)

var embeddingBuilders = map[domain.AIProvider]embeddingBuilder{
	domain.AIProviderOllama: func(s *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:           s.BaseURL,
			Model:             s.Model,
			Timeout:           s.Timeout,
			Dimensions:        embeddingDimensions(s, ollamaembed.DefaultDimensions),
			MaxAttempts:       s.MaxAttempts,
			RequestsPerSecond: s.RequestsPerSecond,
		}), nil
	},
	domain.AIProviderOpenAI: func(s *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:            s.APIKey,
			BaseURL:           s.BaseURL,
			Model:             s.Model,
			Timeout:           s.Timeout,
			Dimensions:        embeddingDimensions(s, 0),
			MaxAttempts:       s.MaxAttempts,
			RequestsPerSecond: s.RequestsPerSecond,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	},
}

var llmBuilders = map[domain.AIProvider]llmBuilder{
	domain.AIProviderOllama: func(s *domain.LLMSettings) (driven.LLMService, error) {
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL:     s.BaseURL,
			Model:       s.Model,
			Timeout:     s.Timeout,
			MaxAttempts: s.MaxAttempts,
		}), nil
	},
	domain.AIProviderOpenAI: func(s *domain.LLMSettings) (driven.LLMService, error) {
		svc, err := openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:      s.APIKey,
			BaseURL:     s.BaseURL,
			Model:       s.Model,
			Timeout:     s.Timeout,
			MaxAttempts: s.MaxAttempts,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	},
	domain.AIProviderAnthropic: func(s *domain.LLMSettings) (driven.LLMService, error) {
		svc, err := anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:      s.APIKey,
			BaseURL:     s.BaseURL,
			Model:       s.Model,
			Timeout:     s.Timeout,
			MaxAttempts: s.MaxAttempts,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	},
}

// CreateEmbeddingService builds the configured embedding adapter without
// contacting it. It returns nil, nil when no provider is configured, which
// includes anthropic since it offers no embeddings.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}
	build, ok := embeddingBuilders[settings.Provider]
	if !ok {
		return nil, &domain.ConfigError{
			Field:  "embedding.provider",
			Reason: fmt.Sprintf("unsupported provider %q", settings.Provider),
		}
	}
	return build(settings)
}

// CreateLLMService builds the configured completion adapter without
// contacting it. It returns nil, nil when no provider is configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}
	build, ok := llmBuilders[settings.Provider]
	if !ok {
		return nil, &domain.ConfigError{
			Field:  "llm.provider",
			Reason: fmt.Sprintf("unsupported provider %q", settings.Provider),
		}
	}
	return build(settings)
}

// embeddingDimensions prefers the configured size, then the model table.
func embeddingDimensions(settings *domain.EmbeddingSettings, fallback int) int {
	if settings.Dimensions > 0 {
		return settings.Dimensions
	}
	if d := domain.EmbeddingDimensions()[settings.Model]; d > 0 {
		return d
	}
	return fallback
}
