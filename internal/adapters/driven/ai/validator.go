package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// sampleText is embedded once to confirm the model's output size.
const sampleText = "dimension check"

// ConfigValidator checks provider settings against the live services.
type ConfigValidator struct {
	timeout time.Duration
}

// NewConfigValidator creates a validator. A zero timeout uses pingTimeout.
func NewConfigValidator(timeout time.Duration) *ConfigValidator {
	if timeout <= 0 {
		timeout = pingTimeout
	}
	return &ConfigValidator{timeout: timeout}
}

// ValidateEmbedding pings the provider and embeds a sample text, so a model
// whose vectors differ from the configured dimensions is caught before
// anything is written to the store.
func (v *ConfigValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(config)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if _, err := svc.Embed(ctx, sampleText); err != nil {
		return fmt.Errorf("test embedding with %s: %w", svc.ModelName(), err)
	}
	return nil
}

// ValidateLLM pings the completion provider.
func (v *ConfigValidator) ValidateLLM(config *domain.LLMSettings) error {
	svc, err := CreateLLMService(config)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	return nil
}
