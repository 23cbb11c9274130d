package driven

import "github.com/custodia-labs/shopbot/internal/core/domain"

// AIConfigValidator checks provider settings before they are saved.
// Both methods build a throwaway client and ping it; an empty provider
// or one that needs no credentials passes without a network call.
type AIConfigValidator interface {
	ValidateEmbedding(config *domain.EmbeddingSettings) error
	ValidateLLM(config *domain.LLMSettings) error
}
