package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
	"github.com/custodia-labs/shopbot/internal/core/ports/driving"
	"github.com/custodia-labs/shopbot/internal/logger"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

// Replies shown without calling the completion service.
const (
	// BlankUtteranceReply answers an empty message.
	BlankUtteranceReply = "Please type a question about our products or store."

	fallbackSystemPrompt = "You are a helpful shop assistant. Answer in %s."
	fallbackNoContext    = "No relevant information was found."
)

// Degraded-service messages returned by FallbackReply.
const (
	ReplyTimeout       = "Sorry, that took too long. Please try again."
	ReplyUnavailable   = "Sorry, the assistant is temporarily unavailable. Please try again in a moment."
	ReplyNotConfigured = "The assistant is not set up yet. Please contact the store."
	ReplyGenericError  = "An error occurred while processing your request. Please try again later."
)

// ChatOptions configures one ChatService.
type ChatOptions struct {
	Retrieval domain.RetrievalSettings
	Chat      domain.ChatSettings
	Generate  driven.GenerateOptions
}

// ChatOptionsFrom derives chat options from application settings.
func ChatOptionsFrom(settings *domain.AppSettings) ChatOptions {
	return ChatOptions{
		Retrieval: settings.Retrieval,
		Chat:      settings.Chat,
		Generate: driven.GenerateOptions{
			MaxTokens:   settings.LLM.MaxTokens,
			Temperature: settings.LLM.Temperature,
		},
	}
}

// ChatService answers one utterance per call: retrieve, assemble, prompt,
// complete. It keeps no memory between turns.
type ChatService struct {
	retriever driving.Retriever
	assembler driving.ContextAssembler
	llm       driven.LLMService
	prompts   driven.PromptStore
	opts      ChatOptions
}

// NewChatService creates a new chat orchestrator. prompts may be nil, in
// which case compiled-in prompts are used.
func NewChatService(
	retriever driving.Retriever,
	assembler driving.ContextAssembler,
	llm driven.LLMService,
	prompts driven.PromptStore,
	opts ChatOptions,
) *ChatService {
	return &ChatService{
		retriever: retriever,
		assembler: assembler,
		llm:       llm,
		prompts:   prompts,
		opts:      opts,
	}
}

// Respond runs one chat turn under the configured turn timeout and
// returns the completion trimmed of surrounding whitespace.
func (s *ChatService) Respond(ctx context.Context, utterance string) (string, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return BlankUtteranceReply, nil
	}
	if s.llm == nil {
		return "", domain.ErrLLMUnavailable
	}

	turnID := uuid.NewString()
	start := time.Now()
	logger.Debug("turn %s: %q", turnID, utterance)

	if s.opts.Chat.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Chat.TurnTimeout)
		defer cancel()
	}

	filters := domain.Filters{InStockOnly: s.opts.Retrieval.InStockOnly}
	result, err := s.retriever.Retrieve(ctx, utterance, domain.RetrieveOptions{
		KPerType: s.opts.Retrieval.KPerType,
		Types:    s.opts.Retrieval.Types,
		Filters:  filters,
	})
	if err != nil {
		return "", turnError(ctx, "retrieval", err)
	}

	block := s.assembler.Assemble(result, s.opts.Retrieval.TokenBudget)
	logger.Debug("turn %s: %d hits, context %d bytes", turnID, result.Len(), len(block))

	prompt := RenderPrompt(s.systemPrompt(), s.contextOrPlaceholder(block), utterance)

	answer, err := s.llm.Generate(ctx, prompt, s.opts.Generate)
	if err != nil {
		if !errors.Is(err, domain.ErrCompletionService) {
			err = fmt.Errorf("%w: %w", domain.ErrCompletionService, err)
		}
		return "", turnError(ctx, "completion", err)
	}

	logger.Debug("turn %s: answered in %s", turnID, time.Since(start).Round(time.Millisecond))
	return strings.TrimSpace(answer), nil
}

// RenderPrompt lays out the completion prompt.
func RenderPrompt(system, contextBlock, utterance string) string {
	var b strings.Builder
	b.WriteString("System Instructions:\n")
	b.WriteString(strings.TrimSpace(system))
	b.WriteString("\n\nGathered Context:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\nUser Question: ")
	b.WriteString(utterance)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

// systemPrompt loads the system template and fills in the reply language.
func (s *ChatService) systemPrompt() string {
	tmpl := s.loadPrompt(driven.PromptChatSystem, fallbackSystemPrompt)
	lang := s.opts.Chat.ReplyLanguage
	if lang == "" {
		lang = domain.DefaultAppSettings().Chat.ReplyLanguage
	}
	return strings.Replace(tmpl, "%s", lang, 1)
}

func (s *ChatService) contextOrPlaceholder(block string) string {
	if block != "" {
		return block
	}
	return strings.TrimSpace(s.loadPrompt(driven.PromptNoContext, fallbackNoContext))
}

func (s *ChatService) loadPrompt(name, fallback string) string {
	if s.prompts == nil {
		return fallback
	}
	text, err := s.prompts.Load(name)
	if err != nil || strings.TrimSpace(text) == "" {
		logger.Warn("prompt %s unavailable, using built-in: %v", name, err)
		return fallback
	}
	return text
}

// turnError adds ErrTimeout when the turn deadline caused err.
func turnError(ctx context.Context, stage string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		return fmt.Errorf("%s: %w: %w", stage, domain.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", stage, err)
}

// FallbackReply maps a failed turn to the message every front end shows.
func FallbackReply(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrTimeout):
		return ReplyTimeout
	case errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrLLMUnavailable),
		errors.Is(err, domain.ErrConfiguration),
		errors.Is(err, domain.ErrDimensionMismatch):
		return ReplyNotConfigured
	case errors.Is(err, domain.ErrEmbeddingService),
		errors.Is(err, domain.ErrCompletionService):
		return ReplyUnavailable
	default:
		return ReplyGenericError
	}
}
