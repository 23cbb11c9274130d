package driven

// PromptStore provides access to LLM prompt templates.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Implementations fall back to a compiled-in default when one exists.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptChatSystem is the instruction block placed ahead of the context.
	// The template expects one %s placeholder for the reply language.
	PromptChatSystem = "chat_system"

	// PromptNoContext replaces the context block when retrieval found nothing.
	PromptNoContext = "no_context"
)
