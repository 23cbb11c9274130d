// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - VectorStore: Products and document chunks with their embeddings
//   - EmbeddingService: Turns text into fixed-dimension vectors
//   - PostProcessor: Document chunking and contextualization steps
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Completion calls. Without it chat is disabled, search still works.
//   - VectorIndex: Approximate candidate search inside in-process stores.
//   - PromptStore: User-editable prompt templates. Defaults are compiled in.
//   - MessageSender: Outbound replies for the messaging webhook.
//
// # Lifecycle
//
// External clients are constructed once, shared across calls and closed on
// shutdown. No implementation may hold a lock across a network call.
package driven
