package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider names the service behind embeddings or completions.
type AIProvider string

const (
	AIProviderOllama    AIProvider = "ollama"
	AIProviderOpenAI    AIProvider = "openai" // or any compatible endpoint
	AIProviderAnthropic AIProvider = "anthropic"
)

type providerInfo struct {
	label      string
	needsKey   bool
	embedModel string // empty when the provider has no embeddings API
	llmModel   string
}

var providers = map[AIProvider]providerInfo{
	AIProviderOllama: {
		label:      "Ollama (local)",
		embedModel: "nomic-embed-text",
		llmModel:   "llama3.2",
	},
	AIProviderOpenAI: {
		label:      "OpenAI (cloud)",
		needsKey:   true,
		embedModel: "text-embedding-3-small",
		llmModel:   "gpt-4o-mini",
	},
	AIProviderAnthropic: {
		label:    "Anthropic (cloud)",
		needsKey: true,
		llmModel: "claude-3-5-haiku-latest",
	},
}

func (p AIProvider) IsValid() bool {
	_, ok := providers[p]
	return ok
}

// RequiresAPIKey reports whether the provider rejects anonymous calls.
func (p AIProvider) RequiresAPIKey() bool {
	return providers[p].needsKey
}

func (p AIProvider) String() string {
	return string(p)
}

// Description is a human readable label.
func (p AIProvider) Description() string {
	if info, ok := providers[p]; ok {
		return info.label
	}
	return unknownDescription
}

// StoreDriver selects the vector store backend.
type StoreDriver string

const (
	StoreMemory   StoreDriver = "memory"
	StoreSQLite   StoreDriver = "sqlite"
	StorePostgres StoreDriver = "postgres"
)

var storeLabels = map[StoreDriver]string{
	StoreMemory:   "In-memory (ephemeral)",
	StoreSQLite:   "SQLite (local file)",
	StorePostgres: "PostgreSQL + pgvector",
}

func (d StoreDriver) IsValid() bool {
	_, ok := storeLabels[d]
	return ok
}

func (d StoreDriver) Description() string {
	if label, ok := storeLabels[d]; ok {
		return label
	}
	return unknownDescription
}

// IndexStrategy selects how the in-process stores answer similarity search.
type IndexStrategy string

// Available index strategies.
const (
	// IndexExact scans every vector. It is the reference implementation.
	IndexExact IndexStrategy = "exact"

	// IndexHNSW uses an approximate graph index for candidates.
	IndexHNSW IndexStrategy = "hnsw"
)

// IsValid returns true if the strategy is recognised.
func (s IndexStrategy) IsValid() bool {
	return s == IndexExact || s == IndexHNSW
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the vector size D shared by the client and the store.
	Dimensions int

	// Timeout bounds one embedding request.
	Timeout time.Duration

	// MaxAttempts bounds retries of transient failures (1 = no retry).
	MaxAttempts int

	// RequestsPerSecond paces outgoing requests (0 = unlimited).
	RequestsPerSecond float64
}

// IsConfigured reports whether the provider can serve embeddings with the
// credentials given.
func (e EmbeddingSettings) IsConfigured() bool {
	info, ok := providers[e.Provider]
	return ok && info.embedModel != "" && (!info.needsKey || e.APIKey != "")
}

// LLMSettings holds completion provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// Timeout bounds one completion request.
	Timeout time.Duration

	// MaxAttempts bounds retries of transient failures (1 = no retry).
	MaxAttempts int

	// MaxTokens caps the generated answer length.
	MaxTokens int

	// Temperature is the sampling temperature.
	Temperature float64
}

func (l LLMSettings) IsConfigured() bool {
	info, ok := providers[l.Provider]
	return ok && (!info.needsKey || l.APIKey != "")
}

// HNSWSettings tunes the graph index.
type HNSWSettings struct {
	// M is the number of neighbours kept per node on upper layers.
	M int

	// EfConstruction is the candidate list size while inserting.
	EfConstruction int

	// EfSearch is the candidate list size while querying.
	EfSearch int
}

// StoreSettings holds vector store configuration.
type StoreSettings struct {
	// Driver selects the backend.
	Driver StoreDriver

	// DSN is the PostgreSQL connection string.
	DSN string

	// DataDir holds the SQLite database file.
	DataDir string

	// Index selects exact or HNSW search for in-process backends.
	Index IndexStrategy

	// HNSW tunes the graph index when Index is IndexHNSW.
	HNSW HNSWSettings
}

// ChunkerSettings holds text chunking parameters, in tokens.
type ChunkerSettings struct {
	ChunkSize int
	Overlap   int
}

// Validate enforces ChunkSize > Overlap >= 0.
func (c ChunkerSettings) Validate() error {
	if c.ChunkSize <= 0 {
		return &ConfigError{Field: "chunker.chunk_size", Reason: fmt.Sprintf("must be positive, got %d", c.ChunkSize)}
	}
	if c.Overlap < 0 {
		return &ConfigError{Field: "chunker.overlap", Reason: fmt.Sprintf("must not be negative, got %d", c.Overlap)}
	}
	if c.Overlap >= c.ChunkSize {
		return &ConfigError{
			Field:  "chunker.overlap",
			Reason: fmt.Sprintf("must be smaller than chunk_size (%d >= %d)", c.Overlap, c.ChunkSize),
		}
	}
	return nil
}

// RetrievalSettings holds defaults for chat-turn retrieval.
type RetrievalSettings struct {
	// KPerType is the number of hits per entity type.
	KPerType int

	// Types lists the entity types searched each turn.
	Types []EntityType

	// TokenBudget caps the assembled context block.
	TokenBudget int

	// InStockOnly restricts product hits to available stock.
	InStockOnly bool
}

// ChatSettings holds orchestrator behaviour.
type ChatSettings struct {
	// TurnTimeout bounds one full chat turn.
	TurnTimeout time.Duration

	// ReplyLanguage is the language answers are written in.
	ReplyLanguage string
}

// ReconcileSettings sizes the batch embedding pass.
type ReconcileSettings struct {
	// Workers is the number of batches embedded concurrently.
	Workers int

	// BatchSize is the number of texts per embedding request.
	BatchSize int

	// Interval runs the pass periodically while a server is up (0 = off).
	Interval time.Duration
}

// MessengerSettings configures the messaging webhook front end.
type MessengerSettings struct {
	// Addr is the HTTP listen address.
	Addr string

	// VerifyToken is compared with hub.verify_token on subscription.
	VerifyToken string

	// PageAccessToken authenticates Send API calls.
	PageAccessToken string

	// GraphURL is the Send API base URL.
	GraphURL string

	// SendsPerSecond paces outgoing replies.
	SendsPerSecond float64
}

// IsConfigured returns true if the webhook can verify and reply.
func (m MessengerSettings) IsConfigured() bool {
	return m.VerifyToken != "" && m.PageAccessToken != ""
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Store     StoreSettings
	Chunker   ChunkerSettings
	Retrieval RetrievalSettings
	Chat      ChatSettings
	Reconcile ReconcileSettings
	Messenger MessengerSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// API keys are left empty; they come from the config file or environment.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:    AIProviderOllama,
			Model:       "nomic-embed-text",
			Dimensions:  768,
			Timeout:     30 * time.Second,
			MaxAttempts: 4,
		},
		LLM: LLMSettings{
			Provider:    AIProviderOllama,
			Model:       "llama3.2",
			Timeout:     120 * time.Second,
			MaxAttempts: 3,
			MaxTokens:   512,
			Temperature: 0.2,
		},
		Store: StoreSettings{
			Driver: StoreSQLite,
			Index:  IndexExact,
			HNSW: HNSWSettings{
				M:              16,
				EfConstruction: 200,
				EfSearch:       64,
			},
		},
		Chunker: ChunkerSettings{
			ChunkSize: 100,
			Overlap:   20,
		},
		Retrieval: RetrievalSettings{
			KPerType:    3,
			Types:       AllEntityTypes(),
			TokenBudget: 1500,
		},
		Chat: ChatSettings{
			TurnTimeout:   90 * time.Second,
			ReplyLanguage: "the language of the question",
		},
		Reconcile: ReconcileSettings{
			Workers:   4,
			BatchSize: 50,
			Interval:  5 * time.Minute,
		},
		Messenger: MessengerSettings{
			Addr:           ":8080",
			GraphURL:       "https://graph.facebook.com/v18.0",
			SendsPerSecond: 10,
		},
	}
}

// Validate checks cross-field constraints. It returns the first violation
// as a *ConfigError.
func (s *AppSettings) Validate() error {
	if err := s.Chunker.Validate(); err != nil {
		return err
	}
	if s.Embedding.Dimensions <= 0 {
		return &ConfigError{Field: "embedding.dimensions", Reason: "must be positive"}
	}
	if s.Embedding.Provider == AIProviderAnthropic {
		return &ConfigError{Field: "embedding.provider", Reason: "anthropic does not support embeddings"}
	}
	if !s.Store.Driver.IsValid() {
		return &ConfigError{Field: "store.driver", Reason: fmt.Sprintf("unknown driver %q", s.Store.Driver)}
	}
	if s.Store.Driver == StorePostgres && s.Store.DSN == "" {
		return &ConfigError{Field: "store.dsn", Reason: "required for postgres"}
	}
	if !s.Store.Index.IsValid() {
		return &ConfigError{Field: "store.index", Reason: fmt.Sprintf("unknown strategy %q", s.Store.Index)}
	}
	if s.Retrieval.KPerType < 1 {
		return &ConfigError{Field: "retrieval.k_per_type", Reason: "must be at least 1"}
	}
	for _, t := range s.Retrieval.Types {
		if !t.IsValid() {
			return &ConfigError{Field: "retrieval.types", Reason: fmt.Sprintf("unknown entity type %q", t)}
		}
	}
	if s.Retrieval.TokenBudget < 0 {
		return &ConfigError{Field: "retrieval.token_budget", Reason: "must not be negative"}
	}
	if s.Reconcile.Workers < 1 {
		return &ConfigError{Field: "reconcile.workers", Reason: "must be at least 1"}
	}
	if s.Reconcile.BatchSize < 1 {
		return &ConfigError{Field: "reconcile.batch_size", Reason: "must be at least 1"}
	}
	if s.Reconcile.Interval < 0 {
		return &ConfigError{Field: "reconcile.interval", Reason: "must not be negative"}
	}
	return nil
}

// EmbeddingDimensions lists the native vector size of well-known models.
// It seeds Dimensions when a model is chosen without one.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"all-minilm":             384,
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// DefaultEmbeddingModels maps each provider with an embeddings API to the
// model used when none is configured.
func DefaultEmbeddingModels() map[AIProvider]string {
	return defaultModels(func(p providerInfo) string { return p.embedModel })
}

// DefaultLLMModels maps each provider to its fallback completion model.
func DefaultLLMModels() map[AIProvider]string {
	return defaultModels(func(p providerInfo) string { return p.llmModel })
}

func defaultModels(pick func(providerInfo) string) map[AIProvider]string {
	out := make(map[AIProvider]string, len(providers))
	for p, info := range providers {
		if m := pick(info); m != "" {
			out[p] = m
		}
	}
	return out
}

// PipelineConfig names the post-processors run over a document, in order,
// with an optional free-form option map per processor.
type PipelineConfig struct {
	Processors       []string
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns the options for name, or nil.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	return c.ProcessorConfigs[name]
}

// PipelineConfigFor builds the document pipeline from chunker settings.
func PipelineConfigFor(c ChunkerSettings) PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker", "contextualizer"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size": c.ChunkSize,
				"overlap":    c.Overlap,
			},
		},
	}
}
