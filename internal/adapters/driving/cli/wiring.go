package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/shopbot/internal/adapters/driven/ai"
	"github.com/custodia-labs/shopbot/internal/adapters/driven/config"
	"github.com/custodia-labs/shopbot/internal/adapters/driven/config/file"
	"github.com/custodia-labs/shopbot/internal/adapters/driven/storage"
	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driving"
	"github.com/custodia-labs/shopbot/internal/core/services"
	"github.com/custodia-labs/shopbot/internal/logger"
	"github.com/custodia-labs/shopbot/internal/normalisers"
	"github.com/custodia-labs/shopbot/internal/postprocessors"
)

// FileNormaliser turns a file on disk into a SourceDocument.
type FileNormaliser interface {
	NormaliseFile(ctx context.Context, path, title string) (*domain.SourceDocument, error)
}

// Services holds everything a command may call. Commands use only the
// fields they need; tests fill in fakes.
type Services struct {
	Settings    *domain.AppSettings
	Catalog     driving.CatalogService
	Ingest      driving.IngestService
	Retriever   driving.Retriever
	Chat        driving.ChatService
	Normalisers FileNormaliser

	// Warnings lists degraded providers found during start-up.
	Warnings []string

	closers []func() error
}

// Close releases the store and AI clients.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openSettings and openServices are swapped out by tests.
var (
	openSettings = defaultOpenSettings
	openServices = defaultOpenServices
)

// defaultOpenSettings layers environment overrides over the TOML file.
func defaultOpenSettings() (driving.SettingsService, error) {
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	env := config.NewEnvStore(store, config.DefaultAliases)
	return services.NewSettingsService(env, ai.NewConfigValidator(0)), nil
}

// defaultOpenServices opens the store and AI clients named by settings and
// builds the core services on top of them.
func defaultOpenServices(ctx context.Context, settings *domain.AppSettings) (*Services, error) {
	out := &Services{Settings: settings}

	store, err := storage.Open(ctx, settings.Store, settings.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", settings.Store.Driver, err)
	}
	out.closers = append(out.closers, store.Close)

	aiResult, err := ai.Initialise(settings, false)
	if err != nil {
		out.Close() //nolint:errcheck // already failing
		return nil, err
	}
	out.closers = append(out.closers, func() error { aiResult.Close(); return nil })
	out.Warnings = aiResult.Warnings
	for _, w := range aiResult.Warnings {
		logger.Warn("%s", w)
	}

	pipeline, err := postprocessors.NewDefaultPipeline(settings.Chunker)
	if err != nil {
		out.Close() //nolint:errcheck // already failing
		return nil, err
	}

	prompts, err := file.NewPromptStore(promptDir())
	if err != nil {
		out.Close() //nolint:errcheck // already failing
		return nil, err
	}

	embedder := aiResult.EmbeddingService
	llm := aiResult.LLMService

	retriever := services.NewRetrievalService(embedder, store, settings.Retrieval)
	out.Retriever = retriever
	out.Catalog = services.NewCatalogService(store)
	out.Ingest = services.NewIngestService(store, embedder, pipeline, settings.Reconcile)
	out.Chat = services.NewChatService(
		retriever,
		services.NewContextAssembler(),
		llm,
		prompts,
		services.ChatOptionsFrom(settings),
	)
	out.Normalisers = normalisers.NewDefaultRegistry()

	return out, nil
}

func promptDir() string {
	if configDir == "" {
		return ""
	}
	return filepath.Join(configDir, "prompts")
}

// loadServices reads settings and opens services for one command.
func loadServices(ctx context.Context) (*Services, error) {
	settingsSvc, err := openSettings()
	if err != nil {
		return nil, err
	}
	settings, err := settingsSvc.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return openServices(ctx, settings)
}
