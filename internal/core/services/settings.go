package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
	"github.com/custodia-labs/shopbot/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// settingDef binds a config key to the AppSettings field it fills.
type settingDef struct {
	key    string
	secret bool
	field  func(*domain.AppSettings) any
}

// settingDefs lists every known key in display order.
//
//nolint:gosec // G101: key names, not credentials.
var settingDefs = []settingDef{
	{key: "embedding.provider", field: func(s *domain.AppSettings) any { return &s.Embedding.Provider }},
	{key: "embedding.model", field: func(s *domain.AppSettings) any { return &s.Embedding.Model }},
	{key: "embedding.base_url", field: func(s *domain.AppSettings) any { return &s.Embedding.BaseURL }},
	{key: "embedding.api_key", secret: true, field: func(s *domain.AppSettings) any { return &s.Embedding.APIKey }},
	{key: "embedding.dimensions", field: func(s *domain.AppSettings) any { return &s.Embedding.Dimensions }},
	{key: "embedding.timeout", field: func(s *domain.AppSettings) any { return &s.Embedding.Timeout }},
	{key: "embedding.max_attempts", field: func(s *domain.AppSettings) any { return &s.Embedding.MaxAttempts }},
	{key: "embedding.requests_per_second", field: func(s *domain.AppSettings) any { return &s.Embedding.RequestsPerSecond }},

	{key: "llm.provider", field: func(s *domain.AppSettings) any { return &s.LLM.Provider }},
	{key: "llm.model", field: func(s *domain.AppSettings) any { return &s.LLM.Model }},
	{key: "llm.base_url", field: func(s *domain.AppSettings) any { return &s.LLM.BaseURL }},
	{key: "llm.api_key", secret: true, field: func(s *domain.AppSettings) any { return &s.LLM.APIKey }},
	{key: "llm.timeout", field: func(s *domain.AppSettings) any { return &s.LLM.Timeout }},
	{key: "llm.max_attempts", field: func(s *domain.AppSettings) any { return &s.LLM.MaxAttempts }},
	{key: "llm.max_tokens", field: func(s *domain.AppSettings) any { return &s.LLM.MaxTokens }},
	{key: "llm.temperature", field: func(s *domain.AppSettings) any { return &s.LLM.Temperature }},

	{key: "store.driver", field: func(s *domain.AppSettings) any { return &s.Store.Driver }},
	{key: "store.dsn", secret: true, field: func(s *domain.AppSettings) any { return &s.Store.DSN }},
	{key: "store.data_dir", field: func(s *domain.AppSettings) any { return &s.Store.DataDir }},
	{key: "store.index", field: func(s *domain.AppSettings) any { return &s.Store.Index }},
	{key: "store.hnsw.m", field: func(s *domain.AppSettings) any { return &s.Store.HNSW.M }},
	{key: "store.hnsw.ef_construction", field: func(s *domain.AppSettings) any { return &s.Store.HNSW.EfConstruction }},
	{key: "store.hnsw.ef_search", field: func(s *domain.AppSettings) any { return &s.Store.HNSW.EfSearch }},

	{key: "chunker.chunk_size", field: func(s *domain.AppSettings) any { return &s.Chunker.ChunkSize }},
	{key: "chunker.overlap", field: func(s *domain.AppSettings) any { return &s.Chunker.Overlap }},

	{key: "retrieval.k_per_type", field: func(s *domain.AppSettings) any { return &s.Retrieval.KPerType }},
	{key: "retrieval.types", field: func(s *domain.AppSettings) any { return &s.Retrieval.Types }},
	{key: "retrieval.token_budget", field: func(s *domain.AppSettings) any { return &s.Retrieval.TokenBudget }},
	{key: "retrieval.in_stock_only", field: func(s *domain.AppSettings) any { return &s.Retrieval.InStockOnly }},

	{key: "chat.turn_timeout", field: func(s *domain.AppSettings) any { return &s.Chat.TurnTimeout }},
	{key: "chat.reply_language", field: func(s *domain.AppSettings) any { return &s.Chat.ReplyLanguage }},

	{key: "reconcile.workers", field: func(s *domain.AppSettings) any { return &s.Reconcile.Workers }},
	{key: "reconcile.batch_size", field: func(s *domain.AppSettings) any { return &s.Reconcile.BatchSize }},
	{key: "reconcile.interval", field: func(s *domain.AppSettings) any { return &s.Reconcile.Interval }},

	{key: "messenger.addr", field: func(s *domain.AppSettings) any { return &s.Messenger.Addr }},
	{key: "messenger.verify_token", secret: true, field: func(s *domain.AppSettings) any { return &s.Messenger.VerifyToken }},
	{key: "messenger.page_access_token", secret: true, field: func(s *domain.AppSettings) any { return &s.Messenger.PageAccessToken }},
	{key: "messenger.graph_url", field: func(s *domain.AppSettings) any { return &s.Messenger.GraphURL }},
	{key: "messenger.sends_per_second", field: func(s *domain.AppSettings) any { return &s.Messenger.SendsPerSecond }},
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service. aiValidator may be nil.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := s.load()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// load overlays stored values on the defaults without validating.
func (s *SettingsService) load() *domain.AppSettings {
	settings := domain.DefaultAppSettings()
	for _, def := range settingDefs {
		if _, ok := s.configStore.Get(def.key); ok {
			s.read(def.key, def.field(&settings))
		}
	}

	// A provider switch without an explicit model picks that provider's
	// default, and the model decides the dimension unless one is pinned.
	if !s.has("embedding.model") {
		if m, ok := domain.DefaultEmbeddingModels()[settings.Embedding.Provider]; ok {
			settings.Embedding.Model = m
		}
	}
	if !s.has("embedding.dimensions") {
		if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
			settings.Embedding.Dimensions = d
		}
	}
	if !s.has("llm.model") {
		if m, ok := domain.DefaultLLMModels()[settings.LLM.Provider]; ok {
			settings.LLM.Model = m
		}
	}

	return &settings
}

func (s *SettingsService) has(key string) bool {
	_, ok := s.configStore.Get(key)
	return ok
}

// read copies the stored value for key into the field pointer.
func (s *SettingsService) read(key string, ptr any) {
	switch p := ptr.(type) {
	case *string:
		*p = s.configStore.GetString(key)
	case *int:
		*p = s.configStore.GetInt(key)
	case *float64:
		*p = s.configStore.GetFloat(key)
	case *bool:
		*p = s.configStore.GetBool(key)
	case *time.Duration:
		*p = s.configStore.GetDuration(key)
	case *domain.AIProvider:
		*p = domain.AIProvider(s.configStore.GetString(key))
	case *domain.StoreDriver:
		*p = domain.StoreDriver(s.configStore.GetString(key))
	case *domain.IndexStrategy:
		*p = domain.IndexStrategy(s.configStore.GetString(key))
	case *[]domain.EntityType:
		*p = parseEntityTypes(s.configStore.GetStringSlice(key))
	}
}

// parseEntityTypes keeps unknown names verbatim so Validate reports them.
func parseEntityTypes(names []string) []domain.EntityType {
	types := make([]domain.EntityType, 0, len(names))
	for _, name := range names {
		t, err := domain.ParseEntityType(name)
		if err != nil {
			t = domain.EntityType(name)
		}
		types = append(types, t)
	}
	return types
}

// Set parses, validates and persists one value.
func (s *SettingsService) Set(key, value string) error {
	def, ok := lookupSetting(key)
	if !ok {
		return &domain.ConfigError{Field: key, Reason: "unknown setting"}
	}

	settings := s.load()
	stored, err := assign(def.field(settings), strings.TrimSpace(value))
	if err != nil {
		return &domain.ConfigError{Field: key, Reason: err.Error()}
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	if err := s.configStore.Set(def.key, stored); err != nil {
		return fmt.Errorf("save %s: %w", def.key, err)
	}
	return nil
}

// assign parses value into the field and returns the form to persist.
func assign(ptr any, value string) (any, error) {
	switch p := ptr.(type) {
	case *string:
		*p = value
		return value, nil
	case *int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("expected an integer, got %q", value)
		}
		*p = n
		return int64(n), nil
	case *float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", value)
		}
		*p = f
		return f, nil
	case *bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("expected true or false, got %q", value)
		}
		*p = b
		return b, nil
	case *time.Duration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("expected a duration such as 30s, got %q", value)
		}
		*p = d
		return d.String(), nil
	case *domain.AIProvider:
		provider := domain.AIProvider(strings.ToLower(value))
		if !provider.IsValid() {
			return nil, fmt.Errorf("unknown provider %q", value)
		}
		*p = provider
		return string(provider), nil
	case *domain.StoreDriver:
		*p = domain.StoreDriver(strings.ToLower(value))
		return string(*p), nil
	case *domain.IndexStrategy:
		*p = domain.IndexStrategy(strings.ToLower(value))
		return string(*p), nil
	case *[]domain.EntityType:
		var names []string
		var types []domain.EntityType
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			t, err := domain.ParseEntityType(part)
			if err != nil {
				return nil, err
			}
			types = append(types, t)
			names = append(names, string(t))
		}
		*p = types
		return names, nil
	default:
		return nil, fmt.Errorf("unsupported setting type %T", ptr)
	}
}

// Unset removes a stored value.
func (s *SettingsService) Unset(key string) error {
	def, ok := lookupSetting(key)
	if !ok {
		return &domain.ConfigError{Field: key, Reason: "unknown setting"}
	}
	return s.configStore.Delete(def.key)
}

// Value formats the effective value of key.
func (s *SettingsService) Value(key string) (string, error) {
	def, ok := lookupSetting(key)
	if !ok {
		return "", &domain.ConfigError{Field: key, Reason: "unknown setting"}
	}
	text := format(def.field(s.load()))
	if def.secret {
		return maskSecret(text), nil
	}
	return text, nil
}

func format(ptr any) string {
	switch p := ptr.(type) {
	case *string:
		return *p
	case *int:
		return strconv.Itoa(*p)
	case *float64:
		return strconv.FormatFloat(*p, 'g', -1, 64)
	case *bool:
		return strconv.FormatBool(*p)
	case *time.Duration:
		return p.String()
	case *domain.AIProvider:
		return string(*p)
	case *domain.StoreDriver:
		return string(*p)
	case *domain.IndexStrategy:
		return string(*p)
	case *[]domain.EntityType:
		names := make([]string, len(*p))
		for i, t := range *p {
			names[i] = string(t)
		}
		return strings.Join(names, ",")
	default:
		return ""
	}
}

// maskSecret keeps the last four characters of long secrets.
func maskSecret(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return "****"
	default:
		return "****" + secret[len(secret)-4:]
	}
}

// Keys returns every known key.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(settingDefs))
	for i, def := range settingDefs {
		keys[i] = def.key
	}
	return keys
}

// Path returns the config file path.
func (s *SettingsService) Path() string {
	return s.configStore.Path()
}

// ValidateEmbeddingConfig pings the configured embedding provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig pings the configured LLM provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

func lookupSetting(key string) (settingDef, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, def := range settingDefs {
		if def.key == key {
			return def, true
		}
	}
	return settingDef{}, false
}
