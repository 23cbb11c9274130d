package config

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
)

// Ensure EnvStore implements the interface.
var _ driven.ConfigStore = (*EnvStore)(nil)

// EnvPrefix starts every environment override, e.g. SHOPBOT_LLM_API_KEY.
const EnvPrefix = "SHOPBOT_"

// DefaultAliases maps conventional variable names onto config keys. They
// apply only when neither the prefixed variable nor the file sets the key.
//
//nolint:gosec // G101: variable names, not credentials.
var DefaultAliases = map[string][]string{
	"embedding.api_key":           {"OPENAI_API_KEY"},
	"llm.api_key":                 {"OPENAI_API_KEY", "ANTHROPIC_API_KEY"},
	"store.dsn":                   {"DATABASE_URL"},
	"messenger.page_access_token": {"META_PAGE_ACCESS_TOKEN"},
	"messenger.verify_token":      {"META_VERIFY_TOKEN"},
}

// EnvStore layers environment variables over another ConfigStore.
// Reads prefer SHOPBOT_<KEY>, then the wrapped store, then aliases.
// Writes go to the wrapped store only.
type EnvStore struct {
	inner   driven.ConfigStore
	aliases map[string][]string
	lookup  func(string) (string, bool)
}

// NewEnvStore wraps inner. aliases may be nil.
func NewEnvStore(inner driven.ConfigStore, aliases map[string][]string) *EnvStore {
	return &EnvStore{inner: inner, aliases: aliases, lookup: os.LookupEnv}
}

// EnvName returns the override variable for key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// Get prefers the environment.
func (s *EnvStore) Get(key string) (any, bool) {
	if v, ok := s.lookup(EnvName(key)); ok {
		return v, true
	}
	if v, ok := s.inner.Get(key); ok {
		return v, true
	}
	for _, name := range s.aliases[key] {
		if v, ok := s.lookup(name); ok && v != "" {
			return v, true
		}
	}
	return nil, false
}

func (s *EnvStore) GetString(key string) string {
	v, _ := s.Get(key)
	return String(v)
}

func (s *EnvStore) GetInt(key string) int {
	v, _ := s.Get(key)
	return Int(v)
}

func (s *EnvStore) GetFloat(key string) float64 {
	v, _ := s.Get(key)
	return Float(v)
}

func (s *EnvStore) GetBool(key string) bool {
	v, _ := s.Get(key)
	return Bool(v)
}

func (s *EnvStore) GetDuration(key string) time.Duration {
	v, _ := s.Get(key)
	return Duration(v)
}

func (s *EnvStore) GetStringSlice(key string) []string {
	v, _ := s.Get(key)
	return StringSlice(v)
}

// Keys returns the wrapped store's keys plus aliased keys that are set.
func (s *EnvStore) Keys() []string {
	seen := make(map[string]bool)
	for _, k := range s.inner.Keys() {
		seen[k] = true
	}
	for key := range s.aliases {
		if _, ok := s.Get(key); ok {
			seen[key] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *EnvStore) Set(key string, value any) error { return s.inner.Set(key, value) }
func (s *EnvStore) Delete(key string) error         { return s.inner.Delete(key) }
func (s *EnvStore) Save() error                     { return s.inner.Save() }
func (s *EnvStore) Load() error                     { return s.inner.Load() }
func (s *EnvStore) Path() string                    { return s.inner.Path() }
