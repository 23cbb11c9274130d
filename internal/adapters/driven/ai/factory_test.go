package ai

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/custodia-labs/shopbot/internal/core/domain"
)

func TestInitResult_Close(t *testing.T) {
	t.Run("close with nil services", func(t *testing.T) {
		result := &InitResult{}
		// Should not panic
		result.Close()
	})
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.EmbeddingSettings
		wantNil  bool
		wantDims int
	}{
		{
			name:     "nil settings returns nil",
			settings: nil,
			wantNil:  true,
		},
		{
			name:     "unconfigured settings returns nil",
			settings: &domain.EmbeddingSettings{},
			wantNil:  true,
		},
		{
			name: "ollama uses configured dimensions",
			settings: &domain.EmbeddingSettings{
				Provider:   domain.AIProviderOllama,
				Model:      "nomic-embed-text",
				Dimensions: 256,
			},
			wantDims: 256,
		},
		{
			name: "ollama falls back to model table",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				Model:    "mxbai-embed-large",
			},
			wantDims: 1024,
		},
		{
			name: "openai provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "test-key",
				Model:    "text-embedding-3-small",
			},
			wantDims: 1536,
		},
		{
			name: "openai without key is unconfigured",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				Model:    "text-embedding-3-small",
			},
			wantNil: true,
		},
		{
			name: "anthropic has no embeddings",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderAnthropic,
				APIKey:   "test-key",
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if svc != nil {
					t.Error("expected nil service, got non-nil")
					svc.Close()
				}
				return
			}
			if svc == nil {
				t.Fatal("expected non-nil service, got nil")
			}
			defer svc.Close()
			if svc.Dimensions() != tt.wantDims {
				t.Errorf("Dimensions() = %d, want %d", svc.Dimensions(), tt.wantDims)
			}
		})
	}
}

func TestCreateLLMService(t *testing.T) {
	tests := []struct {
		name      string
		settings  *domain.LLMSettings
		wantNil   bool
		wantModel string
	}{
		{
			name:     "nil settings returns nil",
			settings: nil,
			wantNil:  true,
		},
		{
			name:     "unconfigured settings returns nil",
			settings: &domain.LLMSettings{},
			wantNil:  true,
		},
		{
			name: "ollama provider creates service",
			settings: &domain.LLMSettings{
				Provider: domain.AIProviderOllama,
				Model:    "llama3.2",
			},
			wantModel: "llama3.2",
		},
		{
			name: "openai provider creates service",
			settings: &domain.LLMSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "test-key",
				Model:    "gpt-4o-mini",
			},
			wantModel: "gpt-4o-mini",
		},
		{
			name: "anthropic provider creates service",
			settings: &domain.LLMSettings{
				Provider: domain.AIProviderAnthropic,
				APIKey:   "test-key",
				Model:    "claude-3-5-sonnet-latest",
			},
			wantModel: "claude-3-5-sonnet-latest",
		},
		{
			name: "unknown provider returns nil (not configured)",
			settings: &domain.LLMSettings{
				Provider: "unknown",
				APIKey:   "test-key",
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateLLMService(tt.settings)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if svc != nil {
					t.Error("expected nil service, got non-nil")
					svc.Close()
				}
				return
			}
			if svc == nil {
				t.Fatal("expected non-nil service, got nil")
			}
			defer svc.Close()
			if svc.ModelName() != tt.wantModel {
				t.Errorf("ModelName() = %q, want %q", svc.ModelName(), tt.wantModel)
			}
		})
	}
}

// ollamaServer answers the tags endpoint both Ollama adapters ping.
func ollamaServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"models":[]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func ollamaSettings(baseURL string) *domain.AppSettings {
	settings := domain.DefaultAppSettings()
	settings.Embedding.BaseURL = baseURL
	settings.Embedding.MaxAttempts = 1
	settings.LLM.BaseURL = baseURL
	settings.LLM.MaxAttempts = 1
	return &settings
}

func TestCreateAndValidateEmbeddingService(t *testing.T) {
	srv := ollamaServer(t)

	settings := ollamaSettings(srv.URL)
	svc, err := CreateAndValidateEmbeddingService(&settings.Embedding)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc == nil {
		t.Fatal("expected service")
	}
	svc.Close()

	svc, err = CreateAndValidateEmbeddingService(nil)
	if err != nil || svc != nil {
		t.Errorf("nil settings: got (%v, %v), want (nil, nil)", svc, err)
	}
}

func TestCreateAndValidateLLMService_Unreachable(t *testing.T) {
	srv := ollamaServer(t)
	url := srv.URL
	srv.Close()

	settings := ollamaSettings(url)
	svc, err := CreateAndValidateLLMService(&settings.LLM)
	if svc != nil {
		t.Error("expected nil service")
		svc.Close()
	}
	if !errors.Is(err, domain.ErrLLMUnavailable) {
		t.Fatalf("expected ErrLLMUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "shopbot config set") {
		t.Errorf("error %q should carry the fix hint", err.Error())
	}
}

func TestInitialise(t *testing.T) {
	t.Run("both services reachable", func(t *testing.T) {
		srv := ollamaServer(t)

		result, err := Initialise(ollamaSettings(srv.URL), true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer result.Close()

		if !result.Ready() {
			t.Errorf("expected ready, warnings: %v", result.Warnings)
		}
		if len(result.Warnings) != 0 {
			t.Errorf("unexpected warnings: %v", result.Warnings)
		}
	})

	t.Run("unreachable services become warnings", func(t *testing.T) {
		srv := ollamaServer(t)
		url := srv.URL
		srv.Close()

		result, err := Initialise(ollamaSettings(url), true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer result.Close()

		if result.EmbeddingService != nil || result.LLMService != nil {
			t.Error("expected no services")
		}
		if len(result.Warnings) != 2 {
			t.Errorf("expected 2 warnings, got %v", result.Warnings)
		}
	})

	t.Run("without validation nothing is contacted", func(t *testing.T) {
		result, err := Initialise(ollamaSettings("http://127.0.0.1:1"), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer result.Close()

		if !result.Ready() {
			t.Errorf("expected ready, warnings: %v", result.Warnings)
		}
	})

	t.Run("unconfigured provider warns", func(t *testing.T) {
		settings := ollamaSettings("http://127.0.0.1:1")
		settings.LLM.Provider = domain.AIProviderOpenAI

		result, err := Initialise(settings, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer result.Close()

		if result.LLMService != nil {
			t.Error("expected no LLM service without an API key")
		}
		if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "LLM provider not configured") {
			t.Errorf("unexpected warnings: %v", result.Warnings)
		}
	})
}
