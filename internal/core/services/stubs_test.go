package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/shopbot/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
)

// testDims is the vector size used by every service test.
const testDims = 3

// stubEmbedder maps text to a 3-d vector by keyword: shoes, rain, returns.
// Texts without a keyword get a neutral vector.
type stubEmbedder struct {
	mu        sync.Mutex
	embedErr  error
	batchErrs map[int]error // 1-based EmbedBatch call number -> error
	dims      int
	calls     int
	texts     []string
}

func keywordVector(text string) []float32 {
	t := strings.ToLower(text)
	v := []float32{0.05, 0.05, 0.05}
	if strings.Contains(t, "shoe") {
		v[0] = 1
	}
	if strings.Contains(t, "rain") || strings.Contains(t, "waterproof") {
		v[1] = 1
	}
	if strings.Contains(t, "return") {
		v[2] = 1
	}
	return v
}

func (s *stubEmbedder) vector(text string) []float32 {
	v := keywordVector(text)
	if s.dims > 0 && s.dims != len(v) {
		return make([]float32, s.dims)
	}
	return v
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	s.texts = append(s.texts, text)
	return s.vector(text), nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.batchErrs[s.calls]; err != nil {
		return nil, err
	}
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		s.texts = append(s.texts, text)
		out[i] = s.vector(text)
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int {
	if s.dims > 0 {
		return s.dims
	}
	return testDims
}

func (s *stubEmbedder) ModelName() string            { return "stub-embed" }
func (s *stubEmbedder) Ping(_ context.Context) error { return nil }
func (s *stubEmbedder) Close() error                 { return nil }

func (s *stubEmbedder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stubLLM records the last prompt and returns a canned reply.
type stubLLM struct {
	reply   string
	err     error
	block   bool
	prompts []string
	opts    driven.GenerateOptions
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	s.prompts = append(s.prompts, prompt)
	s.opts = opts
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubLLM) ModelName() string            { return "stub-llm" }
func (s *stubLLM) Ping(_ context.Context) error { return nil }
func (s *stubLLM) Close() error                 { return nil }

func (s *stubLLM) lastPrompt() string {
	if len(s.prompts) == 0 {
		return ""
	}
	return s.prompts[len(s.prompts)-1]
}

// stubPrompts serves prompts from a map.
type stubPrompts map[string]string

func (p stubPrompts) Load(name string) (string, error) {
	text, ok := p[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return text, nil
}

func (p stubPrompts) Reload() {}

// newTestStore returns an empty in-memory store of testDims.
func newTestStore(t *testing.T) *memory.VectorStore {
	t.Helper()
	store, err := memory.NewVectorStore(testDims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// seedProduct stores p with an embedding computed from its text.
func seedProduct(t *testing.T, store driven.VectorStore, p domain.Product) {
	t.Helper()
	p.SerializedText = p.BuildSerializedText()
	p.Embedding = keywordVector(p.SerializedText)
	p.State = domain.EmbeddingFresh
	require.NoError(t, store.UpsertProduct(context.Background(), p))
}

// seedChunk stores c with an embedding computed from its text.
func seedChunk(t *testing.T, store driven.VectorStore, c domain.DocumentChunk) {
	t.Helper()
	if c.ContextualizedText == "" {
		c.ContextualizedText = c.Text
	}
	c.Embedding = keywordVector(c.ContextualizedText)
	require.NoError(t, store.UpsertChunk(context.Background(), c))
}
