package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driving"
	"github.com/custodia-labs/shopbot/internal/logger"
)

// fakeChat answers every utterance with a fixed reply or error.
type fakeChat struct {
	reply string
	err   error

	mu    sync.Mutex
	asked []string
}

func (f *fakeChat) Respond(_ context.Context, utterance string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, utterance)
	return f.reply, f.err
}

// fakeRetriever returns a canned result and records the options.
type fakeRetriever struct {
	result domain.QueryResult
	err    error
	query  string
	opts   domain.RetrieveOptions
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, opts domain.RetrieveOptions) (domain.QueryResult, error) {
	f.query = query
	f.opts = opts
	return f.result, f.err
}

// fakeCatalog keeps products in memory.
type fakeCatalog struct {
	products map[int64]domain.Product
	stale    int
	err      error
}

func newFakeCatalog(products ...domain.Product) *fakeCatalog {
	c := &fakeCatalog{products: make(map[int64]domain.Product)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (f *fakeCatalog) SaveProducts(_ context.Context, products []domain.Product) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f.stale, nil
}

func (f *fakeCatalog) DeleteProduct(_ context.Context, id int64) error {
	if _, ok := f.products[id]; !ok {
		return fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	delete(f.products, id)
	return nil
}

func (f *fakeCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (f *fakeCatalog) ListProducts(_ context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeIngest records documents and deletions.
type fakeIngest struct {
	report     domain.ReconcileReport
	stats      domain.StoreStats
	err        error
	reconciles int
	ingested   []domain.SourceDocument
	deleted    []string
}

func (f *fakeIngest) IngestDocument(_ context.Context, doc domain.SourceDocument) (domain.ReconcileReport, error) {
	f.ingested = append(f.ingested, doc)
	return f.report, f.err
}

func (f *fakeIngest) DeleteDocument(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeIngest) Reconcile(_ context.Context) (domain.ReconcileReport, error) {
	f.reconciles++
	return f.report, f.err
}

func (f *fakeIngest) Status(_ context.Context) (domain.StoreStats, error) {
	return f.stats, f.err
}

// fakeNormaliser turns a path into a document without reading it.
type fakeNormaliser struct{}

func (fakeNormaliser) NormaliseFile(_ context.Context, path, title string) (*domain.SourceDocument, error) {
	if title == "" {
		title = "doc " + path
	}
	return &domain.SourceDocument{ID: "id:" + path, Title: title, URI: path, Content: "text"}, nil
}

// fakeSettings is an in-memory settings service.
type fakeSettings struct {
	values      map[string]string
	keys        []string
	embedErr    error
	llmErr      error
	getErr      error
	settings    domain.AppSettings
	rejectValue string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{
		values:   map[string]string{"llm.provider": "openai", "llm.api_key": "sk-****"},
		keys:     []string{"llm.provider", "llm.api_key", "store.dsn"},
		settings: domain.DefaultAppSettings(),
	}
}

func (f *fakeSettings) Get() (*domain.AppSettings, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	s := f.settings
	return &s, nil
}

func (f *fakeSettings) Set(key, value string) error {
	if value == f.rejectValue {
		return fmt.Errorf("%w: bad value", domain.ErrInvalidArgument)
	}
	f.values[key] = value
	return nil
}

func (f *fakeSettings) Unset(key string) error {
	delete(f.values, key)
	return nil
}

func (f *fakeSettings) Value(key string) (string, error) {
	for _, k := range f.keys {
		if k == key {
			return f.values[key], nil
		}
	}
	return "", fmt.Errorf("%w: unknown key %q", domain.ErrInvalidArgument, key)
}

func (f *fakeSettings) Keys() []string                 { return f.keys }
func (f *fakeSettings) Path() string                   { return "/tmp/shopbot/config.toml" }
func (f *fakeSettings) ValidateEmbeddingConfig() error { return f.embedErr }
func (f *fakeSettings) ValidateLLMConfig() error       { return f.llmErr }

// testEnv wires fakes into the command tree for one test.
type testEnv struct {
	settings  *fakeSettings
	chat      *fakeChat
	retriever *fakeRetriever
	catalog   *fakeCatalog
	ingest    *fakeIngest
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		settings:  newFakeSettings(),
		chat:      &fakeChat{reply: "We have trail runners."},
		retriever: &fakeRetriever{},
		catalog:   newFakeCatalog(),
		ingest:    &fakeIngest{},
	}

	origSettings, origServices := openSettings, openServices
	openSettings = func() (driving.SettingsService, error) { return env.settings, nil }
	openServices = func(_ context.Context, settings *domain.AppSettings) (*Services, error) {
		return &Services{
			Settings:    settings,
			Catalog:     env.catalog,
			Ingest:      env.ingest,
			Retriever:   env.retriever,
			Chat:        env.chat,
			Normalisers: fakeNormaliser{},
		}, nil
	}
	t.Cleanup(func() {
		openSettings, openServices = origSettings, origServices
		resetFlags(rootCmd)
		logger.SetVerbose(false)
	})
	return env
}

// run executes the root command with args and returns combined output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runInput(t, "", args...)
}

// runInput is run with input on stdin.
func runInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default so package-level flag
// variables do not leak between tests.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

var errBoom = errors.New("boom")
