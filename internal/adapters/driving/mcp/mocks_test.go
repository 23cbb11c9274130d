package mcp

import (
	"context"

	"github.com/custodia-labs/shopbot/internal/core/domain"
)

// mockChatService is a mock implementation of driving.ChatService.
type mockChatService struct {
	reply     string
	err       error
	questions []string
}

func (m *mockChatService) Respond(_ context.Context, utterance string) (string, error) {
	m.questions = append(m.questions, utterance)
	return m.reply, m.err
}

// mockRetriever is a mock implementation of driving.Retriever.
type mockRetriever struct {
	result domain.QueryResult
	err    error
	opts   domain.RetrieveOptions
}

func (m *mockRetriever) Retrieve(_ context.Context, query string, opts domain.RetrieveOptions) (domain.QueryResult, error) {
	m.opts = opts
	m.result.Query = query
	return m.result, m.err
}

// mockCatalogService is a mock implementation of driving.CatalogService.
type mockCatalogService struct {
	products map[int64]domain.Product
	err      error
}

func (m *mockCatalogService) SaveProducts(_ context.Context, products []domain.Product) (int, error) {
	return len(products), m.err
}

func (m *mockCatalogService) DeleteProduct(_ context.Context, _ int64) error {
	return m.err
}

func (m *mockCatalogService) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (m *mockCatalogService) ListProducts(_ context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	stats domain.StoreStats
	err   error
}

func (m *mockIngestService) IngestDocument(_ context.Context, _ domain.SourceDocument) (domain.ReconcileReport, error) {
	return domain.ReconcileReport{}, m.err
}

func (m *mockIngestService) DeleteDocument(_ context.Context, _ string) error {
	return m.err
}

func (m *mockIngestService) Reconcile(_ context.Context) (domain.ReconcileReport, error) {
	return domain.ReconcileReport{}, m.err
}

func (m *mockIngestService) Status(_ context.Context) (domain.StoreStats, error) {
	return m.stats, m.err
}

func requiredPorts() *Ports {
	return &Ports{Chat: &mockChatService{}, Retriever: &mockRetriever{}}
}
