package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
	"github.com/custodia-labs/shopbot/internal/core/ports/driving"
	"github.com/custodia-labs/shopbot/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// Reconcile defaults.
const (
	DefaultReconcileWorkers   = 4
	DefaultReconcileBatchSize = 50
)

// IngestService chunks documents and runs the reconciliation pass that
// embeds stale products and chunks.
type IngestService struct {
	store     driven.VectorStore
	embedder  driven.EmbeddingService
	pipeline  driven.PostProcessorPipeline
	workers   int
	batchSize int
	now       func() time.Time
}

// NewIngestService creates a new ingest service. embedder may be nil, in
// which case documents are still chunked and left stale.
func NewIngestService(
	store driven.VectorStore,
	embedder driven.EmbeddingService,
	pipeline driven.PostProcessorPipeline,
	cfg domain.ReconcileSettings,
) *IngestService {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultReconcileWorkers
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultReconcileBatchSize
	}
	return &IngestService{
		store:     store,
		embedder:  embedder,
		pipeline:  pipeline,
		workers:   workers,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// IngestDocument replaces the document's chunk set, stored stale, then
// embeds those chunks.
func (s *IngestService) IngestDocument(ctx context.Context, doc domain.SourceDocument) (domain.ReconcileReport, error) {
	logger.Section("Ingest")

	if strings.TrimSpace(doc.ID) == "" {
		return domain.ReconcileReport{}, fmt.Errorf("%w: document id is required", domain.ErrInvalidArgument)
	}

	chunks, err := s.pipeline.Process(ctx, &doc)
	if err != nil {
		return domain.ReconcileReport{}, fmt.Errorf("chunking %s: %w", doc.ID, err)
	}

	created := s.now()
	for i := range chunks {
		chunks[i].Embedding = nil
		chunks[i].CreatedAt = created
	}

	if err := s.store.ReplaceDocumentChunks(ctx, doc.ID, chunks); err != nil {
		return domain.ReconcileReport{}, fmt.Errorf("storing chunks of %s: %w", doc.ID, err)
	}
	logger.Info("Document %q: %d chunks", doc.Title, len(chunks))

	items := make([]embedItem, len(chunks))
	for i := range chunks {
		items[i] = embedItem{chunk: &chunks[i]}
	}
	return s.embed(ctx, items)
}

// DeleteDocument removes every chunk of a document.
func (s *IngestService) DeleteDocument(ctx context.Context, documentID string) error {
	if err := s.store.DeleteDocumentChunks(ctx, documentID); err != nil {
		return fmt.Errorf("deleting document %s: %w", documentID, err)
	}
	return nil
}

// Reconcile embeds every stale product and chunk in batches using a
// bounded worker pool. Each batch is written only after all of it has
// been embedded; the report lists what is still stale.
func (s *IngestService) Reconcile(ctx context.Context) (domain.ReconcileReport, error) {
	logger.Section("Reconcile")

	products, err := s.store.ListStaleProducts(ctx)
	if err != nil {
		return domain.ReconcileReport{}, fmt.Errorf("listing stale products: %w", err)
	}
	chunks, err := s.store.ListStaleChunks(ctx)
	if err != nil {
		return domain.ReconcileReport{}, fmt.Errorf("listing stale chunks: %w", err)
	}
	logger.Info("Stale: %d products, %d chunks", len(products), len(chunks))

	items := make([]embedItem, 0, len(products)+len(chunks))
	for i := range products {
		items = append(items, embedItem{product: &products[i]})
	}
	for i := range chunks {
		items = append(items, embedItem{chunk: &chunks[i]})
	}
	return s.embed(ctx, items)
}

// Status summarises the store contents.
func (s *IngestService) Status(ctx context.Context) (domain.StoreStats, error) {
	return s.store.Stats(ctx)
}

// embedItem is one stale entity. Exactly one field is set.
type embedItem struct {
	product *domain.Product
	chunk   *domain.DocumentChunk
}

// text returns the embedding input: serialized text for products and the
// contextualized text for chunks.
func (i embedItem) text() string {
	if i.product != nil {
		return i.product.SerializedText
	}
	if i.chunk.ContextualizedText != "" {
		return i.chunk.ContextualizedText
	}
	return i.chunk.Text
}

func (i embedItem) subject() string {
	if i.product != nil {
		return fmt.Sprintf("product %d", i.product.ID)
	}
	return "chunk " + i.chunk.Key()
}

// embed runs the batched worker pool over items.
func (s *IngestService) embed(ctx context.Context, items []embedItem) (domain.ReconcileReport, error) {
	start := s.now()
	report := domain.ReconcileReport{}

	batches := splitBatches(items, s.batchSize)
	done := make([]bool, len(batches))

	if len(items) > 0 && s.embedder == nil {
		fillStale(&report, batches, done)
		return report, domain.ErrEmbeddingUnavailable
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for bi, batch := range batches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			products, chunks, err := s.embedBatch(gctx, batch)
			if err != nil {
				return fmt.Errorf("batch %d: %w", bi+1, err)
			}

			mu.Lock()
			done[bi] = true
			report.ProductsEmbedded += products
			report.ChunksEmbedded += chunks
			mu.Unlock()

			logger.Debug("batch %d/%d embedded", bi+1, len(batches))
			return nil
		})
	}

	err := g.Wait()
	fillStale(&report, batches, done)
	report.Duration = time.Since(start)

	if err != nil {
		logger.Warn("Reconcile stopped: %v (%d still stale)", err, report.Remaining())
		return report, fmt.Errorf("reconcile: %w", err)
	}
	logger.Info("Embedded %d products, %d chunks in %s",
		report.ProductsEmbedded, report.ChunksEmbedded, report.Duration.Round(time.Millisecond))
	return report, nil
}

// embedBatch embeds one batch and writes it only when every vector
// arrived with the store's dimension.
func (s *IngestService) embedBatch(ctx context.Context, batch []embedItem) (int, int, error) {
	texts := make([]string, len(batch))
	for i, item := range batch {
		texts[i] = item.text()
	}

	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, 0, err
	}
	if len(vecs) != len(batch) {
		return 0, 0, fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmbeddingService, len(vecs), len(batch))
	}

	dims := s.store.Dimensions()
	for i, vec := range vecs {
		if err := domain.CheckDimensions(vec, dims, batch[i].subject()); err != nil {
			return 0, 0, err
		}
	}

	products, chunks := 0, 0
	for i, item := range batch {
		written, err := s.writeEmbedding(ctx, item, vecs[i])
		if err != nil {
			return products, chunks, fmt.Errorf("saving %s: %w", item.subject(), err)
		}
		switch {
		case !written:
			logger.Debug("%s changed during reconcile, leaving it for the next pass", item.subject())
		case item.product != nil:
			products++
		default:
			chunks++
		}
	}
	return products, chunks, nil
}

// writeEmbedding stores vec only if the row still holds the text that was
// embedded. Rows deleted or rewritten meanwhile are left alone.
func (s *IngestService) writeEmbedding(ctx context.Context, item embedItem, vec []float32) (bool, error) {
	if item.product != nil {
		return s.store.SetProductEmbedding(ctx, item.product.ID, item.product.SerializedText, vec)
	}
	return s.store.SetChunkEmbedding(ctx, item.chunk.Ref(), item.chunk.ContextualizedText, vec)
}

func splitBatches(items []embedItem, size int) [][]embedItem {
	var batches [][]embedItem
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

// fillStale records the keys of every batch that did not finish.
func fillStale(report *domain.ReconcileReport, batches [][]embedItem, done []bool) {
	for bi, batch := range batches {
		if done[bi] {
			continue
		}
		for _, item := range batch {
			if item.product != nil {
				report.StaleProducts = append(report.StaleProducts, item.product.ID)
			} else {
				report.StaleChunks = append(report.StaleChunks, item.chunk.Ref())
			}
		}
	}
}
