package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

const metaDimensions = "dimensions"

// tieSlack extra rows are fetched past k so equal-distance rows at the cut
// can be ordered by primary key before truncating.
const tieSlack = 8

// Store is a pgvector-backed vector store.
type Store struct {
	db         *sqlx.DB
	dimensions int
	hnsw       *domain.HNSWSettings
}

// Option configures a Store.
type Option func(*Store)

// WithHNSW creates HNSW indexes on both embedding columns.
func WithHNSW(settings domain.HNSWSettings) Option {
	return func(s *Store) {
		s.hnsw = &settings
	}
}

type productRow struct {
	ID             int64            `db:"id"`
	Name           string           `db:"name"`
	NameAlt        string           `db:"name_alt"`
	Description    string           `db:"description"`
	DescriptionAlt string           `db:"description_alt"`
	Category       string           `db:"category"`
	Brand          string           `db:"brand"`
	Price          float64          `db:"price"`
	StockQuantity  int              `db:"stock_quantity"`
	SerializedText string           `db:"serialized_text"`
	Embedding      *pgvector.Vector `db:"embedding"`
	State          string           `db:"state"`
	UpdatedAt      sql.NullTime     `db:"updated_at"`
}

type chunkRow struct {
	DocumentID               string           `db:"document_id"`
	ChunkIndex               int              `db:"chunk_index"`
	DocumentTitle            string           `db:"document_title"`
	Text                     string           `db:"text"`
	OverlapBytes             int              `db:"overlap_bytes"`
	ContextualizedText       string           `db:"contextualized_text"`
	TokenCount               int              `db:"token_count"`
	ContextualizedTokenCount int              `db:"contextualized_token_count"`
	Embedding                *pgvector.Vector `db:"embedding"`
	CreatedAt                sql.NullTime     `db:"created_at"`
}

type scoredProductRow struct {
	productRow
	Score float64 `db:"score"`
}

type scoredChunkRow struct {
	chunkRow
	Score float64 `db:"score"`
}

const productColumns = `id, name, name_alt, description, description_alt, category, brand,
	price, stock_quantity, serialized_text, embedding, state, updated_at`

const chunkColumns = `document_id, chunk_index, document_title, text, overlap_bytes,
	contextualized_text, token_count, contextualized_token_count, embedding, created_at`

// NewStore connects to dsn, creates the schema if needed and verifies the
// recorded vector dimension.
func NewStore(ctx context.Context, dsn string, dimensions int, opts ...Option) (*Store, error) {
	if dsn == "" {
		return nil, &domain.ConfigError{Field: "store.dsn", Reason: "required for postgres"}
	}
	if dimensions <= 0 {
		return nil, &domain.ConfigError{Field: "embedding.dimensions", Reason: "must be positive"}
	}

	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, dimensions: dimensions}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.checkDimensions(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS store_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS products (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			name_alt TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			description_alt TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			brand TEXT NOT NULL DEFAULT '',
			price DOUBLE PRECISION NOT NULL DEFAULT 0,
			stock_quantity INTEGER NOT NULL DEFAULT 0,
			serialized_text TEXT NOT NULL DEFAULT '',
			embedding vector(%d),
			state TEXT NOT NULL DEFAULT 'stale',
			updated_at TIMESTAMPTZ
		)`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS idx_products_state ON products (state)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			document_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			document_title TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL,
			overlap_bytes INTEGER NOT NULL DEFAULT 0,
			contextualized_text TEXT NOT NULL DEFAULT '',
			token_count INTEGER NOT NULL DEFAULT 0,
			contextualized_token_count INTEGER NOT NULL DEFAULT 0,
			embedding vector(%d),
			created_at TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (document_id, chunk_index)
		)`, s.dimensions),
	}
	if s.hnsw != nil {
		with := fmt.Sprintf("WITH (m = %d, ef_construction = %d)", s.hnsw.M, s.hnsw.EfConstruction)
		migrations = append(migrations,
			`CREATE INDEX IF NOT EXISTS idx_products_embedding ON products USING hnsw (embedding vector_cosine_ops) `+with,
			`CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON document_chunks USING hnsw (embedding vector_cosine_ops) `+with,
		)
	}

	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

func (s *Store) checkDimensions(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO store_meta (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
		metaDimensions, strconv.Itoa(s.dimensions))
	if err != nil {
		return fmt.Errorf("recording dimensions: %w", err)
	}

	var stored string
	if err := s.db.GetContext(ctx, &stored, `SELECT value FROM store_meta WHERE key = $1`, metaDimensions); err != nil {
		return fmt.Errorf("reading dimensions: %w", err)
	}
	got, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("parsing stored dimensions %q: %w", stored, err)
	}
	if got != s.dimensions {
		return &domain.DimensionMismatchError{Expected: got, Got: s.dimensions, Subject: "postgres store"}
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dimensions returns the configured vector size.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// UpsertProduct inserts or overwrites a product by ID.
func (s *Store) UpsertProduct(ctx context.Context, p domain.Product) error {
	if err := s.checkEmbedding(p.Embedding, fmt.Sprintf("product %d", p.ID)); err != nil {
		return err
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (:id, :name, :name_alt, :description, :description_alt, :category, :brand,
			:price, :stock_quantity, :serialized_text, :embedding, :state, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			name_alt = EXCLUDED.name_alt,
			description = EXCLUDED.description,
			description_alt = EXCLUDED.description_alt,
			category = EXCLUDED.category,
			brand = EXCLUDED.brand,
			price = EXCLUDED.price,
			stock_quantity = EXCLUDED.stock_quantity,
			serialized_text = EXCLUDED.serialized_text,
			embedding = EXCLUDED.embedding,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`, toProductRow(p))
	if err != nil {
		return fmt.Errorf("upsert product %d: %w", p.ID, err)
	}
	return nil
}

// GetProduct returns a product or domain.ErrNotFound.
func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var row productRow
	err := s.db.GetContext(ctx, &row, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	p := row.toDomain()
	return &p, nil
}

// DeleteProduct removes a product. Missing IDs are ignored.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	return nil
}

// ListProducts returns all products ordered by ID.
func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.selectProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
}

// ListStaleProducts returns products whose embedding is missing or outdated.
func (s *Store) ListStaleProducts(ctx context.Context) ([]domain.Product, error) {
	return s.selectProducts(ctx, `SELECT `+productColumns+`
		FROM products WHERE state <> $1 OR embedding IS NULL ORDER BY id`, string(domain.EmbeddingFresh))
}

func (s *Store) selectProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	out := make([]domain.Product, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

// SetProductEmbedding writes vec and marks the row fresh if its serialized
// text is unchanged.
func (s *Store) SetProductEmbedding(ctx context.Context, id int64, serializedText string, vec []float32) (bool, error) {
	if err := domain.CheckDimensions(vec, s.dimensions, fmt.Sprintf("product %d", id)); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET embedding = $1, state = $2 WHERE id = $3 AND serialized_text = $4`,
		pgvector.NewVector(vec), string(domain.EmbeddingFresh), id, serializedText)
	if err != nil {
		return false, fmt.Errorf("embed product %d: %w", id, err)
	}
	return affected(res)
}

// SetChunkEmbedding writes vec if the chunk's contextualized text is unchanged.
func (s *Store) SetChunkEmbedding(
	ctx context.Context,
	ref domain.ChunkRef,
	contextualizedText string,
	vec []float32,
) (bool, error) {
	if err := domain.CheckDimensions(vec, s.dimensions, "chunk "+ref.String()); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE document_chunks SET embedding = $1
		WHERE document_id = $2 AND chunk_index = $3 AND contextualized_text = $4`,
		pgvector.NewVector(vec), ref.DocumentID, ref.ChunkIndex, contextualizedText)
	if err != nil {
		return false, fmt.Errorf("embed chunk %s: %w", ref, err)
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const upsertChunkSQL = `
	INSERT INTO document_chunks (` + chunkColumns + `)
	VALUES (:document_id, :chunk_index, :document_title, :text, :overlap_bytes,
		:contextualized_text, :token_count, :contextualized_token_count, :embedding, :created_at)
	ON CONFLICT (document_id, chunk_index) DO UPDATE SET
		document_title = EXCLUDED.document_title,
		text = EXCLUDED.text,
		overlap_bytes = EXCLUDED.overlap_bytes,
		contextualized_text = EXCLUDED.contextualized_text,
		token_count = EXCLUDED.token_count,
		contextualized_token_count = EXCLUDED.contextualized_token_count,
		embedding = EXCLUDED.embedding,
		created_at = EXCLUDED.created_at
`

// UpsertChunk inserts or overwrites a chunk by (DocumentID, ChunkIndex).
func (s *Store) UpsertChunk(ctx context.Context, c domain.DocumentChunk) error {
	if err := s.checkEmbedding(c.Embedding, "chunk "+c.Key()); err != nil {
		return err
	}
	if _, err := s.db.NamedExecContext(ctx, upsertChunkSQL, toChunkRow(c)); err != nil {
		return fmt.Errorf("upsert chunk %s: %w", c.Key(), err)
	}
	return nil
}

// ReplaceDocumentChunks swaps a document's chunk set in one transaction.
func (s *Store) ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []domain.DocumentChunk) error {
	for i := range chunks {
		if chunks[i].DocumentID != documentID || chunks[i].ChunkIndex != i {
			return fmt.Errorf("%w: chunk %s out of place in document %s",
				domain.ErrInvalidArgument, chunks[i].Key(), documentID)
		}
		if err := s.checkEmbedding(chunks[i].Embedding, "chunk "+chunks[i].Key()); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete chunks of %s: %w", documentID, err)
	}
	for _, c := range chunks {
		if _, err := tx.NamedExecContext(ctx, upsertChunkSQL, toChunkRow(c)); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.Key(), err)
		}
	}
	return tx.Commit()
}

// ListDocumentChunks returns a document's chunks in index order.
func (s *Store) ListDocumentChunks(ctx context.Context, documentID string) ([]domain.DocumentChunk, error) {
	return s.selectChunks(ctx, `SELECT `+chunkColumns+`
		FROM document_chunks WHERE document_id = $1 ORDER BY chunk_index`, documentID)
}

// ListStaleChunks returns chunks without an embedding in primary key order.
func (s *Store) ListStaleChunks(ctx context.Context) ([]domain.DocumentChunk, error) {
	return s.selectChunks(ctx, `SELECT `+chunkColumns+`
		FROM document_chunks WHERE embedding IS NULL ORDER BY document_id, chunk_index`)
}

// DeleteDocumentChunks removes every chunk of a document.
func (s *Store) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete chunks of %s: %w", documentID, err)
	}
	return nil
}

func (s *Store) selectChunks(ctx context.Context, query string, args ...any) ([]domain.DocumentChunk, error) {
	var rows []chunkRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	out := make([]domain.DocumentChunk, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

// SimilaritySearch orders rows by bare cosine distance in the database, so
// an HNSW index can serve the query, then breaks ties by primary key.
func (s *Store) SimilaritySearch(
	ctx context.Context,
	query []float32,
	k int,
	entityType domain.EntityType,
	filters domain.Filters,
) ([]domain.ScoredEntity, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", domain.ErrInvalidArgument, k)
	}
	if err := domain.CheckDimensions(query, s.dimensions, "query"); err != nil {
		return nil, err
	}
	vec := pgvector.NewVector(query)

	switch entityType {
	case domain.EntityProduct:
		return s.searchProducts(ctx, vec, k, filters)
	case domain.EntityChunk:
		return s.searchChunks(ctx, vec, k, filters)
	default:
		return nil, fmt.Errorf("%w: unknown entity type %q", domain.ErrInvalidArgument, entityType)
	}
}

func (s *Store) searchProducts(ctx context.Context, vec pgvector.Vector, k int, f domain.Filters) ([]domain.ScoredEntity, error) {
	args := []any{vec}
	where := []string{"embedding IS NOT NULL"}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.Brand != "" {
		args = append(args, f.Brand)
		where = append(where, fmt.Sprintf("brand = $%d", len(args)))
	}
	if f.InStockOnly {
		where = append(where, "stock_quantity > 0")
	}
	args = append(args, k+tieSlack)

	query := fmt.Sprintf(`
		SELECT %s, 1 - (embedding <=> $1) AS score
		FROM products
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $%d`, productColumns, strings.Join(where, " AND "), len(args))

	var rows []scoredProductRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	items := make([]domain.ScoredEntity, len(rows))
	for i := range rows {
		p := rows[i].toDomain()
		items[i] = domain.ScoredEntity{Type: domain.EntityProduct, Product: &p, Score: rows[i].Score}
	}
	return domain.SortRanked(items, k), nil
}

func (s *Store) searchChunks(ctx context.Context, vec pgvector.Vector, k int, f domain.Filters) ([]domain.ScoredEntity, error) {
	args := []any{vec}
	where := "embedding IS NOT NULL"
	if f.DocumentID != "" {
		args = append(args, f.DocumentID)
		where += fmt.Sprintf(" AND document_id = $%d", len(args))
	}
	args = append(args, k+tieSlack)

	query := fmt.Sprintf(`
		SELECT %s, 1 - (embedding <=> $1) AS score
		FROM document_chunks
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $%d`, chunkColumns, where, len(args))

	var rows []scoredChunkRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	items := make([]domain.ScoredEntity, len(rows))
	for i := range rows {
		c := rows[i].toDomain()
		items[i] = domain.ScoredEntity{Type: domain.EntityChunk, Chunk: &c, Score: rows[i].Score}
	}
	return domain.SortRanked(items, k), nil
}

// Stats summarises the store contents.
func (s *Store) Stats(ctx context.Context) (domain.StoreStats, error) {
	var stats domain.StoreStats
	err := s.db.QueryRowxContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM products WHERE state <> $1 OR embedding IS NULL),
			(SELECT COUNT(*) FROM document_chunks),
			(SELECT COUNT(*) FROM document_chunks WHERE embedding IS NULL),
			(SELECT COUNT(DISTINCT document_id) FROM document_chunks)
	`, string(domain.EmbeddingFresh)).Scan(
		&stats.Products, &stats.StaleProducts, &stats.Chunks, &stats.StaleChunks, &stats.Documents)
	if err != nil {
		return domain.StoreStats{}, fmt.Errorf("count rows: %w", err)
	}
	return stats, nil
}

func (s *Store) checkEmbedding(vec []float32, subject string) error {
	if len(vec) == 0 {
		return nil
	}
	return domain.CheckDimensions(vec, s.dimensions, subject)
}

func toVector(v []float32) *pgvector.Vector {
	if len(v) == 0 {
		return nil
	}
	vec := pgvector.NewVector(v)
	return &vec
}

func fromVector(v *pgvector.Vector) []float32 {
	if v == nil {
		return nil
	}
	return v.Slice()
}

func toProductRow(p domain.Product) productRow {
	state := p.State
	if state == "" {
		state = domain.EmbeddingStale
	}
	return productRow{
		ID:             p.ID,
		Name:           p.Name,
		NameAlt:        p.NameAlt,
		Description:    p.Description,
		DescriptionAlt: p.DescriptionAlt,
		Category:       p.Category,
		Brand:          p.Brand,
		Price:          p.Price,
		StockQuantity:  p.StockQuantity,
		SerializedText: p.SerializedText,
		Embedding:      toVector(p.Embedding),
		State:          string(state),
		UpdatedAt:      sql.NullTime{Time: p.UpdatedAt, Valid: !p.UpdatedAt.IsZero()},
	}
}

func (r *productRow) toDomain() domain.Product {
	p := domain.Product{
		ID:             r.ID,
		Name:           r.Name,
		NameAlt:        r.NameAlt,
		Description:    r.Description,
		DescriptionAlt: r.DescriptionAlt,
		Category:       r.Category,
		Brand:          r.Brand,
		Price:          r.Price,
		StockQuantity:  r.StockQuantity,
		SerializedText: r.SerializedText,
		Embedding:      fromVector(r.Embedding),
		State:          domain.EmbeddingState(r.State),
	}
	if r.UpdatedAt.Valid {
		p.UpdatedAt = r.UpdatedAt.Time
	}
	return p
}

func toChunkRow(c domain.DocumentChunk) chunkRow {
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return chunkRow{
		DocumentID:               c.DocumentID,
		ChunkIndex:               c.ChunkIndex,
		DocumentTitle:            c.DocumentTitle,
		Text:                     c.Text,
		OverlapBytes:             c.OverlapBytes,
		ContextualizedText:       c.ContextualizedText,
		TokenCount:               c.TokenCount,
		ContextualizedTokenCount: c.ContextualizedTokenCount,
		Embedding:                toVector(c.Embedding),
		CreatedAt:                sql.NullTime{Time: created, Valid: true},
	}
}

func (r *chunkRow) toDomain() domain.DocumentChunk {
	c := domain.DocumentChunk{
		DocumentID:               r.DocumentID,
		ChunkIndex:               r.ChunkIndex,
		DocumentTitle:            r.DocumentTitle,
		Text:                     r.Text,
		OverlapBytes:             r.OverlapBytes,
		ContextualizedText:       r.ContextualizedText,
		TokenCount:               r.TokenCount,
		ContextualizedTokenCount: r.ContextualizedTokenCount,
		Embedding:                fromVector(r.Embedding),
	}
	if r.CreatedAt.Valid {
		c.CreatedAt = r.CreatedAt.Time
	}
	return c
}
