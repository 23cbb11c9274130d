package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/shopbot/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
	"github.com/custodia-labs/shopbot/internal/core/vecmath"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// DatabaseFile is the file name created inside the data directory.
const DatabaseFile = "shopbot.db"

const metaDimensions = "dimensions"

// Store is a SQLite-backed vector store.
type Store struct {
	db         *sqlx.DB
	path       string
	dimensions int
}

// productRow mirrors the products table.
type productRow struct {
	ID             int64        `db:"id"`
	Name           string       `db:"name"`
	NameAlt        string       `db:"name_alt"`
	Description    string       `db:"description"`
	DescriptionAlt string       `db:"description_alt"`
	Category       string       `db:"category"`
	Brand          string       `db:"brand"`
	Price          float64      `db:"price"`
	StockQuantity  int          `db:"stock_quantity"`
	SerializedText string       `db:"serialized_text"`
	Embedding      vectorBlob   `db:"embedding"`
	State          string       `db:"state"`
	UpdatedAt      sql.NullTime `db:"updated_at"`
}

// chunkRow mirrors the document_chunks table.
type chunkRow struct {
	DocumentID               string       `db:"document_id"`
	ChunkIndex               int          `db:"chunk_index"`
	DocumentTitle            string       `db:"document_title"`
	Text                     string       `db:"text"`
	OverlapBytes             int          `db:"overlap_bytes"`
	ContextualizedText       string       `db:"contextualized_text"`
	TokenCount               int          `db:"token_count"`
	ContextualizedTokenCount int          `db:"contextualized_token_count"`
	Embedding                vectorBlob   `db:"embedding"`
	CreatedAt                sql.NullTime `db:"created_at"`
}

const productColumns = `id, name, name_alt, description, description_alt, category, brand,
	price, stock_quantity, serialized_text, embedding, state, updated_at`

const chunkColumns = `document_id, chunk_index, document_title, text, overlap_bytes,
	contextualized_text, token_count, contextualized_token_count, embedding, created_at`

// NewStore opens (creating if needed) the database in dataDir.
// If dataDir is empty, defaults to ~/.shopbot/data.
func NewStore(dataDir string, dimensions int) (*Store, error) {
	if dimensions <= 0 {
		return nil, &domain.ConfigError{Field: "embedding.dimensions", Reason: "must be positive"}
	}
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".shopbot", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// WAL mode lets readers proceed while a writer holds the lock.
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:         db,
		path:       dbPath,
		dimensions: dimensions,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if err := s.checkDimensions(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Dimensions returns the configured vector size.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// migrate runs all pending migrations, each in its own transaction.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	if err := s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations"); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Beginx()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// checkDimensions records the vector size on first open and rejects a
// different size afterwards.
func (s *Store) checkDimensions() error {
	var stored string
	err := s.db.Get(&stored, "SELECT value FROM store_meta WHERE key = ?", metaDimensions)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.db.Exec("INSERT INTO store_meta (key, value) VALUES (?, ?)",
			metaDimensions, strconv.Itoa(s.dimensions))
		if err != nil {
			return fmt.Errorf("recording dimensions: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading dimensions: %w", err)
	}

	got, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("parsing stored dimensions %q: %w", stored, err)
	}
	if got != s.dimensions {
		return &domain.DimensionMismatchError{Expected: got, Got: s.dimensions, Subject: "database " + s.path}
	}
	return nil
}

// ==================== Products ====================

// UpsertProduct inserts or overwrites a product by ID.
func (s *Store) UpsertProduct(ctx context.Context, p domain.Product) error {
	if err := s.checkEmbedding(p.Embedding, fmt.Sprintf("product %d", p.ID)); err != nil {
		return err
	}
	row := toProductRow(p)

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (:id, :name, :name_alt, :description, :description_alt, :category, :brand,
			:price, :stock_quantity, :serialized_text, :embedding, :state, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			name_alt = excluded.name_alt,
			description = excluded.description,
			description_alt = excluded.description_alt,
			category = excluded.category,
			brand = excluded.brand,
			price = excluded.price,
			stock_quantity = excluded.stock_quantity,
			serialized_text = excluded.serialized_text,
			embedding = excluded.embedding,
			state = excluded.state,
			updated_at = excluded.updated_at
	`, row)
	if err != nil {
		return fmt.Errorf("upserting product %d: %w", p.ID, err)
	}
	return nil
}

// GetProduct returns a product or domain.ErrNotFound.
func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var row productRow
	err := s.db.GetContext(ctx, &row, "SELECT "+productColumns+" FROM products WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	p := row.toDomain()
	return &p, nil
}

// DeleteProduct removes a product. Missing IDs are ignored.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	return nil
}

// ListProducts returns all products ordered by ID.
func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.selectProducts(ctx, "SELECT "+productColumns+" FROM products ORDER BY id")
}

// ListStaleProducts returns products whose embedding is missing or outdated.
func (s *Store) ListStaleProducts(ctx context.Context) ([]domain.Product, error) {
	return s.selectProducts(ctx, "SELECT "+productColumns+
		" FROM products WHERE state <> ? OR embedding IS NULL ORDER BY id", string(domain.EmbeddingFresh))
}

func (s *Store) selectProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
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
		"UPDATE products SET embedding = ?, state = ? WHERE id = ? AND serialized_text = ?",
		vectorBlob(vec), string(domain.EmbeddingFresh), id, serializedText)
	if err != nil {
		return false, fmt.Errorf("embedding product %d: %w", id, err)
	}
	return affected(res)
}

// ==================== Chunks ====================

// UpsertChunk inserts or overwrites a chunk by (DocumentID, ChunkIndex).
func (s *Store) UpsertChunk(ctx context.Context, c domain.DocumentChunk) error {
	if err := s.checkEmbedding(c.Embedding, "chunk "+c.Key()); err != nil {
		return err
	}
	if err := upsertChunk(ctx, s.db, c); err != nil {
		return fmt.Errorf("upserting chunk %s: %w", c.Key(), err)
	}
	return nil
}

func upsertChunk(ctx context.Context, db sqlx.ExtContext, c domain.DocumentChunk) error {
	query, args, err := sqlx.Named(`
		INSERT INTO document_chunks (`+chunkColumns+`)
		VALUES (:document_id, :chunk_index, :document_title, :text, :overlap_bytes,
			:contextualized_text, :token_count, :contextualized_token_count, :embedding, :created_at)
		ON CONFLICT(document_id, chunk_index) DO UPDATE SET
			document_title = excluded.document_title,
			text = excluded.text,
			overlap_bytes = excluded.overlap_bytes,
			contextualized_text = excluded.contextualized_text,
			token_count = excluded.token_count,
			contextualized_token_count = excluded.contextualized_token_count,
			embedding = excluded.embedding,
			created_at = excluded.created_at
	`, toChunkRow(c))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, query, args...)
	return err
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
		UPDATE document_chunks SET embedding = ?
		WHERE document_id = ? AND chunk_index = ? AND contextualized_text = ?
	`, vectorBlob(vec), ref.DocumentID, ref.ChunkIndex, contextualizedText)
	if err != nil {
		return false, fmt.Errorf("embedding chunk %s: %w", ref, err)
	}
	return affected(res)
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
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM document_chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", documentID, err)
	}
	for _, c := range chunks {
		if err := upsertChunk(ctx, tx, c); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.Key(), err)
		}
	}
	return tx.Commit()
}

// ListDocumentChunks returns a document's chunks in index order.
func (s *Store) ListDocumentChunks(ctx context.Context, documentID string) ([]domain.DocumentChunk, error) {
	return s.selectChunks(ctx, "SELECT "+chunkColumns+
		" FROM document_chunks WHERE document_id = ? ORDER BY chunk_index", documentID)
}

// ListStaleChunks returns chunks without an embedding in primary key order.
func (s *Store) ListStaleChunks(ctx context.Context) ([]domain.DocumentChunk, error) {
	return s.selectChunks(ctx, "SELECT "+chunkColumns+
		" FROM document_chunks WHERE embedding IS NULL ORDER BY document_id, chunk_index")
}

// DeleteDocumentChunks removes every chunk of a document.
func (s *Store) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM document_chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", documentID, err)
	}
	return nil
}

func (s *Store) selectChunks(ctx context.Context, query string, args ...any) ([]domain.DocumentChunk, error) {
	var rows []chunkRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	out := make([]domain.DocumentChunk, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

// ==================== Search ====================

// SimilaritySearch scores every embedded row that passes filters with exact
// cosine similarity and returns the best k.
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

	switch entityType {
	case domain.EntityProduct:
		return s.searchProducts(ctx, query, k, filters)
	case domain.EntityChunk:
		return s.searchChunks(ctx, query, k, filters)
	default:
		return nil, fmt.Errorf("%w: unknown entity type %q", domain.ErrInvalidArgument, entityType)
	}
}

func (s *Store) searchProducts(ctx context.Context, query []float32, k int, f domain.Filters) ([]domain.ScoredEntity, error) {
	where := []string{"embedding IS NOT NULL"}
	var args []any
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Brand != "" {
		where = append(where, "brand = ?")
		args = append(args, f.Brand)
	}
	if f.InStockOnly {
		where = append(where, "stock_quantity > 0")
	}

	rows, err := s.db.QueryxContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE "+strings.Join(where, " AND "), args...)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var items []domain.ScoredEntity
	for rows.Next() {
		var row productRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		p := row.toDomain()
		items = append(items, domain.ScoredEntity{
			Type:    domain.EntityProduct,
			Product: &p,
			Score:   vecmath.Cosine(query, p.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return domain.SortRanked(items, k), nil
}

func (s *Store) searchChunks(ctx context.Context, query []float32, k int, f domain.Filters) ([]domain.ScoredEntity, error) {
	q := "SELECT " + chunkColumns + " FROM document_chunks WHERE embedding IS NOT NULL"
	var args []any
	if f.DocumentID != "" {
		q += " AND document_id = ?"
		args = append(args, f.DocumentID)
	}

	rows, err := s.db.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var items []domain.ScoredEntity
	for rows.Next() {
		var row chunkRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c := row.toDomain()
		items = append(items, domain.ScoredEntity{
			Type:  domain.EntityChunk,
			Chunk: &c,
			Score: vecmath.Cosine(query, c.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return domain.SortRanked(items, k), nil
}

// Stats summarises the store contents.
func (s *Store) Stats(ctx context.Context) (domain.StoreStats, error) {
	var stats domain.StoreStats
	err := s.db.QueryRowxContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM products WHERE state <> ? OR embedding IS NULL),
			(SELECT COUNT(*) FROM document_chunks),
			(SELECT COUNT(*) FROM document_chunks WHERE embedding IS NULL),
			(SELECT COUNT(DISTINCT document_id) FROM document_chunks)
	`, string(domain.EmbeddingFresh)).Scan(
		&stats.Products, &stats.StaleProducts, &stats.Chunks, &stats.StaleChunks, &stats.Documents)
	if err != nil {
		return domain.StoreStats{}, fmt.Errorf("counting rows: %w", err)
	}
	return stats, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) checkEmbedding(vec []float32, subject string) error {
	if len(vec) == 0 {
		return nil
	}
	return domain.CheckDimensions(vec, s.dimensions, subject)
}

// ==================== Row Mapping ====================

func toProductRow(p domain.Product) productRow {
	state := p.State
	if state == "" {
		state = domain.EmbeddingStale
	}
	updated := sql.NullTime{Time: p.UpdatedAt.UTC(), Valid: !p.UpdatedAt.IsZero()}
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
		Embedding:      vectorBlob(p.Embedding),
		State:          string(state),
		UpdatedAt:      updated,
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
		Embedding:      []float32(r.Embedding),
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
		Embedding:                vectorBlob(c.Embedding),
		CreatedAt:                sql.NullTime{Time: created.UTC(), Valid: true},
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
		Embedding:                []float32(r.Embedding),
	}
	if r.CreatedAt.Valid {
		c.CreatedAt = r.CreatedAt.Time
	}
	return c
}
