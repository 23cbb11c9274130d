// Package sqlite implements driven.VectorStore on a single SQLite file.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO, accessed through sqlx. Embeddings are stored as
// little-endian float32 blobs and searched with an exact cosine scan, which
// suits catalogs of up to tens of thousands of rows.
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory and tracked in schema_migrations. The configured
// vector dimension is recorded on first open; reopening with a different
// dimension fails with a *domain.DimensionMismatchError.
//
// # Data Location
//
// By default, the database is stored at ~/.shopbot/data/shopbot.db
//
// # Thread Safety
//
// All operations are safe for concurrent use. SQLite runs in WAL mode with
// a busy timeout so concurrent writers wait instead of failing.
package sqlite
