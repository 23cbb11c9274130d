// Package postgres implements driven.VectorStore on PostgreSQL with the
// pgvector extension.
//
// Embeddings live in vector(D) columns and similarity is computed by the
// database as 1 - (embedding <=> query). Without an HNSW index every search
// is an exact scan; WithHNSW adds vector_cosine_ops indexes for large
// catalogs at the cost of approximate candidates.
package postgres
