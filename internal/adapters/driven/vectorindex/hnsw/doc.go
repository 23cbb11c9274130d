// Package hnsw adapts the github.com/coder/hnsw graph to the VectorIndex
// port, giving the in-process stores approximate cosine candidates without
// cgo.
//
// The index only proposes candidates. Callers re-score them with exact
// cosine similarity, so ranking ties and scores stay deterministic.
package hnsw
