// Package normalisers turns files on disk into SourceDocuments for the
// ingestion pipeline. Each sub-package knows how to extract text from
// one format; the Registry in this package dispatches on MIME type.
//
// Normalisers keep Markdown-style "#" heading lines in their output so
// the contextualizer can attach a section path to every chunk.
package normalisers
