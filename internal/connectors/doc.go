// Package connectors holds the document sources the ingest command reads
// from. The filesystem connector watches local files for changes.
package connectors
