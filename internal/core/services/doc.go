// Package services implements the driving ports: retrieval, context
// assembly, chat orchestration, catalog and document ingestion, settings
// and the background reconcile scheduler.
//
// Services depend only on domain types and driven port interfaces.
package services
