// Package store provides durable storage for mirror tables and the sync log.
//
// The store owns a single SQLite database holding one mirror table per
// dataset descriptor plus the sync_runs log table. Mirror tables are created
// from descriptor DDL at startup; the fixed schema (sync log) is embedded
// and migrated via PRAGMA user_version.
//
// Transaction discipline: a reconciliation run acquires one transaction via
// Begin and threads it explicitly through the stale-marking and upsert
// steps. The package-level MarkStale and Upsert functions operate on that
// transaction so the whole stale-and-upsert unit commits or rolls back as
// one. Rows are never physically deleted: removal from the remote source is
// represented as active=0, preserving history.
package store
