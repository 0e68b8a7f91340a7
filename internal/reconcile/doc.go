// Package reconcile implements snapshot reconciliation: applying one full
// remote snapshot onto a local mirror table with a tombstone strategy.
//
// A run moves through a fixed sequence of states:
//
//	START → TOKEN_ACQUIRED → FETCHED → STALED → UPSERTED → COMMITTED
//
// with FAILED reachable from any point after START. Steps STALED through
// COMMITTED execute inside a single transaction: every currently-active
// mirror row is first marked stale, then every fetched record is upserted
// back to active. A business key absent from the snapshot is therefore left
// inactive, a key present is (re)activated, and the whole operation is one
// idempotent replace - no diff against the previous snapshot is needed.
//
// Failure isolation is deliberately two-tiered: transport, decode, and
// transaction errors are fatal to the run (rollback, failure SyncResult);
// a single record's upsert failure is logged with its business key, counted
// as skipped, and never aborts the rest of the snapshot.
//
// Execution is strictly sequential - one system at a time, one record at a
// time - by design; the batch driver's only pause is rate-limiting courtesy
// toward the remote API.
package reconcile
