// Package harness provides scenario-driven conformance testing for the
// reconciliation engine.
//
// A scenario is a YAML file describing a dataset, a system, and a series of
// reconciliation passes. Each pass supplies the snapshot the remote would
// return (or injects a failure), runs one full reconciliation against an
// isolated in-memory store, and optionally checks the run counters. After
// the last pass, assertions validate the final mirror state and the sync
// log.
//
// # Scenario Format
//
//	name: tombstone
//	description: "Rows absent from a later snapshot are tombstoned"
//	dataset:
//	  name: transactions
//	  entity: TRANSACTIONS
//	  table: mirror_transactions
//	  fields:
//	    - {remote: TransId, column: trans_id, kind: text, key: true}
//	    - {remote: Amount, column: amount, kind: decimal}
//	system:
//	  id: sys-1
//	  label: Alpha Corp
//	passes:
//	  - snapshot:
//	      - {TransId: T-001, Amount: 100}
//	      - {TransId: T-002, Amount: 200}
//	    expect: {success: true, inserted: 2}
//	  - snapshot:
//	      - {TransId: T-001, Amount: 150}
//	    expect: {updated: 1, marked_stale: 2}
//	assertions:
//	  - type: active_keys
//	    keys: [T-001]
//	  - type: row_count
//	    total: 2
//	    active: 1
//
// # Assertion Types
//
//   - active_keys: the exact set of active business keys after the last pass
//   - row_count: total and active row counts in the mirror table
//   - run_count: number of rows in the sync log
//
// # Deterministic Execution
//
// Every scenario runs with a frozen clock and sequential run IDs
// (testutil.FrozenClock, testutil.SequenceRunIDs), so the collected
// SyncResults are byte-stable and suitable for golden file comparison via
// RunWithGolden.
package harness
