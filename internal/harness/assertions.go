package harness

import (
	"context"
	"fmt"
	"sort"

	"github.com/remora-io/remora/internal/reconcile"
	"github.com/remora-io/remora/internal/store"
)

// checkExpect validates one pass's counters against its expect clause.
func checkExpect(res *Result, pass int, e *ExpectClause, sr reconcile.SyncResult) {
	fail := func(format string, args ...any) {
		res.Errors = append(res.Errors, fmt.Sprintf("passes[%d]: ", pass)+fmt.Sprintf(format, args...))
	}

	if e.Success != nil && sr.Success != *e.Success {
		fail("success = %v, want %v (error: %s)", sr.Success, *e.Success, sr.ErrorMessage)
	}
	if e.TotalFetched != nil && sr.TotalFetched != *e.TotalFetched {
		fail("total_fetched = %d, want %d", sr.TotalFetched, *e.TotalFetched)
	}
	if e.Inserted != nil && sr.Inserted != *e.Inserted {
		fail("inserted = %d, want %d", sr.Inserted, *e.Inserted)
	}
	if e.Updated != nil && sr.Updated != *e.Updated {
		fail("updated = %d, want %d", sr.Updated, *e.Updated)
	}
	if e.MarkedStale != nil && sr.MarkedStale != *e.MarkedStale {
		fail("marked_stale = %d, want %d", sr.MarkedStale, *e.MarkedStale)
	}
	if e.Skipped != nil && sr.Skipped != *e.Skipped {
		fail("skipped = %d, want %d", sr.Skipped, *e.Skipped)
	}
	if e.ErrorCode != "" {
		wantPrefix := e.ErrorCode + ":"
		if sr.ErrorMessage == "" || len(sr.ErrorMessage) < len(wantPrefix) || sr.ErrorMessage[:len(wantPrefix)] != wantPrefix {
			fail("error code %s not found in %q", e.ErrorCode, sr.ErrorMessage)
		}
	}
}

// applyAssertions validates the final mirror state and sync log.
func applyAssertions(ctx context.Context, res *Result, st *store.Store, scenario *Scenario) {
	fail := func(index int, format string, args ...any) {
		res.Errors = append(res.Errors, fmt.Sprintf("assertions[%d]: ", index)+fmt.Sprintf(format, args...))
	}

	for i, a := range scenario.Assertions {
		switch a.Type {
		case AssertActiveKeys:
			got, err := st.ActiveKeys(ctx, &scenario.Dataset, scenario.System.ID)
			if err != nil {
				fail(i, "reading active keys: %v", err)
				continue
			}
			want := append([]string(nil), a.Keys...)
			sort.Strings(want)
			if !equalStrings(got, want) {
				fail(i, "active keys = %v, want %v", got, want)
			}

		case AssertRowCount:
			total, active, err := st.CountRows(ctx, &scenario.Dataset, scenario.System.ID)
			if err != nil {
				fail(i, "counting rows: %v", err)
				continue
			}
			if total != int64(a.Total) || active != int64(a.Active) {
				fail(i, "row count total=%d active=%d, want total=%d active=%d", total, active, a.Total, a.Active)
			}

		case AssertRunCount:
			runs, err := st.RecentRuns(ctx, a.Count+1)
			if err != nil {
				fail(i, "reading sync log: %v", err)
				continue
			}
			if len(runs) != a.Count {
				fail(i, "sync log has %d runs, want %d", len(runs), a.Count)
			}
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
