package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/remora-io/remora/internal/dataset"
)

// createTestStore creates a file-backed store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testDescriptor returns a small transactions descriptor with a single-column
// business key.
func testDescriptor() *dataset.Descriptor {
	return &dataset.Descriptor{
		Name:   "transactions",
		Entity: "TRANSACTIONS",
		Table:  "mirror_transactions",
		Fields: []dataset.Field{
			{Remote: "TransId", Column: "trans_id", Kind: dataset.KindText, Key: true},
			{Remote: "RefDate", Column: "ref_date", Kind: dataset.KindDate},
			{Remote: "Amount", Column: "amount", Kind: dataset.KindDecimal},
		},
	}
}

// createMirror creates the mirror table for testDescriptor on s.
func createMirror(t *testing.T, s *Store, d *dataset.Descriptor) {
	t.Helper()
	if err := s.EnsureMirrorTable(context.Background(), d); err != nil {
		t.Fatalf("EnsureMirrorTable() failed: %v", err)
	}
}

// testRow builds a Row for testDescriptor.
func testRow(transID string, amount float64) Row {
	return Row{
		Key: map[string]string{"trans_id": transID},
		Columns: map[string]any{
			"ref_date": time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
			"amount":   amount,
		},
	}
}
