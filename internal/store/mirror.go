package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/remora-io/remora/internal/dataset"
)

// Row is one sanitized record ready for its mirror table.
//
// Key holds the business-key column values; every key column must be
// present and non-empty. Columns holds the remaining business columns; a
// nil value stores NULL.
type Row struct {
	Key     map[string]string
	Columns map[string]any
}

// UpsertOutcome reports what Upsert did with a row.
type UpsertOutcome int

const (
	// RowInserted means no mirror row existed for the business key.
	RowInserted UpsertOutcome = iota
	// RowUpdated means an existing mirror row was refreshed and reactivated.
	RowUpdated
)

// EnsureMirrorTable creates the mirror table for a descriptor if it does
// not exist. The table carries one column per mirrored business field plus
// the control attributes, with the primary key on (system_id, business key)
// so a visibility race can never produce a ghost duplicate.
func (s *Store) EnsureMirrorTable(ctx context.Context, d *dataset.Descriptor) error {
	var cols []string
	cols = append(cols, "system_id TEXT NOT NULL")
	for _, f := range d.Fields {
		if f.Key {
			cols = append(cols, fmt.Sprintf("%s %s NOT NULL", f.Column, columnType(f.Kind)))
		} else {
			cols = append(cols, fmt.Sprintf("%s %s", f.Column, columnType(f.Kind)))
		}
	}
	cols = append(cols,
		"active INTEGER NOT NULL DEFAULT 1",
		"last_sync_at TIMESTAMP NOT NULL",
		"created_at TIMESTAMP NOT NULL", // set once, never updated
	)

	pk := append([]string{"system_id"}, keyColumns(d)...)
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s,\n\tPRIMARY KEY (%s)\n)",
		d.Table, strings.Join(cols, ",\n\t"), strings.Join(pk, ", "))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create mirror table %s: %w", d.Table, err)
	}

	idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_active ON %s(system_id, active)", d.Table, d.Table)
	if _, err := s.db.ExecContext(ctx, idx); err != nil {
		return fmt.Errorf("create active index for %s: %w", d.Table, err)
	}
	return nil
}

// MarkStale flags every currently-active mirror row of the system as stale
// and refreshes its last_sync_at. Returns the affected row count - an upper
// bound on eventual tombstones, since rows re-upserted later in the same
// transaction flip back to active.
func MarkStale(ctx context.Context, tx *sql.Tx, d *dataset.Descriptor, systemID string, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, fmt.Sprintf(
		"UPDATE %s SET active = 0, last_sync_at = ? WHERE system_id = ? AND active = 1", d.Table),
		now, systemID)
	if err != nil {
		return 0, fmt.Errorf("mark stale in %s: %w", d.Table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark stale in %s: rows affected: %w", d.Table, err)
	}
	return n, nil
}

// Upsert applies one sanitized row within the run transaction.
//
// If a mirror row exists for (system, business key), all business fields
// are updated, the row is reactivated, and last_sync_at is refreshed. If
// not, a new active row is inserted with created_at = last_sync_at = now.
// created_at is immutable after insert.
func Upsert(ctx context.Context, tx *sql.Tx, d *dataset.Descriptor, systemID string, row Row, now time.Time) (UpsertOutcome, error) {
	keyCols := keyColumns(d)
	keyArgs := make([]any, 0, len(keyCols)+1)
	keyArgs = append(keyArgs, systemID)
	for _, col := range keyCols {
		v, ok := row.Key[col]
		if !ok || v == "" {
			return 0, fmt.Errorf("upsert into %s: missing key column %s", d.Table, col)
		}
		keyArgs = append(keyArgs, v)
	}

	var exists int
	err := tx.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT 1 FROM %s WHERE %s", d.Table, keyPredicate(keyCols)), keyArgs...).Scan(&exists)
	switch {
	case err == sql.ErrNoRows:
		return RowInserted, insertRow(ctx, tx, d, systemID, row, now)
	case err != nil:
		return 0, fmt.Errorf("existence check in %s: %w", d.Table, err)
	default:
		return RowUpdated, updateRow(ctx, tx, d, row, keyArgs, now)
	}
}

func insertRow(ctx context.Context, tx *sql.Tx, d *dataset.Descriptor, systemID string, row Row, now time.Time) error {
	cols := []string{"system_id"}
	args := []any{systemID}
	for _, f := range d.Fields {
		cols = append(cols, f.Column)
		if f.Key {
			args = append(args, row.Key[f.Column])
		} else {
			args = append(args, row.Columns[f.Column])
		}
	}
	cols = append(cols, "active", "last_sync_at", "created_at")
	args = append(args, 1, now, now)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	_, err := tx.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)", d.Table, strings.Join(cols, ", "), placeholders), args...)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", d.Table, err)
	}
	return nil
}

func updateRow(ctx context.Context, tx *sql.Tx, d *dataset.Descriptor, row Row, keyArgs []any, now time.Time) error {
	var sets []string
	var args []any
	for _, f := range d.Fields {
		if f.Key {
			continue
		}
		sets = append(sets, f.Column+" = ?")
		args = append(args, row.Columns[f.Column])
	}
	sets = append(sets, "active = 1", "last_sync_at = ?")
	args = append(args, now)
	args = append(args, keyArgs...)

	_, err := tx.ExecContext(ctx, fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s", d.Table, strings.Join(sets, ", "), keyPredicate(keyColumns(d))), args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", d.Table, err)
	}
	return nil
}

// ActiveKeys returns the business keys of every active mirror row for a
// system, composite key parts joined with "|", sorted by the key columns.
// Used by tests and the status command.
func (s *Store) ActiveKeys(ctx context.Context, d *dataset.Descriptor, systemID string) ([]string, error) {
	keyCols := keyColumns(d)
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE system_id = ? AND active = 1 ORDER BY %s",
		strings.Join(keyCols, ", "), d.Table, strings.Join(keyCols, ", "))

	rows, err := s.db.QueryContext(ctx, query, systemID)
	if err != nil {
		return nil, fmt.Errorf("query active keys in %s: %w", d.Table, err)
	}
	defer rows.Close()

	var keys []string
	scan := make([]string, len(keyCols))
	ptrs := make([]any, len(keyCols))
	for i := range scan {
		ptrs[i] = &scan[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan active key in %s: %w", d.Table, err)
		}
		keys = append(keys, strings.Join(scan, "|"))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active keys in %s: %w", d.Table, err)
	}
	return keys, nil
}

// CountRows returns total and active row counts for a system's mirror table.
func (s *Store) CountRows(ctx context.Context, d *dataset.Descriptor, systemID string) (total, active int64, err error) {
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT COUNT(*), COALESCE(SUM(active), 0) FROM %s WHERE system_id = ?", d.Table),
		systemID).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("count rows in %s: %w", d.Table, err)
	}
	return total, active, nil
}

func keyColumns(d *dataset.Descriptor) []string {
	var cols []string
	for _, f := range d.KeyFields() {
		cols = append(cols, f.Column)
	}
	return cols
}

func keyPredicate(keyCols []string) string {
	preds := []string{"system_id = ?"}
	for _, col := range keyCols {
		preds = append(preds, col+" = ?")
	}
	return strings.Join(preds, " AND ")
}

func columnType(k dataset.FieldKind) string {
	switch k {
	case dataset.KindDate:
		return "TIMESTAMP"
	case dataset.KindDecimal:
		return "NUMERIC(15,2)"
	default:
		return "TEXT"
	}
}
