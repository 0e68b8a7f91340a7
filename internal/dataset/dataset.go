// Package dataset defines the declarative descriptors that parameterize the
// reconciliation engine.
//
// One descriptor fully describes how one remote entity type is mirrored:
// the entity name requested from the vendor API, the explicit remote field
// list, the local mirror table, the business-key columns, and the per-field
// sanitizer kind. The engine itself carries no per-entity control flow;
// adding a new mirrored dataset means adding a descriptor, not code.
package dataset

import (
	"fmt"
	"regexp"
)

// FieldKind selects the sanitizer applied to a decoded field value before
// storage.
type FieldKind string

const (
	// KindText stores the value as NFC-normalized text.
	KindText FieldKind = "text"

	// KindDate parses DD/MM/YYYY[ HH:MM:SS] into a timestamp; malformed
	// input stores NULL.
	KindDate FieldKind = "date"

	// KindDecimal clamps the value to the mirror column's NUMERIC(15,2)
	// range; non-numeric input stores NULL.
	KindDecimal FieldKind = "decimal"
)

// ValidKinds lists the allowed field kinds.
var ValidKinds = []FieldKind{KindText, KindDate, KindDecimal}

// Field maps one remote field to one mirror column.
type Field struct {
	// Remote is the field name as declared by the API's field metadata.
	Remote string

	// Column is the mirror table column the value lands in.
	Column string

	// Kind selects the sanitizer for this field.
	Kind FieldKind

	// Key marks this field as part of the business key. Key fields must be
	// present on every decoded record; together with the system identifier
	// they uniquely address a mirror row.
	Key bool
}

// Descriptor describes one mirrored dataset.
type Descriptor struct {
	// Name is the descriptor label, used in CLI output and the sync log.
	Name string

	// Entity is the remote entity type named in the snapshot query.
	Entity string

	// Table is the local mirror table.
	Table string

	// Fields lists every mirrored field in remote declaration order.
	Fields []Field
}

// identRe bounds table and column names to plain SQL identifiers. Descriptor
// names are interpolated into DDL and DML, so anything fancier is rejected
// at load time.
var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// reservedColumns are the control attributes every mirror table carries;
// descriptors may not redeclare them.
var reservedColumns = map[string]bool{
	"system_id":    true,
	"active":       true,
	"last_sync_at": true,
	"created_at":   true,
}

// Validate checks a descriptor for internal consistency. It returns the
// first problem found as a *ValidationError.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return &ValidationError{Field: "name", Message: "descriptor name is required"}
	}
	if d.Entity == "" {
		return &ValidationError{Dataset: d.Name, Field: "entity", Message: "entity is required"}
	}
	if d.Table == "" {
		return &ValidationError{Dataset: d.Name, Field: "table", Message: "table is required"}
	}
	if !identRe.MatchString(d.Table) {
		return &ValidationError{Dataset: d.Name, Field: "table", Message: fmt.Sprintf("invalid table name %q", d.Table)}
	}
	if len(d.Fields) == 0 {
		return &ValidationError{Dataset: d.Name, Field: "fields", Message: "at least one field is required"}
	}

	seenRemote := make(map[string]bool, len(d.Fields))
	seenColumn := make(map[string]bool, len(d.Fields))
	hasKey := false
	for i, f := range d.Fields {
		where := fmt.Sprintf("fields[%d]", i)
		if f.Remote == "" {
			return &ValidationError{Dataset: d.Name, Field: where, Message: "remote field name is required"}
		}
		if f.Column == "" {
			return &ValidationError{Dataset: d.Name, Field: where, Message: "column is required"}
		}
		if !identRe.MatchString(f.Column) {
			return &ValidationError{Dataset: d.Name, Field: where, Message: fmt.Sprintf("invalid column name %q", f.Column)}
		}
		if reservedColumns[f.Column] {
			return &ValidationError{Dataset: d.Name, Field: where, Message: fmt.Sprintf("column %q is reserved for control attributes", f.Column)}
		}
		if seenRemote[f.Remote] {
			return &ValidationError{Dataset: d.Name, Field: where, Message: fmt.Sprintf("remote field %q declared twice", f.Remote)}
		}
		if seenColumn[f.Column] {
			return &ValidationError{Dataset: d.Name, Field: where, Message: fmt.Sprintf("column %q declared twice", f.Column)}
		}
		seenRemote[f.Remote] = true
		seenColumn[f.Column] = true

		if !validKind(f.Kind) {
			return &ValidationError{Dataset: d.Name, Field: where, Message: fmt.Sprintf("unknown kind %q (want one of %v)", f.Kind, ValidKinds)}
		}
		if f.Key {
			hasKey = true
			if f.Kind != KindText {
				return &ValidationError{Dataset: d.Name, Field: where, Message: "key fields must be of kind \"text\""}
			}
		}
	}
	if !hasKey {
		return &ValidationError{Dataset: d.Name, Field: "fields", Message: "at least one key field is required"}
	}
	return nil
}

// KeyFields returns the business-key fields in declaration order.
func (d *Descriptor) KeyFields() []Field {
	var keys []Field
	for _, f := range d.Fields {
		if f.Key {
			keys = append(keys, f)
		}
	}
	return keys
}

// RemoteFields returns the explicit field list for the snapshot query, in
// declaration order.
func (d *Descriptor) RemoteFields() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Remote
	}
	return names
}

// ValidationError reports a single descriptor problem.
type ValidationError struct {
	Dataset string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Dataset != "" {
		return fmt.Sprintf("dataset %q: %s: %s", e.Dataset, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validKind(k FieldKind) bool {
	for _, v := range ValidKinds {
		if k == v {
			return true
		}
	}
	return false
}
