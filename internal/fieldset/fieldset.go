// Package fieldset decodes positionally-encoded vendor API responses into
// named records.
//
// The vendor API does not return named columns. Each response carries a
// field-metadata list mapping positional indices to field names, and an
// entity collection whose values are keyed by positional placeholders
// ("f0", "f1", ...). Decoding is an explicit two-phase operation: build the
// index→name table first, then map every raw entity through it. Metadata
// parsing and row extraction are never interleaved.
package fieldset

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FieldMeta maps one positional index to a declared field name.
type FieldMeta struct {
	Index int    `json:"fieldIndex"`
	Name  string `json:"fieldName"`
}

// Record is one decoded entity with values keyed by declared field name.
// Records are ephemeral: they exist only for the reconciliation pass that
// produced them.
type Record map[string]any

// EntityList accepts either a single JSON object or an array of objects.
// The transport layer collapses single-row results to a bare object, so the
// decoder must treat both shapes uniformly.
type EntityList []map[string]any

// UnmarshalJSON implements json.Unmarshaler.
func (l *EntityList) UnmarshalJSON(data []byte) error {
	// Try the common case first: an array of entities.
	var many []map[string]any
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}

	var one map[string]any
	if err := json.Unmarshal(data, &one); err != nil {
		return fmt.Errorf("entity list is neither object nor array: %w", err)
	}
	*l = EntityList{one}
	return nil
}

// Response is the wire shape of one full-snapshot query result.
//
// An absent or empty entity collection is a valid zero-row snapshot, not an
// error: the caller must still run its stale-marking pass.
type Response struct {
	Metadata []FieldMeta `json:"fields"`
	Entities EntityList  `json:"entities"`
}

// MalformedResponseError indicates a response whose shape cannot be decoded:
// field metadata is missing or inconsistent while entities are present.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "malformed response: " + e.Reason
}

// IsMalformed reports whether err is a MalformedResponseError.
// Uses errors.As to handle wrapped errors.
func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}

// Decode converts a positional response into named records.
//
// Phase one validates the metadata and builds the index→name table. Phase
// two copies, for each entity and each declared index, the value found under
// the positional placeholder into the output record under the declared name.
// Positions absent from an entity are simply omitted from its record, not
// set to a placeholder.
//
// A response with zero entities decodes to zero records regardless of
// metadata. A response carrying entities but no usable metadata is a
// MalformedResponseError.
func Decode(resp Response) ([]Record, error) {
	if len(resp.Entities) == 0 {
		return nil, nil
	}

	table, err := buildFieldTable(resp.Metadata)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(resp.Entities))
	for _, entity := range resp.Entities {
		rec := make(Record, len(table))
		for idx, name := range table {
			if v, ok := entity[positionKey(idx)]; ok {
				rec[name] = v
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// buildFieldTable is phase one: metadata → index→name table.
func buildFieldTable(meta []FieldMeta) (map[int]string, error) {
	if len(meta) == 0 {
		return nil, &MalformedResponseError{Reason: "field metadata is absent"}
	}

	table := make(map[int]string, len(meta))
	for _, m := range meta {
		if m.Name == "" {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("field index %d has empty name", m.Index)}
		}
		if m.Index < 0 {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("field %q has negative index %d", m.Name, m.Index)}
		}
		if existing, dup := table[m.Index]; dup {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("field index %d declared twice (%q, %q)", m.Index, existing, m.Name)}
		}
		table[m.Index] = m.Name
	}
	return table, nil
}

func positionKey(idx int) string {
	return fmt.Sprintf("f%d", idx)
}
