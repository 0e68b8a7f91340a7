package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/remora-io/remora/internal/config"
	"github.com/remora-io/remora/internal/dataset"
)

// Scenario defines one conformance test: a dataset, a system, a series of
// reconciliation passes, and assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Dataset is the descriptor the passes reconcile. It is validated
	// with the same rules as production descriptors.
	Dataset dataset.Descriptor `yaml:"dataset"`

	// System identifies the remote system the passes run against.
	System SystemSpec `yaml:"system"`

	// Passes are executed in order against one shared store.
	Passes []Pass `yaml:"passes"`

	// Assertions validate the final mirror state and sync log.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SystemSpec names the simulated remote system.
type SystemSpec struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

// Pass is one reconciliation run. Snapshot rows are keyed by remote field
// name; the harness converts them to the positional wire shape before
// handing them to the reconciler.
type Pass struct {
	// Snapshot is the full entity set the remote returns for this pass.
	// An empty snapshot is valid and tombstones every active row.
	Snapshot []map[string]any `yaml:"snapshot,omitempty"`

	// Fail injects a fatal failure instead of serving the snapshot.
	// One of "token", "fetch", "malformed".
	Fail string `yaml:"fail,omitempty"`

	// Advance moves the frozen clock forward before the pass runs.
	Advance config.Duration `yaml:"advance,omitempty"`

	// Expect optionally checks the pass counters.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause checks SyncResult counters. Only non-nil fields are
// validated; an omitted field is a don't-care.
type ExpectClause struct {
	Success      *bool  `yaml:"success,omitempty"`
	TotalFetched *int   `yaml:"total_fetched,omitempty"`
	Inserted     *int   `yaml:"inserted,omitempty"`
	Updated      *int   `yaml:"updated,omitempty"`
	MarkedStale  *int   `yaml:"marked_stale,omitempty"`
	Skipped      *int   `yaml:"skipped,omitempty"`
	ErrorCode    string `yaml:"error_code,omitempty"`
}

// Assertion validates final mirror state or the sync log.
type Assertion struct {
	// Type is one of "active_keys", "row_count", "run_count".
	Type string `yaml:"type"`

	// Keys is the expected active key set (active_keys). Composite keys
	// join their parts with "|" in field declaration order.
	Keys []string `yaml:"keys,omitempty"`

	// Total and Active are the expected row counts (row_count).
	Total  int `yaml:"total,omitempty"`
	Active int `yaml:"active,omitempty"`

	// Count is the expected sync log length (run_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertActiveKeys = "active_keys"
	AssertRowCount   = "row_count"
	AssertRunCount   = "run_count"
)

// Failure injection constants.
const (
	FailToken     = "token"
	FailFetch     = "fetch"
	FailMalformed = "malformed"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so a typo fails loudly instead of silently skipping a check.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if err := s.Dataset.Validate(); err != nil {
		return fmt.Errorf("dataset: %w", err)
	}
	if s.System.ID == "" {
		return fmt.Errorf("system.id is required")
	}
	if len(s.Passes) == 0 {
		return fmt.Errorf("passes list is required and must be non-empty")
	}

	for i, p := range s.Passes {
		if p.Fail != "" {
			switch p.Fail {
			case FailToken, FailFetch, FailMalformed:
			default:
				return fmt.Errorf("passes[%d]: unknown fail mode %q", i, p.Fail)
			}
			if len(p.Snapshot) > 0 && p.Fail != FailMalformed {
				return fmt.Errorf("passes[%d]: snapshot and fail %q are mutually exclusive", i, p.Fail)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertActiveKeys:
		if a.Keys == nil {
			return fmt.Errorf("assertions[%d]: keys is required for active_keys (use [] for none)", index)
		}
	case AssertRowCount:
		if a.Total < 0 || a.Active < 0 || a.Active > a.Total {
			return fmt.Errorf("assertions[%d]: inconsistent row_count (total=%d, active=%d)", index, a.Total, a.Active)
		}
	case AssertRunCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for run_count", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
