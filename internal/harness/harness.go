package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/remora-io/remora/internal/fieldset"
	"github.com/remora-io/remora/internal/reconcile"
	"github.com/remora-io/remora/internal/remote"
	"github.com/remora-io/remora/internal/store"
	"github.com/remora-io/remora/internal/testutil"
)

// baseTime is the frozen wall-clock start of every scenario. Fixed so that
// result timestamps are identical across runs.
var baseTime = time.Date(2024, time.March, 20, 12, 0, 0, 0, time.UTC)

// Result holds the outcome of one scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool

	// Errors lists every expectation or assertion that failed.
	Errors []string

	// Results holds one SyncResult per executed pass, in order.
	Results []reconcile.SyncResult
}

// swappableFetcher serves whichever response the current pass installed.
type swappableFetcher struct {
	resp fieldset.Response
	err  error
}

func (f *swappableFetcher) FetchSnapshot(context.Context, remote.Credential, remote.Query) (fieldset.Response, error) {
	if f.err != nil {
		return fieldset.Response{}, f.err
	}
	return f.resp, nil
}

// swappableTokens fails credential acquisition when told to.
type swappableTokens struct {
	fail bool
}

func (t *swappableTokens) Acquire(context.Context, string, bool) (remote.Credential, error) {
	if t.fail {
		return remote.Credential{}, errors.New("injected token failure")
	}
	return remote.Credential{Token: "scenario-token"}, nil
}

// Run executes a scenario against an isolated in-memory store and returns
// its result. An error is returned only when the scenario itself cannot be
// executed; expectation failures land in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening scenario store: %w", err)
	}
	defer st.Close()

	if err := st.EnsureMirrorTable(ctx, &scenario.Dataset); err != nil {
		return nil, fmt.Errorf("preparing mirror table: %w", err)
	}

	sys := remote.System{ID: scenario.System.ID, Label: scenario.System.Label}
	clock := testutil.NewFrozenClock(baseTime)
	fetcher := &swappableFetcher{}
	tokens := &swappableTokens{}

	rec := reconcile.New(st, tokens, fetcher, reconcile.StoreSink{Store: st}, &testutil.SequenceRunIDs{})
	rec.Clock = clock.Now

	res := &Result{}
	for i, pass := range scenario.Passes {
		if d := time.Duration(pass.Advance); d > 0 {
			clock.Advance(d)
		}

		tokens.fail = pass.Fail == FailToken
		switch pass.Fail {
		case FailToken:
			fetcher.resp, fetcher.err = fieldset.Response{}, nil
		case FailFetch:
			fetcher.resp, fetcher.err = fieldset.Response{}, errors.New("injected fetch failure")
		case FailMalformed:
			fetcher.resp, fetcher.err = malformedResponse(scenario, pass), nil
		default:
			fetcher.resp, fetcher.err = buildResponse(scenario, pass), nil
		}

		sr := rec.Run(ctx, &scenario.Dataset, sys)
		res.Results = append(res.Results, sr)

		if pass.Expect != nil {
			checkExpect(res, i, pass.Expect, sr)
		}
	}

	applyAssertions(ctx, res, st, scenario)
	res.Pass = len(res.Errors) == 0
	return res, nil
}

// buildResponse converts named snapshot rows into the positional wire shape.
func buildResponse(scenario *Scenario, pass Pass) fieldset.Response {
	remotes := scenario.Dataset.RemoteFields()
	meta := make([]fieldset.FieldMeta, len(remotes))
	for i, name := range remotes {
		meta[i] = fieldset.FieldMeta{Index: i, Name: name}
	}

	entities := make(fieldset.EntityList, 0, len(pass.Snapshot))
	for _, row := range pass.Snapshot {
		entity := make(map[string]any, len(row))
		for i, name := range remotes {
			if v, ok := row[name]; ok {
				entity[fmt.Sprintf("f%d", i)] = v
			}
		}
		entities = append(entities, entity)
	}

	return fieldset.Response{Metadata: meta, Entities: entities}
}

// malformedResponse carries entities but no field metadata, which the
// decoder must reject.
func malformedResponse(scenario *Scenario, pass Pass) fieldset.Response {
	resp := buildResponse(scenario, pass)
	resp.Metadata = nil
	if len(resp.Entities) == 0 {
		resp.Entities = fieldset.EntityList{{"f0": "orphan"}}
	}
	return resp
}
