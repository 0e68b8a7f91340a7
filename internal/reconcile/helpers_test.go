package reconcile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/remora-io/remora/internal/dataset"
	"github.com/remora-io/remora/internal/fieldset"
	"github.com/remora-io/remora/internal/remote"
	"github.com/remora-io/remora/internal/store"
	"github.com/remora-io/remora/internal/testutil"
)

var (
	frozenStart = time.Date(2024, time.March, 20, 12, 0, 0, 0, time.UTC)
	testSystem  = remote.System{ID: "sys-1", Label: "Alpha Corp"}
)

// fetcherFunc adapts a function to remote.Fetcher.
type fetcherFunc func(ctx context.Context, cred remote.Credential, q remote.Query) (fieldset.Response, error)

func (f fetcherFunc) FetchSnapshot(ctx context.Context, cred remote.Credential, q remote.Query) (fieldset.Response, error) {
	return f(ctx, cred, q)
}

// staticFetcher always serves the given response.
func staticFetcher(resp fieldset.Response) fetcherFunc {
	return func(context.Context, remote.Credential, remote.Query) (fieldset.Response, error) {
		return resp, nil
	}
}

// sinkFunc adapts a function to LogSink.
type sinkFunc func(ctx context.Context, res SyncResult) error

func (f sinkFunc) Record(ctx context.Context, res SyncResult) error {
	return f(ctx, res)
}

func transactionsDescriptor() *dataset.Descriptor {
	return &dataset.Descriptor{
		Name:   "transactions",
		Entity: "TRANSACTIONS",
		Table:  "mirror_transactions",
		Fields: []dataset.Field{
			{Remote: "TransId", Column: "trans_id", Kind: dataset.KindText, Key: true},
			{Remote: "RefDate", Column: "ref_date", Kind: dataset.KindDate},
			{Remote: "Amount", Column: "amount", Kind: dataset.KindDecimal},
			{Remote: "Memo", Column: "memo", Kind: dataset.KindText},
		},
	}
}

// transactionsMeta is the positional metadata matching transactionsDescriptor.
var transactionsMeta = []fieldset.FieldMeta{
	{Index: 0, Name: "TransId"},
	{Index: 1, Name: "RefDate"},
	{Index: 2, Name: "Amount"},
	{Index: 3, Name: "Memo"},
}

// snapshot builds a response with the transactions metadata and the given
// entities.
func snapshot(entities ...map[string]any) fieldset.Response {
	return fieldset.Response{Metadata: transactionsMeta, Entities: entities}
}

func entity(transID, refDate string, amount any) map[string]any {
	e := map[string]any{"f1": refDate, "f2": amount}
	if transID != "" {
		e["f0"] = transID
	}
	return e
}

// testRig bundles a reconciler wired to a real store with deterministic
// time and run IDs.
type testRig struct {
	st      *store.Store
	clock   *testutil.FrozenClock
	rec     *Reconciler
	desc    *dataset.Descriptor
	fetcher *swappableFetcher
}

// swappableFetcher lets a test change the served snapshot between runs.
type swappableFetcher struct {
	next fetcherFunc
}

func (s *swappableFetcher) FetchSnapshot(ctx context.Context, cred remote.Credential, q remote.Query) (fieldset.Response, error) {
	return s.next(ctx, cred, q)
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	desc := transactionsDescriptor()
	require.NoError(t, desc.Validate())
	require.NoError(t, st.EnsureMirrorTable(context.Background(), desc))

	clock := testutil.NewFrozenClock(frozenStart)
	fetcher := &swappableFetcher{next: staticFetcher(snapshot())}
	tokens := remote.StaticTokens{"sys-1": "tok-1", "sys-2": "tok-2"}

	rec := New(st, tokens, fetcher, StoreSink{Store: st}, &testutil.SequenceRunIDs{})
	rec.Clock = clock.Now

	return &testRig{st: st, clock: clock, rec: rec, desc: desc, fetcher: fetcher}
}

func (rig *testRig) serve(resp fieldset.Response) {
	rig.fetcher.next = staticFetcher(resp)
}

func (rig *testRig) activeKeys(t *testing.T) []string {
	t.Helper()
	keys, err := rig.st.ActiveKeys(context.Background(), rig.desc, testSystem.ID)
	require.NoError(t, err)
	return keys
}
