package prodcon

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/helinwang/prodcon/pkg/ledger"
	"github.com/helinwang/prodcon/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, scheme ledger.Scheme) (*Pipeline, *state.MerkleState) {
	store, err := state.NewMemState(16)
	require.NoError(t, err)

	s, err := ledger.NewRandomSigner(scheme)
	require.NoError(t, err)
	v, err := ledger.NewVerifier(scheme)
	require.NoError(t, err)

	e, err := NewEngine(store, v)
	require.NoError(t, err)
	t.Cleanup(e.Stop)

	p := NewPipeline(NewBatcher(s), e.Orchestrator(5*time.Second), store, store.EmptyRoot(), nil)
	return p, store
}

func requireQuantity(t *testing.T, store *state.MerkleState, root ledger.Hash, id string, want uint64) {
	q, err := Quantity(store, root, id)
	require.NoError(t, err)
	assert.Equal(t, want, q, id)
}

func TestPipelineProduceConsume(t *testing.T) {
	for _, scheme := range []ledger.Scheme{ledger.Secp256k1, ledger.BLS} {
		p, store := newTestPipeline(t, scheme)
		ctx := context.Background()
		r0 := p.Root()

		r1, err := p.Process(ctx, "PRODUCE widget 5")
		require.NoError(t, err, string(scheme))
		assert.NotEqual(t, r0, r1)
		assert.Equal(t, r1, p.Root())
		requireQuantity(t, store, r1, "widget", 5)

		r2, err := p.Process(ctx, "CONSUME widget 3")
		require.NoError(t, err)
		assert.NotEqual(t, r1, r2)
		assert.Equal(t, r2, store.Head())
		requireQuantity(t, store, r2, "widget", 2)

		// older versions stay readable
		requireQuantity(t, store, r1, "widget", 5)
		assert.Equal(t, int64(2), p.Metrics().Committed())
		assert.Equal(t, AwaitInput, p.Stage())
	}
}

func TestPipelineConsumeZero(t *testing.T) {
	p, store := newTestPipeline(t, ledger.Secp256k1)
	ctx := context.Background()

	_, err := p.Process(ctx, "PRODUCE widget 3")
	require.NoError(t, err)
	r, err := p.Process(ctx, "CONSUME widget 3")
	require.NoError(t, err)
	requireQuantity(t, store, r, "widget", 0)

	items, err := Inventory(store, r)
	require.NoError(t, err)
	assert.Equal(t, []Item{{Identifier: "widget", Quantity: 0}}, items)
}

func TestPipelineRejected(t *testing.T) {
	p, store := newTestPipeline(t, ledger.Secp256k1)
	ctx := context.Background()

	_, err := p.Process(ctx, "PRODUCE widget 5")
	require.NoError(t, err)
	r2, err := p.Process(ctx, "CONSUME widget 3")
	require.NoError(t, err)

	r, err := p.Process(ctx, "CONSUME widget 10")
	assert.True(t, errors.Is(err, ErrTransactionRejected), "%v", err)
	assert.Contains(t, err.Error(), "insufficient quantity")
	assert.Equal(t, r2, r)
	assert.Equal(t, r2, p.Root())
	assert.Equal(t, r2, store.Head())
	requireQuantity(t, store, r2, "widget", 2)
	assert.Equal(t, int64(1), p.Metrics().Rejected())
	assert.Equal(t, Aborted, p.Stage())

	_, err = p.Process(ctx, "PRODUCE widget 1")
	assert.Equal(t, ErrAborted, err)
}

func TestPipelineFormatError(t *testing.T) {
	p, store := newTestPipeline(t, ledger.Secp256k1)
	r0 := p.Root()

	r, err := p.Process(context.Background(), "PRODUCE widget")
	assert.True(t, errors.Is(err, ErrFormat), "%v", err)
	assert.Equal(t, r0, r)
	assert.Equal(t, r0, store.Head())
	assert.Equal(t, int64(0), p.Metrics().schedule.Count())
}

func TestPipelineIndependentItems(t *testing.T) {
	p, store := newTestPipeline(t, ledger.Secp256k1)
	ctx := context.Background()

	_, err := p.Process(ctx, "PRODUCE q1 4")
	require.NoError(t, err)
	r, err := p.Process(ctx, "PRODUCE q2 9")
	require.NoError(t, err)
	requireQuantity(t, store, r, "q1", 4)
	requireQuantity(t, store, r, "q2", 9)

	r, err = p.Process(ctx, "CONSUME q1 4")
	require.NoError(t, err)
	requireQuantity(t, store, r, "q1", 0)
	requireQuantity(t, store, r, "q2", 9)

	items, err := Inventory(store, r)
	require.NoError(t, err)
	assert.Equal(t, []Item{{"q1", 0}, {"q2", 9}}, items)
}

func TestForeignBatchSignerRejected(t *testing.T) {
	store, err := state.NewMemState(16)
	require.NoError(t, err)
	v, err := ledger.NewVerifier(ledger.Secp256k1)
	require.NoError(t, err)
	e, err := NewEngine(store, v)
	require.NoError(t, err)
	defer e.Stop()

	a, err := ledger.NewRandomSigner(ledger.Secp256k1)
	require.NoError(t, err)
	b, err := ledger.NewRandomSigner(ledger.Secp256k1)
	require.NoError(t, err)

	payload, inputs, outputs, err := Encode("PRODUCE widget 5")
	require.NoError(t, err)
	txn, err := NewBatcher(a).BuildTransaction(payload, inputs, outputs)
	require.NoError(t, err)
	batch, err := NewBatcher(b).BuildBatch(txn)
	require.NoError(t, err)

	root := store.EmptyRoot()
	result, err := e.Orchestrator(5*time.Second).Execute(context.Background(), batch, root)
	require.NoError(t, err)

	_, err = Commit(store, root, result)
	assert.True(t, errors.Is(err, ErrTransactionRejected), "%v", err)
	assert.Contains(t, err.Error(), ledger.ErrBatcherMismatch.Error())
	assert.Equal(t, root, store.Head())
}

func TestPipelineRun(t *testing.T) {
	p, store := newTestPipeline(t, ledger.Secp256k1)
	in := strings.NewReader("PRODUCE a 1\n\n  \nCONSUME a 1\n")
	var out bytes.Buffer

	err := p.Run(context.Background(), in, &out)
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(out.String(), "Enter your command: "))
	assert.Equal(t, 2, strings.Count(out.String(), "Done, state root "))
	requireQuantity(t, store, p.Root(), "a", 0)
}

func TestPipelineRunStopsOnError(t *testing.T) {
	p, _ := newTestPipeline(t, ledger.Secp256k1)
	in := strings.NewReader("PRODUCE a 1\nEAT a 1\nPRODUCE a 2\n")
	var out bytes.Buffer

	err := p.Run(context.Background(), in, &out)
	assert.True(t, errors.Is(err, ErrFormat), "%v", err)
	assert.Equal(t, 1, strings.Count(out.String(), "Done"))
	assert.Equal(t, ErrAborted, p.Run(context.Background(), strings.NewReader("PRODUCE a 1\n"), &out))
}

func TestPipelineRunCancelledWhileWaitingForInput(t *testing.T) {
	p, _ := newTestPipeline(t, ledger.Secp256k1)
	r0 := p.Root()

	// nothing is ever written, reads block until the writer closes
	in, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	var out bytes.Buffer
	go func() {
		errc <- p.Run(ctx, in, &out)
	}()

	cancel()
	select {
	case err := <-errc:
		assert.True(t, errors.Is(err, context.Canceled), "%v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	assert.Equal(t, r0, p.Root())
	assert.Equal(t, AwaitInput, p.Stage())
	assert.Equal(t, int64(0), p.Metrics().schedule.Count())
}
