package prodcon

import (
	"testing"

	"github.com/helinwang/prodcon/pkg/execution"
	"github.com/helinwang/prodcon/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapContext map[string][]byte

func (m mapContext) GetState(addrs [][]byte) (map[string][]byte, error) {
	r := make(map[string][]byte)
	for _, a := range addrs {
		if v, ok := m[string(a)]; ok {
			r[string(a)] = v
		}
	}
	return r, nil
}

func (m mapContext) SetState(entries map[string][]byte) error {
	for k, v := range entries {
		m[k] = v
	}
	return nil
}

func (m mapContext) DeleteState(addrs [][]byte) error {
	for _, a := range addrs {
		delete(m, string(a))
	}
	return nil
}

func apply(t *testing.T, ctx mapContext, c Command) error {
	payload, err := c.Encode()
	require.NoError(t, err)
	txn := &ledger.TransactionPair{Transaction: &ledger.Transaction{Payload: payload}}
	return NewHandler().Apply(txn, ctx)
}

func quantityIn(t *testing.T, ctx mapContext, id string) uint64 {
	b, ok := ctx[string(Address(id))]
	require.True(t, ok)
	item, err := decodeItem(b)
	require.NoError(t, err)
	assert.Equal(t, id, item.Identifier)
	return item.Quantity
}

func TestHandlerProduceConsume(t *testing.T) {
	ctx := make(mapContext)
	require.NoError(t, apply(t, ctx, Command{Action: Produce, Identifier: "widget", Quantity: 5}))
	assert.Equal(t, uint64(5), quantityIn(t, ctx, "widget"))

	require.NoError(t, apply(t, ctx, Command{Action: Produce, Identifier: "widget", Quantity: 2}))
	assert.Equal(t, uint64(7), quantityIn(t, ctx, "widget"))

	require.NoError(t, apply(t, ctx, Command{Action: Consume, Identifier: "widget", Quantity: 7}))
	assert.Equal(t, uint64(0), quantityIn(t, ctx, "widget"))
}

func TestHandlerRejects(t *testing.T) {
	ctx := make(mapContext)
	require.NoError(t, apply(t, ctx, Command{Action: Produce, Identifier: "widget", Quantity: 5}))

	cases := []Command{
		{Action: Consume, Identifier: "widget", Quantity: 6},
		{Action: Consume, Identifier: "gadget", Quantity: 1},
		{Action: Produce, Identifier: "widget", Quantity: 0},
		{Action: Produce, Identifier: "widget", Quantity: -3},
	}

	for _, c := range cases {
		err := apply(t, ctx, c)
		_, ok := err.(*execution.InvalidTransactionError)
		assert.True(t, ok, "%v: %v", c, err)
	}

	assert.Equal(t, uint64(5), quantityIn(t, ctx, "widget"))
	_, ok := ctx[string(Address("gadget"))]
	assert.False(t, ok)
}

func TestHandlerInvalidPayload(t *testing.T) {
	txn := &ledger.TransactionPair{Transaction: &ledger.Transaction{Payload: []byte{0xff}}}
	err := NewHandler().Apply(txn, make(mapContext))
	_, ok := err.(*execution.InvalidTransactionError)
	assert.True(t, ok)
}
