package execution

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/helinwang/prodcon/pkg/ledger"
)

// StateReader reads a state version.
type StateReader interface {
	Get(root ledger.Hash, keys [][]byte) (map[string][]byte, error)
	Has(root ledger.Hash) bool
}

type stateContext struct {
	root ledger.Hash
	base []ContextID
	// nil value marks a deleted key
	values  map[string][]byte
	changes []ledger.StateChange
}

// ContextManager keeps the uncommitted state changes of executing
// transactions. A context reads its own changes first, then the
// changes of its base contexts, latest first, then the state version.
type ContextManager struct {
	reader StateReader

	mu       sync.Mutex
	contexts map[ContextID]*stateContext
}

func NewContextManager(reader StateReader) *ContextManager {
	return &ContextManager{
		reader:   reader,
		contexts: make(map[ContextID]*stateContext),
	}
}

// HasRoot returns true if the root is a known state version.
func (m *ContextManager) HasRoot(root ledger.Hash) bool {
	return m.reader.Has(root)
}

// CreateContext creates a context on top of the root and the base
// contexts.
func (m *ContextManager) CreateContext(root ledger.Hash, base []ContextID) (ContextID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range base {
		if _, ok := m.contexts[id]; !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownContext, id)
		}
	}

	id := ContextID(uuid.New().String())
	m.contexts[id] = &stateContext{
		root:   root,
		base:   append([]ContextID(nil), base...),
		values: make(map[string][]byte),
	}
	return id, nil
}

func (m *ContextManager) lookup(c *stateContext, key string) ([]byte, bool) {
	if v, ok := c.values[key]; ok {
		return v, true
	}

	for i := len(c.base) - 1; i >= 0; i-- {
		b := m.contexts[c.base[i]]
		if b == nil {
			continue
		}

		if v, ok := m.lookup(b, key); ok {
			return v, true
		}
	}

	return nil, false
}

// Get returns the values of keys seen from the context. Missing or
// deleted keys are absent from the returned map.
func (m *ContextManager) Get(id ContextID, keys [][]byte) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contexts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContext, id)
	}

	r := make(map[string][]byte, len(keys))
	var remaining [][]byte
	for _, k := range keys {
		v, ok := m.lookup(c, string(k))
		if !ok {
			remaining = append(remaining, k)
			continue
		}

		if v != nil {
			r[string(k)] = v
		}
	}

	if len(remaining) == 0 {
		return r, nil
	}

	stored, err := m.reader.Get(c.root, remaining)
	if err != nil {
		return nil, err
	}

	for k, v := range stored {
		r[k] = v
	}
	return r, nil
}

func (c *stateContext) record(change ledger.StateChange) {
	for i := range c.changes {
		if bytes.Equal(c.changes[i].Key, change.Key) {
			c.changes[i] = change
			return
		}
	}

	c.changes = append(c.changes, change)
}

func sortedKeys(entries map[string][]byte) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set writes the entries in the context, in key order.
func (m *ContextManager) Set(id ContextID, entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contexts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContext, id)
	}

	for _, k := range sortedKeys(entries) {
		v := append([]byte(nil), entries[k]...)
		c.values[k] = v
		c.record(ledger.StateChange{Type: ledger.Set, Key: []byte(k), Value: v})
	}
	return nil
}

// Delete deletes the keys in the context.
func (m *ContextManager) Delete(id ContextID, keys [][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contexts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContext, id)
	}

	for _, k := range keys {
		c.values[string(k)] = nil
		c.record(ledger.StateChange{Type: ledger.Delete, Key: append([]byte(nil), k...)})
	}
	return nil
}

// GetTransactionReceipt returns the valid receipt carrying the state
// changes of the context, in the order they were first made.
func (m *ContextManager) GetTransactionReceipt(id ContextID, txnID string) (ledger.TransactionReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contexts[id]
	if !ok {
		return ledger.TransactionReceipt{}, fmt.Errorf("%w: %s", ErrUnknownContext, id)
	}

	changes := make([]ledger.StateChange, len(c.changes))
	copy(changes, c.changes)
	return ledger.TransactionReceipt{
		TransactionID: txnID,
		Valid:         true,
		StateChanges:  changes,
	}, nil
}

// DropContext releases the context.
func (m *ContextManager) DropContext(id ContextID) {
	m.mu.Lock()
	delete(m.contexts, id)
	m.mu.Unlock()
}

type txnContext struct {
	cm      *ContextManager
	id      ContextID
	inputs  [][]byte
	outputs [][]byte
}

func declared(addrs [][]byte, addr []byte) bool {
	for _, a := range addrs {
		if bytes.HasPrefix(addr, a) {
			return true
		}
	}
	return false
}

func (c *txnContext) GetState(addresses [][]byte) (map[string][]byte, error) {
	for _, a := range addresses {
		if !declared(c.inputs, a) {
			return nil, fmt.Errorf("%w: read %x", ErrAuthorization, a)
		}
	}

	return c.cm.Get(c.id, addresses)
}

func (c *txnContext) SetState(entries map[string][]byte) error {
	for k := range entries {
		if !declared(c.outputs, []byte(k)) {
			return fmt.Errorf("%w: write %x", ErrAuthorization, k)
		}
	}

	return c.cm.Set(c.id, entries)
}

func (c *txnContext) DeleteState(addresses [][]byte) error {
	for _, a := range addresses {
		if !declared(c.outputs, a) {
			return fmt.Errorf("%w: delete %x", ErrAuthorization, a)
		}
	}

	return c.cm.Delete(c.id, addresses)
}
