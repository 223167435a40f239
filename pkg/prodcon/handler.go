package prodcon

import (
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
	log "github.com/helinwang/log15"
	"github.com/helinwang/prodcon/pkg/execution"
	"github.com/helinwang/prodcon/pkg/ledger"
	"github.com/helinwang/prodcon/pkg/state"
)

// Item is the record stored at the address of an item.
type Item struct {
	Identifier string
	Quantity   uint64
}

// Encode returns the RLP encoding of the item.
func (i *Item) Encode() []byte {
	b, err := rlp.EncodeToBytes(i)
	if err != nil {
		// should never happen
		panic(err)
	}

	return b
}

func decodeItem(b []byte) (Item, error) {
	var i Item
	err := rlp.DecodeBytes(b, &i)
	return i, err
}

// Handler applies PRODUCE and CONSUME commands to the stored
// quantities.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) FamilyName() string {
	return FamilyName
}

func (h *Handler) FamilyVersions() []string {
	return []string{FamilyVersion}
}

// Apply produces or consumes the quantity of the item. It writes the
// new item record even when the quantity drops to zero.
func (h *Handler) Apply(txn *ledger.TransactionPair, ctx execution.TransactionContext) error {
	c, err := DecodeCommand(txn.Transaction.Payload)
	if err != nil {
		return execution.InvalidTransaction("invalid payload: %v", err)
	}

	if c.Identifier == "" {
		return execution.InvalidTransaction("missing identifier")
	}

	if c.Quantity <= 0 {
		return execution.InvalidTransaction("quantity must be positive, got %d", c.Quantity)
	}

	addr := Address(c.Identifier)
	entries, err := ctx.GetState([][]byte{addr})
	if err != nil {
		return err
	}

	item := Item{Identifier: c.Identifier}
	if b, ok := entries[string(addr)]; ok {
		item, err = decodeItem(b)
		if err != nil {
			return err
		}

		if item.Identifier != c.Identifier {
			return execution.InvalidTransaction("address of %s is taken by %s", c.Identifier, item.Identifier)
		}
	}

	q := uint64(c.Quantity)
	switch c.Action {
	case Produce:
		if item.Quantity+q < item.Quantity {
			return execution.InvalidTransaction("quantity of %s overflows", c.Identifier)
		}
		item.Quantity += q
	case Consume:
		if item.Quantity < q {
			return execution.InvalidTransaction("insufficient quantity for %s: have %d, want %d", c.Identifier, item.Quantity, q)
		}
		item.Quantity -= q
	default:
		return execution.InvalidTransaction("unknown action %v", c.Action)
	}

	log.Debug("item updated", "action", c.Action, "item", c.Identifier, "quantity", item.Quantity)
	return ctx.SetState(map[string][]byte{string(addr): item.Encode()})
}

// StateReader reads a state version.
type StateReader interface {
	Get(root ledger.Hash, keys [][]byte) (map[string][]byte, error)
}

// Quantity returns the stored quantity of the item at the root, zero
// if the item was never produced.
func Quantity(r StateReader, root ledger.Hash, identifier string) (uint64, error) {
	addr := Address(identifier)
	entries, err := r.Get(root, [][]byte{addr})
	if err != nil {
		return 0, err
	}

	b, ok := entries[string(addr)]
	if !ok {
		return 0, nil
	}

	item, err := decodeItem(b)
	if err != nil {
		return 0, err
	}

	return item.Quantity, nil
}

// LeafReader lists the key-value pairs of a state version.
type LeafReader interface {
	Leaves(root ledger.Hash, prefix []byte) ([]state.Leaf, error)
}

// Inventory returns every item stored at the root, ordered by
// identifier.
func Inventory(r LeafReader, root ledger.Hash) ([]Item, error) {
	leaves, err := r.Leaves(root, Namespace)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(leaves))
	for _, l := range leaves {
		item, err := decodeItem(l.Value)
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Identifier < items[j].Identifier
	})
	return items, nil
}
