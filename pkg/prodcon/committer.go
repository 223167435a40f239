package prodcon

import (
	"errors"
	"fmt"

	"github.com/helinwang/prodcon/pkg/ledger"
)

// StateStore commits state changes on top of a state root.
type StateStore interface {
	Commit(root ledger.Hash, changes []ledger.StateChange) (ledger.Hash, error)
}

// Commit applies the single state change of the result on top of cur
// and returns the new root. The result must hold exactly one valid
// receipt with exactly one set.
func Commit(store StateStore, cur ledger.Hash, result *ledger.BatchExecutionResult) (ledger.Hash, error) {
	change, err := extractChange(result)
	if err != nil {
		return ledger.Hash{}, err
	}

	root, err := store.Commit(cur, []ledger.StateChange{change})
	if err != nil {
		return ledger.Hash{}, &Error{Kind: ErrStateStore, Op: "commit", Err: err}
	}

	return root, nil
}

func extractChange(result *ledger.BatchExecutionResult) (ledger.StateChange, error) {
	var n int
	if result != nil {
		n = len(result.Receipts)
	}

	if n != 1 {
		return ledger.StateChange{}, &Error{Kind: ErrResultShape, Err: fmt.Errorf("got %d receipts, want 1", n)}
	}

	receipt := result.Receipts[0]
	if !receipt.Valid {
		return ledger.StateChange{}, &Error{Kind: ErrTransactionRejected, Err: errors.New(receipt.ErrorMessage)}
	}

	switch len(receipt.StateChanges) {
	case 0:
		return ledger.StateChange{}, &Error{Kind: ErrNoStateChange, Op: "transaction " + receipt.TransactionID}
	case 1:
	default:
		return ledger.StateChange{}, &Error{Kind: ErrResultShape, Err: fmt.Errorf("got %d state changes, want 1", len(receipt.StateChanges))}
	}

	change := receipt.StateChanges[0]
	if change.Type != ledger.Set {
		return ledger.StateChange{}, &Error{Kind: ErrUnsupportedOperation, Err: fmt.Errorf("%s of key %x", change.Type, change.Key)}
	}

	return change, nil
}
