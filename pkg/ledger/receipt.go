package ledger

import "fmt"

// StateChangeType is the kind of a state change.
type StateChangeType uint8

const (
	Set StateChangeType = iota
	Delete
)

func (t StateChangeType) String() string {
	switch t {
	case Set:
		return "set"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("StateChangeType(%d)", uint8(t))
	}
}

// StateChange is a write or a delete of a single key.
type StateChange struct {
	Type  StateChangeType
	Key   []byte
	Value []byte
}

// TransactionReceipt is the outcome of executing one transaction.
//
// A valid receipt carries the ordered state changes, an invalid one
// carries the error reported by the handler.
type TransactionReceipt struct {
	TransactionID string
	Valid         bool
	StateChanges  []StateChange
	ErrorMessage  string
	ErrorData     []byte
}

// BatchExecutionResult is the result of executing a batch. Err is set
// when the execution failed independently of the transactions'
// validity, the receipts are then incomplete.
type BatchExecutionResult struct {
	Batch    *BatchPair
	Receipts []TransactionReceipt
	Err      error
}
