// Package execution runs signed batches against a state version.
//
// A Scheduler turns batches into a stream of Tasks, each bound to a
// state context. An Executor applies every task with the transaction
// handler of its family and reports back through a Notifier. Once
// every transaction of a batch has been reported, the scheduler hands
// the batch result to its result callback.
package execution

import (
	"errors"
	"fmt"

	"github.com/helinwang/prodcon/pkg/ledger"
)

var (
	ErrFinalized         = errors.New("scheduler is finalized")
	ErrCancelled         = errors.New("scheduler is cancelled")
	ErrTaskIteratorTaken = errors.New("task iterator already taken")
	ErrNotStarted        = errors.New("executor is not started")
	ErrAlreadyStarted    = errors.New("executor is already started")
	ErrUnknownContext    = errors.New("unknown context")
	ErrUnknownRoot       = errors.New("unknown state root")
	ErrAuthorization     = errors.New("address not declared by the transaction")
)

// ContextID identifies a state context.
type ContextID string

// Task is one transaction to execute in its context.
type Task struct {
	Pair      *ledger.TransactionPair
	ContextID ContextID
}

// Notification reports the outcome of a task.
type Notification struct {
	TransactionID string
	ContextID     ContextID
	Valid         bool
	ErrorMessage  string
	ErrorData     []byte
	// Internal is set when the handler failed for a reason other
	// than the transaction being invalid.
	Internal      bool
}

// Notifier receives task outcomes.
type Notifier interface {
	Notify(Notification)
}

// Scheduler schedules batches for execution.
type Scheduler interface {
	// SetResultCallback sets the function called with every batch
	// result, and with nil once no more results will be produced.
	SetResultCallback(func(*ledger.BatchExecutionResult)) error
	AddBatch(*ledger.BatchPair) error
	// Finalize marks that no more batches will be added.
	Finalize() error
	// TakeTaskIterator returns the task stream, it can be taken
	// only once.
	TakeTaskIterator() (<-chan *Task, error)
	NewNotifier() (Notifier, error)
	Cancel()
}

// TaskExecutor executes a task stream.
type TaskExecutor interface {
	Execute(tasks <-chan *Task, n Notifier) error
}

// TransactionContext is the state access of a transaction handler,
// restricted to the addresses the transaction declared.
type TransactionContext interface {
	GetState(addresses [][]byte) (map[string][]byte, error)
	SetState(entries map[string][]byte) error
	DeleteState(addresses [][]byte) error
}

// TransactionHandler applies the transactions of one family.
type TransactionHandler interface {
	FamilyName() string
	FamilyVersions() []string
	Apply(txn *ledger.TransactionPair, ctx TransactionContext) error
}

// InvalidTransactionError is returned by a handler to reject a
// transaction.
type InvalidTransactionError struct {
	Msg  string
	Data []byte
}

func (e *InvalidTransactionError) Error() string {
	return e.Msg
}

// InvalidTransaction returns an InvalidTransactionError with the
// formatted message.
func InvalidTransaction(format string, args ...interface{}) error {
	return &InvalidTransactionError{Msg: fmt.Sprintf(format, args...)}
}
