package execution

import (
	"errors"
	"sync"

	log "github.com/helinwang/log15"
	"github.com/helinwang/prodcon/pkg/ledger"
)

// Executor applies tasks with the handler registered for the family
// of their transaction.
type Executor struct {
	cm       *ContextManager
	verifier ledger.Verifier
	handlers map[string]TransactionHandler

	mu      sync.Mutex
	started bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func handlerKey(name, version string) string {
	return name + "/" + version
}

// NewExecutor creates an executor verifying transactions with the
// verifier and routing them to the handlers.
func NewExecutor(cm *ContextManager, verifier ledger.Verifier, handlers ...TransactionHandler) *Executor {
	e := &Executor{
		cm:       cm,
		verifier: verifier,
		handlers: make(map[string]TransactionHandler),
	}

	for _, h := range handlers {
		for _, v := range h.FamilyVersions() {
			e.handlers[handlerKey(h.FamilyName(), v)] = h
		}
	}
	return e
}

func (e *Executor) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}

	e.started = true
	e.done = make(chan struct{})
	log.Info("executor started", "handlers", len(e.handlers))
	return nil
}

// Stop stops the executor and waits for the task streams being
// executed to be abandoned.
func (e *Executor) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}

	e.started = false
	close(e.done)
	e.mu.Unlock()

	e.wg.Wait()
	log.Info("executor stopped")
}

// Execute executes the tasks of the stream in the background until
// the stream is closed or the executor is stopped.
func (e *Executor) Execute(tasks <-chan *Task, n Notifier) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return ErrNotStarted
	}

	done := e.done
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case t, ok := <-tasks:
				if !ok {
					return
				}

				n.Notify(e.execute(t))
			case <-done:
				return
			}
		}
	}()
	return nil
}

func (e *Executor) execute(t *Task) Notification {
	txn := t.Pair.Transaction
	r := Notification{TransactionID: txn.ID(), ContextID: t.ContextID}

	header, err := ledger.VerifyTransaction(e.verifier, txn)
	if err != nil {
		log.Warn("transaction verification failed", "txn", r.TransactionID, "err", err)
		r.ErrorMessage = err.Error()
		return r
	}

	h, ok := e.handlers[handlerKey(header.FamilyName, header.FamilyVersion)]
	if !ok {
		r.ErrorMessage = "no handler for family " + handlerKey(header.FamilyName, header.FamilyVersion)
		return r
	}

	ctx := &txnContext{
		cm:      e.cm,
		id:      t.ContextID,
		inputs:  header.Inputs,
		outputs: header.Outputs,
	}

	err = h.Apply(&ledger.TransactionPair{Transaction: txn, Header: header}, ctx)
	if err != nil {
		var invalid *InvalidTransactionError
		if errors.As(err, &invalid) {
			log.Debug("transaction rejected", "txn", r.TransactionID, "err", invalid.Msg)
			r.ErrorMessage = invalid.Msg
			r.ErrorData = invalid.Data
			return r
		}

		log.Error("transaction handler failed", "txn", r.TransactionID, "err", err)
		r.Internal = true
		r.ErrorMessage = err.Error()
		return r
	}

	r.Valid = true
	return r
}
