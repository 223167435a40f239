package prodcon

import (
	"time"

	"github.com/helinwang/prodcon/pkg/execution"
	"github.com/helinwang/prodcon/pkg/ledger"
)

// Engine is the execution platform of the produce-consume family:
// a context manager over the state store and a started executor
// routing transactions to the Handler.
type Engine struct {
	cm       *execution.ContextManager
	verifier ledger.Verifier
	executor *execution.Executor
}

// NewEngine creates and starts an engine reading state from the store
// and verifying transactions with the verifier.
func NewEngine(store execution.StateReader, verifier ledger.Verifier) (*Engine, error) {
	cm := execution.NewContextManager(store)
	e := execution.NewExecutor(cm, verifier, NewHandler())
	err := e.Start()
	if err != nil {
		return nil, err
	}

	return &Engine{cm: cm, verifier: verifier, executor: e}, nil
}

// NewScheduler creates a serial scheduler executing on top of the
// root.
func (e *Engine) NewScheduler(root ledger.Hash) (execution.Scheduler, error) {
	return execution.NewSerialScheduler(e.cm, e.verifier, root)
}

// Orchestrator returns an orchestrator running batches on the engine.
func (e *Engine) Orchestrator(timeout time.Duration) *Orchestrator {
	return NewOrchestrator(e.NewScheduler, e.executor, timeout)
}

// Stop stops the executor.
func (e *Engine) Stop() {
	e.executor.Stop()
}
