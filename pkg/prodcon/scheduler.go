package prodcon

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/helinwang/log15"
	"github.com/helinwang/prodcon/pkg/execution"
	"github.com/helinwang/prodcon/pkg/ledger"
)

// SchedulerFactory creates a scheduler executing on top of a state
// root.
type SchedulerFactory func(root ledger.Hash) (execution.Scheduler, error)

// Orchestrator runs one batch at a time through a fresh scheduler and
// waits for its result.
type Orchestrator struct {
	newScheduler SchedulerFactory
	executor     execution.TaskExecutor
	timeout      time.Duration
}

// NewOrchestrator creates an orchestrator waiting at most timeout for
// a result, zero means no bound besides the context passed to Execute.
func NewOrchestrator(f SchedulerFactory, e execution.TaskExecutor, timeout time.Duration) *Orchestrator {
	return &Orchestrator{newScheduler: f, executor: e, timeout: timeout}
}

// Execute executes the batch on top of the root and returns its
// result.
func (o *Orchestrator) Execute(ctx context.Context, batch *ledger.BatchPair, root ledger.Hash) (*ledger.BatchExecutionResult, error) {
	s, err := o.newScheduler(root)
	if err != nil {
		return nil, schedulingError("create scheduler", err)
	}

	ch := make(chan *ledger.BatchExecutionResult, 1)
	var once sync.Once
	err = s.SetResultCallback(func(r *ledger.BatchExecutionResult) {
		once.Do(func() {
			ch <- r
		})
	})
	if err != nil {
		s.Cancel()
		return nil, schedulingError("set result callback", err)
	}

	err = s.AddBatch(batch)
	if err != nil {
		s.Cancel()
		return nil, schedulingError("add batch", err)
	}
	log.Debug("batch added", "batch", batch.Batch.ID())

	err = s.Finalize()
	if err != nil {
		s.Cancel()
		return nil, schedulingError("finalize", err)
	}

	tasks, err := s.TakeTaskIterator()
	if err != nil {
		s.Cancel()
		return nil, schedulingError("take task iterator", err)
	}

	n, err := s.NewNotifier()
	if err != nil {
		s.Cancel()
		return nil, schedulingError("create notifier", err)
	}

	err = o.executor.Execute(tasks, n)
	if err != nil {
		s.Cancel()
		return nil, schedulingError("execute", err)
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	select {
	case r := <-ch:
		if r == nil {
			return nil, schedulingError("wait", errors.New("no result"))
		}

		if r.Err != nil {
			return nil, schedulingError("execute", r.Err)
		}

		return r, nil
	case <-ctx.Done():
		s.Cancel()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, schedulingError("wait", ErrExecutionTimeout)
		}

		return nil, schedulingError("wait", ctx.Err())
	}
}
