package execution

import (
	"fmt"
	"sync"

	log "github.com/helinwang/log15"
	"github.com/helinwang/prodcon/pkg/ledger"
)

// SerialScheduler executes the transactions of its batches one at a
// time, in order. Every transaction sees the changes of the valid
// batches before it and of the transactions before it in its batch.
type SerialScheduler struct {
	cm       *ContextManager
	verifier ledger.Verifier
	root     ledger.Hash

	mu        sync.Mutex
	callback  func(*ledger.BatchExecutionResult)
	finalized bool
	taken     bool

	batches       chan *ledger.BatchPair
	finalizeCh    chan struct{}
	notifications chan Notification
	tasks         chan *Task
	done          chan struct{}
	cancelOnce    sync.Once
}

// NewSerialScheduler creates a scheduler executing on top of the
// state root. Batches failing verification are not executed.
func NewSerialScheduler(cm *ContextManager, verifier ledger.Verifier, root ledger.Hash) (*SerialScheduler, error) {
	if !cm.HasRoot(root) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoot, root.Hex())
	}

	s := &SerialScheduler{
		cm:            cm,
		verifier:      verifier,
		root:          root,
		batches:       make(chan *ledger.BatchPair),
		finalizeCh:    make(chan struct{}),
		notifications: make(chan Notification),
		// at most one task is outstanding
		tasks: make(chan *Task, 1),
		done:  make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *SerialScheduler) SetResultCallback(f func(*ledger.BatchExecutionResult)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callback = f
	return nil
}

func (s *SerialScheduler) AddBatch(b *ledger.BatchPair) error {
	s.mu.Lock()
	finalized := s.finalized
	s.mu.Unlock()

	if finalized {
		return ErrFinalized
	}

	select {
	case s.batches <- b:
		return nil
	case <-s.done:
		return ErrCancelled
	}
}

func (s *SerialScheduler) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.finalized {
		s.finalized = true
		close(s.finalizeCh)
	}
	return nil
}

func (s *SerialScheduler) TakeTaskIterator() (<-chan *Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.taken {
		return nil, ErrTaskIteratorTaken
	}

	s.taken = true
	return s.tasks, nil
}

func (s *SerialScheduler) NewNotifier() (Notifier, error) {
	return &notifier{ch: s.notifications, done: s.done}, nil
}

// Cancel stops the scheduler, no further result is produced.
func (s *SerialScheduler) Cancel() {
	s.cancelOnce.Do(func() {
		close(s.done)
	})
}

type notifier struct {
	ch   chan<- Notification
	done <-chan struct{}
}

func (n *notifier) Notify(v Notification) {
	select {
	case n.ch <- v:
	case <-n.done:
	}
}

func (s *SerialScheduler) deliver(r *ledger.BatchExecutionResult) {
	s.mu.Lock()
	f := s.callback
	s.mu.Unlock()

	if f == nil {
		log.Warn("batch result dropped, no result callback")
		return
	}

	f(r)
}

type batchExecution struct {
	pair     *ledger.BatchPair
	next     int
	current  ContextID
	contexts []ContextID
	receipts []ledger.TransactionReceipt
}

func (s *SerialScheduler) run() {
	var (
		queue    []*ledger.BatchPair
		cur      *batchExecution
		created  []ContextID
		valid    []ContextID
		finalize = s.finalizeCh
	)

	defer func() {
		for _, id := range created {
			s.cm.DropContext(id)
		}
		close(s.tasks)
	}()

	finish := func(result *ledger.BatchExecutionResult) {
		cur = nil
		s.deliver(result)
	}

	// next schedules the next transaction of cur, returns false if
	// the scheduler is cancelled.
	next := func() bool {
		txns := cur.pair.Batch.Transactions
		if cur.next >= len(txns) {
			valid = append(valid, cur.contexts...)
			finish(&ledger.BatchExecutionResult{Batch: cur.pair, Receipts: cur.receipts})
			return true
		}

		txn := txns[cur.next]
		header, err := txn.DecodeHeader()
		if err != nil {
			cur.receipts = append(cur.receipts, ledger.TransactionReceipt{
				TransactionID: txn.ID(),
				ErrorMessage:  "invalid transaction header: " + err.Error(),
			})
			finish(&ledger.BatchExecutionResult{Batch: cur.pair, Receipts: cur.receipts})
			return true
		}

		base := append(append([]ContextID(nil), valid...), cur.contexts...)
		id, err := s.cm.CreateContext(s.root, base)
		if err != nil {
			// should not happen, the base contexts live as
			// long as the scheduler
			panic(err)
		}

		created = append(created, id)
		cur.current = id
		task := &Task{
			Pair:      &ledger.TransactionPair{Transaction: txn, Header: header},
			ContextID: id,
		}

		select {
		case s.tasks <- task:
			return true
		case <-s.done:
			return false
		}
	}

	for {
		if cur == nil && len(queue) > 0 {
			cur = &batchExecution{pair: queue[0]}
			queue = queue[1:]
			_, err := ledger.VerifyBatch(s.verifier, cur.pair.Batch)
			if err != nil {
				log.Warn("batch verification failed", "batch", cur.pair.Batch.ID(), "err", err)
				var id string
				if txns := cur.pair.Batch.Transactions; len(txns) > 0 {
					id = txns[0].ID()
				}
				finish(&ledger.BatchExecutionResult{
					Batch: cur.pair,
					Receipts: []ledger.TransactionReceipt{{
						TransactionID: id,
						ErrorMessage:  "invalid batch: " + err.Error(),
					}},
				})
				continue
			}

			if !next() {
				return
			}
			continue
		}

		if cur == nil && finalize == nil {
			s.deliver(nil)
			return
		}

		select {
		case b := <-s.batches:
			queue = append(queue, b)
		case <-finalize:
			finalize = nil
		case n := <-s.notifications:
			if cur == nil || n.ContextID != cur.current {
				log.Warn("unexpected task notification", "txn", n.TransactionID, "context", n.ContextID)
				continue
			}

			if n.Internal {
				finish(&ledger.BatchExecutionResult{
					Batch:    cur.pair,
					Receipts: cur.receipts,
					Err:      fmt.Errorf("transaction %s: %s", n.TransactionID, n.ErrorMessage),
				})
				continue
			}

			if !n.Valid {
				cur.receipts = append(cur.receipts, ledger.TransactionReceipt{
					TransactionID: n.TransactionID,
					ErrorMessage:  n.ErrorMessage,
					ErrorData:     n.ErrorData,
				})
				finish(&ledger.BatchExecutionResult{Batch: cur.pair, Receipts: cur.receipts})
				continue
			}

			receipt, err := s.cm.GetTransactionReceipt(n.ContextID, n.TransactionID)
			if err != nil {
				// should not happen, contexts are dropped
				// when the scheduler stops
				panic(err)
			}

			cur.receipts = append(cur.receipts, receipt)
			cur.contexts = append(cur.contexts, n.ContextID)
			cur.next++
			if !next() {
				return
			}
		case <-s.done:
			return
		}
	}
}
