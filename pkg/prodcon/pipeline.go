package prodcon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	log "github.com/helinwang/log15"
	"github.com/helinwang/prodcon/pkg/ledger"
)

// Stage is the position of a pipeline in its control loop.
type Stage int

const (
	AwaitInput Stage = iota
	Encoding
	Batching
	Scheduling
	Committing
	Aborted
)

func (s Stage) String() string {
	switch s {
	case AwaitInput:
		return "await_input"
	case Encoding:
		return "encode"
	case Batching:
		return "batch"
	case Scheduling:
		return "schedule"
	case Committing:
		return "commit"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// ErrAborted is returned by a pipeline that already failed.
var ErrAborted = errors.New("pipeline aborted")

// BatchExecutor executes a batch on top of a state root.
type BatchExecutor interface {
	Execute(ctx context.Context, batch *ledger.BatchPair, root ledger.Hash) (*ledger.BatchExecutionResult, error)
}

// Pipeline turns command lines into committed state: encode, batch,
// schedule and commit, one command at a time. The current root
// advances only when a command is committed.
type Pipeline struct {
	batcher  *Batcher
	executor BatchExecutor
	store    StateStore

	root    ledger.Hash
	stage   Stage
	metrics *Metrics
}

// NewPipeline creates a pipeline starting at the root. The metrics
// may be nil.
func NewPipeline(b *Batcher, e BatchExecutor, store StateStore, root ledger.Hash, m *Metrics) *Pipeline {
	if m == nil {
		m = NewMetrics(nil)
	}

	return &Pipeline{
		batcher:  b,
		executor: e,
		store:    store,
		root:     root,
		metrics:  m,
	}
}

// Root returns the current state root.
func (p *Pipeline) Root() ledger.Hash {
	return p.root
}

func (p *Pipeline) Stage() Stage {
	return p.stage
}

func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}

func (p *Pipeline) abort(err error) (ledger.Hash, error) {
	log.Error("pipeline aborted", "stage", p.stage, "err", err)
	p.stage = Aborted
	return p.root, err
}

// Process runs one command line through the pipeline and returns the
// new state root. On error the root is unchanged and the pipeline is
// aborted.
func (p *Pipeline) Process(ctx context.Context, line string) (ledger.Hash, error) {
	if p.stage == Aborted {
		return p.root, ErrAborted
	}

	p.stage = Encoding
	start := time.Now()
	payload, inputs, outputs, err := Encode(line)
	p.metrics.encode.UpdateSince(start)
	if err != nil {
		return p.abort(err)
	}

	p.stage = Batching
	start = time.Now()
	batch, err := p.batcher.Submit(payload, inputs, outputs)
	p.metrics.batch.UpdateSince(start)
	if err != nil {
		return p.abort(err)
	}

	p.stage = Scheduling
	start = time.Now()
	result, err := p.executor.Execute(ctx, batch, p.root)
	p.metrics.schedule.UpdateSince(start)
	if err != nil {
		return p.abort(err)
	}

	p.stage = Committing
	start = time.Now()
	root, err := Commit(p.store, p.root, result)
	p.metrics.commit.UpdateSince(start)
	if err != nil {
		if errors.Is(err, ErrTransactionRejected) {
			p.metrics.rejected.Inc(1)
		}
		return p.abort(err)
	}

	log.Info("command committed", "batch", batch.Batch.ID(), "root", root)
	p.metrics.committed.Inc(1)
	p.root = root
	p.stage = AwaitInput
	return root, nil
}

// readLines sends the lines of in to the returned channel, which is
// closed after the read error, nil at end of input, is sent to errc.
// A reader blocked in Read is left behind when ctx is done.
func readLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

// Run prompts for command lines on out and processes the lines read
// from in until in is exhausted, a command fails or ctx is done.
func (p *Pipeline) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if p.stage == Aborted {
		return ErrAborted
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines, errc := readLines(ctx, in)
	for {
		p.stage = AwaitInput
		fmt.Fprint(out, "Enter your command: ")

		var line string
		select {
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return <-errc
			}
			line = l
		case <-ctx.Done():
			fmt.Fprintln(out)
			return ctx.Err()
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		root, err := p.Process(ctx, line)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Done, state root %s\n", root.Hex())
	}
}
