// Package worker runs the data tree evaluator on a dedicated goroutine.
// Requests are serialized: one evaluation pass runs at a time, in the order
// submitted. A newly submitted pass cancels the one in flight, so a burst of
// page edits converges on the latest state instead of queueing stale work.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/vk/bindflow/internal/ctxlog"
	"github.com/vk/bindflow/internal/entity"
	"github.com/vk/bindflow/internal/evaluator"
	"github.com/vk/bindflow/internal/tree"
)

// ErrStopped is returned for requests submitted after Shutdown.
var ErrStopped = errors.New("worker stopped")

type jobKind int

const (
	jobEval jobKind = iota
	jobUpdate
	jobRestart
	jobTree
)

type job struct {
	ctx  context.Context
	kind jobKind
	page *entity.Page
	done chan jobResult
}

type jobResult struct {
	res *evaluator.Result
	err error
}

// Worker owns a DataTreeEvaluator and processes evaluation requests one at
// a time on its own goroutine.
type Worker struct {
	jobs chan job
	quit chan struct{}
	done chan struct{}

	mu       sync.Mutex
	inflight context.CancelFunc
	stopped  bool
}

// New returns a worker. Start must be called before submitting requests.
func New() *Worker {
	return &Worker{
		jobs: make(chan job),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the evaluation loop. The loop runs until Shutdown is
// called or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Evaluation worker started.")

	eval := evaluator.New()
	for {
		select {
		case <-ctx.Done():
			w.markStopped()
			logger.Debug("Evaluation worker context cancelled.")
			return
		case <-w.quit:
			logger.Debug("Evaluation worker shutting down.")
			return
		case j := <-w.jobs:
			switch j.kind {
			case jobRestart:
				eval = evaluator.New()
				logger.Debug("Evaluator restarted.")
				j.done <- jobResult{}
				continue
			case jobTree:
				j.done <- jobResult{res: &evaluator.Result{Tree: eval.Tree()}}
				continue
			}
			jctx, cancel := context.WithCancel(j.ctx)
			w.setInflight(cancel)

			var r jobResult
			switch j.kind {
			case jobEval:
				r.res, r.err = eval.CreateFirstTree(jctx, j.page)
			case jobUpdate:
				r.res, r.err = eval.UpdateTree(jctx, j.page)
			}
			w.setInflight(nil)
			cancel()
			j.done <- r
		}
	}
}

// EvalTree runs the full evaluation pass for a page.
func (w *Worker) EvalTree(ctx context.Context, page *entity.Page) (*evaluator.Result, error) {
	return w.submit(ctx, job{ctx: ctx, kind: jobEval, page: page})
}

// UpdateTree runs an incremental evaluation pass for a changed page.
func (w *Worker) UpdateTree(ctx context.Context, page *entity.Page) (*evaluator.Result, error) {
	return w.submit(ctx, job{ctx: ctx, kind: jobUpdate, page: page})
}

// Tree returns the current evaluated data tree. It does not interrupt a
// pass in flight; the result reflects the last committed pass.
func (w *Worker) Tree(ctx context.Context) (*tree.Tree, error) {
	res, err := w.submit(ctx, job{ctx: ctx, kind: jobTree})
	if err != nil {
		return nil, err
	}
	return res.Tree, nil
}

// Restart discards the evaluator's state. The next request evaluates from
// scratch, as if the worker had just started.
func (w *Worker) Restart(ctx context.Context) error {
	_, err := w.submit(ctx, job{ctx: ctx, kind: jobRestart})
	return err
}

// Shutdown cancels any in-flight pass, stops the loop, and waits for it to
// exit or for ctx to expire.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.quit)
	}
	if w.inflight != nil {
		w.inflight()
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) submit(ctx context.Context, j job) (*evaluator.Result, error) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil, ErrStopped
	}
	// Latest wins: a new pass interrupts the one in flight so it starts
	// sooner. Reads wait their turn instead.
	if j.kind != jobTree && w.inflight != nil {
		w.inflight()
	}
	w.mu.Unlock()

	j.done = make(chan jobResult, 1)
	select {
	case w.jobs <- j:
	case <-w.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-j.done:
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *Worker) setInflight(cancel context.CancelFunc) {
	w.mu.Lock()
	w.inflight = cancel
	w.mu.Unlock()
}

func (w *Worker) markStopped() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
}
