// Package worker serializes dataset operations onto a single goroutine.
//
// Callers submit operations with Engine.Do from any number of goroutines.
// Requests are queued in submission order and executed one at a time by the
// engine's worker; each caller blocks until its own request completes. A
// Close request closes the dataset, fails every request still queued with
// ErrWorkerStopped and ends the worker.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/keyds/pkg/dataset"
)

type stoppedError struct{}

func (stoppedError) Error() string      { return "dataset worker has stopped" }
func (stoppedError) Code() dataset.Code { return dataset.CodeState }

// ErrWorkerStopped is returned for requests made after, or queued behind, a
// Close or Exit
var ErrWorkerStopped error = stoppedError{}

// Observer receives engine instrumentation
type Observer interface {
	Submitted(dataset string, depth int)
	Completed(dataset, op string, d time.Duration, err error)
}

// Request is one queued operation
type Request struct {
	ID   ksuid.KSUID
	Op   Op
	done chan Result
}

// Engine owns the worker goroutine of one dataset
type Engine struct {
	ex       Executor
	name     string
	observer Observer
	logger   *slog.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []*Request
	detached bool

	stopped chan struct{}
}

// Option configures an Engine
type Option func(*Engine)

// WithName labels the engine's logs and metrics
func WithName(name string) Option {
	return func(e *Engine) { e.name = name }
}

// WithObserver installs instrumentation
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithLogger sets the engine's logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Start creates an engine for ex and starts its worker
func Start(ex Executor, opts ...Option) *Engine {
	e := &Engine{
		ex:      ex,
		logger:  slog.Default(),
		stopped: make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("dataset", e.name)
	go e.run()
	return e
}

// Do submits op and waits for its result. If ctx ends first, Do returns
// ctx.Err(); the request still runs and its result is dropped.
func (e *Engine) Do(ctx context.Context, op Op) Result {
	req := &Request{ID: ksuid.New(), Op: op, done: make(chan Result, 1)}
	if err := e.submit(req); err != nil {
		return Result{Err: err}
	}
	select {
	case r := <-req.done:
		return r
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}
}

func (e *Engine) submit(req *Request) error {
	e.mu.Lock()
	if e.detached {
		e.mu.Unlock()
		return ErrWorkerStopped
	}
	e.queue = append(e.queue, req)
	depth := len(e.queue)
	e.cond.Signal()
	e.mu.Unlock()

	if e.observer != nil {
		e.observer.Submitted(e.name, depth)
	}
	e.logger.Debug("request queued", "request_id", req.ID.String(), "op", req.Op.Name(), "depth", depth)
	return nil
}

// Depth returns the number of queued requests, excluding the one running
func (e *Engine) Depth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Stopped is closed once the worker has exited
func (e *Engine) Stopped() <-chan struct{} { return e.stopped }

// Detached reports whether the engine accepts no more requests
func (e *Engine) Detached() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detached
}

func (e *Engine) next() *Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.queue) == 0 {
		e.cond.Wait()
	}
	req := e.queue[0]
	e.queue[0] = nil
	e.queue = e.queue[1:]
	return req
}

func (e *Engine) run() {
	defer close(e.stopped)
	for {
		req := e.next()

		if _, ok := req.Op.(Exit); ok {
			e.detach()
			req.done <- Result{}
			e.logger.Debug("worker exited", "request_id", req.ID.String())
			return
		}

		start := time.Now()
		res := Execute(e.ex, req.Op)
		elapsed := time.Since(start)
		if e.observer != nil {
			e.observer.Completed(e.name, req.Op.Name(), elapsed, res.Err)
		}
		e.logger.Debug("request done", "request_id", req.ID.String(), "op", req.Op.Name(),
			"duration", elapsed, "error", res.Err)

		if _, ok := req.Op.(Close); ok {
			e.detach()
			req.done <- res
			return
		}
		req.done <- res
	}
}

// detach stops intake and fails whatever is still queued
func (e *Engine) detach() {
	e.mu.Lock()
	e.detached = true
	pending := e.queue
	e.queue = nil
	e.mu.Unlock()

	for _, p := range pending {
		p.done <- Result{Err: ErrWorkerStopped}
	}
	if len(pending) > 0 {
		e.logger.Debug("dropped queued requests", "count", len(pending))
	}
}
