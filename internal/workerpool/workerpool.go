// Package workerpool bounds the concurrency used to fan a single publish
// or retraction out to many subscriber callbacks (spec.md §5 "Suspension
// and blocking" — delivery calls block on I/O and must run off the
// registry locks). Adapted from the teacher's WorkerPool
// (adred-codev-ws_poc/ws/worker_pool.go): fixed goroutine count, buffered
// task queue, panic-recovering worker loop. Unlike the teacher's
// fire-and-forget broadcast queue, Submit here returns a completion
// signal — the broker must know which subscribers failed before an HTTP
// handler can respond, so dropping a delivery silently is not an option.
package workerpool

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"
)

// Task is a unit of work submitted to the pool. It reports the error (if
// any) produced by the work it performed.
type Task func() error

// Pool runs a fixed number of worker goroutines pulling from a buffered
// queue. Submit blocks the caller until the task completes and returns
// its error — the pool bounds *concurrency*, not synchronicity.
type Pool struct {
	workerCount int
	queue       chan job
	logger      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type job struct {
	task Task
	done chan error
}

// New creates and starts a pool of workerCount goroutines with a task
// queue of the given capacity.
func New(workerCount, queueSize int, logger zerolog.Logger) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		workerCount: workerCount,
		queue:       make(chan job, queueSize),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case j := <-p.queue:
			j.done <- p.run(j.task)
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) run(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Interface("panic_value", r).
				Str("stack_trace", string(debug.Stack())).
				Msg("worker pool task panicked; worker continues")
			err = errPanic
		}
	}()
	return task()
}

// Submit runs task on a worker and blocks until it completes, returning
// its error. If the pool has been stopped, Submit runs the task inline
// on the calling goroutine.
func (p *Pool) Submit(task Task) error {
	j := job{task: task, done: make(chan error, 1)}
	select {
	case p.queue <- j:
		select {
		case err := <-j.done:
			return err
		case <-p.ctx.Done():
			return task()
		}
	case <-p.ctx.Done():
		return task()
	}
}

// Stop cancels outstanding work acceptance and waits for running workers
// to finish their current task.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}

type poolError string

func (e poolError) Error() string { return string(e) }

const errPanic poolError = "worker task panicked"
