package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// job is a unit of work to be executed on a worker goroutine.
type job struct {
	fn   func() (interface{}, error)
	done chan jobResult
}

// jobResult holds the return value from a job.
type jobResult struct {
	value interface{}
	err   error
}

// Workers runs programs on a fixed set of goroutines so that a burst of
// requests cannot start an unbounded number of interpreters.
type Workers struct {
	jobs chan job
	quit chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewWorkers starts n worker goroutines.
func NewWorkers(n int) *Workers {
	if n < 1 {
		n = 1
	}
	w := &Workers{
		jobs: make(chan job, 64),
		quit: make(chan struct{}),
	}
	w.wg.Add(n)
	for i := 0; i < n; i++ {
		go w.loop()
	}
	return w
}

// loop processes jobs until the pool is stopped.
func (w *Workers) loop() {
	defer w.wg.Done()
	for {
		select {
		case j := <-w.jobs:
			j.done <- w.execute(j.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a job, recovering from panics.
func (w *Workers) execute(fn func() (interface{}, error)) (result jobResult) {
	defer func() {
		if r := recover(); r != nil {
			result.err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	result.value, result.err = fn()
	return result
}

// Do submits fn and blocks until it completes. Submission gives up when
// ctx is done; a job that has started always runs to completion, so fn
// should watch ctx itself.
func (w *Workers) Do(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	j := job{fn: fn, done: make(chan jobResult, 1)}
	select {
	case w.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.quit:
		return nil, errStopped
	}
	select {
	case result := <-j.done:
		return result.value, result.err
	case <-w.quit:
		// the job may have been queued behind the shutdown
		select {
		case result := <-j.done:
			return result.value, result.err
		default:
			return nil, errStopped
		}
	}
}

// Stop shuts down the worker goroutines and waits for running jobs.
func (w *Workers) Stop() {
	w.once.Do(func() { close(w.quit) })
	w.wg.Wait()
}

var errStopped = errors.New("server is stopping")
