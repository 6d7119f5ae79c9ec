/*
Copyright (C) 2026  vectorcore contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
// Package dispatcher is the single-process fair scheduler sitting in
// front of every CPU-bound and I/O-bound unit of work the core
// issues: a bounded FIFO for CPU tasks, and a counting semaphore for
// I/O tasks, both of which abort rather than block when the system is
// already saturated.
package dispatcher

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/dc0d/onexit"
	"github.com/jtolds/gls"
)

// TaskKind distinguishes the two admission paths.
type TaskKind int

const (
	KindCPU TaskKind = iota
	KindIO
)

// TaskEnvelope is one unit of dispatched work. Run observes ctx for
// cancellation at its own suspension points; the dispatcher never
// interrupts a running task.
type TaskEnvelope struct {
	Kind   TaskKind
	Run    func(ctx context.Context) (any, error)
	Cancel context.CancelFunc
}

// Config carries the worker-pool and admission tunables.
type Config struct {
	NumWorkerThreads int
	TaskQueueLimit   int
	WorkerQueueSize  int
	ActiveIOTasks    int
}

// DefaultConfig sizes worker count from runtime.NumCPU().
func DefaultConfig() Config {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	return Config{
		NumWorkerThreads: workers,
		TaskQueueLimit:   workers * 64,
		WorkerQueueSize:  16,
		ActiveIOTasks:    workers * 4,
	}
}

// Result is what Dispatch returns for a task that actually ran.
type Result struct {
	Value any
	Err   error
}

// Dispatcher routes CPU tasks through a bounded queue and admits I/O
// tasks through a semaphore.
type Dispatcher struct {
	cfg Config

	cpuQueue chan cpuJob
	ioTokens chan struct{}

	abortedCPU atomic.Int64
	abortedIO  atomic.Int64

	wg       sync.WaitGroup
	stopOnce sync.Once
	closed   chan struct{}
}

type cpuJob struct {
	env    TaskEnvelope
	ctx    context.Context
	result chan Result
}

// New starts the worker pool. Every worker pulls directly from the
// shared CPU queue; no per-worker queue is created.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		cpuQueue: make(chan cpuJob, cfg.TaskQueueLimit),
		ioTokens: make(chan struct{}, cfg.ActiveIOTasks),
		closed:   make(chan struct{}),
	}
	for i := 0; i < cfg.ActiveIOTasks; i++ {
		d.ioTokens <- struct{}{}
	}

	for i := 0; i < cfg.NumWorkerThreads; i++ {
		d.wg.Add(1)
		gls.Go(func() {
			defer d.wg.Done()
			d.worker()
		})
	}

	onexit.Register(func() { d.Stop() })

	return d
}

func (d *Dispatcher) worker() {
	for {
		select {
		case job, ok := <-d.cpuQueue:
			if !ok {
				return
			}
			d.run(job)
		case <-d.closed:
			// drain whatever is already queued before returning.
			for {
				select {
				case job, ok := <-d.cpuQueue:
					if !ok {
						return
					}
					d.run(job)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) run(job cpuJob) {
	value, err := job.env.Run(job.ctx)
	if job.result != nil {
		job.result <- Result{Value: value, Err: err}
	}
}

// SubmitCPU enqueues a CPU task. If the queue is over capacity the
// task is aborted immediately, never blocking the caller, and
// AbortedCPUTasks is incremented.
func (d *Dispatcher) SubmitCPU(ctx context.Context, fn func(ctx context.Context) (any, error)) (<-chan Result, bool) {
	result := make(chan Result, 1)
	job := cpuJob{env: TaskEnvelope{Kind: KindCPU, Run: fn}, ctx: ctx, result: result}
	select {
	case d.cpuQueue <- job:
		return result, true
	default:
		d.abortedCPU.Add(1)
		return nil, false
	}
}

// AcquireIO attempts to reserve one of the I/O semaphore's tokens. If
// none are free the call aborts rather than blocks, returning a no-op
// release function the caller must still be able to call safely.
func (d *Dispatcher) AcquireIO() (release func(), ok bool) {
	select {
	case <-d.ioTokens:
		released := false
		var mu sync.Mutex
		return func() {
			mu.Lock()
			defer mu.Unlock()
			if released {
				return
			}
			released = true
			d.ioTokens <- struct{}{}
		}, true
	default:
		d.abortedIO.Add(1)
		return func() {}, false
	}
}

// AbortedCPUTasks reports how many SubmitCPU calls were refused
// because the CPU queue was over capacity.
func (d *Dispatcher) AbortedCPUTasks() int64 { return d.abortedCPU.Load() }

// AbortedIOTasks reports how many AcquireIO calls were refused
// because the semaphore was exhausted.
func (d *Dispatcher) AbortedIOTasks() int64 { return d.abortedIO.Load() }

// Stop closes the CPU queue, lets every worker drain its remaining
// work, and joins them. Safe to call more than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.closed)
		close(d.cpuQueue)
		d.wg.Wait()
	})
}
