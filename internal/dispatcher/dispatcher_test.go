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
package dispatcher

import (
	"context"
	"testing"
	"time"
)

func smallConfig() Config {
	return Config{NumWorkerThreads: 2, TaskQueueLimit: 2, WorkerQueueSize: 4, ActiveIOTasks: 1}
}

func TestSubmitCPURunsTask(t *testing.T) {
	d := New(smallConfig())
	defer d.Stop()

	result, ok := d.SubmitCPU(context.Background(), func(ctx context.Context) (any, error) {
		return 42, nil
	})
	if !ok {
		t.Fatal("expected SubmitCPU to accept the task")
	}
	select {
	case r := <-result:
		if r.Value != 42 {
			t.Errorf("expected value 42, got %v", r.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for task result")
	}
}

func TestSubmitCPUAbortsOverCapacity(t *testing.T) {
	cfg := smallConfig()
	cfg.NumWorkerThreads = 0 // prevent the pool from draining while we saturate it
	d := &Dispatcher{
		cfg:      cfg,
		cpuQueue: make(chan cpuJob, cfg.TaskQueueLimit),
		ioTokens: make(chan struct{}, cfg.ActiveIOTasks),
		closed:   make(chan struct{}),
	}
	defer close(d.cpuQueue)

	block := func(ctx context.Context) (any, error) { return nil, nil }
	for i := 0; i < cfg.TaskQueueLimit; i++ {
		if _, ok := d.SubmitCPU(context.Background(), block); !ok {
			t.Fatalf("expected submission %d to be accepted", i)
		}
	}
	if _, ok := d.SubmitCPU(context.Background(), block); ok {
		t.Fatal("expected submission beyond TaskQueueLimit to be aborted")
	}
	if d.AbortedCPUTasks() != 1 {
		t.Errorf("expected 1 aborted CPU task, got %d", d.AbortedCPUTasks())
	}
}

func TestAcquireIOAbortsWhenExhausted(t *testing.T) {
	d := New(Config{NumWorkerThreads: 1, TaskQueueLimit: 1, WorkerQueueSize: 1, ActiveIOTasks: 1})
	defer d.Stop()

	release, ok := d.AcquireIO()
	if !ok {
		t.Fatal("expected first AcquireIO to succeed")
	}
	if _, ok := d.AcquireIO(); ok {
		t.Fatal("expected second AcquireIO to be aborted while the only token is held")
	}
	if d.AbortedIOTasks() != 1 {
		t.Errorf("expected 1 aborted IO task, got %d", d.AbortedIOTasks())
	}

	release()
	if _, ok := d.AcquireIO(); !ok {
		t.Fatal("expected AcquireIO to succeed after release")
	}
}

func TestStopDrainsQueuedWork(t *testing.T) {
	d := New(smallConfig())

	ran := make(chan struct{}, 1)
	if _, ok := d.SubmitCPU(context.Background(), func(ctx context.Context) (any, error) {
		ran <- struct{}{}
		return nil, nil
	}); !ok {
		t.Fatal("expected task submission to succeed")
	}

	d.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("expected queued task to run before Stop returned")
	}
}
