// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"code.hybscloud.com/rtos"
)

func TestWorkQueueRunsInOrder(t *testing.T) {
	s, _ := newScheduler(t)
	ctx := context.Background()

	wq, err := rtos.NewWorkQueue(s, rtos.Task("wq").Priority(3), 8)
	if err != nil {
		t.Fatalf("NewWorkQueue: %v", err)
	}

	var order []int
	for i := range 5 {
		item := rtos.WorkFunc(func(ctx context.Context) {
			order = append(order, i)
		})
		if r := wq.QueueWork(ctx, item, rtos.WaitForever); r != rtos.Success {
			t.Fatalf("QueueWork(%d): got %v", i, r)
		}
	}

	// Close drains the queued items first.
	if r := wq.Close(ctx); r != rtos.Success {
		t.Fatalf("Close: got %v", r)
	}
	if len(order) != 5 {
		t.Fatalf("ran %d items, want 5", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d]: got %d, want %d", i, v, i)
		}
	}
	if wq.Worker().State() != rtos.ThreadTerminated {
		t.Fatalf("worker state: got %v, want Terminated", wq.Worker().State())
	}

	noop := rtos.WorkFunc(func(context.Context) {})
	if r := wq.QueueWork(ctx, noop, rtos.NoWait); r != rtos.Invalid {
		t.Fatalf("QueueWork after Close: got %v, want Invalid", r)
	}
	if r := wq.Close(ctx); r != rtos.Invalid {
		t.Fatalf("second Close: got %v, want Invalid", r)
	}
}

func TestWorkQueueBackpressure(t *testing.T) {
	s, _ := newScheduler(t)
	ctx := context.Background()

	wq, err := rtos.NewWorkQueue(s, nil, 1)
	if err != nil {
		t.Fatalf("NewWorkQueue: %v", err)
	}
	started, release := make(chan struct{}), make(chan struct{})
	wq.QueueWork(ctx, rtos.WorkFunc(func(context.Context) {
		close(started)
		<-release
	}), rtos.WaitForever)
	recv(t, started)

	noop := rtos.WorkFunc(func(context.Context) {})
	if r := wq.QueueWork(ctx, noop, rtos.NoWait); r != rtos.Success {
		t.Fatalf("QueueWork into free slot: got %v", r)
	}
	if wq.Pending() != 1 {
		t.Fatalf("Pending: got %d, want 1", wq.Pending())
	}
	if r := wq.QueueWork(ctx, noop, rtos.NoWait); r != rtos.Full {
		t.Fatalf("QueueWork on full: got %v, want Full", r)
	}
	close(release)
	if r := wq.Close(ctx); r != rtos.Success {
		t.Fatalf("Close: got %v", r)
	}
}

func TestWorkQueueCloseRacingQueueWork(t *testing.T) {
	s, _ := newScheduler(t)
	ctx := context.Background()

	wq, err := rtos.NewWorkQueue(s, nil, 2)
	if err != nil {
		t.Fatalf("NewWorkQueue: %v", err)
	}

	const submitters = 4
	var accepted, ran atomic.Int64
	item := rtos.WorkFunc(func(context.Context) { ran.Add(1) })
	first := make(chan struct{})
	var once sync.Once
	var wg sync.WaitGroup
	for i := range submitters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, err := s.Adopt(ctx, fmt.Sprintf("submit-%d", i))
			if err != nil {
				t.Errorf("Adopt: %v", err)
				return
			}
			for {
				r := wq.QueueWork(ctx, item, rtos.WaitForever)
				if r == rtos.Invalid {
					return
				}
				if r != rtos.Success {
					t.Errorf("QueueWork: got %v", r)
					return
				}
				accepted.Add(1)
				once.Do(func() { close(first) })
			}
		}()
	}

	recv(t, first)
	if r := wq.Close(ctx); r != rtos.Success {
		t.Fatalf("Close: got %v", r)
	}
	wg.Wait()
	// Every accepted item ran before the worker stopped.
	if ran.Load() != accepted.Load() {
		t.Fatalf("ran %d items, accepted %d", ran.Load(), accepted.Load())
	}
}

func TestWorkQueueNilItemPanics(t *testing.T) {
	s, _ := newScheduler(t)
	wq, err := rtos.NewWorkQueue(s, nil, 1)
	if err != nil {
		t.Fatalf("NewWorkQueue: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("QueueWork(nil): expected panic")
		}
	}()
	wq.QueueWork(context.Background(), nil, rtos.NoWait)
}
