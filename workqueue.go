// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos

import (
	"context"
	"errors"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"

	"code.hybscloud.com/rtos/kernel"
)

// WorkItem is a unit of work run by a WorkQueue.
type WorkItem interface {
	Run(ctx context.Context)
}

// WorkFunc adapts a function to WorkItem.
type WorkFunc func(ctx context.Context)

func (f WorkFunc) Run(ctx context.Context) {
	f(ctx)
}

// WorkQueue runs WorkItems one at a time, in queue order, on a worker
// thread of its own.
//
// Close drains the items queued before it, then stops the worker.
type WorkQueue struct {
	_      noCopy
	s      *Scheduler
	items  *Queue[WorkItem]
	done   *Semaphore // given by the worker when it stops
	worker *Thread
	// state holds wqClosed and the number of QueueWork calls in flight.
	state atomix.Uint64
}

const wqClosed = 1 << 63

// NewWorkQueue creates a work queue holding up to maxWork pending items
// and starts its worker configured by cfg. A nil cfg names the worker
// "WorkQueue" with default stack and priority.
func NewWorkQueue(s *Scheduler, cfg *ThreadConfig, maxWork int) (*WorkQueue, error) {
	if cfg == nil {
		cfg = Task("WorkQueue")
	}
	items, err := NewQueue[WorkItem](s, maxWork)
	if err != nil {
		return nil, newCreateError(ResourceWorkQueue, err, cfg.name)
	}
	done, err := NewBinarySemaphore(s, false)
	if err != nil {
		items.Close()
		return nil, newCreateError(ResourceWorkQueue, err, cfg.name)
	}
	wq := &WorkQueue{s: s, items: items, done: done}
	wq.worker, err = NewThread(s, RunnerFunc(wq.run), cfg)
	if err != nil {
		items.Close()
		done.Close()
		return nil, newCreateError(ResourceWorkQueue, err, cfg.name)
	}
	wq.worker.Start()
	return wq, nil
}

func (wq *WorkQueue) run(ctx context.Context) error {
	for {
		item, r := wq.items.Dequeue(ctx, WaitForever)
		switch r {
		case Success:
		case Canceled:
			return ctx.Err()
		default:
			return r.Err()
		}
		if item == nil {
			wq.done.Give(ctx)
			return nil
		}
		item.Run(ctx)
	}
}

var errNilWorkItem = errors.New("rtos: nil WorkItem")

// QueueWork appends item, waiting up to timeout ticks for room. It returns
// Invalid once Close has been called.
//
// Panics if item is nil.
func (wq *WorkQueue) QueueWork(ctx context.Context, item WorkItem, timeout kernel.Tick) Result {
	if item == nil {
		panic(errNilWorkItem)
	}
	if wq.state.AddAcqRel(1)&wqClosed != 0 {
		wq.state.AddAcqRel(^uint64(0))
		return Invalid
	}
	r := wq.items.Enqueue(ctx, &item, timeout)
	wq.state.AddAcqRel(^uint64(0))
	return r
}

// Pending returns the number of queued items not yet started.
func (wq *WorkQueue) Pending() int {
	return wq.items.Len()
}

// Worker returns the worker thread.
func (wq *WorkQueue) Worker() *Thread {
	return wq.worker
}

// Close lets the worker finish the items already queued, stops it and
// releases the queue. Items accepted by a QueueWork racing with Close run
// before the worker stops. Later calls return Invalid.
func (wq *WorkQueue) Close(ctx context.Context) Result {
	for {
		v := wq.state.LoadAcquire()
		if v&wqClosed != 0 {
			return Invalid
		}
		if wq.state.CompareAndSwapAcqRel(v, v|wqClosed) {
			break
		}
	}
	// The stop item goes in behind every accepted item.
	b := iox.Backoff{}
	for wq.state.LoadAcquire() != wqClosed {
		if ctx.Err() != nil {
			return Canceled
		}
		b.Wait()
	}
	var stop WorkItem
	if r := wq.items.Enqueue(ctx, &stop, WaitForever); !r.OK() {
		return r
	}
	if r := wq.done.Take(ctx, WaitForever); !r.OK() {
		return r
	}
	if err := wq.worker.Join(ctx); err != nil && ctx.Err() != nil {
		return Canceled
	}
	wq.items.Close()
	wq.done.Close()
	return Success
}
