// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos

import (
	"context"

	"code.hybscloud.com/rtos/kernel"
)

// TaskletFunc is deferred work. It runs on the timer service task with the
// parameter given to Schedule.
type TaskletFunc func(ctx context.Context, param uint32)

// Tasklet defers work from interrupt context to task context.
//
// A scheduled run is pended to the timer service and runs there, so the
// interrupt handler returns without waiting for the work. One run is in
// flight at a time: Schedule waits up to its timeout for the previous run
// to finish. Close waits for an in-flight run before releasing the
// tasklet.
type Tasklet struct {
	_    noCopy
	s    *Scheduler
	fn   TaskletFunc
	idle *Semaphore // given while no run is in flight
}

// NewTasklet creates a tasklet running fn.
//
// Panics if fn is nil.
func NewTasklet(s *Scheduler, fn TaskletFunc) (*Tasklet, error) {
	if fn == nil {
		panic("rtos: nil TaskletFunc")
	}
	idle, err := NewBinarySemaphore(s, true)
	if err != nil {
		return nil, newCreateError(ResourceTasklet, err, "")
	}
	return &Tasklet{s: s, fn: fn, idle: idle}, nil
}

func (t *Tasklet) run(ctx context.Context, param uint32) {
	t.fn(ctx, param)
	t.idle.Give(ctx)
}

// Schedule pends a run with param. timeout bounds both the wait for the
// previous run and the wait for room in the timer command queue.
func (t *Tasklet) Schedule(ctx context.Context, param uint32, timeout kernel.Tick) Result {
	if r := t.idle.Take(ctx, timeout); !r.OK() {
		return r
	}
	st := t.s.k.PendFunctionCall(ctx, t.run, param, timeout)
	if st != kernel.StatusOK {
		t.idle.Give(ctx)
	}
	return resultOf(st)
}

// ScheduleFromISR is the interrupt-context Schedule. It returns
// Unavailable while a run is in flight and Full when the timer command
// queue has no room.
func (t *Tasklet) ScheduleFromISR(param uint32) (Result, bool) {
	if r, _ := t.idle.TakeFromISR(); !r.OK() {
		return r, false
	}
	st, woken := t.s.k.PendFunctionCallFromISR(t.run, param)
	if st != kernel.StatusOK {
		t.idle.GiveFromISR()
	}
	return resultOf(st), woken
}

// Close waits for an in-flight run and releases the tasklet.
func (t *Tasklet) Close(ctx context.Context) Result {
	r := t.idle.Take(ctx, WaitForever)
	t.idle.Close()
	return r
}
