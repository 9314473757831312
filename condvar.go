// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos

import (
	"context"
	"sync"

	"github.com/gammazero/deque"

	"code.hybscloud.com/rtos/kernel"
)

// ConditionVariable lets threads wait, with a Mutex released, until
// another thread signals them.
//
// Waiters park on their task notification and are woken in the order they
// started waiting. A Signal with no waiter is lost. Like any condition
// variable, re-check the predicate after Wait returns.
//
//	m.Lock(ctx, rtos.WaitForever)
//	for !ready {
//	    cv.Wait(ctx, m, rtos.WaitForever)
//	}
//	m.Unlock(ctx)
type ConditionVariable struct {
	_       noCopy
	s       *Scheduler
	mu      sync.Mutex
	waiters deque.Deque[kernel.TaskHandle]
}

// NewConditionVariable creates a condition variable with no waiters.
func NewConditionVariable(s *Scheduler) *ConditionVariable {
	return &ConditionVariable{s: s}
}

// Wait releases m, waits up to timeout ticks for Signal or Broadcast and
// re-acquires m before returning. m must be held by the caller.
//
// It returns Timeout when no signal arrived in time and Invalid when ctx
// carries no caller identity. m is held on return whenever the first
// Unlock succeeded.
func (cv *ConditionVariable) Wait(ctx context.Context, m *Mutex, timeout kernel.Tick) Result {
	self, ok := kernel.TaskFromContext(ctx)
	if !ok {
		return Invalid
	}
	cv.mu.Lock()
	cv.waiters.PushBack(self)
	cv.mu.Unlock()

	if r := m.Unlock(ctx); !r.OK() {
		cv.remove(self)
		return r
	}

	_, st := cv.s.k.TaskNotifyTake(ctx, false, timeout)
	r := resultOf(st)
	if st != kernel.StatusOK && !cv.remove(self) {
		// Signaled between the wait expiring and the removal.
		cv.s.k.TaskNotifyTake(ctx, false, NoWait)
		r = Success
	}
	if r == Empty {
		r = Timeout
	}

	if lr := m.Lock(ctx, WaitForever); !lr.OK() {
		return lr
	}
	return r
}

// remove drops h from the waiters and reports whether it was there.
func (cv *ConditionVariable) remove(h kernel.TaskHandle) bool {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	i := cv.waiters.Index(func(w kernel.TaskHandle) bool { return w == h })
	if i < 0 {
		return false
	}
	cv.waiters.Remove(i)
	return true
}

// Signal wakes the longest waiting thread, if any.
func (cv *ConditionVariable) Signal() {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	for cv.waiters.Len() > 0 {
		h := cv.waiters.PopFront()
		if cv.s.k.TaskNotify(h, 1, kernel.NotifyIncrement) {
			return
		}
	}
}

// Broadcast wakes every waiting thread.
func (cv *ConditionVariable) Broadcast() {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	for cv.waiters.Len() > 0 {
		cv.s.k.TaskNotify(cv.waiters.PopFront(), 1, kernel.NotifyIncrement)
	}
}

// Waiting returns the number of waiting threads.
func (cv *ConditionVariable) Waiting() int {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	return cv.waiters.Len()
}
