// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hosted

import (
	"context"
	"runtime"

	"code.hybscloud.com/rtos/kernel"
)

const (
	notifyIdle uint8 = iota
	notifyWaiting
	notifyPending
)

// tcb is a task control block. Fields other than k, handle and name are
// guarded by Kernel.mu.
type tcb struct {
	k      *Kernel
	handle kernel.TaskHandle
	name   string

	base      kernel.Priority
	inherited kernel.Priority // highest priority inherited through held mutexes
	effective kernel.Priority
	held      int // mutexes currently held

	heap     int
	attached bool
	started  bool

	suspended bool
	deleted   bool
	waiting   *waiter

	notifyValue  uint32
	notifyState  uint8
	notifyWaiter *waiter

	ctx    context.Context
	cancel context.CancelFunc
}

func (k *Kernel) TaskCreate(fn kernel.TaskFunc, name string, stackDepth uint16, priority kernel.Priority) (kernel.TaskHandle, error) {
	if fn == nil {
		return 0, kernel.CodeInvalidParam
	}
	if stackDepth == 0 {
		stackDepth = k.cfg.MinimalStackSize
	}
	if priority >= k.cfg.MaxPriorities {
		k.log.Warn("task priority clamped", "task", name, "priority", priority, "max", k.cfg.MaxPriorities-1)
		priority = k.cfg.MaxPriorities - 1
	}

	k.mu.Lock()
	if k.state == kernel.SchedulerEnded {
		k.mu.Unlock()
		return 0, kernel.CodeSchedulerEnded
	}
	size := tcbSize + int(stackDepth)*stackWordSize
	if !k.alloc(size) {
		k.mu.Unlock()
		k.log.Debug("task allocation failed", "task", name, "bytes", size)
		return 0, kernel.CodeNoMemory
	}
	t := &tcb{
		k:         k,
		handle:    kernel.TaskHandle(k.newHandle()),
		name:      name,
		base:      priority,
		effective: priority,
		heap:      size,
	}
	t.ctx, t.cancel = context.WithCancel(k.root)
	t.ctx = k.bind(t.ctx, t)
	k.tasks[t.handle] = t
	k.wg.Add(1)
	k.mu.Unlock()

	go k.runTask(t, fn)
	k.log.Debug("task created", "task", name, "handle", t.handle, "priority", priority)
	return t.handle, nil
}

func (k *Kernel) runTask(t *tcb, fn kernel.TaskFunc) {
	defer k.wg.Done()
	select {
	case <-k.started:
		k.mu.Lock()
		k.gateLocked(t)
		t.started = true
		k.mu.Unlock()
	case <-t.ctx.Done():
	}

	// fn runs exactly once, with a canceled ctx when the task was deleted
	// or the scheduler ended before it was scheduled.
	fn(t.ctx)
	k.TaskDelete(t.handle)
}

func (k *Kernel) TaskDelete(h kernel.TaskHandle) {
	k.mu.Lock()
	t := k.tasks[h]
	if t == nil {
		k.mu.Unlock()
		return
	}
	delete(k.tasks, h)
	t.deleted = true
	t.cancel()
	if w := t.waiting; w != nil && !w.done {
		k.resolve(w, kernel.StatusStopped)
	}
	if k.critOwner == t {
		k.critOwner, k.critNest = nil, 0
		k.fail("task deleted inside a critical section", "task", t.name)
	}
	if k.suspOwner == t {
		k.suspOwner, k.suspNest = nil, 0
		if k.state == kernel.SchedulerSuspended {
			k.state = kernel.SchedulerRunning
		}
		k.fail("task deleted with the scheduler suspended", "task", t.name)
	}
	k.free(t.heap)
	k.cond.Broadcast()
	k.mu.Unlock()
	k.log.Debug("task deleted", "task", t.name, "handle", h)
}

// TaskSuspend marks the task suspended. A running task parks at its next
// kernel call; a blocked task stays blocked but is passed over by the
// operations that would otherwise wake it.
func (k *Kernel) TaskSuspend(h kernel.TaskHandle) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if t := k.tasks[h]; t != nil {
		t.suspended = true
	}
}

func (k *Kernel) TaskResume(h kernel.TaskHandle) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if t := k.tasks[h]; t != nil {
		k.resumeLocked(t)
	}
}

func (k *Kernel) TaskResumeFromISR(h kernel.TaskHandle) bool {
	k.enterISR()
	defer k.mu.Unlock()
	if t := k.tasks[h]; t != nil {
		return k.resumeLocked(t)
	}
	return false
}

func (k *Kernel) resumeLocked(t *tcb) bool {
	if !t.suspended {
		return false
	}
	t.suspended = false
	if w := t.waiting; w != nil && !w.done {
		k.resolve(w, statusRetry)
	}
	k.cond.Broadcast()
	return true
}

func (k *Kernel) TaskPriorityGet(h kernel.TaskHandle) kernel.Priority {
	k.mu.Lock()
	defer k.mu.Unlock()
	if t := k.tasks[h]; t != nil {
		return t.effective
	}
	return 0
}

func (k *Kernel) TaskPrioritySet(h kernel.TaskHandle, p kernel.Priority) {
	if p >= k.cfg.MaxPriorities {
		p = k.cfg.MaxPriorities - 1
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if t := k.tasks[h]; t != nil {
		t.base = p
		k.updatePriority(t)
	}
}

// updatePriority recomputes the effective priority and keeps a blocked
// task's place in its event list consistent with it.
func (k *Kernel) updatePriority(t *tcb) {
	eff := max(t.base, t.inherited)
	if eff == t.effective {
		return
	}
	t.effective = eff
	if w := t.waiting; w != nil && w.list != nil && !w.done {
		w.list.reposition(w, eff)
	}
}

func (k *Kernel) TaskState(h kernel.TaskHandle) kernel.TaskState {
	k.mu.Lock()
	defer k.mu.Unlock()
	t := k.tasks[h]
	switch {
	case t == nil:
		if h != 0 && uint64(h) <= k.handles.LoadAcquire() {
			return kernel.TaskDeleted
		}
		return kernel.TaskInvalid
	case t.suspended:
		return kernel.TaskSuspended
	case t.waiting != nil:
		return kernel.TaskBlocked
	case !t.started:
		return kernel.TaskReady
	}
	return kernel.TaskRunning
}

func (k *Kernel) CurrentTask(ctx context.Context) kernel.TaskHandle {
	return k.caller(ctx).handle
}

// =============================================================================
// Delays
// =============================================================================

func (k *Kernel) TaskDelay(ctx context.Context, ticks kernel.Tick) kernel.Status {
	t, st := k.enter(ctx)
	if st != kernel.StatusOK || ticks == 0 {
		k.mu.Unlock()
		if st == kernel.StatusOK {
			runtime.Gosched()
		}
		return st
	}
	st = k.block(ctx, newWaiter(t), k.deadline(ticks))
	k.mu.Unlock()
	return delayStatus(st)
}

func (k *Kernel) TaskDelayUntil(ctx context.Context, previousWake *kernel.Tick, increment kernel.Tick) kernel.Status {
	t, st := k.enter(ctx)
	if st != kernel.StatusOK {
		k.mu.Unlock()
		return st
	}
	now := k.now()
	prev := now - uint64(kernel.Tick(now)-*previousWake)
	wakeAt := prev + uint64(increment)
	*previousWake = kernel.Tick(wakeAt)
	if wakeAt <= now {
		k.mu.Unlock()
		return kernel.StatusOK
	}
	st = k.block(ctx, newWaiter(t), deadline{at: wakeAt})
	k.mu.Unlock()
	return delayStatus(st)
}

// delayStatus maps the end of a delay: expiry and an early resume both
// complete it.
func delayStatus(st kernel.Status) kernel.Status {
	switch st {
	case kernel.StatusTimeout, statusRetry:
		return kernel.StatusOK
	}
	return st
}

func (k *Kernel) TaskYield(ctx context.Context) {
	_, _ = k.enter(ctx)
	k.mu.Unlock()
	runtime.Gosched()
}

// =============================================================================
// Notifications
// =============================================================================

func (k *Kernel) TaskNotify(h kernel.TaskHandle, value uint32, action kernel.NotifyAction) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	ok, _ := k.notifyLocked(h, value, action)
	return ok
}

func (k *Kernel) TaskNotifyFromISR(h kernel.TaskHandle, value uint32, action kernel.NotifyAction) (ok, woken bool) {
	k.enterISR()
	defer k.mu.Unlock()
	return k.notifyLocked(h, value, action)
}

func (k *Kernel) notifyLocked(h kernel.TaskHandle, value uint32, action kernel.NotifyAction) (ok, woken bool) {
	t := k.tasks[h]
	if t == nil {
		return false, false
	}
	prev := t.notifyState
	switch action {
	case kernel.NotifySetBits:
		t.notifyValue |= value
	case kernel.NotifyIncrement:
		t.notifyValue++
	case kernel.NotifySetValueWithOverwrite:
		t.notifyValue = value
	case kernel.NotifySetValueWithoutOverwrite:
		if prev == notifyPending {
			return false, false
		}
		t.notifyValue = value
	}
	t.notifyState = notifyPending
	if w := t.notifyWaiter; w != nil && !w.done && !t.suspended {
		k.resolve(w, kernel.StatusOK)
		woken = true
	}
	return true, woken
}

func (k *Kernel) TaskNotifyWait(ctx context.Context, clearOnEntry, clearOnExit uint32, timeout kernel.Tick) (uint32, kernel.Status) {
	t, st := k.enter(ctx)
	defer k.mu.Unlock()
	if st != kernel.StatusOK {
		return 0, st
	}
	if t.notifyState != notifyPending {
		t.notifyValue &^= clearOnEntry
		if st = k.awaitNotify(ctx, t, timeout, func() bool { return t.notifyState == notifyPending }); st != kernel.StatusOK {
			return t.notifyValue, st
		}
	}
	v := t.notifyValue
	t.notifyValue &^= clearOnExit
	t.notifyState = notifyIdle
	return v, kernel.StatusOK
}

func (k *Kernel) TaskNotifyTake(ctx context.Context, clearOnExit bool, timeout kernel.Tick) (uint32, kernel.Status) {
	t, st := k.enter(ctx)
	defer k.mu.Unlock()
	if st != kernel.StatusOK {
		return 0, st
	}
	if t.notifyValue == 0 {
		if st = k.awaitNotify(ctx, t, timeout, func() bool { return t.notifyValue != 0 }); st != kernel.StatusOK {
			return 0, st
		}
	}
	v := t.notifyValue
	if clearOnExit {
		t.notifyValue = 0
	} else {
		t.notifyValue--
	}
	t.notifyState = notifyIdle
	return v, kernel.StatusOK
}

// awaitNotify blocks t until ready reports true. Called with k.mu held.
func (k *Kernel) awaitNotify(ctx context.Context, t *tcb, timeout kernel.Tick, ready func() bool) kernel.Status {
	if timeout == kernel.NoWait {
		return kernel.StatusEmpty
	}
	dl := k.deadline(timeout)
	for !ready() {
		if dl.expired(k.now()) {
			t.notifyState = notifyIdle
			return kernel.StatusTimeout
		}
		t.notifyState = notifyWaiting
		w := newWaiter(t)
		t.notifyWaiter = w
		st := k.block(ctx, w, dl)
		t.notifyWaiter = nil
		switch st {
		case kernel.StatusOK, statusRetry, kernel.StatusTimeout:
		default:
			if t.notifyState == notifyWaiting {
				t.notifyState = notifyIdle
			}
			return st
		}
	}
	return kernel.StatusOK
}
