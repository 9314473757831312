// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hosted

import (
	"context"

	"code.hybscloud.com/rtos/kernel"
)

func (k *Kernel) SemaphoreCreateMutex() (kernel.SemaphoreHandle, error) {
	return k.newSemaphore(kindMutex, 1, 1)
}

func (k *Kernel) SemaphoreCreateRecursiveMutex() (kernel.SemaphoreHandle, error) {
	return k.newSemaphore(kindRecursiveMutex, 1, 1)
}

func (k *Kernel) SemaphoreCreateBinary(set bool) (kernel.SemaphoreHandle, error) {
	var initial uint32
	if set {
		initial = 1
	}
	return k.newSemaphore(kindBinary, 1, initial)
}

func (k *Kernel) SemaphoreCreateCounting(maxCount, initialCount uint32) (kernel.SemaphoreHandle, error) {
	if maxCount == 0 || initialCount > maxCount {
		return 0, kernel.CodeInvalidParam
	}
	return k.newSemaphore(kindCounting, maxCount, initialCount)
}

func (k *Kernel) newSemaphore(kind queueKind, maxCount, initialCount uint32) (kernel.SemaphoreHandle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.state == kernel.SchedulerEnded {
		return 0, kernel.CodeSchedulerEnded
	}
	if !k.alloc(queueOverhead) {
		k.log.Debug("semaphore allocation failed", "kind", kind)
		return 0, kernel.CodeNoMemory
	}
	h := kernel.SemaphoreHandle(k.newHandle())
	k.sems[h] = &queue{kind: kind, length: maxCount, max: maxCount, count: initialCount, heap: queueOverhead}
	return h, nil
}

func (k *Kernel) SemaphoreDelete(h kernel.SemaphoreHandle) {
	k.mu.Lock()
	defer k.mu.Unlock()
	q := k.sems[h]
	if q == nil {
		return
	}
	delete(k.sems, h)
	if q.holder != nil {
		k.dropHeld(q.holder)
		q.holder = nil
	}
	k.destroyLocked(q)
}

func (k *Kernel) SemaphoreTake(ctx context.Context, h kernel.SemaphoreHandle, timeout kernel.Tick) kernel.Status {
	return k.take(ctx, h, timeout)
}

func (k *Kernel) SemaphoreTakeRecursive(ctx context.Context, h kernel.SemaphoreHandle, timeout kernel.Tick) kernel.Status {
	return k.take(ctx, h, timeout)
}

func (k *Kernel) SemaphoreGive(ctx context.Context, h kernel.SemaphoreHandle) kernel.Status {
	return k.give(ctx, h)
}

func (k *Kernel) SemaphoreGiveRecursive(ctx context.Context, h kernel.SemaphoreHandle) kernel.Status {
	return k.give(ctx, h)
}

func (k *Kernel) take(ctx context.Context, h kernel.SemaphoreHandle, timeout kernel.Tick) kernel.Status {
	t, st := k.enter(ctx)
	defer k.mu.Unlock()
	if st != kernel.StatusOK {
		return st
	}
	dl := k.deadline(timeout)
	for {
		q := k.sems[h]
		if q == nil {
			return kernel.StatusInvalid
		}
		if q.kind == kindRecursiveMutex && q.holder == t {
			q.depth++
			return kernel.StatusOK
		}
		if k.tryTake(q, t) {
			return kernel.StatusOK
		}
		if timeout == kernel.NoWait {
			return kernel.StatusEmpty
		}
		if dl.expired(k.now()) {
			return kernel.StatusTimeout
		}
		w := newWaiter(t)
		q.receivers.insert(w)
		if q.holder != nil {
			k.inherit(q.holder, w.prio)
		}
		switch st = k.block(ctx, w, dl); st {
		case kernel.StatusOK:
			return st
		case statusRetry:
		default:
			if k.sems[h] == q {
				k.disinheritAfterTimeout(q)
			}
			return st
		}
	}
}

func (k *Kernel) tryTake(q *queue, t *tcb) bool {
	if q.count == 0 {
		return false
	}
	q.count--
	if q.isMutex() {
		q.holder, q.depth = t, 1
		t.held++
	}
	return true
}

func (k *Kernel) give(ctx context.Context, h kernel.SemaphoreHandle) kernel.Status {
	t, st := k.enter(ctx)
	defer k.mu.Unlock()
	if st != kernel.StatusOK {
		return st
	}
	q := k.sems[h]
	if q == nil {
		return kernel.StatusInvalid
	}
	if q.isMutex() {
		if q.holder != t {
			k.fail("mutex released by a task that does not hold it", "caller", t.name)
			return kernel.StatusNotOwner
		}
		if q.kind == kindRecursiveMutex {
			q.depth--
			if q.depth > 0 {
				return kernel.StatusOK
			}
		}
		k.releaseMutex(q, t)
		return kernel.StatusOK
	}
	if ok, _ := k.tryGive(q); !ok {
		return kernel.StatusFull
	}
	return kernel.StatusOK
}

// releaseMutex passes ownership to the first eligible waiter, or frees the
// mutex when there is none.
func (k *Kernel) releaseMutex(q *queue, t *tcb) {
	q.holder, q.depth = nil, 0
	k.dropHeld(t)
	if w := q.receivers.first(); w != nil {
		q.holder, q.depth = w.t, 1
		w.t.held++
		k.resolve(w, kernel.StatusOK)
		if top := q.receivers.topPriority(); top > w.t.effective {
			k.inherit(w.t, top)
		}
		return
	}
	q.count = 1
}

func (k *Kernel) tryGive(q *queue) (ok, readied bool) {
	if q.count >= q.max {
		return false, false
	}
	if w := q.receivers.first(); w != nil {
		k.resolve(w, kernel.StatusOK)
		return true, true
	}
	q.count++
	return true, false
}

// dropHeld records that t released a mutex. Inherited priority is kept
// until the last held mutex goes.
func (k *Kernel) dropHeld(t *tcb) {
	t.held--
	if t.held == 0 && t.inherited != 0 {
		t.inherited = 0
		k.updatePriority(t)
	}
}

func (k *Kernel) inherit(holder *tcb, p kernel.Priority) {
	if p > holder.inherited {
		holder.inherited = p
		k.updatePriority(holder)
	}
}

// disinheritAfterTimeout lowers the holder's priority to what the remaining
// waiters justify once a waiter gives up.
func (k *Kernel) disinheritAfterTimeout(q *queue) {
	if q.holder == nil || q.holder.held != 1 {
		return
	}
	q.holder.inherited = q.receivers.topPriority()
	k.updatePriority(q.holder)
}

func (k *Kernel) SemaphoreTakeFromISR(h kernel.SemaphoreHandle) (kernel.Status, bool) {
	k.enterISR()
	defer k.mu.Unlock()
	q := k.sems[h]
	if q == nil {
		return kernel.StatusInvalid, false
	}
	if q.isMutex() {
		k.fail("mutex taken from interrupt context")
		return kernel.StatusInvalid, false
	}
	if !k.tryTake(q, nil) {
		return kernel.StatusEmpty, false
	}
	return kernel.StatusOK, false
}

func (k *Kernel) SemaphoreGiveFromISR(h kernel.SemaphoreHandle) (kernel.Status, bool) {
	k.enterISR()
	defer k.mu.Unlock()
	q := k.sems[h]
	if q == nil {
		return kernel.StatusInvalid, false
	}
	if q.isMutex() {
		k.fail("mutex given from interrupt context")
		return kernel.StatusInvalid, false
	}
	ok, readied := k.tryGive(q)
	if !ok {
		return kernel.StatusFull, false
	}
	return kernel.StatusOK, readied
}

func (k *Kernel) SemaphoreCount(h kernel.SemaphoreHandle) uint32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	if q := k.sems[h]; q != nil {
		return q.count
	}
	return 0
}

func (k *Kernel) MutexHolder(h kernel.SemaphoreHandle) kernel.TaskHandle {
	k.mu.Lock()
	defer k.mu.Unlock()
	if q := k.sems[h]; q != nil && q.holder != nil {
		return q.holder.handle
	}
	return 0
}
