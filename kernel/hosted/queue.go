// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hosted

import (
	"context"
	"math"

	"github.com/gammazero/deque"

	"code.hybscloud.com/rtos/kernel"
)

type queueKind uint8

const (
	kindQueue queueKind = iota
	kindMutex
	kindRecursiveMutex
	kindBinary
	kindCounting
)

// queue backs message queues and every semaphore flavour. Fields are
// guarded by Kernel.mu.
type queue struct {
	kind     queueKind
	length   uint32
	itemSize uint32
	heap     int
	items    deque.Deque[any]

	// Semaphores.
	count uint32
	max   uint32
	// Mutexes.
	holder *tcb
	depth  uint32

	senders   waitList // tasks waiting for room
	receivers waitList // tasks waiting for an item or the semaphore
}

func (q *queue) isMutex() bool {
	return q.kind == kindMutex || q.kind == kindRecursiveMutex
}

func (k *Kernel) QueueCreate(length, itemSize uint32) (kernel.QueueHandle, error) {
	if length == 0 {
		return 0, kernel.CodeInvalidParam
	}
	n := uint64(length) * uint64(itemSize)
	if n > math.MaxInt32 {
		return 0, kernel.CodeNoMemory
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.state == kernel.SchedulerEnded {
		return 0, kernel.CodeSchedulerEnded
	}
	size := queueOverhead + int(n)
	if !k.alloc(size) {
		k.log.Debug("queue allocation failed", "length", length, "item_size", itemSize)
		return 0, kernel.CodeNoMemory
	}
	h := kernel.QueueHandle(k.newHandle())
	k.queues[h] = &queue{kind: kindQueue, length: length, itemSize: itemSize, heap: size}
	return h, nil
}

func (k *Kernel) QueueDelete(h kernel.QueueHandle) {
	k.mu.Lock()
	defer k.mu.Unlock()
	q := k.queues[h]
	if q == nil {
		return
	}
	delete(k.queues, h)
	k.destroyLocked(q)
}

// destroyLocked fails every call blocked on q and releases its memory.
func (k *Kernel) destroyLocked(q *queue) {
	for _, w := range append(q.senders.drain(), q.receivers.drain()...) {
		if !w.done {
			k.resolve(w, kernel.StatusInvalid)
		}
	}
	q.items.Clear()
	k.free(q.heap)
}

// trySend stores item or hands it straight to the first eligible receiver.
// Peeking receivers are given a copy first.
func (k *Kernel) trySend(q *queue, item any, pos kernel.Position) (ok, readied bool) {
	if q.items.Len() == 0 {
		for _, w := range q.receivers.eligible() {
			if w.peek {
				w.item = item
				k.resolve(w, kernel.StatusOK)
				readied = true
			}
		}
		if w := q.receivers.first(); w != nil {
			w.item = item
			k.resolve(w, kernel.StatusOK)
			return true, true
		}
	}
	if uint32(q.items.Len()) >= q.length {
		return false, readied
	}
	k.store(q, item, pos)
	return true, readied
}

func (k *Kernel) store(q *queue, item any, pos kernel.Position) {
	if pos == kernel.SendToFront {
		q.items.PushFront(item)
	} else {
		q.items.PushBack(item)
	}
}

// tryReceive takes the head item. The room it frees goes to the first
// eligible blocked sender.
func (k *Kernel) tryReceive(q *queue, peek bool) (item any, ok, readied bool) {
	if q.items.Len() == 0 {
		return nil, false, false
	}
	if peek {
		return q.items.Front(), true, false
	}
	item = q.items.PopFront()
	if w := q.senders.first(); w != nil {
		k.store(q, w.item, w.pos)
		k.resolve(w, kernel.StatusOK)
		readied = true
	}
	return item, true, readied
}

func (k *Kernel) QueueSend(ctx context.Context, h kernel.QueueHandle, item any, pos kernel.Position, timeout kernel.Tick) kernel.Status {
	t, st := k.enter(ctx)
	defer k.mu.Unlock()
	if st != kernel.StatusOK {
		return st
	}
	dl := k.deadline(timeout)
	for {
		q := k.queues[h]
		if q == nil {
			return kernel.StatusInvalid
		}
		if ok, _ := k.trySend(q, item, pos); ok {
			return kernel.StatusOK
		}
		if timeout == kernel.NoWait {
			return kernel.StatusFull
		}
		if dl.expired(k.now()) {
			return kernel.StatusTimeout
		}
		w := newWaiter(t)
		w.item, w.pos = item, pos
		q.senders.insert(w)
		if st = k.block(ctx, w, dl); st != statusRetry {
			return st
		}
	}
}

func (k *Kernel) QueueSendFromISR(h kernel.QueueHandle, item any, pos kernel.Position) (kernel.Status, bool) {
	k.enterISR()
	defer k.mu.Unlock()
	q := k.queues[h]
	if q == nil {
		return kernel.StatusInvalid, false
	}
	ok, readied := k.trySend(q, item, pos)
	if !ok {
		return kernel.StatusFull, readied
	}
	return kernel.StatusOK, readied
}

func (k *Kernel) QueueOverwrite(ctx context.Context, h kernel.QueueHandle, item any) kernel.Status {
	_, st := k.enter(ctx)
	defer k.mu.Unlock()
	if st != kernel.StatusOK {
		return st
	}
	st, _ = k.overwriteLocked(h, item)
	return st
}

func (k *Kernel) QueueOverwriteFromISR(h kernel.QueueHandle, item any) (kernel.Status, bool) {
	k.enterISR()
	defer k.mu.Unlock()
	return k.overwriteLocked(h, item)
}

func (k *Kernel) overwriteLocked(h kernel.QueueHandle, item any) (kernel.Status, bool) {
	q := k.queues[h]
	if q == nil {
		return kernel.StatusInvalid, false
	}
	if q.length != 1 {
		k.fail("overwrite on a queue longer than one item", "length", q.length)
		return kernel.StatusInvalid, false
	}
	if q.items.Len() == 0 {
		_, readied := k.trySend(q, item, kernel.SendToBack)
		return kernel.StatusOK, readied
	}
	q.items.Set(0, item)
	return kernel.StatusOK, false
}

func (k *Kernel) QueueReceive(ctx context.Context, h kernel.QueueHandle, timeout kernel.Tick) (any, kernel.Status) {
	return k.receive(ctx, h, timeout, false)
}

func (k *Kernel) QueuePeek(ctx context.Context, h kernel.QueueHandle, timeout kernel.Tick) (any, kernel.Status) {
	return k.receive(ctx, h, timeout, true)
}

func (k *Kernel) receive(ctx context.Context, h kernel.QueueHandle, timeout kernel.Tick, peek bool) (any, kernel.Status) {
	t, st := k.enter(ctx)
	defer k.mu.Unlock()
	if st != kernel.StatusOK {
		return nil, st
	}
	dl := k.deadline(timeout)
	for {
		q := k.queues[h]
		if q == nil {
			return nil, kernel.StatusInvalid
		}
		if item, ok, _ := k.tryReceive(q, peek); ok {
			return item, kernel.StatusOK
		}
		if timeout == kernel.NoWait {
			return nil, kernel.StatusEmpty
		}
		if dl.expired(k.now()) {
			return nil, kernel.StatusTimeout
		}
		w := newWaiter(t)
		w.peek = peek
		q.receivers.insert(w)
		switch st = k.block(ctx, w, dl); st {
		case kernel.StatusOK:
			return w.item, st
		case statusRetry:
		default:
			return nil, st
		}
	}
}

func (k *Kernel) QueueReceiveFromISR(h kernel.QueueHandle) (any, kernel.Status, bool) {
	k.enterISR()
	defer k.mu.Unlock()
	q := k.queues[h]
	if q == nil {
		return nil, kernel.StatusInvalid, false
	}
	item, ok, readied := k.tryReceive(q, false)
	if !ok {
		return nil, kernel.StatusEmpty, false
	}
	return item, kernel.StatusOK, readied
}

func (k *Kernel) QueuePeekFromISR(h kernel.QueueHandle) (any, kernel.Status) {
	k.enterISR()
	defer k.mu.Unlock()
	q := k.queues[h]
	if q == nil {
		return nil, kernel.StatusInvalid
	}
	if item, ok, _ := k.tryReceive(q, true); ok {
		return item, kernel.StatusOK
	}
	return nil, kernel.StatusEmpty
}

func (k *Kernel) QueueMessagesWaiting(h kernel.QueueHandle) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	if q := k.queues[h]; q != nil {
		return q.items.Len()
	}
	return 0
}

func (k *Kernel) QueueSpacesAvailable(h kernel.QueueHandle) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	if q := k.queues[h]; q != nil {
		return int(q.length) - q.items.Len()
	}
	return 0
}

// QueueReset empties the queue. Blocked senders are admitted into the
// freed room in priority order.
func (k *Kernel) QueueReset(h kernel.QueueHandle) kernel.Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	q := k.queues[h]
	if q == nil {
		return kernel.StatusInvalid
	}
	q.items.Clear()
	for uint32(q.items.Len()) < q.length {
		w := q.senders.first()
		if w == nil {
			break
		}
		k.store(q, w.item, w.pos)
		k.resolve(w, kernel.StatusOK)
	}
	return kernel.StatusOK
}
