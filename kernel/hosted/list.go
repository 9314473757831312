// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hosted

import (
	"github.com/gammazero/deque"

	"code.hybscloud.com/rtos/kernel"
)

// statusRetry resolves a waiter whose task must re-evaluate its condition,
// for example after being resumed while blocked. It never leaves the kernel.
const statusRetry kernel.Status = 0xFF

// waiter is one blocked kernel call. All fields are guarded by Kernel.mu.
type waiter struct {
	t    *tcb
	prio kernel.Priority
	wake chan struct{}

	list    *waitList // event list the waiter sits on, nil when none
	delayed bool      // on the delayed list
	wakeAt  uint64    // absolute tick, valid when delayed

	done   bool
	status kernel.Status

	// Operation payload.
	item any
	pos  kernel.Position
	peek bool

	want        kernel.EventBits
	waitAll     bool
	clearOnExit bool
	bits        kernel.EventBits
}

func newWaiter(t *tcb) *waiter {
	return &waiter{
		t:    t,
		prio: t.effective,
		wake: make(chan struct{}, 1),
	}
}

// waitList is a kernel event list: priority order, FIFO among equal
// priorities.
type waitList struct {
	d deque.Deque[*waiter]
}

func (l *waitList) insert(w *waiter) {
	i := l.d.Index(func(x *waiter) bool { return x.prio < w.prio })
	if i < 0 {
		l.d.PushBack(w)
	} else {
		l.d.Insert(i, w)
	}
	w.list = l
}

func (l *waitList) remove(w *waiter) {
	if i := l.d.Index(func(x *waiter) bool { return x == w }); i >= 0 {
		l.d.Remove(i)
	}
	w.list = nil
}

// first returns the highest priority waiter whose task may run, or nil.
// Waiters of suspended tasks are skipped.
func (l *waitList) first() *waiter {
	for i := 0; i < l.d.Len(); i++ {
		w := l.d.At(i)
		if !w.done && !w.t.suspended {
			return w
		}
	}
	return nil
}

// eligible returns every waiter whose task may run, in list order.
func (l *waitList) eligible() []*waiter {
	var ws []*waiter
	for i := 0; i < l.d.Len(); i++ {
		if w := l.d.At(i); !w.done && !w.t.suspended {
			ws = append(ws, w)
		}
	}
	return ws
}

// topPriority returns the highest waiter priority, or 0 when empty.
func (l *waitList) topPriority() kernel.Priority {
	if l.d.Len() == 0 {
		return 0
	}
	return l.d.Front().prio
}

// reposition moves w to the slot matching its new priority.
func (l *waitList) reposition(w *waiter, p kernel.Priority) {
	l.remove(w)
	w.prio = p
	l.insert(w)
}

func (l *waitList) len() int {
	return l.d.Len()
}

// drain removes and returns all waiters.
func (l *waitList) drain() []*waiter {
	ws := make([]*waiter, 0, l.d.Len())
	for l.d.Len() > 0 {
		w := l.d.PopFront()
		w.list = nil
		ws = append(ws, w)
	}
	return ws
}

// delayedList orders timed waiters by absolute wake tick.
type delayedList struct {
	d deque.Deque[*waiter]
}

func (l *delayedList) insert(w *waiter) {
	i := l.d.Index(func(x *waiter) bool { return x.wakeAt > w.wakeAt })
	if i < 0 {
		l.d.PushBack(w)
	} else {
		l.d.Insert(i, w)
	}
	w.delayed = true
}

func (l *delayedList) remove(w *waiter) {
	if i := l.d.Index(func(x *waiter) bool { return x == w }); i >= 0 {
		l.d.Remove(i)
	}
	w.delayed = false
}

// expire pops every waiter due at or before now.
func (l *delayedList) expire(now uint64) []*waiter {
	var ws []*waiter
	for l.d.Len() > 0 && l.d.Front().wakeAt <= now {
		w := l.d.PopFront()
		w.delayed = false
		ws = append(ws, w)
	}
	return ws
}
