// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hosted

import (
	"context"

	"code.hybscloud.com/rtos/kernel"
)

type eventGroup struct {
	bits    kernel.EventBits
	waiters waitList
}

func matched(bits, want kernel.EventBits, waitAll bool) bool {
	if waitAll {
		return bits&want == want
	}
	return bits&want != 0
}

func (k *Kernel) EventGroupCreate() (kernel.EventGroupHandle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.state == kernel.SchedulerEnded {
		return 0, kernel.CodeSchedulerEnded
	}
	if !k.alloc(eventGroupSize) {
		return 0, kernel.CodeNoMemory
	}
	h := kernel.EventGroupHandle(k.newHandle())
	k.groups[h] = &eventGroup{}
	return h, nil
}

func (k *Kernel) EventGroupDelete(h kernel.EventGroupHandle) {
	k.mu.Lock()
	defer k.mu.Unlock()
	g := k.groups[h]
	if g == nil {
		return
	}
	delete(k.groups, h)
	for _, w := range g.waiters.drain() {
		if !w.done {
			k.resolve(w, kernel.StatusInvalid)
		}
	}
	k.free(eventGroupSize)
}

// setBitsLocked sets bits and releases every waiter whose condition now
// holds. Bits requested with clearOnExit are cleared once all are released.
func (k *Kernel) setBitsLocked(g *eventGroup, bits kernel.EventBits) {
	g.bits |= bits & kernel.EventBitsMask
	var clear kernel.EventBits
	for _, w := range g.waiters.eligible() {
		if !matched(g.bits, w.want, w.waitAll) {
			continue
		}
		w.bits = g.bits
		if w.clearOnExit {
			clear |= w.want
		}
		k.resolve(w, kernel.StatusOK)
	}
	g.bits &^= clear
}

func (k *Kernel) EventGroupSetBits(ctx context.Context, h kernel.EventGroupHandle, bits kernel.EventBits) kernel.EventBits {
	_, st := k.enter(ctx)
	defer k.mu.Unlock()
	g := k.groups[h]
	if st != kernel.StatusOK || g == nil {
		return 0
	}
	k.setBitsLocked(g, bits)
	return g.bits
}

func (k *Kernel) EventGroupSetBitsFromISR(h kernel.EventGroupHandle, bits kernel.EventBits) (kernel.Status, bool) {
	return k.PendFunctionCallFromISR(func(ctx context.Context, v uint32) {
		k.EventGroupSetBits(ctx, h, kernel.EventBits(v))
	}, uint32(bits))
}

func (k *Kernel) EventGroupClearBits(ctx context.Context, h kernel.EventGroupHandle, bits kernel.EventBits) kernel.EventBits {
	_, st := k.enter(ctx)
	defer k.mu.Unlock()
	g := k.groups[h]
	if st != kernel.StatusOK || g == nil {
		return 0
	}
	prev := g.bits
	g.bits &^= bits
	return prev
}

func (k *Kernel) EventGroupClearBitsFromISR(h kernel.EventGroupHandle, bits kernel.EventBits) kernel.Status {
	st, _ := k.PendFunctionCallFromISR(func(ctx context.Context, v uint32) {
		k.EventGroupClearBits(ctx, h, kernel.EventBits(v))
	}, uint32(bits))
	return st
}

func (k *Kernel) EventGroupGetBits(h kernel.EventGroupHandle) kernel.EventBits {
	k.mu.Lock()
	defer k.mu.Unlock()
	if g := k.groups[h]; g != nil {
		return g.bits
	}
	return 0
}

func (k *Kernel) EventGroupGetBitsFromISR(h kernel.EventGroupHandle) kernel.EventBits {
	k.enterISR()
	defer k.mu.Unlock()
	if g := k.groups[h]; g != nil {
		return g.bits
	}
	return 0
}

func (k *Kernel) EventGroupWaitBits(ctx context.Context, h kernel.EventGroupHandle, bits kernel.EventBits, clearOnExit, waitAll bool, timeout kernel.Tick) (kernel.EventBits, kernel.Status) {
	t, st := k.enter(ctx)
	defer k.mu.Unlock()
	if st != kernel.StatusOK {
		return 0, st
	}
	bits &= kernel.EventBitsMask
	if bits == 0 {
		k.fail("wait for an empty bit set")
		return 0, kernel.StatusInvalid
	}
	dl := k.deadline(timeout)
	for {
		g := k.groups[h]
		if g == nil {
			return 0, kernel.StatusInvalid
		}
		if matched(g.bits, bits, waitAll) {
			v := g.bits
			if clearOnExit {
				g.bits &^= bits
			}
			return v, kernel.StatusOK
		}
		if timeout == kernel.NoWait {
			return g.bits, kernel.StatusEmpty
		}
		if dl.expired(k.now()) {
			return g.bits, kernel.StatusTimeout
		}
		w := newWaiter(t)
		w.want, w.waitAll, w.clearOnExit = bits, waitAll, clearOnExit
		g.waiters.insert(w)
		switch st = k.block(ctx, w, dl); st {
		case kernel.StatusOK:
			return w.bits, st
		case statusRetry, kernel.StatusTimeout:
		default:
			return 0, st
		}
	}
}

// EventGroupSync sets bits and then waits for all of waitFor, clearing
// them on success. It is a rendezvous for the tasks that own waitFor.
func (k *Kernel) EventGroupSync(ctx context.Context, h kernel.EventGroupHandle, set, waitFor kernel.EventBits, timeout kernel.Tick) (kernel.EventBits, kernel.Status) {
	t, st := k.enter(ctx)
	defer k.mu.Unlock()
	if st != kernel.StatusOK {
		return 0, st
	}
	g := k.groups[h]
	if g == nil {
		return 0, kernel.StatusInvalid
	}
	waitFor &= kernel.EventBitsMask
	prev := g.bits
	k.setBitsLocked(g, set)
	if v := prev | set; v&waitFor == waitFor {
		g.bits &^= waitFor
		return v, kernel.StatusOK
	}
	if timeout == kernel.NoWait {
		return g.bits, kernel.StatusEmpty
	}
	dl := k.deadline(timeout)
	for {
		w := newWaiter(t)
		w.want, w.waitAll, w.clearOnExit = waitFor, true, true
		g.waiters.insert(w)
		switch st = k.block(ctx, w, dl); st {
		case kernel.StatusOK:
			return w.bits, st
		case kernel.StatusTimeout:
			if g = k.groups[h]; g != nil {
				return g.bits, st
			}
			return 0, st
		case statusRetry:
			if g = k.groups[h]; g == nil {
				return 0, kernel.StatusInvalid
			}
			if g.bits&waitFor == waitFor {
				v := g.bits
				g.bits &^= waitFor
				return v, kernel.StatusOK
			}
		default:
			return 0, st
		}
	}
}
