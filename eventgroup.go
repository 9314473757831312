// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos

import (
	"context"

	"code.hybscloud.com/rtos/kernel"
)

// EventGroup is a set of event flags threads can wait on.
//
// Only the low 24 bits (kernel.EventBitsMask) are usable. Setting bits
// releases every waiter whose condition then holds; bits a released waiter
// asked to clear on exit are cleared after all of them are released.
type EventGroup struct {
	_ noCopy
	s *Scheduler
	h kernel.EventGroupHandle
}

// NewEventGroup creates an event group with every bit clear.
func NewEventGroup(s *Scheduler) (*EventGroup, error) {
	h, err := s.k.EventGroupCreate()
	if err != nil {
		return nil, newCreateError(ResourceEventGroup, err, "")
	}
	return &EventGroup{s: s, h: h}, nil
}

// SetBits sets bits and returns the bits as they are after any waiter
// released by the set cleared its own.
func (g *EventGroup) SetBits(ctx context.Context, bits kernel.EventBits) kernel.EventBits {
	return g.s.k.EventGroupSetBits(ctx, g.h, bits)
}

// SetBitsFromISR defers the set to the timer service, since releasing
// waiters is unbounded work. It returns Full when the timer command queue
// has no room.
func (g *EventGroup) SetBitsFromISR(bits kernel.EventBits) (Result, bool) {
	st, woken := g.s.k.EventGroupSetBitsFromISR(g.h, bits)
	return resultOf(st), woken
}

// ClearBits clears bits and returns the bits before the clear.
func (g *EventGroup) ClearBits(ctx context.Context, bits kernel.EventBits) kernel.EventBits {
	return g.s.k.EventGroupClearBits(ctx, g.h, bits)
}

// ClearBitsFromISR is the interrupt-context ClearBits.
func (g *EventGroup) ClearBitsFromISR(bits kernel.EventBits) Result {
	return resultOf(g.s.k.EventGroupClearBitsFromISR(g.h, bits))
}

func (g *EventGroup) GetBits() kernel.EventBits {
	return g.s.k.EventGroupGetBits(g.h)
}

func (g *EventGroup) GetBitsFromISR() kernel.EventBits {
	return g.s.k.EventGroupGetBitsFromISR(g.h)
}

// WaitBits waits up to timeout ticks until all (waitAll) or any of bits
// are set, and returns the group bits at release. With clearOnExit the
// waited bits are cleared on a successful return.
//
// It returns Timeout when the condition did not hold in time, including
// a NoWait call.
func (g *EventGroup) WaitBits(ctx context.Context, bits kernel.EventBits, clearOnExit, waitAll bool, timeout kernel.Tick) (kernel.EventBits, Result) {
	v, st := g.s.k.EventGroupWaitBits(ctx, g.h, bits, clearOnExit, waitAll, timeout)
	return v, waitResult(st)
}

// Sync sets set and waits up to timeout ticks for all of waitFor, then
// clears waitFor. It is a rendezvous: each party sets its own bit and
// waits for everyone's.
func (g *EventGroup) Sync(ctx context.Context, set, waitFor kernel.EventBits, timeout kernel.Tick) (kernel.EventBits, Result) {
	v, st := g.s.k.EventGroupSync(ctx, g.h, set, waitFor, timeout)
	return v, waitResult(st)
}

// Close deletes the kernel event group. Blocked waiters return Invalid.
func (g *EventGroup) Close() {
	g.s.k.EventGroupDelete(g.h)
}

func waitResult(st kernel.Status) Result {
	if st == kernel.StatusEmpty {
		return Timeout
	}
	return resultOf(st)
}
