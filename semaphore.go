// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos

import (
	"context"

	"code.hybscloud.com/rtos/kernel"
)

// Semaphore is a counting semaphore; a binary semaphore has a max of one.
//
// The count stays within [0, Max]. Give hands the count straight to the
// highest priority blocked taker, FIFO among equal priorities. Unlike a
// Mutex a Semaphore has no owner, may be given by any task and is usable
// from interrupt context through the FromISR variants.
type Semaphore struct {
	_   noCopy
	s   *Scheduler
	h   kernel.SemaphoreHandle
	max uint32
}

// NewCountingSemaphore creates a semaphore with the given max and initial
// count.
func NewCountingSemaphore(s *Scheduler, maxCount, initialCount uint32) (*Semaphore, error) {
	h, err := s.k.SemaphoreCreateCounting(maxCount, initialCount)
	if err != nil {
		return nil, newCreateError(ResourceSemaphore, err, "counting")
	}
	return &Semaphore{s: s, h: h, max: maxCount}, nil
}

// NewBinarySemaphore creates a binary semaphore, given when set is true.
func NewBinarySemaphore(s *Scheduler, set bool) (*Semaphore, error) {
	h, err := s.k.SemaphoreCreateBinary(set)
	if err != nil {
		return nil, newCreateError(ResourceSemaphore, err, "binary")
	}
	return &Semaphore{s: s, h: h, max: 1}, nil
}

// Take decrements the count, waiting up to timeout ticks while it is zero.
// It returns Unavailable when timeout is NoWait and the count is zero.
func (sem *Semaphore) Take(ctx context.Context, timeout kernel.Tick) Result {
	return takeResult(sem.s.k.SemaphoreTake(ctx, sem.h, timeout))
}

// Give increments the count or wakes a blocked taker. It returns Full
// when the count is already at max.
func (sem *Semaphore) Give(ctx context.Context) Result {
	return resultOf(sem.s.k.SemaphoreGive(ctx, sem.h))
}

// TakeFromISR is the interrupt-context Take. It never blocks.
func (sem *Semaphore) TakeFromISR() (Result, bool) {
	st, woken := sem.s.k.SemaphoreTakeFromISR(sem.h)
	return takeResult(st), woken
}

// GiveFromISR is the interrupt-context Give. woken reports that a blocked
// taker became ready.
func (sem *Semaphore) GiveFromISR() (Result, bool) {
	st, woken := sem.s.k.SemaphoreGiveFromISR(sem.h)
	return resultOf(st), woken
}

// Count returns the current count.
func (sem *Semaphore) Count() uint32 {
	return sem.s.k.SemaphoreCount(sem.h)
}

// Max returns the max count.
func (sem *Semaphore) Max() uint32 {
	return sem.max
}

// Close deletes the kernel semaphore. Blocked takers return Invalid.
func (sem *Semaphore) Close() {
	sem.s.k.SemaphoreDelete(sem.h)
}
