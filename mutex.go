// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos

import (
	"context"

	"code.hybscloud.com/rtos/kernel"
)

// Mutex is a kernel mutex with priority inheritance.
//
// A task blocked in Lock lends its priority to the holder until the holder
// releases its last mutex. Waiters acquire in priority order, FIFO among
// equal priorities, and ownership passes directly to the woken waiter.
//
// Ownership is tied to the caller identity carried by ctx: use the
// context a Thread body receives, or one returned by Scheduler.Adopt.
// Unlock by a task that does not hold the mutex returns NotOwner and is
// reported to the kernel's assert hook. A Mutex must not be used from
// interrupt context.
type Mutex struct {
	mutex
}

// RecursiveMutex is a Mutex its holder may lock again. It is released
// when Unlock has been called as many times as Lock succeeded.
type RecursiveMutex struct {
	mutex
}

type mutex struct {
	_         noCopy
	s         *Scheduler
	h         kernel.SemaphoreHandle
	recursive bool
}

// NewMutex creates an unlocked mutex.
func NewMutex(s *Scheduler) (*Mutex, error) {
	h, err := s.k.SemaphoreCreateMutex()
	if err != nil {
		return nil, newCreateError(ResourceMutex, err, "")
	}
	return &Mutex{mutex{s: s, h: h}}, nil
}

// NewRecursiveMutex creates an unlocked recursive mutex.
func NewRecursiveMutex(s *Scheduler) (*RecursiveMutex, error) {
	h, err := s.k.SemaphoreCreateRecursiveMutex()
	if err != nil {
		return nil, newCreateError(ResourceMutex, err, "recursive")
	}
	return &RecursiveMutex{mutex{s: s, h: h, recursive: true}}, nil
}

// Lock acquires the mutex, waiting up to timeout ticks. It returns
// Unavailable when timeout is NoWait and the mutex is held.
func (m *mutex) Lock(ctx context.Context, timeout kernel.Tick) Result {
	if m.recursive {
		return takeResult(m.s.k.SemaphoreTakeRecursive(ctx, m.h, timeout))
	}
	return takeResult(m.s.k.SemaphoreTake(ctx, m.h, timeout))
}

// Unlock releases the mutex.
func (m *mutex) Unlock(ctx context.Context) Result {
	if m.recursive {
		return resultOf(m.s.k.SemaphoreGiveRecursive(ctx, m.h))
	}
	return resultOf(m.s.k.SemaphoreGive(ctx, m.h))
}

// Holder returns the task holding the mutex, or zero.
func (m *mutex) Holder() kernel.TaskHandle {
	return m.s.k.MutexHolder(m.h)
}

// Close deletes the kernel mutex. Tasks blocked in Lock return Invalid.
func (m *mutex) Close() {
	m.s.k.SemaphoreDelete(m.h)
}

// WithLock runs fn while holding l. It returns the Result error when the
// lock was not acquired, otherwise fn's error.
func WithLock(ctx context.Context, l Locker, timeout kernel.Tick, fn func() error) error {
	if r := l.Lock(ctx, timeout); !r.OK() {
		return r.Err()
	}
	defer l.Unlock(ctx)
	return fn()
}

// LockGuard holds a Locker until Release.
//
//	g, r := rtos.Guard(ctx, m, rtos.WaitForever)
//	if !r.OK() {
//	    return r.Err()
//	}
//	defer g.Release()
type LockGuard struct {
	l   Locker
	ctx context.Context
}

// Guard locks l and returns a guard releasing it. The guard is nil unless
// the Result is Success.
func Guard(ctx context.Context, l Locker, timeout kernel.Tick) (*LockGuard, Result) {
	r := l.Lock(ctx, timeout)
	if !r.OK() {
		return nil, r
	}
	return &LockGuard{l: l, ctx: ctx}, r
}

// Release unlocks the guarded Locker. Later calls do nothing.
func (g *LockGuard) Release() Result {
	if g == nil || g.l == nil {
		return Invalid
	}
	l := g.l
	g.l = nil
	return l.Unlock(g.ctx)
}
