// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos

import (
	"context"

	"code.hybscloud.com/rtos/kernel"
)

// TimerFunc is a timer callback. It runs on the kernel timer service task
// with a context identifying that task, concurrently with application
// threads, and must not block.
type TimerFunc func(ctx context.Context, t *Timer)

// Timer is a kernel software timer. It is created stopped.
//
// Commands (Start, Stop, Reset, SetPeriod, Close) are queued to the timer
// service; cmdTimeout bounds the wait for room in its command queue, not
// the time until the command takes effect. A periodic timer re-arms itself
// after each expiry; a one-shot timer must be restarted.
type Timer struct {
	_        noCopy
	s        *Scheduler
	h        kernel.TimerHandle
	name     string
	periodic bool
	fn       TimerFunc
}

// NewTimer creates a stopped timer firing period ticks after it is
// started.
//
// Panics if fn is nil.
func NewTimer(s *Scheduler, name string, period kernel.Tick, periodic bool, fn TimerFunc) (*Timer, error) {
	if fn == nil {
		panic("rtos: nil TimerFunc")
	}
	t := &Timer{s: s, name: name, periodic: periodic, fn: fn}
	h, err := s.k.TimerCreate(name, period, periodic, func(ctx context.Context, _ kernel.TimerHandle) {
		t.fn(ctx, t)
	})
	if err != nil {
		return nil, newCreateError(ResourceTimer, err, name)
	}
	t.h = h
	return t, nil
}

// Start arms the timer to expire period ticks from now. Starting an
// active timer restarts it.
func (t *Timer) Start(ctx context.Context, cmdTimeout kernel.Tick) Result {
	return resultOf(t.s.k.TimerStart(ctx, t.h, cmdTimeout))
}

// StartFromISR is the interrupt-context Start.
func (t *Timer) StartFromISR() (Result, bool) {
	st, woken := t.s.k.TimerStartFromISR(t.h)
	return resultOf(st), woken
}

// Stop disarms the timer.
func (t *Timer) Stop(ctx context.Context, cmdTimeout kernel.Tick) Result {
	return resultOf(t.s.k.TimerStop(ctx, t.h, cmdTimeout))
}

// StopFromISR is the interrupt-context Stop.
func (t *Timer) StopFromISR() (Result, bool) {
	st, woken := t.s.k.TimerStopFromISR(t.h)
	return resultOf(st), woken
}

// Reset re-arms the timer to expire period ticks from now, starting it if
// stopped.
func (t *Timer) Reset(ctx context.Context, cmdTimeout kernel.Tick) Result {
	return resultOf(t.s.k.TimerReset(ctx, t.h, cmdTimeout))
}

// ResetFromISR is the interrupt-context Reset.
func (t *Timer) ResetFromISR() (Result, bool) {
	st, woken := t.s.k.TimerResetFromISR(t.h)
	return resultOf(st), woken
}

// SetPeriod changes the period and re-arms the timer with it, starting it
// if stopped.
func (t *Timer) SetPeriod(ctx context.Context, period, cmdTimeout kernel.Tick) Result {
	return resultOf(t.s.k.TimerChangePeriod(ctx, t.h, period, cmdTimeout))
}

// SetPeriodFromISR is the interrupt-context SetPeriod.
func (t *Timer) SetPeriodFromISR(period kernel.Tick) (Result, bool) {
	st, woken := t.s.k.TimerChangePeriodFromISR(t.h, period)
	return resultOf(st), woken
}

// IsActive reports whether the timer is armed. Commands take effect when
// the timer service processes them, so IsActive lags a Start or Stop.
func (t *Timer) IsActive() bool {
	return t.s.k.TimerIsActive(t.h)
}

func (t *Timer) Period() kernel.Tick {
	return t.s.k.TimerPeriod(t.h)
}

func (t *Timer) Name() string {
	return t.name
}

func (t *Timer) Periodic() bool {
	return t.periodic
}

// DaemonTask returns the handle of the timer service task running the
// callbacks.
func (s *Scheduler) DaemonTask() kernel.TaskHandle {
	return s.k.TimerDaemonTask()
}

// Close stops and deletes the timer, waiting as long as needed for room
// in the command queue.
func (t *Timer) Close(ctx context.Context) Result {
	return resultOf(t.s.k.TimerDelete(ctx, t.h, WaitForever))
}
