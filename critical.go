// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos

import "context"

// CriticalSection brackets a region that must not be interleaved with the
// kernel activity of other tasks or interrupts.
//
// Enter masks the tick interrupt, interrupt-context kernel calls and the
// kernel calls of every other task; Exit restores them. Sections nest: the
// kernel counts Enter calls and only the outermost Exit unmasks. Every
// Enter must be matched by exactly one Exit on every path, which Do
// guarantees.
//
// Calling Enter from interrupt context, or EnterCriticalFromISR from task
// context, violates the kernel contract and is not detected.
//
// Keep sections short and never block inside one.
type CriticalSection struct {
	s   *Scheduler
	ctx context.Context
}

// Critical returns the critical section of the task running with ctx.
func (s *Scheduler) Critical(ctx context.Context) CriticalSection {
	return CriticalSection{s: s, ctx: ctx}
}

func (c CriticalSection) Enter() {
	c.s.k.EnterCritical(c.ctx)
}

func (c CriticalSection) Exit() {
	c.s.k.ExitCritical(c.ctx)
}

// Do runs fn inside the section. The section is exited even if fn panics.
func (c CriticalSection) Do(fn func()) {
	c.Enter()
	defer c.Exit()
	fn()
}

// ISRMask is the saved interrupt mask returned by EnterCriticalFromISR.
type ISRMask uint32

// EnterCriticalFromISR is the interrupt-context Enter. Pass the returned
// mask to the matching ExitCriticalFromISR.
func (s *Scheduler) EnterCriticalFromISR() ISRMask {
	return ISRMask(s.k.EnterCriticalFromISR())
}

func (s *Scheduler) ExitCriticalFromISR(m ISRMask) {
	s.k.ExitCriticalFromISR(uint32(m))
}

// CriticalNesting returns the current critical section nesting depth.
func (s *Scheduler) CriticalNesting() int {
	return s.k.CriticalNesting()
}

// SuspendAll suspends the scheduler: the kernel calls of other tasks wait
// until the matching ResumeAll, while interrupts keep running. Calls nest.
func (s *Scheduler) SuspendAll(ctx context.Context) {
	s.k.SuspendAll(ctx)
}

func (s *Scheduler) ResumeAll(ctx context.Context) {
	s.k.ResumeAll(ctx)
}
