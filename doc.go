// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rtos provides object-oriented concurrency primitives over a
// real-time kernel.
//
// Every object wraps one kernel object reached through a [Scheduler]:
//
//   - Thread: a kernel task running a [Runner]
//   - Mutex, RecursiveMutex: owned locks with priority inheritance
//   - Semaphore: counting and binary semaphores
//   - ReadWriteLock: reader-writer lock with an explicit [RWPolicy]
//   - Queue, Deque, BinaryQueue: bounded message queues of T
//   - Timer, Tasklet: software timers and work deferred from interrupts
//   - TickHook: functions run from the tick interrupt
//   - EventGroup, ConditionVariable, WorkQueue: built on the above
//
// The kernel is an interface ([kernel.Kernel]). Package kernel/hosted
// implements it on goroutines, with a tick driven by a time.Ticker or by
// hand for deterministic tests.
//
// # Quick Start
//
//	k := hosted.MustNew(hosted.DefaultConfig())
//	s := rtos.NewScheduler(k)
//
//	q, err := rtos.NewQueue[int32](s, 4)
//	if err != nil {
//	    return err // *rtos.CreateError
//	}
//
//	rtos.Task("producer").Priority(2).Spawn(s, rtos.RunnerFunc(func(ctx context.Context) error {
//	    for i := int32(0); ; i++ {
//	        if r := q.Enqueue(ctx, &i, rtos.WaitForever); r != rtos.Success {
//	            return r.Err()
//	        }
//	    }
//	}))
//
//	return s.Run(ctx)
//
// # Caller Identity
//
// Kernel calls that block, or that depend on who is calling (mutex
// ownership, notifications, delays), take a context.Context carrying the
// calling task. A Runner receives such a context; pass it down unchanged.
// Goroutines not started as a Thread get one from [Scheduler.Adopt].
// Canceling the context aborts a blocked call with Canceled.
//
// # Results and Errors
//
// Failures split in two tiers:
//
//   - Constructors return a *[CreateError] when the kernel cannot create
//     the object, and no object. errors.Is matches it against the
//     per-resource sentinel (ErrQueueCreate, ...) and the kernel code
//     (kernel.CodeNoMemory, ...).
//   - Operations on a live object return a [Result]. Timeout, Full, Empty
//     and Unavailable are ordinary outcomes of bounded waits, not errors.
//     Result.Err converts a Result for callers that prefer error values,
//     mapping the would-block outcomes to [ErrWouldBlock] from
//     [code.hybscloud.com/iox].
//
// Programmer errors the kernel cannot represent, such as a nil Runner,
// panic with an "rtos:" message.
//
// # Timeouts
//
// Timeouts are in kernel ticks. [NoWait] returns at once, [WaitForever]
// waits until the operation succeeds, the context is done or the scheduler
// ends. Convert with [MsToTicks], [SecondsToTicks] and [DurationToTicks],
// which round up so a wait is never shorter than requested.
//
// # Interrupt Context
//
// Operations usable from interrupt handlers are separate methods with a
// FromISR suffix. They take no context and no timeout, never block and
// return a woken flag reporting that a higher priority task became ready.
// Pass the combined flag to [Scheduler.YieldFromISR] at handler exit:
//
//	func onRx(b byte) {
//	    r, woken := rxq.EnqueueFromISR(&b)
//	    if r != rtos.Success {
//	        dropped++
//	    }
//	    s.YieldFromISR(woken)
//	}
//
// # Wake Order
//
// Tasks blocked on the same object are released highest priority first
// and FIFO among equal priorities. The released task receives the item,
// count or lock directly, so a task arriving later cannot take it first.
// Suspended waiters are passed over until resumed.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic flags with explicit memory
// ordering and [github.com/gammazero/deque] for waiter lists.
package rtos
