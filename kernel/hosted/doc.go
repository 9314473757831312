// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hosted implements kernel.Kernel on top of the Go runtime, the way
// a simulator port runs a real-time kernel on a desktop operating system.
//
// Each task is a goroutine. Priorities decide who is served first whenever
// a resource becomes available: the highest priority blocked caller gets a
// freed item, semaphore count or mutex directly, and equal priorities are
// served in arrival order. The Go scheduler still decides which runnable
// goroutine executes, so priorities do not preempt.
//
// Time advances in ticks. By default a ticker goroutine raises the tick
// interrupt every Config.TickPeriod; with Config.ManualTick the caller
// drives time with Kernel.Tick, which makes timeout behaviour
// deterministic in tests.
//
// Critical sections and scheduler suspension are enforced at kernel entry:
// while another task holds them, kernel calls wait. Code that does not call
// into the kernel is not stopped. The same applies to TaskSuspend, which
// takes effect at the suspended task's next kernel call.
//
// Timer commands and calls pended from interrupts travel through a bounded
// lock-free command queue drained by the timer service task.
//
// Basic usage:
//
//	k := hosted.MustNew(hosted.DefaultConfig())
//	q, _ := k.QueueCreate(4, 4)
//	k.TaskCreate(func(ctx context.Context) {
//		k.QueueSend(ctx, q, int32(1), kernel.SendToBack, kernel.MaxDelay)
//	}, "producer", 128, 1)
//	k.StartScheduler()
//	defer k.EndScheduler()
package hosted
