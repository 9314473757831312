// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package kernel defines the narrow interface through which package rtos
// consumes a real-time kernel.
//
// The interface mirrors the public primitive API of a FreeRTOS-class kernel:
// task create/delete/suspend/resume, queue send/receive, mutex and semaphore
// take/give, software timers, event groups, critical sections and the tick
// hook. Every operation that may be called from an interrupt has a separate
// FromISR method. FromISR methods never take a context or a timeout: they
// cannot block, and they report through their second return value whether a
// task was readied that should preempt the interrupted one.
//
// # Handles
//
// Kernel objects are referenced by opaque handles. The zero handle is the
// null handle returned alongside a creation error. A port must never hand out
// a deleted handle again; operations on a stale handle return [StatusInvalid].
//
// # Caller identity
//
// Operations whose semantics depend on the calling task (mutex ownership,
// critical-section nesting, delays, notifications) take a [context.Context]
// carrying the caller's [TaskHandle]. Ports attach it to the context handed
// to every task body; see [WithTask] and [TaskFromContext].
//
// # Outcomes
//
// Creation failures are returned as [Code] errors. Every other operation
// returns a [Status]; timeouts and full/empty conditions are ordinary
// statuses, never errors.
package kernel
