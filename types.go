// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos

import (
	"context"

	"code.hybscloud.com/rtos/kernel"
)

// Channel is the combined sender-receiver interface of a message queue.
//
// Both directions may block up to a timeout; Results other than Success
// report why they did not complete.
//
// Example:
//
//	q, _ := rtos.NewQueue[int](s, 16)
//
//	// Send
//	v := 42
//	if r := q.Enqueue(ctx, &v, rtos.NoWait); r != rtos.Success {
//	    // Handle full queue
//	}
//
//	// Receive
//	elem, r := q.Dequeue(ctx, rtos.WaitForever)
//	if r.OK() {
//	    fmt.Println(elem)
//	}
type Channel[T any] interface {
	Sender[T]
	Receiver[T]
	Cap() int
}

// Sender is the task-context interface for enqueueing elements.
//
// The element is passed by pointer to avoid copying large structs. The
// queue stores a copy of the pointed-to value, so the original can be
// modified after Enqueue returns.
type Sender[T any] interface {
	// Enqueue copies *elem to the back of the queue, waiting up to timeout
	// ticks for room.
	Enqueue(ctx context.Context, elem *T, timeout kernel.Tick) Result
}

// Receiver is the task-context interface for dequeueing elements.
type Receiver[T any] interface {
	// Dequeue removes the head element, waiting up to timeout ticks for one.
	// The zero value is returned with any Result other than Success.
	Dequeue(ctx context.Context, timeout kernel.Tick) (T, Result)
}

// ISRSender is the interrupt-context counterpart of Sender.
//
// FromISR operations never block. The woken flag reports that a task of
// higher priority than the interrupted one became ready; the interrupt
// handler passes it to Scheduler.YieldFromISR at its exit.
type ISRSender[T any] interface {
	EnqueueFromISR(elem *T) (r Result, woken bool)
}

// ISRReceiver is the interrupt-context counterpart of Receiver.
type ISRReceiver[T any] interface {
	DequeueFromISR() (elem T, r Result, woken bool)
}

// Locker is implemented by Mutex and RecursiveMutex.
type Locker interface {
	Lock(ctx context.Context, timeout kernel.Tick) Result
	Unlock(ctx context.Context) Result
}

var (
	_ Channel[int]     = (*Queue[int])(nil)
	_ ISRSender[int]   = (*Queue[int])(nil)
	_ ISRReceiver[int] = (*Queue[int])(nil)
	_ Locker           = (*Mutex)(nil)
	_ Locker           = (*RecursiveMutex)(nil)
)

// noCopy guards objects that own a kernel handle; go vet reports copies.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
