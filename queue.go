// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos

import (
	"context"
	"strconv"
	"unsafe"

	"code.hybscloud.com/rtos/kernel"
)

// Queue is a bounded FIFO of T backed by a kernel queue.
//
// Items are copied by value. At most Cap items are resident. A task
// blocked in Dequeue is handed the next item directly and a task blocked
// in Enqueue is admitted into the next free slot, highest priority first
// and FIFO among equal priorities, so order holds against callers that
// arrive later.
//
// Task-context operations take the caller's context and a timeout in
// ticks. Interrupt handlers use the FromISR variants, which never block
// and report whether a higher priority task was woken.
//
// Example:
//
//	q, err := rtos.NewQueue[int32](s, 4)
//	if err != nil {
//	    return err
//	}
//	v := int32(7)
//	q.Enqueue(ctx, &v, rtos.WaitForever)
//	got, r := q.Dequeue(ctx, 10)
type Queue[T any] struct {
	_        noCopy
	s        *Scheduler
	h        kernel.QueueHandle
	capacity int
}

// NewQueue creates a queue holding up to capacity items.
func NewQueue[T any](s *Scheduler, capacity int) (*Queue[T], error) {
	q := &Queue[T]{}
	if err := q.init(s, capacity); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Queue[T]) init(s *Scheduler, capacity int) error {
	if capacity <= 0 {
		return newCreateError(ResourceQueue, kernel.CodeInvalidParam, "capacity "+strconv.Itoa(capacity))
	}
	var zero T
	h, err := s.k.QueueCreate(uint32(capacity), uint32(unsafe.Sizeof(zero)))
	if err != nil {
		return newCreateError(ResourceQueue, err, "capacity "+strconv.Itoa(capacity))
	}
	q.s, q.h, q.capacity = s, h, capacity
	return nil
}

// cast converts a kernel item back to T. A nil item yields the zero value.
func cast[T any](v any) T {
	t, _ := v.(T)
	return t
}

// Enqueue copies *elem to the back of the queue, waiting up to timeout
// ticks for room. It returns Full when timeout is NoWait and the queue is
// full.
func (q *Queue[T]) Enqueue(ctx context.Context, elem *T, timeout kernel.Tick) Result {
	return resultOf(q.s.k.QueueSend(ctx, q.h, *elem, kernel.SendToBack, timeout))
}

// EnqueueFromISR is the interrupt-context Enqueue.
func (q *Queue[T]) EnqueueFromISR(elem *T) (Result, bool) {
	st, woken := q.s.k.QueueSendFromISR(q.h, *elem, kernel.SendToBack)
	return resultOf(st), woken
}

// Dequeue removes the head item, waiting up to timeout ticks for one. It
// returns Empty when timeout is NoWait and the queue is empty.
func (q *Queue[T]) Dequeue(ctx context.Context, timeout kernel.Tick) (T, Result) {
	v, st := q.s.k.QueueReceive(ctx, q.h, timeout)
	return cast[T](v), resultOf(st)
}

// DequeueFromISR is the interrupt-context Dequeue.
func (q *Queue[T]) DequeueFromISR() (T, Result, bool) {
	v, st, woken := q.s.k.QueueReceiveFromISR(q.h)
	return cast[T](v), resultOf(st), woken
}

// Peek returns a copy of the head item without removing it, waiting up to
// timeout ticks for one.
func (q *Queue[T]) Peek(ctx context.Context, timeout kernel.Tick) (T, Result) {
	v, st := q.s.k.QueuePeek(ctx, q.h, timeout)
	return cast[T](v), resultOf(st)
}

// PeekFromISR is the interrupt-context Peek.
func (q *Queue[T]) PeekFromISR() (T, Result) {
	v, st := q.s.k.QueuePeekFromISR(q.h)
	return cast[T](v), resultOf(st)
}

// Len returns the number of resident items.
func (q *Queue[T]) Len() int {
	return q.s.k.QueueMessagesWaiting(q.h)
}

// SpacesLeft returns the number of free slots.
func (q *Queue[T]) SpacesLeft() int {
	return q.s.k.QueueSpacesAvailable(q.h)
}

func (q *Queue[T]) IsEmpty() bool {
	return q.Len() == 0
}

func (q *Queue[T]) IsFull() bool {
	return q.SpacesLeft() == 0
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return q.capacity
}

// Flush discards every resident item.
func (q *Queue[T]) Flush() {
	q.s.k.QueueReset(q.h)
}

// Close deletes the kernel queue. Blocked callers return Invalid.
func (q *Queue[T]) Close() {
	q.s.k.QueueDelete(q.h)
}

// Deque is a Queue that also accepts items at the front. Front-inserted
// items dequeue before every item already resident.
type Deque[T any] struct {
	Queue[T]
}

// NewDeque creates a deque holding up to capacity items.
func NewDeque[T any](s *Scheduler, capacity int) (*Deque[T], error) {
	d := &Deque[T]{}
	if err := d.init(s, capacity); err != nil {
		return nil, err
	}
	return d, nil
}

// EnqueueToFront copies *elem to the front, waiting up to timeout ticks
// for room.
func (d *Deque[T]) EnqueueToFront(ctx context.Context, elem *T, timeout kernel.Tick) Result {
	return resultOf(d.s.k.QueueSend(ctx, d.h, *elem, kernel.SendToFront, timeout))
}

// EnqueueToFrontFromISR is the interrupt-context EnqueueToFront.
func (d *Deque[T]) EnqueueToFrontFromISR(elem *T) (Result, bool) {
	st, woken := d.s.k.QueueSendFromISR(d.h, *elem, kernel.SendToFront)
	return resultOf(st), woken
}

// BinaryQueue is a single-slot queue. Enqueue fails while the slot is
// occupied; Overwrite replaces the occupant, making it a mailbox holding
// the latest value.
type BinaryQueue[T any] struct {
	Queue[T]
}

// NewBinaryQueue creates an empty single-slot queue.
func NewBinaryQueue[T any](s *Scheduler) (*BinaryQueue[T], error) {
	b := &BinaryQueue[T]{}
	if err := b.init(s, 1); err != nil {
		return nil, err
	}
	return b, nil
}

// Overwrite stores *elem whether or not the slot is occupied. It never
// blocks.
func (b *BinaryQueue[T]) Overwrite(ctx context.Context, elem *T) Result {
	return resultOf(b.s.k.QueueOverwrite(ctx, b.h, *elem))
}

// OverwriteFromISR is the interrupt-context Overwrite.
func (b *BinaryQueue[T]) OverwriteFromISR(elem *T) (Result, bool) {
	st, woken := b.s.k.QueueOverwriteFromISR(b.h, *elem)
	return resultOf(st), woken
}
