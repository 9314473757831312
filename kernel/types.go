// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kernel

import (
	"context"
	"math"
	"strconv"
)

// Tick counts kernel tick interrupts.
type Tick uint32

const (
	// NoWait makes a blocking operation return immediately.
	NoWait Tick = 0
	// MaxDelay makes a blocking operation wait forever.
	MaxDelay Tick = math.MaxUint32
)

// Priority is a task priority. Higher values run first; 0 is the idle
// priority.
type Priority uint32

// EventBits is an event group bit set. Only the low 24 bits are usable.
type EventBits uint32

// EventBitsMask selects the usable bits of an event group.
const EventBitsMask EventBits = 0x00FF_FFFF

// Opaque kernel object handles. The zero value is the null handle.
type (
	TaskHandle       uintptr
	QueueHandle      uintptr
	SemaphoreHandle  uintptr
	TimerHandle      uintptr
	EventGroupHandle uintptr
)

// TaskFunc is a task body. ctx carries the task identity and is canceled
// when the task is deleted or the scheduler ends. Every created task runs
// its body exactly once: a task deleted before it was scheduled runs it
// with ctx already canceled.
type TaskFunc func(ctx context.Context)

// TimerFunc is a software timer callback. It runs on the timer service task.
type TimerFunc func(ctx context.Context, h TimerHandle)

// PendedFunc is a function deferred to the timer service task.
type PendedFunc func(ctx context.Context, param uint32)

// Status is the outcome of a kernel operation.
type Status uint8

const (
	StatusOK       Status = iota
	StatusFull            // no space and the caller did not wait
	StatusEmpty           // nothing available and the caller did not wait
	StatusTimeout         // the caller waited for the full timeout
	StatusNotOwner        // release of a mutex the caller does not hold
	StatusCanceled        // the caller's context was canceled
	StatusStopped         // the scheduler ended or the calling task was deleted
	StatusInvalid         // null or deleted handle
)

var statusNames = [...]string{
	StatusOK:       "ok",
	StatusFull:     "full",
	StatusEmpty:    "empty",
	StatusTimeout:  "timeout",
	StatusNotOwner: "not owner",
	StatusCanceled: "canceled",
	StatusStopped:  "stopped",
	StatusInvalid:  "invalid handle",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "status(" + strconv.Itoa(int(s)) + ")"
}

// Code is a kernel diagnostic code returned when an object cannot be
// created. Code implements error.
type Code int32

const (
	// CodeNoMemory mirrors errCOULD_NOT_ALLOCATE_REQUIRED_MEMORY.
	CodeNoMemory Code = -1
	// CodeInvalidParam reports a creation parameter the kernel rejects.
	CodeInvalidParam Code = -2
	// CodeSchedulerEnded reports creation after the scheduler ended.
	CodeSchedulerEnded Code = -3
)

func (c Code) Error() string {
	switch c {
	case CodeNoMemory:
		return "could not allocate required memory"
	case CodeInvalidParam:
		return "invalid parameter"
	case CodeSchedulerEnded:
		return "scheduler ended"
	}
	return "kernel error " + strconv.Itoa(int(c))
}

// TaskState is the scheduling state of a task.
type TaskState uint8

const (
	TaskRunning TaskState = iota
	TaskReady
	TaskBlocked
	TaskSuspended
	TaskDeleted
	TaskInvalid
)

var taskStateNames = [...]string{
	TaskRunning:   "running",
	TaskReady:     "ready",
	TaskBlocked:   "blocked",
	TaskSuspended: "suspended",
	TaskDeleted:   "deleted",
	TaskInvalid:   "invalid",
}

func (s TaskState) String() string {
	if int(s) < len(taskStateNames) {
		return taskStateNames[s]
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// SchedulerState is the lifecycle state of the scheduler.
type SchedulerState uint8

const (
	SchedulerNotStarted SchedulerState = iota
	SchedulerRunning
	SchedulerSuspended
	SchedulerEnded
)

func (s SchedulerState) String() string {
	switch s {
	case SchedulerNotStarted:
		return "not started"
	case SchedulerRunning:
		return "running"
	case SchedulerSuspended:
		return "suspended"
	case SchedulerEnded:
		return "ended"
	}
	return "scheduler(" + strconv.Itoa(int(s)) + ")"
}

// NotifyAction selects how a task notification updates the notified
// task's notification value.
type NotifyAction uint8

const (
	NotifyNoAction NotifyAction = iota
	NotifySetBits
	NotifyIncrement
	NotifySetValueWithOverwrite
	NotifySetValueWithoutOverwrite
)

// Position selects where QueueSend places an item.
type Position uint8

const (
	SendToBack Position = iota
	SendToFront
)
