// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kernel

import (
	"context"
	"time"
)

// Kernel is the complete primitive API consumed by package rtos.
type Kernel interface {
	Scheduler
	Tasks
	Queues
	Semaphores
	Timers
	EventGroups
}

// Scheduler covers global scheduler state, time, critical sections and the
// tick hook.
type Scheduler interface {
	// StartScheduler starts the tick interrupt and releases created tasks.
	// It returns without waiting for the scheduler to end.
	StartScheduler() error
	// EndScheduler stops scheduling for good. Blocked calls return
	// StatusStopped and every task context is canceled.
	EndScheduler()
	// SchedulerDone is closed once EndScheduler has completed.
	SchedulerDone() <-chan struct{}
	SchedulerState() SchedulerState

	// SuspendAll suspends the scheduler: kernel calls of other tasks wait
	// until the matching ResumeAll; interrupts keep running.
	SuspendAll(ctx context.Context)
	ResumeAll(ctx context.Context) bool

	TickCount() Tick
	TickCountFromISR() Tick
	TickPeriod() time.Duration
	// SetTickHook installs the function called from the tick interrupt.
	SetTickHook(fn func())

	// EnterCritical masks the tick interrupt, ISR kernel calls and the
	// kernel calls of every other task. Calls nest per caller.
	EnterCritical(ctx context.Context)
	ExitCritical(ctx context.Context)
	// EnterCriticalFromISR returns the mask state to pass back to
	// ExitCriticalFromISR.
	EnterCriticalFromISR() uint32
	ExitCriticalFromISR(saved uint32)
	CriticalNesting() int

	// YieldFromISR requests a context switch at interrupt exit when woken
	// is true.
	YieldFromISR(woken bool)

	// Attach registers a foreign execution context (one not created by
	// TaskCreate) so it has an identity for ownership-sensitive calls.
	Attach(ctx context.Context, name string) (context.Context, error)

	FreeHeapSize() int
	Stats() Stats
}

// Tasks covers task lifecycle, delays and direct-to-task notifications.
type Tasks interface {
	// TaskCreate creates a task running fn. A zero stackDepth selects the
	// port's minimal stack.
	TaskCreate(fn TaskFunc, name string, stackDepth uint16, priority Priority) (TaskHandle, error)
	TaskDelete(h TaskHandle)
	TaskSuspend(h TaskHandle)
	TaskResume(h TaskHandle)
	TaskResumeFromISR(h TaskHandle) bool
	TaskPriorityGet(h TaskHandle) Priority
	TaskPrioritySet(h TaskHandle, p Priority)
	TaskState(h TaskHandle) TaskState
	CurrentTask(ctx context.Context) TaskHandle

	TaskDelay(ctx context.Context, ticks Tick) Status
	TaskDelayUntil(ctx context.Context, previousWake *Tick, increment Tick) Status
	TaskYield(ctx context.Context)

	TaskNotify(h TaskHandle, value uint32, action NotifyAction) bool
	TaskNotifyFromISR(h TaskHandle, value uint32, action NotifyAction) (ok, woken bool)
	TaskNotifyWait(ctx context.Context, clearOnEntry, clearOnExit uint32, timeout Tick) (uint32, Status)
	TaskNotifyTake(ctx context.Context, clearOnExit bool, timeout Tick) (uint32, Status)
}

// Queues covers fixed-capacity message queues. Items are stored by value.
type Queues interface {
	// QueueCreate allocates a queue of length items of itemSize bytes.
	QueueCreate(length, itemSize uint32) (QueueHandle, error)
	QueueDelete(h QueueHandle)

	QueueSend(ctx context.Context, h QueueHandle, item any, pos Position, timeout Tick) Status
	QueueSendFromISR(h QueueHandle, item any, pos Position) (Status, bool)
	// QueueOverwrite writes to a length-one queue whether or not it is full.
	QueueOverwrite(ctx context.Context, h QueueHandle, item any) Status
	QueueOverwriteFromISR(h QueueHandle, item any) (Status, bool)

	QueueReceive(ctx context.Context, h QueueHandle, timeout Tick) (any, Status)
	QueueReceiveFromISR(h QueueHandle) (any, Status, bool)
	QueuePeek(ctx context.Context, h QueueHandle, timeout Tick) (any, Status)
	QueuePeekFromISR(h QueueHandle) (any, Status)

	QueueMessagesWaiting(h QueueHandle) int
	QueueSpacesAvailable(h QueueHandle) int
	QueueReset(h QueueHandle) Status
}

// Semaphores covers mutexes, recursive mutexes, binary and counting
// semaphores.
type Semaphores interface {
	SemaphoreCreateMutex() (SemaphoreHandle, error)
	SemaphoreCreateRecursiveMutex() (SemaphoreHandle, error)
	// SemaphoreCreateBinary creates a binary semaphore, initially given
	// when set is true.
	SemaphoreCreateBinary(set bool) (SemaphoreHandle, error)
	SemaphoreCreateCounting(maxCount, initialCount uint32) (SemaphoreHandle, error)
	SemaphoreDelete(h SemaphoreHandle)

	SemaphoreTake(ctx context.Context, h SemaphoreHandle, timeout Tick) Status
	SemaphoreGive(ctx context.Context, h SemaphoreHandle) Status
	SemaphoreTakeRecursive(ctx context.Context, h SemaphoreHandle, timeout Tick) Status
	SemaphoreGiveRecursive(ctx context.Context, h SemaphoreHandle) Status
	SemaphoreTakeFromISR(h SemaphoreHandle) (Status, bool)
	SemaphoreGiveFromISR(h SemaphoreHandle) (Status, bool)

	SemaphoreCount(h SemaphoreHandle) uint32
	MutexHolder(h SemaphoreHandle) TaskHandle
}

// Timers covers software timers and calls deferred to the timer service.
// Timer commands travel through the timer service command queue; cmdTimeout
// bounds how long a task waits for room in that queue.
type Timers interface {
	TimerCreate(name string, period Tick, autoReload bool, fn TimerFunc) (TimerHandle, error)
	TimerDelete(ctx context.Context, h TimerHandle, cmdTimeout Tick) Status

	TimerStart(ctx context.Context, h TimerHandle, cmdTimeout Tick) Status
	TimerStartFromISR(h TimerHandle) (Status, bool)
	TimerStop(ctx context.Context, h TimerHandle, cmdTimeout Tick) Status
	TimerStopFromISR(h TimerHandle) (Status, bool)
	TimerReset(ctx context.Context, h TimerHandle, cmdTimeout Tick) Status
	TimerResetFromISR(h TimerHandle) (Status, bool)
	TimerChangePeriod(ctx context.Context, h TimerHandle, period Tick, cmdTimeout Tick) Status
	TimerChangePeriodFromISR(h TimerHandle, period Tick) (Status, bool)

	TimerIsActive(h TimerHandle) bool
	TimerPeriod(h TimerHandle) Tick
	TimerDaemonTask() TaskHandle

	PendFunctionCall(ctx context.Context, fn PendedFunc, param uint32, timeout Tick) Status
	PendFunctionCallFromISR(fn PendedFunc, param uint32) (Status, bool)
}

// EventGroups covers event flag groups.
type EventGroups interface {
	EventGroupCreate() (EventGroupHandle, error)
	EventGroupDelete(h EventGroupHandle)

	EventGroupSetBits(ctx context.Context, h EventGroupHandle, bits EventBits) EventBits
	// EventGroupSetBitsFromISR defers the set to the timer service.
	EventGroupSetBitsFromISR(h EventGroupHandle, bits EventBits) (Status, bool)
	EventGroupClearBits(ctx context.Context, h EventGroupHandle, bits EventBits) EventBits
	EventGroupClearBitsFromISR(h EventGroupHandle, bits EventBits) Status
	EventGroupGetBits(h EventGroupHandle) EventBits
	EventGroupGetBitsFromISR(h EventGroupHandle) EventBits

	EventGroupWaitBits(ctx context.Context, h EventGroupHandle, bits EventBits, clearOnExit, waitAll bool, timeout Tick) (EventBits, Status)
	EventGroupSync(ctx context.Context, h EventGroupHandle, set, waitFor EventBits, timeout Tick) (EventBits, Status)
}

// Stats is a snapshot of kernel object counts and activity counters.
type Stats struct {
	Ticks       uint64
	Tasks       int
	Queues      int
	Semaphores  int
	Timers      int
	EventGroups int

	HeapSize        int
	FreeHeap        int
	MinEverFreeHeap int

	TimerCallbacks       uint64
	PendedCalls          uint64
	TickHookCalls        uint64
	YieldRequests        uint64
	TimerCommandsDropped uint64
	AssertFailures       uint64
}
