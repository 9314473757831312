// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos

import (
	"context"
	"errors"

	"code.hybscloud.com/atomix"

	"code.hybscloud.com/rtos/kernel"
)

// Runner is the body of a Thread. Run executes once, in the thread's own
// task, with a context that identifies the thread and is canceled when the
// thread is deleted or the scheduler ends. Run must return promptly once
// that context is done.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Cleaner is implemented by Runners that release resources after Run
// returns. Cleanup runs in the thread's task.
type Cleaner interface {
	Cleanup()
}

// ThreadState is the lifecycle state of a Thread.
//
//	Created -> Ready/Running <-> Blocked <-> Suspended -> Terminated
type ThreadState uint8

const (
	ThreadCreated ThreadState = iota
	ThreadReady
	ThreadRunning
	ThreadBlocked
	ThreadSuspended
	ThreadTerminated
)

var threadStateNames = [...]string{
	ThreadCreated:    "Created",
	ThreadReady:      "Ready",
	ThreadRunning:    "Running",
	ThreadBlocked:    "Blocked",
	ThreadSuspended:  "Suspended",
	ThreadTerminated: "Terminated",
}

func (s ThreadState) String() string {
	if int(s) < len(threadStateNames) {
		return threadStateNames[s]
	}
	return "ThreadState(?)"
}

// Thread owns one kernel task running a Runner.
//
// A Thread is created parked; Start releases its body once the scheduler
// runs. The thread terminates when Run returns or when it is deleted, and
// its handle is never reused.
//
// Methods that act on the calling task (Delay, DelayUntil, Yield,
// NotifyWait, NotifyTake) must be called from the thread's own body with
// the context it received.
type Thread struct {
	_      noCopy
	s      *Scheduler
	h      kernel.TaskHandle
	name   string
	runner Runner

	started atomix.Uint64
	startc  chan struct{}
	done    chan struct{}
	err     error

	lastWake      kernel.Tick
	lastWakeValid bool
}

// NewThread creates the kernel task for r. A nil cfg uses the defaults of
// Task("Default").
//
// Panics if r is nil.
func NewThread(s *Scheduler, r Runner, cfg *ThreadConfig) (*Thread, error) {
	if r == nil {
		panic("rtos: nil Runner")
	}
	if cfg == nil {
		cfg = Task("Default")
	}
	t := &Thread{
		s:      s,
		name:   cfg.name,
		runner: r,
		startc: make(chan struct{}),
		done:   make(chan struct{}),
	}
	ready := make(chan struct{})
	h, err := s.k.TaskCreate(func(ctx context.Context) {
		<-ready
		t.body(ctx)
	}, cfg.name, cfg.stackDepth, cfg.priority)
	if err != nil {
		return nil, newCreateError(ResourceThread, err, cfg.name)
	}
	t.h = h
	s.threads.Store(h, t)
	close(ready)
	s.log.Debug("thread created", "thread", cfg.name, "priority", cfg.priority, "stack", cfg.stackDepth)
	return t, nil
}

func (t *Thread) body(ctx context.Context) {
	defer close(t.done)
	defer t.s.threads.Delete(t.h)

	select {
	case <-t.startc:
	case <-ctx.Done():
	}
	if ctx.Err() != nil {
		// Deleted before it ran.
		return
	}

	err := t.runner.Run(ctx)
	if c, ok := t.runner.(Cleaner); ok {
		c.Cleanup()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		t.s.log.Error("thread body failed", "thread", t.name, "err", err)
	}
	t.err = err
}

// Start releases the thread body. It reports false if the thread was
// already started.
func (t *Thread) Start() bool {
	if !t.started.CompareAndSwapAcqRel(0, 1) {
		return false
	}
	close(t.startc)
	return true
}

func (t *Thread) Name() string {
	return t.name
}

// Handle returns the kernel task handle.
func (t *Thread) Handle() kernel.TaskHandle {
	return t.h
}

func (t *Thread) State() ThreadState {
	select {
	case <-t.done:
		return ThreadTerminated
	default:
	}
	st := t.s.k.TaskState(t.h)
	if st == kernel.TaskDeleted || st == kernel.TaskInvalid {
		return ThreadTerminated
	}
	if t.started.LoadAcquire() == 0 {
		return ThreadCreated
	}
	switch st {
	case kernel.TaskReady:
		return ThreadReady
	case kernel.TaskBlocked:
		return ThreadBlocked
	case kernel.TaskSuspended:
		return ThreadSuspended
	}
	return ThreadRunning
}

// Suspend suspends the thread. A running thread stops at its next kernel
// call; a blocked thread stays blocked and is passed over by wake-ups
// until resumed.
func (t *Thread) Suspend() {
	t.s.k.TaskSuspend(t.h)
}

func (t *Thread) Resume() {
	t.s.k.TaskResume(t.h)
}

// ResumeFromISR is the interrupt-context Resume. It reports whether a
// context switch should be requested.
func (t *Thread) ResumeFromISR() bool {
	return t.s.k.TaskResumeFromISR(t.h)
}

// Priority returns the effective priority, including any priority
// inherited through held mutexes.
func (t *Thread) Priority() kernel.Priority {
	return t.s.k.TaskPriorityGet(t.h)
}

func (t *Thread) SetPriority(p kernel.Priority) {
	t.s.k.TaskPrioritySet(t.h, p)
}

// Notify sends a direct-to-task notification. It reports false when
// action is kernel.NotifySetValueWithoutOverwrite and a notification is
// already pending, or when the thread has terminated.
func (t *Thread) Notify(value uint32, action kernel.NotifyAction) bool {
	return t.s.k.TaskNotify(t.h, value, action)
}

// NotifyFromISR is the interrupt-context Notify.
func (t *Thread) NotifyFromISR(value uint32, action kernel.NotifyAction) (ok, woken bool) {
	return t.s.k.TaskNotifyFromISR(t.h, value, action)
}

// Done is closed when the thread has terminated.
func (t *Thread) Done() <-chan struct{} {
	return t.done
}

// Join waits for the thread to terminate and returns the error its body
// returned.
func (t *Thread) Join(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Delete terminates the thread: its context is canceled, a blocked call
// returns Canceled and the kernel task is released. A body that ignores
// its context keeps running as a goroutine without a task.
func (t *Thread) Delete() {
	t.s.k.TaskDelete(t.h)
}

// EndScheduler ends the scheduler for every thread. See Scheduler.End.
func (t *Thread) EndScheduler() {
	t.s.End()
}

// =============================================================================
// Calling-thread operations
// =============================================================================

// Delay blocks the calling thread for ticks ticks.
func (t *Thread) Delay(ctx context.Context, ticks kernel.Tick) Result {
	return resultOf(t.s.k.TaskDelay(ctx, ticks))
}

// DelayUntil blocks the calling thread until period ticks after its
// previous DelayUntil wake-up, giving a fixed-rate loop. The first call
// measures from the current tick count.
func (t *Thread) DelayUntil(ctx context.Context, period kernel.Tick) Result {
	if !t.lastWakeValid {
		t.lastWake = t.s.k.TickCount()
		t.lastWakeValid = true
	}
	return resultOf(t.s.k.TaskDelayUntil(ctx, &t.lastWake, period))
}

// ResetDelayUntil makes the next DelayUntil measure from the current tick
// count.
func (t *Thread) ResetDelayUntil() {
	t.lastWakeValid = false
}

// Yield lets other ready tasks run.
func (t *Thread) Yield(ctx context.Context) {
	t.s.k.TaskYield(ctx)
}

// NotifyWait waits up to timeout ticks for a notification and returns its
// value. Bits in clearOnEntry are cleared before waiting and bits in
// clearOnExit after receiving.
func (t *Thread) NotifyWait(ctx context.Context, clearOnEntry, clearOnExit uint32, timeout kernel.Tick) (uint32, Result) {
	v, st := t.s.k.TaskNotifyWait(ctx, clearOnEntry, clearOnExit, timeout)
	return v, resultOf(st)
}

// NotifyTake uses the notification value as a counting semaphore: it waits
// up to timeout ticks for a non-zero value, then decrements it, or clears
// it when clear is true. It returns the value before the update.
func (t *Thread) NotifyTake(ctx context.Context, clear bool, timeout kernel.Tick) (uint32, Result) {
	v, st := t.s.k.TaskNotifyTake(ctx, clear, timeout)
	return v, resultOf(st)
}
