// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hosted

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"code.hybscloud.com/atomix"

	"code.hybscloud.com/rtos/kernel"
)

// ErrSchedulerStarted is returned by a second StartScheduler call.
var ErrSchedulerStarted = errors.New("hosted: scheduler already started")

// Heap charges, in bytes, for each kernel object.
const (
	tcbSize        = 96
	stackWordSize  = 4
	queueOverhead  = 80
	timerSize      = 48
	eventGroupSize = 32
)

var _ kernel.Kernel = (*Kernel)(nil)

// Kernel is a goroutine-backed implementation of kernel.Kernel.
//
// Tasks are goroutines, the tick interrupt is a ticker goroutine and the
// timer service is a kernel task. All object state is guarded by one lock;
// blocked calls park on a per-call wake channel and are resolved by the
// operation that satisfies them, by the tick interrupt when their timeout
// expires, or by cancellation.
type Kernel struct {
	cfg Config
	log *slog.Logger

	mu   sync.Mutex
	cond sync.Cond // broadcast when the mask, suspension or a task state is released

	state   kernel.SchedulerState
	started chan struct{}
	done    chan struct{}
	root    context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	handles atomix.Uint64
	tasks   map[kernel.TaskHandle]*tcb
	queues  map[kernel.QueueHandle]*queue
	sems    map[kernel.SemaphoreHandle]*queue
	timers  map[kernel.TimerHandle]*timer
	groups  map[kernel.EventGroupHandle]*eventGroup

	heapFree    int
	heapMinFree int

	critOwner *tcb
	critNest  int
	suspOwner *tcb
	suspNest  int

	ticks    atomix.Uint64
	delayed  delayedList
	tickHook func()

	isr     *tcb // mask owner while an interrupt holds a critical section
	foreign *tcb // identity of callers without a task

	svc *timerService

	stats struct {
		timerCallbacks atomix.Uint64
		pendedCalls    atomix.Uint64
		tickHookCalls  atomix.Uint64
		yieldRequests  atomix.Uint64
		cmdDropped     atomix.Uint64
		asserts        atomix.Uint64
	}
}

// New creates a kernel that has not started scheduling.
func New(cfg Config) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	k := &Kernel{
		cfg:         cfg,
		log:         log.With("component", "kernel"),
		started:     make(chan struct{}),
		done:        make(chan struct{}),
		tasks:       make(map[kernel.TaskHandle]*tcb),
		queues:      make(map[kernel.QueueHandle]*queue),
		sems:        make(map[kernel.SemaphoreHandle]*queue),
		timers:      make(map[kernel.TimerHandle]*timer),
		groups:      make(map[kernel.EventGroupHandle]*eventGroup),
		heapFree:    cfg.HeapSize,
		heapMinFree: cfg.HeapSize,
	}
	k.cond.L = &k.mu
	k.root, k.cancel = context.WithCancel(context.Background())
	k.isr = &tcb{k: k, name: "ISR", ctx: k.root}
	k.foreign = &tcb{k: k, name: "foreign", ctx: k.root}
	k.svc = newTimerService(k, cfg.TimerQueueLength)
	return k, nil
}

// MustNew is like New but panics on an invalid configuration.
func MustNew(cfg Config) *Kernel {
	k, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return k
}

// =============================================================================
// Scheduler lifecycle
// =============================================================================

func (k *Kernel) StartScheduler() error {
	k.mu.Lock()
	switch k.state {
	case kernel.SchedulerEnded:
		k.mu.Unlock()
		return kernel.CodeSchedulerEnded
	case kernel.SchedulerRunning, kernel.SchedulerSuspended:
		k.mu.Unlock()
		return ErrSchedulerStarted
	}
	k.state = kernel.SchedulerRunning
	k.mu.Unlock()

	if err := k.svc.start(); err != nil {
		k.mu.Lock()
		k.state = kernel.SchedulerNotStarted
		k.mu.Unlock()
		return err
	}
	close(k.started)

	if !k.cfg.ManualTick {
		k.wg.Add(1)
		go k.tickLoop()
	}
	k.log.Info("scheduler started", "tick", k.cfg.TickPeriod, "heap", k.cfg.HeapSize)
	return nil
}

func (k *Kernel) EndScheduler() {
	k.mu.Lock()
	if k.state == kernel.SchedulerEnded {
		k.mu.Unlock()
		return
	}
	k.state = kernel.SchedulerEnded
	k.critOwner, k.critNest = nil, 0
	k.suspOwner, k.suspNest = nil, 0
	k.cancel()
	k.cond.Broadcast()
	k.mu.Unlock()

	close(k.done)
	k.log.Info("scheduler ended", "ticks", k.ticks.LoadAcquire())
}

func (k *Kernel) SchedulerDone() <-chan struct{} {
	return k.done
}

func (k *Kernel) SchedulerState() kernel.SchedulerState {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

// Wait blocks until the tick goroutine, the timer service and every task
// body have returned. Task bodies must honour their context for Wait to
// return after EndScheduler.
func (k *Kernel) Wait() {
	k.wg.Wait()
}

func (k *Kernel) SuspendAll(ctx context.Context) {
	t := k.caller(ctx)
	k.mu.Lock()
	defer k.mu.Unlock()
	for k.state != kernel.SchedulerEnded &&
		((k.suspNest > 0 && k.suspOwner != t) || (k.critNest > 0 && k.critOwner != t)) {
		k.cond.Wait()
	}
	if k.state == kernel.SchedulerEnded {
		return
	}
	k.suspOwner = t
	k.suspNest++
	if k.state == kernel.SchedulerRunning {
		k.state = kernel.SchedulerSuspended
	}
}

func (k *Kernel) ResumeAll(ctx context.Context) bool {
	t := k.caller(ctx)
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.suspNest == 0 || k.suspOwner != t {
		if k.state != kernel.SchedulerEnded {
			k.fail("ResumeAll without matching SuspendAll", "task", t.name)
		}
		return false
	}
	k.suspNest--
	if k.suspNest == 0 {
		k.suspOwner = nil
		if k.state == kernel.SchedulerSuspended {
			k.state = kernel.SchedulerRunning
		}
		k.cond.Broadcast()
	}
	return false
}

// =============================================================================
// Time
// =============================================================================

func (k *Kernel) TickCount() kernel.Tick {
	return kernel.Tick(k.ticks.LoadAcquire())
}

func (k *Kernel) TickCountFromISR() kernel.Tick {
	return kernel.Tick(k.ticks.LoadAcquire())
}

func (k *Kernel) TickPeriod() time.Duration {
	return k.cfg.TickPeriod
}

func (k *Kernel) SetTickHook(fn func()) {
	k.mu.Lock()
	k.tickHook = fn
	k.mu.Unlock()
}

// now returns the absolute tick count.
func (k *Kernel) now() uint64 {
	return k.ticks.LoadAcquire()
}

func (k *Kernel) tickLoop() {
	defer k.wg.Done()
	tk := time.NewTicker(k.cfg.TickPeriod)
	defer tk.Stop()
	for {
		select {
		case <-tk.C:
			k.Tick()
		case <-k.root.Done():
			return
		}
	}
}

// Tick runs the tick interrupt once: it advances the tick count, expires
// delayed and timed-out calls, runs the tick hook and wakes the timer
// service when a timer is due. With Config.ManualTick it is the only source
// of time.
func (k *Kernel) Tick() {
	k.enterISR()
	if k.state == kernel.SchedulerEnded {
		k.mu.Unlock()
		return
	}
	now := k.ticks.AddAcqRel(1)
	for _, w := range k.delayed.expire(now) {
		if !w.done {
			k.resolve(w, kernel.StatusTimeout)
		}
	}
	hook := k.tickHook
	due := k.svc.dueLocked(now)
	k.mu.Unlock()

	if hook != nil && k.cfg.UseTickHook {
		hook()
		k.stats.tickHookCalls.Add(1)
	}
	if due {
		k.svc.kick()
	}
}

// TickN runs the tick interrupt n times.
func (k *Kernel) TickN(n int) {
	for range n {
		k.Tick()
	}
}

type deadline struct {
	at      uint64
	forever bool
}

func (k *Kernel) deadline(timeout kernel.Tick) deadline {
	if timeout == kernel.MaxDelay {
		return deadline{forever: true}
	}
	return deadline{at: k.now() + uint64(timeout)}
}

func (d deadline) expired(now uint64) bool {
	return !d.forever && now >= d.at
}

// =============================================================================
// Critical sections
// =============================================================================

func (k *Kernel) EnterCritical(ctx context.Context) {
	t := k.caller(ctx)
	k.mu.Lock()
	for k.state != kernel.SchedulerEnded && k.critNest > 0 && k.critOwner != t {
		k.cond.Wait()
	}
	k.critOwner = t
	k.critNest++
	k.mu.Unlock()
}

func (k *Kernel) ExitCritical(ctx context.Context) {
	t := k.caller(ctx)
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.critNest == 0 || k.critOwner != t {
		if k.state != kernel.SchedulerEnded {
			k.fail("ExitCritical without matching EnterCritical", "task", t.name)
		}
		return
	}
	k.critNest--
	if k.critNest == 0 {
		k.critOwner = nil
		k.cond.Broadcast()
	}
}

func (k *Kernel) EnterCriticalFromISR() uint32 {
	k.enterISR()
	defer k.mu.Unlock()
	saved := uint32(k.critNest)
	k.critOwner = k.isr
	k.critNest++
	return saved
}

func (k *Kernel) ExitCriticalFromISR(saved uint32) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.critOwner != k.isr || k.critNest == 0 {
		if k.state != kernel.SchedulerEnded {
			k.fail("ExitCriticalFromISR without matching EnterCriticalFromISR")
		}
		return
	}
	k.critNest = int(saved)
	if k.critNest == 0 {
		k.critOwner = nil
		k.cond.Broadcast()
	}
}

func (k *Kernel) CriticalNesting() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.critNest
}

func (k *Kernel) YieldFromISR(woken bool) {
	if woken {
		k.stats.yieldRequests.Add(1)
		runtime.Gosched()
	}
}

// =============================================================================
// Caller identity and kernel entry
// =============================================================================

type tcbKey struct{}

// bind returns ctx identifying t as the caller.
func (k *Kernel) bind(ctx context.Context, t *tcb) context.Context {
	return context.WithValue(kernel.WithTask(ctx, t.handle), tcbKey{}, t)
}

// caller returns the task identified by ctx, or the shared foreign
// identity.
func (k *Kernel) caller(ctx context.Context) *tcb {
	if ctx != nil {
		if t, ok := ctx.Value(tcbKey{}).(*tcb); ok && t.k == k {
			return t
		}
	}
	return k.foreign
}

func (k *Kernel) Attach(ctx context.Context, name string) (context.Context, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.state == kernel.SchedulerEnded {
		return ctx, kernel.CodeSchedulerEnded
	}
	t := &tcb{
		k:         k,
		handle:    kernel.TaskHandle(k.newHandle()),
		name:      name,
		base:      1,
		effective: 1,
		attached:  true,
		started:   true,
	}
	t.ctx, t.cancel = context.WithCancel(k.root)
	k.tasks[t.handle] = t
	return k.bind(ctx, t), nil
}

// enter locks the kernel for a task-context call, waiting while another
// task holds the critical-section mask or the scheduler suspension, or while
// the caller itself is suspended. The lock is held on return.
func (k *Kernel) enter(ctx context.Context) (*tcb, kernel.Status) {
	t := k.caller(ctx)
	k.mu.Lock()
	k.gateLocked(t)
	switch {
	case k.state == kernel.SchedulerEnded, t.deleted:
		return t, kernel.StatusStopped
	case ctx.Err() != nil:
		return t, kernel.StatusCanceled
	}
	return t, kernel.StatusOK
}

func (k *Kernel) gateLocked(t *tcb) {
	for k.state != kernel.SchedulerEnded && !t.deleted {
		switch {
		case k.critNest > 0 && k.critOwner != t,
			k.suspNest > 0 && k.suspOwner != t,
			t.suspended:
			k.cond.Wait()
		default:
			return
		}
	}
}

// enterISR locks the kernel for an interrupt-context call. An interrupt is
// held pending while a task owns the critical-section mask. The lock is
// held on return.
func (k *Kernel) enterISR() {
	k.mu.Lock()
	for k.state != kernel.SchedulerEnded && k.critNest > 0 && k.critOwner != k.isr {
		k.cond.Wait()
	}
}

// block parks w's task until w is resolved, the deadline passes, ctx is
// done or the task is stopped. w must already sit on its event list, if
// any. Called and returns with k.mu held.
func (k *Kernel) block(ctx context.Context, w *waiter, dl deadline) kernel.Status {
	t := w.t
	if !dl.forever {
		if dl.at <= k.now() {
			k.unlink(w)
			return kernel.StatusTimeout
		}
		w.wakeAt = dl.at
		k.delayed.insert(w)
	}
	t.waiting = w
	k.mu.Unlock()

	select {
	case <-w.wake:
	case <-ctx.Done():
	case <-t.ctx.Done():
	}

	k.mu.Lock()
	t.waiting = nil
	if !w.done {
		k.unlink(w)
		w.done = true
		if ctx.Err() != nil && k.state != kernel.SchedulerEnded && !t.deleted {
			w.status = kernel.StatusCanceled
		} else {
			w.status = kernel.StatusStopped
		}
	}
	k.gateLocked(t)
	return w.status
}

// resolve completes a blocked call with st and wakes its task.
func (k *Kernel) resolve(w *waiter, st kernel.Status) {
	k.unlink(w)
	w.done = true
	w.status = st
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (k *Kernel) unlink(w *waiter) {
	if w.list != nil {
		w.list.remove(w)
	}
	if w.delayed {
		k.delayed.remove(w)
	}
}

// =============================================================================
// Heap, handles, diagnostics
// =============================================================================

func (k *Kernel) newHandle() uintptr {
	return uintptr(k.handles.AddAcqRel(1))
}

// alloc charges n bytes to the heap. Called with k.mu held.
func (k *Kernel) alloc(n int) bool {
	if n > k.heapFree {
		return false
	}
	k.heapFree -= n
	if k.heapFree < k.heapMinFree {
		k.heapMinFree = k.heapFree
	}
	return true
}

// free returns n bytes to the heap. Called with k.mu held.
func (k *Kernel) free(n int) {
	k.heapFree += n
}

func (k *Kernel) FreeHeapSize() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.heapFree
}

// fail reports a kernel contract violation.
func (k *Kernel) fail(msg string, args ...any) {
	k.stats.asserts.Add(1)
	k.log.Error("kernel assertion failed: "+msg, args...)
	if k.cfg.AssertHook != nil {
		k.cfg.AssertHook(msg)
	}
}

func (k *Kernel) Stats() kernel.Stats {
	k.mu.Lock()
	s := kernel.Stats{
		Ticks:           k.ticks.LoadAcquire(),
		Tasks:           len(k.tasks),
		Queues:          len(k.queues),
		Semaphores:      len(k.sems),
		Timers:          len(k.timers),
		EventGroups:     len(k.groups),
		HeapSize:        k.cfg.HeapSize,
		FreeHeap:        k.heapFree,
		MinEverFreeHeap: k.heapMinFree,
	}
	k.mu.Unlock()
	s.TimerCallbacks = k.stats.timerCallbacks.LoadAcquire()
	s.PendedCalls = k.stats.pendedCalls.LoadAcquire()
	s.TickHookCalls = k.stats.tickHookCalls.LoadAcquire()
	s.YieldRequests = k.stats.yieldRequests.LoadAcquire()
	s.TimerCommandsDropped = k.stats.cmdDropped.LoadAcquire()
	s.AssertFailures = k.stats.asserts.LoadAcquire()
	return s
}
