// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"code.hybscloud.com/rtos/kernel"
)

// Scheduler is the process-wide scheduling context. Every object of this
// package is created against one Scheduler and reaches the kernel only
// through it.
//
// Create exactly one per kernel, create the startup objects, then Start or
// Run it:
//
//	k := hosted.MustNew(hosted.DefaultConfig())
//	s := rtos.NewScheduler(k)
//	rtos.Task("blink").Priority(2).Build(s, rtos.RunnerFunc(blink))
//	if err := s.Run(ctx); err != nil { ... }
//
// End stops scheduling for good; the Scheduler cannot be restarted.
type Scheduler struct {
	k   kernel.Kernel
	log *slog.Logger

	hooksMu sync.Mutex
	hooks   atomic.Pointer[[]*TickHook] // copy-on-write, read from the tick interrupt

	threads sync.Map // kernel.TaskHandle -> *Thread
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for thread failures and object
// lifecycle. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// NewScheduler binds a Scheduler to k and installs the tick hook
// dispatcher.
func NewScheduler(k kernel.Kernel, opts ...Option) *Scheduler {
	s := &Scheduler{k: k, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	s.hooks.Store(&[]*TickHook{})
	k.SetTickHook(s.dispatchTickHooks)
	return s
}

// Kernel returns the kernel the Scheduler drives.
func (s *Scheduler) Kernel() kernel.Kernel {
	return s.k
}

// Logger returns the Scheduler's logger.
func (s *Scheduler) Logger() *slog.Logger {
	return s.log
}

// Start starts scheduling and returns. Threads created before Start and
// already started begin running.
func (s *Scheduler) Start() error {
	return s.k.StartScheduler()
}

// Run starts scheduling and blocks until End is called or ctx is done, in
// which case it ends the scheduler and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	select {
	case <-s.k.SchedulerDone():
		return nil
	case <-ctx.Done():
		s.End()
		return ctx.Err()
	}
}

// End stops all further scheduling. It is a one-time, irreversible,
// process-wide operation: blocked operations return Canceled and every
// thread context is canceled.
func (s *Scheduler) End() {
	s.k.EndScheduler()
}

// Ended reports whether End has completed.
func (s *Scheduler) Ended() bool {
	select {
	case <-s.k.SchedulerDone():
		return true
	default:
		return false
	}
}

// Done is closed once the scheduler has ended.
func (s *Scheduler) Done() <-chan struct{} {
	return s.k.SchedulerDone()
}

func (s *Scheduler) State() kernel.SchedulerState {
	return s.k.SchedulerState()
}

// Ticks returns the tick count. Task context only.
func (s *Scheduler) Ticks() kernel.Tick {
	return s.k.TickCount()
}

// TicksFromISR returns the tick count. Interrupt context only.
func (s *Scheduler) TicksFromISR() kernel.Tick {
	return s.k.TickCountFromISR()
}

func (s *Scheduler) TickPeriod() time.Duration {
	return s.k.TickPeriod()
}

// YieldFromISR requests a context switch at interrupt exit when woken is
// true. Pass the woken flags returned by FromISR operations.
func (s *Scheduler) YieldFromISR(woken bool) {
	s.k.YieldFromISR(woken)
}

// FreeHeap returns the free kernel heap in bytes.
func (s *Scheduler) FreeHeap() int {
	return s.k.FreeHeapSize()
}

func (s *Scheduler) Stats() kernel.Stats {
	return s.k.Stats()
}

// Adopt gives a goroutine not created as a Thread, such as main, an
// identity of its own so it can own mutexes and wait on notifications.
// Use the returned context for every call made from that goroutine.
func (s *Scheduler) Adopt(ctx context.Context, name string) (context.Context, error) {
	return s.k.Attach(ctx, name)
}

// Self returns the Thread running with ctx.
func (s *Scheduler) Self(ctx context.Context) (*Thread, bool) {
	h, ok := kernel.TaskFromContext(ctx)
	if !ok {
		return nil, false
	}
	v, ok := s.threads.Load(h)
	if !ok {
		return nil, false
	}
	return v.(*Thread), true
}

// =============================================================================
// Tick hooks
// =============================================================================

func (s *Scheduler) dispatchTickHooks() {
	for _, h := range *s.hooks.Load() {
		if h.enabled.LoadAcquire() {
			h.fn()
		}
	}
}

func (s *Scheduler) addHook(h *TickHook) bool {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	cur := *s.hooks.Load()
	if slices.Contains(cur, h) {
		return false
	}
	next := append(slices.Clip(cur), h)
	s.hooks.Store(&next)
	return true
}

func (s *Scheduler) removeHook(h *TickHook) bool {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	cur := *s.hooks.Load()
	i := slices.Index(cur, h)
	if i < 0 {
		return false
	}
	next := slices.Delete(slices.Clone(cur), i, i+1)
	s.hooks.Store(&next)
	return true
}
