// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos_test

import (
	"context"
	"sync/atomic"
	"testing"

	"code.hybscloud.com/rtos"
	"code.hybscloud.com/rtos/kernel"
)

// =============================================================================
// Timer
// =============================================================================

func TestTimerPeriodic(t *testing.T) {
	s, k := newScheduler(t)
	ctx := context.Background()

	var fired atomic.Int32
	var daemon atomic.Uint64
	tm, err := rtos.NewTimer(s, "blink", 5, true, func(ctx context.Context, tm *rtos.Timer) {
		h, _ := kernel.TaskFromContext(ctx)
		daemon.Store(uint64(h))
		fired.Add(1)
	})
	if err != nil {
		t.Fatalf("NewTimer: %v", err)
	}
	if tm.IsActive() {
		t.Fatal("IsActive: new timer is active")
	}
	if tm.Name() != "blink" || tm.Period() != 5 || !tm.Periodic() {
		t.Fatalf("timer: Name=%q Period=%d Periodic=%v", tm.Name(), tm.Period(), tm.Periodic())
	}

	if r := tm.Start(ctx, rtos.WaitForever); r != rtos.Success {
		t.Fatalf("Start: got %v", r)
	}
	waitFor(t, "timer active", tm.IsActive)

	for i := int32(1); i <= 3; i++ {
		k.TickN(5)
		waitFor(t, "timer fires", func() bool { return fired.Load() == i })
	}
	if kernel.TaskHandle(daemon.Load()) != s.DaemonTask() {
		t.Fatalf("callback task: got %d, want timer service %d", daemon.Load(), s.DaemonTask())
	}

	if r := tm.Stop(ctx, rtos.WaitForever); r != rtos.Success {
		t.Fatalf("Stop: got %v", r)
	}
	waitFor(t, "timer stopped", func() bool { return !tm.IsActive() })
	k.TickN(10)
	if n := fired.Load(); n != 3 {
		t.Fatalf("fired after Stop: got %d, want 3", n)
	}
	if r := tm.Close(ctx); r != rtos.Success {
		t.Fatalf("Close: got %v", r)
	}
}

func TestTimerOneShot(t *testing.T) {
	s, k := newScheduler(t)

	fired := make(chan struct{}, 4)
	tm, err := rtos.NewTimer(s, "once", 3, false, func(context.Context, *rtos.Timer) {
		fired <- struct{}{}
	})
	if err != nil {
		t.Fatalf("NewTimer: %v", err)
	}
	r, _ := tm.StartFromISR()
	if r != rtos.Success {
		t.Fatalf("StartFromISR: got %v", r)
	}
	waitFor(t, "timer active", tm.IsActive)

	k.TickN(3)
	recv(t, fired)
	waitFor(t, "one-shot disarmed", func() bool { return !tm.IsActive() })
	k.TickN(9)
	if n := len(fired); n != 0 {
		t.Fatalf("one-shot fired %d more times", n)
	}

	// A one-shot timer fires again when restarted.
	tm.Reset(context.Background(), rtos.WaitForever)
	waitFor(t, "timer active", tm.IsActive)
	k.TickN(3)
	recv(t, fired)
}

func TestTimerSetPeriod(t *testing.T) {
	s, k := newScheduler(t)
	ctx := context.Background()

	var fired atomic.Int32
	tm, err := rtos.NewTimer(s, "adjust", 100, true, func(context.Context, *rtos.Timer) {
		fired.Add(1)
	})
	if err != nil {
		t.Fatalf("NewTimer: %v", err)
	}
	// SetPeriod starts a stopped timer.
	if r := tm.SetPeriod(ctx, 2, rtos.WaitForever); r != rtos.Success {
		t.Fatalf("SetPeriod: got %v", r)
	}
	waitFor(t, "timer active", tm.IsActive)
	if tm.Period() != 2 {
		t.Fatalf("Period: got %d, want 2", tm.Period())
	}
	k.TickN(2)
	waitFor(t, "timer fires", func() bool { return fired.Load() == 1 })

	if r, _ := tm.SetPeriodFromISR(4); r != rtos.Success {
		t.Fatalf("SetPeriodFromISR: got %v", r)
	}
	waitFor(t, "period applied", func() bool { return tm.Period() == 4 })
	if r, _ := tm.StopFromISR(); r != rtos.Success {
		t.Fatalf("StopFromISR: got %v", r)
	}
	waitFor(t, "timer stopped", func() bool { return !tm.IsActive() })
	if r, _ := tm.ResetFromISR(); r != rtos.Success {
		t.Fatalf("ResetFromISR: got %v", r)
	}
	waitFor(t, "timer active", tm.IsActive)
}

func TestTimerNilCallbackPanics(t *testing.T) {
	s, _ := newScheduler(t)
	defer func() {
		if recover() == nil {
			t.Fatal("NewTimer(nil): expected panic")
		}
	}()
	rtos.NewTimer(s, "nil", 1, false, nil)
}

// =============================================================================
// Tasklet
// =============================================================================

func TestTaskletParameter(t *testing.T) {
	s, _ := newScheduler(t)
	ctx := context.Background()

	got := make(chan uint32, 2)
	var ranOn atomic.Uint64
	tl, err := rtos.NewTasklet(s, func(ctx context.Context, param uint32) {
		h, _ := kernel.TaskFromContext(ctx)
		ranOn.Store(uint64(h))
		got <- param
	})
	if err != nil {
		t.Fatalf("NewTasklet: %v", err)
	}

	if r := tl.Schedule(ctx, 42, rtos.WaitForever); r != rtos.Success {
		t.Fatalf("Schedule: got %v", r)
	}
	if p := recv(t, got); p != 42 {
		t.Fatalf("param: got %d, want 42", p)
	}
	if kernel.TaskHandle(ranOn.Load()) != s.DaemonTask() {
		t.Fatal("tasklet did not run on the timer service task")
	}

	var r rtos.Result
	waitFor(t, "ScheduleFromISR accepted", func() bool {
		r, _ = tl.ScheduleFromISR(7)
		return r == rtos.Success
	})
	if p := recv(t, got); p != 7 {
		t.Fatalf("param: got %d, want 7", p)
	}
	if r := tl.Close(ctx); r != rtos.Success {
		t.Fatalf("Close: got %v", r)
	}
}

func TestTaskletOneRunInFlight(t *testing.T) {
	s, _ := newScheduler(t)
	ctx := context.Background()

	entered, release := make(chan struct{}), make(chan struct{})
	tl, err := rtos.NewTasklet(s, func(context.Context, uint32) {
		close(entered)
		<-release
	})
	if err != nil {
		t.Fatalf("NewTasklet: %v", err)
	}
	tl.Schedule(ctx, 1, rtos.WaitForever)
	recv(t, entered)

	if r := tl.Schedule(ctx, 2, rtos.NoWait); r != rtos.Unavailable {
		t.Fatalf("Schedule while running: got %v, want Unavailable", r)
	}
	if r, _ := tl.ScheduleFromISR(3); r != rtos.Unavailable {
		t.Fatalf("ScheduleFromISR while running: got %v, want Unavailable", r)
	}
	close(release)
	if r := tl.Close(ctx); r != rtos.Success {
		t.Fatalf("Close: got %v", r)
	}
}

// =============================================================================
// TickHook
// =============================================================================

func TestTickHooks(t *testing.T) {
	s, k := newScheduler(t)

	var a, b int
	ha := rtos.NewTickHook(s, func() { a++ })
	hb := rtos.NewTickHook(s, func() { b++ })
	if !ha.Register() || !hb.Register() {
		t.Fatal("Register: got false")
	}
	if ha.Register() {
		t.Fatal("Register twice: got true")
	}
	hb.Disable()
	if hb.Enabled() {
		t.Fatal("Enabled after Disable: got true")
	}

	k.TickN(3)
	if a != 3 || b != 0 {
		t.Fatalf("after 3 ticks: a=%d b=%d, want 3 0", a, b)
	}

	hb.Enable()
	k.TickN(2)
	if a != 5 || b != 2 {
		t.Fatalf("after enable: a=%d b=%d, want 5 2", a, b)
	}

	if !ha.Unregister() {
		t.Fatal("Unregister: got false")
	}
	if ha.Unregister() {
		t.Fatal("Unregister twice: got true")
	}
	k.Tick()
	if a != 5 || b != 3 {
		t.Fatalf("after unregister: a=%d b=%d, want 5 3", a, b)
	}
	if st := s.Stats(); st.TickHookCalls != 6 {
		t.Fatalf("Stats.TickHookCalls: got %d, want 6", st.TickHookCalls)
	}
}
