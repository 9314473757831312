// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hosted_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/rtos/kernel"
	"code.hybscloud.com/rtos/kernel/hosted"
)

// newKernel starts a manually ticked kernel that is torn down with the test.
func newKernel(t *testing.T, mutate ...func(*hosted.Config)) *hosted.Kernel {
	t.Helper()
	cfg := hosted.DefaultConfig()
	cfg.ManualTick = true
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, m := range mutate {
		m(&cfg)
	}
	k, err := hosted.New(cfg)
	require.NoError(t, err)
	require.NoError(t, k.StartScheduler())
	t.Cleanup(func() {
		k.EndScheduler()
		k.Wait()
	})
	return k
}

func spawn(t *testing.T, k *hosted.Kernel, name string, prio kernel.Priority, fn kernel.TaskFunc) kernel.TaskHandle {
	t.Helper()
	h, err := k.TaskCreate(fn, name, 128, prio)
	require.NoError(t, err)
	return h
}

func waitState(t *testing.T, k *hosted.Kernel, h kernel.TaskHandle, want kernel.TaskState) {
	t.Helper()
	require.Eventually(t, func() bool { return k.TaskState(h) == want },
		2*time.Second, time.Millisecond, "task %d never reached %v", h, want)
}

// =============================================================================
// Scheduler
// =============================================================================

func TestSchedulerLifecycle(t *testing.T) {
	cfg := hosted.DefaultConfig()
	cfg.ManualTick = true
	k := hosted.MustNew(cfg)
	assert.Equal(t, kernel.SchedulerNotStarted, k.SchedulerState())

	require.NoError(t, k.StartScheduler())
	assert.ErrorIs(t, k.StartScheduler(), hosted.ErrSchedulerStarted)
	assert.Equal(t, kernel.SchedulerRunning, k.SchedulerState())
	assert.NotZero(t, k.TimerDaemonTask())

	k.EndScheduler()
	k.EndScheduler()
	select {
	case <-k.SchedulerDone():
	default:
		t.Fatal("SchedulerDone not closed after EndScheduler")
	}
	k.Wait()

	_, err := k.QueueCreate(1, 4)
	assert.ErrorIs(t, err, kernel.CodeSchedulerEnded)
	assert.ErrorIs(t, k.StartScheduler(), kernel.CodeSchedulerEnded)
}

func TestTickerAdvances(t *testing.T) {
	k := newKernel(t, func(c *hosted.Config) {
		c.ManualTick = false
		c.TickPeriod = time.Millisecond
	})
	require.Eventually(t, func() bool { return k.TickCount() >= 5 }, 2*time.Second, time.Millisecond)
}

func TestTickHook(t *testing.T) {
	k := newKernel(t)
	var n atomic.Int32
	k.SetTickHook(func() { n.Add(1) })
	k.TickN(3)
	assert.EqualValues(t, 3, n.Load())
	assert.EqualValues(t, 3, k.Stats().TickHookCalls)
	assert.Equal(t, kernel.Tick(3), k.TickCountFromISR())
}

func TestHeapExhaustion(t *testing.T) {
	k := newKernel(t, func(c *hosted.Config) {
		c.TimerTaskStackDepth = 16 // 96 + 64 bytes for the timer service
		c.HeapSize = 160 + 200
	})
	require.Equal(t, 200, k.FreeHeapSize())

	q1, err := k.QueueCreate(4, 4)
	require.NoError(t, err)
	_, err = k.QueueCreate(4, 4)
	require.NoError(t, err)
	_, err = k.QueueCreate(4, 4)
	require.ErrorIs(t, err, kernel.CodeNoMemory)

	k.QueueDelete(q1)
	st := k.Stats()
	assert.Equal(t, 104, st.FreeHeap)
	assert.Equal(t, 8, st.MinEverFreeHeap)
	assert.Equal(t, 1, st.Queues)
}

func TestTaskCreateZeroDepthUsesMinimalStack(t *testing.T) {
	k := newKernel(t, func(c *hosted.Config) {
		c.TimerTaskStackDepth = 16
		c.MinimalStackSize = 32
		c.HeapSize = 160 + 1000
	})
	free := k.FreeHeapSize()

	h, err := k.TaskCreate(func(ctx context.Context) { <-ctx.Done() }, "min", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, free-(96+32*4), k.FreeHeapSize())

	k.TaskDelete(h)
	assert.Equal(t, free, k.FreeHeapSize())

	_, err = k.TaskCreate(nil, "nil", 0, 1)
	require.ErrorIs(t, err, kernel.CodeInvalidParam)
}

func TestCriticalNesting(t *testing.T) {
	k := newKernel(t)
	ctx, err := k.Attach(context.Background(), "main")
	require.NoError(t, err)

	k.EnterCritical(ctx)
	k.EnterCritical(ctx)
	assert.Equal(t, 2, k.CriticalNesting())
	k.ExitCritical(ctx)
	assert.Equal(t, 1, k.CriticalNesting())
	k.ExitCritical(ctx)
	assert.Equal(t, 0, k.CriticalNesting())

	outer := k.EnterCriticalFromISR()
	inner := k.EnterCriticalFromISR()
	assert.EqualValues(t, 0, outer)
	assert.EqualValues(t, 1, inner)
	k.ExitCriticalFromISR(inner)
	assert.Equal(t, 1, k.CriticalNesting())
	k.ExitCriticalFromISR(outer)
	assert.Equal(t, 0, k.CriticalNesting())
}

func TestCriticalSectionHoldsOtherTasks(t *testing.T) {
	k := newKernel(t)
	ctx, err := k.Attach(context.Background(), "main")
	require.NoError(t, err)
	q, err := k.QueueCreate(2, 4)
	require.NoError(t, err)

	k.EnterCritical(ctx)
	spawn(t, k, "sender", 2, func(ctx context.Context) {
		k.QueueSend(ctx, q, int32(1), kernel.SendToBack, kernel.NoWait)
	})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, k.QueueMessagesWaiting(q))
	k.ExitCritical(ctx)
	require.Eventually(t, func() bool { return k.QueueMessagesWaiting(q) == 1 }, time.Second, time.Millisecond)
}

func TestSuspendAll(t *testing.T) {
	k := newKernel(t)
	ctx, err := k.Attach(context.Background(), "main")
	require.NoError(t, err)
	q, err := k.QueueCreate(2, 4)
	require.NoError(t, err)

	k.SuspendAll(ctx)
	assert.Equal(t, kernel.SchedulerSuspended, k.SchedulerState())
	spawn(t, k, "sender", 2, func(ctx context.Context) {
		k.QueueSend(ctx, q, int32(1), kernel.SendToBack, kernel.NoWait)
	})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, k.QueueMessagesWaiting(q))
	k.ResumeAll(ctx)
	assert.Equal(t, kernel.SchedulerRunning, k.SchedulerState())
	require.Eventually(t, func() bool { return k.QueueMessagesWaiting(q) == 1 }, time.Second, time.Millisecond)
}

func TestEndSchedulerUnblocks(t *testing.T) {
	k := newKernel(t)
	q, err := k.QueueCreate(1, 4)
	require.NoError(t, err)

	res := make(chan kernel.Status, 1)
	h := spawn(t, k, "rx", 1, func(ctx context.Context) {
		_, st := k.QueueReceive(ctx, q, kernel.MaxDelay)
		res <- st
	})
	waitState(t, k, h, kernel.TaskBlocked)
	k.EndScheduler()
	assert.Equal(t, kernel.StatusStopped, <-res)
}

// =============================================================================
// Tasks
// =============================================================================

func TestTaskStates(t *testing.T) {
	k := newKernel(t)
	q, err := k.QueueCreate(1, 4)
	require.NoError(t, err)

	h := spawn(t, k, "rx", 2, func(ctx context.Context) {
		k.QueueReceive(ctx, q, kernel.MaxDelay)
		<-ctx.Done()
	})
	waitState(t, k, h, kernel.TaskBlocked)
	assert.Equal(t, kernel.Priority(2), k.TaskPriorityGet(h))

	k.TaskSuspend(h)
	assert.Equal(t, kernel.TaskSuspended, k.TaskState(h))
	k.TaskResume(h)
	waitState(t, k, h, kernel.TaskBlocked)

	k.TaskDelete(h)
	assert.Equal(t, kernel.TaskDeleted, k.TaskState(h))
	assert.Equal(t, kernel.TaskInvalid, k.TaskState(kernel.TaskHandle(1<<40)))
}

func TestTaskDeletedBeforeStartRunsBodyCanceled(t *testing.T) {
	cfg := hosted.DefaultConfig()
	cfg.ManualTick = true
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	k, err := hosted.New(cfg)
	require.NoError(t, err)

	canceled := make(chan bool, 2)
	body := func(ctx context.Context) { canceled <- ctx.Err() != nil }
	deleted, err := k.TaskCreate(body, "deleted", 128, 1)
	require.NoError(t, err)
	_, err = k.TaskCreate(body, "ended", 128, 1)
	require.NoError(t, err)

	k.TaskDelete(deleted)
	assert.True(t, <-canceled, "deleted task body got a live context")
	k.EndScheduler()
	assert.True(t, <-canceled, "task body got a live context after EndScheduler")
	k.Wait()
}

func TestTaskPriorityClamped(t *testing.T) {
	k := newKernel(t)
	h := spawn(t, k, "hi", 100, func(ctx context.Context) { <-ctx.Done() })
	assert.Equal(t, kernel.Priority(7), k.TaskPriorityGet(h))
	k.TaskPrioritySet(h, 3)
	assert.Equal(t, kernel.Priority(3), k.TaskPriorityGet(h))
}

func TestTaskDelayUntil(t *testing.T) {
	k := newKernel(t)
	wakes := make(chan kernel.Tick, 3)
	h := spawn(t, k, "periodic", 1, func(ctx context.Context) {
		prev := k.TickCount()
		for range 3 {
			if k.TaskDelayUntil(ctx, &prev, 5) != kernel.StatusOK {
				return
			}
			wakes <- k.TickCount()
		}
		<-ctx.Done()
	})
	for i := 1; i <= 3; i++ {
		waitState(t, k, h, kernel.TaskBlocked)
		k.TickN(5)
		assert.Equal(t, kernel.Tick(5*i), <-wakes)
	}
}

func TestTaskDelayIsCanceled(t *testing.T) {
	k := newKernel(t)
	ctx, cancel := context.WithCancel(context.Background())
	ctx, err := k.Attach(ctx, "main")
	require.NoError(t, err)

	time.AfterFunc(10*time.Millisecond, cancel)
	assert.Equal(t, kernel.StatusCanceled, k.TaskDelay(ctx, kernel.MaxDelay))
}

func TestNotifyTake(t *testing.T) {
	k := newKernel(t)
	got := make(chan uint32, 1)
	h := spawn(t, k, "waiter", 1, func(ctx context.Context) {
		v, _ := k.TaskNotifyTake(ctx, true, kernel.MaxDelay)
		got <- v
		<-ctx.Done()
	})
	waitState(t, k, h, kernel.TaskBlocked)
	ok, woken := k.TaskNotifyFromISR(h, 0, kernel.NotifyIncrement)
	assert.True(t, ok)
	assert.True(t, woken)
	assert.EqualValues(t, 1, <-got)
}

func TestNotifyWaitWithoutOverwrite(t *testing.T) {
	k := newKernel(t)
	ready := make(chan struct{})
	got := make(chan uint32, 1)
	h := spawn(t, k, "waiter", 1, func(ctx context.Context) {
		<-ready
		v, _ := k.TaskNotifyWait(ctx, 0, ^uint32(0), kernel.MaxDelay)
		got <- v
		<-ctx.Done()
	})
	assert.True(t, k.TaskNotify(h, 7, kernel.NotifySetValueWithoutOverwrite))
	assert.False(t, k.TaskNotify(h, 9, kernel.NotifySetValueWithoutOverwrite))
	close(ready)
	assert.EqualValues(t, 7, <-got)
}
