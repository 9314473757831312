// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos_test

import (
	"context"
	"testing"

	"code.hybscloud.com/rtos"
)

func TestConditionVariableSignal(t *testing.T) {
	s, _ := newScheduler(t)
	ctx := adopt(t, s)

	m, err := rtos.NewMutex(s)
	if err != nil {
		t.Fatalf("NewMutex: %v", err)
	}
	cv := rtos.NewConditionVariable(s)
	ready := false

	res := make(chan rtos.Result, 1)
	th := spawn(t, s, "waiter", 2, func(ctx context.Context) error {
		m.Lock(ctx, rtos.WaitForever)
		defer m.Unlock(ctx)
		for !ready {
			if r := cv.Wait(ctx, m, rtos.WaitForever); r != rtos.Success {
				res <- r
				return r.Err()
			}
		}
		res <- rtos.Success
		return nil
	})
	waitFor(t, "waiter parked", func() bool { return cv.Waiting() == 1 })
	waitBlocked(t, th)

	m.Lock(ctx, rtos.WaitForever)
	ready = true
	cv.Signal()
	m.Unlock(ctx)

	if r := recv(t, res); r != rtos.Success {
		t.Fatalf("Wait: got %v, want Success", r)
	}
	if cv.Waiting() != 0 {
		t.Fatalf("Waiting: got %d, want 0", cv.Waiting())
	}
}

func TestConditionVariableBroadcast(t *testing.T) {
	s, _ := newScheduler(t)

	m, err := rtos.NewMutex(s)
	if err != nil {
		t.Fatalf("NewMutex: %v", err)
	}
	cv := rtos.NewConditionVariable(s)

	const waiters = 3
	woken := make(chan struct{}, waiters)
	for range waiters {
		spawn(t, s, "waiter", 2, func(ctx context.Context) error {
			m.Lock(ctx, rtos.WaitForever)
			r := cv.Wait(ctx, m, rtos.WaitForever)
			m.Unlock(ctx)
			if r == rtos.Success {
				woken <- struct{}{}
			}
			return r.Err()
		})
	}
	waitFor(t, "all waiters parked", func() bool { return cv.Waiting() == waiters })

	// Signal with no waiter is lost; Broadcast wakes them all.
	cv.Broadcast()
	for range waiters {
		recv(t, woken)
	}
	cv.Signal()
	if cv.Waiting() != 0 {
		t.Fatalf("Waiting: got %d, want 0", cv.Waiting())
	}
}

func TestConditionVariableTimeout(t *testing.T) {
	s, k := newScheduler(t)

	m, err := rtos.NewMutex(s)
	if err != nil {
		t.Fatalf("NewMutex: %v", err)
	}
	cv := rtos.NewConditionVariable(s)

	res := make(chan rtos.Result, 1)
	held := make(chan bool, 1)
	th := spawn(t, s, "waiter", 2, func(ctx context.Context) error {
		self, _ := s.Self(ctx)
		m.Lock(ctx, rtos.WaitForever)
		r := cv.Wait(ctx, m, 4)
		held <- m.Holder() == self.Handle()
		m.Unlock(ctx)
		res <- r
		return nil
	})
	waitBlocked(t, th)

	k.TickN(4)
	if !recv(t, held) {
		t.Fatal("mutex not re-acquired after Wait timed out")
	}
	if r := recv(t, res); r != rtos.Timeout {
		t.Fatalf("Wait: got %v, want Timeout", r)
	}
	if cv.Waiting() != 0 {
		t.Fatalf("Waiting after timeout: got %d, want 0", cv.Waiting())
	}
}

func TestConditionVariableWaitWithoutIdentity(t *testing.T) {
	s, _ := newScheduler(t)

	m, err := rtos.NewMutex(s)
	if err != nil {
		t.Fatalf("NewMutex: %v", err)
	}
	cv := rtos.NewConditionVariable(s)
	if r := cv.Wait(context.Background(), m, rtos.NoWait); r != rtos.Invalid {
		t.Fatalf("Wait without caller identity: got %v, want Invalid", r)
	}
}
