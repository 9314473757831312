// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos_test

import (
	"context"
	"testing"

	"code.hybscloud.com/rtos"
	"code.hybscloud.com/rtos/kernel"
)

const (
	evRx kernel.EventBits = 1 << iota
	evTx
	evErr
)

func TestEventGroupWaitAll(t *testing.T) {
	s, _ := newScheduler(t)
	ctx := context.Background()

	g, err := rtos.NewEventGroup(s)
	if err != nil {
		t.Fatalf("NewEventGroup: %v", err)
	}
	res := make(chan kernel.EventBits, 1)
	th := spawn(t, s, "waiter", 2, func(ctx context.Context) error {
		bits, r := g.WaitBits(ctx, evRx|evTx, true, true, rtos.WaitForever)
		if r != rtos.Success {
			return r.Err()
		}
		res <- bits
		return nil
	})
	waitBlocked(t, th)

	g.SetBits(ctx, evRx)
	if th.State() != rtos.ThreadBlocked {
		t.Fatal("waiter released with one of two bits set")
	}
	g.SetBits(ctx, evTx|evErr)
	if bits := recv(t, res); bits != evRx|evTx|evErr {
		t.Fatalf("WaitBits: got %#x, want %#x", bits, evRx|evTx|evErr)
	}
	// clearOnExit cleared only the waited bits.
	if bits := g.GetBits(); bits != evErr {
		t.Fatalf("GetBits: got %#x, want %#x", bits, evErr)
	}
}

func TestEventGroupWaitAnyAndTimeout(t *testing.T) {
	s, k := newScheduler(t)
	ctx := context.Background()

	g, err := rtos.NewEventGroup(s)
	if err != nil {
		t.Fatalf("NewEventGroup: %v", err)
	}
	if _, r := g.WaitBits(ctx, evRx, false, false, rtos.NoWait); r != rtos.Timeout {
		t.Fatalf("WaitBits NoWait: got %v, want Timeout", r)
	}

	res := make(chan rtos.Result, 1)
	th := spawn(t, s, "waiter", 2, func(ctx context.Context) error {
		_, r := g.WaitBits(ctx, evRx|evTx, false, false, 6)
		res <- r
		return nil
	})
	waitBlocked(t, th)
	k.TickN(6)
	if r := recv(t, res); r != rtos.Timeout {
		t.Fatalf("WaitBits: got %v, want Timeout", r)
	}

	g.SetBits(ctx, evTx)
	bits, r := g.WaitBits(ctx, evRx|evTx, false, false, rtos.NoWait)
	if r != rtos.Success || bits != evTx {
		t.Fatalf("WaitBits any: got (%#x, %v), want (%#x, Success)", bits, r, evTx)
	}
	if prev := g.ClearBits(ctx, evTx); prev != evTx {
		t.Fatalf("ClearBits: got previous %#x, want %#x", prev, evTx)
	}
	if g.GetBitsFromISR() != 0 {
		t.Fatalf("GetBitsFromISR: got %#x, want 0", g.GetBitsFromISR())
	}
}

func TestEventGroupFromISR(t *testing.T) {
	s, _ := newScheduler(t)

	g, err := rtos.NewEventGroup(s)
	if err != nil {
		t.Fatalf("NewEventGroup: %v", err)
	}
	if r, _ := g.SetBitsFromISR(evRx | evErr); r != rtos.Success {
		t.Fatalf("SetBitsFromISR: got %v", r)
	}
	// The set is deferred to the timer service.
	waitFor(t, "deferred set", func() bool { return g.GetBits() == evRx|evErr })

	if r := g.ClearBitsFromISR(evErr); r != rtos.Success {
		t.Fatalf("ClearBitsFromISR: got %v", r)
	}
	waitFor(t, "clear", func() bool { return g.GetBits() == evRx })
}

func TestEventGroupSync(t *testing.T) {
	s, _ := newScheduler(t)

	g, err := rtos.NewEventGroup(s)
	if err != nil {
		t.Fatalf("NewEventGroup: %v", err)
	}
	const all = evRx | evTx | evErr
	done := make(chan rtos.Result, 3)
	for _, bit := range []kernel.EventBits{evRx, evTx, evErr} {
		spawn(t, s, "party", 2, func(ctx context.Context) error {
			_, r := g.Sync(ctx, bit, all, rtos.WaitForever)
			done <- r
			return nil
		})
	}
	for range 3 {
		if r := recv(t, done); r != rtos.Success {
			t.Fatalf("Sync: got %v, want Success", r)
		}
	}
	if bits := g.GetBits(); bits != 0 {
		t.Fatalf("GetBits after Sync: got %#x, want 0", bits)
	}
}

func TestEventGroupCloseReleasesWaiters(t *testing.T) {
	s, _ := newScheduler(t)

	g, err := rtos.NewEventGroup(s)
	if err != nil {
		t.Fatalf("NewEventGroup: %v", err)
	}
	res := make(chan rtos.Result, 1)
	th := spawn(t, s, "waiter", 2, func(ctx context.Context) error {
		_, r := g.WaitBits(ctx, evRx, false, true, rtos.WaitForever)
		res <- r
		return nil
	})
	waitBlocked(t, th)
	g.Close()
	if r := recv(t, res); r != rtos.Invalid {
		t.Fatalf("WaitBits after Close: got %v, want Invalid", r)
	}
}
