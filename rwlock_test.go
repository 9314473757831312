// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos_test

import (
	"context"
	"testing"

	"code.hybscloud.com/rtos"
)

func TestReadWriteLockConcurrentReaders(t *testing.T) {
	for _, policy := range []rtos.RWPolicy{rtos.PreferReader, rtos.PreferWriter} {
		t.Run(policy.String(), func(t *testing.T) {
			s, _ := newScheduler(t)
			l, err := rtos.NewReadWriteLock(s, policy)
			if err != nil {
				t.Fatalf("NewReadWriteLock: %v", err)
			}
			if l.Policy() != policy {
				t.Fatalf("Policy: got %v, want %v", l.Policy(), policy)
			}

			const readers = 3
			in, release := make(chan struct{}, readers), make(chan struct{})
			var threads []*rtos.Thread
			for range readers {
				threads = append(threads, spawn(t, s, "reader", 2, func(ctx context.Context) error {
					if r := l.ReaderLock(ctx); r != rtos.Success {
						return r.Err()
					}
					in <- struct{}{}
					<-release
					return l.ReaderUnlock(ctx).Err()
				}))
			}
			// All readers get in together.
			for range readers {
				recv(t, in)
			}

			wrote := make(chan struct{})
			w := spawn(t, s, "writer", 2, func(ctx context.Context) error {
				if r := l.WriterLock(ctx); r != rtos.Success {
					return r.Err()
				}
				close(wrote)
				return l.WriterUnlock(ctx).Err()
			})
			waitBlocked(t, w)

			close(release)
			recv(t, wrote)
			for _, th := range append(threads, w) {
				if err := th.Join(context.Background()); err != nil {
					t.Fatalf("%s: %v", th.Name(), err)
				}
			}
		})
	}
}

// TestReadWriteLockPreferWriter: a waiting writer keeps new readers out
// until it has written.
func TestReadWriteLockPreferWriter(t *testing.T) {
	s, _ := newScheduler(t)
	l, err := rtos.NewReadWriteLock(s, rtos.PreferWriter)
	if err != nil {
		t.Fatalf("NewReadWriteLock: %v", err)
	}

	order := make(chan string, 3)
	in, release := make(chan struct{}), make(chan struct{})
	spawn(t, s, "first-reader", 2, func(ctx context.Context) error {
		l.ReaderLock(ctx)
		close(in)
		<-release
		order <- "first-reader"
		return l.ReaderUnlock(ctx).Err()
	})
	recv(t, in)

	w := spawn(t, s, "writer", 2, func(ctx context.Context) error {
		l.WriterLock(ctx)
		order <- "writer"
		return l.WriterUnlock(ctx).Err()
	})
	waitBlocked(t, w)

	late := spawn(t, s, "late-reader", 2, func(ctx context.Context) error {
		l.ReaderLock(ctx)
		order <- "late-reader"
		return l.ReaderUnlock(ctx).Err()
	})
	waitBlocked(t, late)

	close(release)
	for _, want := range []string{"first-reader", "writer", "late-reader"} {
		if got := recv(t, order); got != want {
			t.Fatalf("order: got %s, want %s", got, want)
		}
	}
}

func TestReadWriteLockReaderUnlockWithoutLock(t *testing.T) {
	s, _ := newScheduler(t)
	l, err := rtos.NewReadWriteLock(s, rtos.PreferReader)
	if err != nil {
		t.Fatalf("NewReadWriteLock: %v", err)
	}
	if r := l.ReaderUnlock(adopt(t, s)); r != rtos.NotOwner {
		t.Fatalf("ReaderUnlock: got %v, want NotOwner", r)
	}
}

func TestReadWriteLockUnknownPolicyPanics(t *testing.T) {
	s, _ := newScheduler(t)
	defer func() {
		if recover() == nil {
			t.Fatal("NewReadWriteLock(0): expected panic")
		}
	}()
	rtos.NewReadWriteLock(s, 0)
}
