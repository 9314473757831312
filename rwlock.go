// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos

import (
	"context"
)

// RWPolicy selects the fairness of a ReadWriteLock.
type RWPolicy uint8

const (
	// PreferReader lets readers in whenever another reader holds the lock.
	// A steady stream of readers starves writers.
	PreferReader RWPolicy = iota + 1
	// PreferWriter stops admitting new readers once a writer is waiting.
	// A steady stream of writers starves readers.
	PreferWriter
)

func (p RWPolicy) String() string {
	switch p {
	case PreferReader:
		return "prefer-reader"
	case PreferWriter:
		return "prefer-writer"
	}
	return "RWPolicy(?)"
}

// ReadWriteLock admits many readers or one writer.
//
// The kernel has no reader-writer primitive; the lock is composed of a
// mutex guarding the reader count and a binary semaphore held while
// readers or a writer are inside. PreferWriter adds a second mutex for the
// writer count and a binary semaphore that blocks new readers while any
// writer waits. The policy is fixed at construction.
//
// The semaphores have no owner, so the last reader out may release what
// the first reader in acquired. Waiting is unbounded: the operations take
// no timeout and return early only when ctx is done or the scheduler ends.
type ReadWriteLock struct {
	_      noCopy
	policy RWPolicy

	readLock  *Mutex
	resource  *Semaphore
	readCount int

	writeLock    *Mutex
	blockReaders *Semaphore
	writeCount   int
}

// NewReadWriteLock creates an unlocked lock with the given policy.
func NewReadWriteLock(s *Scheduler, policy RWPolicy) (*ReadWriteLock, error) {
	if policy != PreferReader && policy != PreferWriter {
		panic("rtos: unknown ReadWriteLock policy")
	}
	l := &ReadWriteLock{policy: policy}
	fail := func(err error) (*ReadWriteLock, error) {
		l.Close()
		return nil, newCreateError(ResourceReadWriteLock, err, policy.String())
	}

	var err error
	if l.readLock, err = NewMutex(s); err != nil {
		return fail(err)
	}
	if l.resource, err = NewBinarySemaphore(s, true); err != nil {
		return fail(err)
	}
	if policy == PreferWriter {
		if l.writeLock, err = NewMutex(s); err != nil {
			return fail(err)
		}
		if l.blockReaders, err = NewBinarySemaphore(s, true); err != nil {
			return fail(err)
		}
	}
	return l, nil
}

// Policy returns the fairness policy.
func (l *ReadWriteLock) Policy() RWPolicy {
	return l.policy
}

// ReaderLock enters as a reader.
func (l *ReadWriteLock) ReaderLock(ctx context.Context) Result {
	if l.policy == PreferWriter {
		if r := l.blockReaders.Take(ctx, WaitForever); !r.OK() {
			return r
		}
		defer l.blockReaders.Give(ctx)
	}

	if r := l.readLock.Lock(ctx, WaitForever); !r.OK() {
		return r
	}
	defer l.readLock.Unlock(ctx)
	l.readCount++
	if l.readCount == 1 {
		if r := l.resource.Take(ctx, WaitForever); !r.OK() {
			l.readCount--
			return r
		}
	}
	return Success
}

// ReaderUnlock leaves as a reader.
func (l *ReadWriteLock) ReaderUnlock(ctx context.Context) Result {
	if r := l.readLock.Lock(ctx, WaitForever); !r.OK() {
		return r
	}
	defer l.readLock.Unlock(ctx)
	if l.readCount == 0 {
		return NotOwner
	}
	l.readCount--
	if l.readCount == 0 {
		return l.resource.Give(ctx)
	}
	return Success
}

// WriterLock enters as the writer.
func (l *ReadWriteLock) WriterLock(ctx context.Context) Result {
	if l.policy == PreferWriter {
		if r := l.writeLock.Lock(ctx, WaitForever); !r.OK() {
			return r
		}
		l.writeCount++
		if l.writeCount == 1 {
			if r := l.blockReaders.Take(ctx, WaitForever); !r.OK() {
				l.writeCount--
				l.writeLock.Unlock(ctx)
				return r
			}
		}
		l.writeLock.Unlock(ctx)
	}

	r := l.resource.Take(ctx, WaitForever)
	if !r.OK() && l.policy == PreferWriter {
		l.leaveWriters(ctx)
	}
	return r
}

// WriterUnlock leaves as the writer.
func (l *ReadWriteLock) WriterUnlock(ctx context.Context) Result {
	if r := l.resource.Give(ctx); !r.OK() {
		return r
	}
	if l.policy == PreferWriter {
		return l.leaveWriters(ctx)
	}
	return Success
}

func (l *ReadWriteLock) leaveWriters(ctx context.Context) Result {
	if r := l.writeLock.Lock(ctx, WaitForever); !r.OK() {
		return r
	}
	defer l.writeLock.Unlock(ctx)
	l.writeCount--
	if l.writeCount == 0 {
		return l.blockReaders.Give(ctx)
	}
	return Success
}

// Close deletes the kernel objects behind the lock.
func (l *ReadWriteLock) Close() {
	if l.readLock != nil {
		l.readLock.Close()
	}
	if l.resource != nil {
		l.resource.Close()
	}
	if l.writeLock != nil {
		l.writeLock.Close()
	}
	if l.blockReaders != nil {
		l.blockReaders.Close()
	}
}
