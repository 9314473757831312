// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos

import (
	"math"

	"code.hybscloud.com/rtos/kernel"
)

// Timeout sentinels accepted by every blocking operation, in ticks.
const (
	// NoWait makes an operation return immediately when it cannot proceed.
	NoWait kernel.Tick = 0
	// WaitForever blocks until the operation succeeds, the context is done
	// or the scheduler ends.
	WaitForever kernel.Tick = math.MaxUint32
)

// Result is the outcome of an operation on a live object. Outcomes other
// than Success are expected control flow, not errors; Err converts them for
// callers that prefer error values.
type Result uint8

const (
	Success Result = iota
	// Timeout: the caller waited the full timeout.
	Timeout
	// Full: no room and the caller did not wait, or a semaphore at its max.
	Full
	// Empty: nothing to receive and the caller did not wait.
	Empty
	// Unavailable: a lock or semaphore was taken and the caller did not wait.
	Unavailable
	// NotOwner: release of a mutex the caller does not hold.
	NotOwner
	// Canceled: the context was done, the scheduler ended or the calling
	// thread was deleted.
	Canceled
	// Invalid: the object was closed, or the call is not allowed on it.
	Invalid
)

var resultNames = [...]string{
	Success:     "Success",
	Timeout:     "Timeout",
	Full:        "Full",
	Empty:       "Empty",
	Unavailable: "Unavailable",
	NotOwner:    "NotOwner",
	Canceled:    "Canceled",
	Invalid:     "Invalid",
}

func (r Result) String() string {
	if int(r) < len(resultNames) {
		return resultNames[r]
	}
	return "Result(?)"
}

// OK reports whether r is Success.
func (r Result) OK() bool {
	return r == Success
}

// Err returns nil for Success and the matching error otherwise.
func (r Result) Err() error {
	switch r {
	case Success:
		return nil
	case Full, Empty, Unavailable:
		return ErrWouldBlock
	case Timeout:
		return ErrTimeout
	case NotOwner:
		return ErrNotOwner
	case Canceled:
		return ErrCanceled
	}
	return ErrClosed
}

// resultOf maps a kernel status.
func resultOf(st kernel.Status) Result {
	switch st {
	case kernel.StatusOK:
		return Success
	case kernel.StatusFull:
		return Full
	case kernel.StatusEmpty:
		return Empty
	case kernel.StatusTimeout:
		return Timeout
	case kernel.StatusNotOwner:
		return NotOwner
	case kernel.StatusCanceled, kernel.StatusStopped:
		return Canceled
	}
	return Invalid
}

// takeResult maps the status of a lock or semaphore take, where an
// immediate failure means the object is held rather than empty.
func takeResult(st kernel.Status) Result {
	if st == kernel.StatusEmpty {
		return Unavailable
	}
	return resultOf(st)
}
