// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos

import (
	"errors"

	"code.hybscloud.com/iox"

	"code.hybscloud.com/rtos/kernel"
)

// ErrWouldBlock indicates the operation could not proceed without waiting.
//
// Result.Err returns it for Full, Empty and Unavailable: the queue had no
// room, had no item, or the lock was held and the caller asked not to
// wait. Like its iox counterpart it is a control flow signal, not a
// failure: retry later rather than propagating it.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
//
// Example:
//
//	backoff := iox.Backoff{}
//	for {
//	    err := q.Enqueue(ctx, &item, rtos.NoWait).Err()
//	    if err == nil {
//	        break
//	    }
//	    if rtos.IsWouldBlock(err) {
//	        backoff.Wait()
//	        continue
//	    }
//	    return err
//	}
var ErrWouldBlock = iox.ErrWouldBlock

// Operational errors returned by Result.Err.
var (
	ErrTimeout  = errors.New("rtos: timed out")
	ErrNotOwner = errors.New("rtos: released by a task that does not hold it")
	ErrCanceled = errors.New("rtos: canceled")
	ErrClosed   = errors.New("rtos: object closed or deleted")
)

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Returns true for nil and ErrWouldBlock.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}

// =============================================================================
// Construction failures
// =============================================================================

// Resource names the kind of object a constructor failed to create.
type Resource string

const (
	ResourceMutex         Resource = "Mutex"
	ResourceQueue         Resource = "Queue"
	ResourceSemaphore     Resource = "Semaphore"
	ResourceReadWriteLock Resource = "ReadWriteLock"
	ResourceTimer         Resource = "Timer"
	ResourceTasklet       Resource = "Tasklet"
	ResourceThread        Resource = "Thread"
	ResourceEventGroup    Resource = "EventGroup"
	ResourceWorkQueue     Resource = "WorkQueue"
)

// Sentinels matched by errors.Is against a *CreateError of that resource.
var (
	ErrMutexCreate         = errors.New("rtos: Mutex Constructor Failed")
	ErrQueueCreate         = errors.New("rtos: Queue Constructor Failed")
	ErrSemaphoreCreate     = errors.New("rtos: Semaphore Constructor Failed")
	ErrReadWriteLockCreate = errors.New("rtos: ReadWriteLock Constructor Failed")
	ErrTimerCreate         = errors.New("rtos: Timer Constructor Failed")
	ErrTaskletCreate       = errors.New("rtos: Tasklet Constructor Failed")
	ErrThreadCreate        = errors.New("rtos: Thread Constructor Failed")
	ErrEventGroupCreate    = errors.New("rtos: EventGroup Constructor Failed")
	ErrWorkQueueCreate     = errors.New("rtos: WorkQueue Constructor Failed")
)

var createSentinels = map[Resource]error{
	ResourceMutex:         ErrMutexCreate,
	ResourceQueue:         ErrQueueCreate,
	ResourceSemaphore:     ErrSemaphoreCreate,
	ResourceReadWriteLock: ErrReadWriteLockCreate,
	ResourceTimer:         ErrTimerCreate,
	ResourceTasklet:       ErrTaskletCreate,
	ResourceThread:        ErrThreadCreate,
	ResourceEventGroup:    ErrEventGroupCreate,
	ResourceWorkQueue:     ErrWorkQueueCreate,
}

// CreateError reports that a constructor could not obtain its kernel
// object. The constructor returns no object alongside it.
//
// Use errors.Is with the per-resource sentinels (ErrQueueCreate, ...) or
// with the kernel code (kernel.CodeNoMemory, ...), and errors.As to read
// the fields:
//
//	q, err := rtos.NewQueue[int32](s, 4)
//	var ce *rtos.CreateError
//	if errors.As(err, &ce) {
//	    log.Println(ce.ErrorString())
//	}
type CreateError struct {
	Resource Resource
	// Code is the kernel code, zero when the cause is not a kernel.Code.
	Code kernel.Code
	// Info is optional detail, such as the object name.
	Info string
	// Err is the error returned by the kernel.
	Err error
}

// newCreateError reports the kernel cause of a failed constructor. A
// failed inner constructor contributes its cause, not its own message.
func newCreateError(res Resource, err error, info string) *CreateError {
	if inner, ok := err.(*CreateError); ok {
		err = inner.Err
	}
	e := &CreateError{Resource: res, Info: info, Err: err}
	var code kernel.Code
	if errors.As(err, &code) {
		e.Code = code
	}
	return e
}

// ErrorString returns the readable diagnostic, for example
// "Queue Constructor Failed: could not allocate required memory (rx)".
func (e *CreateError) ErrorString() string {
	s := string(e.Resource) + " Constructor Failed"
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	if e.Info != "" {
		s += " (" + e.Info + ")"
	}
	return s
}

func (e *CreateError) Error() string {
	return "rtos: " + e.ErrorString()
}

func (e *CreateError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the failed resource.
func (e *CreateError) Is(target error) bool {
	return target != nil && createSentinels[e.Resource] == target
}
