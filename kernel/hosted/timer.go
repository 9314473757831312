// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hosted

import (
	"context"
	"errors"

	"github.com/gammazero/deque"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/rtos/kernel"
)

// timer is a software timer. Fields other than handle, name and fn are
// guarded by Kernel.mu.
type timer struct {
	handle     kernel.TimerHandle
	name       string
	fn         kernel.TimerFunc
	period     uint64
	autoReload bool

	active bool
	armed  bool // on the service list
	expiry uint64
}

type timerOp uint8

const (
	opStart timerOp = iota
	opReset
	opStop
	opChangePeriod
	opDelete
	opPend
)

// timerCommand is one entry of the timer service command queue.
type timerCommand struct {
	op     timerOp
	h      kernel.TimerHandle
	issued uint64 // tick count when the command was posted
	period uint64
	fn     kernel.PendedFunc
	param  uint32
}

// timerService is the daemon task that runs timer callbacks and pended
// calls in task context.
type timerService struct {
	k    *Kernel
	cmds *cmdRing[timerCommand]
	wake chan struct{}
	list deque.Deque[*timer] // armed timers by expiry, guarded by Kernel.mu
	task kernel.TaskHandle
}

func newTimerService(k *Kernel, queueLength int) *timerService {
	return &timerService{
		k:    k,
		cmds: newCmdRing[timerCommand](queueLength),
		wake: make(chan struct{}, 1),
	}
}

func (s *timerService) start() error {
	h, err := s.k.TaskCreate(s.run, "Tmr Svc", s.k.cfg.TimerTaskStackDepth, s.k.cfg.TimerTaskPriority)
	if err != nil {
		return err
	}
	s.task = h
	return nil
}

func (s *timerService) run(ctx context.Context) {
	for {
		s.processCommands(ctx)
		s.processExpired(ctx)
		select {
		case <-s.wake:
		case <-ctx.Done():
			return
		}
	}
}

func (s *timerService) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// dueLocked reports whether the earliest armed timer has expired.
func (s *timerService) dueLocked(now uint64) bool {
	return s.list.Len() > 0 && s.list.Front().expiry <= now
}

func (s *timerService) processCommands(ctx context.Context) {
	k := s.k
	for {
		cmd, err := s.cmds.take()
		if err != nil {
			return
		}
		if cmd.op == opPend {
			cmd.fn(ctx, cmd.param)
			k.stats.pendedCalls.Add(1)
			continue
		}

		k.mu.Lock()
		tm := k.timers[cmd.h]
		if tm == nil {
			k.mu.Unlock()
			continue
		}
		switch cmd.op {
		case opStart, opReset:
			s.armLocked(tm, cmd.issued+tm.period)
		case opChangePeriod:
			tm.period = cmd.period
			s.armLocked(tm, cmd.issued+tm.period)
		case opStop:
			s.disarmLocked(tm)
		case opDelete:
			s.disarmLocked(tm)
			delete(k.timers, cmd.h)
			k.free(timerSize)
		}
		k.mu.Unlock()
	}
}

// processExpired runs due callbacks one at a time, outside the kernel lock,
// so callbacks may issue timer commands of their own.
func (s *timerService) processExpired(ctx context.Context) {
	k := s.k
	for {
		k.mu.Lock()
		if !s.dueLocked(k.now()) {
			k.mu.Unlock()
			return
		}
		tm := s.list.PopFront()
		tm.armed = false
		if tm.autoReload {
			s.armLocked(tm, tm.expiry+tm.period)
		} else {
			tm.active = false
		}
		fn, h := tm.fn, tm.handle
		k.mu.Unlock()

		fn(ctx, h)
		k.stats.timerCallbacks.Add(1)
	}
}

func (s *timerService) armLocked(tm *timer, at uint64) {
	s.disarmLocked(tm)
	tm.expiry = at
	tm.active = true
	tm.armed = true
	i := s.list.Index(func(x *timer) bool { return x.expiry > at })
	if i < 0 {
		s.list.PushBack(tm)
	} else {
		s.list.Insert(i, tm)
	}
}

func (s *timerService) disarmLocked(tm *timer) {
	tm.active = false
	if !tm.armed {
		return
	}
	if i := s.list.Index(func(x *timer) bool { return x == tm }); i >= 0 {
		s.list.Remove(i)
	}
	tm.armed = false
}

// post queues cmd for the timer service, waiting up to timeout ticks for
// room in the command queue.
func (k *Kernel) post(ctx context.Context, cmd timerCommand, timeout kernel.Tick) kernel.Status {
	_, st := k.enter(ctx)
	if st == kernel.StatusOK && cmd.op != opPend && k.timers[cmd.h] == nil {
		st = kernel.StatusInvalid
	}
	k.mu.Unlock()
	if st != kernel.StatusOK {
		return st
	}

	cmd.issued = k.now()
	err := k.svc.cmds.post(&cmd)
	if err == nil {
		k.svc.kick()
		return kernel.StatusOK
	}
	if timeout == kernel.NoWait {
		k.dropCommand(cmd)
		return kernel.StatusFull
	}

	dl := k.deadline(timeout)
	b := iox.Backoff{}
	for iox.IsWouldBlock(err) {
		switch {
		case k.root.Err() != nil:
			return kernel.StatusStopped
		case ctx.Err() != nil:
			return kernel.StatusCanceled
		case dl.expired(k.now()):
			k.dropCommand(cmd)
			return kernel.StatusTimeout
		}
		b.Wait()
		err = k.svc.cmds.post(&cmd)
	}
	k.svc.kick()
	return kernel.StatusOK
}

// postFromISR makes a single attempt to queue cmd. It never takes the
// kernel lock.
func (k *Kernel) postFromISR(cmd timerCommand) (kernel.Status, bool) {
	cmd.issued = k.now()
	if err := k.svc.cmds.post(&cmd); err != nil {
		k.dropCommand(cmd)
		return kernel.StatusFull, false
	}
	k.svc.kick()
	return kernel.StatusOK, true
}

func (k *Kernel) dropCommand(cmd timerCommand) {
	k.stats.cmdDropped.Add(1)
	k.log.Warn("timer command queue full", "op", cmd.op, "timer", cmd.h)
}

// errNoTimerCallback is returned by TimerCreate for a nil callback.
var errNoTimerCallback = errors.New("hosted: timer callback is nil")

func (k *Kernel) TimerCreate(name string, period kernel.Tick, autoReload bool, fn kernel.TimerFunc) (kernel.TimerHandle, error) {
	switch {
	case fn == nil:
		return 0, errNoTimerCallback
	case period == 0:
		return 0, kernel.CodeInvalidParam
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.state == kernel.SchedulerEnded {
		return 0, kernel.CodeSchedulerEnded
	}
	if !k.alloc(timerSize) {
		k.log.Debug("timer allocation failed", "timer", name)
		return 0, kernel.CodeNoMemory
	}
	h := kernel.TimerHandle(k.newHandle())
	k.timers[h] = &timer{handle: h, name: name, fn: fn, period: uint64(period), autoReload: autoReload}
	return h, nil
}

func (k *Kernel) TimerDelete(ctx context.Context, h kernel.TimerHandle, cmdTimeout kernel.Tick) kernel.Status {
	return k.post(ctx, timerCommand{op: opDelete, h: h}, cmdTimeout)
}

func (k *Kernel) TimerStart(ctx context.Context, h kernel.TimerHandle, cmdTimeout kernel.Tick) kernel.Status {
	return k.post(ctx, timerCommand{op: opStart, h: h}, cmdTimeout)
}

func (k *Kernel) TimerStartFromISR(h kernel.TimerHandle) (kernel.Status, bool) {
	return k.postFromISR(timerCommand{op: opStart, h: h})
}

func (k *Kernel) TimerStop(ctx context.Context, h kernel.TimerHandle, cmdTimeout kernel.Tick) kernel.Status {
	return k.post(ctx, timerCommand{op: opStop, h: h}, cmdTimeout)
}

func (k *Kernel) TimerStopFromISR(h kernel.TimerHandle) (kernel.Status, bool) {
	return k.postFromISR(timerCommand{op: opStop, h: h})
}

func (k *Kernel) TimerReset(ctx context.Context, h kernel.TimerHandle, cmdTimeout kernel.Tick) kernel.Status {
	return k.post(ctx, timerCommand{op: opReset, h: h}, cmdTimeout)
}

func (k *Kernel) TimerResetFromISR(h kernel.TimerHandle) (kernel.Status, bool) {
	return k.postFromISR(timerCommand{op: opReset, h: h})
}

func (k *Kernel) TimerChangePeriod(ctx context.Context, h kernel.TimerHandle, period kernel.Tick, cmdTimeout kernel.Tick) kernel.Status {
	if period == 0 {
		return kernel.StatusInvalid
	}
	return k.post(ctx, timerCommand{op: opChangePeriod, h: h, period: uint64(period)}, cmdTimeout)
}

func (k *Kernel) TimerChangePeriodFromISR(h kernel.TimerHandle, period kernel.Tick) (kernel.Status, bool) {
	if period == 0 {
		return kernel.StatusInvalid, false
	}
	return k.postFromISR(timerCommand{op: opChangePeriod, h: h, period: uint64(period)})
}

func (k *Kernel) TimerIsActive(h kernel.TimerHandle) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	tm := k.timers[h]
	return tm != nil && tm.active
}

func (k *Kernel) TimerPeriod(h kernel.TimerHandle) kernel.Tick {
	k.mu.Lock()
	defer k.mu.Unlock()
	if tm := k.timers[h]; tm != nil {
		return kernel.Tick(tm.period)
	}
	return 0
}

func (k *Kernel) TimerDaemonTask() kernel.TaskHandle {
	return k.svc.task
}

func (k *Kernel) PendFunctionCall(ctx context.Context, fn kernel.PendedFunc, param uint32, timeout kernel.Tick) kernel.Status {
	if fn == nil {
		return kernel.StatusInvalid
	}
	return k.post(ctx, timerCommand{op: opPend, fn: fn, param: param}, timeout)
}

func (k *Kernel) PendFunctionCallFromISR(fn kernel.PendedFunc, param uint32) (kernel.Status, bool) {
	if fn == nil {
		return kernel.StatusInvalid, false
	}
	return k.postFromISR(timerCommand{op: opPend, fn: fn, param: param})
}
