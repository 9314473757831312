// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos

import "code.hybscloud.com/atomix"

// TickHook is a function run from the tick interrupt on every tick.
//
// Hooks run in interrupt context: they must not block and may only use
// FromISR operations. Enable and Disable toggle a registered hook without
// unregistering it.
type TickHook struct {
	_       noCopy
	s       *Scheduler
	fn      func()
	enabled atomix.Bool
}

// NewTickHook creates an enabled, unregistered hook.
//
// Panics if fn is nil.
func NewTickHook(s *Scheduler, fn func()) *TickHook {
	if fn == nil {
		panic("rtos: nil tick hook")
	}
	h := &TickHook{s: s, fn: fn}
	h.enabled.StoreRelease(true)
	return h
}

// Register adds the hook to the scheduler's tick dispatch. It reports
// false if the hook was already registered.
func (h *TickHook) Register() bool {
	return h.s.addHook(h)
}

// Unregister removes the hook. It reports false if the hook was not
// registered.
func (h *TickHook) Unregister() bool {
	return h.s.removeHook(h)
}

func (h *TickHook) Enable() {
	h.enabled.StoreRelease(true)
}

func (h *TickHook) Disable() {
	h.enabled.StoreRelease(false)
}

func (h *TickHook) Enabled() bool {
	return h.enabled.LoadAcquire()
}
