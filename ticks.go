// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos

import (
	"time"

	"code.hybscloud.com/rtos/kernel"
)

// MsToTicks converts milliseconds to ticks, rounding down.
func (s *Scheduler) MsToTicks(ms uint32) kernel.Tick {
	return kernel.Tick(time.Duration(ms) * time.Millisecond / s.k.TickPeriod())
}

// SecondsToTicks converts seconds to ticks, rounding down.
func (s *Scheduler) SecondsToTicks(sec uint32) kernel.Tick {
	return kernel.Tick(time.Duration(sec) * time.Second / s.k.TickPeriod())
}

// TicksToMs converts ticks to milliseconds.
func (s *Scheduler) TicksToMs(t kernel.Tick) uint32 {
	return uint32(time.Duration(t) * s.k.TickPeriod() / time.Millisecond)
}

// DurationToTicks converts d to a timeout in ticks, rounding up so the
// wait is never shorter than d. Negative durations give NoWait; durations
// beyond the tick range give WaitForever.
func (s *Scheduler) DurationToTicks(d time.Duration) kernel.Tick {
	if d <= 0 {
		return NoWait
	}
	p := s.k.TickPeriod()
	n := (d + p - 1) / p
	if n >= time.Duration(WaitForever) {
		return WaitForever
	}
	return kernel.Tick(n)
}
