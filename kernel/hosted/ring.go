// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hosted

import (
	"math/bits"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
)

// cmdRing carries commands to the timer service. Tasks and interrupts post
// without taking the kernel lock; the timer service task alone takes.
//
// A poster claims a sequence number with one fetch-and-add and owns slot
// seq%len(slots) for round seq/depth. Each slot has two rounds' worth of
// room, so len(slots) is twice the depth.
type cmdRing[T any] struct {
	posted atomix.Uint64
	taken  atomix.Uint64
	depth  uint64
	slots  []cmdSlot[T]
}

type cmdSlot[T any] struct {
	// round is the round that may write the slot next; round+1 once the
	// command for that round is in place.
	round atomix.Uint64
	cmd   T
}

// newCmdRing returns a ring accepting at least depth pending commands,
// rounded up to a power of two.
func newCmdRing[T any](depth int) *cmdRing[T] {
	if depth < 2 {
		panic("hosted: command ring depth must be >= 2")
	}
	n := uint64(1) << bits.Len(uint(depth-1))
	r := &cmdRing[T]{depth: n, slots: make([]cmdSlot[T], 2*n)}
	for i := range r.slots {
		r.slots[i].round.StoreRelaxed(uint64(i) / n)
	}
	return r
}

// post appends *cmd, or returns iox.ErrWouldBlock when depth commands are
// already pending.
func (r *cmdRing[T]) post(cmd *T) error {
	sw := spin.Wait{}
	for {
		if r.posted.LoadAcquire() >= r.taken.LoadRelaxed()+r.depth {
			return iox.ErrWouldBlock
		}
		seq := r.posted.AddAcqRel(1) - 1
		slot := &r.slots[seq%uint64(len(r.slots))]
		want := seq / r.depth
		switch got := slot.round.LoadAcquire(); {
		case got == want:
			slot.cmd = *cmd
			slot.round.StoreRelease(want + 1)
			return nil
		case int64(got) < int64(want):
			// The taker has not freed the slot from the previous lap.
			return iox.ErrWouldBlock
		}
		sw.Once()
	}
}

// take removes the oldest command, or returns iox.ErrWouldBlock when none
// is ready. Only the timer service task calls it.
func (r *cmdRing[T]) take() (T, error) {
	var zero T
	seq := r.taken.LoadRelaxed()
	slot := &r.slots[seq%uint64(len(r.slots))]
	if slot.round.LoadAcquire() != seq/r.depth+1 {
		return zero, iox.ErrWouldBlock
	}
	cmd := slot.cmd
	slot.cmd = zero
	slot.round.StoreRelease((seq + uint64(len(r.slots))) / r.depth)
	r.taken.StoreRelaxed(seq + 1)
	return cmd, nil
}
