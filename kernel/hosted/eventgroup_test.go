// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hosted_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/rtos/kernel"
)

func TestEventGroupWaitAll(t *testing.T) {
	k := newKernel(t)
	ctx := context.Background()
	g, err := k.EventGroupCreate()
	require.NoError(t, err)

	got := make(chan kernel.EventBits, 1)
	h := spawn(t, k, "waiter", 1, func(ctx context.Context) {
		v, st := k.EventGroupWaitBits(ctx, g, 0x3, true, true, kernel.MaxDelay)
		if st == kernel.StatusOK {
			got <- v
		}
	})
	waitState(t, k, h, kernel.TaskBlocked)

	k.EventGroupSetBits(ctx, g, 0x1)
	assert.Equal(t, kernel.TaskBlocked, k.TaskState(h))
	k.EventGroupSetBits(ctx, g, 0x6)
	assert.Equal(t, kernel.EventBits(0x7), <-got)
	assert.Equal(t, kernel.EventBits(0x4), k.EventGroupGetBits(g))
}

func TestEventGroupWaitAny(t *testing.T) {
	k := newKernel(t)
	ctx := context.Background()
	g, err := k.EventGroupCreate()
	require.NoError(t, err)

	_, st := k.EventGroupWaitBits(ctx, g, 0x3, false, false, kernel.NoWait)
	assert.Equal(t, kernel.StatusEmpty, st)

	k.EventGroupSetBits(ctx, g, 0x2)
	v, st := k.EventGroupWaitBits(ctx, g, 0x3, false, false, kernel.NoWait)
	require.Equal(t, kernel.StatusOK, st)
	assert.Equal(t, kernel.EventBits(0x2), v)

	assert.Equal(t, kernel.EventBits(0x2), k.EventGroupClearBits(ctx, g, 0x2))
	assert.Zero(t, k.EventGroupGetBitsFromISR(g))
}

func TestEventGroupWaitTimeout(t *testing.T) {
	k := newKernel(t)
	g, err := k.EventGroupCreate()
	require.NoError(t, err)

	res := make(chan kernel.Status, 1)
	h := spawn(t, k, "waiter", 1, func(ctx context.Context) {
		_, st := k.EventGroupWaitBits(ctx, g, 0x1, false, true, 4)
		res <- st
	})
	waitState(t, k, h, kernel.TaskBlocked)
	k.TickN(4)
	assert.Equal(t, kernel.StatusTimeout, <-res)
}

func TestEventGroupSync(t *testing.T) {
	k := newKernel(t)
	g, err := k.EventGroupCreate()
	require.NoError(t, err)

	const all kernel.EventBits = 0x7
	res := make(chan kernel.Status, 3)
	for i := range 3 {
		spawn(t, k, "sync", 1, func(ctx context.Context) {
			_, st := k.EventGroupSync(ctx, g, 1<<i, all, kernel.MaxDelay)
			res <- st
		})
	}
	for range 3 {
		assert.Equal(t, kernel.StatusOK, <-res)
	}
	assert.Zero(t, k.EventGroupGetBits(g))
}

func TestEventGroupSetBitsFromISR(t *testing.T) {
	k := newKernel(t)
	g, err := k.EventGroupCreate()
	require.NoError(t, err)

	st, woken := k.EventGroupSetBitsFromISR(g, 0x10)
	require.Equal(t, kernel.StatusOK, st)
	assert.True(t, woken)
	eventually(t, func() bool { return k.EventGroupGetBits(g) == 0x10 }, "deferred set not applied")

	require.Equal(t, kernel.StatusOK, k.EventGroupClearBitsFromISR(g, 0x10))
	eventually(t, func() bool { return k.EventGroupGetBits(g) == 0 }, "deferred clear not applied")
}

func TestEventGroupDeleteWakesWaiters(t *testing.T) {
	k := newKernel(t)
	g, err := k.EventGroupCreate()
	require.NoError(t, err)

	res := make(chan kernel.Status, 1)
	h := spawn(t, k, "waiter", 1, func(ctx context.Context) {
		_, st := k.EventGroupWaitBits(ctx, g, 0x1, false, true, kernel.MaxDelay)
		res <- st
	})
	waitState(t, k, h, kernel.TaskBlocked)
	k.EventGroupDelete(g)
	assert.Equal(t, kernel.StatusInvalid, <-res)
}
