// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos_test

import (
	"context"
	"errors"
	"fmt"

	"code.hybscloud.com/rtos"
	"code.hybscloud.com/rtos/kernel"
	"code.hybscloud.com/rtos/kernel/hosted"
)

// newExampleScheduler starts a manually ticked scheduler for examples.
func newExampleScheduler() (*rtos.Scheduler, *hosted.Kernel) {
	cfg := hosted.DefaultConfig()
	cfg.ManualTick = true
	cfg.Logger = quiet
	k := hosted.MustNew(cfg)
	s := rtos.NewScheduler(k, rtos.WithLogger(quiet))
	if err := s.Start(); err != nil {
		panic(err)
	}
	return s, k
}

// Example_queue demonstrates a producer thread feeding the caller.
func Example_queue() {
	s, k := newExampleScheduler()
	defer k.Wait()
	defer s.End()

	q, err := rtos.NewQueue[int32](s, 4)
	if err != nil {
		fmt.Println(err)
		return
	}
	rtos.Task("producer").Priority(2).Spawn(s, rtos.RunnerFunc(func(ctx context.Context) error {
		for i := int32(1); i <= 3; i++ {
			if r := q.Enqueue(ctx, &i, rtos.WaitForever); r != rtos.Success {
				return r.Err()
			}
		}
		return nil
	}))

	ctx := context.Background()
	for range 3 {
		v, r := q.Dequeue(ctx, rtos.WaitForever)
		fmt.Println(v, r)
	}
	_, r := q.Dequeue(ctx, rtos.NoWait)
	fmt.Println(r)

	// Output:
	// 1 Success
	// 2 Success
	// 3 Success
	// Empty
}

// Example_createError shows the two failure tiers: constructors return
// a *CreateError, operations return a Result.
func Example_createError() {
	cfg := hosted.DefaultConfig()
	cfg.ManualTick = true
	cfg.Logger = quiet
	cfg.TimerTaskStackDepth = 16
	cfg.HeapSize = 256
	k := hosted.MustNew(cfg)
	s := rtos.NewScheduler(k, rtos.WithLogger(quiet))
	s.Start()
	defer k.Wait()
	defer s.End()

	_, err := rtos.NewQueue[int64](s, 64)
	var ce *rtos.CreateError
	if errors.As(err, &ce) {
		fmt.Println(ce.ErrorString())
		fmt.Println(errors.Is(err, rtos.ErrQueueCreate), errors.Is(err, kernel.CodeNoMemory))
	}

	q, _ := rtos.NewQueue[int64](s, 1)
	v := int64(1)
	fmt.Println(q.Enqueue(context.Background(), &v, rtos.NoWait))
	fmt.Println(q.Enqueue(context.Background(), &v, rtos.NoWait))

	// Output:
	// Queue Constructor Failed: could not allocate required memory (capacity 64)
	// true true
	// Success
	// Full
}

// Example_tickHook counts ticks from the tick interrupt.
func Example_tickHook() {
	s, k := newExampleScheduler()
	defer k.Wait()
	defer s.End()

	var n int
	h := rtos.NewTickHook(s, func() { n++ })
	h.Register()

	k.TickN(10)
	h.Disable()
	k.TickN(10)
	fmt.Println(n, s.Ticks())

	// Output:
	// 10 20
}

// Example_mutex guards shared state between threads.
func Example_mutex() {
	s, k := newExampleScheduler()
	defer k.Wait()
	defer s.End()

	m, _ := rtos.NewMutex(s)
	total := 0
	var threads []*rtos.Thread
	for range 4 {
		th, _ := rtos.Task("adder").Spawn(s, rtos.RunnerFunc(func(ctx context.Context) error {
			for range 100 {
				err := rtos.WithLock(ctx, m, rtos.WaitForever, func() error {
					total++
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		}))
		threads = append(threads, th)
	}
	for _, th := range threads {
		th.Join(context.Background())
	}
	fmt.Println(total)

	// Output:
	// 400
}
