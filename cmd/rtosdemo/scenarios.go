// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"

	"code.hybscloud.com/rtos"
	"code.hybscloud.com/rtos/kernel"
)

// scenario is one self-contained demo. run drives it from an adopted
// goroutine and returns a one-line summary.
type scenario struct {
	name string
	help string
	run  func(ctx context.Context, s *rtos.Scheduler, rounds int) (string, error)
}

var scenarios = []scenario{
	{"queue", "producer and consumer threads over a bounded queue", runQueue},
	{"timers", "periodic and one-shot software timers", runTimers},
	{"tasklet", "deferred calls on the timer service with a parameter", runTasklet},
	{"rwlock", "writer-preferring read/write lock under contention", runRWLock},
	{"workqueue", "work items signalling an event group", runWorkQueue},
}

func lookupScenario(name string) (scenario, bool) {
	for _, sc := range scenarios {
		if sc.name == name {
			return sc, true
		}
	}
	return scenario{}, false
}

func joinAll(ctx context.Context, threads ...*rtos.Thread) error {
	for _, th := range threads {
		if err := th.Join(ctx); err != nil {
			return fmt.Errorf("thread %s: %w", th.Name(), err)
		}
	}
	return nil
}

func runQueue(ctx context.Context, s *rtos.Scheduler, rounds int) (string, error) {
	q, err := rtos.NewQueue[int32](s, 4)
	if err != nil {
		return "", err
	}
	defer q.Close()

	producer, err := rtos.Task("producer").Priority(2).Spawn(s, rtos.RunnerFunc(func(ctx context.Context) error {
		for i := int32(1); i <= int32(rounds); i++ {
			if r := q.Enqueue(ctx, &i, rtos.WaitForever); r != rtos.Success {
				return r.Err()
			}
		}
		end := int32(-1)
		return q.Enqueue(ctx, &end, rtos.WaitForever).Err()
	}))
	if err != nil {
		return "", err
	}

	var count, sum int
	consumer, err := rtos.Task("consumer").Priority(3).Spawn(s, rtos.RunnerFunc(func(ctx context.Context) error {
		for {
			v, r := q.Dequeue(ctx, rtos.WaitForever)
			if r != rtos.Success {
				return r.Err()
			}
			if v < 0 {
				return nil
			}
			count++
			sum += int(v)
		}
	}))
	if err != nil {
		producer.Delete()
		return "", err
	}
	if err := joinAll(ctx, producer, consumer); err != nil {
		return "", err
	}
	return fmt.Sprintf("consumed %d items, sum %d", count, sum), nil
}

func runTimers(ctx context.Context, s *rtos.Scheduler, rounds int) (string, error) {
	fired, err := rtos.NewCountingSemaphore(s, uint32(rounds)+1, 0)
	if err != nil {
		return "", err
	}
	defer fired.Close()
	once, err := rtos.NewBinarySemaphore(s, false)
	if err != nil {
		return "", err
	}
	defer once.Close()

	periodic, err := rtos.NewTimer(s, "periodic", max(s.MsToTicks(5), 1), true, func(ctx context.Context, _ *rtos.Timer) {
		fired.Give(ctx)
	})
	if err != nil {
		return "", err
	}
	defer periodic.Close(ctx)
	oneShot, err := rtos.NewTimer(s, "one-shot", max(s.MsToTicks(20), 1), false, func(ctx context.Context, _ *rtos.Timer) {
		once.Give(ctx)
	})
	if err != nil {
		return "", err
	}
	defer oneShot.Close(ctx)

	cmdTimeout := s.MsToTicks(100)
	if r := periodic.Start(ctx, cmdTimeout); r != rtos.Success {
		return "", fmt.Errorf("start periodic: %w", r.Err())
	}
	if r := oneShot.Start(ctx, cmdTimeout); r != rtos.Success {
		return "", fmt.Errorf("start one-shot: %w", r.Err())
	}
	for range rounds {
		if r := fired.Take(ctx, rtos.WaitForever); r != rtos.Success {
			return "", r.Err()
		}
	}
	if r := periodic.Stop(ctx, cmdTimeout); r != rtos.Success {
		return "", fmt.Errorf("stop periodic: %w", r.Err())
	}
	if r := once.Take(ctx, rtos.WaitForever); r != rtos.Success {
		return "", r.Err()
	}
	return fmt.Sprintf("periodic fired %d times, one-shot active=%t", rounds, oneShot.IsActive()), nil
}

func runTasklet(ctx context.Context, s *rtos.Scheduler, rounds int) (string, error) {
	ran, err := rtos.NewCountingSemaphore(s, uint32(rounds), 0)
	if err != nil {
		return "", err
	}
	defer ran.Close()

	var sum uint32
	tl, err := rtos.NewTasklet(s, func(ctx context.Context, param uint32) {
		sum += param
		ran.Give(ctx)
	})
	if err != nil {
		return "", err
	}
	defer tl.Close(ctx)

	for i := 1; i <= rounds; i++ {
		if r := tl.Schedule(ctx, uint32(i), rtos.WaitForever); r != rtos.Success {
			return "", fmt.Errorf("schedule %d: %w", i, r.Err())
		}
		if r := ran.Take(ctx, rtos.WaitForever); r != rtos.Success {
			return "", r.Err()
		}
	}
	return fmt.Sprintf("ran %d deferred calls, parameter sum %d", rounds, sum), nil
}

func runRWLock(ctx context.Context, s *rtos.Scheduler, rounds int) (string, error) {
	l, err := rtos.NewReadWriteLock(s, rtos.PreferWriter)
	if err != nil {
		return "", err
	}
	defer l.Close()

	const readers = 3
	var (
		value   int
		threads []*rtos.Thread
		reads   [readers]int
	)
	writer, err := rtos.Task("writer").Priority(2).Spawn(s, rtos.RunnerFunc(func(ctx context.Context) error {
		for range rounds {
			if r := l.WriterLock(ctx); r != rtos.Success {
				return r.Err()
			}
			value++
			if r := l.WriterUnlock(ctx); r != rtos.Success {
				return r.Err()
			}
		}
		return nil
	}))
	if err != nil {
		return "", err
	}
	threads = append(threads, writer)
	for i := range readers {
		th, err := rtos.Task(fmt.Sprintf("reader-%d", i)).Priority(2).Spawn(s, rtos.RunnerFunc(func(ctx context.Context) error {
			last := 0
			for last < rounds {
				if r := l.ReaderLock(ctx); r != rtos.Success {
					return r.Err()
				}
				last = value
				reads[i]++
				if r := l.ReaderUnlock(ctx); r != rtos.Success {
					return r.Err()
				}
			}
			return nil
		}))
		if err != nil {
			for _, th := range threads {
				th.Delete()
			}
			return "", err
		}
		threads = append(threads, th)
	}
	if err := joinAll(ctx, threads...); err != nil {
		return "", err
	}
	total := 0
	for _, n := range reads {
		total += n
	}
	return fmt.Sprintf("%d writes seen by %d readers in %d reads", value, readers, total), nil
}

func runWorkQueue(ctx context.Context, s *rtos.Scheduler, rounds int) (string, error) {
	const items = 8
	g, err := rtos.NewEventGroup(s)
	if err != nil {
		return "", err
	}
	defer g.Close()
	wq, err := rtos.NewWorkQueue(s, rtos.Task("demo-work").Priority(2), items)
	if err != nil {
		return "", err
	}
	defer wq.Close(ctx)

	const all kernel.EventBits = 1<<items - 1
	for round := range rounds {
		for i := range items {
			bit := kernel.EventBits(1) << i
			if r := wq.QueueWork(ctx, rtos.WorkFunc(func(ctx context.Context) {
				g.SetBits(ctx, bit)
			}), rtos.WaitForever); r != rtos.Success {
				return "", fmt.Errorf("round %d item %d: %w", round, i, r.Err())
			}
		}
		if _, r := g.WaitBits(ctx, all, true, true, rtos.WaitForever); r != rtos.Success {
			return "", fmt.Errorf("round %d: %w", round, r.Err())
		}
	}
	return fmt.Sprintf("%d rounds of %d work items, bits %#x collected each round", rounds, items, all), nil
}
