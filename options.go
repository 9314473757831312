// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtos

import "code.hybscloud.com/rtos/kernel"

// Thread defaults.
const (
	DefaultStackDepth uint16          = 128
	DefaultPriority   kernel.Priority = 1
)

// ThreadConfig holds the construction parameters of a Thread. They are
// fixed once the thread is created.
//
// ThreadConfig is a fluent builder:
//
//	// Defaults: DefaultStackDepth, DefaultPriority
//	t, err := rtos.Task("logger").Build(s, runner)
//
//	// Configured
//	t, err := rtos.Task("control").Stack(512).Priority(5).Build(s, runner)
type ThreadConfig struct {
	name       string
	stackDepth uint16
	priority   kernel.Priority
}

// Task starts a ThreadConfig for a thread with the given diagnostic name.
func Task(name string) *ThreadConfig {
	return &ThreadConfig{
		name:       name,
		stackDepth: DefaultStackDepth,
		priority:   DefaultPriority,
	}
}

// Stack sets the stack depth in words. The kernel charges it against its
// heap.
//
// Panics if depth is zero.
func (c *ThreadConfig) Stack(depth uint16) *ThreadConfig {
	if depth == 0 {
		panic("rtos: stack depth must be > 0")
	}
	c.stackDepth = depth
	return c
}

// Priority sets the base priority. The kernel clamps priorities beyond
// its configured maximum.
func (c *ThreadConfig) Priority(p kernel.Priority) *ThreadConfig {
	c.priority = p
	return c
}

// Build creates the thread in the Created state. Call Start to run it.
func (c *ThreadConfig) Build(s *Scheduler, r Runner) (*Thread, error) {
	return NewThread(s, r, c)
}

// Spawn creates the thread and starts it.
func (c *ThreadConfig) Spawn(s *Scheduler, r Runner) (*Thread, error) {
	t, err := NewThread(s, r, c)
	if err != nil {
		return nil, err
	}
	t.Start()
	return t, nil
}
