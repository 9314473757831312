// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hosted

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"code.hybscloud.com/rtos/kernel"
)

// Config holds the port configuration, the hosted counterpart of a
// FreeRTOSConfig.h.
type Config struct {
	// TickPeriod is the interval between tick interrupts.
	TickPeriod time.Duration `yaml:"tick_period"`
	// ManualTick disables the tick goroutine; ticks are then generated by
	// calling Kernel.Tick.
	ManualTick bool `yaml:"manual_tick"`

	// MaxPriorities bounds task priorities to [0, MaxPriorities).
	MaxPriorities kernel.Priority `yaml:"max_priorities"`
	// HeapSize is the number of bytes kernel objects may allocate.
	HeapSize int `yaml:"heap_size"`
	// MinimalStackSize is the stack depth, in words, of tasks created
	// with a zero depth.
	MinimalStackSize uint16 `yaml:"minimal_stack_size"`

	TimerTaskPriority   kernel.Priority `yaml:"timer_task_priority"`
	TimerTaskStackDepth uint16          `yaml:"timer_task_stack_depth"`
	TimerQueueLength    int             `yaml:"timer_queue_length"`

	// UseTickHook enables the hook installed with SetTickHook.
	UseTickHook bool `yaml:"use_tick_hook"`

	// AssertHook is called when a kernel contract is violated.
	AssertHook func(msg string) `yaml:"-"`
	Logger     *slog.Logger     `yaml:"-"`
}

// DefaultConfig returns the configuration used by New when none is given.
func DefaultConfig() Config {
	return Config{
		TickPeriod:          time.Millisecond,
		MaxPriorities:       8,
		HeapSize:            256 << 10,
		MinimalStackSize:    128,
		TimerTaskPriority:   7,
		TimerTaskStackDepth: 256,
		TimerQueueLength:    10,
		UseTickHook:         true,
	}
}

// ParseConfig decodes a YAML document over DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("hosted: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.TickPeriod <= 0:
		return errors.New("hosted: tick_period must be positive")
	case c.MaxPriorities < 2:
		return errors.New("hosted: max_priorities must be >= 2")
	case c.HeapSize <= 0:
		return errors.New("hosted: heap_size must be positive")
	case c.MinimalStackSize == 0:
		return errors.New("hosted: minimal_stack_size must be positive")
	case c.TimerTaskPriority >= c.MaxPriorities:
		return fmt.Errorf("hosted: timer_task_priority %d out of range [0,%d)", c.TimerTaskPriority, c.MaxPriorities)
	case c.TimerTaskStackDepth == 0:
		return errors.New("hosted: timer_task_stack_depth must be positive")
	case c.TimerQueueLength < 2:
		return errors.New("hosted: timer_queue_length must be >= 2")
	}
	return nil
}
