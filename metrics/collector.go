// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics exports kernel statistics to Prometheus.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"code.hybscloud.com/rtos/kernel"
)

// DefaultNamespace prefixes every metric name when none is given.
const DefaultNamespace = "rtos"

// StatsSource is implemented by *rtos.Scheduler and by kernel ports.
type StatsSource interface {
	Stats() kernel.Stats
}

type metric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(kernel.Stats) float64
	label string // value of the only variable label, if any
}

// Collector is a prometheus.Collector reading a fresh kernel.Stats
// snapshot on every scrape.
type Collector struct {
	src     StatsSource
	metrics []metric
}

// NewCollector returns a collector over src with names prefixed by
// namespace, or DefaultNamespace when empty.
func NewCollector(namespace string, src StatsSource) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	gauge := func(name, help string, v func(kernel.Stats) float64) metric {
		return metric{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil),
			kind:  prometheus.GaugeValue,
			value: v,
		}
	}
	counter := func(name, help string, v func(kernel.Stats) uint64) metric {
		return metric{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil),
			kind:  prometheus.CounterValue,
			value: func(s kernel.Stats) float64 { return float64(v(s)) },
		}
	}
	objects := prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "objects"),
		"Live kernel objects by kind.", []string{"kind"}, nil)

	c := &Collector{src: src}
	c.metrics = []metric{
		counter("ticks_total", "Tick interrupts since the scheduler started.",
			func(s kernel.Stats) uint64 { return s.Ticks }),
		gauge("heap_size_bytes", "Kernel heap capacity.",
			func(s kernel.Stats) float64 { return float64(s.HeapSize) }),
		gauge("heap_free_bytes", "Free kernel heap.",
			func(s kernel.Stats) float64 { return float64(s.FreeHeap) }),
		gauge("heap_min_ever_free_bytes", "Low-water mark of free kernel heap.",
			func(s kernel.Stats) float64 { return float64(s.MinEverFreeHeap) }),
		counter("timer_callbacks_total", "Software timer callbacks run by the timer service.",
			func(s kernel.Stats) uint64 { return s.TimerCallbacks }),
		counter("pended_calls_total", "Function calls pended to the timer service.",
			func(s kernel.Stats) uint64 { return s.PendedCalls }),
		counter("tick_hook_calls_total", "Tick hook invocations.",
			func(s kernel.Stats) uint64 { return s.TickHookCalls }),
		counter("yield_requests_total", "Context switches requested from interrupt context.",
			func(s kernel.Stats) uint64 { return s.YieldRequests }),
		counter("timer_commands_dropped_total", "Timer commands rejected because the command queue was full.",
			func(s kernel.Stats) uint64 { return s.TimerCommandsDropped }),
		counter("assert_failures_total", "Kernel contract violations reported to the assert hook.",
			func(s kernel.Stats) uint64 { return s.AssertFailures }),
	}
	for _, k := range []struct {
		kind string
		v    func(kernel.Stats) int
	}{
		{"task", func(s kernel.Stats) int { return s.Tasks }},
		{"queue", func(s kernel.Stats) int { return s.Queues }},
		{"semaphore", func(s kernel.Stats) int { return s.Semaphores }},
		{"timer", func(s kernel.Stats) int { return s.Timers }},
		{"event_group", func(s kernel.Stats) int { return s.EventGroups }},
	} {
		c.metrics = append(c.metrics, metric{
			desc:  objects,
			kind:  prometheus.GaugeValue,
			value: func(s kernel.Stats) float64 { return float64(k.v(s)) },
			label: k.kind,
		})
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	seen := make(map[*prometheus.Desc]bool, len(c.metrics))
	for _, m := range c.metrics {
		if !seen[m.desc] {
			seen[m.desc] = true
			ch <- m.desc
		}
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	for _, m := range c.metrics {
		if m.label != "" {
			ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(s), m.label)
			continue
		}
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(s))
	}
}

// Register registers a collector over src with reg, or with the default
// registerer when reg is nil. A collector already registered under the
// same names is returned instead of an error.
func Register(namespace string, src StatsSource, reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := NewCollector(namespace, src)
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*Collector); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("metrics: register kernel collector: %w", err)
	}
	return c, nil
}
