// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("cormorant.retrieval")

// TechniqueMetrics are the aggregated counters for one technique.
type TechniqueMetrics struct {
	Executions           int64         `json:"executions"`
	Successes            int64         `json:"successes"`
	Failures             int64         `json:"failures"`
	AverageExecutionTime time.Duration `json:"average_execution_time"`
}

// Metrics is a snapshot of the orchestrator's counters.
type Metrics struct {
	TotalExecutions      int64                              `json:"total_executions"`
	SuccessfulExecutions int64                              `json:"successful_executions"`
	FailedExecutions     int64                              `json:"failed_executions"`
	AverageExecutionTime time.Duration                      `json:"average_execution_time"`
	PerTechnique         map[TechniqueType]TechniqueMetrics `json:"per_technique"`
}

// techniqueCounters is the mutable per-technique record. Guarded by
// Collector.mu.
type techniqueCounters struct {
	executions    int64
	successes     int64
	failures      int64
	totalDuration time.Duration
}

// Collector aggregates execution counts and timings per technique and
// globally, and mirrors them onto OpenTelemetry instruments.
//
// Description:
//
//	Every completed or failed attempt is recorded, retries included, so
//	the counters reflect executor invocations rather than caller-visible
//	results. Counters are monotonic until Reset.
//
// Thread Safety: Safe for concurrent use; the counter maps are one of the
// two mutual-exclusion boundaries shared across invocations.
type Collector struct {
	mu           sync.Mutex
	enabled      bool
	total        techniqueCounters
	perTechnique map[TechniqueType]*techniqueCounters
	logger       *slog.Logger

	// OpenTelemetry instruments, initialized lazily. Instrument creation
	// failure degrades to in-memory counters only.
	otelOnce    sync.Once
	execCounter metric.Int64Counter
	execLatency metric.Float64Histogram
	activeExecs metric.Int64UpDownCounter
}

// NewCollector creates a collector. When enabled is false, Record is a no-op
// and Snapshot returns zeroes; the orchestrator still functions.
func NewCollector(enabled bool, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		enabled:      enabled,
		perTechnique: make(map[TechniqueType]*techniqueCounters),
		logger:       logger,
	}
}

// initInstruments lazily creates the otel instruments.
func (c *Collector) initInstruments() {
	c.otelOnce.Do(func() {
		var errs []string

		var err error
		c.execCounter, err = meter.Int64Counter("retrieval_technique_executions_total",
			metric.WithDescription("Number of technique execution attempts by status"),
		)
		if err != nil {
			errs = append(errs, "exec_counter: "+err.Error())
		}

		c.execLatency, err = meter.Float64Histogram("retrieval_technique_duration_seconds",
			metric.WithDescription("Technique execution attempt duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			errs = append(errs, "exec_latency: "+err.Error())
		}

		c.activeExecs, err = meter.Int64UpDownCounter("retrieval_active_executions",
			metric.WithDescription("Number of currently running technique executions"),
		)
		if err != nil {
			errs = append(errs, "active_execs: "+err.Error())
		}

		if len(errs) > 0 {
			c.logger.Error("failed to initialize some retrieval metrics (observability degraded)",
				slog.Int("failed_count", len(errs)),
				slog.Any("errors", errs),
			)
		}
	})
}

// Record registers one execution attempt outcome.
//
// Inputs:
//   - ctx: used only for otel attribute propagation.
//   - t: the technique executed.
//   - success: whether the attempt completed.
//   - d: the attempt's wall duration.
//
// Thread Safety: Safe for concurrent use.
func (c *Collector) Record(ctx context.Context, t TechniqueType, success bool, d time.Duration) {
	if !c.enabled {
		return
	}
	c.initInstruments()

	c.mu.Lock()
	c.total.executions++
	c.total.totalDuration += d
	tc, exists := c.perTechnique[t]
	if !exists {
		tc = &techniqueCounters{}
		c.perTechnique[t] = tc
	}
	tc.executions++
	tc.totalDuration += d
	if success {
		c.total.successes++
		tc.successes++
	} else {
		c.total.failures++
		tc.failures++
	}
	c.mu.Unlock()

	status := "failure"
	if success {
		status = "success"
	}
	if c.execCounter != nil {
		c.execCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("technique", string(t)),
			attribute.String("status", status),
		))
	}
	if c.execLatency != nil {
		c.execLatency.Record(ctx, d.Seconds(), metric.WithAttributes(
			attribute.String("technique", string(t)),
		))
	}
}

// AddActive adjusts the active-execution gauge by delta.
func (c *Collector) AddActive(ctx context.Context, delta int64) {
	if !c.enabled {
		return
	}
	c.initInstruments()
	if c.activeExecs != nil {
		c.activeExecs.Add(ctx, delta)
	}
}

// Snapshot returns a copy of all counters.
//
// Thread Safety: Safe for concurrent use.
func (c *Collector) Snapshot() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := Metrics{
		TotalExecutions:      c.total.executions,
		SuccessfulExecutions: c.total.successes,
		FailedExecutions:     c.total.failures,
		AverageExecutionTime: average(c.total.totalDuration, c.total.executions),
		PerTechnique:         make(map[TechniqueType]TechniqueMetrics, len(c.perTechnique)),
	}
	for t, tc := range c.perTechnique {
		out.PerTechnique[t] = TechniqueMetrics{
			Executions:           tc.executions,
			Successes:            tc.successes,
			Failures:             tc.failures,
			AverageExecutionTime: average(tc.totalDuration, tc.executions),
		}
	}
	return out
}

// Reset zeroes all global and per-technique counters. Registrations and
// circuit breaker state are untouched; the otel instruments, being
// monotonic by contract, are left to the exporter.
//
// Thread Safety: Safe for concurrent use.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = techniqueCounters{}
	c.perTechnique = make(map[TechniqueType]*techniqueCounters)
}

func average(total time.Duration, count int64) time.Duration {
	if count == 0 {
		return 0
	}
	return total / time.Duration(count)
}
