// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/seabird-labs/cormorant/pkg/validation"
)

var tracer = otel.Tracer("cormorant.retrieval")

// maxRetryBackoff caps the exponential inter-retry delay.
const maxRetryBackoff = 30 * time.Second

// retryJitter is the ± fraction of randomness applied to each backoff.
const retryJitter = 0.2

// Engine runs single technique invocations: admission checks, config merge,
// timeout enforcement, retry with backoff, and breaker/metrics bookkeeping.
//
// Thread Safety: Safe for concurrent use; every invocation owns its
// QueueItem exclusively.
type Engine struct {
	registry *Registry
	breakers *BreakerBank
	metrics  *Collector
	cfg      Config
	logger   *slog.Logger

	limiterMu sync.Mutex
	limiters  map[TechniqueType]*rate.Limiter

	active atomic.Int64
}

func newEngine(registry *Registry, breakers *BreakerBank, metrics *Collector, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		registry: registry,
		breakers: breakers,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
		limiters: make(map[TechniqueType]*rate.Limiter),
	}
}

// SetRateLimit installs a per-technique rate limiter consulted before every
// attempt. A nil limiter removes the limit.
//
// Thread Safety: Safe for concurrent use.
func (e *Engine) SetRateLimit(t TechniqueType, limiter *rate.Limiter) {
	e.limiterMu.Lock()
	defer e.limiterMu.Unlock()
	if limiter == nil {
		delete(e.limiters, t)
		return
	}
	e.limiters[t] = limiter
}

// ActiveCount returns the number of attempts currently executing.
func (e *Engine) ActiveCount() int64 {
	return e.active.Load()
}

// Execute runs one technique invocation to a terminal result.
//
// Description:
//
//	Admission problems (unknown or disabled technique, rejected
//	configuration) are returned as errors and the executor is never run.
//	Execution problems (failure, timeout, open circuit) are never returned
//	as errors; they are encoded in the terminal result. Retries are
//	transparent: only the final attempt's outcome is returned, but every
//	attempt independently feeds metrics and the circuit breaker.
//
// Inputs:
//   - ctx: cancellation for the whole invocation including backoff waits.
//   - t: the technique to run.
//   - cfg: caller configuration, merged over the definition defaults.
//
// Outputs:
//   - *TechniqueResult: the terminal result; nil only when err is non-nil.
//   - error: ErrNotRegistered, ErrDisabled, or ErrInvalidConfiguration.
func (e *Engine) Execute(ctx context.Context, t TechniqueType, cfg ExecutionConfig) (*TechniqueResult, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Execute",
		trace.WithAttributes(attribute.String("technique", string(t))),
	)
	defer span.End()

	def, exists := e.registry.Get(t)
	if !exists {
		span.SetStatus(codes.Error, "not registered")
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, t)
	}
	if !def.Enabled {
		span.SetStatus(codes.Error, "disabled")
		return nil, fmt.Errorf("%w: %s", ErrDisabled, t)
	}

	merged := MergeConfig(def.DefaultConfig, cfg)
	if err := validation.Struct(merged); err != nil {
		span.SetStatus(codes.Error, "invalid configuration")
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if v, ok := def.Executor.(ConfigValidator); ok {
		valid, err := v.Validate(ctx, merged)
		if err != nil {
			span.SetStatus(codes.Error, "validator error")
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
		}
		if !valid {
			span.SetStatus(codes.Error, "validator rejected")
			return nil, fmt.Errorf("%w: rejected by %s validator", ErrInvalidConfiguration, t)
		}
	}

	item := &QueueItem{
		ID:         uuid.NewString(),
		Technique:  t,
		Config:     merged,
		Priority:   effectivePriority(def, merged),
		Status:     StatusQueued,
		QueuedAt:   time.Now(),
		MaxRetries: e.maxRetries(),
	}
	span.SetAttributes(attribute.String("invocation_id", item.ID))

	result := e.runToTerminal(ctx, span, def, item)
	item.Result = result
	return result, nil
}

// runToTerminal drives the attempt/retry loop until a terminal status.
func (e *Engine) runToTerminal(ctx context.Context, span trace.Span, def TechniqueDefinition, item *QueueItem) *TechniqueResult {
	timeout := item.Config.Timeout
	if timeout <= 0 {
		timeout = e.cfg.DefaultTimeout
	}

	start := time.Now()
	item.StartedAt = start
	attempts := 0

	for {
		// An open circuit skips execution entirely, whether discovered on
		// admission or between retries; no retry is consumed.
		if !e.breakers.Allow(item.Technique) {
			span.SetStatus(codes.Error, "circuit open")
			e.logger.Warn("technique skipped, circuit open",
				slog.String("technique", string(item.Technique)),
				slog.String("invocation_id", item.ID))
			return e.finalize(item, StatusCancelled, nil,
				fmt.Errorf("%w: %s", ErrCircuitOpen, item.Technique), start, attempts)
		}

		if err := e.waitRateLimit(ctx, item.Technique); err != nil {
			return e.finalize(item, StatusCancelled, nil, err, start, attempts)
		}

		item.Status = StatusRunning
		attempts++
		attemptStart := time.Now()
		e.active.Add(1)
		e.metrics.AddActive(ctx, 1)

		data, err := e.runAttempt(ctx, def, item.Config, timeout)

		e.active.Add(-1)
		e.metrics.AddActive(ctx, -1)
		attemptDuration := time.Since(attemptStart)

		e.metrics.Record(ctx, item.Technique, err == nil, attemptDuration)
		if err == nil {
			e.breakers.RecordSuccess(item.Technique)
			span.SetStatus(codes.Ok, "")
			e.logger.Debug("technique completed",
				slog.String("technique", string(item.Technique)),
				slog.String("invocation_id", item.ID),
				slog.Int("attempt", item.RetryCount+1),
				slog.Duration("duration", attemptDuration))
			return e.finalize(item, StatusCompleted, data, nil, start, attempts)
		}

		e.breakers.RecordFailure(item.Technique)
		span.AddEvent("attempt_failed", trace.WithAttributes(
			attribute.Int("attempt", item.RetryCount+1),
			attribute.String("error", err.Error()),
		))

		// Parent cancellation is not retryable.
		if errors.Is(err, context.Canceled) {
			span.SetStatus(codes.Error, "cancelled")
			return e.finalize(item, StatusCancelled, nil, err, start, attempts)
		}

		if e.cfg.EnableRetries && item.RetryCount < item.MaxRetries {
			item.RetryCount++
			item.Status = StatusQueued
			delay := e.backoff(item.RetryCount)
			e.logger.Warn("technique attempt failed, retrying",
				slog.String("technique", string(item.Technique)),
				slog.String("invocation_id", item.ID),
				slog.Int("retry", item.RetryCount),
				slog.Int("max_retries", item.MaxRetries),
				slog.Duration("backoff", delay),
				slog.String("error", err.Error()))

			select {
			case <-ctx.Done():
				span.SetStatus(codes.Error, "cancelled during backoff")
				return e.finalize(item, StatusCancelled, nil, ctx.Err(), start, attempts)
			case <-time.After(delay):
			}
			continue
		}

		status := StatusFailed
		if errors.Is(err, ErrTimeout) {
			status = StatusTimeout
		} else {
			err = NewExecutionError(item.Technique, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(status))
		e.logger.Error("technique failed",
			slog.String("technique", string(item.Technique)),
			slog.String("invocation_id", item.ID),
			slog.String("status", string(status)),
			slog.Int("attempts", item.RetryCount+1),
			slog.String("error", err.Error()))
		return e.finalize(item, status, nil, err, start, attempts)
	}
}

// runAttempt executes one attempt under the per-invocation deadline.
//
// The executor runs in its own goroutine writing to a buffered channel:
// when the deadline fires the engine stops waiting and the goroutine is
// abandoned, not interrupted. A context-aware executor may observe the
// cancelled attempt context and stop early; a late result from one that
// does not is discarded. Panics are recovered and confined to the attempt.
func (e *Engine) runAttempt(ctx context.Context, def TechniqueDefinition, cfg ExecutionConfig, timeout time.Duration) (any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		data any
		err  error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("%w: %v", ErrExecutorPanic, r)}
			}
		}()
		data, err := def.Executor.Execute(attemptCtx, cfg)
		ch <- outcome{data: data, err: err}
	}()

	select {
	case out := <-ch:
		return out.data, out.err
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}

// finalize stamps the item and builds the immutable terminal result.
func (e *Engine) finalize(item *QueueItem, status ExecutionStatus, data any, err error, start time.Time, attempts int) *TechniqueResult {
	now := time.Now()
	item.Status = status
	item.CompletedAt = now

	return &TechniqueResult{
		Technique: item.Technique,
		Status:    status,
		Data:      data,
		Err:       err,
		Metadata: ResultMetadata{
			ExecutionTime: now.Sub(start),
			StartedAt:     start,
			CompletedAt:   now,
			Attempts:      attempts,
			ConfigUsed:    item.Config,
		},
	}
}

// backoff returns the delay before the given retry (1-based), exponential
// with jitter and capped.
func (e *Engine) backoff(retry int) time.Duration {
	base := e.cfg.RetryDelay
	if base <= 0 {
		base = time.Second
	}
	delay := base * time.Duration(1<<(retry-1))
	if delay > maxRetryBackoff {
		delay = maxRetryBackoff
	}

	jitterRange := float64(delay) * retryJitter
	jitter := (rand.Float64()*2 - 1) * jitterRange
	delay = time.Duration(float64(delay) + jitter)
	if delay < 0 {
		delay = base
	}
	return delay
}

func (e *Engine) maxRetries() int {
	if !e.cfg.EnableRetries {
		return 0
	}
	return e.cfg.MaxRetries
}

func (e *Engine) waitRateLimit(ctx context.Context, t TechniqueType) error {
	e.limiterMu.Lock()
	limiter := e.limiters[t]
	e.limiterMu.Unlock()
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// effectivePriority applies the config override on top of the definition.
func effectivePriority(def TechniqueDefinition, cfg ExecutionConfig) Priority {
	if cfg.Priority != PriorityUnset {
		return cfg.Priority
	}
	return def.Priority
}
