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
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Scheduler fans technique batches out across a bounded worker pool and
// stitches dependency-aware batches into level-ordered waves.
//
// Thread Safety: Safe for concurrent use; each batch owns its result slice.
type Scheduler struct {
	engine   *Engine
	resolver *Resolver
	cfg      Config
	logger   *slog.Logger

	// slots is a counting semaphore bounding concurrent executions across
	// all batches sharing this scheduler.
	slots chan struct{}

	queued atomic.Int64
}

func newScheduler(engine *Engine, resolver *Resolver, cfg Config, logger *slog.Logger) *Scheduler {
	size := cfg.MaxConcurrentExecutions
	if size <= 0 {
		size = defaultMaxConcurrent
	}
	return &Scheduler{
		engine:   engine,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
		slots:    make(chan struct{}, size),
	}
}

// QueuedCount returns the number of batch members waiting for a slot.
func (s *Scheduler) QueuedCount() int64 {
	return s.queued.Load()
}

// ExecuteMultiple runs the given techniques in parallel under the
// concurrency limit.
//
// Description:
//
//	Every requested technique yields exactly one result, at the same index
//	as its request. Admission problems become synthesized terminal results
//	instead of errors: unregistered and disabled techniques (and those
//	behind an open circuit) come back cancelled, rejected configurations
//	come back failed. One technique failing, timing out, or panicking never
//	disturbs its siblings. Launch order follows priority weights, but
//	completion order is unconstrained; only the result slice order is
//	guaranteed.
//
// Inputs:
//   - ctx: cancellation for the whole batch.
//   - types: the techniques to run; duplicates run independently.
//   - cfg: shared caller configuration, merged per technique over its
//     registered defaults.
//
// Outputs:
//   - []TechniqueResult: len(types) results in request order.
func (s *Scheduler) ExecuteMultiple(ctx context.Context, types []TechniqueType, cfg ExecutionConfig) []TechniqueResult {
	ctx, span := tracer.Start(ctx, "retrieval.ExecuteMultiple",
		trace.WithAttributes(attribute.Int("batch_size", len(types))),
	)
	defer span.End()

	if len(types) == 0 {
		return []TechniqueResult{}
	}

	results := make([]TechniqueResult, len(types))

	var wg sync.WaitGroup
	for _, idx := range s.launchOrder(types, cfg) {
		wg.Add(1)
		s.queued.Add(1)

		go func(idx int, t TechniqueType) {
			defer wg.Done()
			defer func() {
				// Engine recovers executor panics; this guards the
				// scheduling path itself so a batch always completes.
				if r := recover(); r != nil {
					s.logger.Error("panic while scheduling technique",
						slog.String("technique", string(t)),
						slog.Any("panic", r))
					results[idx] = s.synthesize(t, StatusFailed,
						NewExecutionError(t, fmt.Errorf("%w: %v", ErrExecutorPanic, r)), cfg)
				}
			}()

			select {
			case s.slots <- struct{}{}:
				s.queued.Add(-1)
				defer func() { <-s.slots }()
			case <-ctx.Done():
				s.queued.Add(-1)
				results[idx] = s.synthesize(t, StatusCancelled, ctx.Err(), cfg)
				return
			}

			results[idx] = s.runOne(ctx, t, cfg)
		}(idx, types[idx])
	}
	wg.Wait()

	return results
}

// ExecuteWithDependencies runs the batch in dependency level order.
//
// Description:
//
//	Resolves the requested set into level groups, runs each group as a full
//	parallel batch, and starts a group only after every member of the
//	previous one reached a terminal state. A failed dependency does not
//	cancel its dependents; they run and may succeed on their own.
//
// Outputs:
//   - []TechniqueResult: len(types) results in request order; nil on error.
//   - error: a *CycleError when the dependency graph is cyclic. Resolution
//     happens before any execution, so on error nothing has run.
func (s *Scheduler) ExecuteWithDependencies(ctx context.Context, types []TechniqueType, cfg ExecutionConfig) ([]TechniqueResult, error) {
	ctx, span := tracer.Start(ctx, "retrieval.ExecuteWithDependencies",
		trace.WithAttributes(attribute.Int("batch_size", len(types))),
	)
	defer span.End()

	if len(types) == 0 {
		return []TechniqueResult{}, nil
	}

	groups, err := s.resolver.Resolve(types)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("levels", len(groups)))

	byType := make(map[TechniqueType]TechniqueResult, len(types))
	for level, group := range groups {
		s.logger.Debug("executing dependency level",
			slog.Int("level", level),
			slog.Int("techniques", len(group)))
		for i, res := range s.ExecuteMultiple(ctx, group, cfg) {
			byType[group[i]] = res
		}
	}

	// Stitch back into request order; duplicate requests share the result
	// of the single execution.
	out := make([]TechniqueResult, len(types))
	for i, t := range types {
		out[i] = byType[t]
	}
	return out, nil
}

// runOne invokes the engine and converts admission errors into synthesized
// terminal results so batch members never throw.
func (s *Scheduler) runOne(ctx context.Context, t TechniqueType, cfg ExecutionConfig) TechniqueResult {
	res, err := s.engine.Execute(ctx, t, cfg)
	if err == nil {
		return *res
	}

	status := StatusCancelled
	if errors.Is(err, ErrInvalidConfiguration) {
		status = StatusFailed
	}
	s.logger.Warn("technique not admitted to batch",
		slog.String("technique", string(t)),
		slog.String("status", string(status)),
		slog.String("error", err.Error()))
	return s.synthesize(t, status, err, cfg)
}

// synthesize builds a terminal result for a technique that never executed.
func (s *Scheduler) synthesize(t TechniqueType, status ExecutionStatus, err error, cfg ExecutionConfig) TechniqueResult {
	now := time.Now()
	return TechniqueResult{
		Technique: t,
		Status:    status,
		Err:       err,
		Metadata: ResultMetadata{
			StartedAt:   now,
			CompletedAt: now,
			Attempts:    0,
			ConfigUsed:  cfg,
		},
	}
}

// launchOrder returns the request indexes sorted by descending priority
// weight, stable over the original order.
func (s *Scheduler) launchOrder(types []TechniqueType, cfg ExecutionConfig) []int {
	order := make([]int, len(types))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.weightOf(types[order[a]], cfg) > s.weightOf(types[order[b]], cfg)
	})
	return order
}

func (s *Scheduler) weightOf(t TechniqueType, cfg ExecutionConfig) int {
	p := cfg.Priority
	if p == PriorityUnset {
		if def, ok := s.engine.registry.Get(t); ok {
			p = def.Priority
		}
	}
	if w, ok := s.cfg.PriorityWeights[p]; ok {
		return w
	}
	return defaultPriorityWeights()[p]
}
