// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5, cfg.MaxConcurrentExecutions)
	assert.Equal(t, 30*time.Second, cfg.DefaultTimeout)
	assert.True(t, cfg.EnableRetries)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.True(t, cfg.EnableMetrics)
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryDelay = 2 * time.Millisecond
	cfg.EnableLogging = false
	o := New(cfg, nil)

	require.NoError(t, o.Register(TechniqueDefinition{
		Type:     TechniqueSemanticSearch,
		Name:     "Semantic",
		Executor: echoExecutor("docs"),
	}))
	require.NoError(t, o.Register(TechniqueDefinition{
		Type:         TechniqueLLMRerank,
		Name:         "Rerank",
		Executor:     echoExecutor("reranked"),
		Dependencies: []TechniqueType{TechniqueSemanticSearch},
	}))

	res, err := o.Execute(context.Background(), TechniqueSemanticSearch, ExecutionConfig{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)

	batch := o.ExecuteMultiple(context.Background(),
		[]TechniqueType{TechniqueSemanticSearch, TechniqueLLMRerank}, ExecutionConfig{Query: "q"})
	require.Len(t, batch, 2)

	ordered, err := o.ExecuteWithDependencies(context.Background(),
		[]TechniqueType{TechniqueLLMRerank, TechniqueSemanticSearch}, ExecutionConfig{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, TechniqueLLMRerank, ordered[0].Technique)

	metrics := o.Metrics()
	assert.Equal(t, int64(5), metrics.TotalExecutions)
	assert.Equal(t, int64(5), metrics.SuccessfulExecutions)

	o.ResetMetrics()
	assert.Zero(t, o.Metrics().TotalExecutions)

	status := o.Status()
	assert.Equal(t, 2, status.RegisteredTechniques)
	assert.Equal(t, 2, status.EnabledTechniques)
	assert.Zero(t, status.ActiveExecutions)
	assert.Zero(t, status.QueueDepth)
}

func TestOrchestrator_BreakerLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableRetries = false
	cfg.EnableLogging = false
	o := New(cfg, nil)

	o.MustRegister(TechniqueDefinition{
		Type: TechniqueKeywordSearch,
		Executor: NewFuncExecutor(func(context.Context, ExecutionConfig) (any, error) {
			return nil, assert.AnError
		}),
	})

	for i := 0; i < 3; i++ {
		res, err := o.Execute(context.Background(), TechniqueKeywordSearch, ExecutionConfig{Query: "q"})
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, res.Status)
	}

	snap := o.BreakerStatus()[TechniqueKeywordSearch]
	assert.Equal(t, CircuitOpen, snap.State)
	assert.Equal(t, "open", snap.StateName)

	res, err := o.Execute(context.Background(), TechniqueKeywordSearch, ExecutionConfig{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, res.Status)
	assert.ErrorIs(t, res.Err, ErrCircuitOpen)

	o.ResetBreaker(TechniqueKeywordSearch)
	res, err = o.Execute(context.Background(), TechniqueKeywordSearch, ExecutionConfig{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status, "after reset the executor runs again")

	o.ResetAllBreakers()
	assert.Empty(t, o.BreakerStatus())
}

func TestOrchestrator_MetricsCountRetries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryDelay = 2 * time.Millisecond
	cfg.EnableLogging = false
	o := New(cfg, nil)

	exec := &countingExecutor{failures: 2}
	o.MustRegister(TechniqueDefinition{Type: TechniqueSemanticSearch, Executor: exec})

	res, err := o.Execute(context.Background(), TechniqueSemanticSearch, ExecutionConfig{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)

	// Every attempt is recorded, not just the caller-visible outcome.
	m := o.Metrics()
	assert.Equal(t, int64(3), m.TotalExecutions)
	assert.Equal(t, int64(1), m.SuccessfulExecutions)
	assert.Equal(t, int64(2), m.FailedExecutions)
}
