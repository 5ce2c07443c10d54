// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retrieval implements the technique execution orchestrator: a
// registry of independently developed retrieval techniques, an execution
// engine with timeouts and retry, per-technique circuit breaking, and a
// batch scheduler that resolves inter-technique dependencies into
// parallel-safe level groups.
//
// The orchestrator treats every technique purely through the
// TechniqueExecutor contract. How a technique computes its answer (vector
// similarity, BM25, LLM calls) is the technique's business; see the
// techniques subpackage for the built-in executors.
package retrieval

import (
	"context"
	"maps"
	"time"
)

// =============================================================================
// Technique Identity
// =============================================================================

// TechniqueType identifies a retrieval technique. The set is closed; the
// registry rejects types outside it.
type TechniqueType string

const (
	TechniqueSemanticSearch TechniqueType = "semantic_search"
	TechniqueKeywordSearch  TechniqueType = "keyword_search"
	TechniqueHybridSearch   TechniqueType = "hybrid_search"
	TechniqueQueryExpansion TechniqueType = "query_expansion"
	TechniqueLLMRerank      TechniqueType = "llm_rerank"
	TechniqueRecencyBoost   TechniqueType = "recency_boost"
)

// Valid reports whether t is a member of the closed technique set.
func (t TechniqueType) Valid() bool {
	switch t {
	case TechniqueSemanticSearch, TechniqueKeywordSearch, TechniqueHybridSearch,
		TechniqueQueryExpansion, TechniqueLLMRerank, TechniqueRecencyBoost:
		return true
	}
	return false
}

// String returns the wire name of the technique type.
func (t TechniqueType) String() string { return string(t) }

// =============================================================================
// Priority
// =============================================================================

// Priority orders technique invocations when a batch has more work than
// concurrency slots. The zero value means "unset" so that a caller override
// can be distinguished from an omitted field during config merge.
type Priority int

const (
	PriorityUnset Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// String returns the human-readable name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unset"
	}
}

// =============================================================================
// Execution Status
// =============================================================================

// ExecutionStatus is the state of one technique invocation.
//
// Transitions: pending -> queued -> running -> {completed|failed|timeout|
// cancelled}, plus the running -> queued retry edge. Terminal statuses never
// change again.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusQueued    ExecutionStatus = "queued"
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
	StatusTimeout   ExecutionStatus = "timeout"
	StatusCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status will not change further.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout, StatusCancelled:
		return true
	}
	return false
}

// =============================================================================
// Executor Contract
// =============================================================================

// TechniqueExecutor is the capability every registered technique provides.
//
// Description:
//
//	Execute runs the technique against the merged configuration and returns
//	its payload or an error. Implementations should honor ctx cancellation,
//	but the engine does not depend on it: when the per-invocation deadline
//	expires the engine stops waiting and discards any late result.
//
// Thread Safety: Execute may be called concurrently for distinct invocations.
type TechniqueExecutor interface {
	Execute(ctx context.Context, cfg ExecutionConfig) (any, error)
}

// ConfigValidator is an optional capability of a TechniqueExecutor. When
// implemented, the engine invokes Validate with the merged configuration
// before Execute; a false result or an error rejects the invocation with
// ErrInvalidConfiguration and the executor is never run.
type ConfigValidator interface {
	Validate(ctx context.Context, cfg ExecutionConfig) (bool, error)
}

// FuncExecutor adapts plain functions to the TechniqueExecutor contract for
// simple techniques and tests.
//
// Example:
//
//	exec := retrieval.NewFuncExecutor(func(ctx context.Context, cfg retrieval.ExecutionConfig) (any, error) {
//	    return lookup(ctx, cfg.Query)
//	})
type FuncExecutor struct {
	fn       func(context.Context, ExecutionConfig) (any, error)
	validate func(context.Context, ExecutionConfig) (bool, error)
}

// NewFuncExecutor wraps fn as a TechniqueExecutor.
func NewFuncExecutor(fn func(context.Context, ExecutionConfig) (any, error)) *FuncExecutor {
	return &FuncExecutor{fn: fn}
}

// WithValidator attaches a validation function and returns the executor for
// chaining.
func (f *FuncExecutor) WithValidator(v func(context.Context, ExecutionConfig) (bool, error)) *FuncExecutor {
	f.validate = v
	return f
}

// Execute runs the wrapped function.
func (f *FuncExecutor) Execute(ctx context.Context, cfg ExecutionConfig) (any, error) {
	if f.fn == nil {
		return nil, ErrNilExecutor
	}
	return f.fn(ctx, cfg)
}

// Validate runs the wrapped validation function, accepting everything when
// none is set.
func (f *FuncExecutor) Validate(ctx context.Context, cfg ExecutionConfig) (bool, error) {
	if f.validate == nil {
		return true, nil
	}
	return f.validate(ctx, cfg)
}

// =============================================================================
// Technique Definition
// =============================================================================

// TechniqueDefinition describes one registered technique.
//
// Definitions are immutable once registered except Enabled, which is toggled
// through the registry. Dependencies name techniques that must reach a
// terminal state before this one runs in a dependency-aware batch.
type TechniqueDefinition struct {
	Type        TechniqueType
	Name        string
	Description string

	// Executor performs the work. Must not be nil.
	Executor TechniqueExecutor

	// DefaultConfig supplies values for fields the caller leaves unset.
	DefaultConfig *ExecutionConfig

	// Dependencies are other technique types that must complete first.
	// Edges to techniques absent from a given request are ignored for
	// that request.
	Dependencies []TechniqueType

	// Priority defaults to PriorityMedium at registration.
	Priority Priority

	// Enabled is forced to true at registration regardless of the value
	// supplied here; SetEnabled is the only way to disable a technique.
	Enabled bool
}

// =============================================================================
// Execution Config
// =============================================================================

// ExecutionConfig carries the caller-supplied parameters for one invocation.
//
// It has value semantics: the engine deep-copies it during merge and never
// shares one instance mutably across concurrent invocations.
type ExecutionConfig struct {
	// Query is the retrieval query text.
	Query string `json:"query" yaml:"query"`

	// CollectionIDs restricts retrieval to the named collections.
	CollectionIDs []string `json:"collection_ids,omitempty" yaml:"collection_ids" validate:"omitempty,dive,required"`

	// Limit caps the number of results. Zero means technique default.
	Limit int `json:"limit,omitempty" yaml:"limit" validate:"gte=0"`

	// SimilarityThreshold filters results below the given score.
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty" yaml:"similarity_threshold" validate:"gte=0,lte=1"`

	// Timeout overrides the orchestrator's default per-invocation ceiling.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout" validate:"gte=0"`

	// Priority overrides the definition's priority for this invocation.
	Priority Priority `json:"priority,omitempty" yaml:"priority"`

	// Metadata carries free-form technique-specific parameters.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata"`
}

// Clone returns a deep copy of the config.
func (c ExecutionConfig) Clone() ExecutionConfig {
	out := c
	if c.CollectionIDs != nil {
		out.CollectionIDs = append([]string(nil), c.CollectionIDs...)
	}
	if c.Metadata != nil {
		out.Metadata = maps.Clone(c.Metadata)
	}
	return out
}

// MergeConfig overlays the caller config on top of the definition defaults.
//
// Description:
//
//	Fields explicitly set by the caller win; zero-valued caller fields fall
//	back to the defaults. Metadata maps merge key-wise with caller
//	precedence. Both inputs are left untouched.
func MergeConfig(defaults *ExecutionConfig, override ExecutionConfig) ExecutionConfig {
	if defaults == nil {
		return override.Clone()
	}

	merged := defaults.Clone()
	if override.Query != "" {
		merged.Query = override.Query
	}
	if override.CollectionIDs != nil {
		merged.CollectionIDs = append([]string(nil), override.CollectionIDs...)
	}
	if override.Limit != 0 {
		merged.Limit = override.Limit
	}
	if override.SimilarityThreshold != 0 {
		merged.SimilarityThreshold = override.SimilarityThreshold
	}
	if override.Timeout != 0 {
		merged.Timeout = override.Timeout
	}
	if override.Priority != PriorityUnset {
		merged.Priority = override.Priority
	}
	if override.Metadata != nil {
		if merged.Metadata == nil {
			merged.Metadata = make(map[string]any, len(override.Metadata))
		}
		maps.Copy(merged.Metadata, override.Metadata)
	}
	return merged
}

// =============================================================================
// Queue Item
// =============================================================================

// QueueItem is the engine's bookkeeping record for one invocation attempt
// chain. It is owned exclusively by the invocation that created it and is
// discarded once the result is delivered; it is never persisted.
type QueueItem struct {
	ID        string
	Technique TechniqueType
	Config    ExecutionConfig
	Priority  Priority
	Status    ExecutionStatus

	QueuedAt    time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	RetryCount int
	MaxRetries int

	Result *TechniqueResult
}

// =============================================================================
// Technique Result
// =============================================================================

// ResultMetadata records how an invocation ran.
type ResultMetadata struct {
	// ExecutionTime is the wall time across all attempts.
	ExecutionTime time.Duration `json:"execution_time"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	// Attempts counts executor invocations, including retries. Zero when
	// the executor was never run (cancelled results).
	Attempts int `json:"attempts"`

	// ConfigUsed is the merged configuration the final attempt saw.
	ConfigUsed ExecutionConfig `json:"config_used"`
}

// TechniqueResult is the terminal outcome of one invocation. Immutable once
// produced.
//
// Exactly one of Data and Err is meaningful: Data is set only for
// StatusCompleted, Err only for failed/timeout/cancelled.
type TechniqueResult struct {
	Technique TechniqueType   `json:"technique"`
	Status    ExecutionStatus `json:"status"`
	Data      any             `json:"data,omitempty"`
	Err       error           `json:"-"`
	Metadata  ResultMetadata  `json:"metadata"`
}

// Completed reports whether the invocation produced data.
func (r *TechniqueResult) Completed() bool {
	return r != nil && r.Status == StatusCompleted
}
