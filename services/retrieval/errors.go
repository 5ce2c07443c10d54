// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the orchestrator.
//
// The first group are admission errors: they are detected before a
// technique's executor is invoked and are returned directly from the
// single-execution path. The batch paths never return them; there they are
// converted into synthesized terminal results.
var (
	// ErrDuplicateTechnique indicates a registration for a type that is
	// already registered.
	ErrDuplicateTechnique = errors.New("technique already registered")

	// ErrNotRegistered indicates the requested technique type is unknown.
	ErrNotRegistered = errors.New("technique not registered")

	// ErrDisabled indicates the technique is registered but disabled.
	ErrDisabled = errors.New("technique disabled")

	// ErrInvalidConfiguration indicates the merged configuration was
	// rejected before execution.
	ErrInvalidConfiguration = errors.New("invalid technique configuration")

	// ErrUnknownTechniqueType indicates a type outside the closed enum.
	ErrUnknownTechniqueType = errors.New("unknown technique type")

	// ErrNilExecutor indicates a definition without an executor.
	ErrNilExecutor = errors.New("technique executor must not be nil")
)

// Execution errors. These are surfaced inside a terminal TechniqueResult,
// never returned as call errors from the batch paths.
var (
	// ErrTimeout indicates the invocation exceeded its deadline on every
	// permitted attempt.
	ErrTimeout = errors.New("technique execution timed out")

	// ErrCircuitOpen indicates the invocation was skipped because the
	// technique's circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrCircularDependency indicates the requested technique set contains
	// a dependency cycle.
	ErrCircularDependency = errors.New("circular technique dependency")

	// ErrExecutorPanic indicates the executor panicked; the panic was
	// recovered and confined to its own invocation.
	ErrExecutorPanic = errors.New("technique executor panicked")
)

// ExecutionError wraps a failure produced by a technique's own executor.
type ExecutionError struct {
	Technique TechniqueType
	Err       error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("technique %s: %v", e.Technique, e.Err)
}

// Unwrap returns the executor's underlying error.
func (e *ExecutionError) Unwrap() error { return e.Err }

// NewExecutionError wraps err for the given technique.
func NewExecutionError(technique TechniqueType, err error) *ExecutionError {
	return &ExecutionError{Technique: technique, Err: err}
}

// CycleError reports a dependency cycle, naming the path that closes it.
type CycleError struct {
	// Path lists the techniques along the cycle; the last entry repeats
	// the first.
	Path []TechniqueType
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	names := make([]string, len(e.Path))
	for i, t := range e.Path {
		names[i] = string(t)
	}
	return fmt.Sprintf("%v: %s", ErrCircularDependency, strings.Join(names, " -> "))
}

// Unwrap makes the error match ErrCircularDependency via errors.Is.
func (e *CycleError) Unwrap() error { return ErrCircularDependency }

// NewCycleError builds a CycleError from the offending path.
func NewCycleError(path []TechniqueType) *CycleError {
	return &CycleError{Path: path}
}
