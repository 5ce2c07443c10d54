// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// Circuit State
// =============================================================================

// CircuitState represents the state of one technique's circuit breaker.
type CircuitState int

const (
	// CircuitClosed is normal operation, all invocations pass through.
	CircuitClosed CircuitState = iota
	// CircuitOpen is failing fast, invocations are skipped entirely.
	CircuitOpen
	// CircuitHalfOpen is testing recovery with live invocations.
	CircuitHalfOpen
)

// String returns the human-readable state name.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// =============================================================================
// Configuration
// =============================================================================

// BreakerConfig configures the per-technique circuit breakers.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit. Default: 3.
	FailureThreshold int `yaml:"failure_threshold"`

	// ResetTimeout is how long an open circuit waits before permitting a
	// half-open probe. Default: 60s.
	ResetTimeout time.Duration `yaml:"reset_timeout"`

	// SuccessThreshold is the number of consecutive successes in half-open
	// that closes the circuit. Default: 2.
	SuccessThreshold int `yaml:"success_threshold"`
}

// DefaultBreakerConfig returns the production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     60 * time.Second,
		SuccessThreshold: 2,
	}
}

func (c *BreakerConfig) applyDefaults() {
	defaults := DefaultBreakerConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaults.FailureThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = defaults.ResetTimeout
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = defaults.SuccessThreshold
	}
}

// =============================================================================
// Breaker Bank
// =============================================================================

// BreakerSnapshot is a point-in-time view of one technique's breaker,
// suitable for the operational API.
type BreakerSnapshot struct {
	State                CircuitState `json:"-"`
	StateName            string       `json:"state"`
	FailureCount         int          `json:"failure_count"`
	ConsecutiveSuccesses int          `json:"consecutive_successes"`
	LastFailureTime      time.Time    `json:"last_failure_time,omitzero"`
}

// breakerState is the mutable per-technique record. Guarded by BreakerBank.mu.
type breakerState struct {
	state                CircuitState
	failureCount         int
	consecutiveSuccesses int
	lastFailureTime      time.Time
}

// BreakerBank tracks one circuit breaker per technique type.
//
// Description:
//
//	States are created lazily on first use and live for the process
//	lifetime. Transitions follow the classic three-state machine:
//	closed -> open at FailureThreshold consecutive failures; open ->
//	half-open lazily on read once ResetTimeout has elapsed since the last
//	failure; half-open -> closed after SuccessThreshold consecutive
//	successes; any failure while half-open reopens the circuit.
//
// Thread Safety: Safe for concurrent use. Breaker state is one of the two
// structures shared across concurrent invocations (the other is the metrics
// collector); all read-modify-write paths hold the bank mutex.
type BreakerBank struct {
	mu     sync.Mutex
	cfg    BreakerConfig
	states map[TechniqueType]*breakerState
	logger *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewBreakerBank creates a bank with the given configuration. A nil logger
// falls back to slog.Default().
func NewBreakerBank(cfg BreakerConfig, logger *slog.Logger) *BreakerBank {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &BreakerBank{
		cfg:    cfg,
		states: make(map[TechniqueType]*breakerState),
		logger: logger,
		now:    time.Now,
	}
}

// Check returns the technique's current state, performing the lazy
// open -> half-open transition when the reset timeout has elapsed.
//
// Thread Safety: Safe for concurrent use.
func (b *BreakerBank) Check(t TechniqueType) CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.stateFor(t)
	if st.state == CircuitOpen && b.now().Sub(st.lastFailureTime) >= b.cfg.ResetTimeout {
		st.state = CircuitHalfOpen
		st.consecutiveSuccesses = 0
		b.logger.Info("circuit breaker half-open",
			slog.String("technique", string(t)))
	}
	return st.state
}

// Allow reports whether an invocation of t may proceed.
func (b *BreakerBank) Allow(t TechniqueType) bool {
	return b.Check(t) != CircuitOpen
}

// RecordSuccess records a successful attempt for t.
//
// Thread Safety: Safe for concurrent use.
func (b *BreakerBank) RecordSuccess(t TechniqueType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.stateFor(t)
	switch st.state {
	case CircuitHalfOpen:
		st.consecutiveSuccesses++
		if st.consecutiveSuccesses >= b.cfg.SuccessThreshold {
			st.state = CircuitClosed
			st.failureCount = 0
			st.consecutiveSuccesses = 0
			b.logger.Info("circuit breaker closed",
				slog.String("technique", string(t)))
		}
	case CircuitClosed:
		// The breaker counts consecutive failures only.
		st.failureCount = 0
	}
}

// RecordFailure records a failed attempt for t.
//
// Thread Safety: Safe for concurrent use.
func (b *BreakerBank) RecordFailure(t TechniqueType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.stateFor(t)
	st.failureCount++
	st.lastFailureTime = b.now()

	switch st.state {
	case CircuitHalfOpen:
		st.state = CircuitOpen
		st.consecutiveSuccesses = 0
		b.logger.Warn("circuit breaker reopened",
			slog.String("technique", string(t)),
			slog.Int("failures", st.failureCount))
	case CircuitClosed:
		if st.failureCount >= b.cfg.FailureThreshold {
			st.state = CircuitOpen
			b.logger.Warn("circuit breaker opened",
				slog.String("technique", string(t)),
				slog.Int("failures", st.failureCount),
				slog.Duration("reset_timeout", b.cfg.ResetTimeout))
		}
	}
}

// Reset returns t's breaker to a clean closed state.
//
// Thread Safety: Safe for concurrent use.
func (b *BreakerBank) Reset(t TechniqueType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, t)
}

// ResetAll clears every breaker.
//
// Thread Safety: Safe for concurrent use.
func (b *BreakerBank) ResetAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states = make(map[TechniqueType]*breakerState)
}

// Status returns a snapshot of every breaker the bank has seen.
//
// Thread Safety: Safe for concurrent use.
func (b *BreakerBank) Status() map[TechniqueType]BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[TechniqueType]BreakerSnapshot, len(b.states))
	for t, st := range b.states {
		out[t] = BreakerSnapshot{
			State:                st.state,
			StateName:            st.state.String(),
			FailureCount:         st.failureCount,
			ConsecutiveSuccesses: st.consecutiveSuccesses,
			LastFailureTime:      st.lastFailureTime,
		}
	}
	return out
}

// stateFor returns the record for t, creating it lazily. Caller holds b.mu.
func (b *BreakerBank) stateFor(t TechniqueType) *breakerState {
	st, exists := b.states[t]
	if !exists {
		st = &breakerState{state: CircuitClosed}
		b.states[t] = st
	}
	return st
}
