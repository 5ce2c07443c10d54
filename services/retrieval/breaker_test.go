// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"testing"
	"time"
)

// fakeClock drives the bank's injected time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }
func newFakeClock() *fakeClock               { return &fakeClock{t: time.Unix(1700000000, 0)} }

func newTestBank(clock *fakeClock) *BreakerBank {
	b := NewBreakerBank(BreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     60 * time.Second,
		SuccessThreshold: 2,
	}, nil)
	b.now = clock.now
	return b
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	clock := newFakeClock()
	b := newTestBank(clock)
	tech := TechniqueSemanticSearch

	b.RecordFailure(tech)
	b.RecordFailure(tech)
	if got := b.Check(tech); got != CircuitClosed {
		t.Fatalf("after 2 failures state = %v, want closed", got)
	}

	b.RecordFailure(tech)
	if got := b.Check(tech); got != CircuitOpen {
		t.Fatalf("after 3 failures state = %v, want open", got)
	}
	if b.Allow(tech) {
		t.Error("Allow should be false while open")
	}
}

func TestBreaker_SuccessResetsConsecutiveCount(t *testing.T) {
	clock := newFakeClock()
	b := newTestBank(clock)
	tech := TechniqueKeywordSearch

	b.RecordFailure(tech)
	b.RecordFailure(tech)
	b.RecordSuccess(tech)
	b.RecordFailure(tech)
	b.RecordFailure(tech)

	// Only consecutive failures count; the success zeroed the streak.
	if got := b.Check(tech); got != CircuitClosed {
		t.Errorf("state = %v, want closed", got)
	}
}

func TestBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	clock := newFakeClock()
	b := newTestBank(clock)
	tech := TechniqueHybridSearch

	for i := 0; i < 3; i++ {
		b.RecordFailure(tech)
	}
	if got := b.Check(tech); got != CircuitOpen {
		t.Fatalf("state = %v, want open", got)
	}

	clock.advance(59 * time.Second)
	if got := b.Check(tech); got != CircuitOpen {
		t.Fatalf("before reset timeout state = %v, want open", got)
	}

	clock.advance(time.Second)
	if got := b.Check(tech); got != CircuitHalfOpen {
		t.Fatalf("after reset timeout state = %v, want half-open", got)
	}
	if !b.Allow(tech) {
		t.Error("Allow should be true while half-open")
	}
}

func TestBreaker_HalfOpenClosesAfterSuccesses(t *testing.T) {
	clock := newFakeClock()
	b := newTestBank(clock)
	tech := TechniqueQueryExpansion

	for i := 0; i < 3; i++ {
		b.RecordFailure(tech)
	}
	clock.advance(61 * time.Second)
	if got := b.Check(tech); got != CircuitHalfOpen {
		t.Fatalf("state = %v, want half-open", got)
	}

	b.RecordSuccess(tech)
	if got := b.Check(tech); got != CircuitHalfOpen {
		t.Fatalf("after 1 success state = %v, want half-open", got)
	}
	b.RecordSuccess(tech)
	if got := b.Check(tech); got != CircuitClosed {
		t.Fatalf("after 2 successes state = %v, want closed", got)
	}

	// Fully recovered: failure count starts from zero again.
	b.RecordFailure(tech)
	if got := b.Check(tech); got != CircuitClosed {
		t.Errorf("one failure after recovery reopened the circuit")
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	b := newTestBank(clock)
	tech := TechniqueLLMRerank

	for i := 0; i < 3; i++ {
		b.RecordFailure(tech)
	}
	clock.advance(61 * time.Second)
	b.Check(tech) // transition to half-open
	b.RecordSuccess(tech)
	b.RecordFailure(tech)

	if got := b.Check(tech); got != CircuitOpen {
		t.Fatalf("state = %v, want open after half-open failure", got)
	}

	snap := b.Status()[tech]
	if snap.ConsecutiveSuccesses != 0 {
		t.Errorf("consecutive successes = %d, want 0", snap.ConsecutiveSuccesses)
	}
}

func TestBreaker_IsolationPerTechnique(t *testing.T) {
	clock := newFakeClock()
	b := newTestBank(clock)

	for i := 0; i < 3; i++ {
		b.RecordFailure(TechniqueSemanticSearch)
	}
	if got := b.Check(TechniqueSemanticSearch); got != CircuitOpen {
		t.Fatalf("semantic state = %v, want open", got)
	}
	if got := b.Check(TechniqueKeywordSearch); got != CircuitClosed {
		t.Errorf("keyword state = %v, want closed (isolated)", got)
	}
}

func TestBreaker_Reset(t *testing.T) {
	clock := newFakeClock()
	b := newTestBank(clock)
	tech := TechniqueRecencyBoost

	for i := 0; i < 3; i++ {
		b.RecordFailure(tech)
	}
	b.Reset(tech)
	if got := b.Check(tech); got != CircuitClosed {
		t.Errorf("after Reset state = %v, want closed", got)
	}

	for i := 0; i < 3; i++ {
		b.RecordFailure(tech)
	}
	b.ResetAll()
	if got := b.Check(tech); got != CircuitClosed {
		t.Errorf("after ResetAll state = %v, want closed", got)
	}
}

func TestBreaker_ConfigDefaults(t *testing.T) {
	b := NewBreakerBank(BreakerConfig{}, nil)
	if b.cfg.FailureThreshold != 3 || b.cfg.ResetTimeout != 60*time.Second || b.cfg.SuccessThreshold != 2 {
		t.Errorf("defaults not applied: %+v", b.cfg)
	}
}
