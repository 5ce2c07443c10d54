// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMaxConcurrent = 5
	defaultTimeout       = 30 * time.Second
	defaultMaxRetries    = 2
	defaultRetryDelay    = time.Second
)

// Config is the orchestrator configuration surface.
type Config struct {
	// MaxConcurrentExecutions bounds simultaneously running techniques
	// across all batches. Default: 5.
	MaxConcurrentExecutions int `yaml:"max_concurrent_executions"`

	// DefaultTimeout is the per-invocation ceiling when the config carries
	// no override. Default: 30s.
	DefaultTimeout time.Duration `yaml:"default_timeout"`

	// EnableRetries turns transparent retry on failed attempts on or off.
	// On in DefaultConfig; false is honored, not defaulted away.
	EnableRetries bool `yaml:"enable_retries"`

	// MaxRetries is the number of retries after the first attempt.
	// Default: 2 (three attempts total).
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the base of the exponential backoff between attempts.
	// Default: 1s.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// EnableMetrics turns the in-memory and otel metrics on or off.
	// On in DefaultConfig.
	EnableMetrics bool `yaml:"enable_metrics"`

	// EnableLogging turns orchestrator lifecycle logging on or off.
	// On in DefaultConfig.
	EnableLogging bool `yaml:"enable_logging"`

	// Breaker configures the per-technique circuit breakers.
	Breaker BreakerConfig `yaml:"circuit_breaker"`

	// PriorityWeights orders batch launches; higher weight launches first.
	// Missing entries fall back to the built-in weights.
	PriorityWeights map[Priority]int `yaml:"priority_weights"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentExecutions: defaultMaxConcurrent,
		DefaultTimeout:          defaultTimeout,
		EnableRetries:           true,
		MaxRetries:              defaultMaxRetries,
		RetryDelay:              defaultRetryDelay,
		EnableMetrics:           true,
		EnableLogging:           true,
		Breaker:                 DefaultBreakerConfig(),
		PriorityWeights:         defaultPriorityWeights(),
	}
}

func defaultPriorityWeights() map[Priority]int {
	return map[Priority]int{
		PriorityCritical: 4,
		PriorityHigh:     3,
		PriorityMedium:   2,
		PriorityLow:      1,
		PriorityUnset:    2,
	}
}

// applyDefaults fills numeric zero fields. Boolean toggles are taken as
// given: false is a meaningful setting, so callers wanting the standard
// behavior start from DefaultConfig and override from there.
func (c *Config) applyDefaults() {
	if c.MaxConcurrentExecutions <= 0 {
		c.MaxConcurrentExecutions = defaultMaxConcurrent
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = defaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	c.Breaker.applyDefaults()
	if c.PriorityWeights == nil {
		c.PriorityWeights = defaultPriorityWeights()
	}
}

// Status is a point-in-time operational view of the orchestrator.
type Status struct {
	RegisteredTechniques int   `json:"registered_techniques"`
	EnabledTechniques    int   `json:"enabled_techniques"`
	ActiveExecutions     int64 `json:"active_executions"`
	QueueDepth           int64 `json:"queue_depth"`
}

// Orchestrator is the facade over the registry, circuit breakers, engine,
// scheduler, and metrics collector.
//
// Description:
//
//	Construct one per process (or per isolated technique set) with New;
//	there is no package-level instance. All methods are safe for concurrent
//	use.
type Orchestrator struct {
	cfg       Config
	logger    *slog.Logger
	registry  *Registry
	breakers  *BreakerBank
	collector *Collector
	engine    *Engine
	scheduler *Scheduler
}

// New creates a fully wired orchestrator.
//
// Inputs:
//   - cfg: configuration; start from DefaultConfig and override. Numeric
//     zero fields take defaults; the boolean toggles (retries, metrics,
//     logging) are honored as given, so a zero Config runs with all three
//     off.
//   - logger: structured logger; nil falls back to slog.Default().
func New(cfg Config, logger *slog.Logger) *Orchestrator {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.EnableLogging {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	registry := NewRegistry()
	breakers := NewBreakerBank(cfg.Breaker, logger)
	collector := NewCollector(cfg.EnableMetrics, logger)
	engine := newEngine(registry, breakers, collector, cfg, logger)
	resolver := NewResolver(registry)
	scheduler := newScheduler(engine, resolver, cfg, logger)

	return &Orchestrator{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		breakers:  breakers,
		collector: collector,
		engine:    engine,
		scheduler: scheduler,
	}
}

// =============================================================================
// Registration
// =============================================================================

// Register adds a technique definition. See Registry.Register.
func (o *Orchestrator) Register(def TechniqueDefinition) error {
	if err := o.registry.Register(def); err != nil {
		return err
	}
	o.logger.Info("technique registered",
		slog.String("technique", string(def.Type)),
		slog.String("name", def.Name))
	return nil
}

// MustRegister registers a definition and panics on error. Startup use only.
func (o *Orchestrator) MustRegister(def TechniqueDefinition) {
	o.registry.MustRegister(def)
}

// Unregister removes a technique and reports whether it was present.
func (o *Orchestrator) Unregister(t TechniqueType) bool {
	return o.registry.Unregister(t)
}

// Get retrieves a copy of the definition for t.
func (o *Orchestrator) Get(t TechniqueType) (TechniqueDefinition, bool) {
	return o.registry.Get(t)
}

// List returns the registered definitions sorted by type.
func (o *Orchestrator) List(enabledOnly bool) []TechniqueDefinition {
	return o.registry.List(enabledOnly)
}

// SetEnabled toggles a technique. Unknown types are a no-op.
func (o *Orchestrator) SetEnabled(t TechniqueType, enabled bool) {
	o.registry.SetEnabled(t, enabled)
	o.logger.Info("technique toggled",
		slog.String("technique", string(t)),
		slog.Bool("enabled", enabled))
}

// SetRateLimit installs a per-technique rate limiter. A nil limiter removes
// the limit.
func (o *Orchestrator) SetRateLimit(t TechniqueType, limiter *rate.Limiter) {
	o.engine.SetRateLimit(t, limiter)
}

// =============================================================================
// Execution
// =============================================================================

// Execute runs one technique to a terminal result. See Engine.Execute.
func (o *Orchestrator) Execute(ctx context.Context, t TechniqueType, cfg ExecutionConfig) (*TechniqueResult, error) {
	return o.engine.Execute(ctx, t, cfg)
}

// ExecuteMultiple runs the techniques in parallel under the concurrency
// limit. See Scheduler.ExecuteMultiple.
func (o *Orchestrator) ExecuteMultiple(ctx context.Context, types []TechniqueType, cfg ExecutionConfig) []TechniqueResult {
	return o.scheduler.ExecuteMultiple(ctx, types, cfg)
}

// ExecuteWithDependencies runs the batch in dependency level order. See
// Scheduler.ExecuteWithDependencies.
func (o *Orchestrator) ExecuteWithDependencies(ctx context.Context, types []TechniqueType, cfg ExecutionConfig) ([]TechniqueResult, error) {
	return o.scheduler.ExecuteWithDependencies(ctx, types, cfg)
}

// =============================================================================
// Observation
// =============================================================================

// Metrics returns a snapshot of the execution counters.
func (o *Orchestrator) Metrics() Metrics {
	return o.collector.Snapshot()
}

// ResetMetrics zeroes the counters. Registrations and breakers are untouched.
func (o *Orchestrator) ResetMetrics() {
	o.collector.Reset()
	o.logger.Info("metrics reset")
}

// BreakerStatus returns a snapshot of every circuit breaker seen so far.
func (o *Orchestrator) BreakerStatus() map[TechniqueType]BreakerSnapshot {
	return o.breakers.Status()
}

// ResetBreaker returns t's circuit breaker to a clean closed state.
func (o *Orchestrator) ResetBreaker(t TechniqueType) {
	o.breakers.Reset(t)
	o.logger.Info("circuit breaker reset", slog.String("technique", string(t)))
}

// ResetAllBreakers clears every circuit breaker.
func (o *Orchestrator) ResetAllBreakers() {
	o.breakers.ResetAll()
	o.logger.Info("all circuit breakers reset")
}

// Status returns the operational counters for the status API.
func (o *Orchestrator) Status() Status {
	return Status{
		RegisteredTechniques: o.registry.Count(),
		EnabledTechniques:    o.registry.EnabledCount(),
		ActiveExecutions:     o.engine.ActiveCount(),
		QueueDepth:           o.scheduler.QueuedCount(),
	}
}
