// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// =============================================================================
// Wire Types
// =============================================================================

// ExecuteRequest is the body for the batch execution endpoint.
type ExecuteRequest struct {
	Techniques []TechniqueType `json:"techniques" binding:"required,min=1"`
	Config     ExecutionConfig `json:"config"`

	// ResolveDependencies switches the batch to dependency level ordering.
	ResolveDependencies bool `json:"resolve_dependencies,omitempty"`
}

// ResultDTO is the JSON projection of a TechniqueResult; the error field is
// flattened to a string since errors do not marshal.
type ResultDTO struct {
	Technique TechniqueType   `json:"technique"`
	Status    ExecutionStatus `json:"status"`
	Data      any             `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Metadata  ResultMetadata  `json:"metadata"`
}

// TechniqueDTO is the JSON projection of a TechniqueDefinition; the executor
// is elided.
type TechniqueDTO struct {
	Type         TechniqueType    `json:"type"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	Dependencies []TechniqueType  `json:"dependencies"`
	Priority     string           `json:"priority"`
	Enabled      bool             `json:"enabled"`
	Defaults     *ExecutionConfig `json:"defaults,omitempty"`
}

func toResultDTO(r TechniqueResult) ResultDTO {
	dto := ResultDTO{
		Technique: r.Technique,
		Status:    r.Status,
		Data:      r.Data,
		Metadata:  r.Metadata,
	}
	if r.Err != nil {
		dto.Error = r.Err.Error()
	}
	return dto
}

func toTechniqueDTO(def TechniqueDefinition) TechniqueDTO {
	return TechniqueDTO{
		Type:         def.Type,
		Name:         def.Name,
		Description:  def.Description,
		Dependencies: def.Dependencies,
		Priority:     def.Priority.String(),
		Enabled:      def.Enabled,
		Defaults:     def.DefaultConfig,
	}
}

// =============================================================================
// Handlers
// =============================================================================

// HealthCheck responds to liveness probes.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

// HandleStatus reports the orchestrator's operational counters.
func HandleStatus(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Status())
	}
}

// HandleListTechniques lists registered techniques; ?enabled=true restricts
// to enabled ones.
func HandleListTechniques(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		enabledOnly := c.Query("enabled") == "true"
		defs := o.List(enabledOnly)
		out := make([]TechniqueDTO, len(defs))
		for i, def := range defs {
			out[i] = toTechniqueDTO(def)
		}
		c.JSON(http.StatusOK, gin.H{"techniques": out})
	}
}

// HandleSetEnabled toggles one technique on or off.
func HandleSetEnabled(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Enabled *bool `json:"enabled" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		t := TechniqueType(c.Param("type"))
		if _, exists := o.Get(t); !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown technique: " + string(t)})
			return
		}
		o.SetEnabled(t, *req.Enabled)
		c.JSON(http.StatusOK, gin.H{"technique": t, "enabled": *req.Enabled})
	}
}

// HandleExecute runs a batch of techniques and returns one result per
// request entry in request order.
func HandleExecute(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ExecuteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		o.logger.Info("received batch execution request",
			slog.Int("techniques", len(req.Techniques)),
			slog.Bool("resolve_dependencies", req.ResolveDependencies))

		var results []TechniqueResult
		if req.ResolveDependencies {
			var err error
			results, err = o.ExecuteWithDependencies(c.Request.Context(), req.Techniques, req.Config)
			if err != nil {
				var cycle *CycleError
				if errors.As(err, &cycle) {
					c.JSON(http.StatusUnprocessableEntity, gin.H{"error": cycle.Error()})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		} else {
			results = o.ExecuteMultiple(c.Request.Context(), req.Techniques, req.Config)
		}

		out := make([]ResultDTO, len(results))
		for i, r := range results {
			out[i] = toResultDTO(r)
		}
		c.JSON(http.StatusOK, gin.H{"results": out})
	}
}

// HandleMetrics returns the execution counters.
func HandleMetrics(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Metrics())
	}
}

// HandleResetMetrics zeroes the execution counters.
func HandleResetMetrics(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		o.ResetMetrics()
		c.JSON(http.StatusOK, gin.H{"status": "reset"})
	}
}

// HandleBreakerStatus returns every circuit breaker's state.
func HandleBreakerStatus(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"breakers": o.BreakerStatus()})
	}
}

// HandleResetBreaker resets one technique's circuit breaker.
func HandleResetBreaker(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		t := TechniqueType(c.Param("type"))
		if !t.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown technique: " + string(t)})
			return
		}
		o.ResetBreaker(t)
		c.JSON(http.StatusOK, gin.H{"technique": t, "status": "reset"})
	}
}

// HandleResetAllBreakers resets every circuit breaker.
func HandleResetAllBreakers(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		o.ResetAllBreakers()
		c.JSON(http.StatusOK, gin.H{"status": "reset"})
	}
}
