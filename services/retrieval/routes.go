// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import "github.com/gin-gonic/gin"

// SetupRoutes registers the operational API on the given router.
func SetupRoutes(router *gin.Engine, o *Orchestrator) {
	router.GET("/health", HealthCheck)

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.GET("/status", HandleStatus(o))
		v1.POST("/execute", HandleExecute(o))

		techniques := v1.Group("/techniques")
		{
			techniques.GET("", HandleListTechniques(o))
			techniques.PUT("/:type/enabled", HandleSetEnabled(o))
		}

		metrics := v1.Group("/metrics")
		{
			metrics.GET("", HandleMetrics(o))
			metrics.DELETE("", HandleResetMetrics(o))
		}

		breakers := v1.Group("/circuit-breakers")
		{
			breakers.GET("", HandleBreakerStatus(o))
			breakers.DELETE("", HandleResetAllBreakers(o))
			breakers.DELETE("/:type", HandleResetBreaker(o))
		}
	}
}
