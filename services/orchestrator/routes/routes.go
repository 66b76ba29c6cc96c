// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/AleutianAI/AleutianDebate/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianDebate/services/orchestrator/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies carries everything the routes need.
//
// # Fields
//
//   - Service: Runs debate turns.
//   - Store: Pinged by /ready. Optional.
//   - Gatherer: Source for /metrics. Defaults to prometheus.DefaultGatherer.
//   - Auth: Guards the API routes. Defaults to middleware.NopAuthProvider.
//   - ErrorLocale: Default language of error details ("es" or "en").
//   - TurnTimeout: Per-turn deadline.
type Dependencies struct {
	Service     handlers.ConversationService
	Store       handlers.Pinger
	Gatherer    prometheus.Gatherer
	Auth        middleware.AuthProvider
	ErrorLocale string
	TurnTimeout handlers.TurnTimeout
}

// SetupRoutes registers the debate API on router.
//
// # Description
//
// Registers:
//   - GET  /health, GET /ready, GET /metrics
//   - POST /conversation (unversioned alias)
//   - POST /v1/conversation
//   - GET  /v1/conversation/ws
//   - GET  /v1/conversation/:id
//
// Conversation routes run behind the locale and auth middleware.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.Auth == nil {
		deps.Auth = middleware.NopAuthProvider{}
	}

	router.GET("/health", handlers.HealthCheck)
	if deps.Store != nil {
		router.GET("/ready", handlers.HandleReady(deps.Store))
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	guard := []gin.HandlerFunc{
		middleware.Locale(deps.ErrorLocale),
		middleware.AuthMiddleware(deps.Auth),
	}

	router.POST("/conversation", append(guard, handlers.HandleConversation(deps.Service, deps.TurnTimeout))...)

	v1 := router.Group("/v1", guard...)
	{
		conversation := v1.Group("/conversation")
		conversation.POST("", handlers.HandleConversation(deps.Service, deps.TurnTimeout))
		conversation.GET("/ws", handlers.HandleConversationWebSocket(deps.Service, deps.TurnTimeout))
		conversation.GET("/:id", handlers.HandleGetConversation(deps.Service))
	}
}
