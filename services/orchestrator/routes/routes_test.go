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
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AleutianAI/AleutianDebate/services/debate"
	"github.com/AleutianAI/AleutianDebate/services/llm"
	"github.com/AleutianAI/AleutianDebate/services/orchestrator/middleware"
	"github.com/AleutianAI/AleutianDebate/services/orchestrator/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

type testPinger struct{ err error }

func (p testPinger) Ping(context.Context) error { return p.err }

func newTestRouter(t *testing.T, auth middleware.AuthProvider) *gin.Engine {
	t.Helper()
	reg := prometheus.NewRegistry()
	registry := llm.NewRegistry()
	registry.Register("dummy", llm.NewDummyClient())
	svc := debate.NewConversationService(debate.NewMemoryStore(), registry, "dummy",
		debate.WithRecorder(observability.NewDebateMetrics(reg)))

	router := gin.New()
	SetupRoutes(router, Dependencies{
		Service:     svc,
		Store:       testPinger{},
		Gatherer:    reg,
		Auth:        auth,
		ErrorLocale: "en",
	})
	return router
}

func do(router http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ============================================================================
// SetupRoutes Tests
// ============================================================================

func TestSetupRoutes_RegistersRoutes(t *testing.T) {
	router := newTestRouter(t, nil)

	expected := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/ready"},
		{"GET", "/metrics"},
		{"POST", "/conversation"},
		{"POST", "/v1/conversation"},
		{"GET", "/v1/conversation/ws"},
		{"GET", "/v1/conversation/:id"},
	}

	routes := router.Routes()
	for _, e := range expected {
		found := false
		for _, r := range routes {
			if r.Method == e.method && r.Path == e.path {
				found = true
				break
			}
		}
		assert.True(t, found, "route %s %s not registered", e.method, e.path)
	}
}

func TestSetupRoutes_ReadyOmittedWithoutStore(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, Dependencies{Service: debate.NewConversationService(debate.NewMemoryStore(), llm.NewRegistry(), "dummy")})

	for _, r := range router.Routes() {
		assert.NotEqual(t, "/ready", r.Path)
	}
}

func TestSetupRoutes_ConversationAliasAndMetrics(t *testing.T) {
	router := newTestRouter(t, nil)

	w := do(router, http.MethodPost, "/conversation", `{"message":"Homework should be abolished"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "[[STANCE:pro]]")

	w = do(router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `debate_turns_total{outcome="accepted",provider="dummy"} 1`)
	assert.Contains(t, w.Body.String(), "debate_conversations_created_total")
}

func TestSetupRoutes_AuthGuardsAPIOnly(t *testing.T) {
	router := newTestRouter(t, middleware.NewAuthProvider([]string{"s3cret"}))

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/metrics", "", nil).Code)

	w := do(router, http.MethodPost, "/v1/conversation", `{"message":"topic"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Missing or invalid API key.")

	w = do(router, http.MethodPost, "/v1/conversation", `{"message":"topic"}`,
		map[string]string{"Authorization": "Bearer s3cret"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestSetupRoutes_DefaultLocaleApplies(t *testing.T) {
	router := newTestRouter(t, nil)

	w := do(router, http.MethodGet, "/v1/conversation/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "The conversation was not found.")

	w = do(router, http.MethodGet, "/v1/conversation/unknown", "", map[string]string{"Accept-Language": "es-ES"})
	assert.Contains(t, w.Body.String(), "Conversación no encontrada.")
}
