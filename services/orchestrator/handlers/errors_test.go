// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/AleutianAI/AleutianDebate/services/debate"
	"github.com/AleutianAI/AleutianDebate/services/llm"
	"github.com/stretchr/testify/assert"
)

func TestTranslateError_StatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{debate.ErrConversationNotFound, http.StatusNotFound, "conversation_not_found"},
		{fmt.Errorf("create: %w", debate.ErrInvalidStance), http.StatusBadRequest, "invalid_stance"},
		{debate.ErrUnsupportedProvider, http.StatusBadRequest, "unsupported_provider"},
		{debate.ErrEmptyMessage, http.StatusBadRequest, "invalid_request"},
		{fmt.Errorf("%w: bad json", ErrInvalidRequest), http.StatusBadRequest, "invalid_request"},
		{llm.NewProviderError("openai", llm.KindAuth, ""), http.StatusUnauthorized, "upstream_auth"},
		{llm.NewProviderError("openai", llm.KindPermission, ""), http.StatusForbidden, "upstream_permission"},
		{llm.NewProviderError("openai", llm.KindBadRequest, ""), http.StatusBadRequest, "upstream_bad_request"},
		{llm.NewProviderError("openai", llm.KindRateLimited, ""), http.StatusTooManyRequests, "upstream_rate_limited"},
		{llm.NewProviderError("openai", llm.KindTimeout, ""), http.StatusGatewayTimeout, "upstream_timeout"},
		{llm.NewProviderError("openai", llm.KindNetwork, ""), http.StatusBadGateway, "upstream_network"},
		{llm.NewProviderError("openai", llm.KindUnavailable, ""), http.StatusServiceUnavailable, "upstream_unavailable"},
		{llm.NewProviderError("openai", llm.KindGeneric, ""), http.StatusInternalServerError, "upstream_error"},
		{fmt.Errorf("attempt 1: %w", llm.NewProviderError("gemini", llm.KindTimeout, "")), http.StatusGatewayTimeout, "upstream_timeout"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		status, body := TranslateError(tt.err, "en")
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, body.Code, tt.err.Error())
		assert.NotEmpty(t, body.Detail)
	}
}

func TestTranslateError_Locale(t *testing.T) {
	err := llm.NewProviderError("openai", llm.KindNetwork, "")

	_, es := TranslateError(err, "es")
	_, esRegion := TranslateError(err, "es-MX")
	_, en := TranslateError(err, "en")

	assert.Equal(t, "Error de red con el proveedor.", es.Detail)
	assert.Equal(t, es.Detail, esRegion.Detail)
	assert.Equal(t, "A network error occurred while communicating with the provider.", en.Detail)
}

func TestTranslateError_ProviderDetailOverrides(t *testing.T) {
	err := llm.NewProviderError("anthropic", llm.KindBadRequest, "prompt is too long")

	status, body := TranslateError(err, "es")

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "prompt is too long", body.Detail)
}

func TestTranslateError_InternalDetailNeverLeaks(t *testing.T) {
	_, body := TranslateError(errors.New("sqlite: database is locked"), "en")
	assert.NotContains(t, body.Detail, "sqlite")
}
