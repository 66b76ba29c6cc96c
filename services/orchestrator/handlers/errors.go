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
	"net/http"
	"strings"

	"github.com/AleutianAI/AleutianDebate/services/debate"
	"github.com/AleutianAI/AleutianDebate/services/llm"
	"github.com/AleutianAI/AleutianDebate/services/orchestrator/datatypes"
)

// ErrInvalidRequest marks a request body that failed decoding or validation.
var ErrInvalidRequest = errors.New("invalid request")

// errorText is the default detail for one error class, per locale.
type errorText struct {
	status int
	code   string
	es     string
	en     string
}

var (
	textNotFound = errorText{http.StatusNotFound, "conversation_not_found",
		"Conversación no encontrada.",
		"The conversation was not found. Start a new one without a conversation_id."}
	textInvalidStance = errorText{http.StatusBadRequest, "invalid_stance",
		"Postura inválida. Usa \"pro\" o \"contra\".",
		"Invalid stance. Use \"pro\" or \"contra\"."}
	textUnsupportedProvider = errorText{http.StatusBadRequest, "unsupported_provider",
		"Proveedor no soportado.",
		"The requested provider is not supported or not configured."}
	textInvalidRequest = errorText{http.StatusBadRequest, "invalid_request",
		"Solicitud inválida.",
		"The request body is invalid."}
	textInternal = errorText{http.StatusInternalServerError, "internal_error",
		"Error interno.",
		"An internal error occurred. Please try again."}

	upstreamTexts = map[llm.ErrorKind]errorText{
		llm.KindGeneric: {http.StatusInternalServerError, "upstream_error",
			"Error del proveedor externo.",
			"We encountered an issue with the upstream provider. Please try again in a few moments."},
		llm.KindAuth: {http.StatusUnauthorized, "upstream_auth",
			"Clave de API inválida.",
			"The API key provided is invalid. Check your credentials and try again."},
		llm.KindPermission: {http.StatusForbidden, "upstream_permission",
			"Permiso denegado para este modelo.",
			"You don't have permission to use this model. Contact support for access."},
		llm.KindBadRequest: {http.StatusBadRequest, "upstream_bad_request",
			"Solicitud inválida al proveedor.",
			"The request to the provider was malformed. Please review the request parameters."},
		llm.KindRateLimited: {http.StatusTooManyRequests, "upstream_rate_limited",
			"Límite de solicitudes o cuota excedida.",
			"You have exceeded your rate limit or quota. Please wait a moment before trying again."},
		llm.KindTimeout: {http.StatusGatewayTimeout, "upstream_timeout",
			"Tiempo de espera agotado con el proveedor.",
			"The upstream service timed out. This may be a temporary issue."},
		llm.KindNetwork: {http.StatusBadGateway, "upstream_network",
			"Error de red con el proveedor.",
			"A network error occurred while communicating with the provider."},
		llm.KindUnavailable: {http.StatusServiceUnavailable, "upstream_unavailable",
			"Servicio no disponible.",
			"The service is temporarily unavailable. Please try again soon."},
	}
)

func (t errorText) in(locale string) string {
	if strings.HasPrefix(strings.ToLower(locale), "es") {
		return t.es
	}
	return t.en
}

// TranslateError maps a service error to an HTTP status and response body.
//
// # Description
//
// Conversation errors map to 404/400. Provider errors map by kind:
// auth 401, permission 403, bad request 400, rate limited 429, timeout 504,
// network 502, unavailable 503, generic 500. A provider error carrying an
// explicit Detail uses it instead of the default text. Anything else is a
// 500 with a generic detail so internal messages never leak.
//
// # Inputs
//
//   - err: The error returned by the service. Must not be nil.
//   - locale: "es…" selects Spanish text; anything else selects English.
//
// # Outputs
//
//   - int: HTTP status code.
//   - datatypes.ErrorResponse: The body to send.
func TranslateError(err error, locale string) (int, datatypes.ErrorResponse) {
	var pe *llm.ProviderError
	switch {
	case errors.Is(err, debate.ErrConversationNotFound):
		return textNotFound.response(locale, "")
	case errors.Is(err, debate.ErrInvalidStance):
		return textInvalidStance.response(locale, "")
	case errors.Is(err, debate.ErrUnsupportedProvider):
		return textUnsupportedProvider.response(locale, "")
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, debate.ErrEmptyMessage):
		return textInvalidRequest.response(locale, "")
	case errors.As(err, &pe):
		t, ok := upstreamTexts[pe.Kind]
		if !ok {
			t = upstreamTexts[llm.KindGeneric]
		}
		return t.response(locale, pe.Detail)
	default:
		return textInternal.response(locale, "")
	}
}

func (t errorText) response(locale, override string) (int, datatypes.ErrorResponse) {
	detail := override
	if detail == "" {
		detail = t.in(locale)
	}
	return t.status, datatypes.ErrorResponse{Detail: detail, Code: t.code}
}
