// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// ErrorKind classifies an upstream failure.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindAuth
	KindPermission
	KindBadRequest
	KindRateLimited
	KindTimeout
	KindNetwork
	KindUnavailable
)

// String returns the stable snake_case name used in metrics and responses.
func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindPermission:
		return "permission"
	case KindBadRequest:
		return "bad_request"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindUnavailable:
		return "unavailable"
	default:
		return "generic"
	}
}

// ProviderError is the classified failure returned by every adapter.
//
// Detail is an optional human readable message. When empty, the boundary
// layer substitutes the localized default text for Kind.
type ProviderError struct {
	Kind     ErrorKind
	Provider string
	Detail   string
	Err      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s provider error (%s)", e.Provider, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a classified error without a cause.
func NewProviderError(provider string, kind ErrorKind, detail string) *ProviderError {
	return &ProviderError{Kind: kind, Provider: provider, Detail: detail}
}

// KindOf returns the classification of err and whether err is a
// *ProviderError at all.
func KindOf(err error) (ErrorKind, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return KindGeneric, false
}

// ClassifyStatus maps an upstream HTTP status code to an ErrorKind.
func ClassifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized:
		return KindAuth
	case code == http.StatusForbidden:
		return KindPermission
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return KindTimeout
	case code == http.StatusBadGateway:
		return KindNetwork
	case code == http.StatusServiceUnavailable, code == 529:
		// 529 is Anthropic's "overloaded".
		return KindUnavailable
	case code >= 400 && code < 500:
		return KindBadRequest
	case code >= 500:
		return KindUnavailable
	default:
		return KindGeneric
	}
}

// Classify wraps err in a *ProviderError for the named provider.
//
// # Description
//
// Errors that are already classified pass through unchanged. Otherwise the
// classification is derived from, in order: go-openai API/request errors
// (by HTTP status), context deadlines, net.Error timeouts, and any other
// network-level error. Everything else is KindGeneric.
//
// # Inputs
//
//   - provider: Registry name of the adapter, used in messages and metrics.
//   - err: The raw failure. Nil returns nil.
//
// # Outputs
//
//   - error: nil or a *ProviderError.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}

	out := &ProviderError{Kind: KindGeneric, Provider: provider, Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	var netErr net.Error
	switch {
	case errors.As(err, &apiErr):
		out.Kind = ClassifyStatus(apiErr.HTTPStatusCode)
		out.Detail = apiErr.Message
	case errors.As(err, &reqErr):
		out.Kind = ClassifyStatus(reqErr.HTTPStatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		out.Kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		out.Kind = KindTimeout
	case errors.As(err, &netErr):
		out.Kind = KindNetwork
	}
	return out
}
