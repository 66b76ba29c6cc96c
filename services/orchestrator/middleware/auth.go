// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the debate service:
// request locale selection and optional API key authentication.
//
// # Authentication Flow
//
//	Request
//	   │
//	   ▼
//	Locale ──► AuthMiddleware
//	              │
//	              ├─► Extract token from "Authorization: Bearer <token>"
//	              │
//	              ├─► provider.Validate(ctx, token)
//	              │
//	              └─► Store AuthInfo in context
//	                      │
//	                      ▼
//	                  Handler
//
// With no keys configured, NopAuthProvider accepts every request as
// "local-user".
package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// =============================================================================
// Providers
// =============================================================================

// ErrUnauthorized is returned by an AuthProvider that rejects a token.
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo identifies the caller.
type AuthInfo struct {
	Subject string
}

// AuthProvider validates bearer tokens.
type AuthProvider interface {
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider accepts every request.
type NopAuthProvider struct{}

// Validate implements AuthProvider.
func (NopAuthProvider) Validate(context.Context, string) (*AuthInfo, error) {
	return &AuthInfo{Subject: "local-user"}, nil
}

// StaticKeyAuthProvider accepts a fixed set of API keys.
//
// # Thread Safety
//
// Immutable after construction; safe for concurrent use.
type StaticKeyAuthProvider struct {
	digests [][sha256.Size]byte
}

// NewStaticKeyAuthProvider builds a provider for keys. Blank keys are
// ignored.
func NewStaticKeyAuthProvider(keys []string) *StaticKeyAuthProvider {
	p := &StaticKeyAuthProvider{}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			p.digests = append(p.digests, sha256.Sum256([]byte(k)))
		}
	}
	return p
}

// Validate implements AuthProvider. Comparison is constant time per key.
func (p *StaticKeyAuthProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	got := sha256.Sum256([]byte(token))
	for _, want := range p.digests {
		if subtle.ConstantTimeCompare(got[:], want[:]) == 1 {
			return &AuthInfo{Subject: "api-key"}, nil
		}
	}
	return nil, ErrUnauthorized
}

// NewAuthProvider returns NopAuthProvider when keys is empty, otherwise a
// StaticKeyAuthProvider.
func NewAuthProvider(keys []string) AuthProvider {
	p := NewStaticKeyAuthProvider(keys)
	if len(p.digests) == 0 {
		return NopAuthProvider{}
	}
	return p
}

// =============================================================================
// Middleware
// =============================================================================

const authInfoKey = "debate_auth_info"

// GetAuthInfo returns the caller identity set by AuthMiddleware, or nil.
func GetAuthInfo(c *gin.Context) *AuthInfo {
	if info, exists := c.Get(authInfoKey); exists {
		if authInfo, ok := info.(*AuthInfo); ok {
			return authInfo
		}
	}
	return nil
}

// AuthMiddleware rejects requests the provider does not accept with 401.
// The response detail follows the request locale.
func AuthMiddleware(provider AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		authInfo, err := provider.Validate(c.Request.Context(), extractBearerToken(c))
		if err != nil {
			detail := "Missing or invalid API key."
			if GetLocale(c) == "es" {
				detail = "Clave de API ausente o inválida."
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": detail,
				"code":   "unauthorized",
			})
			return
		}
		c.Set(authInfoKey, authInfo)
		c.Next()
	}
}

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
