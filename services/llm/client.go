// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm contains the model-provider adapters used by the debate
// orchestrator.
//
// Every provider is exposed through the single Completer capability. Request
// shaping (role names, system prompt placement) and error classification are
// provider specific and stay inside each adapter; callers only ever see raw
// reply text or a *ProviderError.
package llm

import (
	"context"
	"strings"
)

// Role identifies the author of a history message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Message is one prior turn of the conversation as seen by an adapter.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GenerationParams are the sampling settings shared by all adapters.
type GenerationParams struct {
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// DefaultGenerationParams mirrors the settings every provider is called with.
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		Temperature: 0.5,
		MaxTokens:   256,
	}
}

// Completer is a model provider capable of a single blocking completion.
//
// # Description
//
// Complete sends the system instructions, the prior history and the new user
// message to the provider and returns the raw reply text. The reply is not
// validated in any way. Transport, auth and quota failures are returned as
// *ProviderError so the boundary layer can map them to status codes.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, instructions string, history []Message, message string) (string, error)
}

// CompleterFunc adapts a plain function to the Completer interface.
type CompleterFunc func(ctx context.Context, instructions string, history []Message, message string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, instructions string, history []Message, message string) (string, error) {
	return f(ctx, instructions, history, message)
}

// chatRole maps a history role to the OpenAI-style role names used by most
// providers.
func chatRole(r Role) string {
	if r == RoleBot {
		return "assistant"
	}
	return "user"
}

func cleanReply(s string) string {
	return strings.TrimSpace(s)
}
