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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	anthropicAPIVersion    = "2023-06-01"
	anthropicDefaultURL    = "https://api.anthropic.com/v1/messages"
	anthropicDefaultModel  = "claude-3-5-sonnet-20240620"
	anthropicProviderName  = "anthropic"
	anthropicMaxErrorBytes = 512
)

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// anthropicErrorKinds maps Anthropic's error "type" field when the HTTP
// status alone is ambiguous.
var anthropicErrorKinds = map[string]ErrorKind{
	"authentication_error":  KindAuth,
	"permission_error":      KindPermission,
	"invalid_request_error": KindBadRequest,
	"rate_limit_error":      KindRateLimited,
	"overloaded_error":      KindUnavailable,
	"api_error":             KindUnavailable,
}

// AnthropicConfig configures the Anthropic Messages API adapter.
type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Params  GenerationParams
}

// AnthropicClient is a Completer that talks to the Messages API over plain
// REST.
type AnthropicClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	url        string
	params     GenerationParams
}

// NewAnthropicClient creates the Anthropic adapter.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		slog.Warn("Anthropic API Key is missing.")
		return nil, fmt.Errorf("anthropic: api key is not configured")
	}
	if cfg.Model == "" {
		cfg.Model = anthropicDefaultModel
		slog.Info("Anthropic model not set, defaulting", "model", cfg.Model)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = anthropicDefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Params == (GenerationParams{}) {
		cfg.Params = DefaultGenerationParams()
	}
	return &AnthropicClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		url:        cfg.BaseURL,
		params:     cfg.Params,
	}, nil
}

// Complete implements Completer.
func (a *AnthropicClient) Complete(ctx context.Context, instructions string, history []Message, message string) (string, error) {
	ctx, span := tracer.Start(ctx, "AnthropicClient.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", anthropicProviderName),
		attribute.String("llm.model", a.model),
	)

	text, err := a.complete(ctx, instructions, history, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Anthropic completion failed", "error", err)
		return "", Classify(anthropicProviderName, err)
	}
	return text, nil
}

func (a *AnthropicClient) complete(ctx context.Context, instructions string, history []Message, message string) (string, error) {
	apiMessages := make([]anthropicMessage, 0, len(history)+1)
	for _, m := range history {
		apiMessages = append(apiMessages, anthropicMessage{Role: chatRole(m.Role), Content: m.Content})
	}
	apiMessages = append(apiMessages, anthropicMessage{Role: "user", Content: message})

	temperature := a.params.Temperature
	payload := anthropicRequest{
		Model:       a.model,
		Messages:    apiMessages,
		System:      instructions,
		MaxTokens:   a.params.MaxTokens,
		Temperature: &temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return "", NewProviderError(anthropicProviderName, KindBadRequest, err.Error())
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("content-type", "application/json")

	slog.Debug("Sending REST request to Anthropic", "model", a.model)
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var apiResp anthropicResponse
	decodeErr := json.Unmarshal(respBody, &apiResp)

	if resp.StatusCode != http.StatusOK {
		kind := ClassifyStatus(resp.StatusCode)
		detail := ""
		if decodeErr == nil && apiResp.Error != nil {
			if k, ok := anthropicErrorKinds[apiResp.Error.Type]; ok && kind == KindBadRequest {
				kind = k
			}
			detail = apiResp.Error.Message
		}
		return "", &ProviderError{
			Kind:     kind,
			Provider: anthropicProviderName,
			Detail:   detail,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, truncateBody(respBody)),
		}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to parse response JSON: %w", decodeErr)
	}
	if apiResp.Error != nil {
		kind, ok := anthropicErrorKinds[apiResp.Error.Type]
		if !ok {
			kind = KindGeneric
		}
		return "", NewProviderError(anthropicProviderName, kind, apiResp.Error.Message)
	}

	var sb strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", NewProviderError(anthropicProviderName, KindGeneric, "received content but no text block")
	}
	return cleanReply(sb.String()), nil
}

func truncateBody(b []byte) string {
	if len(b) > anthropicMaxErrorBytes {
		return string(b[:anthropicMaxErrorBytes]) + "..."
	}
	return string(b)
}

var _ Completer = (*AnthropicClient)(nil)
