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
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aleutian.debate.llm")

const (
	DeepSeekBaseURL = "https://api.deepseek.com"
	// GeminiBaseURL is Google's OpenAI-compatible endpoint for Gemini models.
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

// OpenAIConfig configures any provider that speaks the OpenAI chat
// completions protocol (OpenAI itself, DeepSeek, Gemini's compatibility
// endpoint).
type OpenAIConfig struct {
	// Name is the registry key reported in errors and spans.
	Name    string
	APIKey  string
	Model   string
	BaseURL string
	Params  GenerationParams
}

// OpenAIClient is a Completer backed by go-openai.
type OpenAIClient struct {
	name   string
	client *openai.Client
	model  string
	params GenerationParams
}

// NewOpenAIClient creates an OpenAI-protocol adapter.
//
// # Description
//
// The API key is mandatory. An empty BaseURL uses the library default
// (api.openai.com). An empty model falls back to gpt-4o-mini.
//
// # Outputs
//
//   - *OpenAIClient: Ready to use adapter.
//   - error: Non-nil if the API key is missing.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api key is not configured", cfg.Name)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
		slog.Warn("model not set, defaulting to gpt-4o-mini", "provider", cfg.Name)
	}
	if cfg.Params == (GenerationParams{}) {
		cfg.Params = DefaultGenerationParams()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	slog.Info("Initializing OpenAI-protocol client",
		"provider", cfg.Name, "model", cfg.Model, "base_url", clientCfg.BaseURL)

	return &OpenAIClient{
		name:   cfg.Name,
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		params: cfg.Params,
	}, nil
}

// Complete implements Completer.
func (o *OpenAIClient) Complete(ctx context.Context, instructions string, history []Message, message string) (string, error) {
	ctx, span := tracer.Start(ctx, "OpenAIClient.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", o.name),
		attribute.String("llm.model", o.model),
	)

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: instructions})
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: chatRole(m.Role), Content: m.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: o.params.Temperature,
		MaxTokens:   o.params.MaxTokens,
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("chat completion failed", "provider", o.name, "error", err)
		return "", Classify(o.name, err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("provider returned no choices", "provider", o.name)
		return "", NewProviderError(o.name, KindGeneric, "provider returned no choices")
	}
	slog.Debug("Received chat completion", "provider", o.name, "finish_reason", resp.Choices[0].FinishReason)
	return cleanReply(resp.Choices[0].Message.Content), nil
}

var _ Completer = (*OpenAIClient)(nil)
