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
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const ollamaProviderName = "ollama"

// OllamaConfig configures the Ollama adapter.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Params  GenerationParams
}

// OllamaClient is a Completer backed by a langchaingo model. In production
// the model is langchaingo's Ollama driver; tests inject any llms.Model.
type OllamaClient struct {
	model     llms.Model
	modelName string
	params    GenerationParams
}

// NewOllamaClient connects to a local or remote Ollama server.
func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ollama: base url is not configured")
	}
	if cfg.Model == "" {
		slog.Warn("Ollama model not set, defaulting to llama3.1")
		cfg.Model = "llama3.1"
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	model, err := ollama.New(ollama.WithServerURL(baseURL), ollama.WithModel(cfg.Model))
	if err != nil {
		return nil, fmt.Errorf("ollama: create client: %w", err)
	}
	slog.Info("Initializing Ollama client", "base_url", baseURL, "model", cfg.Model)
	return NewOllamaClientWithModel(model, cfg.Model, cfg.Params), nil
}

// NewOllamaClientWithModel wraps an already constructed langchaingo model.
func NewOllamaClientWithModel(model llms.Model, name string, params GenerationParams) *OllamaClient {
	if params == (GenerationParams{}) {
		params = DefaultGenerationParams()
	}
	return &OllamaClient{model: model, modelName: name, params: params}
}

// Complete implements Completer.
func (o *OllamaClient) Complete(ctx context.Context, instructions string, history []Message, message string) (string, error) {
	ctx, span := tracer.Start(ctx, "OllamaClient.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", ollamaProviderName),
		attribute.String("llm.model", o.modelName),
	)

	content := make([]llms.MessageContent, 0, len(history)+2)
	content = append(content, llms.TextParts(schema.ChatMessageTypeSystem, instructions))
	for _, m := range history {
		role := schema.ChatMessageTypeHuman
		if m.Role == RoleBot {
			role = schema.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, m.Content))
	}
	content = append(content, llms.TextParts(schema.ChatMessageTypeHuman, message))

	resp, err := o.model.GenerateContent(ctx, content,
		llms.WithTemperature(float64(o.params.Temperature)),
		llms.WithMaxTokens(o.params.MaxTokens),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Ollama completion failed", "model", o.modelName, "error", err)
		return "", Classify(ollamaProviderName, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", NewProviderError(ollamaProviderName, KindGeneric, "model returned no choices")
	}
	return cleanReply(resp.Choices[0].Content), nil
}

var _ Completer = (*OllamaClient)(nil)
