// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the gin handlers of the debate API.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianDebate/services/debate"
	"github.com/AleutianAI/AleutianDebate/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianDebate/services/orchestrator/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("aleutian.debate.handlers")

// ConversationService is the part of debate.ConversationService the
// handlers use.
type ConversationService interface {
	Handle(ctx context.Context, req debate.HandleRequest) (debate.HandleResult, error)
	Conversation(ctx context.Context, id string) (*debate.Session, error)
}

var _ ConversationService = (*debate.ConversationService)(nil)

// TurnTimeout bounds one turn, provider calls included. Zero means no bound
// beyond the request context.
type TurnTimeout time.Duration

func (t TurnTimeout) apply(ctx context.Context) (context.Context, context.CancelFunc) {
	if t <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(t))
}

// HandleConversation serves POST /v1/conversation.
//
// # Description
//
// Decodes and validates the body, runs one turn and returns the full
// history. Failures are translated by TranslateError in the request locale.
//
// # Inputs
//
//   - svc: The conversation service.
//   - timeout: Per-turn deadline.
//
// # Outputs
//
//   - gin.HandlerFunc: 200 with datatypes.ConversationResponse, or an error
//     status with datatypes.ErrorResponse.
func HandleConversation(svc ConversationService, timeout TurnTimeout) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.HandleConversation")
		defer span.End()

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*datatypes.MaxMessageBytes)

		var req datatypes.ConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			slog.Warn("invalid conversation request body", "error", err)
			writeError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
			return
		}
		if err := req.Validate(); err != nil {
			writeError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
			return
		}

		ctx, cancel := timeout.apply(ctx)
		defer cancel()

		res, err := svc.Handle(ctx, req.ToHandleRequest())
		if err != nil {
			span.RecordError(err)
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.NewConversationResponse(res.ConversationID, res.History))
	}
}

// HandleGetConversation serves GET /v1/conversation/:id. It never mutates
// the conversation.
func HandleGetConversation(svc ConversationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		sess, err := svc.Conversation(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.NewConversationResponse(sess.ID, sess.History))
	}
}

// writeError translates err and aborts the request. 5xx failures are logged.
func writeError(c *gin.Context, err error) {
	status, body := TranslateError(err, middleware.GetLocale(c))
	trace.SpanFromContext(c.Request.Context()).SetAttributes(
		attribute.Int("http.response.status_code", status),
		attribute.String("debate.error_code", body.Code),
	)
	if status >= http.StatusInternalServerError {
		slog.Error("conversation request failed",
			"status", status, "code", body.Code, "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}
