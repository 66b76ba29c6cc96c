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
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianDebate/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianDebate/services/orchestrator/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSError is the outbound frame for a failed turn.
type WSError struct {
	Status int                     `json:"status"`
	Error  datatypes.ErrorResponse `json:"error"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

func sendJSON(ws *websocket.Conn, v interface{}) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleConversationWebSocket serves GET /v1/conversation/ws.
//
// # Description
//
// Each inbound text frame is a datatypes.ConversationRequest and gets
// exactly one outbound frame: a datatypes.ConversationResponse on success
// or a WSError. Frames on one connection are processed in order, so turns
// sent over one socket never race each other. A malformed frame yields a
// 400 WSError and the connection stays open.
//
// # Limitations
//
//   - Frames larger than twice datatypes.MaxMessageBytes close the connection.
func HandleConversationWebSocket(svc ConversationService, timeout TurnTimeout) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()
		ws.SetReadLimit(2 * datatypes.MaxMessageBytes)

		locale := middleware.GetLocale(c)
		slog.Info("Websocket client connected", "remote", c.ClientIP())

		for {
			_, frame, err := ws.ReadMessage()
			if err != nil {
				slog.Info("Websocket client disconnected", "error", err.Error())
				return
			}

			var req datatypes.ConversationRequest
			if err := json.Unmarshal(frame, &req); err != nil {
				if sendJSON(ws, wsError(fmt.Errorf("%w: %v", ErrInvalidRequest, err), locale)) != nil {
					return
				}
				continue
			}
			if err := req.Validate(); err != nil {
				if sendJSON(ws, wsError(fmt.Errorf("%w: %v", ErrInvalidRequest, err), locale)) != nil {
					return
				}
				continue
			}

			ctx, cancel := timeout.apply(c.Request.Context())
			res, err := svc.Handle(ctx, req.ToHandleRequest())
			cancel()

			var out interface{}
			if err != nil {
				out = wsError(err, locale)
			} else {
				out = datatypes.NewConversationResponse(res.ConversationID, res.History)
			}
			if sendJSON(ws, out) != nil {
				return
			}
		}
	}
}

func wsError(err error, locale string) WSError {
	status, body := TranslateError(err, locale)
	return WSError{Status: status, Error: body}
}
