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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianDebate/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianDebate/services/orchestrator/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialConversationSocket(t *testing.T, svc ConversationService, query string) *websocket.Conn {
	t.Helper()
	router := gin.New()
	router.Use(middleware.Locale("es"))
	router.GET("/v1/conversation/ws", HandleConversationWebSocket(svc, TurnTimeout(5*time.Second)))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/conversation/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestConversationWebSocket_TurnsShareConversation(t *testing.T) {
	svc, _ := newTestService(t, replyWith(englishReply))
	conn := dialConversationSocket(t, svc, "")

	require.NoError(t, conn.WriteJSON(datatypes.ConversationRequest{Message: "Nuclear power is safe"}))
	var first datatypes.ConversationResponse
	require.NoError(t, conn.ReadJSON(&first))
	require.Len(t, first.Message, 2)

	require.NoError(t, conn.WriteJSON(datatypes.ConversationRequest{
		ConversationID: first.ConversationID,
		Message:        "What about waste?",
	}))
	var second datatypes.ConversationResponse
	require.NoError(t, conn.ReadJSON(&second))

	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Len(t, second.Message, 4)
}

func TestConversationWebSocket_MalformedFrameKeepsConnection(t *testing.T) {
	svc, _ := newTestService(t, replyWith(englishReply))
	conn := dialConversationSocket(t, svc, "?lang=en")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var wsErr WSError
	require.NoError(t, conn.ReadJSON(&wsErr))
	assert.Equal(t, http.StatusBadRequest, wsErr.Status)
	assert.Equal(t, "invalid_request", wsErr.Error.Code)
	assert.Equal(t, "The request body is invalid.", wsErr.Error.Detail)

	require.NoError(t, conn.WriteJSON(datatypes.ConversationRequest{Message: "Still here"}))
	var resp datatypes.ConversationResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Len(t, resp.Message, 2)
}

func TestConversationWebSocket_ServiceErrorFrame(t *testing.T) {
	svc, _ := newTestService(t, replyWith(englishReply))
	conn := dialConversationSocket(t, svc, "")

	require.NoError(t, conn.WriteJSON(datatypes.ConversationRequest{ConversationID: "nope", Message: "hola"}))
	var wsErr WSError
	require.NoError(t, conn.ReadJSON(&wsErr))

	assert.Equal(t, http.StatusNotFound, wsErr.Status)
	assert.Equal(t, "Conversación no encontrada.", wsErr.Error.Detail)
}
