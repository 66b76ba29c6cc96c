// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the wire types of the debate HTTP API.
package datatypes

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianDebate/services/debate"
	"github.com/go-playground/validator/v10"
)

// MaxMessageBytes bounds a single user message.
const MaxMessageBytes = 32 * 1024

// ConversationRequest is the body of POST /v1/conversation and of each
// inbound websocket frame.
//
// Provider and Stance only take effect when ConversationID is empty.
type ConversationRequest struct {
	ConversationID string `json:"conversation_id,omitempty" validate:"omitempty,max=64"`
	Message        string `json:"message" validate:"required,min=1,max=32768"`
	Provider       string `json:"provider,omitempty" validate:"omitempty,max=32"`
	Stance         string `json:"stance,omitempty" validate:"omitempty,max=16"`
}

// MessageItem is one history entry on the wire.
type MessageItem struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// ConversationResponse is the conversation id and its full history.
type ConversationResponse struct {
	ConversationID string        `json:"conversation_id"`
	Message        []MessageItem `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// NewConversationResponse converts stored turns to the wire shape.
func NewConversationResponse(id string, history []debate.Turn) ConversationResponse {
	items := make([]MessageItem, 0, len(history))
	for _, t := range history {
		items = append(items, MessageItem{Role: string(t.Role), Message: t.Message})
	}
	return ConversationResponse{ConversationID: id, Message: items}
}

// ToHandleRequest maps the wire request to the service request.
func (r ConversationRequest) ToHandleRequest() debate.HandleRequest {
	return debate.HandleRequest{
		ConversationID: strings.TrimSpace(r.ConversationID),
		Message:        r.Message,
		Provider:       r.Provider,
		Stance:         r.Stance,
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validate checks field constraints. The returned error names the first
// failing field.
func (r ConversationRequest) Validate() error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			return name
		})
	})
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid field %s: failed %q", verrs[0].Field(), verrs[0].Tag())
		}
		return err
	}
	if strings.TrimSpace(r.Message) == "" {
		return errors.New("invalid field message: blank")
	}
	return nil
}
