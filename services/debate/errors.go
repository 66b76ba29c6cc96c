// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package debate

import "errors"

// Conversation-level failures. Provider failures are *llm.ProviderError.
var (
	// ErrConversationNotFound is returned for an id that has no stored session.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrUnsupportedProvider is returned when a provider name has no adapter.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrInvalidStance is returned when a new conversation asks for a stance
	// other than pro or contra.
	ErrInvalidStance = errors.New("invalid stance")

	// ErrEmptyMessage is returned when the user message is blank.
	ErrEmptyMessage = errors.New("message must not be empty")
)
