// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/AleutianDebate/services/debate"
)

// encodeSession serializes a full session record for the key-value backends.
func encodeSession(s *debate.Session) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil session", ErrCorruptRecord)
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return raw, nil
}

// decodeSession parses a stored record and rejects ones that could not
// have been written by encodeSession.
func decodeSession(raw []byte) (*debate.Session, error) {
	var s debate.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if s.ID == "" || !s.Stance.Valid() {
		return nil, fmt.Errorf("%w: missing id or invalid stance", ErrCorruptRecord)
	}
	if s.History == nil {
		s.History = []debate.Turn{}
	}
	return &s, nil
}

// encodeHistory and decodeHistory handle the history column of the SQL
// backend.
func encodeHistory(h []debate.Turn) (string, error) {
	if h == nil {
		h = []debate.Turn{}
	}
	raw, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("encode history: %w", err)
	}
	return string(raw), nil
}

func decodeHistory(raw string) ([]debate.Turn, error) {
	h := []debate.Turn{}
	if raw == "" {
		return h, nil
	}
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return nil, fmt.Errorf("%w: history: %v", ErrCorruptRecord, err)
	}
	return h, nil
}
