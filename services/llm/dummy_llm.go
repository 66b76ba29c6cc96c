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
)

// DummyClient is an offline Completer for local development and demos.
// It never fails and never emits a stance marker, so every reply it
// produces goes through marker correction.
type DummyClient struct{}

// NewDummyClient returns the offline adapter.
func NewDummyClient() *DummyClient {
	return &DummyClient{}
}

// Complete implements Completer.
func (d *DummyClient) Complete(_ context.Context, _ string, history []Message, message string) (string, error) {
	opener := "I stand firmly by my side of this debate."
	if len(history) > 0 {
		opener = "I still stand by my side."
	}
	return fmt.Sprintf(
		"%s Consider this: %q is a fair point, but the evidence and logic still support my position. What part would you challenge specifically?",
		opener, message,
	), nil
}

var _ Completer = (*DummyClient)(nil)
