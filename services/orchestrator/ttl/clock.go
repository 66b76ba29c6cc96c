// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ttl

import (
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// Clock Sanity Checking
// =============================================================================

// ClockGuard refuses to hand out a purge cutoff when the wall clock has
// jumped. A clock set forward would otherwise expire live conversations.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type ClockGuard struct {
	now             func() time.Time
	maxForwardJump  time.Duration
	maxBackwardJump time.Duration

	mu       sync.Mutex
	lastGood time.Time
}

// NewClockGuard creates a guard. maxForwardJump must exceed the interval
// between checks, or every check after the first fails.
func NewClockGuard(now func() time.Time, maxForwardJump, maxBackwardJump time.Duration) *ClockGuard {
	if now == nil {
		now = time.Now
	}
	return &ClockGuard{
		now:             now,
		maxForwardJump:  maxForwardJump,
		maxBackwardJump: maxBackwardJump,
	}
}

// Now returns the current time if it is consistent with the previous
// check. The first check always passes. A rejected jump becomes the new
// baseline, so only the check that observed it fails.
func (g *ClockGuard) Now() (time.Time, error) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.lastGood.IsZero() {
		diff := now.Sub(g.lastGood)
		if diff < -g.maxBackwardJump {
			g.lastGood = now
			return time.Time{}, fmt.Errorf("clock sanity: backward jump of %v (max %v)", -diff, g.maxBackwardJump)
		}
		if diff > g.maxForwardJump {
			g.lastGood = now
			return time.Time{}, fmt.Errorf("clock sanity: forward jump of %v (max %v)", diff, g.maxForwardJump)
		}
	}
	g.lastGood = now
	return now, nil
}

// Reset forgets the previous check, e.g. after a known NTP correction.
func (g *ClockGuard) Reset() {
	g.mu.Lock()
	g.lastGood = time.Time{}
	g.mu.Unlock()
}
