// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ttl expires idle debate conversations from stores without native
// key expiry.
//
// Badger and Redis expire conversations themselves. The SQLite and memory
// backends implement Purger instead, and a Scheduler drives them.
package ttl

import (
	"context"
	"time"
)

// =============================================================================
// Interfaces
// =============================================================================

// Purger deletes conversations whose last write is before cutoff.
//
// # Outputs
//
//   - int64: Number of conversations removed.
//   - error: Non-nil if the store could not be purged.
type Purger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler runs retention cycles in the background.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Scheduler interface {
	// Start launches the cycle goroutine. It runs one cycle immediately,
	// then one per interval until Stop or ctx cancellation.
	Start(ctx context.Context) error

	// Stop ends the cycle goroutine. Safe to call multiple times.
	Stop() error

	// RunNow performs one cycle synchronously.
	RunNow(ctx context.Context) (CleanupResult, error)
}

// =============================================================================
// Result Types
// =============================================================================

// CleanupResult summarizes one retention cycle.
//
// # Fields
//
//   - StartTime: When the cycle began.
//   - EndTime: When the cycle finished.
//   - Cutoff: Conversations last written before this were removed.
//   - Deleted: Number of conversations removed.
type CleanupResult struct {
	StartTime time.Time
	EndTime   time.Time
	Cutoff    time.Time
	Deleted   int64
}

// Duration returns the total duration of the cycle.
func (r *CleanupResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// DurationMs returns the duration in milliseconds for logging.
func (r *CleanupResult) DurationMs() int64 {
	return r.Duration().Milliseconds()
}
