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
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// Retention Scheduler Implementation
// =============================================================================

// SchedulerConfig holds configuration for the retention scheduler.
//
// # Fields
//
//   - Interval: How often to run a cycle. Default: 1 hour.
//   - Retention: Idle time after which a conversation is removed. Required.
//   - Now: Clock source. Default: time.Now.
type SchedulerConfig struct {
	Interval  time.Duration
	Retention time.Duration
	Now       func() time.Time
}

// DefaultSchedulerConfig returns a config with a one hour interval and the
// given retention.
//
// # Examples
//
//	config := DefaultSchedulerConfig(7 * 24 * time.Hour)
//	config.Interval = 30 * time.Minute
//	scheduler := NewScheduler(store, config, logger)
func DefaultSchedulerConfig(retention time.Duration) SchedulerConfig {
	return SchedulerConfig{
		Interval:  time.Hour,
		Retention: retention,
		Now:       time.Now,
	}
}

// scheduler implements Scheduler with a ticker and a done channel.
//
// # Fields
//
//   - purger: Store to purge.
//   - config: Scheduler configuration.
//   - clock: Rejects cutoffs computed from a jumped clock.
//   - logger: Destination for cycle logs.
//   - done: Closed by Stop.
//   - mu: Protects running and done.
type scheduler struct {
	purger  Purger
	config  SchedulerConfig
	clock   *ClockGuard
	logger  *slog.Logger
	done    chan struct{}
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a retention scheduler.
//
// # Inputs
//
//   - purger: The store to purge.
//   - config: Interval and retention. Zero Interval means one hour.
//   - logger: May be nil for slog.Default().
//
// # Limitations
//
//   - Only one scheduler should run per store.
//   - Does not persist state between restarts.
func NewScheduler(purger Purger, config SchedulerConfig, logger *slog.Logger) Scheduler {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &scheduler{
		purger: purger,
		config: config,
		clock:  NewClockGuard(config.Now, 2*config.Interval+time.Minute, time.Hour),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start begins the background retention loop.
//
// # Outputs
//
//   - error: Non-nil if already running or Retention is not positive.
func (s *scheduler) Start(ctx context.Context) error {
	if s.config.Retention <= 0 {
		return fmt.Errorf("retention must be positive, got %v", s.config.Retention)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Info("Conversation retention scheduler starting",
		"interval", s.config.Interval.String(),
		"retention", s.config.Retention.String(),
	)

	go s.runLoop(ctx, done)
	return nil
}

// Stop signals the loop to exit. A cycle in progress finishes first.
func (s *scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.logger.Info("Conversation retention scheduler stopping")
	close(s.done)
	s.running = false
	return nil
}

// RunNow performs one cycle without waiting for the next tick.
func (s *scheduler) RunNow(ctx context.Context) (CleanupResult, error) {
	return s.runCleanupCycle(ctx)
}

// =============================================================================
// Internal Methods
// =============================================================================

func (s *scheduler) runLoop(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.executeCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Conversation retention scheduler stopped (context cancelled)")
			return
		case <-done:
			s.logger.Info("Conversation retention scheduler stopped (stop requested)")
			return
		case <-ticker.C:
			s.executeCleanup(ctx)
		}
	}
}

// executeCleanup runs one cycle and logs the outcome. Errors never stop
// the loop.
func (s *scheduler) executeCleanup(ctx context.Context) {
	result, err := s.runCleanupCycle(ctx)
	if err != nil {
		s.logger.Error("Conversation retention cycle failed", "error", err)
		return
	}
	if result.Deleted > 0 {
		s.logger.Info("Conversation retention cycle completed",
			"deleted", result.Deleted,
			"cutoff", result.Cutoff.Format(time.RFC3339),
			"duration_ms", result.DurationMs(),
		)
	} else {
		s.logger.Debug("Conversation retention cycle completed (no idle conversations)")
	}
}

func (s *scheduler) runCleanupCycle(ctx context.Context) (CleanupResult, error) {
	if s.config.Retention <= 0 {
		return CleanupResult{}, fmt.Errorf("retention must be positive, got %v", s.config.Retention)
	}
	now, err := s.clock.Now()
	if err != nil {
		return CleanupResult{}, err
	}
	result := CleanupResult{
		StartTime: now,
		Cutoff:    now.Add(-s.config.Retention),
	}

	deleted, err := s.purger.PurgeOlderThan(ctx, result.Cutoff)
	if err != nil {
		return result, fmt.Errorf("purge failed: %w", err)
	}
	result.Deleted = deleted
	result.EndTime = s.config.Now()
	return result, nil
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Scheduler = (*scheduler)(nil)
