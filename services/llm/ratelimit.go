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
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedCompleter throttles calls to an upstream provider on the
// client side.
//
// # Description
//
// Each call waits for a token from the limiter for at most MaxWait. A call
// that cannot get a token in time fails with KindRateLimited without
// reaching the provider, the same classification a provider-side 429 gets.
type RateLimitedCompleter struct {
	name    string
	next    Completer
	limiter *rate.Limiter
	maxWait time.Duration
}

// NewRateLimitedCompleter wraps next with a token bucket of rps requests per
// second and the given burst. A non-positive rps returns next unchanged.
func NewRateLimitedCompleter(name string, next Completer, rps float64, burst int, maxWait time.Duration) Completer {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedCompleter{
		name:    name,
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		maxWait: maxWait,
	}
}

// Complete implements Completer.
func (r *RateLimitedCompleter) Complete(ctx context.Context, instructions string, history []Message, message string) (string, error) {
	waitCtx := ctx
	if r.maxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.maxWait)
		defer cancel()
	}
	if err := r.limiter.Wait(waitCtx); err != nil {
		slog.Warn("client-side rate limit exhausted", "provider", r.name, "error", err)
		return "", &ProviderError{
			Kind:     KindRateLimited,
			Provider: r.name,
			Err:      err,
		}
	}
	return r.next.Complete(ctx, instructions, history, message)
}

var _ Completer = (*RateLimitedCompleter)(nil)
