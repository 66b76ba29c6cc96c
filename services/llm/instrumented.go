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
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// resultOK labels calls that returned a reply.
const resultOK = "ok"

// InstrumentedCompleter records the latency and result of every upstream
// call on an OpenTelemetry meter.
//
// # Description
//
// Two instruments are recorded per call, both labelled with the provider
// name and the result ("ok" or the ErrorKind of the failure):
//
//   - debate.upstream.requests: call counter
//   - debate.upstream.duration: call latency in seconds
//
// # Thread Safety
//
// Safe for concurrent use if next is.
type InstrumentedCompleter struct {
	name     string
	next     Completer
	requests metric.Int64Counter
	duration metric.Float64Histogram
	now      func() time.Time
}

// NewInstrumentedCompleter wraps next with call metrics from meter.
func NewInstrumentedCompleter(name string, next Completer, meter metric.Meter) (*InstrumentedCompleter, error) {
	requests, err := meter.Int64Counter("debate.upstream.requests",
		metric.WithDescription("Model provider calls by result"),
		metric.WithUnit("{call}"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("debate.upstream.duration",
		metric.WithDescription("Model provider call latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &InstrumentedCompleter{
		name:     name,
		next:     next,
		requests: requests,
		duration: duration,
		now:      time.Now,
	}, nil
}

// Complete implements Completer.
func (c *InstrumentedCompleter) Complete(ctx context.Context, instructions string, history []Message, message string) (string, error) {
	start := c.now()
	reply, err := c.next.Complete(ctx, instructions, history, message)

	result := resultOK
	if err != nil {
		kind, ok := KindOf(err)
		if !ok {
			kind = KindGeneric
		}
		result = kind.String()
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", c.name),
		attribute.String("result", result),
	)
	c.requests.Add(ctx, 1, attrs)
	c.duration.Record(ctx, c.now().Sub(start).Seconds(), attrs)
	return reply, err
}

var _ Completer = (*InstrumentedCompleter)(nil)
