// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// MeterName is the instrumentation scope of the upstream call metrics.
const MeterName = "aleutian.debate.llm"

// NewMeterProvider creates the OpenTelemetry meter provider for upstream
// call metrics.
//
// # Description
//
// Instruments are always exported through a Prometheus collector registered
// on reg, so they appear on /metrics next to DebateMetrics. With stdout set
// they are also printed periodically, matching the stdout trace exporter.
//
// # Inputs
//
//   - reg: Registry the exporter registers its collector on.
//   - res: Resource describing the service. Nil uses the SDK default.
//   - stdout: Also export to stdout.
//
// # Outputs
//
//   - *sdkmetric.MeterProvider: Caller must Shutdown it.
//   - error: Non-nil if an exporter cannot be created.
func NewMeterProvider(reg prometheus.Registerer, res *resource.Resource, stdout bool) (*sdkmetric.MeterProvider, error) {
	exporter, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithReader(exporter)}
	if res != nil {
		opts = append(opts, sdkmetric.WithResource(res))
	}
	if stdout {
		out, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(out)))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}
