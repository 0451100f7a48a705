// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tontip

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const tracingServiceName = "tontip"

// setupTracing installs a global tracer provider. Spans go to an OTLP HTTP
// endpoint configured through the OTEL_EXPORTER_OTLP_* env vars, or to stdout
func (n *Node) setupTracing() error {
	var exporter sdktrace.SpanExporter
	var err error
	if n.config.tracingStdout {
		exporter, err = stdouttrace.New()
	} else {
		exporter, err = otlptracehttp.New(context.TODO())
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(
			resource.NewSchemaless(
				attribute.String("service.name", tracingServiceName),
				attribute.String("service.version", n.config.version),
				attribute.String("tontip.network", n.config.network),
			),
		),
	)
	otel.SetTracerProvider(tp)
	n.shutdownFuncs = append(n.shutdownFuncs, tp.Shutdown)
	n.config.logger.Info(
		"tracing enabled",
		"component", "node",
		"stdout", n.config.tracingStdout,
	)
	return nil
}
