// Package telemetry configures the global OpenTelemetry providers used by the
// jira, issues and ingest packages.
//
// Telemetry is off by default and installs no-op providers. When enabled,
// spans and metrics are written to the configured writer, and metrics are
// also pushed over OTLP/HTTP when an endpoint is set.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Options controls Init.
type Options struct {
	Enabled     bool
	ServiceName string
	Version     string
	// Writer receives spans and metrics. Defaults to stderr.
	Writer io.Writer
	// OTLPEndpoint, if set, also exports metrics over OTLP/HTTP (host:port).
	OTLPEndpoint   string
	MetricInterval time.Duration
}

// ShutdownFunc flushes and stops the providers installed by Init.
type ShutdownFunc func(context.Context) error

// Init installs global tracer and meter providers.
func Init(ctx context.Context, opts Options) (ShutdownFunc, error) {
	if !opts.Enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return func(context.Context) error { return nil }, nil
	}
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}
	if opts.MetricInterval <= 0 {
		opts.MetricInterval = 15 * time.Second
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", opts.ServiceName),
		attribute.String("service.version", opts.Version),
	)

	spanExp, err := stdouttrace.New(stdouttrace.WithWriter(opts.Writer))
	if err != nil {
		return nil, fmt.Errorf("telemetry: trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(spanExp),
	)

	metricExp, err := stdoutmetric.New(stdoutmetric.WithWriter(opts.Writer))
	if err != nil {
		return nil, fmt.Errorf("telemetry: metric exporter: %w", err)
	}
	mpOpts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(opts.MetricInterval))),
	}
	if opts.OTLPEndpoint != "" {
		otlpExp, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(opts.OTLPEndpoint),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("telemetry: otlp metric exporter: %w", err)
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(otlpExp, sdkmetric.WithInterval(30*time.Second)),
		))
	}
	mp := sdkmetric.NewMeterProvider(mpOpts...)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
