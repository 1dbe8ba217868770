// Package telemetry wires logging, tracing and metrics for the gateways.
//
// SetupTracer initialises the OpenTelemetry SDK with an OTLP gRPC exporter.
// Call it once at the top of main(), defer the returned shutdown function,
// and every span created by otelhttp on either side of the gateway is exported.
//
//	shutdown, err := telemetry.SetupTracer(ctx, telemetry.TracerConfig{
//		ServiceName: "storefront-gateway",
//		Endpoint:    cfg.OTLPEndpoint,
//	})
//	if err != nil { ... }
//	defer shutdown(context.Background())
package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ShutdownFunc must be called before the process exits to flush any
// buffered spans and close the exporter connection cleanly.
type ShutdownFunc func(ctx context.Context) error

// TracerConfig selects where spans go.
type TracerConfig struct {
	ServiceName string
	Environment string
	// Endpoint is the OTLP collector address. Empty disables export but
	// still installs the propagators so trace headers flow through.
	Endpoint string
}

// SetupTracer initialises the global OpenTelemetry TracerProvider and
// TextMapPropagator for the given service.
//
// The endpoint is the OTel Collector's gRPC address, normally taken from
// OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel-collector:4317"). A scheme prefix
// such as "http://" is accepted and stripped. With no endpoint the
// propagators are still installed, so traceparent headers keep flowing from
// the browser to the backend even when nothing is exported.
func SetupTracer(ctx context.Context, cfg TracerConfig) (ShutdownFunc, error) {
	// ── 1. Install the W3C propagators ───────────────────────────────────────
	// TraceContext carries traceparent/tracestate; Baggage carries key-value
	// pairs alongside them.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	// ── 2. Create the OTLP gRPC exporter ─────────────────────────────────────
	// insecure credentials: the collector runs next to the gateway.
	conn, err := grpc.NewClient(
		stripScheme(cfg.Endpoint),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to dial OTel Collector at %s: %w", cfg.Endpoint, err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("telemetry: failed to create OTLP trace exporter: %w", err)
	}

	// ── 3. Build the resource ────────────────────────────────────────────────
	// The resource describes the process emitting spans and shows up on every
	// span in the tracing backend.
	env := cfg.Environment
	if env == "" {
		env = "local"
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(env),
		),
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("telemetry: failed to build resource: %w", err)
	}

	// ── 4. Create the TracerProvider ─────────────────────────────────────────
	// The batcher buffers spans and exports them in the background.
	// AlwaysSample keeps every trace.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	// ── 5. Return the shutdown hook ──────────────────────────────────────────
	shutdown := func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: error shutting down TracerProvider: %w", err)
		}
		return conn.Close()
	}

	return shutdown, nil
}

// stripScheme removes "http://" or "https://" prefixes so the raw host:port
// string can be used directly with grpc.NewClient.
func stripScheme(endpoint string) string {
	for _, prefix := range []string{"http://", "https://"} {
		if rest, ok := strings.CutPrefix(endpoint, prefix); ok && rest != "" {
			return rest
		}
	}
	return endpoint
}
