// Package observability wires OpenTelemetry tracing into Genkit.
//
// Tracing is opt-in: it activates only when an OTLP endpoint is
// configured (FINSIGHT_OTLP_ENDPOINT or otlp_endpoint in the config
// file), so local usage carries no exporter overhead.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config for the OTLP trace exporter.
type Config struct {
	// Endpoint is the OTLP HTTP host:port, e.g. "localhost:4318".
	// Empty disables tracing entirely.
	Endpoint string
	// ServiceName shown by the tracing backend. Defaults to "finsight".
	ServiceName string
	// Environment tag (dev, staging, prod).
	Environment string
}

// noopShutdown is returned when tracing is disabled or setup fails.
func noopShutdown(context.Context) error { return nil }

// Setup registers an OTLP HTTP exporter with Genkit's TracerProvider,
// so Generate and Embed calls produce spans alongside our own.
//
// Returns a shutdown function that flushes pending spans. Setup never
// fails the application: exporter problems log a warning and tracing
// stays off.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) func(context.Context) error {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Endpoint == "" {
		return noopShutdown
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "finsight"
	}

	// Genkit's TracerProvider reads service identity from the standard
	// OTEL environment variables.
	_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("failed to create OTLP exporter, tracing disabled", "error", err)
		return noopShutdown
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return tracing.TracerProvider().Shutdown
}
