// Package observability configures process-wide logging, trace propagation
// and client metrics.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// InstrumentationName identifies log records emitted through the OTel bridge.
const InstrumentationName = "github.com/florianilch/moonctl"

// Supported log exporters. ExporterNone writes plain slog output.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
)

// ShutdownFunc flushes and releases telemetry resources.
type ShutdownFunc func(context.Context) error

// output is where local log output goes; stdout is reserved for command results.
var output io.Writer = os.Stderr

// Instrument installs the default slog logger and the global trace propagator.
//
// With ExporterNone (or "") records are written by a text or JSON handler
// depending on format. Any other exporter routes records through the
// OpenTelemetry log SDK, filtered at level.
func Instrument(ctx context.Context, level slog.Level, format, exporter string) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if exporter == "" || exporter == ExporterNone {
		handler, err := newHandler(output, level, format)
		if err != nil {
			return nil, err
		}
		slog.SetDefault(slog.New(handler))
		return func(context.Context) error { return nil }, nil
	}

	logExporter, err := newExporter(ctx, exporter)
	if err != nil {
		return nil, err
	}

	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(logExporter), minSeverity(level))
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))
	global.SetLoggerProvider(provider)

	slog.SetDefault(slog.New(otelslog.NewHandler(InstrumentationName, otelslog.WithLoggerProvider(provider))))

	return provider.Shutdown, nil
}

func newHandler(w io.Writer, level slog.Level, format string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}

	switch format {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

func newExporter(ctx context.Context, name string) (sdklog.Exporter, error) {
	switch name {
	case ExporterStdout:
		exp, err := stdoutlog.New(stdoutlog.WithWriter(output))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout log exporter: %w", err)
		}
		return exp, nil
	case ExporterOTLPGRPC:
		// Endpoint and headers come from the standard OTEL_EXPORTER_OTLP_* variables.
		exp, err := otlploggrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp grpc log exporter: %w", err)
		}
		return exp, nil
	case ExporterOTLPHTTP:
		exp, err := otlploghttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp http log exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unsupported log exporter: %s", name)
	}
}

func minSeverity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
