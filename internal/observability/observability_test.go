package observability

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/contrib/processors/minsev"
)

// withOutput redirects local log output for the duration of a test.
func withOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOutput, prevLogger := output, slog.Default()
	output = &buf
	t.Cleanup(func() {
		output = prevOutput
		slog.SetDefault(prevLogger)
	})
	return &buf
}

func TestInstrumentFormats(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"text", "msg=hello"},
		{"json", `"msg":"hello"`},
		{"", "msg=hello"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			buf := withOutput(t)

			shutdown, err := Instrument(context.Background(), slog.LevelInfo, tt.format, ExporterNone)
			if err != nil {
				t.Fatalf("Instrument() error = %v", err)
			}
			defer func() { _ = shutdown(context.Background()) }()

			slog.Debug("hidden")
			slog.Info("hello")

			out := buf.String()
			if !strings.Contains(out, tt.want) {
				t.Errorf("output %q does not contain %q", out, tt.want)
			}
			if strings.Contains(out, "hidden") {
				t.Errorf("debug record written at info level: %q", out)
			}
		})
	}
}

func TestInstrumentRejectsUnknownSettings(t *testing.T) {
	withOutput(t)

	if _, err := Instrument(context.Background(), slog.LevelInfo, "xml", ExporterNone); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := Instrument(context.Background(), slog.LevelInfo, "text", "carrier-pigeon"); err == nil {
		t.Error("expected error for unknown exporter")
	}
}

func TestInstrumentStdoutExporter(t *testing.T) {
	buf := withOutput(t)

	shutdown, err := Instrument(context.Background(), slog.LevelInfo, "text", ExporterStdout)
	if err != nil {
		t.Fatalf("Instrument() error = %v", err)
	}

	slog.Info("exported record", "collection", "products")

	// Shutdown flushes the batch processor.
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
	if !strings.Contains(buf.String(), "exported record") {
		t.Errorf("exporter output %q missing record", buf.String())
	}
}

func TestMinSeverity(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  minsev.Severity
	}{
		{slog.LevelDebug, minsev.SeverityDebug},
		{slog.LevelInfo, minsev.SeverityInfo},
		{slog.LevelWarn, minsev.SeverityWarn},
		{slog.LevelError, minsev.SeverityError},
		{slog.LevelError + 4, minsev.SeverityError},
	}
	for _, tt := range tests {
		if got := minSeverity(tt.level); got != tt.want {
			t.Errorf("minSeverity(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestClientMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClientMetrics(reg)

	m.ObserveAttempt("GET", 200, "", 10*time.Millisecond)
	m.ObserveAttempt("GET", 503, "503", 10*time.Millisecond)
	m.ObserveAttempt("GET", 0, "NETWORK_ERROR", time.Millisecond)
	m.ObserveRetry("GET", 1, time.Second)
	m.ObserveRefresh(true, 5*time.Millisecond)
	m.ObserveRefresh(false, 5*time.Millisecond)

	if got := testutil.ToFloat64(m.attempts.WithLabelValues("GET", "503", "503")); got != 1 {
		t.Errorf("503 attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.attempts.WithLabelValues("GET", "none", "NETWORK_ERROR")); got != 1 {
		t.Errorf("network attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.retries.WithLabelValues("GET")); got != 1 {
		t.Errorf("retries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.refreshes.WithLabelValues("failure")); got != 1 {
		t.Errorf("failed refreshes = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.attempts); got != 3 {
		t.Errorf("attempt series = %d, want 3", got)
	}
}
