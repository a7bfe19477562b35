package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, "shieldcraft-engine", config.ServiceName)
	require.False(t, config.Enabled)
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p.Tracer())
	require.NotNil(t, p.Meter())

	_, done := p.TrackGate(context.Background(), "G4_SCHEMA_VALIDATION", "SCHEMA")
	done("PASS", nil)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestTrackGate_RecordsSpanAndCounter(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()

	p, err := New(context.Background(), &Config{
		ServiceName:    "test",
		ServiceVersion: "1.0.0",
		Enabled:        true,
		SpanProcessors: []sdktrace.SpanProcessor{recorder},
		MetricReader:   reader,
	})
	require.NoError(t, err)

	_, done := p.TrackGate(context.Background(), "G11_RUN_TEST_GATE", "TEST_ATTACH")
	done("FAIL", errors.New("boom"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "gate G11_RUN_TEST_GATE", spans[0].Name())

	var outcome string
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "gate.outcome" {
			outcome = kv.Value.AsString()
		}
	}
	require.Equal(t, "FAIL", outcome)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "shieldcraft.gate.outcomes" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			require.Equal(t, int64(1), sum.DataPoints[0].Value)
			found = true
		}
	}
	require.True(t, found, "gate outcome counter not collected")

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestTracerOnNilProvider(t *testing.T) {
	var p *Provider
	require.NotNil(t, p.Tracer())
	require.NotNil(t, p.Meter())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("debug", "json", &buf)
	log.Debug("hello", "k", "v")
	require.Contains(t, buf.String(), `"msg":"hello"`)
	require.Contains(t, buf.String(), `"service":"shieldcraft"`)

	buf.Reset()
	log = NewLogger("warn", "text", &buf)
	log.Info("dropped")
	require.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
