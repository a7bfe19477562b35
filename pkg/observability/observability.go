// Package observability provides OpenTelemetry tracing and metrics plus the
// slog logger used across the engine.
//
// Exporters are in-process only: callers hand in span processors and metric
// readers. With telemetry disabled the global (no-op) providers are used.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer and meter name.
const InstrumentationName = "shieldcraft.engine"

// Config configures the providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Enabled        bool

	// SpanProcessors receive finished spans (e.g. tracetest.SpanRecorder).
	SpanProcessors []sdktrace.SpanProcessor
	// MetricReader collects metrics (e.g. sdkmetric.NewManualReader()).
	MetricReader sdkmetric.Reader
	// SetGlobal installs the providers as the otel globals.
	SetGlobal bool
}

// DefaultConfig returns a disabled configuration.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "shieldcraft-engine",
		ServiceVersion: "0.0.0",
		Enabled:        false,
	}
}

// Provider owns the trace and metric providers for one engine.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger

	gateCounter  metric.Int64Counter
	errorCounter metric.Int64Counter
	durationHist metric.Float64Histogram
}

// New creates a provider.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Provider{
		config: config,
		logger: slog.Default().With("component", "observability"),
	}

	if !config.Enabled {
		p.tracer = otel.Tracer(InstrumentationName)
		p.meter = otel.Meter(InstrumentationName)
		if err := p.initMetrics(); err != nil {
			return nil, fmt.Errorf("failed to init metrics: %w", err)
		}
		return p, nil
	}

	res := resource.NewSchemaless(
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
	)

	topts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	for _, sp := range config.SpanProcessors {
		topts = append(topts, sdktrace.WithSpanProcessor(sp))
	}
	p.tracerProvider = sdktrace.NewTracerProvider(topts...)

	mopts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if config.MetricReader != nil {
		mopts = append(mopts, sdkmetric.WithReader(config.MetricReader))
	}
	p.meterProvider = sdkmetric.NewMeterProvider(mopts...)

	if config.SetGlobal {
		otel.SetTracerProvider(p.tracerProvider)
		otel.SetMeterProvider(p.meterProvider)
	}

	p.tracer = p.tracerProvider.Tracer(InstrumentationName,
		trace.WithInstrumentationVersion(config.ServiceVersion),
	)
	p.meter = p.meterProvider.Meter(InstrumentationName,
		metric.WithInstrumentationVersion(config.ServiceVersion),
	)

	if err := p.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	p.logger.DebugContext(ctx, "observability initialized",
		"service", config.ServiceName,
		"span_processors", len(config.SpanProcessors),
		"metric_reader", config.MetricReader != nil,
	)
	return p, nil
}

func (p *Provider) initMetrics() error {
	var err error

	p.gateCounter, err = p.meter.Int64Counter("shieldcraft.gate.outcomes",
		metric.WithDescription("Gate outcomes recorded, by gate and outcome"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return err
	}

	p.errorCounter, err = p.meter.Int64Counter("shieldcraft.gate.errors",
		metric.WithDescription("Internal gate errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	p.durationHist, err = p.meter.Float64Histogram("shieldcraft.gate.duration",
		metric.WithDescription("Gate duration in seconds"),
		metric.WithUnit("s"),
	)
	return err
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown trace provider", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown metric provider", "error", err)
		}
	}
	return nil
}

// Tracer returns the configured tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return otel.Tracer(InstrumentationName)
	}
	return p.tracer
}

// Meter returns the configured meter.
func (p *Provider) Meter() metric.Meter {
	if p == nil || p.meter == nil {
		return otel.Meter(InstrumentationName)
	}
	return p.meter
}

// TrackGate opens a span for one gate. The returned function closes it,
// counting the outcome and recording err when non-nil.
func (p *Provider) TrackGate(ctx context.Context, gateID, phase string) (context.Context, func(outcome string, err error)) {
	start := time.Now()
	base := []attribute.KeyValue{
		attribute.String("gate.id", gateID),
		attribute.String("gate.phase", phase),
	}
	ctx, span := p.Tracer().Start(ctx, "gate "+gateID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(base...),
	)

	return ctx, func(outcome string, err error) {
		attrs := append(base, attribute.String("gate.outcome", outcome))
		span.SetAttributes(attribute.String("gate.outcome", outcome))
		if p != nil && p.gateCounter != nil {
			p.gateCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
		}
		if p != nil && p.durationHist != nil {
			p.durationHist.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(base...))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if p != nil && p.errorCounter != nil {
				p.errorCounter.Add(ctx, 1, metric.WithAttributes(base...))
			}
		}
		span.End()
	}
}
