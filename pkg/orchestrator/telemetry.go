package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry wraps the OpenTelemetry instruments Validate emits through,
// all of them nil-safe: a zero-value Telemetry (the default for an
// Orchestrator built with New) turns every call into a no-op, so
// instrumentation is strictly opt-in via WithTelemetry.
type Telemetry struct {
	tracer       trace.Tracer
	validations  metric.Int64Counter
	wallClock    metric.Float64Histogram
}

// NewTelemetry builds a Telemetry reporting through the given meter and
// tracer providers under the "contractguard/orchestrator" instrumentation
// name. Either provider may be nil, in which case otel's global provider
// (a no-op unless one has been registered) is used for that half.
func NewTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (Telemetry, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	meter := mp.Meter("contractguard/orchestrator")

	validations, err := meter.Int64Counter(
		"contractguard.orchestrator.validations",
		metric.WithDescription("validation runs, by resolved strategy and status"),
	)
	if err != nil {
		return Telemetry{}, err
	}

	wallClock, err := meter.Float64Histogram(
		"contractguard.orchestrator.wallclock_seconds",
		metric.WithDescription("Validate wall-clock duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return Telemetry{}, err
	}

	return Telemetry{
		tracer:      tp.Tracer("contractguard/orchestrator"),
		validations: validations,
		wallClock:   wallClock,
	}, nil
}

// WithTelemetry attaches a Telemetry to the Orchestrator. Without a call
// to this method, Validate runs untraced and unmetered.
func (o *Orchestrator) WithTelemetry(t Telemetry) *Orchestrator {
	o.telemetry = t
	return o
}

// startSpan opens a span for one Validate call, naming it after the
// requested strategy so a trace backend can group runs by strategy
// before the adaptive resolution picks a concrete one.
func (t Telemetry) startSpan(ctx context.Context, requested string) (context.Context, trace.Span) {
	if t.tracer == nil {
		return ctx, nil
	}
	return t.tracer.Start(ctx, "orchestrator.Validate", trace.WithAttributes(
		attribute.String("contractguard.strategy_requested", requested),
	))
}

// recordOutcome closes out the metrics half: one validations increment
// tagged with the executed strategy and final status, and one wallclock
// observation. A zero-value Telemetry makes both calls no-ops.
func (t Telemetry) recordOutcome(ctx context.Context, span trace.Span, executed, status string, wallClockSeconds float64) {
	attrs := []attribute.KeyValue{
		attribute.String("contractguard.strategy_executed", executed),
		attribute.String("contractguard.status", status),
	}
	if span != nil {
		span.SetAttributes(attrs...)
		span.End()
	}
	if t.validations != nil {
		t.validations.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if t.wallClock != nil {
		t.wallClock.Record(ctx, wallClockSeconds, metric.WithAttributes(attrs...))
	}
}
