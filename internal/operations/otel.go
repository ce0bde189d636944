package operations

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"maizemap/internal/infrastructure"
)

const (
	TracerName = "maizemap.operations"
)

// OperationTracer records spans and metrics for a pipeline run. A nil
// providers value yields a tracer that records nothing.
type OperationTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
	runtime *infrastructure.RuntimeMetrics
}

// NewOperationTracer creates a tracer from initialised providers
func NewOperationTracer(providers *infrastructure.OTelProviders) (*OperationTracer, error) {
	if providers == nil {
		return &OperationTracer{tracer: noop.NewTracerProvider().Tracer(TracerName)}, nil
	}

	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		return nil, err
	}
	rt, err := infrastructure.NewRuntimeMetrics(providers.Meter)
	if err != nil {
		return nil, err
	}

	return &OperationTracer{
		tracer:  providers.Tracer,
		metrics: metrics,
		runtime: rt,
	}, nil
}

// Metrics returns the pipeline instruments, nil when telemetry is off
func (pt *OperationTracer) Metrics() *infrastructure.PipelineMetrics {
	return pt.metrics
}

// TraceRun starts the root span of a run
func (pt *OperationTracer) TraceRun(ctx context.Context, state *OperationState) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", state.ID),
			attribute.String("run.anchor", state.Settings.Anchor),
			attribute.Int("run.observations", len(state.Observations)),
			attribute.Int("run.methods", len(state.Settings.Methods)),
		),
	)
}

// TraceStep starts the span of one step
func (pt *OperationTracer) TraceStep(ctx context.Context, runID string, step Step) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "pipeline.step."+step.ID(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("step.id", step.ID()),
			attribute.String("step.name", step.Name()),
		),
	)
}

// EndStep closes a step span, copies the step metadata onto it and records
// the step metrics. ctx must carry the step span.
func (pt *OperationTracer) EndStep(ctx context.Context, span trace.Span, stepID string, duration time.Duration, metadata map[string]interface{}, err error) {
	infrastructure.RecordStepMetrics(ctx, pt.metrics, stepID, duration, err)
	if len(metadata) > 0 {
		attrs := make(map[string]interface{}, len(metadata))
		for k, v := range metadata {
			attrs["step."+k] = v
		}
		infrastructure.SetSpanAttributes(ctx, attrs)
	}
	if pt.runtime != nil {
		stats := pt.runtime.Collect(ctx)
		span.SetAttributes(
			attribute.Int("runtime.goroutines", stats.Goroutines),
			attribute.Int64("runtime.heap_inuse_bytes", int64(stats.HeapInUse)),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "step completed")
	}
	span.End()
}

// EndRun closes the root span and records the run metrics
func (pt *OperationTracer) EndRun(ctx context.Context, span trace.Span, state *OperationState) {
	duration := state.Duration()
	infrastructure.RecordRunMetrics(ctx, pt.metrics, state.ID, duration, state.Error)

	span.SetAttributes(
		attribute.String("run.status", string(state.Status)),
		attribute.Float64("run.duration_seconds", duration.Seconds()),
	)
	if state.Error != nil {
		span.RecordError(state.Error)
		span.SetStatus(codes.Error, state.Error.Error())
	} else {
		span.SetStatus(codes.Ok, "run completed")
	}
	span.End()
}
