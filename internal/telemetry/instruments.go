package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instruments are the pipeline's metric instruments. A nil *Instruments
// records nothing, so callers never need to check.
type Instruments struct {
	generatorCalls metric.Int64Counter
	batchFailures  metric.Int64Counter
	fallbacks      metric.Int64Counter
	corrections    metric.Int64Counter
	stageDuration  metric.Float64Histogram
}

// NewInstruments creates the pipeline instruments on meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	var (
		in  Instruments
		err error
	)
	if in.generatorCalls, err = meter.Int64Counter("procure.generator.calls",
		metric.WithDescription("Content generator calls by role and outcome"),
	); err != nil {
		return nil, err
	}
	if in.batchFailures, err = meter.Int64Counter("procure.batch.failures",
		metric.WithDescription("Supplier batches that exhausted their retries"),
	); err != nil {
		return nil, err
	}
	if in.fallbacks, err = meter.Int64Counter("procure.fallbacks",
		metric.WithDescription("Stages completed from locally synthesized data"),
	); err != nil {
		return nil, err
	}
	if in.corrections, err = meter.Int64Counter("procure.corrections",
		metric.WithDescription("Generator figures replaced by the reconciler"),
	); err != nil {
		return nil, err
	}
	if in.stageDuration, err = meter.Float64Histogram("procure.stage.duration",
		metric.WithDescription("Wall time per pipeline stage (ms)"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	return &in, nil
}

// GeneratorCall records one generator call for role.
func (in *Instruments) GeneratorCall(ctx context.Context, role string, ok bool) {
	if in == nil {
		return
	}
	in.generatorCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("role", role),
		attribute.Bool("ok", ok),
	))
}

// BatchFailure records a batch that gave up.
func (in *Instruments) BatchFailure(ctx context.Context) {
	if in == nil {
		return
	}
	in.batchFailures.Add(ctx, 1)
}

// Fallback records a synthesized stage result.
func (in *Instruments) Fallback(ctx context.Context, stage string) {
	if in == nil {
		return
	}
	in.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// Correction records one reconciler correction of field.
func (in *Instruments) Correction(ctx context.Context, field string) {
	if in == nil {
		return
	}
	in.corrections.Add(ctx, 1, metric.WithAttributes(attribute.String("field", field)))
}

// StageDuration records how long stage took.
func (in *Instruments) StageDuration(ctx context.Context, stage string, d time.Duration) {
	if in == nil {
		return
	}
	in.stageDuration.Record(ctx, float64(d.Microseconds())/1000, metric.WithAttributes(
		attribute.String("stage", stage),
	))
}
