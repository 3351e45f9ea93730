package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "litrev"

// StartSubmitSpan starts a span for a decision submission.
func StartSubmitSpan(ctx context.Context, projectWorkID, phase string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "screening.submit",
		trace.WithAttributes(
			attribute.String("project_work.id", projectWorkID),
			attribute.String("screening.phase", phase),
		),
	)
}

// StartCalibrationSpan starts a span for calibration round completion.
func StartCalibrationSpan(ctx context.Context, roundID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "calibration.complete",
		trace.WithAttributes(
			attribute.String("round.id", roundID),
		),
	)
}
