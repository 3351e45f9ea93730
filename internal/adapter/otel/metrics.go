package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "litrev"

// Metrics holds all litrev metric instruments.
type Metrics struct {
	DecisionsSubmitted metric.Int64Counter
	BatchItemsFailed   metric.Int64Counter
	ConflictsCreated   metric.Int64Counter
	ConflictsResolved  metric.Int64Counter
	RoundsCompleted    metric.Int64Counter
	DecisionLatency    metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.DecisionsSubmitted, err = meter.Int64Counter("litrev.decisions.submitted",
		metric.WithDescription("Number of screening decisions submitted"))
	if err != nil {
		return nil, err
	}

	m.BatchItemsFailed, err = meter.Int64Counter("litrev.batch.items_failed",
		metric.WithDescription("Number of per-item failures in batch submissions"))
	if err != nil {
		return nil, err
	}

	m.ConflictsCreated, err = meter.Int64Counter("litrev.conflicts.created",
		metric.WithDescription("Number of screening conflicts detected"))
	if err != nil {
		return nil, err
	}

	m.ConflictsResolved, err = meter.Int64Counter("litrev.conflicts.resolved",
		metric.WithDescription("Number of screening conflicts resolved"))
	if err != nil {
		return nil, err
	}

	m.RoundsCompleted, err = meter.Int64Counter("litrev.calibration.rounds_completed",
		metric.WithDescription("Number of calibration rounds completed"))
	if err != nil {
		return nil, err
	}

	m.DecisionLatency, err = meter.Float64Histogram("litrev.decision.reviewer_seconds",
		metric.WithDescription("Reviewer-reported time spent per decision in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
