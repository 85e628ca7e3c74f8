package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "createsuite"

// Metrics holds all CreateSuite metric instruments.
type Metrics struct {
	PipelinesStarted   metric.Int64Counter
	PipelinesCompleted metric.Int64Counter
	PipelinesFailed    metric.Int64Counter
	WorkersSpawned     metric.Int64Counter
	PhaseDuration      metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.PipelinesStarted, err = meter.Int64Counter("createsuite.pipelines.started",
		metric.WithDescription("Number of pipeline runs started"))
	if err != nil {
		return nil, err
	}

	m.PipelinesCompleted, err = meter.Int64Counter("createsuite.pipelines.completed",
		metric.WithDescription("Number of pipeline runs completed"))
	if err != nil {
		return nil, err
	}

	m.PipelinesFailed, err = meter.Int64Counter("createsuite.pipelines.failed",
		metric.WithDescription("Number of pipeline runs failed"))
	if err != nil {
		return nil, err
	}

	m.WorkersSpawned, err = meter.Int64Counter("createsuite.workers.spawned",
		metric.WithDescription("Number of worker processes spawned"))
	if err != nil {
		return nil, err
	}

	m.PhaseDuration, err = meter.Float64Histogram("createsuite.pipeline.phase_duration_seconds",
		metric.WithDescription("Pipeline phase duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
