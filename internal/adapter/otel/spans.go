package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "createsuite"

// StartPipelineSpan starts a span for a whole pipeline run.
func StartPipelineSpan(ctx context.Context, pipelineID, repoURL string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "pipeline",
		trace.WithAttributes(
			attribute.String("pipeline.id", pipelineID),
			attribute.String("pipeline.repo_url", repoURL),
		),
	)
}

// StartPhaseSpan starts a span for one pipeline phase.
func StartPhaseSpan(ctx context.Context, pipelineID, phase string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "phase."+phase,
		trace.WithAttributes(
			attribute.String("pipeline.id", pipelineID),
			attribute.String("pipeline.phase", phase),
		),
	)
}
