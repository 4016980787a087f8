package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Run tracks one execution of a recipe: its span, its duration and the
// run metrics.
type Run struct {
	Recipe    string
	RunID     string
	RequestID string
	StartTime time.Time
	Metrics   *Metrics
}

// NewRun creates a run. If metrics is nil, metric recording is skipped.
func NewRun(recipe, runID, requestID string, metrics *Metrics) *Run {
	return &Run{
		Recipe:    recipe,
		RunID:     runID,
		RequestID: requestID,
		StartTime: time.Now(),
		Metrics:   metrics,
	}
}

type runKey struct{}

// WithRun stores a Run in the context.
func WithRun(ctx context.Context, r *Run) context.Context {
	return context.WithValue(ctx, runKey{}, r)
}

// RunFromContext retrieves the Run from context, or nil.
func RunFromContext(ctx context.Context) *Run {
	if r, ok := ctx.Value(runKey{}).(*Run); ok {
		return r
	}
	return nil
}

// Start opens the recipe.run span and stores the run in the returned context.
func (r *Run) Start(ctx context.Context) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, SpanRecipeRun)
	span.SetAttributes(
		attribute.String(AttrRecipe, r.Recipe),
		attribute.String(AttrRunID, r.RunID),
	)
	if r.RequestID != "" {
		span.SetAttributes(attribute.String(AttrRequestID, r.RequestID))
	}
	return WithRun(ctx, r), span
}

// End closes the span and records the run outcome. rows is the number of
// rows written.
func (r *Run) End(ctx context.Context, span trace.Span, rows int, err error) {
	duration := time.Since(r.StartTime)
	status := "ok"
	if err != nil {
		status = "error"
		SetSpanError(trace.ContextWithSpan(ctx, span), err)
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}

	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int(AttrRows, rows),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	span.End()

	if r.Metrics != nil {
		r.Metrics.RecordRun(ctx, r.Recipe, status, duration)
	}
}

// Duration returns the elapsed time since the run started.
func (r *Run) Duration() time.Duration {
	return time.Since(r.StartTime)
}
