package store

import (
	"context"
	"errors"
	"time"

	"github.com/amaumene/towatch/internal/metrics"
	"github.com/amaumene/towatch/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/amaumene/towatch/internal/store"

// Instrumented wraps a Repository with tracing spans and Prometheus metrics
type Instrumented struct {
	next    Repository
	backend string
	tracer  trace.Tracer
}

// NewInstrumented decorates next. backend labels the emitted metrics.
func NewInstrumented(next Repository, backend string) *Instrumented {
	return &Instrumented{
		next:    next,
		backend: backend,
		tracer:  otel.Tracer(tracerName),
	}
}

// Add implements Repository
func (r *Instrumented) Add(ctx context.Context, item *models.ToWatchItem) error {
	ctx, span := r.start(ctx, "add", item.UserID, attribute.String("media.id", item.MediaID))
	start := time.Now()
	err := r.next.Add(ctx, item)
	r.finish(span, "add", start, err)
	return err
}

// List implements Repository
func (r *Instrumented) List(ctx context.Context, userID string) ([]models.ToWatchItem, error) {
	ctx, span := r.start(ctx, "list", userID)
	start := time.Now()
	items, err := r.next.List(ctx, userID)
	span.SetAttributes(attribute.Int("items.count", len(items)))
	r.finish(span, "list", start, err)
	return items, err
}

// Remove implements Repository
func (r *Instrumented) Remove(ctx context.Context, userID, mediaID string) error {
	ctx, span := r.start(ctx, "remove", userID, attribute.String("media.id", mediaID))
	start := time.Now()
	err := r.next.Remove(ctx, userID, mediaID)
	r.finish(span, "remove", start, err)
	return err
}

func (r *Instrumented) start(ctx context.Context, op, userID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("store.backend", r.backend),
		attribute.String("user.id", userID),
	)
	return r.tracer.Start(ctx, "store."+op, trace.WithAttributes(attrs...))
}

func (r *Instrumented) finish(span trace.Span, op string, start time.Time, err error) {
	defer span.End()

	outcome := "ok"
	switch {
	case errors.Is(err, ErrConflict):
		// expected outcome, not a span error
		outcome = "conflict"
	case err != nil:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	metrics.StoreOperationsTotal.WithLabelValues(r.backend, op, outcome).Inc()
	metrics.StoreOperationDuration.WithLabelValues(r.backend, op).Observe(time.Since(start).Seconds())
}
