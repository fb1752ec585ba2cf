package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTracedRepo(t *testing.T, next Repository) (*Instrumented, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	repo := NewInstrumented(next, "dynamodb")
	repo.tracer = tp.Tracer(tracerName)
	return repo, recorder
}

func TestInstrumentedRecordsSpans(t *testing.T) {
	inner, err := NewDynamoRepository(newFakeDynamo(), "user-media", testLogger())
	require.NoError(t, err)
	repo, recorder := newTracedRepo(t, inner)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, newItem("u1", "movie:550")))
	err = repo.Add(ctx, newItem("u1", "movie:550"))
	require.ErrorIs(t, err, ErrConflict)
	_, err = repo.List(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, repo.Remove(ctx, "u1", "movie:550"))

	spans := recorder.Ended()
	require.Len(t, spans, 4)
	assert.Equal(t, "store.add", spans[0].Name())
	assert.Equal(t, "store.add", spans[1].Name())
	assert.Equal(t, "store.list", spans[2].Name())
	assert.Equal(t, "store.remove", spans[3].Name())

	// a conflict is an expected outcome and leaves the span status unset
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
}

func TestInstrumentedMarksFailures(t *testing.T) {
	fake := newFakeDynamo()
	fake.failWith = errors.New("boom")
	inner, err := NewDynamoRepository(fake, "user-media", testLogger())
	require.NoError(t, err)
	repo, recorder := newTracedRepo(t, inner)

	err = repo.Remove(context.Background(), "u1", "movie:1")
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
