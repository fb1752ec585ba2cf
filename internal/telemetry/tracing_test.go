package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

func bufferLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger, &buf
}

func TestSetupDisabledKeepsGlobalProvider(t *testing.T) {
	before := otel.GetTracerProvider()
	logger, _ := bufferLogger()

	shutdown := Setup(false, logger)
	assert.Same(t, before, otel.GetTracerProvider())
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupLogsFinishedSpans(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	logger, buf := bufferLogger()
	shutdown := Setup(true, logger)

	_, span := otel.Tracer("test").Start(context.Background(), "store.add")
	span.SetAttributes(attribute.String("media_id", "movie:550"))
	span.End()

	require.NoError(t, shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "Span finished")
	assert.Contains(t, out, `"span":"store.add"`)
	assert.Contains(t, out, `"media_id":"movie:550"`)
}
