package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/okstore/commerce-client/internal/config"
)

func TestInitializeOTel_InstallsTracerProvider(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	providers, err := InitializeOTel(config.TracingConfig{Exporter: "stdout", SampleRatio: 0}, logger)
	require.NoError(t, err)
	require.NotNil(t, providers.TracerProvider)
	defer providers.Shutdown(context.Background())

	// Once the provider is installed, handler spans carry real trace
	// context instead of running on the global no-op tracer.
	_, span := otel.Tracer("test").Start(context.Background(), "operation")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.SpanContext().HasTraceID())
}

func TestInitializeOTel_Disabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	providers, err := InitializeOTel(config.TracingConfig{Exporter: "none"}, logger)
	require.NoError(t, err)
	assert.Nil(t, providers.TracerProvider)
	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestInitializeOTel_UnknownExporter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := InitializeOTel(config.TracingConfig{Exporter: "jaeger"}, logger)
	require.Error(t, err)
}
