package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitOTel_Disabled(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, logger)

	assert.NoError(t, err)
	assert.Nil(t, providers)
}

func TestInitOTel_MissingEndpoint(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: true}, logger)

	assert.Error(t, err)
	assert.Nil(t, providers)
}

// OTLP exporters connect lazily so initialization succeeds without a collector
func TestInitOTel_WithoutCollector(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	previous := otel.GetTracerProvider()
	defer otel.SetTracerProvider(previous)

	providers, err := InitOTel(context.Background(), OTelConfig{
		Enabled:        true,
		Endpoint:       "localhost:4317",
		ServiceName:    "gantry-test",
		ServiceVersion: "test",
		Insecure:       true,
		SampleRatio:    0.5,
	}, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)
	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.MeterProvider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = ShutdownOTel(ctx, providers, logger)
}

func TestShutdownOTel(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	assert.NoError(t, ShutdownOTel(context.Background(), nil, logger))

	providers := &OTelProviders{
		TracerProvider: sdktrace.NewTracerProvider(),
		MeterProvider:  sdkmetric.NewMeterProvider(),
	}
	assert.NoError(t, ShutdownOTel(context.Background(), providers, logger))
}

func TestStartSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(previous)

	_, span := StartSpan(context.Background(), "storage.list", attribute.String("resource", "Dummy"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "storage.list", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String("resource", "Dummy"))
}

func TestUpdateLoggerWithTraceContext(t *testing.T) {
	t.Run("no span", func(t *testing.T) {
		buf := &bytes.Buffer{}
		UpdateLoggerWithTraceContext(context.Background(), NewLogger(InfoLevel, buf)).Info("hello")
		assert.NotContains(t, buf.String(), "trace_id")
	})

	t.Run("recording span", func(t *testing.T) {
		tracer := sdktrace.NewTracerProvider().Tracer("test")
		ctx, span := tracer.Start(context.Background(), "request")
		defer span.End()

		buf := &bytes.Buffer{}
		UpdateLoggerWithTraceContext(ctx, NewLogger(InfoLevel, buf)).Info("hello")
		assert.Contains(t, buf.String(), span.SpanContext().TraceID().String())
		assert.Contains(t, buf.String(), span.SpanContext().SpanID().String())
	})
}
