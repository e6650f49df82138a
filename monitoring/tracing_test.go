package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracingRejectsBadRatio(t *testing.T) {
	_, err := InitTracing(TracingConfig{ServiceName: "test", SampleRatio: 2})
	require.Error(t, err)
}

func TestToAttributesKeepsTypes(t *testing.T) {
	attrs := toAttributes(map[string]interface{}{
		"stage":    "scan",
		"progress": 50,
		"score":    72.5,
		"cached":   true,
		"duration": time.Second,
	})

	byKey := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		byKey[kv.Key] = kv.Value
	}
	assert.Equal(t, attribute.STRING, byKey["stage"].Type())
	assert.Equal(t, int64(50), byKey["progress"].AsInt64())
	assert.Equal(t, 72.5, byKey["score"].AsFloat64())
	assert.True(t, byKey["cached"].AsBool())
	assert.Equal(t, "1s", byKey["duration"].AsString())
}

func TestStageSpanRecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer(tracerName).Start(context.Background(), "analysis.job")
	AddSpanEvent(span, "stage.completed", map[string]interface{}{"stage": "discovery", "progress": 15})
	SetSpanError(span, errors.New("openai: insufficient credits"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "openai: insufficient credits", ended[0].Status().Description)
	require.NotEmpty(t, ended[0].Events())
	assert.Equal(t, "stage.completed", ended[0].Events()[0].Name)
}
