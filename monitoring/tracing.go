package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "brand-analysis-backend"

// TracingConfig describes the tracer provider for one deployment
type TracingConfig struct {
	ServiceName string
	Environment string
	// SampleRatio is the share of root traces kept, 0 to 1
	SampleRatio float64
}

// InitTracing registers a tracer provider that samples root spans by ratio
// and follows the parent decision otherwise
func InitTracing(cfg TracingConfig) (*sdktrace.TracerProvider, error) {
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return nil, fmt.Errorf("trace sample ratio must be between 0 and 1, got %v", cfg.SampleRatio)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		)),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// ShutdownTracing flushes and stops the tracer provider
func ShutdownTracing(tp *sdktrace.TracerProvider, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Error shutting down tracer provider")
	}
}

// CreateSpan starts a span on the service tracer
func CreateSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}

// StartStageSpan starts the child span of one pipeline stage
func StartStageSpan(ctx context.Context, jobID, stage string, timeout time.Duration) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "analysis.stage."+stage, trace.WithAttributes(
		attribute.String("job_id", jobID),
		attribute.String("stage", stage),
		attribute.Int64("timeout_ms", timeout.Milliseconds()),
	))
}

// SetSpanAttributes copies fields onto the span, keeping numeric and boolean
// values typed
func SetSpanAttributes(span trace.Span, fields map[string]interface{}) {
	span.SetAttributes(toAttributes(fields)...)
}

// SetSpanError marks the span failed
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddSpanEvent records a point-in-time event on the span
func AddSpanEvent(span trace.Span, name string, fields map[string]interface{}) {
	span.AddEvent(name, trace.WithAttributes(toAttributes(fields)...))
}

func toAttributes(fields map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	return attrs
}
