package tracing

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Config параметры экспорта трасс.
type Config struct {
	ExporterURL string
	ServiceName string
	Environment string
	SampleRate  float64
}

// InitTracer настраивает глобальный TracerProvider с экспортом по OTLP/HTTP.
// Возвращает функцию остановки, которая дописывает накопленные спаны.
func InitTracer(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	client := otlptracehttp.NewClient(otlptracehttp.WithEndpoint(cfg.ExporterURL), otlptracehttp.WithInsecure())
	exporter, err := otlptrace.New(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации OTLP экспортера: %w", err)
	}

	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 1
	}

	tp := trace.NewTracerProvider(
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(rate))),
		trace.WithBatcher(exporter),
		trace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// WrapHTTPHandler оборачивает HTTP-хендлер в OpenTelemetry middleware.
func WrapHTTPHandler(handler http.Handler) http.Handler {
	return otelhttp.NewHandler(handler, "http-server")
}
