// Package telemetry 初始化 OpenTelemetry 链路追踪，并提供对话相关的指标。
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "medidesk-go"

// Metrics 汇总服务的业务指标。
type Metrics struct {
	TurnCount        metric.Int64Counter
	FallbackCount    metric.Int64Counter
	AppointmentCount metric.Int64Counter
	PersistFailCount metric.Int64Counter
}

// Setup 初始化 OTLP gRPC 链路导出，返回关闭函数。endpoint 为空时不导出，返回空操作。
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tracerProvider.Shutdown, nil
}

// InitMetrics 创建业务计数器。未设置 MeterProvider 时使用全局的空实现。
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	turnCount, err := meter.Int64Counter(
		"medidesk.chat.turns",
		metric.WithDescription("Number of completed chat turns"),
	)
	if err != nil {
		return nil, err
	}

	fallbackCount, err := meter.Int64Counter(
		"medidesk.chat.fallbacks",
		metric.WithDescription("Number of turns answered with the fallback text"),
	)
	if err != nil {
		return nil, err
	}

	appointmentCount, err := meter.Int64Counter(
		"medidesk.appointments.submitted",
		metric.WithDescription("Number of appointment requests saved"),
	)
	if err != nil {
		return nil, err
	}

	persistFailCount, err := meter.Int64Counter(
		"medidesk.store.failures",
		metric.WithDescription("Number of failed conversation store writes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		TurnCount:        turnCount,
		FallbackCount:    fallbackCount,
		AppointmentCount: appointmentCount,
		PersistFailCount: persistFailCount,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// Add 在 m 为 nil 时忽略计数，方便测试中不初始化指标。
func Add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}
