// Package tracing はOpenTelemetryのTracerProviderを初期化する。
// リポジトリ層はグローバルのTracerProviderからスパンを作成するため、
// ここで設定したプロバイダーを通じてOTLPコレクターへ送信される。
package tracing

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ShutdownFunc は未送信のスパンを送信してプロバイダーを停止する。
type ShutdownFunc func(ctx context.Context) error

// Config はトレーシングの設定。
type Config struct {
	// Endpoint はOTLP/HTTPのトレース受信URL（例: http://otel-collector:4318/v1/traces）。
	// 空の場合はトレーシングを無効にする。
	Endpoint string

	ServiceName string
}

// Setup はOTLP/HTTPエクスポーターを持つTracerProviderをグローバルに設定する。
// Endpointが空の場合は何もせず、何もしないShutdownFuncを返す。
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if cfg.Endpoint == "" {
		slog.Info("tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	slog.Info("tracing enabled",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("service_name", cfg.ServiceName),
	)

	return tp.Shutdown, nil
}
