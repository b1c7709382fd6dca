package root

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/docflowhq/docflow/pkg/version"
)

const appName = "docflow"

// initOTelSDK initializes the OpenTelemetry SDK with an OTLP exporter. The
// exporter is only wired when OTEL_EXPORTER_OTLP_ENDPOINT is set; without
// it the tracer provider records spans but exports nothing.
func initOTelSDK(ctx context.Context) error {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(appName),
			semconv.ServiceVersion(version.Version),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var traceExporter trace.SpanExporter
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		traceExporter, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
	}

	opts := []trace.TracerProviderOption{trace.WithResource(res)}
	if traceExporter != nil {
		opts = append(opts,
			trace.WithBatcher(traceExporter,
				trace.WithBatchTimeout(5*time.Second),
				trace.WithMaxExportBatchSize(512),
			),
		)
	}

	tp := trace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	go func() {
		<-ctx.Done()
		if err := tp.Shutdown(context.Background()); err != nil {
			slog.Debug("tracer provider shutdown", "error", err)
		}
	}()

	return nil
}
