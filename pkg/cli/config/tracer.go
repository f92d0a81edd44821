package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Tracer holds CLI flags for OpenTelemetry trace export
type Tracer struct {
	endpoint    string
	insecure    bool
	serviceName string
	sampleRate  float64
}

func (t *Tracer) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "otel-endpoint",
			Usage:       "OTLP gRPC endpoint (host:port). Tracing is disabled when empty",
			Category:    "Tracing",
			Sources:     cli.EnvVars("VULNAPPROVAL_OTEL_ENDPOINT"),
			Destination: &t.endpoint,
		},
		&cli.BoolFlag{
			Name:        "otel-insecure",
			Usage:       "Disable TLS for the OTLP connection",
			Category:    "Tracing",
			Sources:     cli.EnvVars("VULNAPPROVAL_OTEL_INSECURE"),
			Destination: &t.insecure,
		},
		&cli.StringFlag{
			Name:        "otel-service-name",
			Usage:       "Service name reported with spans",
			Value:       "vulnapproval",
			Category:    "Tracing",
			Sources:     cli.EnvVars("VULNAPPROVAL_OTEL_SERVICE_NAME"),
			Destination: &t.serviceName,
		},
		&cli.FloatFlag{
			Name:        "otel-sample-rate",
			Usage:       "Fraction of traces to sample (0.0 to 1.0)",
			Value:       1.0,
			Category:    "Tracing",
			Sources:     cli.EnvVars("VULNAPPROVAL_OTEL_SAMPLE_RATE"),
			Destination: &t.sampleRate,
		},
	}
}

func (t Tracer) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("endpoint", t.endpoint),
		slog.Bool("insecure", t.insecure),
		slog.Float64("sample_rate", t.sampleRate),
	)
}

func (t *Tracer) sampler() sdktrace.Sampler {
	switch {
	case t.sampleRate >= 1.0:
		return sdktrace.AlwaysSample()
	case t.sampleRate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(t.sampleRate)
	}
}

// Configure installs the global tracer provider. Without an endpoint the
// no-op provider stays in place. The returned function flushes and stops export.
func (t *Tracer) Configure(ctx context.Context, version string) (func(context.Context) error, error) {
	if t.endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(t.endpoint)}
	if t.insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create trace exporter", goerr.V("endpoint", t.endpoint))
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(t.serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create trace resource")
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(t.sampler()),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	logging.Default().Info("Tracing enabled", "endpoint", t.endpoint)

	return provider.Shutdown, nil
}
