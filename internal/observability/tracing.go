package observability

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/spacecraft-simulator/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// SpanExporterKind selects where finished spans go.
type SpanExporterKind string

const (
	ExportStdout SpanExporterKind = "stdout"
	ExportOTLP   SpanExporterKind = "otlp"
)

const (
	defaultServiceName  = "spacecraft-simulator"
	defaultOTLPEndpoint = "localhost:4317"
	shutdownTimeout     = 5 * time.Second
)

// ParseSpanExporterKind accepts "stdout", "otlp" and "otlpgrpc" in any case.
func ParseSpanExporterKind(s string) (SpanExporterKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stdout":
		return ExportStdout, nil
	case "otlp", "otlpgrpc":
		return ExportOTLP, nil
	}
	return "", fmt.Errorf("unsupported span exporter %q", s)
}

// TracingConfig governs how simulator tracing is initialised.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    SpanExporterKind
	Endpoint    string
	SampleRatio float64

	// Attributes are attached to the resource of every span, e.g. the
	// scenario name.
	Attributes []attribute.KeyValue
}

// TracingConfigFromEnv reads the SIM_TRACING_* variables and SIM_OTLP_ENDPOINT.
// Unparseable values fall back to defaults; an unknown exporter is kept so
// StartTracing can report it.
func TracingConfigFromEnv() TracingConfig {
	cfg := TracingConfig{
		Enabled:     strings.EqualFold(os.Getenv("SIM_TRACING_ENABLED"), "true"),
		ServiceName: defaultServiceName,
		Exporter:    SpanExporterKind(strings.ToLower(os.Getenv("SIM_TRACING_EXPORTER"))),
		Endpoint:    os.Getenv("SIM_OTLP_ENDPOINT"),
		SampleRatio: 1,
	}
	if name := os.Getenv("SIM_TRACING_SERVICE_NAME"); name != "" {
		cfg.ServiceName = name
	}
	if raw := os.Getenv("SIM_TRACING_SAMPLE_RATIO"); raw != "" {
		if r, err := strconv.ParseFloat(raw, 64); err == nil && r >= 0 && r <= 1 {
			cfg.SampleRatio = r
		}
	}
	return cfg
}

// Tracing is an installed global tracer provider.
type Tracing struct {
	shutdown func(context.Context) error
	log      logging.Logger
}

// StartTracing installs the global tracer provider and propagators. With
// tracing disabled a noop provider is installed and the returned Tracing
// has nothing to flush.
func StartTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (*Tracing, error) {
	if log == nil {
		log = logging.Noop()
	}
	t := &Tracing{log: log}

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Debug(ctx, "tracing disabled")
		return t, nil
	}

	kind, err := ParseSpanExporterKind(string(cfg.Exporter))
	if err != nil {
		return nil, err
	}
	exp, err := newSpanExporter(ctx, kind, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", kind, err)
	}

	service := cfg.ServiceName
	if service == "" {
		service = defaultServiceName
	}
	attrs := append([]attribute.KeyValue{
		attribute.String("service.name", service),
		attribute.String("service.namespace", "simulation"),
	}, cfg.Attributes...)
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.shutdown = tp.Shutdown

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", string(kind)),
		logging.String("service_name", service),
		logging.Float64("sample_ratio", cfg.SampleRatio),
	)
	return t, nil
}

func newSpanExporter(ctx context.Context, kind SpanExporterKind, endpoint string) (sdktrace.SpanExporter, error) {
	if kind == ExportOTLP {
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	}
	// Stdout may carry telemetry CSV, so spans go to stderr.
	return stdouttrace.New(
		stdouttrace.WithWriter(os.Stderr),
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithoutTimestamps(),
	)
}

// Enabled reports whether spans are being exported.
func (t *Tracing) Enabled() bool {
	return t != nil && t.shutdown != nil
}

// Close flushes pending spans, bounded by a short timeout. Failures are
// logged, not returned.
func (t *Tracing) Close(ctx context.Context) {
	if !t.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := t.shutdown(ctx); err != nil {
		t.log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
