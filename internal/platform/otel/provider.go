// Package otel configures OpenTelemetry tracing for the match day process.
package otel

import (
	"context"
	"fmt"
	"log"

	"github.com/louisbranch/matchday/internal/platform/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Settings controls trace export. Tracing stays off until an endpoint is set.
type Settings struct {
	Endpoint    string  `env:"MATCHDAY_OTEL_ENDPOINT"`
	Enabled     bool    `env:"MATCHDAY_OTEL_ENABLED"      envDefault:"true"`
	SampleRatio float64 `env:"MATCHDAY_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Active reports whether spans will be exported.
func (s Settings) Active() bool {
	return s.Enabled && s.Endpoint != ""
}

// LoadSettings reads Settings from the environment.
func LoadSettings() (Settings, error) {
	var settings Settings
	if err := config.ParseEnv(&settings); err != nil {
		return Settings{}, err
	}
	if settings.SampleRatio < 0 || settings.SampleRatio > 1 {
		return Settings{}, fmt.Errorf("otel sample ratio must be within [0, 1], got %v", settings.SampleRatio)
	}
	return settings, nil
}

// Setup registers a global tracer provider for serviceName and returns its
// shutdown function, which flushes pending spans. When tracing is inactive
// the shutdown is a no-op and no provider is registered.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	settings, err := LoadSettings()
	if err != nil {
		return noop, err
	}
	if !settings.Active() {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(settings.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("otel exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(settings.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	log.Printf("otel: exporting traces service=%q endpoint=%q ratio=%v", serviceName, settings.Endpoint, settings.SampleRatio)

	return tp.Shutdown, nil
}

// Sampler samples every trace at ratio 1, none at 0 and a trace-id fraction
// otherwise, always following a sampled parent.
func Sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}
