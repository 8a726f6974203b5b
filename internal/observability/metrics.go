package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitMetrics installs a global meter provider exporting to the default
// Prometheus registry (served by promhttp.Handler).
func InitMetrics(ctx context.Context, serviceName string) (*sdkmetric.MeterProvider, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating Prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Meter returns the service meter from the current global provider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Metrics holds the instruments recorded by the conversation service.
type Metrics struct {
	streams        metric.Int64Counter
	chunks         metric.Int64Counter
	aborted        metric.Int64Counter
	fetches        metric.Int64Counter
	streamDuration metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	streams, err := meter.Int64Counter("graphchat.streams",
		metric.WithDescription("Completed streamed replies"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("creating streams counter: %w", err)
	}

	chunks, err := meter.Int64Counter("graphchat.chunks",
		metric.WithDescription("Chunks written to reply streams"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("creating chunks counter: %w", err)
	}

	aborted, err := meter.Int64Counter("graphchat.streams.aborted",
		metric.WithDescription("Replies abandoned before the final chunk"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("creating aborted counter: %w", err)
	}

	fetches, err := meter.Int64Counter("graphchat.transcript.fetches",
		metric.WithDescription("Transcript fetches"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("creating fetches counter: %w", err)
	}

	duration, err := meter.Float64Histogram("graphchat.stream.duration",
		metric.WithDescription("Wall time from first to final chunk"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &Metrics{
		streams:        streams,
		chunks:         chunks,
		aborted:        aborted,
		fetches:        fetches,
		streamDuration: duration,
	}, nil
}

// A nil *Metrics records nothing.

func (m *Metrics) StreamCompleted(ctx context.Context, kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	m.streams.Add(ctx, 1, attrs)
	m.streamDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) StreamAborted(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.aborted.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) ChunkWritten(ctx context.Context, partial bool) {
	if m == nil {
		return
	}
	m.chunks.Add(ctx, 1, metric.WithAttributes(attribute.Bool("partial", partial)))
}

func (m *Metrics) TranscriptFetched(ctx context.Context) {
	if m == nil {
		return
	}
	m.fetches.Add(ctx, 1)
}
