package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/wolfeidau/pcfhub"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Inbound protocol events, by event type
	EventsReceivedTotal metric.Int64Counter
	EventsRejectedTotal metric.Int64Counter
	EventHandleDuration metric.Float64Histogram

	// Outbound protocol events, by event type
	EventsSentTotal       metric.Int64Counter
	OutboundFailuresTotal metric.Int64Counter

	// Footprints written, by outcome
	FootprintsIngestedTotal metric.Int64Counter
	FootprintFetchDuration  metric.Float64Histogram

	// Contracts completed
	ContractsEstablishedTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(instrumentationName)

	m := &Metrics{}

	m.EventsReceivedTotal, _ = meter.Int64Counter(
		"pcfhub.events.received.total",
		metric.WithDescription("Total number of inbound events accepted for handling"),
		metric.WithUnit("{event}"),
	)

	m.EventsRejectedTotal, _ = meter.Int64Counter(
		"pcfhub.events.rejected.total",
		metric.WithDescription("Total number of inbound events that failed handling"),
		metric.WithUnit("{event}"),
	)

	m.EventHandleDuration, _ = meter.Float64Histogram(
		"pcfhub.events.handle.duration",
		metric.WithDescription("Duration of inbound event handling"),
		metric.WithUnit("ms"),
	)

	m.EventsSentTotal, _ = meter.Int64Counter(
		"pcfhub.events.sent.total",
		metric.WithDescription("Total number of events delivered to partners"),
		metric.WithUnit("{event}"),
	)

	m.OutboundFailuresTotal, _ = meter.Int64Counter(
		"pcfhub.events.sent.errors.total",
		metric.WithDescription("Total number of failed partner calls"),
		metric.WithUnit("{error}"),
	)

	m.FootprintsIngestedTotal, _ = meter.Int64Counter(
		"pcfhub.footprints.ingested.total",
		metric.WithDescription("Total number of footprints saved or received"),
		metric.WithUnit("{footprint}"),
	)

	m.FootprintFetchDuration, _ = meter.Float64Histogram(
		"pcfhub.footprints.fetch.duration",
		metric.WithDescription("Duration of fetching announced footprints from a partner"),
		metric.WithUnit("ms"),
	)

	m.ContractsEstablishedTotal, _ = meter.Int64Counter(
		"pcfhub.contracts.established.total",
		metric.WithDescription("Total number of partner data sources created from contract replies"),
		metric.WithUnit("{contract}"),
	)

	return m
}
