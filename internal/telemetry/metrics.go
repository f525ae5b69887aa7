package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/certifychain/certifychain"
)

// Metrics holds the client's OpenTelemetry instruments.
type Metrics struct {
	// HTTP
	RequestsTotal   metric.Int64Counter
	RequestDuration metric.Float64Histogram

	// Session
	RefreshTotal         metric.Int64Counter
	RefreshErrorsTotal   metric.Int64Counter
	ReplaysTotal         metric.Int64Counter
	SessionsExpiredTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary.
// Instruments created before InitTelemetry delegate to the provider it installs.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.RequestsTotal, _ = meter.Int64Counter(
		"certifychain.client.requests.total",
		metric.WithDescription("Total number of API requests"),
		metric.WithUnit("{request}"),
	)

	m.RequestDuration, _ = meter.Float64Histogram(
		"certifychain.client.request.duration",
		metric.WithDescription("Duration of API requests"),
		metric.WithUnit("ms"),
	)

	m.RefreshTotal, _ = meter.Int64Counter(
		"certifychain.session.refresh.total",
		metric.WithDescription("Total number of refresh token exchanges"),
		metric.WithUnit("{exchange}"),
	)

	m.RefreshErrorsTotal, _ = meter.Int64Counter(
		"certifychain.session.refresh.errors.total",
		metric.WithDescription("Total number of failed refresh token exchanges"),
		metric.WithUnit("{error}"),
	)

	m.ReplaysTotal, _ = meter.Int64Counter(
		"certifychain.session.replays.total",
		metric.WithDescription("Total number of requests replayed after a refresh"),
		metric.WithUnit("{request}"),
	)

	m.SessionsExpiredTotal, _ = meter.Int64Counter(
		"certifychain.session.expired.total",
		metric.WithDescription("Total number of sessions cleared after refresh failure"),
		metric.WithUnit("{session}"),
	)

	return m
}
