package logger

import (
	"net/http"
	"os"
	"time"

	"github.com/certifychain/certifychain/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RequestIDHeader carries a per-request identifier to the backend.
const RequestIDHeader = "X-Request-ID"

func Setup(dev bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

var _ http.RoundTripper = (*RoundTripper)(nil)

// RoundTripper logs each HTTP exchange and records request metrics.
type RoundTripper struct {
	next   http.RoundTripper
	logger zerolog.Logger
}

func NewRoundTripper(next http.RoundTripper, logger zerolog.Logger) *RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &RoundTripper{next: next, logger: logger}
}

func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	started := time.Now()

	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, requestID)
	}

	resp, err := rt.next.RoundTrip(req)

	duration := time.Since(started)
	m := telemetry.GetMetrics()

	if err != nil {
		m.RequestsTotal.Add(req.Context(), 1, metric.WithAttributes(
			attribute.String("method", req.Method),
			attribute.String("outcome", "error"),
		))

		rt.logger.Error().
			Err(err).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Str("request_id", requestID).
			Dur("duration", duration).
			Msg("http request")

		return resp, err
	}

	m.RequestsTotal.Add(req.Context(), 1, metric.WithAttributes(
		attribute.String("method", req.Method),
		attribute.Int("status", resp.StatusCode),
	))
	m.RequestDuration.Record(req.Context(), float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String("method", req.Method),
	))

	rt.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Dur("duration", duration).
		Msg("http request")

	return resp, nil
}
