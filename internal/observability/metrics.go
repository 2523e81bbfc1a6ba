package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MutationMetrics records metrics for record mutation requests.
type MutationMetrics struct {
	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
}

// NewMutationMetrics creates mutation metrics instruments using the
// global meter provider.
func NewMutationMetrics() (*MutationMetrics, error) {
	meter := otel.Meter("cms-records/mutation")

	requestDuration, err := meter.Float64Histogram(
		"mutation.request.duration",
		metric.WithDescription("Duration of record mutation requests"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	requestCounter, err := meter.Int64Counter(
		"mutation.requests.total",
		metric.WithDescription("Total number of record mutation requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"mutation.errors.total",
		metric.WithDescription("Total number of failed record mutation requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	return &MutationMetrics{
		requestDuration: requestDuration,
		requestCounter:  requestCounter,
		errorCounter:    errorCounter,
	}, nil
}

// RecordRequest records the outcome of a single mutation request.
// Outcome is one of "success", "partial_success", or the failure kind.
func (m *MutationMetrics) RecordRequest(ctx context.Context, duration time.Duration, action, table, outcome string) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("table", table),
		attribute.String("outcome", outcome),
	)

	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.requestCounter.Add(ctx, 1, attrs)
	if outcome != "success" && outcome != "partial_success" {
		m.errorCounter.Add(ctx, 1, attrs)
	}
}

type metricsContextKey struct{}

// WithMetrics returns a context carrying the mutation metrics.
func WithMetrics(ctx context.Context, m *MutationMetrics) context.Context {
	return context.WithValue(ctx, metricsContextKey{}, m)
}

// MetricsFromContext returns the mutation metrics from the context,
// or nil when none are attached.
func MetricsFromContext(ctx context.Context) *MutationMetrics {
	m, _ := ctx.Value(metricsContextKey{}).(*MutationMetrics)
	return m
}
