package search

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const searchInstrumentationName = "github.com/fyrsmithlabs/knowledged/internal/search"

// Metrics holds similarity-search metrics.
type Metrics struct {
	meter    metric.Meter
	logger   *zap.Logger
	duration metric.Float64Histogram
	scanned  metric.Int64Histogram
	errors   metric.Int64Counter
}

// NewMetrics creates a new Metrics instance for search.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(searchInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"knowledged.search.duration_seconds",
		metric.WithDescription("Duration of a linear-scan similarity search in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.scanned, err = m.meter.Int64Histogram(
		"knowledged.search.records_scanned",
		metric.WithDescription("Number of records scored per search; search cost grows linearly with this"),
		metric.WithUnit("{record}"),
		metric.WithExplicitBucketBoundaries(1, 10, 50, 100, 500, 1000, 5000, 10000),
	)
	if err != nil {
		m.logger.Warn("failed to create scanned histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"knowledged.search.errors_total",
		metric.WithDescription("Total search failures, dominated by store scan errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}
}

// RecordSearch records one search invocation.
func (m *Metrics) RecordSearch(ctx context.Context, duration time.Duration, scanned int, err error) {
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds())
	}
	if scanned > 0 && m.scanned != nil {
		m.scanned.Record(ctx, int64(scanned))
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1)
	}
}
