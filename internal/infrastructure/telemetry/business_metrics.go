package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Business metrics attribute keys
var (
	AttrEntity  = attribute.Key("entity")
	AttrMode    = attribute.Key("mode")
	AttrOutcome = attribute.Key("outcome")
)

// Outcomes used as metric attributes
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeWritten  = "written"
	OutcomeRejected = "rejected"
)

// SyncDurationBuckets are bucket boundaries for sync run duration (seconds)
var SyncDurationBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// BusinessMetrics records master-data sync runs and imported rows
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	syncRuns     *Counter
	syncDuration *Histogram
	syncWritten  *Counter
	importRows   *Counter
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{meter: cfg.Meter, logger: logger}

	var err error
	bm.syncRuns, err = NewCounter(cfg.Meter,
		"portal.sync.runs",
		"Number of master-data sync runs",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	bm.syncDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "portal.sync.duration",
		Description: "Duration of master-data sync runs",
		Unit:        "s",
		Boundaries:  SyncDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	bm.syncWritten, err = NewCounter(cfg.Meter,
		"portal.sync.records",
		"Records written by master-data sync runs",
		"{records}",
	)
	if err != nil {
		return nil, err
	}

	bm.importRows, err = NewCounter(cfg.Meter,
		"portal.import.rows",
		"Spreadsheet rows processed by batch imports",
		"{rows}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// RecordSync records one sync run of entity
func (bm *BusinessMetrics) RecordSync(ctx context.Context, entity, mode string, err error, written int, d time.Duration) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	attrs := []attribute.KeyValue{
		AttrEntity.String(entity),
		AttrMode.String(mode),
		AttrOutcome.String(outcome),
	}
	bm.syncRuns.Inc(ctx, attrs...)
	bm.syncDuration.RecordDuration(ctx, d, attrs...)
	if written > 0 {
		bm.syncWritten.Add(ctx, int64(written), AttrEntity.String(entity), AttrMode.String(mode))
	}
}

// RecordImportRows records the rows of one import chunk
func (bm *BusinessMetrics) RecordImportRows(ctx context.Context, entity string, written, rejected int) {
	if written > 0 {
		bm.importRows.Add(ctx, int64(written), AttrEntity.String(entity), AttrOutcome.String(OutcomeWritten))
	}
	if rejected > 0 {
		bm.importRows.Add(ctx, int64(rejected), AttrEntity.String(entity), AttrOutcome.String(OutcomeRejected))
	}
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
