package importapp

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/portal/internal/domain/bulk"
	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/erp/portal/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ChunkRequest is one sequential import call. Stats is the snapshot returned
// by the previous call; the zero value starts a new import of Total rows.
type ChunkRequest[R any] struct {
	Rows        []RowEnvelope[R]      `json:"rows"`
	Total       int                   `json:"total"`
	Stats       bulk.ImportBatchStats `json:"stats"`
	IsLastBatch bool                  `json:"isLastBatch"`
	Lookups     ReferenceLookup       `json:"-"`
	Actor       string                `json:"-"`
}

// ChunkResponse always carries the next stats snapshot, even when the chunk
// could not be written.
type ChunkResponse struct {
	Stats   bulk.ImportBatchStats `json:"stats"`
	Message string                `json:"message"`
	Err     error                 `json:"-"`
}

// Failed reports whether the chunk write faulted
func (r ChunkResponse) Failed() bool {
	return r.Err != nil
}

// chunkWriter binds the generic chunk run to one entity. transform returns
// the entity or the reasons the row cannot be written.
type chunkWriter[R, E any] struct {
	entity    bulk.ImportEntity
	keyLabel  string
	key       func(R) string
	validate  func(R) []string
	existing  func(ctx context.Context, keys []string) (map[string]struct{}, error)
	transform func(row R, lookups ReferenceLookup, actor string, at time.Time) (E, []string)
	insert    func(ctx context.Context, records []E) (int64, error)
	tags      func(records []E) []string
}

// runChunk validates, transforms and bulk-inserts one chunk and folds the
// outcome into the request's stats. Row failures never abort the chunk; a
// fault while reading existing keys or writing marks every row of the chunk
// as failed with bulk.UnexpectedBatchWriteError and leaves status untouched.
func runChunk[R, E any](ctx context.Context, s *Service, w chunkWriter[R, E], req ChunkRequest[R]) (resp ChunkResponse) {
	stats := req.Stats
	if stats.Status == "" {
		stats = bulk.NewImportBatchStats(req.Total)
	} else if req.Total > 0 {
		stats.Total = req.Total
	}

	log := logger.Or(ctx, s.logger).With(zap.String("entity", string(w.entity)))
	defer func() {
		if r := recover(); r != nil {
			resp = failChunk(ctx, s, log, w.entity, stats, req.Rows, fmt.Errorf("panic: %v", r))
		}
	}()

	keys := make([]string, 0, len(req.Rows))
	for _, env := range req.Rows {
		if k := w.key(env.Row); k != "" {
			keys = append(keys, k)
		}
	}
	existing, err := w.existing(ctx, keys)
	if err != nil {
		return failChunk(ctx, s, log, w.entity, stats, req.Rows, fmt.Errorf("existing keys: %w", err))
	}

	at := s.now()
	var (
		failures []bulk.RowFailure
		valid    = make([]E, 0, len(req.Rows))
		seen     = make(map[string]struct{}, len(req.Rows))
	)
	for _, env := range req.Rows {
		entries := w.validate(env.Row)
		key := w.key(env.Row)
		if key != "" {
			if _, ok := existing[key]; ok {
				entries = append(entries, fmt.Sprintf("%s %q already exists", w.keyLabel, key))
			} else if _, ok := seen[key]; ok {
				entries = append(entries, fmt.Sprintf("%s %q appears more than once in this batch", w.keyLabel, key))
			}
		}
		var record E
		if len(entries) == 0 {
			record, entries = w.transform(env.Row, req.Lookups, req.Actor, at)
		}
		if len(entries) > 0 {
			failures = append(failures, bulk.RowFailure{RowNumber: env.RowNumber, Entries: entries, Row: env.Row})
			continue
		}
		seen[key] = struct{}{}
		valid = append(valid, record)
	}

	var written int64
	if len(valid) > 0 {
		written, err = w.insert(ctx, valid)
		if err != nil {
			return failChunk(ctx, s, log, w.entity, stats, req.Rows, fmt.Errorf("bulk insert: %w", err))
		}
	}

	stats = stats.Apply(bulk.ChunkOutcome{
		Written:     int(written),
		Failures:    failures,
		IsLastBatch: req.IsLastBatch,
	})
	cache.InvalidateQuietly(ctx, s.invalidator, log, w.tags(valid)...)
	if s.metrics != nil {
		s.metrics.RecordImportRows(ctx, string(w.entity), int(written), len(failures))
	}

	log.Debug("Import chunk processed",
		zap.Int("rows", len(req.Rows)),
		zap.Int64("written", written),
		zap.Int("failed", len(failures)),
		zap.Float64("progress", stats.Progress),
		zap.String("status", string(stats.Status)),
	)
	message := fmt.Sprintf("Imported %d of %d rows", stats.Completed, stats.Total)
	if note := req.Lookups.Note(); note != "" {
		message += ". " + note
	}
	return ChunkResponse{Stats: stats, Message: message}
}

func failChunk[R any](ctx context.Context, s *Service, log *zap.Logger, entity bulk.ImportEntity, stats bulk.ImportBatchStats, rows []RowEnvelope[R], cause error) ChunkResponse {
	failures := make([]bulk.RowFailure, len(rows))
	for i, env := range rows {
		failures[i] = bulk.RowFailure{RowNumber: env.RowNumber, Entries: []string{bulk.UnexpectedBatchWriteError}, Row: env.Row}
	}
	log.Error("Import chunk failed", zap.Int("rows", len(rows)), zap.Error(cause))
	if s.metrics != nil {
		s.metrics.RecordImportRows(ctx, string(entity), 0, len(rows))
	}
	return ChunkResponse{
		Stats:   stats.FailChunk(failures),
		Message: "The batch could not be written",
		Err:     cause,
	}
}
