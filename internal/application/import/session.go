package importapp

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/erp/portal/internal/domain/bulk"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/logger"
	"github.com/erp/portal/internal/infrastructure/storage"
	"github.com/erp/portal/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultChunkSize is the number of rows sent per chunk
const DefaultChunkSize = 5

// Archive stores uploaded workbooks
type Archive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Upload is a workbook submitted for a server-driven import
type Upload struct {
	Entity   bulk.ImportEntity
	FileName string
	Data     []byte
	Actor    string
}

// Session drives a whole import on the server: it parses the workbook,
// archives it, records an ImportHistory and folds the chunks in sequence.
type Session struct {
	service    *Service
	references *ReferenceProvider
	histories  bulk.ImportHistoryRepository
	archive    Archive
	chunkSize  int
	maxErrors  int
	logger     *zap.Logger
}

// SessionConfig holds the session settings
type SessionConfig struct {
	ChunkSize int
	MaxErrors int
}

// NewSession creates a Session. A nil archive skips archiving.
func NewSession(service *Service, references *ReferenceProvider, histories bulk.ImportHistoryRepository, archive Archive, cfg SessionConfig, l *zap.Logger) *Session {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &Session{
		service:    service,
		references: references,
		histories:  histories,
		archive:    archive,
		chunkSize:  cfg.ChunkSize,
		maxErrors:  cfg.MaxErrors,
		logger:     l,
	}
}

// Parse reads a workbook of entity into typed rows. The result is a
// Parsed value of the entity's row type.
func Parse(entity bulk.ImportEntity, data []byte) (ParseResult, error) {
	layout, ok := LayoutFor(entity)
	if !ok {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown import entity: %q", entity))
	}
	records, err := layout.Reader().Read(bytes.NewReader(data))
	if err != nil {
		return nil, shared.WrapDomainError("INVALID_INPUT", err.Error(), err)
	}
	switch entity {
	case bulk.ImportEntityItems:
		return ItemRows(records), nil
	case bulk.ImportEntityBusinessPartners:
		return BusinessPartnerRows(records), nil
	case bulk.ImportEntityRequisitions:
		return RequisitionRows(records), nil
	default:
		return SupplierQuoteRows(records), nil
	}
}

// Run imports the upload and returns its final history record. Parse errors
// fail the history; a faulted chunk stops the run after recording its rows.
func (s *Session) Run(ctx context.Context, up Upload) (history *bulk.ImportHistory, err error) {
	ctx, span := telemetry.StartSpan(ctx, "import.run",
		attribute.String("import.entity", string(up.Entity)),
		attribute.Int("import.size", len(up.Data)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	telemetry.WithProfilingLabels(ctx, func(ctx context.Context) {
		history, err = s.run(ctx, up)
	}, "operation", "import", "entity", string(up.Entity))
	return history, err
}

func (s *Session) run(ctx context.Context, up Upload) (*bulk.ImportHistory, error) {
	log := logger.Or(ctx, s.logger).With(zap.String("entity", string(up.Entity)), zap.String("file", up.FileName))

	history, err := bulk.NewImportHistory(up.Entity, up.FileName, int64(len(up.Data)), up.Actor)
	if err != nil {
		return nil, err
	}
	if s.archive != nil {
		key := storage.ArchiveKey("imports", string(up.Entity), up.FileName, history.CreatedAt)
		if err := s.archive.Put(ctx, key, up.Data, storage.XLSXContentType); err != nil {
			log.Warn("Failed to archive upload", zap.Error(err))
		} else {
			history.AttachObject(key)
		}
	}
	if err := s.histories.Save(ctx, history); err != nil {
		return nil, fmt.Errorf("failed to save import history: %w", err)
	}

	parsed, err := Parse(up.Entity, up.Data)
	if err != nil {
		_ = history.Fail(err.Error())
		s.save(ctx, log, history)
		return history, err
	}

	lookups := s.references.Load(ctx)
	if note := lookups.Note(); note != "" {
		history.AddNote(note)
		log.Warn("Importing without reference lists", zap.Strings("unavailable", lookups.Unavailable))
	}
	actor := up.Actor

	var stats bulk.ImportBatchStats
	var runErr error
	switch p := parsed.(type) {
	case Parsed[ItemRow]:
		stats, runErr = foldChunks(ctx, s, history, p, lookups, actor, s.service.ImportItems)
	case Parsed[BusinessPartnerRow]:
		stats, runErr = foldChunks(ctx, s, history, p, lookups, actor, s.service.ImportBusinessPartners)
	case Parsed[RequisitionRow]:
		stats, runErr = foldChunks(ctx, s, history, p, lookups, actor, s.service.ImportRequisitions)
	case Parsed[SupplierQuoteRow]:
		stats, runErr = foldChunks(ctx, s, history, p, lookups, actor, s.service.ImportSupplierQuotes)
	}

	if runErr != nil {
		_ = history.Fail(runErr.Error())
		s.save(ctx, log, history)
		return history, shared.WrapDomainError("IMPORT_FAILED", "Import stopped because a batch could not be written", runErr)
	}
	if err := history.Complete(stats, s.maxErrors); err != nil {
		return history, err
	}
	s.save(ctx, log, history)

	log.Info("Import completed",
		zap.Int("total", stats.Total),
		zap.Int("completed", stats.Completed),
		zap.Int("failed", stats.ErrorCount()),
		zap.Duration("duration", history.Duration()),
	)
	return history, nil
}

// foldChunks threads the stats through every chunk of p in order
func foldChunks[R any](
	ctx context.Context,
	s *Session,
	history *bulk.ImportHistory,
	p Parsed[R],
	lookups ReferenceLookup,
	actor string,
	importChunk func(context.Context, ChunkRequest[R]) ChunkResponse,
) (bulk.ImportBatchStats, error) {
	log := logger.Or(ctx, s.logger)
	if err := history.StartProcessing(p.Total); err != nil {
		return bulk.ImportBatchStats{}, err
	}

	stats := bulk.NewImportBatchStats(p.Total)
	if len(p.Failures) > 0 || len(p.Rows) == 0 {
		stats = stats.Apply(bulk.ChunkOutcome{Failures: p.Failures, IsLastBatch: len(p.Rows) == 0})
	}

	for start := 0; start < len(p.Rows); start += s.chunkSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		end := min(start+s.chunkSize, len(p.Rows))
		resp := importChunk(ctx, ChunkRequest[R]{
			Rows:        p.Rows[start:end],
			Total:       p.Total,
			Stats:       stats,
			IsLastBatch: end == len(p.Rows),
			Lookups:     lookups,
			Actor:       actor,
		})
		stats = resp.Stats
		if err := history.Record(stats, s.maxErrors); err != nil {
			return stats, err
		}
		if resp.Failed() {
			return stats, resp.Err
		}
		s.save(ctx, log, history)
	}
	return stats, nil
}

// save persists progress; a failed progress write does not stop the import
func (s *Session) save(ctx context.Context, log *zap.Logger, history *bulk.ImportHistory) {
	history.UpdatedAt = time.Now()
	if err := s.histories.Save(ctx, history); err != nil {
		log.Warn("Failed to save import history", zap.String("id", history.ID.String()), zap.Error(err))
	}
}
