package bulk

import "math"

// UnexpectedBatchWriteError is the reason recorded for every row of a chunk
// whose write failed for a reason other than row validation.
const UnexpectedBatchWriteError = "unexpected batch write error"

// BatchStatus is the status of a chunked import as seen by the caller
type BatchStatus string

const (
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
)

// RowFailure describes one spreadsheet row that was not written
type RowFailure struct {
	RowNumber int      `json:"rowNumber"`
	Entries   []string `json:"entries"`
	Row       any      `json:"row,omitempty"`
}

// ImportBatchStats is the accumulator threaded through sequential chunk
// calls. Values are immutable: Apply and FailChunk return a new snapshot and
// never share the Errors backing array with the receiver.
//
// Completed and len(Errors) never decrease. Status becomes completed when a
// chunk flagged as the last one is applied or progress reaches 100, and stays
// completed afterwards.
type ImportBatchStats struct {
	Total     int          `json:"total"`
	Completed int          `json:"completed"`
	Progress  float64      `json:"progress"`
	Errors    []RowFailure `json:"error"`
	Status    BatchStatus  `json:"status"`
}

// ChunkOutcome is what processing one chunk produced
type ChunkOutcome struct {
	Written     int
	Failures    []RowFailure
	IsLastBatch bool
}

// NewImportBatchStats returns the snapshot sent with the first chunk
func NewImportBatchStats(total int) ImportBatchStats {
	if total < 0 {
		total = 0
	}
	return ImportBatchStats{
		Total:  total,
		Errors: []RowFailure{},
		Status: BatchStatusProcessing,
	}
}

// Apply folds a chunk outcome into the snapshot
func (s ImportBatchStats) Apply(o ChunkOutcome) ImportBatchStats {
	next := s.withErrors(o.Failures)
	if o.Written > 0 {
		next.Completed += o.Written
	}
	next.Progress = progressOf(next.Completed, next.Total)
	if next.Status == BatchStatusCompleted || next.Progress >= 100 || o.IsLastBatch {
		next.Status = BatchStatusCompleted
	} else {
		next.Status = BatchStatusProcessing
	}
	return next
}

// FailChunk records a failed chunk write. Completed and Status are left as they were.
func (s ImportBatchStats) FailChunk(failures []RowFailure) ImportBatchStats {
	next := s.withErrors(failures)
	if next.Status == "" {
		next.Status = BatchStatusProcessing
	}
	next.Progress = progressOf(next.Completed, next.Total)
	return next
}

// IsCompleted reports whether the import has reached its terminal status
func (s ImportBatchStats) IsCompleted() bool {
	return s.Status == BatchStatusCompleted
}

// ErrorCount returns the number of failed rows
func (s ImportBatchStats) ErrorCount() int {
	return len(s.Errors)
}

// Fold applies outcomes in order starting from NewImportBatchStats(total)
func Fold(total int, outcomes ...ChunkOutcome) ImportBatchStats {
	stats := NewImportBatchStats(total)
	for _, o := range outcomes {
		stats = stats.Apply(o)
	}
	return stats
}

func (s ImportBatchStats) withErrors(extra []RowFailure) ImportBatchStats {
	errs := make([]RowFailure, 0, len(s.Errors)+len(extra))
	errs = append(errs, s.Errors...)
	errs = append(errs, extra...)
	s.Errors = errs
	return s
}

func progressOf(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(completed) / float64(total) * 100
	return math.Round(p*100) / 100
}
