package bulk

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportEntity_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		entity ImportEntity
		want   bool
	}{
		{"items", ImportEntityItems, true},
		{"business partners", ImportEntityBusinessPartners, true},
		{"requisitions", ImportEntityRequisitions, true},
		{"supplier quotes", ImportEntitySupplierQuotes, true},
		{"invalid", ImportEntity("leads"), false},
		{"empty", ImportEntity(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entity.IsValid())
		})
	}
}

func TestImportStatus_IsTerminal(t *testing.T) {
	assert.False(t, ImportStatusPending.IsTerminal())
	assert.False(t, ImportStatusProcessing.IsTerminal())
	assert.True(t, ImportStatusCompleted.IsTerminal())
	assert.True(t, ImportStatusFailed.IsTerminal())
	assert.False(t, ImportStatus("bogus").IsValid())
}

func TestNewImportHistory(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		history, err := NewImportHistory(ImportEntityItems, "items.xlsx", 2048, "jdoe")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, history.ID)
		assert.Equal(t, ImportStatusPending, history.Status)
		assert.Equal(t, "jdoe", history.ImportedBy)
		assert.NotNil(t, history.Errors)
	})

	t.Run("invalid entity", func(t *testing.T) {
		_, err := NewImportHistory(ImportEntity("leads"), "x.xlsx", 1, "jdoe")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid import entity")
	})

	t.Run("empty file name", func(t *testing.T) {
		_, err := NewImportHistory(ImportEntityItems, "", 1, "jdoe")
		require.Error(t, err)
	})

	t.Run("negative size", func(t *testing.T) {
		_, err := NewImportHistory(ImportEntityItems, "x.xlsx", -1, "jdoe")
		require.Error(t, err)
	})
}

func TestImportHistory_Lifecycle(t *testing.T) {
	history, err := NewImportHistory(ImportEntityRequisitions, "reqs.xlsx", 100, "jdoe")
	require.NoError(t, err)

	require.Error(t, history.Record(NewImportBatchStats(3), 10), "cannot record before start")

	require.NoError(t, history.StartProcessing(3))
	assert.NotNil(t, history.StartedAt)
	require.Error(t, history.StartProcessing(3))

	stats := Fold(3,
		ChunkOutcome{Written: 1, Failures: failures(3, 4)},
		ChunkOutcome{IsLastBatch: true},
	)
	require.NoError(t, history.Complete(stats, 1))

	assert.Equal(t, ImportStatusCompleted, history.Status)
	assert.Equal(t, 1, history.CompletedRows)
	assert.Equal(t, 2, history.ErrorRows)
	assert.Len(t, history.Errors, 1, "errors are capped at maxErrors")
	assert.InDelta(t, 33.33, history.SuccessRate(), 0.01)
	assert.GreaterOrEqual(t, history.Duration().Nanoseconds(), int64(0))

	require.Error(t, history.Fail("late"), "terminal state")
}

func TestImportHistory_Fail(t *testing.T) {
	history, err := NewImportHistory(ImportEntityItems, "items.xlsx", 10, "jdoe")
	require.NoError(t, err)

	require.NoError(t, history.Fail("header mismatch"))
	assert.Equal(t, ImportStatusFailed, history.Status)
	assert.Equal(t, "header mismatch", history.FailureReason)
	assert.NotNil(t, history.CompletedAt)
}

func TestImportHistory_ErrorsJSON(t *testing.T) {
	history := &ImportHistory{}
	s, err := history.ErrorsJSON()
	require.NoError(t, err)
	assert.Equal(t, "[]", s)

	history.Errors = []RowFailure{{RowNumber: 5, Entries: []string{"Name is required"}}}
	s, err = history.ErrorsJSON()
	require.NoError(t, err)

	parsed := &ImportHistory{}
	require.NoError(t, parsed.SetErrorsFromJSON(s))
	require.Len(t, parsed.Errors, 1)
	assert.Equal(t, 5, parsed.Errors[0].RowNumber)

	assert.Error(t, parsed.SetErrorsFromJSON("{not json"))
}
