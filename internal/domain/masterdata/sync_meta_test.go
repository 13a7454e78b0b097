package masterdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSyncMeta_DefaultsWatermark(t *testing.T) {
	meta := NewSyncMeta(SyncEntityItem)
	assert.Equal(t, DefaultLastSyncAt, meta.LastSyncAt)
	assert.True(t, meta.IsInitial())
}

func TestSyncMeta_AdvanceNeverMovesBackwards(t *testing.T) {
	meta := NewSyncMeta(SyncEntityCustomer)
	later := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	got := meta.Advance(later, "jdoe")
	assert.Equal(t, later, got)
	assert.False(t, meta.IsInitial())

	got = meta.Advance(later.Add(-24*time.Hour), "clock-skew")
	assert.Equal(t, later, got)
	assert.Equal(t, "clock-skew", meta.UpdatedBy)
}

func TestParseSyncEntity(t *testing.T) {
	tests := map[string]SyncEntity{
		"item":      SyncEntityItem,
		"items":     SyncEntityItem,
		"customers": SyncEntityCustomer,
		"C":         SyncEntityCustomer,
		"suppliers": SyncEntitySupplier,
		"S":         SyncEntitySupplier,
	}
	for in, want := range tests {
		got, err := ParseSyncEntity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseSyncEntity("leads")
	assert.Error(t, err)

	pt, ok := SyncEntitySupplier.PartnerType()
	assert.True(t, ok)
	assert.Equal(t, PartnerTypeSupplier, pt)
	_, ok = SyncEntityItem.PartnerType()
	assert.False(t, ok)
}
