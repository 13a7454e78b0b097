package importapp_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	importapp "github.com/erp/portal/internal/application/import"
	"github.com/erp/portal/internal/domain/bulk"
	"github.com/erp/portal/internal/domain/masterdata"
	"github.com/erp/portal/internal/domain/shared"
	"github.com/erp/portal/internal/infrastructure/cache"
	"github.com/erp/portal/internal/infrastructure/persistence"
	"github.com/erp/portal/internal/infrastructure/spreadsheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (a *memoryArchive) Put(_ context.Context, key string, data []byte, _ string) error {
	if a.err != nil {
		return a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.objects == nil {
		a.objects = map[string][]byte{}
	}
	a.objects[key] = data
	return nil
}

type fakeReferences struct {
	mu            sync.Mutex
	calls         int
	groupsErr     error
	groups        []masterdata.ItemGroup
	manufacturers []masterdata.Manufacturer
}

func (f *fakeReferences) ItemGroups(context.Context) ([]masterdata.ItemGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.groupsErr != nil {
		return nil, f.groupsErr
	}
	return f.groups, nil
}

func (f *fakeReferences) Manufacturers(context.Context) ([]masterdata.Manufacturer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.manufacturers, nil
}

func newReferences() *importapp.ReferenceProvider {
	src := &fakeReferences{groups: lookups.ItemGroups, manufacturers: lookups.Manufacturers}
	return importapp.NewReferenceProvider(src, cache.NewMemoryTagCache(time.Minute), nil)
}

func writeWorkbook(t *testing.T, layout importapp.Layout, rows [][]any) []byte {
	t.Helper()
	data, err := layout.Writer().Write(rows)
	require.NoError(t, err)
	return data
}

func itemSheet(n int, blankAt int) [][]any {
	rows := make([][]any, n)
	for i := range rows {
		code := fmt.Sprintf("I-%02d", i)
		if i == blankAt {
			code = ""
		}
		rows[i] = []any{code, "Widget " + code, "Items", "Murata", "", "", "pcs"}
	}
	return rows
}

func TestSession_NotesUnavailableReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	histories := persistence.NewGormImportHistoryRepository(f.db)
	src := &fakeReferences{groupsErr: errors.New("service layer down"), manufacturers: lookups.Manufacturers}
	references := importapp.NewReferenceProvider(src, cache.NewMemoryTagCache(time.Minute), nil)
	session := importapp.NewSession(f.svc, references, histories, nil, importapp.SessionConfig{ChunkSize: 5}, nil)

	history, err := session.Run(ctx, importapp.Upload{
		Entity:   bulk.ImportEntityItems,
		FileName: "items.xlsx",
		Data:     writeWorkbook(t, importapp.ItemLayout, itemSheet(3, -1)),
		Actor:    "jdoe",
	})

	require.NoError(t, err)
	assert.Equal(t, bulk.ImportStatusCompleted, history.Status)
	assert.Equal(t, 3, history.ErrorRows, "no group can be resolved")
	assert.Equal(t, "Reference lists unavailable from SAP: item_groups", history.Note)

	stored, err := histories.FindByID(ctx, history.ID)
	require.NoError(t, err)
	assert.Equal(t, history.Note, stored.Note)
}

func TestSession_RunItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	histories := persistence.NewGormImportHistoryRepository(f.db)
	archive := &memoryArchive{}
	session := importapp.NewSession(f.svc, newReferences(), histories, archive, importapp.SessionConfig{ChunkSize: 5}, nil)

	data := writeWorkbook(t, importapp.ItemLayout, itemSheet(12, 7))
	history, err := session.Run(ctx, importapp.Upload{
		Entity:   bulk.ImportEntityItems,
		FileName: "items.xlsx",
		Data:     data,
		Actor:    "jdoe",
	})

	require.NoError(t, err)
	assert.Equal(t, bulk.ImportStatusCompleted, history.Status)
	assert.Equal(t, 12, history.TotalRows)
	assert.Equal(t, 11, history.CompletedRows)
	assert.Equal(t, 1, history.ErrorRows)
	require.Len(t, history.Errors, 1)
	assert.Equal(t, 9, history.Errors[0].RowNumber, "the eighth data row sits on sheet row 9")

	assert.True(t, strings.HasPrefix(history.ObjectKey, "imports/items/"))
	assert.Equal(t, data, archive.objects[history.ObjectKey])

	stored, err := histories.FindByID(ctx, history.ID)
	require.NoError(t, err)
	assert.Equal(t, bulk.ImportStatusCompleted, stored.Status)
	assert.Equal(t, 11, stored.CompletedRows)

	items, err := f.items.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 11)
	assert.Equal(t, 7, items[0].ManufacturerCode)
}

func TestSession_RunHeaderMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	histories := persistence.NewGormImportHistoryRepository(f.db)
	session := importapp.NewSession(f.svc, newReferences(), histories, nil, importapp.SessionConfig{}, nil)

	wrong := importapp.Layout{Sheet: "Items", Columns: spreadsheet.Columns("Code", "Name")}
	history, err := session.Run(ctx, importapp.Upload{
		Entity:   bulk.ImportEntityItems,
		FileName: "items.xlsx",
		Data:     writeWorkbook(t, wrong, [][]any{{"A-1", "One"}}),
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, spreadsheet.ErrHeaderMismatch))
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	require.NotNil(t, history)
	assert.Equal(t, bulk.ImportStatusFailed, history.Status)
	assert.Empty(t, history.ObjectKey)

	stored, err := histories.FindByID(ctx, history.ID)
	require.NoError(t, err)
	assert.Equal(t, bulk.ImportStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.FailureReason)
}

func TestSession_RunStopsAtFaultedChunk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	histories := persistence.NewGormImportHistoryRepository(f.db)
	archive := &memoryArchive{err: errors.New("bucket gone")}
	session := importapp.NewSession(f.service(brokenItems{f.items}), newReferences(), histories, archive, importapp.SessionConfig{ChunkSize: 5}, nil)

	history, err := session.Run(ctx, importapp.Upload{
		Entity:   bulk.ImportEntityItems,
		FileName: "items.xlsx",
		Data:     writeWorkbook(t, importapp.ItemLayout, itemSheet(12, -1)),
	})

	require.Error(t, err)
	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "IMPORT_FAILED", de.Code)
	assert.Equal(t, bulk.ImportStatusFailed, history.Status)
	assert.Equal(t, 5, history.ErrorRows, "only the first chunk was attempted")
	assert.Empty(t, history.ObjectKey, "a failed archive leaves no object key")
}

func TestSession_RunBusinessPartnersWithOrphanRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	histories := persistence.NewGormImportHistoryRepository(f.db)
	session := importapp.NewSession(f.svc, newReferences(), histories, nil, importapp.SessionConfig{}, nil)

	sheet := [][]any{
		{"C100", "ADDRESS", "", "", "", "", "", "", "HQ", "Billing", "Main St 1", "Berlin", "10115", "", "DE"},
		{"C100", "MAIN", "Acme", "Customer", "", "", "", "EUR"},
		{"C200", "ADDRESS", "", "", "", "", "", "", "Depot", "Shipping", "", "Hamburg"},
		{"S300", "main", "Parts Ltd", "Supplier"},
	}
	history, err := session.Run(ctx, importapp.Upload{
		Entity:   bulk.ImportEntityBusinessPartners,
		FileName: "partners.xlsx",
		Data:     writeWorkbook(t, importapp.BusinessPartnerLayout, sheet),
	})

	require.NoError(t, err)
	assert.Equal(t, bulk.ImportStatusCompleted, history.Status)
	assert.Equal(t, 3, history.TotalRows)
	assert.Equal(t, 2, history.CompletedRows)
	require.Len(t, history.Errors, 1)
	assert.Equal(t, 4, history.Errors[0].RowNumber)
	assert.Equal(t, []string{`no MAIN row with ID "C200"`}, history.Errors[0].Entries)

	bp, err := persistence.NewGormBusinessPartnerRepository(f.db).FindByCode(ctx, "C100")
	require.NoError(t, err)
	require.Len(t, bp.Addresses, 1)
	assert.Equal(t, "Berlin", bp.Addresses[0].City)
}

func TestParse_UnknownEntity(t *testing.T) {
	_, err := importapp.Parse(bulk.ImportEntity("products"), nil)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}
