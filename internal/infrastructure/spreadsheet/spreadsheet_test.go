package spreadsheet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var itemHeader = []string{"Item Code", "Item Name", "MPN"}

func workbook(t *testing.T, header []string, rows ...[]any) []byte {
	t.Helper()
	data, err := NewWriter("Items", Columns(header...)).Write(rows)
	require.NoError(t, err)
	return data
}

func TestReader_Read(t *testing.T) {
	data := workbook(t, []string{" item  code ", "ITEM NAME *", "MPN"},
		[]any{"A-1", "Capacitor", "C0805"},
		[]any{"", "", ""},
		[]any{"A-2", "  Resistor  "},
	)

	records, err := NewReader(itemHeader).Read(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 2, records[0].RowNumber)
	assert.Equal(t, "C0805", records[0].Get("MPN"))
	assert.Equal(t, 4, records[1].RowNumber, "blank rows keep later row numbers")
	assert.Equal(t, "Resistor", records[1].Get("Item Name"))
	assert.Equal(t, "", records[1].Get("MPN"))
}

func TestReader_HeaderMismatch(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		column int
	}{
		{name: "swapped columns", header: []string{"Item Name", "Item Code", "MPN"}, column: 1},
		{name: "missing column", header: []string{"Item Code", "Item Name"}, column: 3},
		{name: "extra column", header: []string{"Item Code", "Item Name", "MPN", "Notes"}, column: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(itemHeader).Read(bytes.NewReader(workbook(t, tt.header)))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrHeaderMismatch))

			var mismatch *HeaderMismatchError
			require.True(t, errors.As(err, &mismatch))
			assert.Equal(t, tt.column, mismatch.Column)
		})
	}
}

func TestReader_InvalidFile(t *testing.T) {
	_, err := NewReader(itemHeader).Read(bytes.NewReader([]byte("code,name\nA-1,x\n")))
	assert.True(t, errors.Is(err, ErrInvalidFile))
}

func TestReader_RawNumbers(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Item Code", "Item Name", "MPN"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{1001, "Numbered", 12.5}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	records, err := NewReader(itemHeader).Read(buf)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1001", records[0].Get("Item Code"))
	assert.Equal(t, "12.5", records[0].Get("MPN"))
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "item code", NormalizeHeader("  Item\tCode *"))
	assert.Equal(t, NormalizeHeader("ITEM CODE"), NormalizeHeader("ＩＴＥＭ CODE"))
	assert.NotEqual(t, NormalizeHeader("Item Code"), NormalizeHeader("ItemCode"))
}

func rec(row int, id, rowType string) Record {
	return Record{RowNumber: row, Cells: map[string]string{"ID": id, "Row Type": rowType}}
}

func TestGroupByRowType(t *testing.T) {
	records := []Record{
		rec(2, "REQ-1", "MAIN"),
		rec(3, "REQ-1", "REQUESTED_ITEM"),
		rec(4, "REQ-2", "requested_item"),
		rec(5, "REQ-2", "MAIN"),
		rec(6, "REQ-9", "REQUESTED_ITEM"),
		rec(7, "REQ-1", "MAIN"),
		rec(8, "REQ-3", "NOTE"),
		rec(9, "", "MAIN"),
		rec(10, "REQ-1", "REQUESTED_ITEM"),
	}

	groups, errs := GroupByRowType(records, "ID", "Row Type", "MAIN", "REQUESTED_ITEM")
	require.Len(t, groups, 2)
	assert.Equal(t, "REQ-1", groups[0].ID)
	assert.Equal(t, []int{2, 3, 10}, groups[0].RowNumbers())
	assert.Equal(t, "REQ-2", groups[1].ID)
	assert.Equal(t, []int{5, 4}, groups[1].RowNumbers(), "children may precede their main row")

	rows := make([]int, len(errs))
	for i, e := range errs {
		rows[i] = e.RowNumber
	}
	assert.ElementsMatch(t, []int{6, 7, 8, 9}, rows)
}

func TestWriter_Layout(t *testing.T) {
	data, err := NewWriter("Export", []Column{{Header: "Item Code", Width: 30}, {Header: "Item Name"}}).
		Write([][]any{{"A-1", "One"}})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Export"}, f.GetSheetList())
	width, err := f.GetColWidth("Export", "A")
	require.NoError(t, err)
	assert.Equal(t, 30.0, width)
	width, err = f.GetColWidth("Export", "B")
	require.NoError(t, err)
	assert.Equal(t, float64(DefaultColumnWidth), width)

	styleID, err := f.GetCellStyle("Export", "B1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)

	v, err := f.GetCellValue("Export", "A2")
	require.NoError(t, err)
	assert.Equal(t, "A-1", v)
}
