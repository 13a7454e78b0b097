package spreadsheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// DefaultColumnWidth is used for columns declared without a width
const DefaultColumnWidth = 18

// Column is one column of an exported sheet
type Column struct {
	Header string
	Width  float64
}

// Columns builds columns from header names with the default width
func Columns(headers ...string) []Column {
	out := make([]Column, len(headers))
	for i, h := range headers {
		out[i] = Column{Header: h, Width: DefaultColumnWidth}
	}
	return out
}

// Writer renders rows into a one-sheet workbook with a bold header
type Writer struct {
	sheet   string
	columns []Column
}

// NewWriter creates a Writer
func NewWriter(sheet string, columns []Column) *Writer {
	if sheet == "" {
		sheet = "Sheet1"
	}
	return &Writer{sheet: sheet, columns: columns}
}

// Write renders rows and returns the workbook bytes. Each row is written from
// column A; values are stored as given.
func (w *Writer) Write(rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", w.sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"D9E1F2"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]any, len(w.columns))
	for i, col := range w.columns {
		header[i] = col.Header
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		width := col.Width
		if width <= 0 {
			width = DefaultColumnWidth
		}
		if err := f.SetColWidth(w.sheet, name, name, width); err != nil {
			return nil, fmt.Errorf("failed to set width of column %s: %w", name, err)
		}
	}
	if err := f.SetSheetRow(w.sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if len(w.columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(w.columns), 1)
		if err := f.SetCellStyle(w.sheet, "A1", last, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to style header: %w", err)
		}
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		r := row
		if err := f.SetSheetRow(w.sheet, cell, &r); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}
