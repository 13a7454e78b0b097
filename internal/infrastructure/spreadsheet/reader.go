// Package spreadsheet reads and writes the single-sheet xlsx workbooks used
// for master-data and sales imports and exports.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Reader errors
var (
	ErrHeaderMismatch = errors.New("spreadsheet: header does not match the expected layout")
	ErrEmptyWorkbook  = errors.New("spreadsheet: workbook has no sheets")
	ErrMissingHeader  = errors.New("spreadsheet: sheet has no header row")
	ErrInvalidFile    = errors.New("spreadsheet: file is not a valid xlsx workbook")
)

// HeaderMismatchError names the first header cell that differs from the layout.
// Column is 1-based.
type HeaderMismatchError struct {
	Column   int
	Expected string
	Found    string
}

// Error implements the error interface
func (e *HeaderMismatchError) Error() string {
	name, _ := excelize.ColumnNumberToName(e.Column)
	if e.Expected == "" {
		return fmt.Sprintf("unexpected column %s %q in header", name, e.Found)
	}
	return fmt.Sprintf("column %s must be %q, found %q", name, e.Expected, e.Found)
}

// Is matches ErrHeaderMismatch
func (e *HeaderMismatchError) Is(target error) bool {
	return target == ErrHeaderMismatch
}

// Record is one non-empty data row. Cells are keyed by the layout's header
// names; RowNumber is the 1-based row of the sheet.
type Record struct {
	RowNumber int
	Cells     map[string]string
}

// Get returns the trimmed value of column
func (r Record) Get(column string) string {
	return r.Cells[column]
}

// Reader parses workbooks whose first row must equal a fixed header list
type Reader struct {
	header []string
}

// NewReader creates a Reader for the given positional header
func NewReader(header []string) *Reader {
	return &Reader{header: header}
}

// Header returns the expected header
func (r *Reader) Header() []string {
	return r.header
}

// Read parses the first sheet of the workbook in src. Rows with only empty
// cells are skipped without shifting the row numbers of later rows.
func (r *Reader) Read(src io.Reader) ([]Record, error) {
	f, err := excelize.OpenReader(src, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrMissingHeader
	}
	if err := r.CheckHeader(rows[0]); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		cells := make(map[string]string, len(r.header))
		empty := true
		for col, name := range r.header {
			if col >= len(row) {
				cells[name] = ""
				continue
			}
			v := strings.TrimSpace(row[col])
			if v != "" {
				empty = false
			}
			cells[name] = v
		}
		if empty {
			continue
		}
		records = append(records, Record{RowNumber: i + 2, Cells: cells})
	}
	return records, nil
}

// CheckHeader compares got with the layout position by position. Trailing
// empty cells are ignored; any other extra column is a mismatch.
func (r *Reader) CheckHeader(got []string) error {
	for i, want := range r.header {
		found := ""
		if i < len(got) {
			found = strings.TrimSpace(got[i])
		}
		if NormalizeHeader(found) != NormalizeHeader(want) {
			return &HeaderMismatchError{Column: i + 1, Expected: want, Found: found}
		}
	}
	for i := len(r.header); i < len(got); i++ {
		if strings.TrimSpace(got[i]) != "" {
			return &HeaderMismatchError{Column: i + 1, Found: strings.TrimSpace(got[i])}
		}
	}
	return nil
}

// NormalizeHeader folds case, applies NFKC and collapses whitespace so that
// "Item  Code", "item code" and "ＩＴＥＭ CODE" compare equal. A trailing
// required marker " *" is dropped.
func NormalizeHeader(s string) string {
	s = norm.NFKC.String(s)
	s = strings.TrimSuffix(strings.TrimSpace(s), "*")
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}
