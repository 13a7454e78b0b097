package importapp

import (
	"github.com/erp/portal/internal/domain/bulk"
	"github.com/erp/portal/internal/infrastructure/spreadsheet"
)

// Row types of grouped layouts
const (
	RowTypeMain          = "MAIN"
	RowTypeAddress       = "ADDRESS"
	RowTypeRequestedItem = "REQUESTED_ITEM"
	RowTypeLineItem      = "LINE_ITEM"
)

// Column names shared by several layouts
const (
	ColumnID      = "ID"
	ColumnRowType = "Row Type"
)

// Layout is the fixed column order of an import or export workbook. Grouped
// layouts carry a MAIN row per record followed by child rows with the same ID.
type Layout struct {
	Entity     bulk.ImportEntity
	Sheet      string
	Columns    []spreadsheet.Column
	ChildTypes []string
}

// Header returns the column names in order
func (l Layout) Header() []string {
	out := make([]string, len(l.Columns))
	for i, c := range l.Columns {
		out[i] = c.Header
	}
	return out
}

// Row places values by column header. Unknown headers are ignored and
// missing ones stay blank.
func (l Layout) Row(values map[string]any) []any {
	out := make([]any, len(l.Columns))
	last := -1
	for i, c := range l.Columns {
		if v, ok := values[c.Header]; ok {
			out[i] = v
			last = i
		}
	}
	return out[:last+1]
}

// Grouped reports whether rows are grouped by ID and Row Type
func (l Layout) Grouped() bool {
	return len(l.ChildTypes) > 0
}

// Reader returns a spreadsheet reader for the layout
func (l Layout) Reader() *spreadsheet.Reader {
	return spreadsheet.NewReader(l.Header())
}

// Writer returns a spreadsheet writer for the layout
func (l Layout) Writer() *spreadsheet.Writer {
	return spreadsheet.NewWriter(l.Sheet, l.Columns)
}

var (
	ItemLayout = Layout{
		Entity: bulk.ImportEntityItems,
		Sheet:  "Items",
		Columns: []spreadsheet.Column{
			{Header: "Item Code", Width: 20},
			{Header: "Item Name", Width: 40},
			{Header: "Item Group", Width: 20},
			{Header: "Manufacturer", Width: 24},
			{Header: "MPN", Width: 24},
			{Header: "Description", Width: 50},
			{Header: "UoM", Width: 10},
			{Header: "Source", Width: 10},
			{Header: "Sync Status", Width: 12},
		},
	}

	BusinessPartnerLayout = Layout{
		Entity: bulk.ImportEntityBusinessPartners,
		Sheet:  "Business Partners",
		Columns: []spreadsheet.Column{
			{Header: ColumnID, Width: 16},
			{Header: ColumnRowType, Width: 12},
			{Header: "Card Name", Width: 40},
			{Header: "Card Type", Width: 12},
			{Header: "Group Code", Width: 12},
			{Header: "Phone", Width: 18},
			{Header: "Email", Width: 30},
			{Header: "Currency", Width: 10},
			{Header: "Address Name", Width: 20},
			{Header: "Address Type", Width: 14},
			{Header: "Street", Width: 30},
			{Header: "City", Width: 20},
			{Header: "Zip Code", Width: 10},
			{Header: "State", Width: 10},
			{Header: "Country", Width: 10},
		},
		ChildTypes: []string{RowTypeAddress},
	}

	RequisitionLayout = Layout{
		Entity: bulk.ImportEntityRequisitions,
		Sheet:  "Requisitions",
		Columns: []spreadsheet.Column{
			{Header: ColumnID, Width: 16},
			{Header: ColumnRowType, Width: 16},
			{Header: "Customer", Width: 16},
			{Header: "Requested At", Width: 14},
			{Header: "Status", Width: 12},
			{Header: "Sales Rep", Width: 16},
			{Header: "Notes", Width: 40},
			{Header: "Item", Width: 20},
			{Header: "Supplier Suggested", Width: 20},
			{Header: "MPN", Width: 24},
			{Header: "Quantity", Width: 10},
			{Header: "Customer Standard Price", Width: 14},
			{Header: "Item Notes", Width: 40},
		},
		ChildTypes: []string{RowTypeRequestedItem},
	}

	SupplierQuoteLayout = Layout{
		Entity: bulk.ImportEntitySupplierQuotes,
		Sheet:  "Supplier Quotes",
		Columns: []spreadsheet.Column{
			{Header: ColumnID, Width: 16},
			{Header: ColumnRowType, Width: 12},
			{Header: "Supplier", Width: 16},
			{Header: "Requisition", Width: 16},
			{Header: "Quoted At", Width: 14},
			{Header: "Status", Width: 12},
			{Header: "Currency", Width: 10},
			{Header: "Notes", Width: 40},
			{Header: "Item", Width: 20},
			{Header: "MPN", Width: 24},
			{Header: "Quantity", Width: 10},
			{Header: "Unit Price", Width: 12},
			{Header: "Lead Time Days", Width: 10},
			{Header: "Line Notes", Width: 40},
		},
		ChildTypes: []string{RowTypeLineItem},
	}
)

// LayoutFor returns the layout of entity
func LayoutFor(entity bulk.ImportEntity) (Layout, bool) {
	switch entity {
	case bulk.ImportEntityItems:
		return ItemLayout, true
	case bulk.ImportEntityBusinessPartners:
		return BusinessPartnerLayout, true
	case bulk.ImportEntityRequisitions:
		return RequisitionLayout, true
	case bulk.ImportEntitySupplierQuotes:
		return SupplierQuoteLayout, true
	}
	return Layout{}, false
}
