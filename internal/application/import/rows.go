package importapp

import (
	"github.com/erp/portal/internal/domain/bulk"
	"github.com/erp/portal/internal/infrastructure/spreadsheet"
)

// RowEnvelope carries a typed row with its 1-based spreadsheet row number
type RowEnvelope[R any] struct {
	RowNumber int `json:"rowNumber"`
	Row       R   `json:"row"`
}

// ItemRow is one row of the item sheet
type ItemRow struct {
	Code         string `json:"code" header:"Item Code" validate:"required,max=50"`
	Name         string `json:"name" header:"Item Name" validate:"required,max=200"`
	Group        string `json:"group" header:"Item Group" validate:"required,max=100"`
	Manufacturer string `json:"manufacturer,omitempty" header:"Manufacturer" validate:"max=100"`
	MPN          string `json:"mpn,omitempty" header:"MPN" validate:"max=100"`
	Description  string `json:"description,omitempty" header:"Description" validate:"max=1000"`
	UoM          string `json:"uom,omitempty" header:"UoM" validate:"max=20"`
}

// BusinessPartnerRow is a MAIN business partner row with its ADDRESS rows
type BusinessPartnerRow struct {
	CardCode  string       `json:"cardCode" header:"ID" validate:"required,max=50"`
	CardName  string       `json:"cardName" header:"Card Name" validate:"required,max=200"`
	CardType  string       `json:"cardType" header:"Card Type" validate:"required"`
	GroupCode string       `json:"groupCode,omitempty" header:"Group Code" validate:"omitempty,number"`
	Phone     string       `json:"phone,omitempty" header:"Phone" validate:"max=50"`
	Email     string       `json:"email,omitempty" header:"Email" validate:"omitempty,email,max=100"`
	Currency  string       `json:"currency,omitempty" header:"Currency" validate:"omitempty,len=3|eq=##"`
	Addresses []AddressRow `json:"addresses,omitempty" validate:"-"`
}

// AddressRow is an ADDRESS child row
type AddressRow struct {
	RowNumber int    `json:"rowNumber" validate:"-"`
	Name      string `json:"name,omitempty" header:"Address Name" validate:"max=100"`
	Type      string `json:"type" header:"Address Type" validate:"required"`
	Street    string `json:"street,omitempty" header:"Street" validate:"max=200"`
	City      string `json:"city,omitempty" header:"City" validate:"max=100"`
	ZipCode   string `json:"zipCode,omitempty" header:"Zip Code" validate:"max=20"`
	State     string `json:"state,omitempty" header:"State" validate:"max=50"`
	Country   string `json:"country,omitempty" header:"Country" validate:"max=50"`
}

// RequisitionRow is a MAIN requisition row with its REQUESTED_ITEM rows
type RequisitionRow struct {
	Code        string             `json:"code" header:"ID" validate:"required,max=50"`
	Customer    string             `json:"customer" header:"Customer" validate:"required,max=50"`
	RequestedAt string             `json:"requestedAt,omitempty" header:"Requested At"`
	Status      string             `json:"status,omitempty" header:"Status"`
	SalesRep    string             `json:"salesRep,omitempty" header:"Sales Rep" validate:"max=100"`
	Notes       string             `json:"notes,omitempty" header:"Notes" validate:"max=2000"`
	Items       []RequestedItemRow `json:"items,omitempty" validate:"-"`
}

// RequestedItemRow is a REQUESTED_ITEM child row
type RequestedItemRow struct {
	RowNumber             int    `json:"rowNumber" validate:"-"`
	ItemCode              string `json:"itemCode,omitempty" header:"Item" validate:"required_without=MPN,max=50"`
	SupplierSuggested     string `json:"supplierSuggested,omitempty" header:"Supplier Suggested" validate:"max=100"`
	MPN                   string `json:"mpn,omitempty" header:"MPN" validate:"max=100"`
	Quantity              string `json:"quantity" header:"Quantity" validate:"required,numeric"`
	CustomerStandardPrice string `json:"customerStandardPrice,omitempty" header:"Customer Standard Price" validate:"omitempty,numeric"`
	Notes                 string `json:"notes,omitempty" header:"Item Notes" validate:"max=2000"`
}

// SupplierQuoteRow is a MAIN supplier quote row with its LINE_ITEM rows
type SupplierQuoteRow struct {
	Code        string         `json:"code" header:"ID" validate:"required,max=50"`
	Supplier    string         `json:"supplier" header:"Supplier" validate:"required,max=50"`
	Requisition string         `json:"requisition,omitempty" header:"Requisition" validate:"max=50"`
	QuotedAt    string         `json:"quotedAt,omitempty" header:"Quoted At"`
	Status      string         `json:"status,omitempty" header:"Status"`
	Currency    string         `json:"currency,omitempty" header:"Currency" validate:"omitempty,len=3"`
	Notes       string         `json:"notes,omitempty" header:"Notes" validate:"max=2000"`
	Lines       []QuoteLineRow `json:"lines,omitempty" validate:"-"`
}

// QuoteLineRow is a LINE_ITEM child row
type QuoteLineRow struct {
	RowNumber    int    `json:"rowNumber" validate:"-"`
	ItemCode     string `json:"itemCode,omitempty" header:"Item" validate:"required_without=MPN,max=50"`
	MPN          string `json:"mpn,omitempty" header:"MPN" validate:"max=100"`
	Quantity     string `json:"quantity" header:"Quantity" validate:"required,numeric"`
	UnitPrice    string `json:"unitPrice,omitempty" header:"Unit Price" validate:"omitempty,numeric"`
	LeadTimeDays string `json:"leadTimeDays,omitempty" header:"Lead Time Days" validate:"omitempty,number"`
	Notes        string `json:"notes,omitempty" header:"Line Notes" validate:"max=2000"`
}

// Parsed is the typed content of an uploaded workbook. Failures holds rows
// that could not be grouped; they are counted in Total.
type Parsed[R any] struct {
	Rows     []RowEnvelope[R]  `json:"rows"`
	Failures []bulk.RowFailure `json:"failures"`
	Total    int               `json:"total"`
}

// Counts returns the typed rows, the rows that failed grouping and the total
func (p Parsed[R]) Counts() (rows, failures, total int) {
	return len(p.Rows), len(p.Failures), p.Total
}

// ParseResult is a Parsed value of any row type
type ParseResult interface {
	Counts() (rows, failures, total int)
}

// ItemRows maps item sheet records to typed rows
func ItemRows(records []spreadsheet.Record) Parsed[ItemRow] {
	rows := make([]RowEnvelope[ItemRow], len(records))
	for i, r := range records {
		rows[i] = RowEnvelope[ItemRow]{RowNumber: r.RowNumber, Row: ItemRow{
			Code:         r.Get("Item Code"),
			Name:         r.Get("Item Name"),
			Group:        r.Get("Item Group"),
			Manufacturer: r.Get("Manufacturer"),
			MPN:          r.Get("MPN"),
			Description:  r.Get("Description"),
			UoM:          r.Get("UoM"),
		}}
	}
	return Parsed[ItemRow]{Rows: rows, Failures: []bulk.RowFailure{}, Total: len(rows)}
}

// BusinessPartnerRows groups business partner records into typed rows
func BusinessPartnerRows(records []spreadsheet.Record) Parsed[BusinessPartnerRow] {
	return grouped(records, BusinessPartnerLayout, func(g spreadsheet.Group) BusinessPartnerRow {
		m := g.Main
		row := BusinessPartnerRow{
			CardCode:  g.ID,
			CardName:  m.Get("Card Name"),
			CardType:  m.Get("Card Type"),
			GroupCode: m.Get("Group Code"),
			Phone:     m.Get("Phone"),
			Email:     m.Get("Email"),
			Currency:  m.Get("Currency"),
		}
		for _, c := range g.Children {
			row.Addresses = append(row.Addresses, AddressRow{
				RowNumber: c.RowNumber,
				Name:      c.Get("Address Name"),
				Type:      c.Get("Address Type"),
				Street:    c.Get("Street"),
				City:      c.Get("City"),
				ZipCode:   c.Get("Zip Code"),
				State:     c.Get("State"),
				Country:   c.Get("Country"),
			})
		}
		return row
	})
}

// RequisitionRows groups requisition records into typed rows
func RequisitionRows(records []spreadsheet.Record) Parsed[RequisitionRow] {
	return grouped(records, RequisitionLayout, func(g spreadsheet.Group) RequisitionRow {
		m := g.Main
		row := RequisitionRow{
			Code:        g.ID,
			Customer:    m.Get("Customer"),
			RequestedAt: m.Get("Requested At"),
			Status:      m.Get("Status"),
			SalesRep:    m.Get("Sales Rep"),
			Notes:       m.Get("Notes"),
		}
		for _, c := range g.Children {
			row.Items = append(row.Items, RequestedItemRow{
				RowNumber:             c.RowNumber,
				ItemCode:              c.Get("Item"),
				SupplierSuggested:     c.Get("Supplier Suggested"),
				MPN:                   c.Get("MPN"),
				Quantity:              c.Get("Quantity"),
				CustomerStandardPrice: c.Get("Customer Standard Price"),
				Notes:                 c.Get("Item Notes"),
			})
		}
		return row
	})
}

// SupplierQuoteRows groups supplier quote records into typed rows
func SupplierQuoteRows(records []spreadsheet.Record) Parsed[SupplierQuoteRow] {
	return grouped(records, SupplierQuoteLayout, func(g spreadsheet.Group) SupplierQuoteRow {
		m := g.Main
		row := SupplierQuoteRow{
			Code:        g.ID,
			Supplier:    m.Get("Supplier"),
			Requisition: m.Get("Requisition"),
			QuotedAt:    m.Get("Quoted At"),
			Status:      m.Get("Status"),
			Currency:    m.Get("Currency"),
			Notes:       m.Get("Notes"),
		}
		for _, c := range g.Children {
			row.Lines = append(row.Lines, QuoteLineRow{
				RowNumber:    c.RowNumber,
				ItemCode:     c.Get("Item"),
				MPN:          c.Get("MPN"),
				Quantity:     c.Get("Quantity"),
				UnitPrice:    c.Get("Unit Price"),
				LeadTimeDays: c.Get("Lead Time Days"),
				Notes:        c.Get("Line Notes"),
			})
		}
		return row
	})
}

func grouped[R any](records []spreadsheet.Record, layout Layout, build func(spreadsheet.Group) R) Parsed[R] {
	groups, errs := spreadsheet.GroupByRowType(records, ColumnID, ColumnRowType, RowTypeMain, layout.ChildTypes...)

	out := Parsed[R]{
		Rows:     make([]RowEnvelope[R], len(groups)),
		Failures: make([]bulk.RowFailure, len(errs)),
	}
	for i, g := range groups {
		out.Rows[i] = RowEnvelope[R]{RowNumber: g.Main.RowNumber, Row: build(g)}
	}
	for i, e := range errs {
		out.Failures[i] = bulk.RowFailure{RowNumber: e.RowNumber, Entries: []string{e.Reason}, Row: e.Record.Cells}
	}
	out.Total = len(out.Rows) + len(out.Failures)
	return out
}
