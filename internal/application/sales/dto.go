package sales

import (
	"time"

	"github.com/erp/portal/internal/domain/sales"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestedItemResponse is one requisition line in API responses
type RequestedItemResponse struct {
	ItemCode              string          `json:"item_code"`
	SupplierSuggested     string          `json:"supplier_suggested"`
	MPN                   string          `json:"mpn"`
	Quantity              decimal.Decimal `json:"quantity"`
	CustomerStandardPrice decimal.Decimal `json:"customer_standard_price"`
	Notes                 string          `json:"notes"`
}

// RequisitionResponse represents a requisition in API responses
type RequisitionResponse struct {
	ID            uuid.UUID               `json:"id"`
	Code          string                  `json:"code"`
	CustomerCode  string                  `json:"customer_code"`
	RequestedAt   time.Time               `json:"requested_at"`
	Status        string                  `json:"status"`
	StatusLabel   string                  `json:"status_label"`
	SalesRep      string                  `json:"sales_rep"`
	Notes         string                  `json:"notes"`
	TotalQuantity decimal.Decimal         `json:"total_quantity"`
	Items         []RequestedItemResponse `json:"items"`
	CreatedBy     string                  `json:"created_by"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// ToRequisitionResponse converts a domain Requisition to RequisitionResponse
func ToRequisitionResponse(r *sales.Requisition) RequisitionResponse {
	items := make([]RequestedItemResponse, len(r.Items))
	for i, item := range r.Items {
		items[i] = RequestedItemResponse{
			ItemCode:              item.ItemCode,
			SupplierSuggested:     item.SupplierSuggested,
			MPN:                   item.MPN,
			Quantity:              item.Quantity,
			CustomerStandardPrice: item.CustomerStandardPrice,
			Notes:                 item.Notes,
		}
	}
	return RequisitionResponse{
		ID:            r.ID,
		Code:          r.Code,
		CustomerCode:  r.CustomerCode,
		RequestedAt:   r.RequestedAt,
		Status:        string(r.Status),
		StatusLabel:   r.Status.Label(),
		SalesRep:      r.SalesRep,
		Notes:         r.Notes,
		TotalQuantity: r.TotalQuantity(),
		Items:         items,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// QuoteLineResponse is one supplier quote line in API responses
type QuoteLineResponse struct {
	ItemCode     string          `json:"item_code"`
	MPN          string          `json:"mpn"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Amount       decimal.Decimal `json:"amount"`
	LeadTimeDays int             `json:"lead_time_days"`
	Notes        string          `json:"notes"`
}

// SupplierQuoteResponse represents a supplier quote in API responses
type SupplierQuoteResponse struct {
	ID              uuid.UUID           `json:"id"`
	Code            string              `json:"code"`
	SupplierCode    string              `json:"supplier_code"`
	RequisitionCode string              `json:"requisition_code"`
	QuotedAt        time.Time           `json:"quoted_at"`
	Status          string              `json:"status"`
	StatusLabel     string              `json:"status_label"`
	Currency        string              `json:"currency"`
	Notes           string              `json:"notes"`
	Total           decimal.Decimal     `json:"total"`
	Lines           []QuoteLineResponse `json:"lines"`
	CreatedBy       string              `json:"created_by"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// ToSupplierQuoteResponse converts a domain SupplierQuote to SupplierQuoteResponse
func ToSupplierQuoteResponse(q *sales.SupplierQuote) SupplierQuoteResponse {
	lines := make([]QuoteLineResponse, len(q.Lines))
	for i, l := range q.Lines {
		lines[i] = QuoteLineResponse{
			ItemCode:     l.ItemCode,
			MPN:          l.MPN,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
			Amount:       l.Amount(),
			LeadTimeDays: l.LeadTimeDays,
			Notes:        l.Notes,
		}
	}
	return SupplierQuoteResponse{
		ID:              q.ID,
		Code:            q.Code,
		SupplierCode:    q.SupplierCode,
		RequisitionCode: q.RequisitionCode,
		QuotedAt:        q.QuotedAt,
		Status:          string(q.Status),
		StatusLabel:     q.Status.Label(),
		Currency:        q.Currency,
		Notes:           q.Notes,
		Total:           q.Total(),
		Lines:           lines,
		CreatedBy:       q.CreatedBy,
		CreatedAt:       q.CreatedAt,
		UpdatedAt:       q.UpdatedAt,
	}
}
