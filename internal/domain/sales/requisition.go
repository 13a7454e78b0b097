package sales

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/portal/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequisitionStatus is the pipeline state of a customer requisition
type RequisitionStatus string

const (
	RequisitionStatusOpen      RequisitionStatus = "open"
	RequisitionStatusQuoted    RequisitionStatus = "quoted"
	RequisitionStatusWon       RequisitionStatus = "won"
	RequisitionStatusLost      RequisitionStatus = "lost"
	RequisitionStatusCancelled RequisitionStatus = "cancelled"
)

var requisitionStatusLabels = map[RequisitionStatus]string{
	RequisitionStatusOpen:      "Open",
	RequisitionStatusQuoted:    "Quoted",
	RequisitionStatusWon:       "Won",
	RequisitionStatusLost:      "Lost",
	RequisitionStatusCancelled: "Cancelled",
}

// ParseRequisitionStatus accepts a code or its label; empty means open
func ParseRequisitionStatus(s string) (RequisitionStatus, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RequisitionStatusOpen, nil
	}
	for status, label := range requisitionStatusLabels {
		if strings.EqualFold(s, string(status)) || strings.EqualFold(s, label) {
			return status, nil
		}
	}
	return "", shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown requisition status: %q", s))
}

// IsValid checks if the status is known
func (s RequisitionStatus) IsValid() bool {
	_, ok := requisitionStatusLabels[s]
	return ok
}

// Label returns the human readable form used in exports
func (s RequisitionStatus) Label() string {
	if label, ok := requisitionStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// RequestedItem is one line of a requisition
type RequestedItem struct {
	ItemCode              string
	SupplierSuggested     string
	MPN                   string
	Quantity              decimal.Decimal
	CustomerStandardPrice decimal.Decimal
	Notes                 string
}

// Requisition is a customer's request for pricing on one or more items
type Requisition struct {
	ID           uuid.UUID
	Code         string
	CustomerCode string
	RequestedAt  time.Time
	Status       RequisitionStatus
	SalesRep     string
	Notes        string
	Items        []RequestedItem
	shared.SoftDeletable
	shared.Audit
}

// NewRequisition creates a requisition with its requested items
func NewRequisition(code, customerCode string, requestedAt time.Time, status RequisitionStatus, items []RequestedItem, actor string, at time.Time) (*Requisition, error) {
	r := &Requisition{
		ID:            uuid.New(),
		Code:          shared.NormalizeKey(code),
		CustomerCode:  strings.TrimSpace(customerCode),
		RequestedAt:   requestedAt,
		Status:        status,
		Items:         items,
		SoftDeletable: shared.Live(),
		Audit:         shared.NewAudit(actor, at),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the requisition and its lines
func (r *Requisition) Validate() error {
	if r.Code == "" {
		return shared.NewDomainError("INVALID_INPUT", "Requisition ID is required")
	}
	if r.CustomerCode == "" {
		return shared.NewDomainError("INVALID_INPUT", "Customer is required")
	}
	if !r.Status.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown requisition status: %q", r.Status))
	}
	for i, item := range r.Items {
		if item.ItemCode == "" && item.MPN == "" {
			return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Requested item %d needs an item code or MPN", i+1))
		}
		if !item.Quantity.IsPositive() {
			return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Requested item %d quantity must be positive", i+1))
		}
		if item.CustomerStandardPrice.IsNegative() {
			return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Requested item %d price cannot be negative", i+1))
		}
	}
	return nil
}

// NaturalKey returns the requisition code
func (r *Requisition) NaturalKey() string {
	return r.Code
}

// TotalQuantity sums the requested quantities
func (r *Requisition) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.Quantity)
	}
	return total
}
