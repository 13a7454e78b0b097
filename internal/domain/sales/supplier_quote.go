package sales

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/portal/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuoteStatus is the state of a supplier quote
type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusReceived QuoteStatus = "received"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusRejected QuoteStatus = "rejected"
)

var quoteStatusLabels = map[QuoteStatus]string{
	QuoteStatusDraft:    "Draft",
	QuoteStatusReceived: "Received",
	QuoteStatusAccepted: "Accepted",
	QuoteStatusRejected: "Rejected",
}

// ParseQuoteStatus accepts a code or its label; empty means received
func ParseQuoteStatus(s string) (QuoteStatus, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return QuoteStatusReceived, nil
	}
	for status, label := range quoteStatusLabels {
		if strings.EqualFold(s, string(status)) || strings.EqualFold(s, label) {
			return status, nil
		}
	}
	return "", shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown quote status: %q", s))
}

// IsValid checks if the status is known
func (s QuoteStatus) IsValid() bool {
	_, ok := quoteStatusLabels[s]
	return ok
}

// Label returns the human readable form used in exports
func (s QuoteStatus) Label() string {
	if label, ok := quoteStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// QuoteLine is one priced line of a supplier quote
type QuoteLine struct {
	ItemCode     string
	MPN          string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	LeadTimeDays int
	Notes        string
}

// Amount returns quantity times unit price
func (l QuoteLine) Amount() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// SupplierQuote is a supplier's answer to a requisition
type SupplierQuote struct {
	ID              uuid.UUID
	Code            string
	SupplierCode    string
	RequisitionCode string
	QuotedAt        time.Time
	Status          QuoteStatus
	Currency        string
	Notes           string
	Lines           []QuoteLine
	shared.SoftDeletable
	shared.Audit
}

// NewSupplierQuote creates a supplier quote with its lines
func NewSupplierQuote(code, supplierCode, requisitionCode string, quotedAt time.Time, status QuoteStatus, currency string, lines []QuoteLine, actor string, at time.Time) (*SupplierQuote, error) {
	q := &SupplierQuote{
		ID:              uuid.New(),
		Code:            shared.NormalizeKey(code),
		SupplierCode:    strings.TrimSpace(supplierCode),
		RequisitionCode: strings.TrimSpace(requisitionCode),
		QuotedAt:        quotedAt,
		Status:          status,
		Currency:        strings.ToUpper(strings.TrimSpace(currency)),
		Lines:           lines,
		SoftDeletable:   shared.Live(),
		Audit:           shared.NewAudit(actor, at),
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// Validate checks the quote and its lines
func (q *SupplierQuote) Validate() error {
	if q.Code == "" {
		return shared.NewDomainError("INVALID_INPUT", "Quote ID is required")
	}
	if q.SupplierCode == "" {
		return shared.NewDomainError("INVALID_INPUT", "Supplier is required")
	}
	if !q.Status.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown quote status: %q", q.Status))
	}
	if q.Currency != "" && len(q.Currency) != 3 {
		return shared.NewDomainError("INVALID_INPUT", "Currency must be a 3-letter code")
	}
	for i, line := range q.Lines {
		if line.ItemCode == "" && line.MPN == "" {
			return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Line %d needs an item code or MPN", i+1))
		}
		if !line.Quantity.IsPositive() {
			return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Line %d quantity must be positive", i+1))
		}
		if line.UnitPrice.IsNegative() {
			return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Line %d unit price cannot be negative", i+1))
		}
		if line.LeadTimeDays < 0 {
			return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Line %d lead time cannot be negative", i+1))
		}
	}
	return nil
}

// NaturalKey returns the quote code
func (q *SupplierQuote) NaturalKey() string {
	return q.Code
}

// Total returns the sum of all line amounts
func (q *SupplierQuote) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range q.Lines {
		total = total.Add(l.Amount())
	}
	return total
}
