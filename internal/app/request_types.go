package app

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateInvoiceRequest is the input for creating an invoice manually.
type CreateInvoiceRequest struct {
	Type         string            `json:"type"`
	CustomerID   string            `json:"customer_id"`
	ShipmentID   string            `json:"shipment_id"`
	Currency     string            `json:"currency"`
	LineItems    []LineItemRequest `json:"line_items"`
	TaxRate      *decimal.Decimal  `json:"tax_rate"`      // percent; nil means no tax configured
	PaymentTerms *int              `json:"payment_terms"` // days; nil uses customer terms
	Description  string            `json:"description"`
	Notes        string            `json:"notes"`
	Tags         []string          `json:"tags"`
}

// LineItemRequest is one position of a CreateInvoiceRequest.
type LineItemRequest struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

// CollectionAttemptRequest is the input for recording a dunning step.
type CollectionAttemptRequest struct {
	Method       string `json:"method"`
	DunningLevel int    `json:"dunning_level"`
	Notes        string `json:"notes"`
}

// ListInvoicesRequest filters ListInvoices and ExportInvoices.
type ListInvoicesRequest struct {
	Type       string
	Status     string
	CustomerID string
	Limit      int
}

// RateRequest asks for the rate of a pair on a day. AsOf nil means today.
type RateRequest struct {
	From string
	To   string
	AsOf *time.Time
}

// ConvertRequest is the input for a one-off conversion.
type ConvertRequest struct {
	Amount decimal.Decimal
	From   string
	To     string
	AsOf   *time.Time
}

// CreateRateRequest is the input for recording a daily quote.
type CreateRateRequest struct {
	FromCurrency string          `json:"from_currency"`
	ToCurrency   string          `json:"to_currency"`
	Rate         decimal.Decimal `json:"rate"`
	Date         string          `json:"date"` // YYYY-MM-DD; empty means today
	Source       string          `json:"source"`
}
