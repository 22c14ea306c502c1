package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceType string

const (
	InvoiceOutgoing InvoiceType = "outgoing"
	InvoiceIncoming InvoiceType = "incoming"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// invoiceTransitions lists the statuses reachable from each status.
var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:   {InvoiceStatusSent, InvoiceStatusCancelled},
	InvoiceStatusSent:    {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusOverdue: {InvoiceStatusPaid, InvoiceStatusCancelled},
}

// CanTransition reports whether an invoice may move from s to next.
func (s InvoiceStatus) CanTransition(next InvoiceStatus) bool {
	for _, allowed := range invoiceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

const (
	// PODTaxRate is the fixed VAT rate applied to invoices generated on proof of delivery.
	PODTaxRate = 19
	// DefaultPaymentTerms applies when neither caller nor customer specify terms.
	DefaultPaymentTerms = 30
	// ReasonInvoiceExists is returned when a shipment already has an outgoing invoice.
	ReasonInvoiceExists = "Invoice already exists"
)

// LineItem is one billed position. OriginalAmount is set when the position
// was entered in a different currency and converted.
type LineItem struct {
	Description    string          `json:"description"`
	Amount         CurrencyAmount  `json:"amount"`
	OriginalAmount *CurrencyAmount `json:"original_amount,omitempty"`
}

// CollectionAttempt is one dunning step taken on an unpaid invoice.
type CollectionAttempt struct {
	AttemptedAt  time.Time `json:"attempted_at"`
	Method       string    `json:"method"`
	DunningLevel int       `json:"dunning_level"`
	Notes        string    `json:"notes,omitempty"`
	ActorID      string    `json:"actor_id"`
}

var collectionMethods = map[string]bool{"email": true, "phone": true, "letter": true, "legal": true}

// Invoice is an outgoing (customer) or incoming (supplier) billing document.
// TaxAmount is nil when no tax rate was configured, as opposed to a zero-rate tax.
type Invoice struct {
	ID                 string              `json:"id"`
	InvoiceNumber      string              `json:"invoice_number"`
	Type               InvoiceType         `json:"type"`
	ShipmentID         *string             `json:"shipment_id,omitempty"`
	CustomerID         *string             `json:"customer_id,omitempty"`
	IssueDate          time.Time           `json:"issue_date"`
	DueDate            time.Time           `json:"due_date"`
	Description        string              `json:"description"`
	Subtotal           CurrencyAmount      `json:"subtotal"`
	TaxAmount          *CurrencyAmount     `json:"tax_amount,omitempty"`
	TotalAmount        CurrencyAmount      `json:"total_amount"`
	Status             InvoiceStatus       `json:"status"`
	PaymentTerms       int                 `json:"payment_terms"`
	LineItems          []LineItem          `json:"line_items"`
	CollectionAttempts []CollectionAttempt `json:"collection_attempts"`
	Notes              string              `json:"notes"`
	Tags               []string            `json:"tags"`
	PaidAt             *time.Time          `json:"paid_at,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	CreatedBy          string              `json:"created_by"`
	UpdatedAt          time.Time           `json:"updated_at"`
	UpdatedBy          string              `json:"updated_by"`
}

// AutoGenLog records an invoice generated from a proof-of-delivery event and
// whether accounting has been notified about it.
type AutoGenLog struct {
	ID                     string     `json:"id"`
	ShipmentID             string     `json:"shipment_id"`
	InvoiceID              string     `json:"invoice_id"`
	InvoiceNumber          string     `json:"invoice_number"`
	GeneratedDate          time.Time  `json:"generated_date"`
	PODReceivedDate        time.Time  `json:"pod_received_date"`
	NotificationSent       bool       `json:"notification_sent"`
	NotificationSentDate   *time.Time `json:"notification_sent_date,omitempty"`
	NotificationRecipients []string   `json:"notification_recipients"`
	Status                 string     `json:"status"`
}

// LineItemInput is a caller-entered position in any currency.
type LineItemInput struct {
	Description string
	Amount      decimal.Decimal
	Currency    string
}

// CreateInvoiceInput is the input for manual invoice creation.
// PaymentTerms nil falls back to the customer's terms, then DefaultPaymentTerms.
type CreateInvoiceInput struct {
	Type         InvoiceType
	CustomerID   string
	ShipmentID   string
	Currency     string
	LineItems    []LineItemInput
	TaxRate      *decimal.Decimal
	PaymentTerms *int
	Description  string
	Notes        string
	Tags         []string
}

// AutoInvoiceResult reports the outcome of CreateInvoiceFromPOD. A duplicate
// is a normal outcome (Success false, Reason set), not an error.
type AutoInvoiceResult struct {
	Success       bool   `json:"success"`
	Reason        string `json:"reason,omitempty"`
	InvoiceID     string `json:"invoice_id,omitempty"`
	InvoiceNumber string `json:"invoice_number,omitempty"`
	LogID         string `json:"log_id,omitempty"`
}

// CollectionAttemptInput is the input for RecordCollectionAttempt.
type CollectionAttemptInput struct {
	Method       string
	DunningLevel int
	Notes        string
}

// InvoiceFilter narrows ListInvoices. Zero values mean no filter.
type InvoiceFilter struct {
	Type       InvoiceType
	Status     InvoiceStatus
	CustomerID string
	Limit      int
}

type InvoiceService interface {
	// CreateInvoice creates a draft invoice from caller-entered line items,
	// converting each into the invoice currency.
	CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*Invoice, error)

	// CreateInvoiceFromPOD creates the outgoing invoice for a delivered
	// shipment. Calling it again for the same shipment is a no-op.
	CreateInvoiceFromPOD(ctx context.Context, shipmentID string, podReceived *time.Time) (*AutoInvoiceResult, error)

	// MarkAutoGenNotificationSent records that accounting was notified about
	// an auto-generated invoice.
	MarkAutoGenNotificationSent(ctx context.Context, logID string, recipients []string) (*AutoGenLog, error)

	UpdateInvoiceStatus(ctx context.Context, id string, status InvoiceStatus) (*Invoice, error)

	// MarkOverdueInvoices moves sent invoices past their due date to overdue
	// and returns how many changed.
	MarkOverdueInvoices(ctx context.Context) (int, error)

	RecordCollectionAttempt(ctx context.Context, id string, in CollectionAttemptInput) (*Invoice, error)

	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	ListInvoices(ctx context.Context, f InvoiceFilter) ([]Invoice, error)
	GetInvoiceHistory(ctx context.Context, id string) ([]AuditEntry, error)
}

// invoiceTotals computes tax and total from a subtotal. tax is nil when no
// rate is configured.
func invoiceTotals(subtotal decimal.Decimal, taxRate *decimal.Decimal) (tax *decimal.Decimal, total decimal.Decimal) {
	if taxRate == nil {
		return nil, subtotal
	}
	t := RoundMinor(subtotal.Mul(*taxRate).Div(decimal.NewFromInt(100)))
	return &t, subtotal.Add(t)
}

// dueDate returns issue plus terms calendar days.
func dueDate(issue time.Time, terms int) time.Time {
	return issue.UTC().AddDate(0, 0, terms)
}
