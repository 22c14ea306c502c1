package app

import (
	"time"

	"yourobc-billing/internal/core"
)

// UserSession is returned by AuthenticateUser.
type UserSession struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// UserResult is returned by GetUser.
type UserResult struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// InvoiceResult is returned by invoice lifecycle operations.
type InvoiceResult struct {
	Invoice *core.Invoice `json:"invoice"`
}

// InvoiceListResult is returned by ListInvoices.
type InvoiceListResult struct {
	Invoices []core.Invoice `json:"invoices"`
	Count    int            `json:"count"`
}

// HistoryResult is returned by GetInvoiceHistory.
type HistoryResult struct {
	InvoiceID string            `json:"invoice_id"`
	Entries   []core.AuditEntry `json:"entries"`
}

// OverdueSweepResult is returned by MarkOverdueInvoices.
type OverdueSweepResult struct {
	Updated int `json:"updated"`
}

// InvoiceNumberResult is returned by PreviewInvoiceNumber.
type InvoiceNumberResult struct {
	InvoiceNumber string `json:"invoice_number"`
}

// InvoiceNumberCheckResult is returned by ValidateInvoiceNumber.
type InvoiceNumberCheckResult struct {
	InvoiceNumber string                    `json:"invoice_number"`
	Valid         bool                      `json:"valid"`
	Parsed        *core.ParsedInvoiceNumber `json:"parsed,omitempty"`
	Error         string                    `json:"error,omitempty"`
}

// RateResult is returned by ResolveRate. Degraded is true when the quote came
// from a historical or default tier.
type RateResult struct {
	From     string         `json:"from"`
	To       string         `json:"to"`
	Quote    core.RateQuote `json:"quote"`
	Degraded bool           `json:"degraded"`
}

// RateListResult is returned by ListRates.
type RateListResult struct {
	Rates []core.ExchangeRate `json:"rates"`
}

// DashboardResult is returned by GetDashboard.
type DashboardResult struct {
	Snapshot *core.DashboardSnapshot `json:"snapshot"`
	Stale    bool                    `json:"stale"`
	AsOf     time.Time               `json:"as_of"`
}
