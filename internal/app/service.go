package app

import (
	"context"
	"io"
	"time"

	"yourobc-billing/internal/core"
)

// ApplicationService is the single interface the CLI and web adapters call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println and no display logic of any kind.
type ApplicationService interface {
	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error)

	// GetUser returns user profile by ID.
	GetUser(ctx context.Context, userID string) (*UserResult, error)

	// ActAs returns ctx carrying the named user as actor. Used by the CLI,
	// where no session token exists.
	ActAs(ctx context.Context, username string) (context.Context, error)

	// CreateInvoice creates a draft invoice from manually entered line items.
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResult, error)

	// CreateInvoiceFromPOD generates the outgoing invoice for a delivered
	// shipment. A second call for the same shipment reports success=false.
	CreateInvoiceFromPOD(ctx context.Context, shipmentID string, podReceived *time.Time) (*core.AutoInvoiceResult, error)

	// MarkAutoGenNotificationSent records that accounting was told about an
	// auto-generated invoice.
	MarkAutoGenNotificationSent(ctx context.Context, logID string, recipients []string) (*core.AutoGenLog, error)

	UpdateInvoiceStatus(ctx context.Context, invoiceID, status string) (*InvoiceResult, error)
	MarkOverdueInvoices(ctx context.Context) (*OverdueSweepResult, error)
	RecordCollectionAttempt(ctx context.Context, invoiceID string, req CollectionAttemptRequest) (*InvoiceResult, error)

	GetInvoice(ctx context.Context, invoiceID string) (*InvoiceResult, error)
	ListInvoices(ctx context.Context, req ListInvoicesRequest) (*InvoiceListResult, error)
	GetInvoiceHistory(ctx context.Context, invoiceID string) (*HistoryResult, error)

	// PreviewInvoiceNumber returns the number the next invoice would receive
	// without consuming it.
	PreviewInvoiceNumber(ctx context.Context) (*InvoiceNumberResult, error)

	// ValidateInvoiceNumber checks and decomposes a number. Never fails; an
	// invalid number is reported in the result.
	ValidateInvoiceNumber(number string) *InvoiceNumberCheckResult

	GetCounterStats(ctx context.Context, year, month int) (*core.CounterStats, error)

	// ResetCounter is an audited, admin-only correction of a month's counter.
	ResetCounter(ctx context.Context, year, month, value int) (*core.InvoiceCounter, error)

	// ResolveRate resolves a currency pair through the fallback chain.
	ResolveRate(ctx context.Context, req RateRequest) (*RateResult, error)

	Convert(ctx context.Context, req ConvertRequest) (*core.Conversion, error)
	CreateRate(ctx context.Context, req CreateRateRequest) (*core.ExchangeRate, error)
	DeactivateRate(ctx context.Context, rateID string) error
	ListRates(ctx context.Context, from, to string, activeOnly bool) (*RateListResult, error)

	// RefreshDashboard fully recomputes today's dashboard cache.
	RefreshDashboard(ctx context.Context) (*core.RefreshResult, error)

	GetDashboard(ctx context.Context) (*DashboardResult, error)

	// ExportDashboard writes the current dashboard as XLSX.
	ExportDashboard(ctx context.Context, w io.Writer) error

	// ExportInvoices writes the filtered invoice list as XLSX.
	ExportInvoices(ctx context.Context, req ListInvoicesRequest, w io.Writer) error
}
