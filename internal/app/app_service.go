package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"yourobc-billing/internal/core"
	"yourobc-billing/internal/export"
)

type appService struct {
	users     core.UserService
	invoices  core.InvoiceService
	numbering core.InvoiceNumberingService
	rates     core.ExchangeRateService
	dashboard core.DashboardService
	now       func() time.Time
}

// Services bundles the core services an appService delegates to.
type Services struct {
	Users     core.UserService
	Invoices  core.InvoiceService
	Numbering core.InvoiceNumberingService
	Rates     core.ExchangeRateService
	Dashboard core.DashboardService
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(s Services) ApplicationService {
	return &appService{
		users:     s.Users,
		invoices:  s.Invoices,
		numbering: s.Numbering,
		rates:     s.Rates,
		dashboard: s.Dashboard,
		now:       time.Now,
	}
}

// ── Identity ──────────────────────────────────────────────────────────────────

func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error) {
	u, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return &UserSession{UserID: u.ID, Username: u.Username, Role: u.Role}, nil
}

func (s *appService) GetUser(ctx context.Context, userID string) (*UserResult, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserResult{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}, nil
}

func (s *appService) ActAs(ctx context.Context, username string) (context.Context, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return core.WithActor(ctx, u.Actor()), nil
}

// ── Invoices ──────────────────────────────────────────────────────────────────

func (s *appService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResult, error) {
	in := core.CreateInvoiceInput{
		Type:         core.InvoiceType(req.Type),
		CustomerID:   req.CustomerID,
		ShipmentID:   req.ShipmentID,
		Currency:     req.Currency,
		TaxRate:      req.TaxRate,
		PaymentTerms: req.PaymentTerms,
		Description:  req.Description,
		Notes:        req.Notes,
		Tags:         req.Tags,
	}
	for _, li := range req.LineItems {
		in.LineItems = append(in.LineItems, core.LineItemInput{
			Description: li.Description,
			Amount:      li.Amount,
			Currency:    li.Currency,
		})
	}

	inv, err := s.invoices.CreateInvoice(ctx, in)
	if err != nil {
		return nil, err
	}
	return &InvoiceResult{Invoice: inv}, nil
}

func (s *appService) CreateInvoiceFromPOD(ctx context.Context, shipmentID string, podReceived *time.Time) (*core.AutoInvoiceResult, error) {
	return s.invoices.CreateInvoiceFromPOD(ctx, shipmentID, podReceived)
}

func (s *appService) MarkAutoGenNotificationSent(ctx context.Context, logID string, recipients []string) (*core.AutoGenLog, error) {
	return s.invoices.MarkAutoGenNotificationSent(ctx, logID, recipients)
}

func (s *appService) UpdateInvoiceStatus(ctx context.Context, invoiceID, status string) (*InvoiceResult, error) {
	inv, err := s.invoices.UpdateInvoiceStatus(ctx, invoiceID, core.InvoiceStatus(status))
	if err != nil {
		return nil, err
	}
	return &InvoiceResult{Invoice: inv}, nil
}

func (s *appService) MarkOverdueInvoices(ctx context.Context) (*OverdueSweepResult, error) {
	n, err := s.invoices.MarkOverdueInvoices(ctx)
	if err != nil {
		return nil, err
	}
	return &OverdueSweepResult{Updated: n}, nil
}

func (s *appService) RecordCollectionAttempt(ctx context.Context, invoiceID string, req CollectionAttemptRequest) (*InvoiceResult, error) {
	inv, err := s.invoices.RecordCollectionAttempt(ctx, invoiceID, core.CollectionAttemptInput{
		Method:       req.Method,
		DunningLevel: req.DunningLevel,
		Notes:        req.Notes,
	})
	if err != nil {
		return nil, err
	}
	return &InvoiceResult{Invoice: inv}, nil
}

func (s *appService) GetInvoice(ctx context.Context, invoiceID string) (*InvoiceResult, error) {
	inv, err := s.invoices.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return &InvoiceResult{Invoice: inv}, nil
}

func toFilter(req ListInvoicesRequest) core.InvoiceFilter {
	return core.InvoiceFilter{
		Type:       core.InvoiceType(req.Type),
		Status:     core.InvoiceStatus(req.Status),
		CustomerID: req.CustomerID,
		Limit:      req.Limit,
	}
}

func (s *appService) ListInvoices(ctx context.Context, req ListInvoicesRequest) (*InvoiceListResult, error) {
	invoices, err := s.invoices.ListInvoices(ctx, toFilter(req))
	if err != nil {
		return nil, err
	}
	return &InvoiceListResult{Invoices: invoices, Count: len(invoices)}, nil
}

func (s *appService) GetInvoiceHistory(ctx context.Context, invoiceID string) (*HistoryResult, error) {
	entries, err := s.invoices.GetInvoiceHistory(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	return &HistoryResult{InvoiceID: invoiceID, Entries: entries}, nil
}

// ── Numbering ─────────────────────────────────────────────────────────────────

func (s *appService) PreviewInvoiceNumber(ctx context.Context) (*InvoiceNumberResult, error) {
	n, err := s.numbering.PreviewNextInvoiceNumber(ctx)
	if err != nil {
		return nil, err
	}
	return &InvoiceNumberResult{InvoiceNumber: n}, nil
}

func (s *appService) ValidateInvoiceNumber(number string) *InvoiceNumberCheckResult {
	res := &InvoiceNumberCheckResult{InvoiceNumber: number}
	p, err := core.ParseInvoiceNumber(number)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Valid = true
	res.Parsed = &p
	return res
}

func (s *appService) GetCounterStats(ctx context.Context, year, month int) (*core.CounterStats, error) {
	return s.numbering.CounterStats(ctx, year, month)
}

func (s *appService) ResetCounter(ctx context.Context, year, month, value int) (*core.InvoiceCounter, error) {
	return s.numbering.ResetCounter(ctx, year, month, value)
}

// ── Exchange rates ────────────────────────────────────────────────────────────

func (s *appService) ResolveRate(ctx context.Context, req RateRequest) (*RateResult, error) {
	q, err := s.rates.ResolveRate(ctx, req.From, req.To, req.AsOf)
	if err != nil {
		return nil, err
	}
	return &RateResult{From: req.From, To: req.To, Quote: q, Degraded: q.Degraded()}, nil
}

func (s *appService) Convert(ctx context.Context, req ConvertRequest) (*core.Conversion, error) {
	c, err := s.rates.Convert(ctx, req.Amount, req.From, req.To, req.AsOf)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *appService) CreateRate(ctx context.Context, req CreateRateRequest) (*core.ExchangeRate, error) {
	in := core.CreateRateInput{
		FromCurrency: req.FromCurrency,
		ToCurrency:   req.ToCurrency,
		Rate:         req.Rate,
		Source:       req.Source,
	}
	if req.Date != "" {
		d, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", req.Date, core.ErrValidation)
		}
		in.Date = d
	}
	return s.rates.CreateRate(ctx, in)
}

func (s *appService) DeactivateRate(ctx context.Context, rateID string) error {
	return s.rates.DeactivateRate(ctx, rateID)
}

func (s *appService) ListRates(ctx context.Context, from, to string, activeOnly bool) (*RateListResult, error) {
	rates, err := s.rates.ListRates(ctx, from, to, activeOnly)
	if err != nil {
		return nil, err
	}
	if rates == nil {
		rates = []core.ExchangeRate{}
	}
	return &RateListResult{Rates: rates}, nil
}

// ── Dashboard ─────────────────────────────────────────────────────────────────

func (s *appService) RefreshDashboard(ctx context.Context) (*core.RefreshResult, error) {
	return s.dashboard.RefreshDashboardCache(ctx)
}

func (s *appService) GetDashboard(ctx context.Context) (*DashboardResult, error) {
	snap, err := s.dashboard.GetDashboard(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &DashboardResult{Snapshot: snap, Stale: snap.Stale(now), AsOf: now}, nil
}

func (s *appService) ExportDashboard(ctx context.Context, w io.Writer) error {
	snap, err := s.dashboard.GetDashboard(ctx)
	if err != nil {
		return err
	}
	return export.WriteDashboard(w, snap)
}

func (s *appService) ExportInvoices(ctx context.Context, req ListInvoicesRequest, w io.Writer) error {
	invoices, err := s.invoices.ListInvoices(ctx, toFilter(req))
	if err != nil {
		return err
	}
	return export.WriteInvoices(w, invoices)
}
