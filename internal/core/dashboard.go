package core

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DashboardTTL is how long a computed snapshot is considered fresh.
const DashboardTTL = 24 * time.Hour

// DashboardMetrics is the aggregated financial snapshot, all amounts in
// BaseCurrency. Missing/pending values, dunning counts and suspended
// customers are not aggregated yet and are always zero.
type DashboardMetrics struct {
	TotalReceivables    decimal.Decimal `json:"total_receivables"`
	OverdueReceivables  decimal.Decimal `json:"overdue_receivables"`
	TotalPayables       decimal.Decimal `json:"total_payables"`
	OverduePayables     decimal.Decimal `json:"overdue_payables"`
	ExpectedPayments30d decimal.Decimal `json:"expected_payments_30d"`
	ExpectedExpenses30d decimal.Decimal `json:"expected_expenses_30d"`
	ForecastInflow90d   decimal.Decimal `json:"forecast_inflow_90d"`
	ForecastOutflow90d  decimal.Decimal `json:"forecast_outflow_90d"`

	Aging1To30  decimal.Decimal `json:"aging_1_30"`
	Aging31To60 decimal.Decimal `json:"aging_31_60"`
	Aging61To90 decimal.Decimal `json:"aging_61_90"`
	Aging90Plus decimal.Decimal `json:"aging_90_plus"`

	MissingInvoicesCount    int             `json:"missing_invoices_count"`
	MissingInvoicesValue    decimal.Decimal `json:"missing_invoices_value"`
	PendingApprovalCount    int             `json:"pending_approval_count"`
	PendingApprovalValue    decimal.Decimal `json:"pending_approval_value"`
	DunningLevel1Count      int             `json:"dunning_level1_count"`
	DunningLevel2Count      int             `json:"dunning_level2_count"`
	DunningLevel3Count      int             `json:"dunning_level3_count"`
	SuspendedCustomersCount int             `json:"suspended_customers_count"`
}

// DashboardSnapshot is one row of the per-day dashboard cache.
type DashboardSnapshot struct {
	ID           string    `json:"id"`
	CacheDate    time.Time `json:"cache_date"`
	CalculatedAt time.Time `json:"calculated_at"`
	ValidUntil   time.Time `json:"valid_until"`
	DashboardMetrics
}

// Stale reports whether the snapshot has passed its validity window.
func (s DashboardSnapshot) Stale(now time.Time) bool {
	return now.After(s.ValidUntil)
}

// TrackingCounts are the incoming-invoice tracking counters read alongside
// the invoice scan.
type TrackingCounts struct {
	Missing         int
	PendingApproval int
}

// RefreshResult reports which cache row a refresh wrote.
type RefreshResult struct {
	CacheID string `json:"cache_id"`
	Action  string `json:"action"` // created | updated
}

const (
	RefreshCreated = "created"
	RefreshUpdated = "updated"
)

// ErrRefreshInProgress is returned when another instance holds the refresh lock.
var ErrRefreshInProgress = errors.New("dashboard refresh already in progress")

// Locker serializes dashboard refreshes across instances. unlock is always
// safe to call.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

type DashboardService interface {
	// RefreshDashboardCache recomputes the snapshot from every invoice and
	// upserts today's cache row.
	RefreshDashboardCache(ctx context.Context) (*RefreshResult, error)

	// GetDashboard returns today's snapshot, or the most recent one.
	GetDashboard(ctx context.Context) (*DashboardSnapshot, error)
}

// ComputeDashboard aggregates invoices as of now. Amounts are converted with
// the rate stored on each invoice, never a fresh lookup.
func ComputeDashboard(invoices []Invoice, tracking TrackingCounts, now time.Time) DashboardMetrics {
	m := DashboardMetrics{
		TotalReceivables:     decimal.Zero,
		OverdueReceivables:   decimal.Zero,
		TotalPayables:        decimal.Zero,
		OverduePayables:      decimal.Zero,
		ExpectedPayments30d:  decimal.Zero,
		ExpectedExpenses30d:  decimal.Zero,
		ForecastInflow90d:    decimal.Zero,
		ForecastOutflow90d:   decimal.Zero,
		Aging1To30:           decimal.Zero,
		Aging31To60:          decimal.Zero,
		Aging61To90:          decimal.Zero,
		Aging90Plus:          decimal.Zero,
		MissingInvoicesCount: tracking.Missing,
		MissingInvoicesValue: decimal.Zero,
		PendingApprovalCount: tracking.PendingApproval,
		PendingApprovalValue: decimal.Zero,
	}

	in30 := now.Add(30 * 24 * time.Hour)
	in90 := now.Add(90 * 24 * time.Hour)

	for _, inv := range invoices {
		amount := inv.TotalAmount.InBase()
		open := inv.Status != InvoiceStatusPaid && inv.Status != InvoiceStatusCancelled
		awaiting := inv.Status == InvoiceStatusSent || inv.Status == InvoiceStatusOverdue
		overdue := inv.Status == InvoiceStatusOverdue
		within30 := awaiting && !inv.DueDate.Before(now) && !inv.DueDate.After(in30)
		within90 := awaiting && !inv.DueDate.Before(now) && !inv.DueDate.After(in90)

		switch inv.Type {
		case InvoiceOutgoing:
			if open {
				m.TotalReceivables = m.TotalReceivables.Add(amount)
			}
			if overdue {
				m.OverdueReceivables = m.OverdueReceivables.Add(amount)
				addAging(&m, DaysOverdue(inv.DueDate, now), amount)
			}
			if within30 {
				m.ExpectedPayments30d = m.ExpectedPayments30d.Add(amount)
			}
			if within90 {
				m.ForecastInflow90d = m.ForecastInflow90d.Add(amount)
			}
		case InvoiceIncoming:
			if open {
				m.TotalPayables = m.TotalPayables.Add(amount)
			}
			if overdue {
				m.OverduePayables = m.OverduePayables.Add(amount)
			}
			if within30 {
				m.ExpectedExpenses30d = m.ExpectedExpenses30d.Add(amount)
			}
			if within90 {
				m.ForecastOutflow90d = m.ForecastOutflow90d.Add(amount)
			}
		}
	}

	for _, d := range []*decimal.Decimal{
		&m.TotalReceivables, &m.OverdueReceivables, &m.TotalPayables, &m.OverduePayables,
		&m.ExpectedPayments30d, &m.ExpectedExpenses30d, &m.ForecastInflow90d, &m.ForecastOutflow90d,
		&m.Aging1To30, &m.Aging31To60, &m.Aging61To90, &m.Aging90Plus,
	} {
		*d = RoundMinor(*d)
	}
	return m
}

// DaysOverdue is the number of whole days between due and now.
func DaysOverdue(due, now time.Time) int {
	return int(now.Sub(due) / (24 * time.Hour))
}

func addAging(m *DashboardMetrics, days int, amount decimal.Decimal) {
	switch {
	case days <= 30:
		m.Aging1To30 = m.Aging1To30.Add(amount)
	case days <= 60:
		m.Aging31To60 = m.Aging31To60.Add(amount)
	case days <= 90:
		m.Aging61To90 = m.Aging61To90.Add(amount)
	default:
		m.Aging90Plus = m.Aging90Plus.Add(amount)
	}
}
