package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"yourobc-billing/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const refreshLockKey = "billing:dashboard:refresh"

type dashboardService struct {
	pool   *pgxpool.Pool
	locker Locker
	audit  AuditLog
	log    *zap.Logger
	now    func() time.Time
}

// NewDashboardService constructs a DashboardService. locker may be nil, in
// which case concurrent refreshes simply race on the upsert.
func NewDashboardService(pool *pgxpool.Pool, locker Locker, audit AuditLog, log *zap.Logger, now func() time.Time) DashboardService {
	if now == nil {
		now = time.Now
	}
	return &dashboardService{pool: pool, locker: locker, audit: audit, log: log, now: now}
}

func (s *dashboardService) RefreshDashboardCache(ctx context.Context) (*RefreshResult, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, refreshLockKey, time.Minute)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	start := s.now().UTC()
	var result *RefreshResult

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		// Unbounded scan; paginate once invoice volume makes this slow.
		invoices, err := loadAllInvoices(ctx, tx)
		if err != nil {
			return err
		}
		tracking, err := loadTrackingCounts(ctx, tx)
		if err != nil {
			return err
		}

		m := ComputeDashboard(invoices, tracking, start)
		result, err = upsertSnapshot(ctx, tx, DashboardSnapshot{
			ID:               uuid.NewString(),
			CacheDate:        TruncateDay(start),
			CalculatedAt:     start,
			ValidUntil:       start.Add(DashboardTTL),
			DashboardMetrics: m,
		})
		if err != nil {
			return err
		}

		return s.audit.Record(ctx, tx, AuditEntry{
			Action:      "accounting_dashboard.refreshed",
			EntityType:  EntityDashboard,
			EntityID:    result.CacheID,
			EntityTitle: TruncateDay(start).Format("2006-01-02"),
			Description: fmt.Sprintf("dashboard cache %s from %d invoices", result.Action, len(invoices)),
			ActorID:     actor.ID,
			Timestamp:   start,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("dashboard cache refreshed",
		zap.String("cache_id", result.CacheID),
		zap.String("action", result.Action),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func loadAllInvoices(ctx context.Context, q db.Querier) ([]Invoice, error) {
	rows, err := q.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan invoices for dashboard: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

func loadTrackingCounts(ctx context.Context, q db.Querier) (TrackingCounts, error) {
	var c TrackingCounts
	err := q.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'missing'),
			COUNT(*) FILTER (WHERE status = 'received')
		FROM incoming_invoice_tracking`).Scan(&c.Missing, &c.PendingApproval)
	if err != nil {
		return TrackingCounts{}, fmt.Errorf("failed to count invoice tracking: %w", err)
	}
	return c, nil
}

const snapshotColumns = `
	id, cache_date, calculated_at, valid_until,
	total_receivables, overdue_receivables, total_payables, overdue_payables,
	expected_payments_30d, expected_expenses_30d, forecast_inflow_90d, forecast_outflow_90d,
	aging_1_30, aging_31_60, aging_61_90, aging_90_plus,
	missing_invoices_count, missing_invoices_value, pending_approval_count, pending_approval_value,
	dunning_level1_count, dunning_level2_count, dunning_level3_count, suspended_customers_count`

func upsertSnapshot(ctx context.Context, q db.Querier, s DashboardSnapshot) (*RefreshResult, error) {
	m := s.DashboardMetrics
	var (
		id       string
		inserted bool
	)
	// xmax is zero only for a freshly inserted tuple.
	err := q.QueryRow(ctx, `
		INSERT INTO accounting_dashboard_cache (`+snapshotColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT (cache_date) DO UPDATE SET
			calculated_at = EXCLUDED.calculated_at,
			valid_until = EXCLUDED.valid_until,
			total_receivables = EXCLUDED.total_receivables,
			overdue_receivables = EXCLUDED.overdue_receivables,
			total_payables = EXCLUDED.total_payables,
			overdue_payables = EXCLUDED.overdue_payables,
			expected_payments_30d = EXCLUDED.expected_payments_30d,
			expected_expenses_30d = EXCLUDED.expected_expenses_30d,
			forecast_inflow_90d = EXCLUDED.forecast_inflow_90d,
			forecast_outflow_90d = EXCLUDED.forecast_outflow_90d,
			aging_1_30 = EXCLUDED.aging_1_30,
			aging_31_60 = EXCLUDED.aging_31_60,
			aging_61_90 = EXCLUDED.aging_61_90,
			aging_90_plus = EXCLUDED.aging_90_plus,
			missing_invoices_count = EXCLUDED.missing_invoices_count,
			missing_invoices_value = EXCLUDED.missing_invoices_value,
			pending_approval_count = EXCLUDED.pending_approval_count,
			pending_approval_value = EXCLUDED.pending_approval_value,
			dunning_level1_count = EXCLUDED.dunning_level1_count,
			dunning_level2_count = EXCLUDED.dunning_level2_count,
			dunning_level3_count = EXCLUDED.dunning_level3_count,
			suspended_customers_count = EXCLUDED.suspended_customers_count
		RETURNING id, (xmax = 0)`,
		s.ID, s.CacheDate, s.CalculatedAt, s.ValidUntil,
		m.TotalReceivables, m.OverdueReceivables, m.TotalPayables, m.OverduePayables,
		m.ExpectedPayments30d, m.ExpectedExpenses30d, m.ForecastInflow90d, m.ForecastOutflow90d,
		m.Aging1To30, m.Aging31To60, m.Aging61To90, m.Aging90Plus,
		m.MissingInvoicesCount, m.MissingInvoicesValue, m.PendingApprovalCount, m.PendingApprovalValue,
		m.DunningLevel1Count, m.DunningLevel2Count, m.DunningLevel3Count, m.SuspendedCustomersCount,
	).Scan(&id, &inserted)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert dashboard cache: %w", err)
	}

	action := RefreshUpdated
	if inserted {
		action = RefreshCreated
	}
	return &RefreshResult{CacheID: id, Action: action}, nil
}

func (s *dashboardService) GetDashboard(ctx context.Context) (*DashboardSnapshot, error) {
	var (
		snap DashboardSnapshot
		m    = &snap.DashboardMetrics
	)
	err := s.pool.QueryRow(ctx, `
		SELECT `+snapshotColumns+`
		FROM accounting_dashboard_cache
		WHERE cache_date <= $1
		ORDER BY cache_date DESC
		LIMIT 1`, TruncateDay(s.now())).Scan(
		&snap.ID, &snap.CacheDate, &snap.CalculatedAt, &snap.ValidUntil,
		&m.TotalReceivables, &m.OverdueReceivables, &m.TotalPayables, &m.OverduePayables,
		&m.ExpectedPayments30d, &m.ExpectedExpenses30d, &m.ForecastInflow90d, &m.ForecastOutflow90d,
		&m.Aging1To30, &m.Aging31To60, &m.Aging61To90, &m.Aging90Plus,
		&m.MissingInvoicesCount, &m.MissingInvoicesValue, &m.PendingApprovalCount, &m.PendingApprovalValue,
		&m.DunningLevel1Count, &m.DunningLevel2Count, &m.DunningLevel3Count, &m.SuspendedCustomersCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("dashboard has not been calculated yet: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard cache: %w", err)
	}
	return &snap, nil
}
