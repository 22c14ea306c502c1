package core_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"yourobc-billing/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march15 = time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC)

func TestNumbering_SequenceAndPreview(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool, newTestClock(march15))
	ctx := asAccounting()

	first, err := svc.numbering.NextInvoiceNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "25030013", first)

	preview, err := svc.numbering.PreviewNextInvoiceNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "25030026", preview)

	preview, err = svc.numbering.PreviewNextInvoiceNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "25030026", preview, "preview must not consume")

	second, err := svc.numbering.NextInvoiceNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "25030026", second)

	stats, err := svc.numbering.CounterStats(ctx, 2025, 3)
	require.NoError(t, err)
	assert.True(t, stats.Exists)
	assert.Equal(t, 2, stats.Issued)
	assert.Equal(t, "25030039", stats.NextNumber)
}

func TestNumbering_NewMonthStartsOver(t *testing.T) {
	pool := setupTestDB(t)
	clock := newTestClock(march15)
	svc := newServices(pool, clock)
	ctx := asAccounting()

	_, err := svc.numbering.NextInvoiceNumber(ctx)
	require.NoError(t, err)

	clock.Advance(20 * 24 * time.Hour)
	n, err := svc.numbering.NextInvoiceNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "25040013", n)
}

func TestNumbering_RequiresActor(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool, newTestClock(march15))

	_, err := svc.numbering.NextInvoiceNumber(context.Background())
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)
}

func TestNumbering_ConcurrentIssuersGetDistinctNumbers(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool, newTestClock(march15))
	ctx := asAccounting()

	const workers = 15
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []string
		errs    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := svc.numbering.NextInvoiceNumber(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers = append(numbers, n)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, numbers, workers)
	sort.Strings(numbers)
	for i, n := range numbers {
		assert.Equal(t, core.FormatInvoiceNumber(2025, 3, (i+1)*core.DefaultIncrement), n)
	}
}

func TestNumbering_ResetIsAdminOnly(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool, newTestClock(march15))

	_, err := svc.numbering.ResetCounter(asAccounting(), 2025, 3, 26)
	assert.ErrorIs(t, err, core.ErrForbidden)

	_, err = svc.numbering.ResetCounter(asAdmin(), 2025, 3, 27)
	assert.ErrorIs(t, err, core.ErrValidation)

	c, err := svc.numbering.ResetCounter(asAdmin(), 2025, 3, 26)
	require.NoError(t, err)
	assert.Equal(t, 26, c.LastNumber)

	n, err := svc.numbering.NextInvoiceNumber(asAdmin())
	require.NoError(t, err)
	assert.Equal(t, "25030039", n)

	var audits int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT count(*) FROM audit_logs WHERE entity_type = $1`, core.EntityInvoiceCounter).Scan(&audits))
	assert.Equal(t, 1, audits)
}

func TestNumbering_Exhausted(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool, newTestClock(march15))

	_, err := svc.numbering.ResetCounter(asAdmin(), 2025, 3, 9997)
	require.NoError(t, err)

	_, err = svc.numbering.NextInvoiceNumber(asAdmin())
	assert.ErrorIs(t, err, core.ErrCounterExhausted)
}

func TestPODInvoice_CreatedOnceWithTax(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool, newTestClock(march15))
	terms := 14
	seedCustomer(t, pool, "c-1", &terms)
	seedShipment(t, pool, "s-1", "c-1", "95.50", "EUR", "1")
	ctx := asOperations()

	res, err := svc.invoices.CreateInvoiceFromPOD(ctx, "s-1", nil)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "25030013", res.InvoiceNumber)
	assert.NotEmpty(t, res.LogID)

	inv, err := svc.invoices.GetInvoice(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, core.InvoiceStatusDraft, inv.Status)
	assert.Equal(t, core.InvoiceOutgoing, inv.Type)
	assert.Equal(t, 14, inv.PaymentTerms)
	assert.True(t, inv.DueDate.Equal(march15.AddDate(0, 0, 14)))
	assert.Equal(t, "95.50", inv.Subtotal.Amount.StringFixed(2))
	require.NotNil(t, inv.TaxAmount)
	assert.Equal(t, "18.15", inv.TaxAmount.Amount.StringFixed(2))
	assert.Equal(t, "113.65", inv.TotalAmount.Amount.StringFixed(2))
	require.Len(t, inv.LineItems, 1)

	again, err := svc.invoices.CreateInvoiceFromPOD(ctx, "s-1", nil)
	require.NoError(t, err)
	assert.False(t, again.Success)
	assert.Equal(t, core.ReasonInvoiceExists, again.Reason)
	assert.Equal(t, res.InvoiceNumber, again.InvoiceNumber)

	preview, err := svc.numbering.PreviewNextInvoiceNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "25030026", preview, "duplicate must not consume a number")
}

func TestPODInvoice_ConcurrentCallsCreateOneInvoice(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool, newTestClock(march15))
	seedCustomer(t, pool, "c-1", nil)
	seedShipment(t, pool, "s-1", "c-1", "200", "USD", "0.91")
	ctx := asOperations()

	const callers = 8
	results := make([]*core.AutoInvoiceResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.invoices.CreateInvoiceFromPOD(ctx, "s-1", nil)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	created := 0
	for _, r := range results {
		if r != nil && r.Success {
			created++
		}
	}
	assert.Equal(t, 1, created)

	var count int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT count(*) FROM invoices WHERE shipment_id = 's-1'`).Scan(&count))
	assert.Equal(t, 1, count)

	list, err := svc.invoices.ListInvoices(ctx, core.InvoiceFilter{CustomerID: "c-1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, core.DefaultPaymentTerms, list[0].PaymentTerms)
	assert.Equal(t, "USD", list[0].TotalAmount.Currency)
	assert.Equal(t, "0.91", list[0].TotalAmount.ExchangeRate.String())
}

func TestPODInvoice_NotificationLog(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool, newTestClock(march15))
	seedCustomer(t, pool, "c-1", nil)
	seedShipment(t, pool, "s-1", "c-1", "10", "EUR", "1")
	ctx := asOperations()

	pod := march15.Add(-2 * time.Hour)
	res, err := svc.invoices.CreateInvoiceFromPOD(ctx, "s-1", &pod)
	require.NoError(t, err)

	entry, err := svc.invoices.MarkAutoGenNotificationSent(ctx, res.LogID, []string{"billing@example.com"})
	require.NoError(t, err)
	assert.True(t, entry.NotificationSent)
	assert.Equal(t, []string{"billing@example.com"}, entry.NotificationRecipients)
	assert.True(t, entry.PODReceivedDate.Equal(pod))
}

func TestPODInvoice_UnknownShipment(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool, newTestClock(march15))

	_, err := svc.invoices.CreateInvoiceFromPOD(asOperations(), "missing", nil)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestPODInvoice_ResolvesMissingShipmentRate(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool, newTestClock(march15))
	seedCustomer(t, pool, "c-1", nil)
	seedShipment(t, pool, "s-1", "c-1", "100", "USD", "")
	ctx := asAccounting()

	_, err := svc.rates.CreateRate(ctx, core.CreateRateInput{
		FromCurrency: "USD", ToCurrency: "EUR", Rate: decimal.RequireFromString("0.92"), Date: march15, Source: "ecb",
	})
	require.NoError(t, err)

	res, err := svc.invoices.CreateInvoiceFromPOD(ctx, "s-1", nil)
	require.NoError(t, err)
	require.True(t, res.Success)

	inv, err := svc.invoices.GetInvoice(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, "USD", inv.TotalAmount.Currency)
	assert.Equal(t, "0.92", inv.TotalAmount.ExchangeRate.String())
	assert.Equal(t, "119.00", inv.TotalAmount.Amount.StringFixed(2))

	_, err = svc.invoices.UpdateInvoiceStatus(ctx, res.InvoiceID, core.InvoiceStatusSent)
	require.NoError(t, err)
	_, err = svc.dashboard.RefreshDashboardCache(ctx)
	require.NoError(t, err)
	snap, err := svc.dashboard.GetDashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "109.48", snap.TotalReceivables.StringFixed(2))
}

func TestPODInvoice_StoredShipmentRateWins(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool, newTestClock(march15))
	seedCustomer(t, pool, "c-1", nil)
	seedShipment(t, pool, "s-1", "c-1", "100", "USD", "0.95")
	ctx := asAccounting()

	_, err := svc.rates.CreateRate(ctx, core.CreateRateInput{
		FromCurrency: "USD", ToCurrency: "EUR", Rate: decimal.RequireFromString("0.92"), Date: march15,
	})
	require.NoError(t, err)

	res, err := svc.invoices.CreateInvoiceFromPOD(ctx, "s-1", nil)
	require.NoError(t, err)
	inv, err := svc.invoices.GetInvoice(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, "0.95", inv.TotalAmount.ExchangeRate.String())
}

func TestCreateInvoice_ConvertsLineItems(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool, newTestClock(march15))
	seedCustomer(t, pool, "c-1", nil)

	_, err := svc.rates.CreateRate(asAccounting(), core.CreateRateInput{
		FromCurrency: "USD", ToCurrency: "EUR", Rate: decimal.RequireFromString("0.92"), Date: march15, Source: "ecb",
	})
	require.NoError(t, err)

	inv, err := svc.invoices.CreateInvoice(asAccounting(), core.CreateInvoiceInput{
		CustomerID: "c-1",
		Currency:   "eur",
		LineItems: []core.LineItemInput{
			{Description: "Handling", Amount: decimal.RequireFromString("50"), Currency: "EUR"},
			{Description: "Air freight", Amount: decimal.RequireFromString("100"), Currency: "USD"},
		},
		Tags: []string{"manual", "Manual", " "},
	})
	require.NoError(t, err)

	assert.Equal(t, "25030013", inv.InvoiceNumber)
	assert.Equal(t, core.InvoiceStatusDraft, inv.Status)
	assert.Equal(t, "142.00", inv.Subtotal.Amount.StringFixed(2))
	assert.Nil(t, inv.TaxAmount)
	assert.Equal(t, "142.00", inv.TotalAmount.Amount.StringFixed(2))
	require.Len(t, inv.LineItems, 2)
	require.NotNil(t, inv.LineItems[1].OriginalAmount)
	assert.Equal(t, "USD", inv.LineItems[1].OriginalAmount.Currency)
	assert.Equal(t, []string{"manual"}, inv.Tags)

	stored, err := svc.invoices.GetInvoice(asAccounting(), inv.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.TaxAmount)
	assert.Equal(t, "92.00", stored.LineItems[1].Amount.Amount.StringFixed(2))
}

func TestCreateInvoice_Permissions(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool, newTestClock(march15))
	seedCustomer(t, pool, "c-1", nil)

	in := core.CreateInvoiceInput{
		CustomerID: "c-1",
		Currency:   "EUR",
		LineItems:  []core.LineItemInput{{Description: "x", Amount: decimal.NewFromInt(1), Currency: "EUR"}},
	}
	_, err := svc.invoices.CreateInvoice(asOperations(), in)
	assert.ErrorIs(t, err, core.ErrForbidden)

	_, err = svc.invoices.CreateInvoice(context.Background(), in)
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)

	in.LineItems = nil
	_, err = svc.invoices.CreateInvoice(asAccounting(), in)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestCreateInvoice_ShipmentAlreadyInvoiced(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool, newTestClock(march15))
	seedCustomer(t, pool, "c-1", nil)
	seedShipment(t, pool, "s-1", "c-1", "100", "EUR", "1")
	ctx := asAccounting()

	res, err := svc.invoices.CreateInvoiceFromPOD(ctx, "s-1", nil)
	require.NoError(t, err)
	require.True(t, res.Success)

	in := core.CreateInvoiceInput{
		CustomerID: "c-1",
		ShipmentID: "s-1",
		Currency:   "EUR",
		LineItems:  []core.LineItemInput{{Description: "Extra handling", Amount: decimal.NewFromInt(40), Currency: "EUR"}},
	}
	_, err = svc.invoices.CreateInvoice(ctx, in)
	require.ErrorIs(t, err, core.ErrAlreadyInvoiced)
	assert.Contains(t, err.Error(), res.InvoiceNumber)

	preview, err := svc.numbering.PreviewNextInvoiceNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "25030026", preview, "rejected invoice must not consume a number")

	// A partner bill against the same shipment is still allowed.
	in.Type = core.InvoiceIncoming
	in.CustomerID = ""
	incoming, err := svc.invoices.CreateInvoice(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, core.InvoiceIncoming, incoming.Type)
}

func TestInvoiceLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	clock := newTestClock(march15)
	svc := newServices(pool, clock)
	seedCustomer(t, pool, "c-1", nil)
	seedShipment(t, pool, "s-1", "c-1", "100", "EUR", "1")
	ctx := asAccounting()

	res, err := svc.invoices.CreateInvoiceFromPOD(ctx, "s-1", nil)
	require.NoError(t, err)

	_, err = svc.invoices.RecordCollectionAttempt(ctx, res.InvoiceID, core.CollectionAttemptInput{Method: "email", DunningLevel: 1})
	assert.ErrorIs(t, err, core.ErrInvalidTransition, "drafts cannot be dunned")

	_, err = svc.invoices.UpdateInvoiceStatus(ctx, res.InvoiceID, core.InvoiceStatusPaid)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	inv, err := svc.invoices.UpdateInvoiceStatus(ctx, res.InvoiceID, core.InvoiceStatusSent)
	require.NoError(t, err)
	assert.Equal(t, core.InvoiceStatusSent, inv.Status)

	n, err := svc.invoices.MarkOverdueInvoices(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(31 * 24 * time.Hour)
	n, err = svc.invoices.MarkOverdueInvoices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	inv, err = svc.invoices.RecordCollectionAttempt(ctx, res.InvoiceID, core.CollectionAttemptInput{Method: "letter", DunningLevel: 2, Notes: "second reminder"})
	require.NoError(t, err)
	assert.Equal(t, core.InvoiceStatusOverdue, inv.Status)
	require.Len(t, inv.CollectionAttempts, 1)
	assert.Equal(t, 2, inv.CollectionAttempts[0].DunningLevel)

	_, err = svc.invoices.RecordCollectionAttempt(ctx, res.InvoiceID, core.CollectionAttemptInput{Method: "pigeon", DunningLevel: 1})
	assert.ErrorIs(t, err, core.ErrValidation)

	inv, err = svc.invoices.UpdateInvoiceStatus(ctx, res.InvoiceID, core.InvoiceStatusPaid)
	require.NoError(t, err)
	require.NotNil(t, inv.PaidAt)

	history, err := svc.invoices.GetInvoiceHistory(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(history), 4)
}

func TestResolveRate_AgainstDatabase(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool, newTestClock(march15))
	ctx := asAccounting()

	_, err := svc.rates.CreateRate(ctx, core.CreateRateInput{
		FromCurrency: "EUR", ToCurrency: "USD", Rate: decimal.RequireFromString("1.08"), Date: march15.AddDate(0, 0, -3),
	})
	require.NoError(t, err)

	q, err := svc.rates.ResolveRate(ctx, "USD", "EUR", &march15)
	require.NoError(t, err)
	assert.Equal(t, "database (inverse, historical)", q.Source)
	assert.True(t, q.Degraded())

	replacement, err := svc.rates.CreateRate(ctx, core.CreateRateInput{
		FromCurrency: "EUR", ToCurrency: "USD", Rate: decimal.RequireFromString("1.10"), Date: march15,
	})
	require.NoError(t, err)

	q, err = svc.rates.ResolveRate(ctx, "EUR", "USD", &march15)
	require.NoError(t, err)
	assert.Equal(t, core.SourceDatabase, q.Source)
	assert.Equal(t, "1.1", q.Rate.String())

	require.NoError(t, svc.rates.DeactivateRate(ctx, replacement.ID))
	q, err = svc.rates.ResolveRate(ctx, "EUR", "USD", &march15)
	require.NoError(t, err)
	assert.Equal(t, "database (historical)", q.Source)

	active, err := svc.rates.ListRates(ctx, "EUR", "USD", true)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	all, err := svc.rates.ListRates(ctx, "", "", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	lower, err := svc.rates.ListRates(ctx, " eur", "usd", false)
	require.NoError(t, err)
	assert.Len(t, lower, 2)

	_, err = svc.rates.ListRates(ctx, "euro", "", false)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestDashboardRefresh_CreatedThenUpdated(t *testing.T) {
	pool := setupTestDB(t)
	clock := newTestClock(march15)
	svc := newServices(pool, clock)
	seedCustomer(t, pool, "c-1", nil)
	seedShipment(t, pool, "s-1", "c-1", "100", "EUR", "1")
	ctx := asAccounting()

	_, err := svc.dashboard.GetDashboard(ctx)
	assert.ErrorIs(t, err, core.ErrNotFound)

	res, err := svc.invoices.CreateInvoiceFromPOD(ctx, "s-1", nil)
	require.NoError(t, err)
	_, err = svc.invoices.UpdateInvoiceStatus(ctx, res.InvoiceID, core.InvoiceStatusSent)
	require.NoError(t, err)

	first, err := svc.dashboard.RefreshDashboardCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.RefreshCreated, first.Action)

	clock.Advance(time.Hour)
	second, err := svc.dashboard.RefreshDashboardCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.RefreshUpdated, second.Action)
	assert.Equal(t, first.CacheID, second.CacheID)

	snap, err := svc.dashboard.GetDashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "119.00", snap.TotalReceivables.StringFixed(2))
	assert.Equal(t, "119.00", snap.ExpectedPayments30d.StringFixed(2))
	assert.True(t, snap.ValidUntil.Equal(clock.Now().Add(core.DashboardTTL)))
	assert.False(t, snap.Stale(clock.Now()))
	var audits int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT count(*) FROM audit_logs WHERE entity_type = $1 AND entity_id = $2 AND action = 'accounting_dashboard.refreshed'`,
		core.EntityDashboard, first.CacheID).Scan(&audits))
	assert.Equal(t, 2, audits)
}

func TestDashboardRefresh_RequiresActor(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool, newTestClock(march15))

	_, err := svc.dashboard.RefreshDashboardCache(context.Background())
	assert.ErrorIs(t, err, core.ErrNotAuthenticated)
}
