package export

import (
	"bytes"
	"testing"
	"time"

	"yourobc-billing/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteDashboard(t *testing.T) {
	now := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	snap := &core.DashboardSnapshot{
		ID:           "cache-1",
		CacheDate:    core.TruncateDay(now),
		CalculatedAt: now,
		ValidUntil:   now.Add(core.DashboardTTL),
		DashboardMetrics: core.DashboardMetrics{
			TotalReceivables: decimal.RequireFromString("1234.50"),
			Aging1To30:       decimal.RequireFromString("100"),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDashboard(&buf, snap))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(dashboardSheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Metric", v)

	v, err = f.GetCellValue(dashboardSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-15", v)

	v, err = f.GetCellValue(dashboardSheet, "B5")
	require.NoError(t, err)
	assert.Equal(t, "1234.5", v)
}

func TestWriteInvoices(t *testing.T) {
	rate := decimal.RequireFromString("0.91")
	tax := core.CurrencyAmount{Amount: decimal.RequireFromString("19.00"), Currency: "USD", ExchangeRate: rate}
	invoices := []core.Invoice{
		{
			InvoiceNumber: "25030013",
			Type:          core.InvoiceOutgoing,
			Status:        core.InvoiceStatusSent,
			IssueDate:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			DueDate:       time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
			Subtotal:      core.CurrencyAmount{Amount: decimal.NewFromInt(100), Currency: "USD", ExchangeRate: rate},
			TaxAmount:     &tax,
			TotalAmount:   core.CurrencyAmount{Amount: decimal.NewFromInt(119), Currency: "USD", ExchangeRate: rate},
			PaymentTerms:  30,
		},
		{
			InvoiceNumber: "25030026",
			Type:          core.InvoiceIncoming,
			Status:        core.InvoiceStatusDraft,
			Subtotal:      core.CurrencyAmount{Amount: decimal.NewFromInt(50), Currency: "EUR", ExchangeRate: decimal.NewFromInt(1)},
			TotalAmount:   core.CurrencyAmount{Amount: decimal.NewFromInt(50), Currency: "EUR", ExchangeRate: decimal.NewFromInt(1)},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteInvoices(&buf, invoices))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(invoicesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Invoice Number", rows[0][0])
	assert.Equal(t, "25030013", rows[1][0])
	assert.Equal(t, "108.29", rows[1][10])
	assert.Equal(t, "", rows[2][7], "no tax configured leaves the cell empty")
}
