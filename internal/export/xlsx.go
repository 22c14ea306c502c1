// Package export renders billing data as XLSX workbooks.
package export

import (
	"fmt"
	"io"

	"yourobc-billing/internal/core"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	ContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	dashboardSheet  = "Dashboard"
	invoicesSheet   = "Invoices"
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

var invoiceHeadings = []string{
	"Invoice Number", "Type", "Status", "Issue Date", "Due Date", "Currency",
	"Subtotal", "Tax", "Total", "Exchange Rate", "Total (EUR)", "Payment Terms", "Description",
}

func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func newWorkbook(sheet string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
	})
}

// WriteDashboard writes a two-column metric/value sheet for snap.
func WriteDashboard(w io.Writer, snap *core.DashboardSnapshot) error {
	f, err := newWorkbook(dashboardSheet)
	if err != nil {
		return err
	}
	defer f.Close()

	m := snap.DashboardMetrics
	rows := [][]any{
		{"Metric", "Value"},
		{"Cache Date", snap.CacheDate.Format(dateLayout)},
		{"Calculated At", snap.CalculatedAt.UTC().Format(timestampLayout)},
		{"Valid Until", snap.ValidUntil.UTC().Format(timestampLayout)},
		{"Total Receivables (EUR)", money(m.TotalReceivables)},
		{"Overdue Receivables (EUR)", money(m.OverdueReceivables)},
		{"Total Payables (EUR)", money(m.TotalPayables)},
		{"Overdue Payables (EUR)", money(m.OverduePayables)},
		{"Expected Payments 30d (EUR)", money(m.ExpectedPayments30d)},
		{"Expected Expenses 30d (EUR)", money(m.ExpectedExpenses30d)},
		{"Forecast Inflow 90d (EUR)", money(m.ForecastInflow90d)},
		{"Forecast Outflow 90d (EUR)", money(m.ForecastOutflow90d)},
		{"Aging 1-30 (EUR)", money(m.Aging1To30)},
		{"Aging 31-60 (EUR)", money(m.Aging31To60)},
		{"Aging 61-90 (EUR)", money(m.Aging61To90)},
		{"Aging 90+ (EUR)", money(m.Aging90Plus)},
		{"Missing Invoices", m.MissingInvoicesCount},
		{"Pending Approval", m.PendingApprovalCount},
		{"Dunning Level 1", m.DunningLevel1Count},
		{"Dunning Level 2", m.DunningLevel2Count},
		{"Dunning Level 3", m.DunningLevel3Count},
		{"Suspended Customers", m.SuspendedCustomersCount},
	}
	for i, r := range rows {
		if err := setRow(f, dashboardSheet, i+1, r...); err != nil {
			return fmt.Errorf("failed to write dashboard row %d: %w", i+1, err)
		}
	}

	style, err := headerStyle(f)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(dashboardSheet, "A1", "B1", style); err != nil {
		return err
	}
	if err := f.SetColWidth(dashboardSheet, "A", "A", 32); err != nil {
		return err
	}
	return f.Write(w)
}

// WriteInvoices writes one row per invoice.
func WriteInvoices(w io.Writer, invoices []core.Invoice) error {
	f, err := newWorkbook(invoicesSheet)
	if err != nil {
		return err
	}
	defer f.Close()

	headings := make([]any, len(invoiceHeadings))
	for i, h := range invoiceHeadings {
		headings[i] = h
	}
	if err := setRow(f, invoicesSheet, 1, headings...); err != nil {
		return err
	}

	for i, inv := range invoices {
		var tax any
		if inv.TaxAmount != nil {
			tax = money(inv.TaxAmount.Amount)
		}
		err := setRow(f, invoicesSheet, i+2,
			inv.InvoiceNumber,
			string(inv.Type),
			string(inv.Status),
			inv.IssueDate.Format(dateLayout),
			inv.DueDate.Format(dateLayout),
			inv.TotalAmount.Currency,
			money(inv.Subtotal.Amount),
			tax,
			money(inv.TotalAmount.Amount),
			inv.TotalAmount.ExchangeRate.String(),
			money(core.RoundMinor(inv.TotalAmount.InBase())),
			inv.PaymentTerms,
			inv.Description,
		)
		if err != nil {
			return fmt.Errorf("failed to write invoice %s: %w", inv.InvoiceNumber, err)
		}
	}

	style, err := headerStyle(f)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(invoiceHeadings), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(invoicesSheet, "A1", last, style); err != nil {
		return err
	}
	if err := f.SetPanes(invoicesSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	return f.Write(w)
}
