package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"yourobc-billing/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type invoiceService struct {
	pool      *pgxpool.Pool
	resolver  *RateResolver
	numbering InvoiceNumberingService
	audit     AuditLog
	log       *zap.Logger
	now       func() time.Time
}

func NewInvoiceService(
	pool *pgxpool.Pool,
	resolver *RateResolver,
	numbering InvoiceNumberingService,
	audit AuditLog,
	log *zap.Logger,
	now func() time.Time,
) InvoiceService {
	if now == nil {
		now = time.Now
	}
	return &invoiceService{
		pool:      pool,
		resolver:  resolver,
		numbering: numbering,
		audit:     audit,
		log:       log,
		now:       now,
	}
}

// ── Persistence ───────────────────────────────────────────────────────────────

const invoiceColumns = `
	id, invoice_number, type, shipment_id, customer_id, issue_date, due_date, description,
	currency, subtotal, tax_amount, total_amount, exchange_rate, status, payment_terms,
	line_items, collection_attempts, notes, tags, paid_at,
	created_at, created_by, updated_at, updated_by`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var (
		inv      Invoice
		currency string
		rate     decimal.Decimal
		subtotal decimal.Decimal
		tax      decimal.NullDecimal
		total    decimal.Decimal
	)
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.Type, &inv.ShipmentID, &inv.CustomerID, &inv.IssueDate, &inv.DueDate, &inv.Description,
		&currency, &subtotal, &tax, &total, &rate, &inv.Status, &inv.PaymentTerms,
		&inv.LineItems, &inv.CollectionAttempts, &inv.Notes, &inv.Tags, &inv.PaidAt,
		&inv.CreatedAt, &inv.CreatedBy, &inv.UpdatedAt, &inv.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}

	inv.Subtotal = CurrencyAmount{Amount: subtotal, Currency: currency, ExchangeRate: rate}
	inv.TotalAmount = CurrencyAmount{Amount: total, Currency: currency, ExchangeRate: rate}
	if tax.Valid {
		inv.TaxAmount = &CurrencyAmount{Amount: tax.Decimal, Currency: currency, ExchangeRate: rate}
	}
	if inv.LineItems == nil {
		inv.LineItems = []LineItem{}
	}
	if inv.CollectionAttempts == nil {
		inv.CollectionAttempts = []CollectionAttempt{}
	}
	return &inv, nil
}

func insertInvoice(ctx context.Context, q db.Querier, inv *Invoice) error {
	var tax decimal.NullDecimal
	if inv.TaxAmount != nil {
		tax = decimal.NewNullDecimal(inv.TaxAmount.Amount)
	}
	_, err := q.Exec(ctx, `
		INSERT INTO invoices (
			id, invoice_number, type, shipment_id, customer_id, issue_date, due_date, description,
			currency, subtotal, tax_amount, total_amount, exchange_rate, status, payment_terms,
			line_items, collection_attempts, notes, tags,
			created_at, created_by, updated_at, updated_by
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19,
			$20, $21, $20, $21
		)`,
		inv.ID, inv.InvoiceNumber, string(inv.Type), inv.ShipmentID, inv.CustomerID, inv.IssueDate, inv.DueDate, inv.Description,
		inv.Subtotal.Currency, inv.Subtotal.Amount, tax, inv.TotalAmount.Amount, inv.Subtotal.ExchangeRate, string(inv.Status), inv.PaymentTerms,
		inv.LineItems, inv.CollectionAttempts, inv.Notes, inv.Tags,
		inv.CreatedAt, inv.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert invoice %s: %w", inv.InvoiceNumber, err)
	}
	return nil
}

func loadInvoice(ctx context.Context, q db.Querier, id string, forUpdate bool) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	inv, err := scanInvoice(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("invoice %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice %s: %w", id, err)
	}
	return inv, nil
}

// outgoingInvoiceFor returns the id and number of the shipment's outgoing
// invoice, or empty strings when it has none. Callers hold the shipment lock.
func outgoingInvoiceFor(ctx context.Context, q db.Querier, shipmentID string) (string, string, error) {
	var id, number string
	err := q.QueryRow(ctx, `
		SELECT id, invoice_number FROM invoices
		WHERE shipment_id = $1 AND type = $2
		LIMIT 1`, shipmentID, string(InvoiceOutgoing)).Scan(&id, &number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to check existing invoice for shipment %s: %w", shipmentID, err)
	}
	return id, number, nil
}

// baseRate is the rate from currency to BaseCurrency recorded on new amounts.
func baseRate(ctx context.Context, r *RateResolver, currency string, at time.Time) (decimal.Decimal, error) {
	if currency == BaseCurrency {
		return one, nil
	}
	q, err := r.ResolveRate(ctx, currency, BaseCurrency, &at)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to resolve %s/%s: %w", currency, BaseCurrency, err)
	}
	return q.Rate, nil
}

// ── Manual creation ───────────────────────────────────────────────────────────

func (s *invoiceService) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*Invoice, error) {
	actor, err := requireRole(ctx, RoleAdmin, RoleAccounting)
	if err != nil {
		return nil, err
	}

	if in.Type == "" {
		in.Type = InvoiceOutgoing
	}
	if in.Type != InvoiceOutgoing && in.Type != InvoiceIncoming {
		return nil, fmt.Errorf("invoice type %q: %w", in.Type, ErrValidation)
	}
	if in.Type == InvoiceOutgoing && in.CustomerID == "" {
		return nil, fmt.Errorf("customer is required for outgoing invoices: %w", ErrValidation)
	}
	currency, err := NormalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	if len(in.LineItems) == 0 {
		return nil, fmt.Errorf("at least one line item is required: %w", ErrValidation)
	}
	if in.TaxRate != nil && in.TaxRate.IsNegative() {
		return nil, fmt.Errorf("tax rate must not be negative: %w", ErrValidation)
	}
	if in.PaymentTerms != nil && *in.PaymentTerms < 0 {
		return nil, fmt.Errorf("payment terms must not be negative: %w", ErrValidation)
	}

	now := s.now().UTC()
	var inv *Invoice

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		resolver := s.resolver.WithStore(NewRateStore(tx))

		terms := DefaultPaymentTerms
		var customerID *string
		if in.CustomerID != "" {
			customer, err := getCustomer(ctx, tx, in.CustomerID)
			if err != nil {
				return err
			}
			terms = customer.Terms()
			customerID = &customer.ID
		}
		if in.PaymentTerms != nil {
			terms = *in.PaymentTerms
		}

		var shipmentID *string
		if in.ShipmentID != "" {
			sh, err := lockShipment(ctx, tx, in.ShipmentID)
			if err != nil {
				return err
			}
			if in.Type == InvoiceOutgoing {
				_, existing, err := outgoingInvoiceFor(ctx, tx, sh.ID)
				if err != nil {
					return err
				}
				if existing != "" {
					return fmt.Errorf("shipment %s is invoiced as %s: %w", sh.ID, existing, ErrAlreadyInvoiced)
				}
			}
			shipmentID = &sh.ID
		}

		rate, err := baseRate(ctx, resolver, currency, now)
		if err != nil {
			return err
		}

		items, subtotal, err := convertLineItems(ctx, resolver, in.LineItems, currency, rate, now)
		if err != nil {
			return err
		}

		number, err := s.numbering.NextInvoiceNumberTx(ctx, tx)
		if err != nil {
			return err
		}

		inv = &Invoice{
			ID:                 uuid.NewString(),
			InvoiceNumber:      number,
			Type:               in.Type,
			ShipmentID:         shipmentID,
			CustomerID:         customerID,
			IssueDate:          now,
			DueDate:            dueDate(now, terms),
			Description:        in.Description,
			Status:             InvoiceStatusDraft,
			PaymentTerms:       terms,
			LineItems:          items,
			CollectionAttempts: []CollectionAttempt{},
			Notes:              in.Notes,
			Tags:               normalizeTags(in.Tags),
			CreatedAt:          now,
			CreatedBy:          actor.ID,
			UpdatedAt:          now,
			UpdatedBy:          actor.ID,
		}
		applyTotals(inv, subtotal, currency, rate, in.TaxRate)

		if err := insertInvoice(ctx, tx, inv); err != nil {
			return err
		}

		return s.audit.Record(ctx, tx, AuditEntry{
			Action:      "invoice.created",
			EntityType:  EntityInvoice,
			EntityID:    inv.ID,
			EntityTitle: inv.InvoiceNumber,
			Description: fmt.Sprintf("%s invoice %s created for %s %s", inv.Type, inv.InvoiceNumber, inv.TotalAmount.Amount.StringFixed(2), currency),
			ActorID:     actor.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("invoice created",
		zap.String("invoice_id", inv.ID),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("total", inv.TotalAmount.Amount.StringFixed(2)),
		zap.String("currency", currency),
	)
	return inv, nil
}

// convertLineItems converts each position into currency and returns the
// stored items with their summed subtotal.
func convertLineItems(ctx context.Context, r *RateResolver, inputs []LineItemInput, currency string, rate decimal.Decimal, at time.Time) ([]LineItem, decimal.Decimal, error) {
	items := make([]LineItem, 0, len(inputs))
	subtotal := decimal.Zero

	for i, li := range inputs {
		from, err := NormalizeCurrency(li.Currency)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("line %d: %w", i+1, err)
		}
		if li.Amount.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("line %d amount must not be negative: %w", i+1, ErrValidation)
		}

		item := LineItem{Description: li.Description}
		if from == currency {
			item.Amount = CurrencyAmount{Amount: li.Amount, Currency: currency, ExchangeRate: rate}
		} else {
			conv, err := r.Convert(ctx, li.Amount, from, currency, &at)
			if err != nil {
				return nil, decimal.Zero, fmt.Errorf("line %d: %w", i+1, err)
			}
			item.Amount = CurrencyAmount{Amount: conv.ConvertedAmount, Currency: currency, ExchangeRate: rate}
			item.OriginalAmount = &CurrencyAmount{Amount: li.Amount, Currency: from, ExchangeRate: conv.ExchangeRate}
		}
		subtotal = subtotal.Add(item.Amount.Amount)
		items = append(items, item)
	}
	return items, RoundMinor(subtotal), nil
}

func applyTotals(inv *Invoice, subtotal decimal.Decimal, currency string, rate decimal.Decimal, taxRate *decimal.Decimal) {
	tax, total := invoiceTotals(subtotal, taxRate)
	inv.Subtotal = CurrencyAmount{Amount: subtotal, Currency: currency, ExchangeRate: rate}
	inv.TotalAmount = CurrencyAmount{Amount: total, Currency: currency, ExchangeRate: rate}
	if tax != nil {
		inv.TaxAmount = &CurrencyAmount{Amount: *tax, Currency: currency, ExchangeRate: rate}
	}
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(strings.ToLower(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// ── Proof-of-delivery creation ────────────────────────────────────────────────

func (s *invoiceService) CreateInvoiceFromPOD(ctx context.Context, shipmentID string, podReceived *time.Time) (*AutoInvoiceResult, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	result := &AutoInvoiceResult{}

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		sh, err := lockShipment(ctx, tx, shipmentID)
		if err != nil {
			return err
		}

		existingID, existingNumber, err := outgoingInvoiceFor(ctx, tx, sh.ID)
		if err != nil {
			return err
		}
		if existingID != "" {
			result.Reason = ReasonInvoiceExists
			result.InvoiceID = existingID
			result.InvoiceNumber = existingNumber
			return nil
		}

		customer, err := getCustomer(ctx, tx, sh.CustomerID)
		if err != nil {
			return err
		}

		number, err := s.numbering.NextInvoiceNumberTx(ctx, tx)
		if err != nil {
			return err
		}

		price := sh.AgreedPrice
		switch {
		case price.Currency == BaseCurrency:
			price.ExchangeRate = one
		case !price.ExchangeRate.IsPositive():
			price.ExchangeRate, err = baseRate(ctx, s.resolver.WithStore(NewRateStore(tx)), price.Currency, now)
			if err != nil {
				return err
			}
		}
		terms := customer.Terms()
		taxRate := decimal.NewFromInt(PODTaxRate)

		inv := &Invoice{
			ID:            uuid.NewString(),
			InvoiceNumber: number,
			Type:          InvoiceOutgoing,
			ShipmentID:    &sh.ID,
			CustomerID:    &customer.ID,
			IssueDate:     now,
			DueDate:       dueDate(now, terms),
			Description:   fmt.Sprintf("Shipment %s: %s → %s", sh.ShipmentNumber, sh.Origin, sh.Destination),
			Status:        InvoiceStatusDraft,
			PaymentTerms:  terms,
			LineItems: []LineItem{{
				Description: fmt.Sprintf("Courier service %s", sh.ShipmentNumber),
				Amount:      price,
			}},
			CollectionAttempts: []CollectionAttempt{},
			Tags:               []string{"auto-generated", "pod"},
			CreatedAt:          now,
			CreatedBy:          actor.ID,
			UpdatedAt:          now,
			UpdatedBy:          actor.ID,
		}
		applyTotals(inv, price.Amount, price.Currency, price.ExchangeRate, &taxRate)

		if err := insertInvoice(ctx, tx, inv); err != nil {
			return err
		}

		podDate := now
		switch {
		case podReceived != nil:
			podDate = podReceived.UTC()
		case sh.PODReceivedAt != nil:
			podDate = sh.PODReceivedAt.UTC()
		case sh.CompletedAt != nil:
			podDate = sh.CompletedAt.UTC()
		}

		logID := uuid.NewString()
		if _, err := tx.Exec(ctx, `
			INSERT INTO invoice_auto_gen_log (
				id, shipment_id, invoice_id, invoice_number, generated_date, pod_received_date,
				notification_sent, notification_recipients, status
			) VALUES ($1, $2, $3, $4, $5, $6, false, '{}', 'generated')`,
			logID, sh.ID, inv.ID, inv.InvoiceNumber, now, podDate); err != nil {
			return fmt.Errorf("failed to write auto-generation log: %w", err)
		}

		if err := s.audit.Record(ctx, tx, AuditEntry{
			Action:      "invoice.auto_generated",
			EntityType:  EntityInvoice,
			EntityID:    inv.ID,
			EntityTitle: inv.InvoiceNumber,
			Description: fmt.Sprintf("invoice %s generated on proof of delivery for shipment %s", inv.InvoiceNumber, sh.ShipmentNumber),
			ActorID:     actor.ID,
		}); err != nil {
			return err
		}

		result.Success = true
		result.InvoiceID = inv.ID
		result.InvoiceNumber = inv.InvoiceNumber
		result.LogID = logID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Success {
		s.log.Info("invoice generated from proof of delivery",
			zap.String("shipment_id", shipmentID),
			zap.String("invoice_number", result.InvoiceNumber),
		)
	} else {
		s.log.Info("proof of delivery ignored, invoice exists",
			zap.String("shipment_id", shipmentID),
			zap.String("invoice_number", result.InvoiceNumber),
		)
	}
	return result, nil
}

func (s *invoiceService) MarkAutoGenNotificationSent(ctx context.Context, logID string, recipients []string) (*AutoGenLog, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("at least one recipient is required: %w", ErrValidation)
	}

	var l AutoGenLog
	err := s.pool.QueryRow(ctx, `
		UPDATE invoice_auto_gen_log
		SET notification_sent = true,
		    notification_sent_date = $2,
		    notification_recipients = $3,
		    status = 'notified'
		WHERE id = $1
		RETURNING id, shipment_id, invoice_id, invoice_number, generated_date, pod_received_date,
		          notification_sent, notification_sent_date, notification_recipients, status`,
		logID, s.now().UTC(), recipients,
	).Scan(&l.ID, &l.ShipmentID, &l.InvoiceID, &l.InvoiceNumber, &l.GeneratedDate, &l.PODReceivedDate,
		&l.NotificationSent, &l.NotificationSentDate, &l.NotificationRecipients, &l.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("auto-generation log %s: %w", logID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return &l, nil
}

// ── Status and dunning ────────────────────────────────────────────────────────

func (s *invoiceService) UpdateInvoiceStatus(ctx context.Context, id string, status InvoiceStatus) (*Invoice, error) {
	actor, err := requireRole(ctx, RoleAdmin, RoleAccounting)
	if err != nil {
		return nil, err
	}

	var inv *Invoice
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := loadInvoice(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if !current.Status.CanTransition(status) {
			return fmt.Errorf("%s -> %s: %w", current.Status, status, ErrInvalidTransition)
		}

		now := s.now().UTC()
		var paidAt *time.Time
		if status == InvoiceStatusPaid {
			paidAt = &now
		}
		if _, err := tx.Exec(ctx, `
			UPDATE invoices
			SET status = $2, paid_at = COALESCE($3, paid_at), updated_at = $4, updated_by = $5
			WHERE id = $1`, id, string(status), paidAt, now, actor.ID); err != nil {
			return fmt.Errorf("failed to update invoice status: %w", err)
		}

		if err := s.audit.Record(ctx, tx, AuditEntry{
			Action:      "invoice.status_changed",
			EntityType:  EntityInvoice,
			EntityID:    id,
			EntityTitle: current.InvoiceNumber,
			Description: fmt.Sprintf("status %s -> %s", current.Status, status),
			ActorID:     actor.ID,
		}); err != nil {
			return err
		}

		inv, err = loadInvoice(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *invoiceService) MarkOverdueInvoices(ctx context.Context) (int, error) {
	actor, err := requireRole(ctx, RoleAdmin, RoleAccounting)
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	count := 0
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			UPDATE invoices
			SET status = $1, updated_at = $3, updated_by = $4
			WHERE status = $2 AND due_date < $3
			RETURNING id, invoice_number`,
			string(InvoiceStatusOverdue), string(InvoiceStatusSent), now, actor.ID)
		if err != nil {
			return fmt.Errorf("failed to mark overdue invoices: %w", err)
		}

		type changed struct{ id, number string }
		var updated []changed
		for rows.Next() {
			var c changed
			if err := rows.Scan(&c.id, &c.number); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan overdue invoice: %w", err)
			}
			updated = append(updated, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating overdue invoices: %w", err)
		}

		for _, c := range updated {
			if err := s.audit.Record(ctx, tx, AuditEntry{
				Action:      "invoice.status_changed",
				EntityType:  EntityInvoice,
				EntityID:    c.id,
				EntityTitle: c.number,
				Description: "status sent -> overdue (due date passed)",
				ActorID:     actor.ID,
			}); err != nil {
				return err
			}
		}
		count = len(updated)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.log.Info("invoices marked overdue", zap.Int("count", count))
	}
	return count, nil
}

func (s *invoiceService) RecordCollectionAttempt(ctx context.Context, id string, in CollectionAttemptInput) (*Invoice, error) {
	actor, err := requireRole(ctx, RoleAdmin, RoleAccounting)
	if err != nil {
		return nil, err
	}
	if !collectionMethods[in.Method] {
		return nil, fmt.Errorf("collection method %q: %w", in.Method, ErrValidation)
	}
	if in.DunningLevel < 1 || in.DunningLevel > 3 {
		return nil, fmt.Errorf("dunning level %d must be between 1 and 3: %w", in.DunningLevel, ErrValidation)
	}

	var inv *Invoice
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := loadInvoice(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if current.Status != InvoiceStatusSent && current.Status != InvoiceStatusOverdue {
			return fmt.Errorf("collection attempts require a sent or overdue invoice, status is %s: %w", current.Status, ErrInvalidTransition)
		}

		now := s.now().UTC()
		attempts := append(current.CollectionAttempts, CollectionAttempt{
			AttemptedAt:  now,
			Method:       in.Method,
			DunningLevel: in.DunningLevel,
			Notes:        in.Notes,
			ActorID:      actor.ID,
		})
		if _, err := tx.Exec(ctx, `
			UPDATE invoices SET collection_attempts = $2, updated_at = $3, updated_by = $4
			WHERE id = $1`, id, attempts, now, actor.ID); err != nil {
			return fmt.Errorf("failed to record collection attempt: %w", err)
		}

		if err := s.audit.Record(ctx, tx, AuditEntry{
			Action:      "invoice.collection_attempt",
			EntityType:  EntityInvoice,
			EntityID:    id,
			EntityTitle: current.InvoiceNumber,
			Description: fmt.Sprintf("dunning level %d via %s", in.DunningLevel, in.Method),
			ActorID:     actor.ID,
		}); err != nil {
			return err
		}

		inv, err = loadInvoice(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	return loadInvoice(ctx, s.pool, id, false)
}

func (s *invoiceService) ListInvoices(ctx context.Context, f InvoiceFilter) ([]Invoice, error) {
	q := `SELECT ` + invoiceColumns + ` FROM invoices WHERE true`
	var args []any
	if f.Type != "" {
		args = append(args, string(f.Type))
		q += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		q += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	q += " ORDER BY issue_date DESC, invoice_number DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	invoices := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

func (s *invoiceService) GetInvoiceHistory(ctx context.Context, id string) ([]AuditEntry, error) {
	if _, err := loadInvoice(ctx, s.pool, id, false); err != nil {
		return nil, err
	}
	return s.audit.History(ctx, s.pool, EntityInvoice, id)
}
