package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"yourobc-billing/internal/db"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Customer is the subset of the CRM customer record billing needs.
type Customer struct {
	ID           string `json:"id"`
	CompanyName  string `json:"company_name"`
	PaymentTerms *int   `json:"payment_terms,omitempty"`
	Currency     string `json:"currency"`
}

// Terms returns the customer's payment terms or DefaultPaymentTerms.
func (c Customer) Terms() int {
	if c.PaymentTerms != nil {
		return *c.PaymentTerms
	}
	return DefaultPaymentTerms
}

// Shipment is the subset of the operations shipment record billing needs.
type Shipment struct {
	ID             string         `json:"id"`
	ShipmentNumber string         `json:"shipment_number"`
	CustomerID     string         `json:"customer_id"`
	Origin         string         `json:"origin"`
	Destination    string         `json:"destination"`
	AgreedPrice    CurrencyAmount `json:"agreed_price"`
	Status         string         `json:"status"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	PODReceivedAt  *time.Time     `json:"pod_received_at,omitempty"`
}

func getCustomer(ctx context.Context, q db.Querier, id string) (*Customer, error) {
	var c Customer
	err := q.QueryRow(ctx, `
		SELECT id, company_name, payment_terms, currency
		FROM customers
		WHERE id = $1`, id,
	).Scan(&c.ID, &c.CompanyName, &c.PaymentTerms, &c.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load customer %s: %w", id, err)
	}
	return &c, nil
}

// lockShipment reads a shipment and holds its row lock for the rest of the
// transaction, serializing concurrent POD triggers for the same shipment.
func lockShipment(ctx context.Context, q db.Querier, id string) (*Shipment, error) {
	var s Shipment
	var rate decimal.NullDecimal
	err := q.QueryRow(ctx, `
		SELECT id, shipment_number, customer_id, origin, destination,
		       agreed_price_amount, agreed_price_currency, agreed_price_exchange_rate,
		       status, completed_at, pod_received_at
		FROM shipments
		WHERE id = $1
		FOR UPDATE`, id,
	).Scan(&s.ID, &s.ShipmentNumber, &s.CustomerID, &s.Origin, &s.Destination,
		&s.AgreedPrice.Amount, &s.AgreedPrice.Currency, &rate,
		&s.Status, &s.CompletedAt, &s.PODReceivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("shipment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load shipment %s: %w", id, err)
	}
	// A shipment priced without a rate keeps a zero rate until invoicing resolves one.
	if rate.Valid {
		s.AgreedPrice.ExchangeRate = rate.Decimal
	}
	return &s, nil
}
