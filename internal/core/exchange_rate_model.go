package core

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is a directional daily quote: 1 FromCurrency = Rate ToCurrency.
type ExchangeRate struct {
	ID           string          `json:"id"`
	FromCurrency string          `json:"from_currency"`
	ToCurrency   string          `json:"to_currency"`
	Rate         decimal.Decimal `json:"rate"`
	Date         time.Time       `json:"date"`
	Source       *string         `json:"source,omitempty"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	CreatedBy    string          `json:"created_by"`
}

// Source tags attached to resolved quotes. Anything other than an exact-date
// direct or inverse hit is a degraded answer callers should surface.
const (
	SourceNoConversion    = "no_conversion"
	SourceDefaultFallback = "default_fallback"
	SourceDatabase        = "database"

	inverseSuffix           = " (inverse)"
	historicalSuffix        = " (historical)"
	inverseHistoricalSuffix = " (inverse, historical)"
)

// RateQuote is the answer of the resolver.
type RateQuote struct {
	Rate   decimal.Decimal `json:"rate"`
	Date   time.Time       `json:"date"`
	Source string          `json:"source"`
}

// Degraded reports whether the quote came from a historical or default tier.
func (q RateQuote) Degraded() bool {
	return q.Source == SourceDefaultFallback || strings.HasSuffix(q.Source, "historical)")
}

// Conversion is the result of applying a quote to an amount.
// OriginalCurrency is empty when no conversion was necessary.
type Conversion struct {
	OriginalAmount   decimal.Decimal `json:"original_amount"`
	ConvertedAmount  decimal.Decimal `json:"converted_amount"`
	Currency         string          `json:"currency"`
	ExchangeRate     decimal.Decimal `json:"exchange_rate"`
	OriginalCurrency string          `json:"original_currency,omitempty"`
	Source           string          `json:"source"`
}

// CreateRateInput is the input for recording a new daily quote.
type CreateRateInput struct {
	FromCurrency string
	ToCurrency   string
	Rate         decimal.Decimal
	Date         time.Time
	Source       string
}

// RateStore reads active quotes. Both methods return (nil, nil) when no
// matching quote exists.
type RateStore interface {
	FindActiveRate(ctx context.Context, from, to string, day time.Time) (*ExchangeRate, error)
	LatestActiveRate(ctx context.Context, from, to string) (*ExchangeRate, error)
}

// RateCache is an optional read-through cache of resolved quotes keyed by
// pair and day. Implementations swallow their own transport errors.
type RateCache interface {
	Get(ctx context.Context, from, to string, day time.Time) (RateQuote, bool)
	Set(ctx context.Context, from, to string, day time.Time, q RateQuote)
	InvalidatePair(ctx context.Context, from, to string)
}

// ExchangeRateService resolves, converts and administers exchange rates.
type ExchangeRateService interface {
	// ResolveRate never fails for a missing rate; it degrades through the
	// inverse, historical and default tiers and reports which one answered.
	ResolveRate(ctx context.Context, from, to string, asOf *time.Time) (RateQuote, error)

	// Convert applies ResolveRate to amount, rounding to cents.
	Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOf *time.Time) (Conversion, error)

	// CreateRate records a quote, retiring any active quote for the same pair and day.
	CreateRate(ctx context.Context, in CreateRateInput) (*ExchangeRate, error)

	// DeactivateRate retires a quote without deleting it.
	DeactivateRate(ctx context.Context, id string) error

	// ListRates returns quotes newest first; empty currencies mean no filter.
	ListRates(ctx context.Context, from, to string, activeOnly bool) ([]ExchangeRate, error)
}

// TruncateDay returns midnight UTC of t's UTC calendar day.
func TruncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
