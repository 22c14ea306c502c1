package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// BaseCurrency is the reporting currency for dashboard aggregation.
const BaseCurrency = "EUR"

// MinorUnitPlaces is the number of decimal places kept on monetary amounts.
const MinorUnitPlaces = 2

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// CurrencyAmount is an amount in a currency together with the rate from that
// currency to BaseCurrency at the time it was recorded.
type CurrencyAmount struct {
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
}

// RoundMinor rounds to cents, half away from zero (x*100, round, /100).
func RoundMinor(d decimal.Decimal) decimal.Decimal {
	return d.Round(MinorUnitPlaces)
}

// InBase converts the amount to BaseCurrency using its recorded rate.
// A missing rate on a foreign amount is treated as 1.
func (c CurrencyAmount) InBase() decimal.Decimal {
	if c.Currency == BaseCurrency || c.ExchangeRate.IsZero() {
		return c.Amount
	}
	return c.Amount.Mul(c.ExchangeRate)
}

// NormalizeCurrency upper-cases and validates an ISO 4217 code.
func NormalizeCurrency(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !currencyCode.MatchString(c) {
		return "", fmt.Errorf("currency %q is not a 3-letter ISO code: %w", code, ErrValidation)
	}
	return c, nil
}
