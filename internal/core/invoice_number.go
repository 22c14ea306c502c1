package core

import (
	"fmt"
	"strconv"
	"time"
)

const (
	// DefaultIncrement is the step between consecutive invoice sequences.
	DefaultIncrement = 13
	// NumberFormat is stored on every counter row.
	NumberFormat = "YYMMNNNN"
	// MaxSequence is the largest value the 4-digit sequence can hold.
	MaxSequence = 9999
)

// ParsedInvoiceNumber is the decomposition of a YYMMNNNN number.
type ParsedInvoiceNumber struct {
	Year     int `json:"year"` // two-digit year as printed
	Month    int `json:"month"`
	Sequence int `json:"sequence"`
	FullYear int `json:"full_year"`
}

// FormatInvoiceNumber renders year (full or two-digit), month and sequence as
// YYMMNNNN.
func FormatInvoiceNumber(year, month, sequence int) string {
	return fmt.Sprintf("%02d%02d%04d", year%100, month, sequence)
}

// IsValidInvoiceNumber reports whether s is eight digits with a month of
// 01-12 and a sequence that is a positive multiple of DefaultIncrement.
func IsValidInvoiceNumber(s string) bool {
	_, err := parseDigits(s)
	return err == nil
}

// ParseInvoiceNumber decomposes s, placing the year in the current century.
func ParseInvoiceNumber(s string) (ParsedInvoiceNumber, error) {
	return parseInvoiceNumberAt(s, time.Now())
}

func parseInvoiceNumberAt(s string, now time.Time) (ParsedInvoiceNumber, error) {
	p, err := parseDigits(s)
	if err != nil {
		return ParsedInvoiceNumber{}, err
	}
	p.FullYear = now.Year()/100*100 + p.Year
	return p, nil
}

func parseDigits(s string) (ParsedInvoiceNumber, error) {
	if len(s) != len(NumberFormat) {
		return ParsedInvoiceNumber{}, fmt.Errorf("invoice number %q must have %d digits: %w", s, len(NumberFormat), ErrValidation)
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return ParsedInvoiceNumber{}, fmt.Errorf("invoice number %q must be numeric: %w", s, ErrValidation)
		}
	}

	year, _ := strconv.Atoi(s[0:2])
	month, _ := strconv.Atoi(s[2:4])
	seq, _ := strconv.Atoi(s[4:8])

	if month < 1 || month > 12 {
		return ParsedInvoiceNumber{}, fmt.Errorf("invoice number %q has invalid month %02d: %w", s, month, ErrValidation)
	}
	if seq <= 0 || seq%DefaultIncrement != 0 {
		return ParsedInvoiceNumber{}, fmt.Errorf("invoice number %q sequence %d is not a positive multiple of %d: %w", s, seq, DefaultIncrement, ErrValidation)
	}
	return ParsedInvoiceNumber{Year: year, Month: month, Sequence: seq}, nil
}

// validateCounterValue checks an administrative reset target.
func validateCounterValue(value, increment int) error {
	if value < 0 {
		return fmt.Errorf("counter value %d must not be negative: %w", value, ErrValidation)
	}
	if value%increment != 0 {
		return fmt.Errorf("counter value %d must be a multiple of %d: %w", value, increment, ErrValidation)
	}
	if value > MaxSequence {
		return fmt.Errorf("counter value %d exceeds %d: %w", value, MaxSequence, ErrValidation)
	}
	return nil
}

// nextSequence is the value the counter issues after last.
func nextSequence(last, increment int) (int, error) {
	next := last + increment
	if next > MaxSequence {
		return 0, ErrCounterExhausted
	}
	return next, nil
}
