package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"yourobc-billing/internal/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// InvoiceCounter is the per-month numbering row.
type InvoiceCounter struct {
	Year        int       `json:"year"`
	Month       int       `json:"month"`
	LastNumber  int       `json:"last_number"`
	Format      string    `json:"format"`
	IncrementBy int       `json:"increment_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatedBy   string    `json:"created_by"`
}

// IssuedCount is the number of invoice numbers handed out this month.
func (c InvoiceCounter) IssuedCount() int {
	if c.IncrementBy == 0 {
		return 0
	}
	return c.LastNumber / c.IncrementBy
}

// CounterStats summarises a month's counter, whether or not the row exists.
type CounterStats struct {
	Counter    InvoiceCounter `json:"counter"`
	Exists     bool           `json:"exists"`
	Issued     int            `json:"issued"`
	NextNumber string         `json:"next_number,omitempty"`
}

type InvoiceNumberingService interface {
	// NextInvoiceNumber consumes the next number in its own transaction.
	NextInvoiceNumber(ctx context.Context) (string, error)

	// NextInvoiceNumberTx consumes the next number inside the caller's
	// transaction. The counter row stays locked until that transaction ends,
	// which serializes concurrent issuers for the same month.
	NextInvoiceNumberTx(ctx context.Context, q db.Querier) (string, error)

	// PreviewNextInvoiceNumber returns what NextInvoiceNumber would issue now
	// without consuming it.
	PreviewNextInvoiceNumber(ctx context.Context) (string, error)

	// ResetCounter sets the month's last issued sequence. Admin only; value
	// must be a non-negative multiple of the increment.
	ResetCounter(ctx context.Context, year, month, value int) (*InvoiceCounter, error)

	// CounterStats returns the month's counter state.
	CounterStats(ctx context.Context, year, month int) (*CounterStats, error)
}

type invoiceNumberingService struct {
	pool  *pgxpool.Pool
	audit AuditLog
	log   *zap.Logger
	now   func() time.Time
}

func NewInvoiceNumberingService(pool *pgxpool.Pool, audit AuditLog, log *zap.Logger, now func() time.Time) InvoiceNumberingService {
	if now == nil {
		now = time.Now
	}
	return &invoiceNumberingService{pool: pool, audit: audit, log: log, now: now}
}

// period returns the server-clock year and month. Callers cannot choose the
// period so numbers always reflect issuance time.
func (s *invoiceNumberingService) period() (int, int) {
	t := s.now().UTC()
	return t.Year(), int(t.Month())
}

func (s *invoiceNumberingService) NextInvoiceNumber(ctx context.Context) (string, error) {
	var number string
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		number, err = s.NextInvoiceNumberTx(ctx, tx)
		return err
	})
	return number, err
}

func (s *invoiceNumberingService) NextInvoiceNumberTx(ctx context.Context, q db.Querier) (string, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return "", err
	}
	year, month := s.period()

	// First call of the month inserts last_number = increment, so the first
	// sequence is 0013. Later calls add increment under the row lock.
	var next int
	err = q.QueryRow(ctx, `
		INSERT INTO invoice_numbering (year, month, last_number, format, increment_by, created_by)
		VALUES ($1, $2, $3, $4, $3, $5)
		ON CONFLICT (year, month) DO UPDATE
		SET last_number = invoice_numbering.last_number + invoice_numbering.increment_by,
		    updated_at = NOW()
		WHERE invoice_numbering.last_number + invoice_numbering.increment_by <= $6
		RETURNING last_number`,
		year, month, DefaultIncrement, NumberFormat, actor.ID, MaxSequence,
	).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%04d-%02d: %w", year, month, ErrCounterExhausted)
	}
	if err != nil {
		return "", fmt.Errorf("failed to advance invoice counter: %w", err)
	}

	return FormatInvoiceNumber(year, month, next), nil
}

func (s *invoiceNumberingService) loadCounter(ctx context.Context, q db.Querier, year, month int, forUpdate bool) (*InvoiceCounter, error) {
	query := `
		SELECT year, month, last_number, format, increment_by, created_at, updated_at, created_by
		FROM invoice_numbering
		WHERE year = $1 AND month = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var c InvoiceCounter
	err := q.QueryRow(ctx, query, year, month).Scan(
		&c.Year, &c.Month, &c.LastNumber, &c.Format, &c.IncrementBy, &c.CreatedAt, &c.UpdatedAt, &c.CreatedBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice counter %04d-%02d: %w", year, month, err)
	}
	return &c, nil
}

func (s *invoiceNumberingService) PreviewNextInvoiceNumber(ctx context.Context) (string, error) {
	year, month := s.period()
	c, err := s.loadCounter(ctx, s.pool, year, month, false)
	if err != nil {
		return "", err
	}

	last, inc := 0, DefaultIncrement
	if c != nil {
		last, inc = c.LastNumber, c.IncrementBy
	}
	next, err := nextSequence(last, inc)
	if err != nil {
		return "", fmt.Errorf("%04d-%02d: %w", year, month, err)
	}
	return FormatInvoiceNumber(year, month, next), nil
}

func (s *invoiceNumberingService) ResetCounter(ctx context.Context, year, month, value int) (*InvoiceCounter, error) {
	actor, err := requireRole(ctx, RoleAdmin)
	if err != nil {
		return nil, err
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("month %d out of range: %w", month, ErrValidation)
	}
	if err := validateCounterValue(value, DefaultIncrement); err != nil {
		return nil, err
	}

	var result *InvoiceCounter
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		prev, err := s.loadCounter(ctx, tx, year, month, true)
		if err != nil {
			return err
		}
		previous := "none"
		if prev != nil {
			if err := validateCounterValue(value, prev.IncrementBy); err != nil {
				return err
			}
			previous = fmt.Sprintf("%d", prev.LastNumber)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO invoice_numbering (year, month, last_number, format, increment_by, created_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (year, month) DO UPDATE
			SET last_number = EXCLUDED.last_number, updated_at = NOW()`,
			year, month, value, NumberFormat, DefaultIncrement, actor.ID)
		if err != nil {
			return fmt.Errorf("failed to reset invoice counter: %w", err)
		}

		if err := s.audit.Record(ctx, tx, AuditEntry{
			Action:      "invoice_numbering.reset",
			EntityType:  EntityInvoiceCounter,
			EntityID:    fmt.Sprintf("%04d-%02d", year, month),
			EntityTitle: fmt.Sprintf("Invoice counter %04d-%02d", year, month),
			Description: fmt.Sprintf("last number changed from %s to %d", previous, value),
			ActorID:     actor.ID,
		}); err != nil {
			return err
		}

		result, err = s.loadCounter(ctx, tx, year, month, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Warn("invoice counter reset",
		zap.Int("year", year),
		zap.Int("month", month),
		zap.Int("value", value),
		zap.String("actor", actor.ID),
	)
	return result, nil
}

func (s *invoiceNumberingService) CounterStats(ctx context.Context, year, month int) (*CounterStats, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("month %d out of range: %w", month, ErrValidation)
	}
	c, err := s.loadCounter(ctx, s.pool, year, month, false)
	if err != nil {
		return nil, err
	}

	stats := &CounterStats{}
	if c == nil {
		stats.Counter = InvoiceCounter{Year: year, Month: month, Format: NumberFormat, IncrementBy: DefaultIncrement}
	} else {
		stats.Counter = *c
		stats.Exists = true
	}
	stats.Issued = stats.Counter.IssuedCount()
	if next, err := nextSequence(stats.Counter.LastNumber, stats.Counter.IncrementBy); err == nil {
		stats.NextNumber = FormatInvoiceNumber(year, month, next)
	}
	return stats, nil
}
