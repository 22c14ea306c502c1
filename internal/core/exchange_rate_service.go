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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// defaultRates is the last resort when no stored quote exists. The two
// directions are not reciprocals of each other; this mirrors the production
// configuration and is kept as-is until finance confirms the intended values.
var defaultRates = map[[2]string]decimal.Decimal{
	{"EUR", "USD"}: decimal.RequireFromString("1.1"),
	{"USD", "EUR"}: decimal.RequireFromString("0.91"),
}

var one = decimal.NewFromInt(1)

// ── Store ─────────────────────────────────────────────────────────────────────

type pgRateStore struct {
	q db.Querier
}

// NewRateStore returns a RateStore reading through q (a pool or a tx).
func NewRateStore(q db.Querier) RateStore {
	return &pgRateStore{q: q}
}

const rateColumns = `id, from_currency, to_currency, rate, date, source, is_active, created_at, created_by`

func scanRate(row pgx.Row) (*ExchangeRate, error) {
	var r ExchangeRate
	err := row.Scan(&r.ID, &r.FromCurrency, &r.ToCurrency, &r.Rate, &r.Date, &r.Source, &r.IsActive, &r.CreatedAt, &r.CreatedBy)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *pgRateStore) FindActiveRate(ctx context.Context, from, to string, day time.Time) (*ExchangeRate, error) {
	r, err := scanRate(s.q.QueryRow(ctx, `
		SELECT `+rateColumns+`
		FROM exchange_rates
		WHERE from_currency = $1 AND to_currency = $2 AND date = $3 AND is_active
		ORDER BY created_at DESC
		LIMIT 1`, from, to, day))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query exchange rate %s/%s: %w", from, to, err)
	}
	return r, nil
}

func (s *pgRateStore) LatestActiveRate(ctx context.Context, from, to string) (*ExchangeRate, error) {
	r, err := scanRate(s.q.QueryRow(ctx, `
		SELECT `+rateColumns+`
		FROM exchange_rates
		WHERE from_currency = $1 AND to_currency = $2 AND is_active
		ORDER BY date DESC, created_at DESC
		LIMIT 1`, from, to))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest exchange rate %s/%s: %w", from, to, err)
	}
	return r, nil
}

// ── Resolver ──────────────────────────────────────────────────────────────────

// RateResolver implements the ordered fallback chain over a RateStore.
type RateResolver struct {
	store RateStore
	cache RateCache
	log   *zap.Logger
	now   func() time.Time
}

// ResolverOption configures a RateResolver.
type ResolverOption func(*RateResolver)

// WithRateCache enables a read-through quote cache.
func WithRateCache(c RateCache) ResolverOption {
	return func(r *RateResolver) { r.cache = c }
}

// WithResolverLogger sets the logger used for degraded resolutions.
func WithResolverLogger(l *zap.Logger) ResolverOption {
	return func(r *RateResolver) { r.log = l }
}

// WithResolverClock overrides the clock used when asOf is nil.
func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *RateResolver) { r.now = now }
}

func NewRateResolver(store RateStore, opts ...ResolverOption) *RateResolver {
	r := &RateResolver{store: store, log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// WithStore returns a copy of r that reads through store, keeping cache,
// logger and clock. Used to resolve inside a caller's transaction.
func (r *RateResolver) WithStore(store RateStore) *RateResolver {
	cp := *r
	cp.store = store
	return &cp
}

func labelOf(rate *ExchangeRate) string {
	if rate.Source != nil && *rate.Source != "" {
		return *rate.Source
	}
	return SourceDatabase
}

func (r *RateResolver) ResolveRate(ctx context.Context, from, to string, asOf *time.Time) (RateQuote, error) {
	target := r.now()
	if asOf != nil {
		target = *asOf
	}
	day := TruncateDay(target)

	if from == to {
		return RateQuote{Rate: one, Date: day, Source: SourceNoConversion}, nil
	}

	if r.cache != nil {
		if q, ok := r.cache.Get(ctx, from, to, day); ok {
			return q, nil
		}
	}

	q, err := r.resolve(ctx, from, to, day)
	if err != nil {
		return RateQuote{}, err
	}

	if q.Degraded() {
		r.log.Warn("exchange rate resolved from fallback tier",
			zap.String("from", from),
			zap.String("to", to),
			zap.Time("day", day),
			zap.String("source", q.Source),
		)
	}
	if r.cache != nil {
		r.cache.Set(ctx, from, to, day, q)
	}
	return q, nil
}

func (r *RateResolver) resolve(ctx context.Context, from, to string, day time.Time) (RateQuote, error) {
	// 1. exact day, direct
	direct, err := r.store.FindActiveRate(ctx, from, to, day)
	if err != nil {
		return RateQuote{}, err
	}
	if direct != nil {
		return RateQuote{Rate: direct.Rate, Date: direct.Date, Source: labelOf(direct)}, nil
	}

	// 2. exact day, inverse
	inverse, err := r.store.FindActiveRate(ctx, to, from, day)
	if err != nil {
		return RateQuote{}, err
	}
	if inverse != nil {
		return RateQuote{Rate: one.Div(inverse.Rate), Date: inverse.Date, Source: labelOf(inverse) + inverseSuffix}, nil
	}

	// 3. latest direct, any day
	hist, err := r.store.LatestActiveRate(ctx, from, to)
	if err != nil {
		return RateQuote{}, err
	}
	if hist != nil {
		return RateQuote{Rate: hist.Rate, Date: hist.Date, Source: labelOf(hist) + historicalSuffix}, nil
	}

	// 4. latest inverse, any day
	histInv, err := r.store.LatestActiveRate(ctx, to, from)
	if err != nil {
		return RateQuote{}, err
	}
	if histInv != nil {
		return RateQuote{Rate: one.Div(histInv.Rate), Date: histInv.Date, Source: labelOf(histInv) + inverseHistoricalSuffix}, nil
	}

	// 5. hardcoded default
	rate, ok := defaultRates[[2]string{from, to}]
	if !ok {
		rate = one
	}
	return RateQuote{Rate: rate, Date: day, Source: SourceDefaultFallback}, nil
}

func (r *RateResolver) Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOf *time.Time) (Conversion, error) {
	if from == to {
		return Conversion{
			OriginalAmount:  amount,
			ConvertedAmount: amount,
			Currency:        to,
			ExchangeRate:    one,
			Source:          SourceNoConversion,
		}, nil
	}

	q, err := r.ResolveRate(ctx, from, to, asOf)
	if err != nil {
		return Conversion{}, fmt.Errorf("failed to resolve rate %s/%s: %w", from, to, err)
	}

	return Conversion{
		OriginalAmount:   amount,
		ConvertedAmount:  RoundMinor(amount.Mul(q.Rate)),
		Currency:         to,
		ExchangeRate:     q.Rate,
		OriginalCurrency: from,
		Source:           q.Source,
	}, nil
}

// ── Service ───────────────────────────────────────────────────────────────────

type exchangeRateService struct {
	pool     *pgxpool.Pool
	resolver *RateResolver
	audit    AuditLog
	log      *zap.Logger
}

// NewExchangeRateService constructs an ExchangeRateService backed by PostgreSQL.
func NewExchangeRateService(pool *pgxpool.Pool, resolver *RateResolver, audit AuditLog, log *zap.Logger) ExchangeRateService {
	return &exchangeRateService{pool: pool, resolver: resolver, audit: audit, log: log}
}

func (s *exchangeRateService) ResolveRate(ctx context.Context, from, to string, asOf *time.Time) (RateQuote, error) {
	f, t, err := normalizePair(from, to)
	if err != nil {
		return RateQuote{}, err
	}
	return s.resolver.ResolveRate(ctx, f, t, asOf)
}

func (s *exchangeRateService) Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOf *time.Time) (Conversion, error) {
	f, t, err := normalizePair(from, to)
	if err != nil {
		return Conversion{}, err
	}
	return s.resolver.Convert(ctx, amount, f, t, asOf)
}

func normalizePair(from, to string) (string, string, error) {
	f, err := NormalizeCurrency(from)
	if err != nil {
		return "", "", err
	}
	t, err := NormalizeCurrency(to)
	if err != nil {
		return "", "", err
	}
	return f, t, nil
}

func (s *exchangeRateService) CreateRate(ctx context.Context, in CreateRateInput) (*ExchangeRate, error) {
	actor, err := requireRole(ctx, RoleAdmin, RoleAccounting)
	if err != nil {
		return nil, err
	}

	from, to, err := normalizePair(in.FromCurrency, in.ToCurrency)
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, fmt.Errorf("from and to currency must differ: %w", ErrValidation)
	}
	if !in.Rate.IsPositive() {
		return nil, fmt.Errorf("rate must be positive, got %s: %w", in.Rate, ErrValidation)
	}
	if in.Date.IsZero() {
		in.Date = time.Now()
	}

	rate := &ExchangeRate{
		ID:           uuid.NewString(),
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         in.Rate,
		Date:         TruncateDay(in.Date),
		IsActive:     true,
		CreatedBy:    actor.ID,
	}
	if in.Source != "" {
		src := in.Source
		rate.Source = &src
	}

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE exchange_rates SET is_active = false
			WHERE from_currency = $1 AND to_currency = $2 AND date = $3 AND is_active`,
			from, to, rate.Date); err != nil {
			return fmt.Errorf("failed to retire previous rate: %w", err)
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO exchange_rates (id, from_currency, to_currency, rate, date, source, is_active, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, true, $7)
			RETURNING created_at`,
			rate.ID, from, to, rate.Rate, rate.Date, rate.Source, actor.ID,
		).Scan(&rate.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert exchange rate: %w", err)
		}

		return s.audit.Record(ctx, tx, AuditEntry{
			Action:      "exchange_rate.created",
			EntityType:  EntityExchangeRate,
			EntityID:    rate.ID,
			EntityTitle: from + "/" + to,
			Description: fmt.Sprintf("1 %s = %s %s on %s", from, rate.Rate, to, rate.Date.Format("2006-01-02")),
			ActorID:     actor.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.resolver.cache != nil {
		s.resolver.cache.InvalidatePair(ctx, from, to)
	}
	s.log.Info("exchange rate recorded",
		zap.String("pair", from+"/"+to),
		zap.String("rate", rate.Rate.String()),
		zap.Time("date", rate.Date),
	)
	return rate, nil
}

func (s *exchangeRateService) DeactivateRate(ctx context.Context, id string) error {
	actor, err := requireRole(ctx, RoleAdmin, RoleAccounting)
	if err != nil {
		return err
	}

	var from, to string
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE exchange_rates SET is_active = false
			WHERE id = $1
			RETURNING from_currency, to_currency`, id).Scan(&from, &to)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("exchange rate %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to deactivate exchange rate: %w", err)
		}

		return s.audit.Record(ctx, tx, AuditEntry{
			Action:      "exchange_rate.deactivated",
			EntityType:  EntityExchangeRate,
			EntityID:    id,
			EntityTitle: from + "/" + to,
			ActorID:     actor.ID,
		})
	})
	if err != nil {
		return err
	}

	if s.resolver.cache != nil {
		s.resolver.cache.InvalidatePair(ctx, from, to)
	}
	return nil
}

func (s *exchangeRateService) ListRates(ctx context.Context, from, to string, activeOnly bool) ([]ExchangeRate, error) {
	q := `SELECT ` + rateColumns + ` FROM exchange_rates WHERE true`
	var args []any
	for _, f := range []struct{ column, code string }{{"from_currency", from}, {"to_currency", to}} {
		if f.code == "" {
			continue
		}
		code, err := NormalizeCurrency(f.code)
		if err != nil {
			return nil, err
		}
		args = append(args, code)
		q += fmt.Sprintf(" AND %s = $%d", f.column, len(args))
	}
	if activeOnly {
		q += " AND is_active"
	}
	q += " ORDER BY date DESC, from_currency, to_currency"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchange rates: %w", err)
	}
	defer rows.Close()

	var rates []ExchangeRate
	for rows.Next() {
		r, err := scanRate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exchange rate: %w", err)
		}
		rates = append(rates, *r)
	}
	return rates, rows.Err()
}
