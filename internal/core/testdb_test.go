package core_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"yourobc-billing/internal/core"
	"yourobc-billing/internal/db"
	"yourobc-billing/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// testDSN prefers TEST_DATABASE_URL and otherwise starts one PostgreSQL
// container shared by every test in the package.
func testDSN(t *testing.T) string {
	t.Helper()
	_ = godotenv.Load("../../.env")

	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		return dsn
	}
	if os.Getenv("SKIP_CONTAINER_TESTS") != "" {
		t.Skip("TEST_DATABASE_URL not set and container tests disabled")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	containerOnce.Do(func() {
		ctx := context.Background()
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("billing_test"),
			tcpostgres.WithUsername("postgres"),
			tcpostgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			containerErr = err
			return
		}
		containerDSN, containerErr = container.ConnectionString(ctx, "sslmode=disable")
	})
	require.NoError(t, containerErr, "failed to start PostgreSQL container")
	return containerDSN
}

// setupTestDB migrates the schema and empties every billing table.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pool, err := db.NewPool(ctx, testDSN(t), 20)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool, migrations.Files, zap.NewNop()))

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE accounting_dashboard_cache, invoice_auto_gen_log, invoices, exchange_rates,
			invoice_numbering, incoming_invoice_tracking, audit_logs, shipments, customers, users CASCADE`)
	require.NoError(t, err)

	return pool
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type services struct {
	numbering core.InvoiceNumberingService
	invoices  core.InvoiceService
	rates     core.ExchangeRateService
	dashboard core.DashboardService
}

func newServices(pool *pgxpool.Pool, clock *testClock) services {
	log := zap.NewNop()
	audit := core.NewAuditLog()
	resolver := core.NewRateResolver(core.NewRateStore(pool), core.WithResolverClock(clock.Now))
	numbering := core.NewInvoiceNumberingService(pool, audit, log, clock.Now)
	return services{
		numbering: numbering,
		invoices:  core.NewInvoiceService(pool, resolver, numbering, audit, log, clock.Now),
		rates:     core.NewExchangeRateService(pool, resolver, audit, log),
		dashboard: core.NewDashboardService(pool, nil, audit, log, clock.Now),
	}
}

func asAdmin() context.Context {
	return core.WithActor(context.Background(), core.Actor{ID: "u-admin", Username: "admin", Role: core.RoleAdmin})
}

func asAccounting() context.Context {
	return core.WithActor(context.Background(), core.Actor{ID: "u-acc", Username: "accounting", Role: core.RoleAccounting})
}

func asOperations() context.Context {
	return core.WithActor(context.Background(), core.Actor{ID: "u-ops", Username: "operations", Role: core.RoleOperations})
}

func seedCustomer(t *testing.T, pool *pgxpool.Pool, id string, terms *int) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO customers (id, company_name, payment_terms) VALUES ($1, $2, $3)`,
		id, "Customer "+id, terms)
	require.NoError(t, err)
}

// seedShipment inserts a delivered shipment; an empty rate stores NULL.
func seedShipment(t *testing.T, pool *pgxpool.Pool, id, customerID, amount, currency, rate string) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO shipments (id, shipment_number, customer_id, origin, destination,
			agreed_price_amount, agreed_price_currency, agreed_price_exchange_rate, status, completed_at)
		VALUES ($1, $2, $3, 'Hamburg', 'Milan', $4::text::numeric, $5, NULLIF($6, '')::numeric, 'delivered', NOW())`,
		id, "SHP-"+id, customerID, amount, currency, rate)
	require.NoError(t, err)
}
