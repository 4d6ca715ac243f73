// Package integration runs the checkout flow end to end against real
// PostgreSQL and Redis containers.
package integration

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"storefront/internal/database"
	"storefront/internal/handler"
	"storefront/internal/jobs"
	"storefront/internal/model"
	"storefront/internal/otp"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"
	"storefront/internal/stock"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testAPIKey = "test-api-key"

// TestEnv holds the containers and the fully wired service graph.
type TestEnv struct {
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	Codes  *capturingSender
	Queue  *jobs.Queue
	Repos  repository.ProductRepository
	Carts  service.CartService
	Check  service.CheckoutService
	Orders service.OrderService
	Server http.Handler
}

// capturingSender records the last code sent to each phone.
type capturingSender struct {
	mu    sync.Mutex
	codes map[string]otp.Code
}

func (s *capturingSender) SendOTP(_ context.Context, phone string, code otp.Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[phone] = code
	return nil
}

// Last returns the most recent code for phone.
func (s *capturingSender) Last(t *testing.T, phone string) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[phone]
	require.True(t, ok, "no code sent to %s", phone)
	return string(code)
}

// SetupEnv starts PostgreSQL and Redis and wires every service. otpTTL
// overrides the challenge lifetime when positive.
func SetupEnv(t *testing.T, otpTTL time.Duration) *TestEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	logger := zerolog.Nop()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))
	require.NoError(t, database.Migrate(ctx, pool, logger))

	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start redis container")

	uri, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)

	t.Cleanup(func() {
		_ = rdb.Close()
		pool.Close()
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	tx := repository.NewTransactor(pool, logger)
	products := repository.NewProductRepository(pool, logger)
	coupons := repository.NewCouponRepository(pool, logger)
	carts := repository.NewCartRepository(pool, logger)
	customers := repository.NewCustomerRepository(pool, logger)
	orders := repository.NewOrderRepository(pool, logger)
	devices := repository.NewDeviceRepository(pool, logger)
	alerts := repository.NewAlertRepository(pool, logger)

	codes := &capturingSender{codes: make(map[string]otp.Code)}
	challenges := otp.NewManager(otp.NewRedisStore(rdb), codes, otpTTL, 0, logger)
	queue := jobs.New(jobs.NewRedisDriver(rdb), 1, logger)

	cartService := service.NewCartService(tx, carts, products, coupons, logger)
	checkoutService := service.NewCheckoutService(service.CheckoutDeps{
		Tx:        tx,
		Carts:     carts,
		Coupons:   coupons,
		Customers: customers,
		Orders:    orders,
		Devices:   devices,
		OTP:       challenges,
		Stock:     stock.NewLedger(products, 5, logger),
		Jobs:      queue,
	}, logger)
	orderService := service.NewOrderService(orders, customers, logger)

	server := router.New(router.Handlers{
		Products:      handler.NewProductHandler(service.NewProductService(products, 5, logger), logger),
		Orders:        handler.NewOrderHandler(orderService, logger),
		Carts:         handler.NewCartHandler(cartService, logger),
		Checkout:      handler.NewCheckoutHandler(checkoutService, logger),
		Coupons:       handler.NewCouponHandler(service.NewCouponService(coupons, logger), logger),
		Notifications: handler.NewNotificationHandler(service.NewDeviceService(devices, logger), service.NewNotificationService(alerts, devices, queue, logger), logger),
	}, router.Options{APIKey: testAPIKey}, logger)

	return &TestEnv{
		Pool:   pool,
		Redis:  rdb,
		Codes:  codes,
		Queue:  queue,
		Repos:  products,
		Carts:  cartService,
		Check:  checkoutService,
		Orders: orderService,
		Server: server,
	}
}

// SeedProduct inserts or replaces a catalogue product.
func (e *TestEnv) SeedProduct(t *testing.T, id, price string, qty int) {
	t.Helper()
	p := &model.Product{
		ID:       id,
		Name:     "Product " + id,
		Price:    decimal.RequireFromString(price),
		Quantity: qty,
	}
	require.NoError(t, e.Repos.Upsert(context.Background(), p))
}

// SeedCoupon inserts a coupon valid for the next day.
func (e *TestEnv) SeedCoupon(t *testing.T, code string, kind model.DiscountKind, value string) {
	t.Helper()
	now := time.Now().UTC()
	_, err := e.Pool.Exec(context.Background(),
		`INSERT INTO coupons (code, discount_kind, discount_value, starts_at, ends_at, active)
		 VALUES ($1, $2, $3, $4, $5, TRUE)`,
		code, string(kind), value, now.Add(-time.Hour), now.Add(24*time.Hour))
	require.NoError(t, err)
}

// StockOf reads the current quantity of a product.
func (e *TestEnv) StockOf(t *testing.T, id string) int {
	t.Helper()
	p, err := e.Repos.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

// CountRows counts the rows of a table.
func (e *TestEnv) CountRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, e.Pool.QueryRow(context.Background(), fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n))
	return n
}

// Reset clears every table and the Redis keyspace between subtests.
func (e *TestEnv) Reset(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, database.Truncate(ctx, e.Pool))
	require.NoError(t, e.Redis.FlushAll(ctx).Err())
}
