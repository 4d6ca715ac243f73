// Package app wires configuration, storage, background jobs and services
// into one container shared by the API server and the operator CLI.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/chatops"
	"storefront/internal/config"
	"storefront/internal/coupon"
	"storefront/internal/database"
	"storefront/internal/handler"
	"storefront/internal/jobs"
	"storefront/internal/messaging"
	"storefront/internal/otp"
	"storefront/internal/push"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"
	"storefront/internal/stock"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Repositories groups the data access layer.
type Repositories struct {
	Tx        repository.Transactor
	Products  repository.ProductRepository
	Coupons   repository.CouponRepository
	Carts     repository.CartRepository
	Customers repository.CustomerRepository
	Orders    repository.OrderRepository
	Devices   repository.DeviceRepository
	Alerts    repository.AlertRepository
}

// Services groups the business layer.
type Services struct {
	Products      service.ProductService
	Carts         service.CartService
	Checkout      service.CheckoutService
	Orders        service.OrderService
	Coupons       service.CouponService
	Devices       service.DeviceService
	Notifications service.NotificationService
}

// App owns every long-lived resource of a process.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Queue    *jobs.Queue
	Ledger   *stock.Ledger
	Repos    Repositories
	Services Services
}

// New connects to PostgreSQL and Redis and builds the service graph.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	rdb, err := database.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, Pool: pool, Redis: rdb}

	a.Repos = Repositories{
		Tx:        repository.NewTransactor(pool, logger),
		Products:  repository.NewProductRepository(pool, logger),
		Coupons:   repository.NewCouponRepository(pool, logger),
		Carts:     repository.NewCartRepository(pool, logger),
		Customers: repository.NewCustomerRepository(pool, logger),
		Orders:    repository.NewOrderRepository(pool, logger),
		Devices:   repository.NewDeviceRepository(pool, logger),
		Alerts:    repository.NewAlertRepository(pool, logger),
	}

	a.Queue = newQueue(cfg, rdb, logger)
	a.Ledger = stock.NewLedger(a.Repos.Products, cfg.Stock.LowStockThreshold, logger)

	challenges := otp.NewManager(
		otp.NewRedisStore(rdb),
		messaging.NewSender(cfg.Twilio, logger),
		cfg.OTP.TTL(),
		cfg.OTP.MaxAttempts,
		logger,
	)

	a.Services = Services{
		Products: service.NewProductService(a.Repos.Products, cfg.Stock.LowStockThreshold, logger),
		Carts:    service.NewCartService(a.Repos.Tx, a.Repos.Carts, a.Repos.Products, a.Repos.Coupons, logger),
		Checkout: service.NewCheckoutService(service.CheckoutDeps{
			Tx:        a.Repos.Tx,
			Carts:     a.Repos.Carts,
			Coupons:   a.Repos.Coupons,
			Customers: a.Repos.Customers,
			Orders:    a.Repos.Orders,
			Devices:   a.Repos.Devices,
			OTP:       challenges,
			Stock:     a.Ledger,
			Jobs:      a.Queue,
		}, logger),
		Orders:        service.NewOrderService(a.Repos.Orders, a.Repos.Customers, logger),
		Coupons:       service.NewCouponService(a.Repos.Coupons, logger),
		Devices:       service.NewDeviceService(a.Repos.Devices, logger),
		Notifications: service.NewNotificationService(a.Repos.Alerts, a.Repos.Devices, a.Queue, logger),
	}

	return a, nil
}

// newQueue selects the queue driver and registers the notification handlers.
func newQueue(cfg *config.Config, rdb *redis.Client, logger zerolog.Logger) *jobs.Queue {
	var driver jobs.Driver
	if cfg.Jobs.Driver == "redis" {
		driver = jobs.NewRedisDriver(rdb)
	} else {
		driver = jobs.NewMemoryDriver(0)
	}

	q := jobs.New(driver, cfg.Jobs.MaxRetry, logger)
	q.Register(push.JobType, push.Handler(push.NewGateway(cfg.Push, logger)))
	q.Register(chatops.JobType, chatops.Handler(chatops.NewNotifier(cfg.Telegram, logger)))

	logger.Info().
		Str("driver", cfg.Jobs.Driver).
		Int("max_retry", cfg.Jobs.MaxRetry).
		Msg("job queue configured")
	return q
}

// Router builds the HTTP handler tree.
func (a *App) Router() http.Handler {
	return router.New(router.Handlers{
		Products:      handler.NewProductHandler(a.Services.Products, a.Logger),
		Orders:        handler.NewOrderHandler(a.Services.Orders, a.Logger),
		Carts:         handler.NewCartHandler(a.Services.Carts, a.Logger),
		Checkout:      handler.NewCheckoutHandler(a.Services.Checkout, a.Logger),
		Coupons:       handler.NewCouponHandler(a.Services.Coupons, a.Logger),
		Notifications: handler.NewNotificationHandler(a.Services.Devices, a.Services.Notifications, a.Logger),
	}, router.Options{
		APIKey:         a.Config.Auth.APIKey,
		MetricsEnabled: a.Config.Metrics.Enabled,
	}, a.Logger)
}

// CouponImporter builds an importer reading from S3 when enabled and the
// local file system otherwise.
func (a *App) CouponImporter(ctx context.Context) *coupon.Importer {
	fileLoader := coupon.NewFileLoader(a.Logger)

	var s3Loader coupon.Loader
	if a.Config.S3.Enabled {
		l, err := coupon.NewS3Loader(ctx, a.Config.S3.Bucket, a.Config.S3.Region, a.Logger)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("failed to initialise S3 loader, falling back to local file system only")
		} else {
			s3Loader = l
		}
	}

	loader := coupon.NewFallbackLoader(s3Loader, fileLoader, a.Config.S3.Prefix, a.Config.S3.Enabled, a.Logger)
	return coupon.NewImporter(loader, coupon.NewValidator(), a.Repos.Coupons, a.Logger)
}

// Restock returns qty units of a product to stock.
func (a *App) Restock(ctx context.Context, productID string, qty int) (err error) {
	tx, err := a.Repos.Tx.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to restock: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				a.Logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = a.Ledger.Release(ctx, tx, productID, qty); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to restock: %w", err)
	}
	return nil
}

// RunReaper deletes abandoned carts every interval until ctx is done.
func (a *App) RunReaper(ctx context.Context) {
	ttl := a.Config.Cart.TTL()
	ticker := time.NewTicker(a.Config.Cart.ReapInterval())
	defer ticker.Stop()

	log := a.Logger.With().Str("component", "cart-reaper").Logger()
	log.Info().Dur("ttl", ttl).Dur("interval", a.Config.Cart.ReapInterval()).Msg("cart reaper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("cart reaper stopped")
			return
		case <-ticker.C:
			if _, err := a.Services.Carts.ReapAbandoned(ctx, ttl); err != nil {
				log.Error().Err(err).Msg("failed to reap abandoned carts")
			}
		}
	}
}

// Close releases the database pool and the Redis client.
func (a *App) Close() {
	if err := a.Redis.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("failed to close redis client")
	}
	a.Pool.Close()
}
