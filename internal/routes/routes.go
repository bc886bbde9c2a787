package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/aurum-pay/aurum_pay/internal/batch"
	"github.com/aurum-pay/aurum_pay/internal/certificate"
	"github.com/aurum-pay/aurum_pay/internal/config"
	"github.com/aurum-pay/aurum_pay/internal/conversion"
	"github.com/aurum-pay/aurum_pay/internal/ledger"
	"github.com/aurum-pay/aurum_pay/internal/middleware"
	"github.com/aurum-pay/aurum_pay/internal/notification"
	"github.com/aurum-pay/aurum_pay/internal/pricing"
	"github.com/aurum-pay/aurum_pay/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	// Oracle: HTTP feed behind a Redis cache in production, static price in dev.
	var oracle pricing.Oracle
	if d.Cfg.OracleURL != "" {
		oracle = pricing.NewHTTPOracle(d.Cfg.OracleURL, d.Cfg.OracleTimeout, d.Cfg.PriceMaxAge)
		if d.Cache != nil {
			oracle = pricing.NewCachedOracle(oracle, d.Cache, d.Cfg.PriceMaxAge)
		}
	} else {
		oracle = pricing.NewStaticOracle(decimal.RequireFromString("150"))
	}

	// Stores
	var (
		batchStore  batch.Store
		ledgerStore ledger.Ledger
		certStore   certificate.Store
		engineStore conversion.Store
	)
	if d.DB != nil {
		batchStore = batch.NewPostgresStore(d.DB)
		ledgerStore = ledger.NewPostgresLedger(d.DB)
		certStore = certificate.NewPostgresStore(d.DB)
		engineStore = conversion.NewPostgresStore(d.DB)
	} else {
		batchStore = batch.NewMemoryStore()
		ledgerStore = ledger.NewMemory()
		certStore = certificate.NewMemoryStore()
		engineStore = conversion.NewMemoryStore(batchStore, ledgerStore, certStore)
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	engine := conversion.NewEngine(engineStore, oracle, notifier, d.Logger)
	walletSvc := wallet.NewService(ledgerStore, batchStore, oracle)

	conversionHandler := conversion.NewHandler(engine)
	walletHandler := wallet.NewHandler(walletSvc)
	batchHandler := batch.NewHandler(batchStore)
	ledgerHandler := ledger.NewHandler(ledgerStore)
	certHandler := certificate.NewHandler(certStore, certificate.NewGenerator(), batchStore, ledgerStore)
	priceHandler := pricing.NewHandler(oracle)

	// Health
	RegisterHealthRoutes(app, d, oracle)

	// API routes; every endpoint acts on behalf of the gateway-authenticated user.
	api := app.Group("/api/v1", middleware.UserContext())
	api.Get("/price", priceHandler.Current)

	RegisterWalletRoutes(api, walletHandler, batchHandler)
	RegisterLedgerRoutes(api, ledgerHandler)
	RegisterCertificateRoutes(api, certHandler)

	// Conversion endpoints mutate balances: idempotency and rate limiting apply.
	converting := api.Group("")
	if d.Cache != nil {
		converting.Use(middleware.ConversionRateLimit(d.Cache, d.Cfg.ConversionRateLimit))
		converting.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterConversionRoutes(converting, conversionHandler)

	return nil
}
