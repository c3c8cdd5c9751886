package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/lodgepay/lodgepay/internal/config"
	"github.com/lodgepay/lodgepay/internal/earnings"
	"github.com/lodgepay/lodgepay/internal/funding"
	"github.com/lodgepay/lodgepay/internal/gateway"
	"github.com/lodgepay/lodgepay/internal/ledger"
	"github.com/lodgepay/lodgepay/internal/middleware"
	"github.com/lodgepay/lodgepay/internal/notification"
	"github.com/lodgepay/lodgepay/internal/payout"
	"github.com/lodgepay/lodgepay/internal/recipient"
	"github.com/lodgepay/lodgepay/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes. Store,
// Gateway, and Payouts are constructed in main so the Kafka consumer works
// against the same instances the HTTP handlers use.
type Deps struct {
	Cfg        config.Config
	DB         *pgxpool.Pool
	Cache      *redis.Client
	Logger     *slog.Logger
	Store      ledger.Store
	Gateway    gateway.Client
	Recipients *recipient.Service
	Notifier   notification.Notifier
	Payouts    *payout.Service
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce backing-service presence outside of dev, even though main also checks.
	if d.Cfg.Production() {
		if d.DB == nil {
			return fmt.Errorf("database is required when app_env=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when app_env=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Services and handlers
	fundingSvc := funding.NewService(d.Store, d.Gateway, d.Recipients, d.Notifier, d.Logger, d.Cfg.Currency)
	earningsSvc := earnings.NewService(d.Store)
	walletSvc := wallet.NewService(d.Store)

	fundingHandler := funding.NewHandler(fundingSvc)
	earningsHandler := earnings.NewHandler(earningsSvc)
	walletHandler := wallet.NewHandler(walletSvc)
	recipientHandler := recipient.NewHandler(d.Recipients)
	payoutHandler := payout.NewHandler(d.Payouts)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// User-facing wallet, funding, and payout-account routes
	RegisterWalletRoutes(api, walletHandler)
	RegisterFundingRoutes(api, fundingHandler)
	RegisterRecipientRoutes(api, recipientHandler)
	RegisterPayoutRoutes(api, payoutHandler)

	// Booking-system settlement routes, authenticated by API key
	settlement := api.Group("", middleware.APIKey(d.Cfg.BookingAPIKeyHash),
		middleware.RateLimit(d.Cache, "settlement", 600))
	RegisterSettlementRoutes(settlement, earningsHandler)

	return nil
}
