package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/lodgepay/lodgepay/internal/config"
	"github.com/lodgepay/lodgepay/internal/gateway"
	"github.com/lodgepay/lodgepay/internal/infra"
	"github.com/lodgepay/lodgepay/internal/ledger"
	"github.com/lodgepay/lodgepay/internal/logging"
	"github.com/lodgepay/lodgepay/internal/notification"
	"github.com/lodgepay/lodgepay/internal/outbox"
	"github.com/lodgepay/lodgepay/internal/payout"
	"github.com/lodgepay/lodgepay/internal/recipient"
	"github.com/lodgepay/lodgepay/internal/routes"
	"github.com/lodgepay/lodgepay/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	} else {
		logger.Warn("no database configured, using in-memory ledger")
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	} else {
		logger.Warn("no redis configured, idempotency and rate limiting disabled")
	}

	var store ledger.Store
	var recipientRepo recipient.Repository
	if db != nil {
		store = ledger.NewPostgresStore(db, cfg.Kafka.Topic)
		recipientRepo = recipient.NewPostgresRepository(db)
	} else {
		store = ledger.NewInMemory()
		recipientRepo = recipient.NewMemoryRepository()
	}
	recipients := recipient.NewService(recipientRepo)

	var gw gateway.Client
	if cfg.Gateway.BaseURL != "" {
		gw = gateway.NewHTTPClient(cfg.Gateway.BaseURL, cfg.Gateway.ClientID, cfg.Gateway.ClientSecret, cfg.Gateway.Timeout)
	} else {
		logger.Warn("no payment gateway configured, using static approver")
		gw = gateway.Static{}
	}

	notifier := notification.NewLoggerNotifier(logger)
	payoutSvc := payout.NewService(store, gw, recipients, notifier, logger, cfg.Currency)

	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()

	if len(cfg.Kafka.Brokers) > 0 && db != nil {
		producer, err := infra.NewKafkaProducer(cfg.Kafka.Brokers)
		if err != nil {
			logger.Error("connect kafka producer", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		relay := outbox.NewRelay(outbox.NewPostgresRepository(db), producer, logger)
		go relay.Start(bgCtx)

		consumer, err := payout.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, cfg.Kafka.Topic, payoutSvc, logger)
		if err != nil {
			logger.Error("join kafka consumer group", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(bgCtx); err != nil && bgCtx.Err() == nil {
				logger.Error("payout consumer stopped", "error", err)
			}
		}()
	} else {
		logger.Warn("no kafka brokers configured, payouts run only via manual re-trigger")
	}

	srv, err := server.New(routes.Deps{
		Cfg:        cfg,
		DB:         db,
		Cache:      cache,
		Logger:     logger,
		Store:      store,
		Gateway:    gw,
		Recipients: recipients,
		Notifier:   notifier,
		Payouts:    payoutSvc,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	bgCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
