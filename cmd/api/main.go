package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tabletally/tabletally-backend/api/routes"
	checkoutsvc "github.com/tabletally/tabletally-backend/internal/checkout"
	"github.com/tabletally/tabletally-backend/internal/ledger"
	"github.com/tabletally/tabletally-backend/internal/notifications"
	"github.com/tabletally/tabletally-backend/internal/notify"
	"github.com/tabletally/tabletally-backend/internal/ordergroups"
	"github.com/tabletally/tabletally-backend/internal/reconcile"
	"github.com/tabletally/tabletally-backend/internal/tables"
	banktransfer "github.com/tabletally/tabletally-backend/internal/webhooks/banktransfer"
	"github.com/tabletally/tabletally-backend/pkg/config"
	"github.com/tabletally/tabletally-backend/pkg/db"
	"github.com/tabletally/tabletally-backend/pkg/logger"
	"github.com/tabletally/tabletally-backend/pkg/metrics"
	"github.com/tabletally/tabletally-backend/pkg/migrate"
	"github.com/tabletally/tabletally-backend/pkg/outbox"
	"github.com/tabletally/tabletally-backend/pkg/pubsub"
	"github.com/tabletally/tabletally-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	groupsService, err := ordergroups.NewService(ordergroups.ServiceParams{
		GroupRepo: ordergroups.NewRepository(dbClient.DB()),
		TableRepo: tables.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order-group service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	notifyService, err := notify.NewService(notify.ServiceParams{
		Management: pubsubClient.ManagementEvents(),
		Realtime:   pubsubClient.RealtimePush(),
		Presence:   redisClient,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notify service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	reconcileService, err := reconcile.NewService(reconcile.ServiceParams{
		TxRunner:      dbClient,
		Groups:        groupsService,
		Ledger:        ledgerService,
		Notifications: notificationsService,
		Outbox:        outboxService,
		Notifier:      notifyService,
		Logger:        logg,
		Metrics:       metrics.NewReconcileMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	webhookGuard, err := banktransfer.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "bank-transfer")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		TxRunner: dbClient,
		Groups:   groupsService,
		Ledger:   ledgerService,
		Outbox:   outboxService,
		Payments: cfg.Payments,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			pubsubClient,
			reconcileService,
			webhookGuard,
			checkoutService,
			ledgerService,
			notificationsService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
