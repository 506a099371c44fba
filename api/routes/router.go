package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tabletally/tabletally-backend/api/controllers"
	webhookcontrollers "github.com/tabletally/tabletally-backend/api/controllers/webhooks"
	"github.com/tabletally/tabletally-backend/api/middleware"
	checkoutsvc "github.com/tabletally/tabletally-backend/internal/checkout"
	"github.com/tabletally/tabletally-backend/internal/ledger"
	"github.com/tabletally/tabletally-backend/internal/notifications"
	"github.com/tabletally/tabletally-backend/internal/reconcile"
	banktransfer "github.com/tabletally/tabletally-backend/internal/webhooks/banktransfer"
	"github.com/tabletally/tabletally-backend/pkg/config"
	"github.com/tabletally/tabletally-backend/pkg/db"
	"github.com/tabletally/tabletally-backend/pkg/logger"
	"github.com/tabletally/tabletally-backend/pkg/pubsub"
	"github.com/tabletally/tabletally-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	pubsubClient *pubsub.Client,
	reconcileService *reconcile.Service,
	webhookGuard *banktransfer.IdempotencyGuard,
	checkoutService *checkoutsvc.Service,
	ledgerService ledger.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient, pubsubClient))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/bank-transfer", webhookcontrollers.BankTransfer(reconcileService, webhookGuard, cfg.Webhook.BankAPIKey, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/payment-instruction", controllers.CheckoutPaymentInstruction(checkoutService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.StaffAuth(cfg.JWT, logg))

			r.Get("/payments", controllers.PaymentsList(ledgerService, logg))

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.NotificationsList(notificationsService, logg))
				r.Post("/{notificationId}/read", controllers.NotificationMarkRead(notificationsService, logg))
				r.Post("/read-all", controllers.NotificationsMarkAllRead(notificationsService, logg))
			})
		})
	})

	return r
}
