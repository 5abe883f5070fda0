package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chopnow/chopnow-backend/api/controllers"
	"github.com/chopnow/chopnow-backend/api/middleware"
	inventorysvc "github.com/chopnow/chopnow-backend/internal/inventory"
	ordersvc "github.com/chopnow/chopnow-backend/internal/orders"
	paymentsvc "github.com/chopnow/chopnow-backend/internal/payments"
	payoutsvc "github.com/chopnow/chopnow-backend/internal/payouts"
	pickupsvc "github.com/chopnow/chopnow-backend/internal/pickups"
	restaurantsvc "github.com/chopnow/chopnow-backend/internal/restaurants"
	"github.com/chopnow/chopnow-backend/pkg/config"
	"github.com/chopnow/chopnow-backend/pkg/enums"
	"github.com/chopnow/chopnow-backend/pkg/logger"
	"github.com/chopnow/chopnow-backend/pkg/redis"
)

// RouterParams collects everything the HTTP surface needs.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	Redis         *redis.Client
	HealthDeps    map[string]controllers.Pingable
	Orders        ordersvc.Service
	Inventory     inventorysvc.Service
	Pickups       pickupsvc.Service
	Restaurants   restaurantsvc.Service
	Payouts       payoutsvc.Aggregator
	PayoutsRepo   payoutsvc.Repository
	SweepDefaults payoutsvc.SweepFilters
	Reconciler    paymentsvc.Reconciler
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	var idemStore redis.IdempotencyStore
	if params.Redis != nil {
		idemStore = params.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.HealthDeps))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	// Gateway callbacks authenticate with an HMAC signature, not a bearer
	// token.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/flutterwave", controllers.FlutterwaveWebhook(cfg.Flutterwave.WebhookSecret, params.Reconciler, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Auth, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(params.Orders, logg))
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", controllers.OrderDetail(params.Orders, logg))
				r.Get("/events", controllers.OrderEvents(params.Orders, logg))
				r.Post("/cancel", controllers.CancelOrder(params.Orders, logg))
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(string(enums.ActorRoleOwner), logg))
					r.Post("/decision", controllers.OrderDecision(params.Orders, logg))
					r.Post("/progress", controllers.ProgressOrder(params.Orders, logg))
					r.Post("/pickup", controllers.IssuePickup(params.Pickups, logg))
					r.Post("/pickup/verify", controllers.VerifyPickup(params.Pickups, logg))
				})
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.ActorRoleOwner), logg))
			r.Put("/inventory/{menuItemId}", controllers.UpdateStock(params.Inventory, logg))
			r.Route("/restaurants/{restaurantId}", func(r chi.Router) {
				r.Get("/inventory/low-stock", controllers.LowStock(params.Inventory, logg))
				r.Put("/bank-details", controllers.SetBankDetails(params.Restaurants, logg))
			})
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Auth, logg))
		r.Use(middleware.RequireRole(string(enums.ActorRoleAdmin), logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/ping", controllers.AdminPing())
		r.Route("/v1", func(r chi.Router) {
			r.Post("/payouts/sweep", controllers.SweepPayouts(params.Payouts, params.SweepDefaults, logg))
			r.Get("/payouts/batches/{batchId}", controllers.PayoutBatchDetail(params.PayoutsRepo, logg))
			r.Post("/orders/{orderId}/refund", controllers.RefundOrder(params.Reconciler, logg))
		})
	})

	return r
}
