package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blockmart/blockmart-backend/api/controllers"
	"github.com/blockmart/blockmart-backend/api/middleware"
	"github.com/blockmart/blockmart-backend/internal/analytics"
	"github.com/blockmart/blockmart-backend/internal/cart"
	"github.com/blockmart/blockmart-backend/internal/catalog"
	"github.com/blockmart/blockmart-backend/internal/giveaway"
	"github.com/blockmart/blockmart-backend/internal/ledger"
	"github.com/blockmart/blockmart-backend/internal/platform"
	"github.com/blockmart/blockmart-backend/internal/roletier"
	"github.com/blockmart/blockmart-backend/internal/settings"
	"github.com/blockmart/blockmart-backend/internal/ticket"
	"github.com/blockmart/blockmart-backend/pkg/config"
	"github.com/blockmart/blockmart-backend/pkg/db"
	"github.com/blockmart/blockmart-backend/pkg/enums"
	"github.com/blockmart/blockmart-backend/pkg/logger"
	"github.com/blockmart/blockmart-backend/pkg/redis"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        db.Pinger
	Redis     *redis.Client
	Registry  *prometheus.Registry
	Gateway   platform.Gateway
	Carts     cart.Service
	CartRepo  cart.CartRepository
	Catalog   catalog.Service
	Ledger    ledger.Service
	Tiers     roletier.Service
	Giveaways giveaway.Service
	Tickets   ticket.Service
	Settings  settings.Service
	Analytics analytics.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	adminRole := string(enums.ActorRoleAdmin)
	agentRole := string(enums.ActorRoleAgent)

	webhookPolicy := middleware.NewRateLimitPolicy("webhook", time.Minute, 120, 0)
	giveawayPolicy := middleware.NewRateLimitPolicy("giveaway", time.Minute, 0, 10)

	// A typed-nil *redis.Client must not look like a live cache to the
	// readiness check.
	var cache redis.Pinger
	if deps.Redis != nil {
		cache = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, cache))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	// Hosted processor redirect targets. Render only; settlement is
	// owned by the reconciler and the webhook.
	r.Route("/payments", func(r chi.Router) {
		r.Get("/success", controllers.PaymentSuccessPage())
		r.Get("/cancel", controllers.PaymentCancelPage())
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.With(middleware.RateLimit(webhookPolicy, deps.Redis, logg)).
			Post("/payments", controllers.PaymentWebhook(deps.Carts, deps.CartRepo, cfg.Webhook.Secret, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/items", func(r chi.Router) {
			r.Get("/", controllers.ItemList(deps.Catalog, deps.Settings, logg))
			r.Get("/{itemID}", controllers.ItemGet(deps.Catalog, deps.Settings, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(deps.Carts, logg))
			r.Post("/items", controllers.CartAddItem(deps.Carts, logg))
			r.Delete("/items", controllers.CartRemoveItem(deps.Carts, logg))
			r.Post("/credit", controllers.CartApplyCredit(deps.Carts, logg))
			r.Post("/checkout", controllers.CartCheckout(deps.Carts, logg))
			r.Post("/crypto", controllers.CartSelectCrypto(deps.Carts, logg))
			r.Post("/crypto/sent", controllers.CartConfirmCryptoSent(deps.Carts, logg))
			r.Post("/cancel", controllers.CartCancelInvoice(deps.Carts, logg))
			r.Post("/close", controllers.CartClose(deps.Carts, logg))
		})

		r.Get("/balance", controllers.BalanceGet(deps.Ledger, logg))

		r.Route("/giveaways", func(r chi.Router) {
			r.Get("/current", controllers.GiveawayCurrent(deps.Giveaways, logg))
			r.With(middleware.RateLimit(giveawayPolicy, deps.Redis, logg)).
				Post("/enter", controllers.GiveawayEnter(deps.Giveaways, logg))
		})

		r.Post("/tickets", controllers.TicketOpen(deps.Tickets, logg))

		r.Get("/shop-status", controllers.ShopStatusGet(deps.Settings, logg))

		// Agent surface.
		r.Route("/agent", func(r chi.Router) {
			r.Use(middleware.RequireAnyRole(logg, agentRole, adminRole))
			r.Get("/carts", controllers.CartList(deps.Carts, logg))
			r.Post("/carts/{cartID}/deliver", controllers.CartDeliver(deps.Carts, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(adminRole, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/items", func(r chi.Router) {
			r.Post("/", controllers.ItemCreate(deps.Catalog, logg))
			r.Post("/{itemID}/restock", controllers.ItemRestock(deps.Catalog, logg))
			r.Delete("/{itemID}", controllers.ItemDelete(deps.Catalog, logg))
			r.Get("/export", controllers.ItemExportCSV(deps.Catalog, logg))
		})

		r.Route("/carts", func(r chi.Router) {
			r.Get("/", controllers.CartList(deps.Carts, logg))
			r.Post("/{cartID}/confirm", controllers.CartConfirmCryptoOrder(deps.Carts, logg))
			r.Delete("/", controllers.CartWipeAll(deps.Carts, logg))
		})

		r.Route("/balances", func(r chi.Router) {
			r.Get("/top", controllers.TopSpenders(deps.Ledger, logg))
			r.Get("/{userID}", controllers.BalanceGetFor(deps.Ledger, logg))
			r.Post("/{userID}/credit", controllers.BalanceCredit(deps.Ledger, logg))
			r.Put("/{userID}", controllers.BalanceSet(deps.Ledger, logg))
		})

		r.Route("/role-tiers", func(r chi.Router) {
			r.Get("/", controllers.TierList(deps.Tiers, logg))
			r.Post("/", controllers.TierCreate(deps.Tiers, logg))
			r.Delete("/{tierID}", controllers.TierDelete(deps.Tiers, logg))
		})

		r.Route("/tickets", func(r chi.Router) {
			r.Get("/", controllers.TicketListOpen(deps.Tickets, logg))
			r.Post("/{ticketID}/setup", controllers.TicketSetup(deps.Tickets, logg))
			r.Post("/{ticketID}/close", controllers.TicketClose(deps.Tickets, logg))
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/summary", controllers.AnalyticsSummary(deps.Analytics, logg))
			r.Get("/items/{itemID}", controllers.AnalyticsItemStats(deps.Analytics, logg))
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", controllers.SettingsList(deps.Settings, logg))
			r.Put("/", controllers.SettingsSet(deps.Settings, logg))
			r.Put("/shop-status", controllers.ShopStatusSet(deps.Settings, deps.Gateway, logg))
		})
	})

	return r
}
