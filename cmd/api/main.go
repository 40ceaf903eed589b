package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blockmart/blockmart-backend/api/routes"
	"github.com/blockmart/blockmart-backend/internal/analytics"
	"github.com/blockmart/blockmart-backend/internal/cart"
	"github.com/blockmart/blockmart-backend/internal/catalog"
	"github.com/blockmart/blockmart-backend/internal/giveaway"
	"github.com/blockmart/blockmart-backend/internal/ledger"
	"github.com/blockmart/blockmart-backend/internal/payment"
	"github.com/blockmart/blockmart-backend/internal/platform"
	"github.com/blockmart/blockmart-backend/internal/roletier"
	"github.com/blockmart/blockmart-backend/internal/settings"
	"github.com/blockmart/blockmart-backend/internal/ticket"
	"github.com/blockmart/blockmart-backend/pkg/coingecko"
	"github.com/blockmart/blockmart-backend/pkg/config"
	"github.com/blockmart/blockmart-backend/pkg/db"
	"github.com/blockmart/blockmart-backend/pkg/logger"
	"github.com/blockmart/blockmart-backend/pkg/migrate"
	"github.com/blockmart/blockmart-backend/pkg/paypal"
	"github.com/blockmart/blockmart-backend/pkg/redis"
	"github.com/blockmart/blockmart-backend/pkg/square"
)

const shutdownGrace = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	requireResource(logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gateway, err := platform.NewLogGateway(logg)
	requireResource(logg, "platform gateway", err)

	cartRepo := cart.NewRepository(dbClient.DB())
	itemRepo := catalog.NewRepository(dbClient.DB())
	userRepo := ledger.NewRepository(dbClient.DB())
	eventRepo := analytics.NewRepository(dbClient.DB())
	tierRepo := roletier.NewRepository(dbClient.DB())
	giveawayRepo := giveaway.NewRepository(dbClient.DB())
	ticketRepo := ticket.NewRepository(dbClient.DB())
	settingRepo := settings.NewRepository(dbClient.DB())

	catalogSvc, err := catalog.NewService(itemRepo)
	requireResource(logg, "catalog service", err)

	ledgerSvc, err := ledger.NewService(userRepo, dbClient)
	requireResource(logg, "ledger service", err)

	settingsSvc, err := settings.NewService(settingRepo)
	requireResource(logg, "settings service", err)

	analyticsSvc, err := analytics.NewService(eventRepo)
	requireResource(logg, "analytics service", err)

	tiersSvc, err := roletier.NewService(tierRepo, userRepo, gateway, logg)
	requireResource(logg, "role tier service", err)

	giveawaySvc, err := giveaway.NewService(giveawayRepo, ledgerSvc, gateway, giveaway.Options{
		Prize:      cfg.Giveaway.Prize(),
		Duration:   cfg.Giveaway.Duration,
		ChannelRef: cfg.Platform.GiveawayChannel,
	}, logg)
	requireResource(logg, "giveaway service", err)

	ticketSvc, err := ticket.NewService(ticketRepo, gateway, ticket.Options{
		CategoryRef:        cfg.Platform.TicketCategory,
		ArchiveCategoryRef: cfg.Platform.TicketArchiveCategory,
	}, logg)
	requireResource(logg, "ticket service", err)

	processor, err := buildProcessor(ctx, cfg, logg)
	requireResource(logg, "payment processor", err)

	var geckoOpts []coingecko.Option
	if cfg.Crypto.CoinGeckoBaseURL != "" {
		geckoOpts = append(geckoOpts, coingecko.WithBaseURL(cfg.Crypto.CoinGeckoBaseURL))
	}
	quoter, err := payment.NewCryptoQuoter(coingecko.NewClient(geckoOpts...), cfg.Crypto)
	requireResource(logg, "crypto quoter", err)

	cartSvc, err := cart.NewService(cart.Deps{
		Carts:     cartRepo,
		Items:     itemRepo,
		Users:     userRepo,
		Events:    eventRepo,
		Tiers:     tiersSvc,
		Settings:  settingsSvc,
		Processor: processor,
		Quoter:    quoter,
		Gateway:   gateway,
		Tx:        dbClient,
		Locks:     redisClient,
		Logger:    logg,
	}, cart.Options{
		PurchaseMinimum:     cfg.Shop.PurchaseMinimum(),
		CartCategoryRef:     cfg.Platform.CartCategory,
		ArchiveCategoryRef:  cfg.Platform.ArchiveCategory,
		DeliveryPingRoleRef: cfg.Platform.DeliveryPingRole,
		PublicBaseURL:       cfg.Webhook.PublicBaseURL,
	})
	requireResource(logg, "cart service", err)

	registry := prometheus.NewRegistry()

	handler := routes.NewRouter(routes.Deps{
		Config:    cfg,
		Logger:    logg,
		DB:        dbClient,
		Redis:     redisClient,
		Registry:  registry,
		Gateway:   gateway,
		Carts:     cartSvc,
		CartRepo:  cartRepo,
		Catalog:   catalogSvc,
		Ledger:    ledgerSvc,
		Tiers:     tiersSvc,
		Giveaways: giveawaySvc,
		Tickets:   ticketSvc,
		Settings:  settingsSvc,
		Analytics: analyticsSvc,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
		"mode": cfg.Payments.NormalizedMode(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logg.Info(logCtx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	}
}

// buildProcessor constructs only the client the configured mode
// selects; the unused processor's credentials may be absent.
func buildProcessor(ctx context.Context, cfg *config.Config, logg *logger.Logger) (payment.Processor, error) {
	switch cfg.Payments.NormalizedMode() {
	case config.PaymentsModePayPal:
		client, err := paypal.NewClient(cfg.PayPal, logg)
		if err != nil {
			return nil, fmt.Errorf("paypal client: %w", err)
		}
		return payment.SelectProcessor(cfg.Payments, client, nil)
	case config.PaymentsModeSquare:
		client, err := square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return nil, fmt.Errorf("square client: %w", err)
		}
		return payment.SelectProcessor(cfg.Payments, nil, client)
	default:
		return nil, fmt.Errorf("unknown payments mode %q", cfg.Payments.Mode)
	}
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
