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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/blockmart/blockmart-backend/internal/analytics"
	"github.com/blockmart/blockmart-backend/internal/cart"
	"github.com/blockmart/blockmart-backend/internal/catalog"
	"github.com/blockmart/blockmart-backend/internal/cron"
	"github.com/blockmart/blockmart-backend/internal/giveaway"
	"github.com/blockmart/blockmart-backend/internal/ledger"
	"github.com/blockmart/blockmart-backend/internal/payment"
	"github.com/blockmart/blockmart-backend/internal/platform"
	"github.com/blockmart/blockmart-backend/internal/reconcile"
	"github.com/blockmart/blockmart-backend/internal/roletier"
	"github.com/blockmart/blockmart-backend/internal/settings"
	"github.com/blockmart/blockmart-backend/internal/ticket"
	"github.com/blockmart/blockmart-backend/pkg/coingecko"
	"github.com/blockmart/blockmart-backend/pkg/config"
	"github.com/blockmart/blockmart-backend/pkg/db"
	"github.com/blockmart/blockmart-backend/pkg/logger"
	"github.com/blockmart/blockmart-backend/pkg/metrics"
	"github.com/blockmart/blockmart-backend/pkg/migrate"
	"github.com/blockmart/blockmart-backend/pkg/paypal"
	"github.com/blockmart/blockmart-backend/pkg/redis"
	"github.com/blockmart/blockmart-backend/pkg/square"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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

	ledgerSvc, err := ledger.NewService(userRepo, dbClient)
	requireResource(logg, "ledger service", err)

	settingsSvc, err := settings.NewService(settingRepo)
	requireResource(logg, "settings service", err)

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

	reconcileLock, err := cron.NewRedisLock(redisClient, redisClient.JobLockKey("reconcile"), 2*cfg.Reconcile.Interval)
	requireResource(logg, "reconcile lock", err)

	poller, err := reconcile.NewPoller(reconcile.PollerParams{
		Logger:    logg,
		Carts:     cartRepo,
		Settler:   cartSvc,
		Processor: processor,
		Lock:      reconcileLock,
		Metrics:   metrics.NewReconcileMetrics(registry),
		Interval:  cfg.Reconcile.Interval,
	})
	requireResource(logg, "reconcile poller", err)

	rotationJob, err := cron.NewGiveawayRotationJob(cron.GiveawayRotationJobParams{
		Giveaways: giveawaySvc,
		Interval:  cfg.Giveaway.RotationInterval,
	})
	requireResource(logg, "giveaway rotation job", err)

	reminderJob, err := cron.NewInactivityReminderJob(cron.InactivityReminderJobParams{
		Logger:    logg,
		Carts:     cartRepo,
		Gateway:   gateway,
		Threshold: cfg.Shop.InactivityThreshold,
		Interval:  cfg.Shop.ReminderInterval,
	})
	requireResource(logg, "inactivity reminder job", err)

	purgeJob, err := cron.NewRetentionPurgeJob(cron.RetentionPurgeJobParams{
		Logger:   logg,
		Carts:    cartRepo,
		Tickets:  ticketSvc,
		Window:   cfg.Shop.RetentionWindow,
		Interval: cfg.Shop.PurgeInterval,
	})
	requireResource(logg, "retention purge job", err)

	cronLock, err := cron.NewRedisLock(redisClient, redisClient.JobLockKey("cron"), 2*time.Minute)
	requireResource(logg, "cron lock", err)

	cronSvc, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(rotationJob, reminderJob, purgeJob),
		Lock:     cronLock,
		Metrics:  metrics.NewCronJobMetrics(registry),
	})
	requireResource(logg, "cron service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	metricsServer := newMetricsServer(":"+port, registry)

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": metricsServer.Addr,
		"mode": cfg.Payments.NormalizedMode(),
	})
	logg.Info(logCtx, "starting worker")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return poller.Run(groupCtx)
	})
	group.Go(func() error {
		return cronSvc.Run(groupCtx)
	})
	group.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(logCtx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(logCtx, "worker shut down cleanly")
}

func newMetricsServer(addr string, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
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
