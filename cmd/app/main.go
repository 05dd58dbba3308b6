// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vpn-subscription-billing/internal/config"
	"vpn-subscription-billing/internal/domain/ports/adapter"
	"vpn-subscription-billing/internal/domain/ports/repository"
	"vpn-subscription-billing/internal/infra/botsync"
	pg "vpn-subscription-billing/internal/infra/db/postgres"
	httpapi "vpn-subscription-billing/internal/infra/http"
	"vpn-subscription-billing/internal/infra/logging"
	"vpn-subscription-billing/internal/infra/metrics"
	"vpn-subscription-billing/internal/infra/providers"
	"vpn-subscription-billing/internal/infra/provisioning"
	red "vpn-subscription-billing/internal/infra/redis"
	"vpn-subscription-billing/internal/infra/sched"
	"vpn-subscription-billing/internal/infra/worker"
	"vpn-subscription-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed timeouts)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	entCache := red.NewEntitlementCache(redisClient, logger)

	// ---- Repositories ----
	txManager := pg.NewTxManager(pool)
	intentRepo := pg.NewPaymentIntentRepo(pool)
	var tariffRepo repository.TariffRepository = pg.NewTariffRepo(pool)
	tariffRepo = pg.NewTariffRepoCacheDecorator(tariffRepo, redisClient, cfg.Redis.TTL)
	promoRepo := pg.NewPromoCodeRepo(pool)
	userRepo := pg.NewUserRepo(pool)

	// ---- External clients ----
	provClient := provisioning.NewClient(cfg.Provisioning.BaseURL, cfg.Provisioning.Token, cfg.Provisioning.Timeout)
	var syncClient adapter.BotSyncClient
	if cfg.BotSync.BaseURL != "" {
		syncClient = botsync.NewClient(cfg.BotSync.BaseURL, cfg.BotSync.Token, cfg.BotSync.Timeout)
	}

	// ---- Payment providers ----
	registry, err := buildRegistry(&cfg.Payment)
	if err != nil {
		log.Fatalf("providers: %v", err)
	}
	logger.Info().Strs("providers", registry.Keys()).Msg("payment providers configured")

	// ---- Background sync workers ----
	syncPool := worker.NewPool(cfg.Worker.SyncWorkers, cfg.Worker.MaxRetries, cfg.Worker.RetryDelay, logger)
	syncPool.Start(ctx)
	defer syncPool.Stop()

	// ---- Use cases ----
	chargeUC := usecase.NewChargeUseCase(intentRepo, tariffRepo, promoRepo, userRepo, registry, cfg.HTTP.PublicURL, logger)
	statsUC := usecase.NewStatsUseCase(intentRepo, logger)
	fulfillUC := usecase.NewFulfillmentUseCase(
		intentRepo, tariffRepo, promoRepo, userRepo,
		provClient, syncClient, entCache, syncPool, txManager,
		usecase.BillingRates{BalanceCurrency: cfg.Billing.BalanceCurrency, Rates: cfg.Billing.Rates},
		logger,
	)

	// ---- Stale-intent reconciler ----
	reconciler := sched.NewReconciler(intentRepo, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, cfg.Reconciler.FailAfter, logger)
	go reconciler.Start(ctx)

	// ---- HTTP server ----
	srv := httpapi.NewServer(&cfg.HTTP, registry, chargeUC, fulfillUC, statsUC, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, release := context.WithTimeout(context.Background(), 10*time.Second)
	defer release()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}

// buildRegistry instantiates only the providers whose credentials are
// present, so a deployment can run with any subset.
func buildRegistry(cfg *config.PaymentConfig) (*providers.Registry, error) {
	var ps []adapter.PaymentProvider
	if cfg.YooKassa.ShopID != "" {
		ps = append(ps, providers.NewYooKassa(cfg.YooKassa.ShopID, cfg.YooKassa.SecretKey, cfg.YooKassa.BaseURL))
	}
	if cfg.YooMoney.ShopID != "" {
		ps = append(ps, providers.NewYooMoney(cfg.YooMoney.ShopID, cfg.YooMoney.SecretKey))
	}
	if cfg.FreeKassa.ShopID != "" {
		ps = append(ps, providers.NewFreeKassa(cfg.FreeKassa.ShopID, cfg.FreeKassa.APIKey, cfg.FreeKassa.SecretKey2, cfg.FreeKassa.BaseURL))
	}
	if cfg.Robokassa.ShopID != "" {
		ps = append(ps, providers.NewRobokassa(cfg.Robokassa.ShopID, cfg.Robokassa.SecretKey, cfg.Robokassa.SecretKey2, cfg.Robokassa.BaseURL))
	}
	if cfg.CryptoBot.APIKey != "" {
		ps = append(ps, providers.NewCryptoBot(cfg.CryptoBot.APIKey, "USDT", cfg.CryptoBot.BaseURL))
	}
	if cfg.Cryptomus.ShopID != "" {
		ps = append(ps, providers.NewCryptomus(cfg.Cryptomus.ShopID, cfg.Cryptomus.APIKey, cfg.Cryptomus.BaseURL))
	}
	if cfg.Lava.ShopID != "" {
		ps = append(ps, providers.NewLava(cfg.Lava.ShopID, cfg.Lava.SecretKey, cfg.Lava.BaseURL))
	}
	if cfg.TelegramStars.BotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramStars.BotToken)
		if err != nil {
			return nil, err
		}
		ps = append(ps, providers.NewTelegramStars(bot, cfg.TelegramStars.WebhookToken))
	}
	return providers.NewRegistry(ps...)
}
