package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetplaner/internal/amqp"
	"budgetplaner/internal/auth"
	"budgetplaner/internal/cache"
	"budgetplaner/internal/cli"
	"budgetplaner/internal/core"
	apphttp "budgetplaner/internal/http"
	applog "budgetplaner/internal/log"
	"budgetplaner/internal/services"
	"budgetplaner/internal/worker"
)

const (
	shutdownTimeout  = 30 * time.Second
	reportCacheSize  = 1000
	cacheSweepPeriod = time.Minute
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp, nil)

	ctx, stop := cli.SignalContext()
	defer stop()

	be := cli.OpenBackend(ctx, logger, cfg)
	defer be.Cleanup()
	store := be.Store

	var statsCache cache.Cache[core.Statistics]
	if cfg.ReportCacheTTL > 0 {
		lru := cache.NewLRUCache[core.Statistics](reportCacheSize, cfg.ReportCacheTTL)
		manager := cache.NewManager()
		manager.Register(lru)
		manager.StartCleanup(ctx, cacheSweepPeriod)
		defer manager.Stop()
		statsCache = lru
	}
	reports := services.NewReportService(store, store, store, statsCache)

	notifiers := services.Notifiers{reports}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, ledger events stay in process", applog.FieldError, err)
		} else {
			defer client.Close()
			notifiers = append(notifiers, client)
			logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - the spreadsheet mirror will not be updated")
	}

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		logger.Error("Failed to initialize session tokens", applog.FieldError, err)
		os.Exit(1)
	}

	ledger := services.NewLedgerService(store, notifiers)
	processor := services.NewRecurringProcessor(store, ledger)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:       auth.NewService(store, tokens, cfg.BcryptCost),
		Ledger:     ledger,
		Accounts:   services.NewAccountService(store, store, notifiers),
		Categories: services.NewCategoryService(store, reports),
		Settings:   services.NewSettingsService(store),
		Recurring:  services.NewRecurringService(store),
		Processor:  processor,
		Reports:    reports,
		Data:       services.NewDataService(ledger, store),
		Ready:      be.Ready,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger.WithComponent(applog.ComponentHTTP),
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting budgetplaner server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return worker.NewRecurringWorker(processor, cfg.RecurringInterval).Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
