package main

import (
	"os"

	"budgetplaner/internal/amqp"
	"budgetplaner/internal/cli"
	"budgetplaner/internal/config"
	applog "budgetplaner/internal/log"
	"budgetplaner/internal/services"
	"budgetplaner/internal/worker"
)

// recurring-worker books due recurring definitions for deployments that
// keep the scheduler out of the API process.
func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentRecurring, (*config.Config).ValidateStore)

	logger.Info("Starting recurring-worker")

	ctx, stop := cli.SignalContext()
	defer stop()

	be := cli.OpenBackend(ctx, logger, cfg)
	defer be.Cleanup()

	// Published events reach the ledger-worker, which mirrors the booked
	// transactions into the spreadsheet.
	var notifier services.Notifier
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		} else {
			defer client.Close()
			notifier = client
		}
	} else {
		logger.Info("AMQP disabled - booked transactions will not be mirrored")
	}

	ledger := services.NewLedgerService(be.Store, notifier)
	processor := services.NewRecurringProcessor(be.Store, ledger)

	if err := worker.NewRecurringWorker(processor, cfg.RecurringInterval).Run(ctx); err != nil {
		logger.Error("Recurring worker failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Recurring-worker shutdown complete")
}
