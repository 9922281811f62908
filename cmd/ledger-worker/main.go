package main

import (
	"context"
	"errors"
	"os"

	"budgetplaner/internal/amqp"
	"budgetplaner/internal/cli"
	"budgetplaner/internal/config"
	applog "budgetplaner/internal/log"
	gsheet "budgetplaner/internal/sheets/google"
	"budgetplaner/internal/worker"
)

// ledger-worker consumes ledger events and keeps the spreadsheet mirror in
// step with the database.
func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker, func(c *config.Config) error {
		return errors.Join(c.ValidateStore(), c.ValidateMirror())
	})

	logger.Info("Starting ledger-worker")

	ctx, stop := cli.SignalContext()
	defer stop()

	be := cli.OpenBackend(ctx, logger, cfg)
	defer be.Cleanup()

	mirror, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		OAuth: gsheet.OAuthCredentials{
			ClientJSON: cfg.GoogleOAuthClientJSON,
			ClientFile: cfg.GoogleOAuthClientFile,
			TokenJSON:  cfg.GoogleOAuthTokenJSON,
			TokenFile:  cfg.GoogleOAuthTokenFile,
		},
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	mirrorWorker := worker.NewMirrorWorker(be.Store, mirror)

	// Events published while the worker was down are still queued, but a
	// purged queue or a hand-edited sheet is only repaired by a resync.
	if cfg.MirrorResyncOnStart {
		logger.Info("Performing startup resync")
		if err := mirrorWorker.Resync(ctx); err != nil {
			logger.Error("Startup resync failed", applog.FieldError, err)
		}
	}

	if err := client.ConsumeEvents(ctx, mirrorWorker.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Ledger-worker shutdown complete")
}
