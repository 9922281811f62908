package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"budgetplaner/internal/auth"
	"budgetplaner/internal/backend"
	"budgetplaner/internal/config"
	"budgetplaner/internal/core"
	"budgetplaner/internal/ports"
	"budgetplaner/internal/services"
)

// backendHandle bundles the store with the services the commands use.
// budgetctl publishes no events; the next ledger-worker resync catches the
// mirror up.
type backendHandle struct {
	store   ports.Store
	cleanup backend.CleanupFunc

	auth      *auth.Service
	ledger    *services.LedgerService
	data      *services.DataService
	processor *services.RecurringProcessor
}

func newBackendHandle(ctx context.Context, cfg *config.Config) (*backendHandle, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(slog.Default()).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	ledger := services.NewLedgerService(res.Store, nil)
	return &backendHandle{
		store:     res.Store,
		cleanup:   res.Cleanup,
		auth:      auth.NewService(res.Store, nil, cfg.BcryptCost),
		ledger:    ledger,
		data:      services.NewDataService(ledger, res.Store),
		processor: services.NewRecurringProcessor(res.Store, ledger),
	}, nil
}

func (h *backendHandle) Close() {
	if h.cleanup != nil {
		if err := h.cleanup(); err != nil {
			slog.Warn("Failed to close backend", "error", err)
		}
	}
}

// ownerByEmail resolves the --owner flag to a user id.
func (h *backendHandle) ownerByEmail(ctx context.Context, email string) (core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return core.User{}, fmt.Errorf("--owner is required")
	}
	u, err := h.store.GetUserByEmail(ctx, email)
	if core.IsNotFound(err) {
		return core.User{}, fmt.Errorf("no user with email %s", email)
	}
	return u, err
}
