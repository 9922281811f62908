package services

import (
	"context"
	"errors"
	"log/slog"

	"budgetplaner/internal/core"
)

// Notifier receives ledger events after the mutation committed.
type Notifier interface {
	Notify(ctx context.Context, e core.LedgerEvent) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e core.LedgerEvent) error

func (f NotifierFunc) Notify(ctx context.Context, e core.LedgerEvent) error { return f(ctx, e) }

// Notifiers fans an event out to every notifier, joining their errors.
type Notifiers []Notifier

func (n Notifiers) Notify(ctx context.Context, e core.LedgerEvent) error {
	var errs []error
	for _, notifier := range n {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// notify never fails the caller: the mutation is already committed.
func notify(ctx context.Context, n Notifier, e core.LedgerEvent) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", e.Type,
			"owner_id", e.OwnerID,
			"transaction_id", e.TransactionID,
			"error", err)
	}
}
