package worker

import (
	"context"
	"fmt"
	"log/slog"

	"budgetplaner/internal/core"
	"budgetplaner/internal/ports"
	"budgetplaner/internal/sheets"
)

// Store is the part of the backend the mirror worker reads from.
type Store interface {
	ports.LedgerStore
	ports.CategoryStore
	ports.UserStore
}

// MirrorWorker replays ledger events into a spreadsheet mirror.
type MirrorWorker struct {
	store  Store
	mirror sheets.TransactionMirror
}

func NewMirrorWorker(store Store, mirror sheets.TransactionMirror) *MirrorWorker {
	return &MirrorWorker{store: store, mirror: mirror}
}

// HandleEvent applies one ledger event to the mirror. It matches
// amqp.Handler, so an error leads to redelivery.
func (w *MirrorWorker) HandleEvent(ctx context.Context, e core.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"type", e.Type,
		"owner_id", e.OwnerID,
		"transaction_id", e.TransactionID)

	switch e.Type {
	case core.EventTransactionCreated, core.EventTransactionUpdated:
		return w.syncTransaction(ctx, e.OwnerID, e.TransactionID)

	case core.EventTransactionDeleted:
		if err := w.mirror.DeleteTransaction(ctx, e.TransactionID); err != nil {
			return fmt.Errorf("delete mirrored transaction %d: %w", e.TransactionID, err)
		}
		return nil

	case core.EventAccountDeleted:
		n, err := w.mirror.DeleteAccountRows(ctx, e.AccountID)
		if err != nil {
			return fmt.Errorf("delete mirrored rows of account %s: %w", e.AccountID, err)
		}
		slog.InfoContext(ctx, "Cleared mirrored account rows", "account_id", e.AccountID, "rows", n)
		return nil

	case core.EventCategoryChanged:
		// Rows pick up new labels the next time they are written.
		return nil

	default:
		slog.WarnContext(ctx, "Ignoring unknown ledger event", "type", e.Type)
		return nil
	}
}

// syncTransaction upserts the current state of id. A transaction that is
// gone by the time the event arrives is removed instead; the delete event
// that follows is then a no-op.
func (w *MirrorWorker) syncTransaction(ctx context.Context, ownerID string, id int64) error {
	t, err := w.store.GetTransaction(ctx, id)
	if core.ReasonOf(err) == core.ReasonNotFound {
		slog.InfoContext(ctx, "Transaction vanished before mirroring", "transaction_id", id)
		return w.mirror.DeleteTransaction(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("get transaction %d: %w", id, err)
	}
	if t.OwnerID != ownerID {
		slog.WarnContext(ctx, "Event owner does not match transaction owner",
			"transaction_id", id,
			"owner_id", ownerID)
	}

	categories, err := w.store.ListCategories(ctx, t.OwnerID)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	label := core.NewCategoryMap(categories).Label(t.Category)

	if err := w.mirror.UpsertTransaction(ctx, t, label); err != nil {
		return fmt.Errorf("mirror transaction %d: %w", id, err)
	}
	return nil
}

// Resync upserts every transaction of every user. It recovers rows missed
// while the worker was down.
func (w *MirrorWorker) Resync(ctx context.Context) error {
	users, err := w.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	synced, failed := 0, 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, errs := w.resyncOwner(ctx, u.ID)
		synced += n
		failed += errs
	}

	slog.InfoContext(ctx, "Startup mirror resync completed",
		"users", len(users),
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *MirrorWorker) resyncOwner(ctx context.Context, ownerID string) (synced, failed int) {
	txs, err := w.store.ListTransactions(ctx, ownerID, core.TransactionFilter{})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list transactions for resync", "owner_id", ownerID, "error", err)
		return 0, 1
	}
	categories, err := w.store.ListCategories(ctx, ownerID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list categories for resync", "owner_id", ownerID, "error", err)
		return 0, 1
	}
	lookup := core.NewCategoryMap(categories)

	for _, t := range txs {
		if err := w.mirror.UpsertTransaction(ctx, t, lookup.Label(t.Category)); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror transaction during resync",
				"transaction_id", t.ID, "error", err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed
}
