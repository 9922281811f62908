// Package services provides business logic and orchestration services.
//
// LedgerService keeps every account balance equal to the sum of the
// transactions referencing it. Each mutation runs as one atomic unit of the
// store: the transaction row and the balance adjustments commit together.
package services

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"budgetplaner/internal/core"
	"budgetplaner/internal/ports"
)

type LedgerService struct {
	store    ports.LedgerStore
	notifier Notifier
	now      func() time.Time
}

func NewLedgerService(store ports.LedgerStore, notifier Notifier) *LedgerService {
	return &LedgerService{store: store, notifier: notifier, now: time.Now}
}

// WithClock replaces the time source used for event timestamps.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

// Create books a new transaction and, when it references an account, adds
// its amount to that account's balance.
func (s *LedgerService) Create(ctx context.Context, ownerID string, draft core.TransactionDraft) (core.Transaction, error) {
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return core.Transaction{}, core.Invalid(err)
	}

	var created core.Transaction
	err := s.store.WithinTx(ctx, func(tx ports.LedgerTx) error {
		var err error
		created, err = book(ctx, tx, draft.Transaction(ownerID))
		return err
	})
	if err != nil {
		return core.Transaction{}, core.StoreFailure(err)
	}

	slog.DebugContext(ctx, "Transaction created",
		"owner_id", ownerID,
		"transaction_id", created.ID,
		"account_id", created.AccountID,
		"amount_cents", created.Amount.Cents)
	s.emit(ctx, core.EventTransactionCreated, created)
	return created, nil
}

// Update applies patch to a transaction the owner holds. Balance effects
// follow the first matching case:
//
//  1. the account changed: the old account loses the old amount and the
//     new account gains the new amount;
//  2. same account, different amount: the account moves by the difference;
//  3. otherwise balances stay untouched.
func (s *LedgerService) Update(ctx context.Context, ownerID string, id int64, patch core.TransactionPatch) (core.Transaction, error) {
	var updated core.Transaction
	err := s.store.WithinTx(ctx, func(tx ports.LedgerTx) error {
		existing, err := ownedTransaction(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}

		next := patch.Apply(existing)
		if err := next.Draft().Validate(); err != nil {
			return core.Invalid(err)
		}

		oldAccount, newAccount := existing.AccountID, next.AccountID
		switch {
		case oldAccount != newAccount:
			if newAccount != "" {
				if _, err := ownedAccount(ctx, tx, ownerID, newAccount); err != nil {
					return err
				}
			}
			if oldAccount != "" {
				if err := adjustIfPresent(ctx, tx, oldAccount, existing.Amount.Neg()); err != nil {
					return err
				}
			}
			if newAccount != "" {
				if err := tx.AdjustBalance(ctx, newAccount, next.Amount); err != nil {
					return err
				}
			}
		case newAccount != "" && next.Amount != existing.Amount:
			if err := tx.AdjustBalance(ctx, newAccount, next.Amount.Sub(existing.Amount)); err != nil {
				return err
			}
		}

		if err := tx.UpdateTransaction(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return core.Transaction{}, core.StoreFailure(err)
	}

	s.emit(ctx, core.EventTransactionUpdated, updated)
	return updated, nil
}

// Delete removes a transaction and reverses its effect on its account.
func (s *LedgerService) Delete(ctx context.Context, ownerID string, id int64) error {
	var removed core.Transaction
	err := s.store.WithinTx(ctx, func(tx ports.LedgerTx) error {
		existing, err := ownedTransaction(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		if existing.AccountID != "" {
			if err := adjustIfPresent(ctx, tx, existing.AccountID, existing.Amount.Neg()); err != nil {
				return err
			}
		}
		if err := tx.DeleteTransaction(ctx, id); err != nil {
			return err
		}
		removed = existing
		return nil
	})
	if err != nil {
		return core.StoreFailure(err)
	}

	s.emit(ctx, core.EventTransactionDeleted, removed)
	return nil
}

// Get returns a transaction the owner holds.
func (s *LedgerService) Get(ctx context.Context, ownerID string, id int64) (core.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, core.StoreFailure(err)
	}
	if t.OwnerID != ownerID {
		return core.Transaction{}, core.NotOwned("transaction", strconv.FormatInt(id, 10))
	}
	return t, nil
}

func (s *LedgerService) List(ctx context.Context, ownerID string, f core.TransactionFilter) ([]core.Transaction, error) {
	out, err := s.store.ListTransactions(ctx, ownerID, f)
	if err != nil {
		return nil, core.StoreFailure(err)
	}
	return out, nil
}

// Materialize books the occurrence of def for the month of now. The
// transaction, the occurrence claim and the execution marker commit
// together, so a month is materialized at most once even across processes.
func (s *LedgerService) Materialize(ctx context.Context, def core.RecurringDefinition, now time.Time) (core.Transaction, error) {
	draft := core.TransactionDraft{
		Description: def.Description,
		Amount:      def.Amount,
		Category:    def.Category,
		Date:        core.DateOf(now),
		Month:       core.MonthLabel(now),
		RecurringID: def.ID,
	}.Normalize()
	if err := draft.Validate(); err != nil {
		return core.Transaction{}, core.Invalid(err)
	}

	var created core.Transaction
	err := s.store.WithinTx(ctx, func(tx ports.LedgerTx) error {
		var err error
		created, err = book(ctx, tx, draft.Transaction(def.OwnerID))
		if err != nil {
			return err
		}
		if err := tx.ClaimOccurrence(ctx, def.ID, core.MonthKey(now), created.ID); err != nil {
			return err
		}
		return tx.MarkExecuted(ctx, def.ID, now)
	})
	if err != nil {
		return core.Transaction{}, core.StoreFailure(err)
	}

	s.emit(ctx, core.EventTransactionCreated, created)
	return created, nil
}

func (s *LedgerService) emit(ctx context.Context, typ core.EventType, t core.Transaction) {
	notify(ctx, s.notifier, core.LedgerEvent{
		Type:          typ,
		OwnerID:       t.OwnerID,
		TransactionID: t.ID,
		AccountID:     t.AccountID,
		Month:         t.Month,
		At:            s.now(),
	})
}

// book inserts t and applies its amount to the referenced account.
func book(ctx context.Context, tx ports.LedgerTx, t core.Transaction) (core.Transaction, error) {
	if t.AccountID != "" {
		if _, err := ownedAccount(ctx, tx, t.OwnerID, t.AccountID); err != nil {
			return core.Transaction{}, err
		}
	}
	created, err := tx.InsertTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.AccountID != "" {
		if err := tx.AdjustBalance(ctx, t.AccountID, t.Amount); err != nil {
			return core.Transaction{}, err
		}
	}
	return created, nil
}

func ownedTransaction(ctx context.Context, tx ports.LedgerTx, ownerID string, id int64) (core.Transaction, error) {
	t, err := tx.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.OwnerID != ownerID {
		return core.Transaction{}, core.NotOwned("transaction", strconv.FormatInt(id, 10))
	}
	return t, nil
}

// ownedAccount resolves a referenced account. A missing account is an
// invalid reference rather than a missing target.
func ownedAccount(ctx context.Context, tx ports.LedgerTx, ownerID, accountID string) (core.Account, error) {
	a, err := tx.GetAccount(ctx, accountID)
	if core.ReasonOf(err) == core.ReasonNotFound {
		return core.Account{}, core.InvalidReference("account", accountID)
	}
	if err != nil {
		return core.Account{}, err
	}
	if a.OwnerID != ownerID {
		return core.Account{}, core.NotOwned("account", accountID)
	}
	return a, nil
}

// adjustIfPresent skips accounts that no longer exist.
func adjustIfPresent(ctx context.Context, tx ports.LedgerTx, accountID string, delta core.Money) error {
	err := tx.AdjustBalance(ctx, accountID, delta)
	if core.ReasonOf(err) == core.ReasonNotFound {
		return nil
	}
	return err
}
