package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"budgetplaner/internal/core"
	"budgetplaner/internal/ports"

	"github.com/google/uuid"
)

var (
	ErrSameAccount     = errors.New("transfer needs two different accounts")
	ErrUnknownAccType  = errors.New("unknown account type")
	ErrTransferAmount  = errors.New("transfer amount must be positive")
	ErrAccountTypeUsed = errors.New("account type is still in use")
)

// AccountService manages accounts, transfers and the account-type lookup
// table. Every path that moves money goes through book, so balances stay
// consistent with the ledger.
type AccountService struct {
	store    ports.LedgerStore
	types    ports.AccountTypeStore
	notifier Notifier
	now      func() time.Time
}

func NewAccountService(store ports.LedgerStore, types ports.AccountTypeStore, notifier Notifier) *AccountService {
	return &AccountService{store: store, types: types, notifier: notifier, now: time.Now}
}

func (s *AccountService) WithClock(now func() time.Time) *AccountService {
	s.now = now
	return s
}

// TransferRequest moves Amount from one account to another.
type TransferRequest struct {
	From   string     `json:"fromAccountId"`
	To     string     `json:"toAccountId"`
	Amount core.Money `json:"amount"`
	Date   core.Date  `json:"date"`
}

func (s *AccountService) List(ctx context.Context, ownerID string) ([]core.Account, error) {
	out, err := s.store.ListAccounts(ctx, ownerID)
	if err != nil {
		return nil, core.StoreFailure(err)
	}
	return out, nil
}

func (s *AccountService) Get(ctx context.Context, ownerID, id string) (core.Account, error) {
	a, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, core.StoreFailure(err)
	}
	if a.OwnerID != ownerID {
		return core.Account{}, core.NotOwned("account", id)
	}
	return a, nil
}

// Create opens an account. A positive starting balance is booked as a
// "Startsaldo" transaction in the same atomic unit.
func (s *AccountService) Create(ctx context.Context, ownerID string, draft core.AccountDraft) (core.Account, error) {
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return core.Account{}, core.Invalid(err)
	}
	if err := s.checkType(ctx, ownerID, draft.Type); err != nil {
		return core.Account{}, err
	}

	now := s.now()
	account := core.Account{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      draft.Name,
		Type:      draft.Type,
		Currency:  draft.Currency,
		Color:     draft.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var opening *core.Transaction
	err := s.store.WithinTx(ctx, func(tx ports.LedgerTx) error {
		if err := tx.InsertAccount(ctx, account); err != nil {
			return err
		}
		if draft.StartingBalance.Cents <= 0 {
			return nil
		}
		t, err := book(ctx, tx, core.TransactionDraft{
			Description: core.StartingBalanceDescription,
			Amount:      draft.StartingBalance,
			Category:    core.DefaultCategoryKey,
			Date:        core.DateOf(now),
			AccountID:   account.ID,
		}.Normalize().Transaction(ownerID))
		if err != nil {
			return err
		}
		opening = &t
		return nil
	})
	if err != nil {
		return core.Account{}, core.StoreFailure(err)
	}

	if opening != nil {
		account.Balance = opening.Amount
		s.emit(ctx, core.EventTransactionCreated, *opening)
	}
	return account, nil
}

// Update edits descriptive fields. The balance is not editable here.
func (s *AccountService) Update(ctx context.Context, ownerID, id string, patch core.AccountPatch) (core.Account, error) {
	if patch.Type != nil {
		if err := s.checkType(ctx, ownerID, strings.TrimSpace(*patch.Type)); err != nil {
			return core.Account{}, err
		}
	}

	var updated core.Account
	err := s.store.WithinTx(ctx, func(tx ports.LedgerTx) error {
		existing, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if existing.OwnerID != ownerID {
			return core.NotOwned("account", id)
		}
		next := patch.Apply(existing)
		if err := next.Validate(); err != nil {
			return core.Invalid(err)
		}
		if err := tx.UpdateAccount(ctx, next); err != nil {
			return err
		}
		next.UpdatedAt = s.now()
		updated = next
		return nil
	})
	if err != nil {
		return core.Account{}, core.StoreFailure(err)
	}
	return updated, nil
}

// Delete removes the account together with every transaction referencing
// it and reports how many transactions went with it.
func (s *AccountService) Delete(ctx context.Context, ownerID, id string) (int, error) {
	var removed int
	err := s.store.WithinTx(ctx, func(tx ports.LedgerTx) error {
		existing, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if existing.OwnerID != ownerID {
			return core.NotOwned("account", id)
		}
		removed, err = tx.DeleteAccount(ctx, id)
		return err
	})
	if err != nil {
		return 0, core.StoreFailure(err)
	}

	notify(ctx, s.notifier, core.LedgerEvent{
		Type:      core.EventAccountDeleted,
		OwnerID:   ownerID,
		AccountID: id,
		At:        s.now(),
	})
	return removed, nil
}

// Transfer books the outgoing and the incoming leg in one atomic unit.
func (s *AccountService) Transfer(ctx context.Context, ownerID string, req TransferRequest) ([2]core.Transaction, error) {
	var legs [2]core.Transaction
	if req.From == req.To {
		return legs, core.Invalid(ErrSameAccount)
	}
	if req.Amount.Cents <= 0 {
		return legs, core.Invalid(ErrTransferAmount)
	}
	date := req.Date
	if date.IsZero() {
		date = core.DateOf(s.now())
	}

	err := s.store.WithinTx(ctx, func(tx ports.LedgerTx) error {
		from, err := ownedAccount(ctx, tx, ownerID, req.From)
		if err != nil {
			return err
		}
		to, err := ownedAccount(ctx, tx, ownerID, req.To)
		if err != nil {
			return err
		}

		out := core.TransactionDraft{
			Description: fmt.Sprintf("Übertrag an %s", to.Name),
			Amount:      req.Amount.Neg(),
			Category:    core.DefaultCategoryKey,
			Date:        date,
			AccountID:   from.ID,
		}.Normalize()
		in := core.TransactionDraft{
			Description: fmt.Sprintf("Übertrag von %s", from.Name),
			Amount:      req.Amount,
			Category:    core.DefaultCategoryKey,
			Date:        date,
			AccountID:   to.ID,
		}.Normalize()

		if legs[0], err = book(ctx, tx, out.Transaction(ownerID)); err != nil {
			return err
		}
		legs[1], err = book(ctx, tx, in.Transaction(ownerID))
		return err
	})
	if err != nil {
		return [2]core.Transaction{}, core.StoreFailure(err)
	}

	for _, leg := range legs {
		s.emit(ctx, core.EventTransactionCreated, leg)
	}
	return legs, nil
}

func (s *AccountService) ListTypes(ctx context.Context, ownerID string) ([]core.AccountType, error) {
	out, err := s.types.ListAccountTypes(ctx, ownerID)
	if err != nil {
		return nil, core.StoreFailure(err)
	}
	return out, nil
}

// CreateType adds an owner entry to the account-type table. An empty id is
// replaced by a generated one.
func (s *AccountService) CreateType(ctx context.Context, ownerID string, t core.AccountType) (core.AccountType, error) {
	t.OwnerID = ownerID
	t.Label = strings.TrimSpace(t.Label)
	t.Emoji = strings.TrimSpace(t.Emoji)
	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := t.Validate(); err != nil {
		return core.AccountType{}, core.Invalid(err)
	}
	if err := s.types.CreateAccountType(ctx, t); err != nil {
		return core.AccountType{}, core.StoreFailure(err)
	}
	return t, nil
}

// DeleteType removes an owner account type that no account uses.
func (s *AccountService) DeleteType(ctx context.Context, ownerID, id string) error {
	accounts, err := s.store.ListAccounts(ctx, ownerID)
	if err != nil {
		return core.StoreFailure(err)
	}
	for _, a := range accounts {
		if a.Type == id {
			return core.Conflict("account type", id, ErrAccountTypeUsed)
		}
	}
	if err := s.types.DeleteAccountType(ctx, ownerID, id); err != nil {
		return core.StoreFailure(err)
	}
	return nil
}

func (s *AccountService) checkType(ctx context.Context, ownerID, typeID string) error {
	types, err := s.types.ListAccountTypes(ctx, ownerID)
	if err != nil {
		return core.StoreFailure(err)
	}
	for _, t := range types {
		if t.ID == typeID {
			return nil
		}
	}
	return core.Invalid(fmt.Errorf("%w: %q", ErrUnknownAccType, typeID))
}

func (s *AccountService) emit(ctx context.Context, typ core.EventType, t core.Transaction) {
	notify(ctx, s.notifier, core.LedgerEvent{
		Type:          typ,
		OwnerID:       t.OwnerID,
		TransactionID: t.ID,
		AccountID:     t.AccountID,
		Month:         t.Month,
		At:            s.now(),
	})
}
