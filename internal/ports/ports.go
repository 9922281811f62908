// Package ports declares the persistence boundaries the services depend on.
// internal/storage and internal/storage/memory implement them.
package ports

import (
	"context"
	"time"

	"budgetplaner/internal/core"
)

// LedgerTx is the view of the store inside one atomic unit. Every write
// made through it commits together or not at all.
//
// Lookups return core.ErrNotFound rejections for missing rows and never
// check ownership; that is the caller's job.
type LedgerTx interface {
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error

	GetAccount(ctx context.Context, id string) (core.Account, error)
	InsertAccount(ctx context.Context, a core.Account) error
	UpdateAccount(ctx context.Context, a core.Account) error
	// AdjustBalance adds delta to the cached balance of the account.
	AdjustBalance(ctx context.Context, accountID string, delta core.Money) error
	// DeleteAccount removes the account and every transaction referencing it.
	DeleteAccount(ctx context.Context, id string) (removed int, err error)

	// ClaimOccurrence records that a definition materialized in a month. A
	// second claim for the same pair fails with a core.ErrConflict rejection.
	ClaimOccurrence(ctx context.Context, definitionID, monthKey string, transactionID int64) error
	// MarkExecuted moves the definition's execution marker forward to at.
	// An older at leaves the marker unchanged.
	MarkExecuted(ctx context.Context, definitionID string, at time.Time) error
}

type LedgerStore interface {
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error

	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context, ownerID string, f core.TransactionFilter) ([]core.Transaction, error)
	GetAccount(ctx context.Context, id string) (core.Account, error)
	ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error)
}

type RecurringStore interface {
	GetRecurring(ctx context.Context, id string) (core.RecurringDefinition, error)
	ListRecurring(ctx context.Context, ownerID string) ([]core.RecurringDefinition, error)
	// ListRecurringOwners returns the owners with at least one active definition.
	ListRecurringOwners(ctx context.Context) ([]string, error)
	CreateRecurring(ctx context.Context, d core.RecurringDefinition) error
	// UpdateRecurring stores user fields and history. It never touches the
	// execution marker.
	UpdateRecurring(ctx context.Context, d core.RecurringDefinition) error
	DeleteRecurring(ctx context.Context, id string) error
}

// CategoryStore resolves global categories (no owner) and per-owner
// categories; an owner category shadows a global one with the same key.
type CategoryStore interface {
	ListCategories(ctx context.Context, ownerID string) ([]core.Category, error)
	GetCategory(ctx context.Context, ownerID, key string) (core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) error
	UpdateCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, ownerID, key string) error
	CountCategoryUsage(ctx context.Context, ownerID, key string) (int, error)
}

type AccountTypeStore interface {
	ListAccountTypes(ctx context.Context, ownerID string) ([]core.AccountType, error)
	CreateAccountType(ctx context.Context, t core.AccountType) error
	DeleteAccountType(ctx context.Context, ownerID, id string) error
}

type SettingsStore interface {
	// GetSettings reports false when the owner never saved settings.
	GetSettings(ctx context.Context, ownerID string) (core.Settings, bool, error)
	SaveSettings(ctx context.Context, ownerID string, s core.Settings) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u core.User) error
	GetUser(ctx context.Context, id string) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	ListUsers(ctx context.Context) ([]core.UserSummary, error)
	UpdateUserRole(ctx context.Context, id string, role core.Role) error
}

// Store is everything a backend provides.
type Store interface {
	LedgerStore
	RecurringStore
	CategoryStore
	AccountTypeStore
	SettingsStore
	UserStore
	Close() error
}
