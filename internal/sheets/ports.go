package sheets

import (
	"context"

	"budgetplaner/internal/core"
)

// TransactionMirror keeps a spreadsheet copy of the ledger, one row per
// transaction keyed by its id.
type TransactionMirror interface {
	// UpsertTransaction rewrites the row of t, appending one if t was never
	// mirrored.
	UpsertTransaction(ctx context.Context, t core.Transaction, categoryLabel string) error
	// DeleteTransaction clears the row of id. Unknown ids are not an error.
	DeleteTransaction(ctx context.Context, id int64) error
	// DeleteAccountRows clears every row booked on accountID and returns how
	// many were cleared.
	DeleteAccountRows(ctx context.Context, accountID string) (int, error)
}
