package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"budgetplaner/internal/core"
)

const transactionColumns = `id, owner_id, description, amount_cents, category, date, month, account_id, recurring_id`

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t         core.Transaction
		date      string
		accountID sql.NullString
		recurring sql.NullString
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Description, &t.Amount.Cents, &t.Category, &date, &t.Month, &accountID, &recurring); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", t.ID, err)
	}
	t.Date = d
	t.AccountID = accountID.String
	t.RecurringID = recurring.String
	return t, nil
}

func (q *Queries) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFoundIfNoRows(err, "transaction", strconv.FormatInt(id, 10))
	}
	return t, nil
}

func (q *Queries) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO transactions (owner_id, description, amount_cents, category, date, month, account_id, recurring_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.OwnerID, t.Description, t.Amount.Cents, t.Category, t.Date.ISO(), t.Month,
		nullString(t.AccountID), nullString(t.RecurringID), formatTime(time.Now()))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction id: %w", err)
	}
	t.ID = id
	return t, nil
}

func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE transactions
		SET description = ?, amount_cents = ?, category = ?, date = ?, month = ?, account_id = ?
		WHERE id = ?`,
		t.Description, t.Amount.Cents, t.Category, t.Date.ISO(), t.Month, nullString(t.AccountID), t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return expectAffected(res, "transaction", strconv.FormatInt(t.ID, 10))
}

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectAffected(res, "transaction", strconv.FormatInt(id, 10))
}

// ListTransactions returns the owner's matching transactions, newest first.
func (q *Queries) ListTransactions(ctx context.Context, ownerID string, f core.TransactionFilter) ([]core.Transaction, error) {
	where := []string{"owner_id = ?"}
	args := []any{ownerID}
	if f.Month != "" {
		where = append(where, "month = ?")
		args = append(args, f.Month)
	}
	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if query := strings.TrimSpace(f.Query); query != "" {
		where = append(where, "(description LIKE ? ESCAPE '\\' OR category LIKE ? ESCAPE '\\')")
		pattern := "%" + escapeLike(query) + "%"
		args = append(args, pattern, pattern)
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE `+strings.Join(where, " AND ")+` ORDER BY date DESC, id DESC`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

const accountColumns = `id, owner_id, name, type, currency, color, balance_cents, created_at, updated_at`

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		a                  core.Account
		created, updatedAt string
	)
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Type, &a.Currency, &a.Color, &a.Balance.Cents, &created, &updatedAt); err != nil {
		return core.Account{}, err
	}
	a.CreatedAt = parseTime(created)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}

func (q *Queries) GetAccount(ctx context.Context, id string) (core.Account, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err != nil {
		return core.Account{}, notFoundIfNoRows(err, "account", id)
	}
	return a, nil
}

func (q *Queries) ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner_id = ? ORDER BY created_at, name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	out := make([]core.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *Queries) InsertAccount(ctx context.Context, a core.Account) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO accounts (id, owner_id, name, type, currency, color, balance_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.Name, a.Type, a.Currency, a.Color, a.Balance.Cents,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if isUniqueViolation(err) {
		return core.Conflict("account", a.ID, nil)
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// UpdateAccount stores descriptive fields. The balance column is only ever
// written by AdjustBalance.
func (q *Queries) UpdateAccount(ctx context.Context, a core.Account) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE accounts SET name = ?, type = ?, currency = ?, color = ?, updated_at = ?
		WHERE id = ?`,
		a.Name, a.Type, a.Currency, a.Color, formatTime(time.Now()), a.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return expectAffected(res, "account", a.ID)
}

func (q *Queries) AdjustBalance(ctx context.Context, accountID string, delta core.Money) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE accounts SET balance_cents = balance_cents + ?, updated_at = ?
		WHERE id = ?`,
		delta.Cents, formatTime(time.Now()), accountID)
	if err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	return expectAffected(res, "account", accountID)
}

func (q *Queries) DeleteAccount(ctx context.Context, id string) (int, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE account_id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete account transactions: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	res, err = q.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete account: %w", err)
	}
	if err := expectAffected(res, "account", id); err != nil {
		return 0, err
	}
	return int(removed), nil
}

func (q *Queries) ClaimOccurrence(ctx context.Context, definitionID, monthKey string, transactionID int64) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO recurring_occurrences (definition_id, month_key, transaction_id, created_at)
		VALUES (?, ?, ?, ?)`,
		definitionID, monthKey, transactionID, formatTime(time.Now()))
	if isUniqueViolation(err) {
		return core.Conflict("occurrence", definitionID+"/"+monthKey, nil)
	}
	if err != nil {
		return fmt.Errorf("claim occurrence: %w", err)
	}
	return nil
}

func (q *Queries) MarkExecuted(ctx context.Context, definitionID string, at time.Time) error {
	stamp := formatTime(at)
	res, err := q.db.ExecContext(ctx, `
		UPDATE recurring_definitions SET last_executed = ?
		WHERE id = ? AND (last_executed IS NULL OR last_executed < ?)`,
		stamp, definitionID, stamp)
	if err != nil {
		return fmt.Errorf("mark executed: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	// Nothing changed: either the marker is already newer or the row is gone.
	var exists int
	err = q.db.QueryRowContext(ctx, `SELECT 1 FROM recurring_definitions WHERE id = ?`, definitionID).Scan(&exists)
	return notFoundIfNoRows(err, "recurring definition", definitionID)
}
