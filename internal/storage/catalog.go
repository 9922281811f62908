package storage

import (
	"context"
	"database/sql"
	"fmt"

	"budgetplaner/internal/core"
)

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c     core.Category
		limit sql.NullInt64
	)
	if err := row.Scan(&c.OwnerID, &c.Key, &c.Label, &c.Color, &limit); err != nil {
		return core.Category{}, err
	}
	if limit.Valid {
		m := core.Cents(limit.Int64)
		c.BudgetLimit = &m
	}
	return c, nil
}

// ListCategories merges global and owner categories, owner entries winning.
func (q *Queries) ListCategories(ctx context.Context, ownerID string) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT owner_id, category_key, label, color, budget_limit_cents
		FROM categories WHERE owner_id = '' OR owner_id = ?
		ORDER BY owner_id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	merged := core.CategoryMap{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		merged[c.Key] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return merged.Categories(), nil
}

func (q *Queries) GetCategory(ctx context.Context, ownerID, key string) (core.Category, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT owner_id, category_key, label, color, budget_limit_cents
		FROM categories WHERE category_key = ? AND (owner_id = '' OR owner_id = ?)
		ORDER BY owner_id DESC LIMIT 1`, key, ownerID)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, notFoundIfNoRows(err, "category", key)
	}
	return c, nil
}

func (q *Queries) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO categories (owner_id, category_key, label, color, budget_limit_cents)
		VALUES (?, ?, ?, ?, ?)`,
		c.OwnerID, c.Key, c.Label, c.Color, nullMoney(c.BudgetLimit))
	if isUniqueViolation(err) {
		return core.Conflict("category", c.Key, fmt.Errorf("key already exists"))
	}
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (q *Queries) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE categories SET label = ?, color = ?, budget_limit_cents = ?
		WHERE owner_id = ? AND category_key = ?`,
		c.Label, c.Color, nullMoney(c.BudgetLimit), c.OwnerID, c.Key)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return expectAffected(res, "category", c.Key)
}

func (q *Queries) DeleteCategory(ctx context.Context, ownerID, key string) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM categories WHERE owner_id = ? AND category_key = ?`, ownerID, key)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return expectAffected(res, "category", key)
}

func (q *Queries) CountCategoryUsage(ctx context.Context, ownerID, key string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE owner_id = ? AND category = ?`, ownerID, key).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count category usage: %w", err)
	}
	return n, nil
}

func (q *Queries) ListAccountTypes(ctx context.Context, ownerID string) ([]core.AccountType, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT owner_id, id, label, emoji FROM account_types
		WHERE owner_id = '' OR owner_id = ?
		ORDER BY owner_id <> '', label`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list account types: %w", err)
	}
	defer rows.Close()

	out := make([]core.AccountType, 0)
	for rows.Next() {
		var t core.AccountType
		if err := rows.Scan(&t.OwnerID, &t.ID, &t.Label, &t.Emoji); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateAccountType refuses ids that collide with a global type as well as
// with the owner's own types.
func (q *Queries) CreateAccountType(ctx context.Context, t core.AccountType) error {
	var exists int
	err := q.db.QueryRowContext(ctx,
		`SELECT 1 FROM account_types WHERE owner_id = '' AND id = ?`, t.ID).Scan(&exists)
	if err == nil {
		return core.Conflict("account type", t.ID, nil)
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check account type: %w", err)
	}

	_, err = q.db.ExecContext(ctx,
		`INSERT INTO account_types (owner_id, id, label, emoji) VALUES (?, ?, ?, ?)`,
		t.OwnerID, t.ID, t.Label, t.Emoji)
	if isUniqueViolation(err) {
		return core.Conflict("account type", t.ID, nil)
	}
	if err != nil {
		return fmt.Errorf("insert account type: %w", err)
	}
	return nil
}

func (q *Queries) DeleteAccountType(ctx context.Context, ownerID, id string) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM account_types WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete account type: %w", err)
	}
	return expectAffected(res, "account type", id)
}

func (q *Queries) GetSettings(ctx context.Context, ownerID string) (core.Settings, bool, error) {
	var s core.Settings
	err := q.db.QueryRowContext(ctx, `
		SELECT currency, theme, notifications, budget_limit_cents
		FROM settings WHERE owner_id = ?`, ownerID).
		Scan(&s.Currency, &s.Theme, &s.Notifications, &s.BudgetLimit.Cents)
	if err == sql.ErrNoRows {
		return core.Settings{}, false, nil
	}
	if err != nil {
		return core.Settings{}, false, fmt.Errorf("get settings: %w", err)
	}
	return s, true, nil
}

func (q *Queries) SaveSettings(ctx context.Context, ownerID string, s core.Settings) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO settings (owner_id, currency, theme, notifications, budget_limit_cents)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			currency = excluded.currency,
			theme = excluded.theme,
			notifications = excluded.notifications,
			budget_limit_cents = excluded.budget_limit_cents`,
		ownerID, s.Currency, s.Theme, s.Notifications, s.BudgetLimit.Cents)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
