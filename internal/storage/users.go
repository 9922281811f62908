package storage

import (
	"context"
	"fmt"
	"strings"

	"budgetplaner/internal/core"
)

const userColumns = `id, name, email, password_hash, role, created_at`

func scanUser(row rowScanner) (core.User, error) {
	var (
		u       core.User
		role    string
		created string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &created); err != nil {
		return core.User{}, err
	}
	u.Role = core.Role(role)
	u.CreatedAt = parseTime(created)
	return u, nil
}

func (q *Queries) CreateUser(ctx context.Context, u core.User) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, strings.ToLower(u.Email), u.PasswordHash, string(u.Role), formatTime(u.CreatedAt))
	if isUniqueViolation(err) {
		return core.Conflict("user", u.Email, fmt.Errorf("email already registered"))
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (q *Queries) GetUser(ctx context.Context, id string) (core.User, error) {
	u, err := scanUser(q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return core.User{}, notFoundIfNoRows(err, "user", id)
	}
	return u, nil
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := scanUser(q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return core.User{}, notFoundIfNoRows(err, "user", email)
	}
	return u, nil
}

// ListUsers returns every user with account and transaction counts, newest
// first.
func (q *Queries) ListUsers(ctx context.Context) ([]core.UserSummary, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.email, u.password_hash, u.role, u.created_at,
			(SELECT COUNT(*) FROM accounts a WHERE a.owner_id = u.id),
			(SELECT COUNT(*) FROM transactions t WHERE t.owner_id = u.id)
		FROM users u
		ORDER BY u.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := make([]core.UserSummary, 0)
	for rows.Next() {
		var (
			s       core.UserSummary
			role    string
			created string
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.PasswordHash, &role, &created, &s.Accounts, &s.Transactions); err != nil {
			return nil, err
		}
		s.Role = core.Role(role)
		s.CreatedAt = parseTime(created)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *Queries) UpdateUserRole(ctx context.Context, id string, role core.Role) error {
	res, err := q.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, string(role), id)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	return expectAffected(res, "user", id)
}
