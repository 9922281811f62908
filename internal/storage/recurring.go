package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"budgetplaner/internal/core"
)

const recurringColumns = `id, owner_id, description, amount_cents, category, interval, day_of_month,
	start_date, end_date, is_active, last_executed, notice_period, notes, history`

func scanRecurring(row rowScanner) (core.RecurringDefinition, error) {
	var (
		d            core.RecurringDefinition
		interval     string
		startDate    string
		endDate      sql.NullString
		lastExecuted sql.NullString
		history      string
	)
	if err := row.Scan(&d.ID, &d.OwnerID, &d.Description, &d.Amount.Cents, &d.Category, &interval, &d.DayOfMonth,
		&startDate, &endDate, &d.IsActive, &lastExecuted, &d.NoticePeriod, &d.Notes, &history); err != nil {
		return core.RecurringDefinition{}, err
	}
	d.Interval = core.Interval(interval)

	start, err := core.ParseDate(startDate)
	if err != nil {
		return core.RecurringDefinition{}, fmt.Errorf("recurring %s start date: %w", d.ID, err)
	}
	d.StartDate = start
	if endDate.Valid {
		end, err := core.ParseDate(endDate.String)
		if err != nil {
			return core.RecurringDefinition{}, fmt.Errorf("recurring %s end date: %w", d.ID, err)
		}
		d.EndDate = &end
	}
	if lastExecuted.Valid {
		at := parseTime(lastExecuted.String)
		d.LastExecuted = &at
	}
	d.History = []core.HistoryEntry{}
	if err := json.Unmarshal([]byte(history), &d.History); err != nil {
		return core.RecurringDefinition{}, fmt.Errorf("recurring %s history: %w", d.ID, err)
	}
	return d, nil
}

func encodeHistory(h []core.HistoryEntry) (string, error) {
	if h == nil {
		h = []core.HistoryEntry{}
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("encode history: %w", err)
	}
	return string(b), nil
}

func (q *Queries) GetRecurring(ctx context.Context, id string) (core.RecurringDefinition, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+recurringColumns+` FROM recurring_definitions WHERE id = ?`, id)
	d, err := scanRecurring(row)
	if err != nil {
		return core.RecurringDefinition{}, notFoundIfNoRows(err, "recurring definition", id)
	}
	return d, nil
}

func (q *Queries) ListRecurring(ctx context.Context, ownerID string) ([]core.RecurringDefinition, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_definitions WHERE owner_id = ? ORDER BY day_of_month, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list recurring: %w", err)
	}
	defer rows.Close()

	out := make([]core.RecurringDefinition, 0)
	for rows.Next() {
		d, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (q *Queries) ListRecurringOwners(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT DISTINCT owner_id FROM recurring_definitions WHERE is_active = 1 ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("list recurring owners: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (q *Queries) CreateRecurring(ctx context.Context, d core.RecurringDefinition) error {
	history, err := encodeHistory(d.History)
	if err != nil {
		return err
	}
	var lastExecuted sql.NullString
	if d.LastExecuted != nil {
		lastExecuted = sql.NullString{String: formatTime(*d.LastExecuted), Valid: true}
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO recurring_definitions (id, owner_id, description, amount_cents, category, interval, day_of_month,
			start_date, end_date, is_active, last_executed, notice_period, notes, history, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.OwnerID, d.Description, d.Amount.Cents, d.Category, string(d.Interval), d.DayOfMonth,
		d.StartDate.ISO(), nullDate(d.EndDate), d.IsActive, lastExecuted, d.NoticePeriod, d.Notes, history,
		formatTime(time.Now()))
	if isUniqueViolation(err) {
		return core.Conflict("recurring definition", d.ID, nil)
	}
	if err != nil {
		return fmt.Errorf("insert recurring: %w", err)
	}
	return nil
}

func (q *Queries) UpdateRecurring(ctx context.Context, d core.RecurringDefinition) error {
	history, err := encodeHistory(d.History)
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx, `
		UPDATE recurring_definitions
		SET description = ?, amount_cents = ?, category = ?, interval = ?, day_of_month = ?,
			start_date = ?, end_date = ?, is_active = ?, notice_period = ?, notes = ?, history = ?
		WHERE id = ?`,
		d.Description, d.Amount.Cents, d.Category, string(d.Interval), d.DayOfMonth,
		d.StartDate.ISO(), nullDate(d.EndDate), d.IsActive, d.NoticePeriod, d.Notes, history, d.ID)
	if err != nil {
		return fmt.Errorf("update recurring: %w", err)
	}
	return expectAffected(res, "recurring definition", d.ID)
}

func (q *Queries) DeleteRecurring(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM recurring_definitions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recurring: %w", err)
	}
	if err := expectAffected(res, "recurring definition", id); err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, `DELETE FROM recurring_occurrences WHERE definition_id = ?`, id); err != nil {
		return fmt.Errorf("delete recurring occurrences: %w", err)
	}
	return nil
}
