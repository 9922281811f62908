package services

import (
	"context"
	"fmt"
	"time"

	"budgetplaner/internal/core"
	"budgetplaner/internal/ports"

	"github.com/google/uuid"
)

// RecurringService manages recurring definitions. Edits of the watched
// fields are recorded in the definition's history, newest first.
type RecurringService struct {
	store ports.RecurringStore
	now   func() time.Time
}

func NewRecurringService(store ports.RecurringStore) *RecurringService {
	return &RecurringService{store: store, now: time.Now}
}

func (s *RecurringService) WithClock(now func() time.Time) *RecurringService {
	s.now = now
	return s
}

func (s *RecurringService) List(ctx context.Context, ownerID string) ([]core.RecurringDefinition, error) {
	out, err := s.store.ListRecurring(ctx, ownerID)
	if err != nil {
		return nil, core.StoreFailure(err)
	}
	return out, nil
}

func (s *RecurringService) Get(ctx context.Context, ownerID, id string) (core.RecurringDefinition, error) {
	d, err := s.store.GetRecurring(ctx, id)
	if err != nil {
		return core.RecurringDefinition{}, core.StoreFailure(err)
	}
	if d.OwnerID != ownerID {
		return core.RecurringDefinition{}, core.NotOwned("recurring", id)
	}
	return d, nil
}

// Create stores a new active definition with an empty history and no
// execution marker.
func (s *RecurringService) Create(ctx context.Context, ownerID string, draft core.RecurringDraft) (core.RecurringDefinition, error) {
	d := draft.Definition(uuid.NewString(), ownerID)
	if err := d.Validate(); err != nil {
		return core.RecurringDefinition{}, core.Invalid(err)
	}
	if err := s.store.CreateRecurring(ctx, d); err != nil {
		return core.RecurringDefinition{}, core.StoreFailure(err)
	}
	return d, nil
}

// Update applies patch. When a watched field changed, a history entry
// listing the changes is prepended and the history is cut to
// core.MaxHistoryEntries.
func (s *RecurringService) Update(ctx context.Context, ownerID, id string, patch core.RecurringPatch) (core.RecurringDefinition, error) {
	existing, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return core.RecurringDefinition{}, err
	}

	next := patch.Apply(existing)
	if err := next.Validate(); err != nil {
		return core.RecurringDefinition{}, core.Invalid(err)
	}

	if changes := DiffRecurring(existing, next); len(changes) > 0 {
		next.History = PrependHistory(existing.History, core.HistoryEntry{
			Date:    s.now(),
			Changes: changes,
		})
	}

	if err := s.store.UpdateRecurring(ctx, next); err != nil {
		return core.RecurringDefinition{}, core.StoreFailure(err)
	}
	return next, nil
}

// SetActive pauses or resumes a definition.
func (s *RecurringService) SetActive(ctx context.Context, ownerID, id string, active bool) (core.RecurringDefinition, error) {
	return s.Update(ctx, ownerID, id, core.RecurringPatch{IsActive: &active})
}

// Delete removes the definition. Transactions it produced stay in the
// ledger.
func (s *RecurringService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.store.DeleteRecurring(ctx, id); err != nil {
		return core.StoreFailure(err)
	}
	return nil
}

// DiffRecurring describes the changes of the watched fields between two
// versions of a definition.
func DiffRecurring(before, after core.RecurringDefinition) []string {
	var changes []string
	if before.Amount != after.Amount {
		changes = append(changes, fmt.Sprintf("Betrag: %s → %s",
			before.Amount.Format(core.DefaultCurrency), after.Amount.Format(core.DefaultCurrency)))
	}
	if before.Description != after.Description {
		changes = append(changes, fmt.Sprintf("Beschreibung: %s → %s", before.Description, after.Description))
	}
	if before.DayOfMonth != after.DayOfMonth {
		changes = append(changes, fmt.Sprintf("Tag: %d. → %d.", before.DayOfMonth, after.DayOfMonth))
	}
	if before.IsActive != after.IsActive {
		changes = append(changes, fmt.Sprintf("Status: %s → %s", activeLabel(before.IsActive), activeLabel(after.IsActive)))
	}
	return changes
}

func activeLabel(active bool) string {
	if active {
		return "aktiv"
	}
	return "pausiert"
}

// PrependHistory returns a new slice with e first, bounded to
// core.MaxHistoryEntries.
func PrependHistory(history []core.HistoryEntry, e core.HistoryEntry) []core.HistoryEntry {
	n := min(len(history)+1, core.MaxHistoryEntries)
	out := make([]core.HistoryEntry, 0, n)
	out = append(out, e)
	out = append(out, history[:n-1]...)
	return out
}
