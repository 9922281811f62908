package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"budgetplaner/internal/core"
	"budgetplaner/internal/ports"
)

var ErrCategoryInUse = errors.New("category is still referenced by transactions")

// CategoryService manages owner categories on top of the global defaults.
// Transactions reference categories weakly, so deleting one never touches
// the ledger.
type CategoryService struct {
	store    ports.CategoryStore
	notifier Notifier
	now      func() time.Time
}

func NewCategoryService(store ports.CategoryStore, notifier Notifier) *CategoryService {
	return &CategoryService{store: store, notifier: notifier, now: time.Now}
}

func (s *CategoryService) List(ctx context.Context, ownerID string) ([]core.Category, error) {
	out, err := s.store.ListCategories(ctx, ownerID)
	if err != nil {
		return nil, core.StoreFailure(err)
	}
	return out, nil
}

// Lookup returns the categories visible to the owner indexed by key.
func (s *CategoryService) Lookup(ctx context.Context, ownerID string) (core.CategoryMap, error) {
	list, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return core.NewCategoryMap(list), nil
}

// Create adds an owner category. When the key is empty the label is used.
func (s *CategoryService) Create(ctx context.Context, ownerID string, c core.Category) (core.Category, error) {
	c.OwnerID = ownerID
	c.Label = strings.TrimSpace(c.Label)
	c.Color = strings.TrimSpace(c.Color)
	c.Key = strings.TrimSpace(c.Key)
	if c.Key == "" {
		c.Key = c.Label
	}
	if c.Color == "" {
		c.Color = core.DefaultAccountColor
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, core.Invalid(err)
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, core.StoreFailure(err)
	}
	s.changed(ctx, ownerID)
	return c, nil
}

// Update edits an owner category. Editing a global category stores an
// owner copy that shadows it from then on.
func (s *CategoryService) Update(ctx context.Context, ownerID, key string, patch core.CategoryPatch) (core.Category, error) {
	existing, err := s.store.GetCategory(ctx, ownerID, key)
	if err != nil {
		return core.Category{}, core.StoreFailure(err)
	}

	next := patch.Apply(existing)
	next.Key = key
	if err := next.Validate(); err != nil {
		return core.Category{}, core.Invalid(err)
	}

	if existing.OwnerID == ownerID {
		err = s.store.UpdateCategory(ctx, next)
	} else {
		next.OwnerID = ownerID
		err = s.store.CreateCategory(ctx, next)
	}
	if err != nil {
		return core.Category{}, core.StoreFailure(err)
	}
	s.changed(ctx, ownerID)
	return next, nil
}

// Delete removes an owner category. A category still used by transactions
// is refused unless force is set; a global category of the same key keeps
// resolving those transactions, so it needs no confirmation.
func (s *CategoryService) Delete(ctx context.Context, ownerID, key string, force bool) error {
	existing, err := s.store.GetCategory(ctx, ownerID, key)
	if err != nil {
		return core.StoreFailure(err)
	}
	if existing.OwnerID != ownerID {
		return core.NotOwned("category", key)
	}

	if !force && !isGlobalCategory(key) {
		n, err := s.store.CountCategoryUsage(ctx, ownerID, key)
		if err != nil {
			return core.StoreFailure(err)
		}
		if n > 0 {
			return core.Conflict("category", key, ErrCategoryInUse)
		}
	}

	if err := s.store.DeleteCategory(ctx, ownerID, key); err != nil {
		return core.StoreFailure(err)
	}
	s.changed(ctx, ownerID)
	return nil
}

func (s *CategoryService) changed(ctx context.Context, ownerID string) {
	notify(ctx, s.notifier, core.LedgerEvent{
		Type:    core.EventCategoryChanged,
		OwnerID: ownerID,
		At:      s.now(),
	})
}

func isGlobalCategory(key string) bool {
	for _, c := range core.DefaultCategories {
		if c.Key == key {
			return true
		}
	}
	return false
}
