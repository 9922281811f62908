package services

import (
	"context"

	"budgetplaner/internal/core"
	"budgetplaner/internal/ports"
)

type SettingsService struct {
	store ports.SettingsStore
}

func NewSettingsService(store ports.SettingsStore) *SettingsService {
	return &SettingsService{store: store}
}

// Get returns the owner's settings, or the defaults when none were saved.
func (s *SettingsService) Get(ctx context.Context, ownerID string) (core.Settings, error) {
	st, ok, err := s.store.GetSettings(ctx, ownerID)
	if err != nil {
		return core.Settings{}, core.StoreFailure(err)
	}
	if !ok {
		return core.DefaultSettings(), nil
	}
	return st, nil
}

func (s *SettingsService) Update(ctx context.Context, ownerID string, patch core.SettingsPatch) (core.Settings, error) {
	current, err := s.Get(ctx, ownerID)
	if err != nil {
		return core.Settings{}, err
	}
	next := patch.Apply(current)
	if err := next.Validate(); err != nil {
		return core.Settings{}, core.Invalid(err)
	}
	if err := s.store.SaveSettings(ctx, ownerID, next); err != nil {
		return core.Settings{}, core.StoreFailure(err)
	}
	return next, nil
}
