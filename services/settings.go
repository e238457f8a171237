package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"study-companion/models"
	"study-companion/store"
)

// SettingsService reads the gamification config document, falling back to
// the bundled defaults while none has been seeded.
type SettingsService struct {
	store    store.Store
	defaults models.GamificationSettings
}

func NewSettingsService(s store.Store, defaults models.GamificationSettings) *SettingsService {
	return &SettingsService{store: s, defaults: defaults}
}

func (s *SettingsService) Load(ctx context.Context) (models.GamificationSettings, error) {
	doc, err := s.store.Get(ctx, store.GamificationConfig, store.SettingsDocID)
	if errors.Is(err, store.ErrNotFound) {
		return s.defaults, nil
	}
	if err != nil {
		return models.GamificationSettings{}, fmt.Errorf("%w: load gamification settings: %v", ErrStoreFailure, err)
	}
	var settings models.GamificationSettings
	if err := store.Decode(doc, &settings); err != nil {
		log.Printf("⚠️  [SYNC] stored gamification settings unreadable, using defaults: %v", err)
		return s.defaults, nil
	}
	settings.Normalize()
	return settings, nil
}

// Seed overwrites the stored settings with the bundled defaults.
func (s *SettingsService) Seed(ctx context.Context) (models.GamificationSettings, error) {
	doc, err := store.Encode(s.defaults)
	if err != nil {
		return models.GamificationSettings{}, err
	}
	if err := s.store.Replace(ctx, store.GamificationConfig, store.SettingsDocID, doc); err != nil {
		return models.GamificationSettings{}, fmt.Errorf("%w: seed gamification settings: %v", ErrStoreFailure, err)
	}
	log.Printf("✅ [SYNC] gamification settings seeded: %d badges, %d daily / %d weekly quest templates",
		len(s.defaults.Badges), len(s.defaults.Quests.Daily), len(s.defaults.Quests.Weekly))
	return s.defaults, nil
}
