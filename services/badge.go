package services

import (
	"context"
	"sort"

	"study-companion/models"
)

// BadgeView is one badge as the profile page renders it.
type BadgeView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	TextColor   string `json:"textColor"`
	Tier        int    `json:"tier"`
	Earned      bool   `json:"earned"`
	// Current and Target are zero for time-of-day badges.
	Current int `json:"current"`
	Target  int `json:"target"`
}

type BadgeService struct {
	settings    *SettingsService
	progression *ProgressionService
}

func NewBadgeService(settings *SettingsService, progression *ProgressionService) *BadgeService {
	return &BadgeService{settings: settings, progression: progression}
}

// Catalog lists every configured badge with the user's standing toward it,
// ordered by type, tier and id.
func (s *BadgeService) Catalog(ctx context.Context, uid string) ([]BadgeView, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.progression.loadUser(ctx, uid)
	if err != nil {
		return nil, err
	}

	out := make([]BadgeView, 0, len(settings.Badges))
	for id, def := range settings.Badges {
		current, target := badgeThreshold(&user.Progress, def)
		out = append(out, BadgeView{
			ID:          id,
			Name:        def.Name,
			Description: def.Description,
			Icon:        def.Icon,
			Color:       def.Color,
			TextColor:   def.TextColor,
			Tier:        def.Tier,
			Earned:      user.Progress.HasBadge(id),
			Current:     current,
			Target:      target,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := settings.Badges[out[i].ID], settings.Badges[out[j].ID]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func badgeThreshold(p *models.UserProgress, def models.BadgeDefinition) (int, int) {
	deref := func(v *int) int {
		if v == nil {
			return 0
		}
		return *v
	}
	switch def.Type {
	case models.BadgeSessionCount, models.BadgePomodoroCount:
		return p.SessionsCompleted, deref(def.TargetCount)
	case models.BadgeStudyTime:
		return p.TotalStudyMinutes, deref(def.TargetMinutes)
	case models.BadgeStreak:
		return p.Streak, deref(def.TargetStreak)
	}
	return 0, 0
}
