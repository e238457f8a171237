package gamification

import (
	"sort"

	"study-companion/models"
)

// EventContext describes what triggered a badge pass.
type EventContext struct {
	SessionCompleted bool
	CompletedHourUTC int
}

// EvaluateBadges awards every badge whose predicate now holds and that the user
// does not own yet. Awarded ids are added to p.Badges and returned in id order.
func EvaluateBadges(p *models.UserProgress, settings models.GamificationSettings, ev EventContext) []string {
	ids := make([]string, 0, len(settings.Badges))
	for id := range settings.Badges {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var awarded []string
	for _, id := range ids {
		if p.HasBadge(id) {
			continue
		}
		if meetsBadge(p, settings.Badges[id], ev) {
			p.Badges = append(p.Badges, id)
			awarded = append(awarded, id)
		}
	}
	return awarded
}

func meetsBadge(p *models.UserProgress, def models.BadgeDefinition, ev EventContext) bool {
	switch def.Type {
	case models.BadgeSessionCount, models.BadgePomodoroCount:
		return def.TargetCount != nil && p.SessionsCompleted >= *def.TargetCount
	case models.BadgeStudyTime:
		return def.TargetMinutes != nil && p.TotalStudyMinutes >= *def.TargetMinutes
	case models.BadgeStreak:
		return def.TargetStreak != nil && p.Streak >= *def.TargetStreak
	case models.BadgeTimeOfDay:
		if !ev.SessionCompleted || len(def.TargetHoursUTC) != 2 {
			return false
		}
		return InHourWindow(ev.CompletedHourUTC, def.TargetHoursUTC[0], def.TargetHoursUTC[1])
	}
	return false
}

// InHourWindow tests hour against [start, end). When start > end the window
// wraps past midnight. Hours outside 0..23 never match.
func InHourWindow(hour, start, end int) bool {
	if start < 0 || start > 23 || end < 0 || end > 23 || hour < 0 || hour > 23 {
		return false
	}
	if start <= end {
		return start <= hour && hour < end
	}
	return hour >= start || hour < end
}
