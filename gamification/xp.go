// Package gamification holds the pure progression rules: XP, levels, streaks,
// badges, quests and the leaderboard projection. Nothing here touches storage
// or the clock; callers pass the time and the random source in.
package gamification

import "study-companion/models"

// CalculateSessionXP returns the XP a completed work session of durationMinutes is worth.
func CalculateSessionXP(durationMinutes int, settings models.GamificationSettings) int {
	if durationMinutes <= 0 {
		return 0
	}
	return durationMinutes * settings.XPPerMinute()
}

// ApplyLevelUps converts accumulated XP into levels. Reaching level L+1 from L
// costs L*baseXpForLevelUp, and that amount is subtracted from XP. A non-positive
// threshold stops the loop.
func ApplyLevelUps(p *models.UserProgress, settings models.GamificationSettings) bool {
	base := settings.BaseXPForLevelUp()
	if p.Level < 1 {
		p.Level = 1
	}
	need := p.Level * base
	if need <= 0 {
		return false
	}

	leveled := false
	for p.XP >= need {
		p.XP -= need
		p.Level++
		leveled = true
		need = p.Level * base
		if need <= 0 {
			break
		}
	}
	return leveled
}
