package gamification

import (
	"time"

	"study-companion/models"
)

// SessionOutcome is what a completed session changed, for the sync response.
type SessionOutcome struct {
	XPEarned        int
	LeveledUp       bool
	NewLevel        int
	NewBadges       []string
	CompletedQuests []string
}

// CompleteSession applies a finished work session in a fixed order: session XP,
// totals and history, streak, quest events (session count, then minutes),
// level-ups, badges. Quest rewards land before the level pass so they count
// toward it, and badges see the final counters.
func CompleteSession(p *models.UserProgress, settings models.GamificationSettings, durationMinutes int, now time.Time) SessionOutcome {
	now = now.UTC()
	var out SessionOutcome

	if durationMinutes > 0 {
		out.XPEarned = CalculateSessionXP(durationMinutes, settings)
		p.XP += out.XPEarned
		p.TotalStudyMinutes += durationMinutes
		p.SessionsCompleted++
		p.RecordSession(models.SessionRecord{
			Type:     "work",
			Duration: durationMinutes,
			Date:     now.Format(time.RFC3339Nano),
			XPEarned: out.XPEarned,
		})
	}

	UpdateStreak(p, now)

	completed := ApplyQuestEvent(p, QuestEvent{Type: EventPomodoroCompleted, Value: 1}, now)
	if durationMinutes > 0 {
		completed = append(completed, ApplyQuestEvent(p, QuestEvent{Type: EventStudyTimeAdded, Value: float64(durationMinutes)}, now)...)
	}
	out.CompletedQuests = dedupe(completed)

	out.LeveledUp = ApplyLevelUps(p, settings)
	out.NewLevel = p.Level

	out.NewBadges = EvaluateBadges(p, settings, EventContext{
		SessionCompleted: true,
		CompletedHourUTC: now.Hour(),
	})
	return out
}

// ProjectLeaderboard derives the denormalized leaderboard row from progress.
func ProjectLeaderboard(username string, p models.UserProgress) models.LeaderboardProjection {
	return models.LeaderboardProjection{
		Username:      username,
		TotalXP:       p.XP,
		CurrentStreak: p.Streak,
		Level:         p.Level,
	}
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
