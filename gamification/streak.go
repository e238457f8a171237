package gamification

import (
	"time"

	"study-companion/models"
)

// DateLayout is the UTC calendar-day format used for lastStudyDay.
const DateLayout = "2006-01-02"

// UpdateStreak records a study day. Studying again on the same UTC day keeps the
// streak, the next consecutive day extends it, anything else restarts it at 1.
func UpdateStreak(p *models.UserProgress, now time.Time) int {
	today := now.UTC().Format(DateLayout)

	switch {
	case p.LastStudyDay == today:
		if p.Streak < 1 {
			p.Streak = 1
		}
	case p.LastStudyDay == "":
		p.Streak = 1
	default:
		last, err := time.Parse(DateLayout, p.LastStudyDay)
		if err != nil {
			p.Streak = 1
			break
		}
		day, _ := time.Parse(DateLayout, today)
		if day.Sub(last) == 24*time.Hour {
			p.Streak++
		} else {
			p.Streak = 1
		}
	}

	p.LastStudyDay = today
	return p.Streak
}
