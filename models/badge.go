package models

type BadgeKind string

const (
	BadgeSessionCount  BadgeKind = "session_count"
	BadgePomodoroCount BadgeKind = "pomodoro_count" // same predicate as session_count
	BadgeStudyTime     BadgeKind = "study_time"
	BadgeStreak        BadgeKind = "streak"
	BadgeTimeOfDay     BadgeKind = "time_of_day"
)

// BadgeDefinition is static config, keyed by badge id in GamificationSettings.Badges.
// Only the threshold field matching Type is consulted; a missing threshold never awards.
type BadgeDefinition struct {
	Type           BadgeKind `json:"type" toml:"type"`
	Name           string    `json:"name" toml:"name"`
	Description    string    `json:"description" toml:"description"`
	Icon           string    `json:"icon" toml:"icon"`
	Color          string    `json:"color" toml:"color"`
	TextColor      string    `json:"textColor" toml:"textColor"`
	Tier           int       `json:"tier" toml:"tier"`
	TargetCount    *int      `json:"targetCount,omitempty" toml:"targetCount"`
	TargetMinutes  *int      `json:"targetMinutes,omitempty" toml:"targetMinutes"`
	TargetStreak   *int      `json:"targetStreak,omitempty" toml:"targetStreak"`
	TargetHoursUTC []int     `json:"targetHoursUTC,omitempty" toml:"targetHoursUTC"`
}
