package models

import (
	"strings"
	"time"
)

type GoalType string

const (
	GoalPomodoroSessions GoalType = "pomodoro_sessions"
	GoalStudyMinutes     GoalType = "study_time"
	GoalStudyHours       GoalType = "study_time_hours"
)

// NormalizeGoalType maps the event-style names used by older config documents onto goal types.
func NormalizeGoalType(raw string) GoalType {
	switch strings.TrimSpace(raw) {
	case "pomodoro_session_completed", "pomodoro_sessions":
		return GoalPomodoroSessions
	case "study_time_added", "study_time", "study_minutes":
		return GoalStudyMinutes
	case "study_time_hours", "study_hours":
		return GoalStudyHours
	}
	return GoalType(raw)
}

type QuestFrequency string

const (
	Daily  QuestFrequency = "daily"
	Weekly QuestFrequency = "weekly"
)

type QuestStatus string

const (
	QuestActive    QuestStatus = "active"
	QuestCompleted QuestStatus = "completed"
	QuestExpired   QuestStatus = "expired"
)

// Quest is an assigned, time-boxed goal.
type Quest struct {
	QuestID         string         `json:"questId"`
	TemplateID      string         `json:"templateId"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	GoalType        GoalType       `json:"goalType"`
	CurrentProgress float64        `json:"currentProgress"`
	TargetProgress  float64        `json:"targetProgress"`
	RewardXP        int            `json:"rewardXp"`
	AssignedDate    string         `json:"assignedDate"`
	ExpiryDate      string         `json:"expiryDate"`
	Frequency       QuestFrequency `json:"frequency"`
	Status          QuestStatus    `json:"status"`
}

// Expired reports whether now is at or past the quest's expiry. A missing or
// unreadable expiry counts as expired so the slot can be reassigned.
func (q Quest) Expired(now time.Time) bool {
	if q.ExpiryDate == "" {
		return true
	}
	exp, err := time.Parse(time.RFC3339Nano, q.ExpiryDate)
	if err != nil {
		return true
	}
	return !now.Before(exp)
}

// QuestTemplate is one entry of the quests.daily / quests.weekly config lists.
type QuestTemplate struct {
	TemplateID          string   `json:"templateId" toml:"templateId"`
	Title               string   `json:"title" toml:"title"`
	DescriptionTemplate string   `json:"descriptionTemplate" toml:"descriptionTemplate"`
	GoalType            GoalType `json:"goalType" toml:"goalType"`
	TargetMin           int      `json:"targetMin" toml:"targetMin"`
	TargetMax           int      `json:"targetMax" toml:"targetMax"`
	RewardXP            int      `json:"rewardXp" toml:"rewardXp"`
	Icon                string   `json:"icon,omitempty" toml:"icon"`
}
