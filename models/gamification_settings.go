package models

// GamificationSettings mirrors the gamification_config/settings document.
type GamificationSettings struct {
	XPValues XPValues                   `json:"xpValues" toml:"xpValues"`
	Leveling Leveling                   `json:"leveling" toml:"leveling"`
	Quests   QuestCatalog               `json:"quests" toml:"quests"`
	Badges   map[string]BadgeDefinition `json:"badges" toml:"badges"`
}

type XPValues struct {
	PerPomodoroWorkMinute int `json:"perPomodoroWorkMinute,omitempty" toml:"perPomodoroWorkMinute"`
	// PomodoroMinute is the key the seeded config document actually carries.
	PomodoroMinute      int `json:"pomodoroMinute,omitempty" toml:"pomodoroMinute"`
	TaskCompletion      int `json:"taskCompletion,omitempty" toml:"taskCompletion"`
	DailyLogin          int `json:"dailyLogin,omitempty" toml:"dailyLogin"`
	QuestCompletionBase int `json:"questCompletionBase,omitempty" toml:"questCompletionBase"`
}

type Leveling struct {
	BaseXPForLevelUp   int `json:"baseXpForLevelUp" toml:"baseXpForLevelUp"`
	XPIncreasePerLevel int `json:"xpIncreasePerLevel,omitempty" toml:"xpIncreasePerLevel"`
}

type QuestCatalog struct {
	Daily  []QuestTemplate `json:"daily" toml:"daily"`
	Weekly []QuestTemplate `json:"weekly" toml:"weekly"`
}

const (
	DefaultXPPerMinute      = 1
	DefaultBaseXPForLevelUp = 100
)

// XPPerMinute resolves the per-minute session reward across both key spellings.
func (s GamificationSettings) XPPerMinute() int {
	if s.XPValues.PerPomodoroWorkMinute != 0 {
		return s.XPValues.PerPomodoroWorkMinute
	}
	if s.XPValues.PomodoroMinute != 0 {
		return s.XPValues.PomodoroMinute
	}
	return DefaultXPPerMinute
}

// BaseXPForLevelUp defaults to 100 when the document leaves it unset.
func (s GamificationSettings) BaseXPForLevelUp() int {
	if s.Leveling.BaseXPForLevelUp == 0 {
		return DefaultBaseXPForLevelUp
	}
	return s.Leveling.BaseXPForLevelUp
}

// Normalize canonicalizes quest goal types after decoding.
func (s *GamificationSettings) Normalize() {
	for i := range s.Quests.Daily {
		s.Quests.Daily[i].GoalType = NormalizeGoalType(string(s.Quests.Daily[i].GoalType))
	}
	for i := range s.Quests.Weekly {
		s.Quests.Weekly[i].GoalType = NormalizeGoalType(string(s.Quests.Weekly[i].GoalType))
	}
	if s.Badges == nil {
		s.Badges = map[string]BadgeDefinition{}
	}
}

// Templates returns the template list for a frequency.
func (c QuestCatalog) Templates(f QuestFrequency) []QuestTemplate {
	switch f {
	case Daily:
		return c.Daily
	case Weekly:
		return c.Weekly
	}
	return nil
}
