package models

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	// SessionHistoryCap bounds sessionHistory, newest entries win.
	SessionHistoryCap = 50
	// SessionHistoryRetention is how long a history entry survives a read.
	SessionHistoryRetention = 30 * 24 * time.Hour
)

// UserProgress is the gamified state of one user, stored under `progress` on the user document.
// Stored key names follow the documents already in the wild (total_time, sessions, completedQuests).
type UserProgress struct {
	Level             int             `json:"level"`
	XP                int             `json:"xp"`
	TotalStudyMinutes int             `json:"total_time"`
	SessionsCompleted int             `json:"sessions"`
	Streak            int             `json:"streak"`
	LastStudyDay      string          `json:"lastStudyDay,omitempty"` // YYYY-MM-DD, UTC
	Badges            BadgeList       `json:"badges"`
	ActiveQuests      []Quest         `json:"activeQuests"`
	CompletedQuestIDs []string        `json:"completedQuests"`
	SessionHistory    []SessionRecord `json:"sessionHistory"`
}

// SessionRecord is one completed work session.
type SessionRecord struct {
	Type     string `json:"type"`
	Duration int    `json:"duration"`
	Date     string `json:"date"` // RFC 3339, UTC
	XPEarned int    `json:"xp_earned"`
}

// NewUserProgress returns the progress every fresh account starts with.
func NewUserProgress() UserProgress {
	p := UserProgress{}
	p.Normalize()
	return p
}

// Normalize fills defaults for fields that older documents may lack.
func (p *UserProgress) Normalize() {
	if p.Level < 1 {
		p.Level = 1
	}
	if p.XP < 0 {
		p.XP = 0
	}
	if p.TotalStudyMinutes < 0 {
		p.TotalStudyMinutes = 0
	}
	if p.SessionsCompleted < 0 {
		p.SessionsCompleted = 0
	}
	if p.Streak < 0 {
		p.Streak = 0
	}
	if p.Badges == nil {
		p.Badges = BadgeList{}
	}
	if p.ActiveQuests == nil {
		p.ActiveQuests = []Quest{}
	}
	if p.CompletedQuestIDs == nil {
		p.CompletedQuestIDs = []string{}
	}
	if p.SessionHistory == nil {
		p.SessionHistory = []SessionRecord{}
	}
	for i := range p.ActiveQuests {
		p.ActiveQuests[i].GoalType = NormalizeGoalType(string(p.ActiveQuests[i].GoalType))
	}
}

// HasBadge reports whether the badge id is already owned.
func (p *UserProgress) HasBadge(id string) bool {
	for _, b := range p.Badges {
		if b == id {
			return true
		}
	}
	return false
}

// HasCompletedQuest reports whether the quest id has already paid out.
func (p *UserProgress) HasCompletedQuest(id string) bool {
	for _, q := range p.CompletedQuestIDs {
		if q == id {
			return true
		}
	}
	return false
}

// RecordSession prepends a history entry and enforces the cap.
func (p *UserProgress) RecordSession(rec SessionRecord) {
	p.SessionHistory = append(p.SessionHistory, rec)
	// RFC 3339 strings with fractional seconds do not sort lexically
	sort.SliceStable(p.SessionHistory, func(i, j int) bool {
		return sessionTime(p.SessionHistory[i]).After(sessionTime(p.SessionHistory[j]))
	})
	if len(p.SessionHistory) > SessionHistoryCap {
		p.SessionHistory = p.SessionHistory[:SessionHistoryCap]
	}
}

// sessionTime parses rec.Date; unparsable dates sort as the oldest.
func sessionTime(rec SessionRecord) time.Time {
	at, err := time.Parse(time.RFC3339Nano, rec.Date)
	if err != nil {
		return time.Time{}
	}
	return at
}

// PruneSessionHistory drops entries older than the retention window and unparsable ones.
func (p *UserProgress) PruneSessionHistory(now time.Time) {
	cutoff := now.Add(-SessionHistoryRetention)
	kept := make([]SessionRecord, 0, len(p.SessionHistory))
	for _, rec := range p.SessionHistory {
		at, err := time.Parse(time.RFC3339Nano, rec.Date)
		if err != nil {
			continue
		}
		if at.After(cutoff) {
			kept = append(kept, rec)
		}
	}
	p.SessionHistory = kept
}

// BadgeList is the set of owned badge ids. Legacy documents stored it as
// {"bronze": true, "silver": false}; those decode to the ids marked true.
type BadgeList []string

func (b *BadgeList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*b = list
		return nil
	}
	var legacy map[string]bool
	if err := json.Unmarshal(data, &legacy); err == nil {
		ids := make([]string, 0, len(legacy))
		for id, earned := range legacy {
			if earned {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		*b = ids
		return nil
	}
	*b = BadgeList{}
	return nil
}
