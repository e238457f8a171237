package gamification

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"study-companion/models"
)

// Sampler is the slice of math/rand/v2's *Rand the quest picker needs.
type Sampler interface {
	IntN(n int) int
}

type QuestEventType string

const (
	EventPomodoroCompleted QuestEventType = "pomodoro_session_completed"
	EventStudyTimeAdded    QuestEventType = "study_time_added"
)

// QuestEvent advances matching quests. Value is 1 per session or a number of minutes.
type QuestEvent struct {
	Type  QuestEventType
	Value float64
}

var questFrequencies = []models.QuestFrequency{models.Daily, models.Weekly}

// PeriodKey identifies the assignment period a quest belongs to. Daily periods
// are UTC dates; weekly periods are ISO weeks, so the last days of December can
// belong to week 1 of the next year.
func PeriodKey(f models.QuestFrequency, now time.Time) string {
	now = now.UTC()
	if f == models.Weekly {
		year, week := now.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	}
	return now.Format(DateLayout)
}

// NextPeriodStart is the expiry of a quest assigned at now: the next UTC midnight
// for daily quests, the next Monday 00:00 UTC for weekly ones (a week later when
// now is already a Monday).
func NextPeriodStart(f models.QuestFrequency, now time.Time) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if f == models.Weekly {
		days := (7 - (int(now.Weekday())+6)%7) % 7
		if days == 0 {
			days = 7
		}
		return midnight.AddDate(0, 0, days)
	}
	return midnight.AddDate(0, 0, 1)
}

// QuestID builds the deterministic id of a template's quest for the period containing now.
func QuestID(templateID string, f models.QuestFrequency, now time.Time) string {
	return templateID + "_" + PeriodKey(f, now)
}

// AssignDueQuests drops expired quests and gives the user one new quest for every
// frequency with no active quest. Templates whose quest for the current period
// already paid out are skipped. Returns the titles of the new quests.
func AssignDueQuests(p *models.UserProgress, settings models.GamificationSettings, now time.Time, rng Sampler) []string {
	now = now.UTC()
	active := make([]models.Quest, 0, len(p.ActiveQuests))
	for _, q := range p.ActiveQuests {
		if q.Status == models.QuestCompleted || q.Status == models.QuestExpired || q.Expired(now) {
			continue
		}
		active = append(active, q)
	}

	var titles []string
	for _, f := range questFrequencies {
		if hasQuestOfFrequency(active, f) {
			continue
		}
		var eligible []models.QuestTemplate
		for _, t := range settings.Quests.Templates(f) {
			if t.TargetMax <= 0 || p.HasCompletedQuest(QuestID(t.TemplateID, f, now)) {
				continue
			}
			eligible = append(eligible, t)
		}
		if len(eligible) == 0 {
			continue
		}

		t := eligible[rng.IntN(len(eligible))]
		lo, hi := t.TargetMin, t.TargetMax
		if lo > hi {
			lo, hi = hi, lo
		}
		if lo < 1 {
			lo = 1
		}
		target := lo + rng.IntN(hi-lo+1)

		q := models.Quest{
			QuestID:         QuestID(t.TemplateID, f, now),
			TemplateID:      t.TemplateID,
			Title:           t.Title,
			Description:     strings.ReplaceAll(t.DescriptionTemplate, "{N}", strconv.Itoa(target)),
			GoalType:        models.NormalizeGoalType(string(t.GoalType)),
			CurrentProgress: 0,
			TargetProgress:  float64(target),
			RewardXP:        t.RewardXP,
			AssignedDate:    now.Format(time.RFC3339),
			ExpiryDate:      NextPeriodStart(f, now).Format(time.RFC3339),
			Frequency:       f,
			Status:          models.QuestActive,
		}
		active = append(active, q)
		titles = append(titles, q.Title)
	}

	p.ActiveQuests = active
	return titles
}

func hasQuestOfFrequency(quests []models.Quest, f models.QuestFrequency) bool {
	for _, q := range quests {
		if q.Frequency == f {
			return true
		}
	}
	return false
}

// ApplyQuestEvent advances every active quest whose goal matches ev. A quest that
// reaches its target pays rewardXp once, is recorded in completedQuests and leaves
// the active list, as do expired quests. Returns the titles of completed quests.
func ApplyQuestEvent(p *models.UserProgress, ev QuestEvent, now time.Time) []string {
	now = now.UTC()
	kept := make([]models.Quest, 0, len(p.ActiveQuests))
	var titles []string

	for _, q := range p.ActiveQuests {
		if q.Status == models.QuestCompleted || q.Status == models.QuestExpired || q.Expired(now) {
			continue
		}

		advanced := advanceQuest(&q, ev)
		if advanced && q.CurrentProgress >= q.TargetProgress {
			q.Status = models.QuestCompleted
			if !p.HasCompletedQuest(q.QuestID) {
				p.XP += q.RewardXP
				p.CompletedQuestIDs = append(p.CompletedQuestIDs, q.QuestID)
				titles = append(titles, q.Title)
			}
			continue
		}
		kept = append(kept, q)
	}

	p.ActiveQuests = kept
	return titles
}

func advanceQuest(q *models.Quest, ev QuestEvent) bool {
	switch models.NormalizeGoalType(string(q.GoalType)) {
	case models.GoalPomodoroSessions:
		if ev.Type != EventPomodoroCompleted {
			return false
		}
		q.CurrentProgress = math.Min(q.CurrentProgress+ev.Value, q.TargetProgress)
	case models.GoalStudyMinutes:
		if ev.Type != EventStudyTimeAdded {
			return false
		}
		q.CurrentProgress = math.Min(q.CurrentProgress+ev.Value, q.TargetProgress)
	case models.GoalStudyHours:
		if ev.Type != EventStudyTimeAdded {
			return false
		}
		hours := math.Min(q.CurrentProgress+ev.Value/60, q.TargetProgress)
		q.CurrentProgress = math.Round(hours*100) / 100
	default:
		return false
	}
	return true
}
