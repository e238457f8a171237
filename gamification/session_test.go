package gamification

import (
	"reflect"
	"testing"
	"time"

	"study-companion/models"
)

func TestCompleteSessionFirstSession(t *testing.T) {
	settings := models.GamificationSettings{
		Leveling: models.Leveling{BaseXPForLevelUp: 100},
		Badges: map[string]models.BadgeDefinition{
			"first_steps": {Type: models.BadgeSessionCount, TargetCount: intPtr(1)},
		},
	}
	now := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	p := models.NewUserProgress()

	out := CompleteSession(&p, settings, 25, now)

	if out.XPEarned != 25 || p.XP != 25 || p.Level != 1 {
		t.Fatalf("xp earned=%d xp=%d level=%d", out.XPEarned, p.XP, p.Level)
	}
	if p.TotalStudyMinutes != 25 || p.SessionsCompleted != 1 || p.Streak != 1 {
		t.Fatalf("totals: minutes=%d sessions=%d streak=%d", p.TotalStudyMinutes, p.SessionsCompleted, p.Streak)
	}
	if !reflect.DeepEqual(out.NewBadges, []string{"first_steps"}) {
		t.Fatalf("new badges = %v", out.NewBadges)
	}
	if len(p.SessionHistory) != 1 || p.SessionHistory[0].XPEarned != 25 {
		t.Fatalf("history = %+v", p.SessionHistory)
	}
	if out.LeveledUp {
		t.Fatal("unexpected level up")
	}
}

func TestCompleteSessionQuestRewardCountsTowardLevel(t *testing.T) {
	settings := questSettings()
	settings.Leveling.BaseXPForLevelUp = 100
	now := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)

	p := models.NewUserProgress()
	p.XP = 60
	AssignDueQuests(&p, settings, now, fixedSampler(0))

	// 60 + 25 session xp + 30 quest reward = 115 >= 100
	out := CompleteSession(&p, settings, 25, now)
	if !out.LeveledUp || out.NewLevel != 2 || p.XP != 15 {
		t.Fatalf("leveled=%v level=%d xp=%d", out.LeveledUp, out.NewLevel, p.XP)
	}
	if !reflect.DeepEqual(out.CompletedQuests, []string{"Quick Focus"}) {
		t.Fatalf("completed = %v", out.CompletedQuests)
	}
}

func TestCompleteSessionZeroDurationStillCountsStreak(t *testing.T) {
	now := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	p := models.NewUserProgress()
	out := CompleteSession(&p, models.GamificationSettings{}, 0, now)
	if out.XPEarned != 0 || p.SessionsCompleted != 0 || p.Streak != 1 {
		t.Fatalf("xp=%d sessions=%d streak=%d", out.XPEarned, p.SessionsCompleted, p.Streak)
	}
}

func TestRecordSessionCapsHistory(t *testing.T) {
	p := models.NewUserProgress()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < models.SessionHistoryCap+5; i++ {
		p.RecordSession(models.SessionRecord{Type: "work", Duration: 25, Date: base.Add(time.Duration(i) * time.Hour).Format(time.RFC3339Nano)})
	}
	if len(p.SessionHistory) != models.SessionHistoryCap {
		t.Fatalf("history len = %d", len(p.SessionHistory))
	}
	newest := base.Add(time.Duration(models.SessionHistoryCap+4) * time.Hour).Format(time.RFC3339Nano)
	if p.SessionHistory[0].Date != newest {
		t.Fatalf("head = %s, want %s", p.SessionHistory[0].Date, newest)
	}
}

func TestProjectLeaderboard(t *testing.T) {
	p := models.NewUserProgress()
	p.XP, p.Streak, p.Level = 40, 5, 3
	got := ProjectLeaderboard("ada", p)
	want := models.LeaderboardProjection{Username: "ada", TotalXP: 40, CurrentStreak: 5, Level: 3}
	if got != want {
		t.Fatalf("projection = %+v", got)
	}
}

func TestRecordSessionOrdersFractionalSeconds(t *testing.T) {
	p := models.NewUserProgress()
	p.RecordSession(models.SessionRecord{Type: "work", Duration: 25, Date: "2026-03-11T09:00:05.5Z"})
	p.RecordSession(models.SessionRecord{Type: "work", Duration: 25, Date: "2026-03-11T09:00:05Z"})
	p.RecordSession(models.SessionRecord{Type: "work", Duration: 25, Date: "2026-03-11T09:00:05.25Z"})

	got := []string{p.SessionHistory[0].Date, p.SessionHistory[1].Date, p.SessionHistory[2].Date}
	want := []string{"2026-03-11T09:00:05.5Z", "2026-03-11T09:00:05.25Z", "2026-03-11T09:00:05Z"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestCompleteSessionExtendsStreakAndLevelsUp(t *testing.T) {
	settings := models.GamificationSettings{Leveling: models.Leveling{BaseXPForLevelUp: 100}}
	now := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	p := models.NewUserProgress()
	p.Level, p.XP, p.Streak = 1, 80, 2
	p.LastStudyDay = now.AddDate(0, 0, -1).Format(DateLayout)

	out := CompleteSession(&p, settings, 25, now)

	if p.Level != 2 || p.XP != 5 || p.Streak != 3 {
		t.Fatalf("level=%d xp=%d streak=%d, want 2/5/3", p.Level, p.XP, p.Streak)
	}
	if !out.LeveledUp || out.NewLevel != 2 || out.XPEarned != 25 {
		t.Fatalf("outcome = %+v", out)
	}
	if p.LastStudyDay != "2026-03-11" {
		t.Fatalf("lastStudyDay = %s", p.LastStudyDay)
	}
}
