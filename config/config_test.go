package config

import (
	"strings"
	"testing"
	"time"

	"study-companion/models"
)

func TestParseEnvDefaults(t *testing.T) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != "5200" || cfg.StoreDriver != "memory" {
		t.Fatalf("defaults: port=%q driver=%q", cfg.Port, cfg.StoreDriver)
	}
	if cfg.TimerTick != time.Second || cfg.SweepInterval != 5*time.Minute {
		t.Fatalf("durations: tick=%v sweep=%v", cfg.TimerTick, cfg.SweepInterval)
	}
}

func TestParseEnvOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("TIMER_TICK", "soon")
	var cfg Config
	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestValidateStoreDriver(t *testing.T) {
	cases := []struct {
		cfg     Config
		wantErr bool
	}{
		{Config{StoreDriver: "memory", TimerTick: time.Second}, false},
		{Config{StoreDriver: "mongo", TimerTick: time.Second}, true},
		{Config{StoreDriver: "mongo", MongoURI: "mongodb://localhost", TimerTick: time.Second}, false},
		{Config{StoreDriver: "postgres", TimerTick: time.Second}, true},
		{Config{StoreDriver: "firestore", TimerTick: time.Second}, true},
		{Config{StoreDriver: "memory"}, true},
	}
	for _, tc := range cases {
		if err := tc.cfg.validate(); (err != nil) != tc.wantErr {
			t.Fatalf("validate(%+v) err=%v, wantErr=%v", tc.cfg, err, tc.wantErr)
		}
	}
}

func TestDefaultGamificationSettings(t *testing.T) {
	s, err := DefaultGamificationSettings()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if s.XPPerMinute() != 1 || s.BaseXPForLevelUp() != 100 {
		t.Fatalf("xp=%d base=%d", s.XPPerMinute(), s.BaseXPForLevelUp())
	}
	if len(s.Quests.Daily) != 2 || len(s.Quests.Weekly) != 2 {
		t.Fatalf("quests: daily=%d weekly=%d", len(s.Quests.Daily), len(s.Quests.Weekly))
	}
	if s.Quests.Daily[0].GoalType != models.GoalPomodoroSessions || s.Quests.Daily[1].GoalType != models.GoalStudyMinutes {
		t.Fatalf("goal types not normalized: %+v", s.Quests.Daily)
	}
	if len(s.Badges) != 17 {
		t.Fatalf("badges = %d", len(s.Badges))
	}
	night := s.Badges["midnight_oil_burner"]
	if len(night.TargetHoursUTC) != 2 || night.TargetHoursUTC[0] != 22 || night.TargetHoursUTC[1] != 3 {
		t.Fatalf("midnight window = %v", night.TargetHoursUTC)
	}
	if first := s.Badges["first_steps"]; first.TargetCount == nil || *first.TargetCount != 1 {
		t.Fatalf("first_steps = %+v", first)
	}
}
