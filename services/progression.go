package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"slices"
	"time"

	"study-companion/gamification"
	"study-companion/models"
	"study-companion/store"
	"study-companion/utils"
)

// Leaderboard kinds and the projection field each one orders by.
const (
	LeaderboardXP     = "xp"
	LeaderboardStreak = "streak"

	LeaderboardSize = 20

	EventSessionCompleted = "session_completed"
)

var leaderboardFields = map[string]string{
	LeaderboardXP:     "leaderboardData.totalXp",
	LeaderboardStreak: "leaderboardData.currentStreak",
}

type globalSampler struct{}

func (globalSampler) IntN(n int) int { return rand.IntN(n) }

type ProgressionService struct {
	store    store.Store
	settings *SettingsService
	locks    *utils.KeyedMutex
	rng      gamification.Sampler
	now      func() time.Time
}

func NewProgressionService(s store.Store, settings *SettingsService) *ProgressionService {
	return &ProgressionService{
		store:    s,
		settings: settings,
		locks:    utils.NewKeyedMutex(),
		rng:      globalSampler{},
		now:      time.Now,
	}
}

// SettingsView is the subset of the gamification config the client renders.
type SettingsView struct {
	Badges   map[string]models.BadgeDefinition `json:"badges"`
	Quests   models.QuestCatalog               `json:"quests"`
	Leveling models.Leveling                   `json:"leveling"`
}

// UserDataResponse is the body of GET /api/user_data.
type UserDataResponse struct {
	Username             string              `json:"username"`
	DisplayUsername      string              `json:"display_username"`
	AvatarURL            string              `json:"avatarUrl,omitempty"`
	Progress             models.UserProgress `json:"progress"`
	GamificationSettings SettingsView        `json:"gamification_settings"`
}

// SyncRequest is the body of POST /api/user_data.
type SyncRequest struct {
	Progress  map[string]any `json:"progress"`
	EventType string         `json:"event_type"`
	EventData struct {
		Duration float64 `json:"duration"`
	} `json:"event_data"`
}

// SyncResponse is the body returned after a sync.
type SyncResponse struct {
	Status          string              `json:"status"`
	Progress        models.UserProgress `json:"progress"`
	NewBadges       []string            `json:"new_badges,omitempty"`
	LeveledUpTo     int                 `json:"leveled_up_to,omitempty"`
	CompletedQuests []string            `json:"completed_quests,omitempty"`
	XPEarned        int                 `json:"xp_earned,omitempty"`
}

func (s *ProgressionService) loadUser(ctx context.Context, uid string) (models.UserDocument, error) {
	doc, err := s.store.Get(ctx, store.Users, uid)
	if errors.Is(err, store.ErrNotFound) {
		return models.UserDocument{}, fmt.Errorf("%w: user %s", ErrNotFound, uid)
	}
	if err != nil {
		return models.UserDocument{}, fmt.Errorf("%w: load user %s: %v", ErrStoreFailure, uid, err)
	}
	var user models.UserDocument
	if err := store.Decode(doc, &user); err != nil {
		return models.UserDocument{}, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	user.Normalize(uid)
	return user, nil
}

func (s *ProgressionService) saveProgress(ctx context.Context, uid string, user models.UserDocument) error {
	user.Leaderboard = gamification.ProjectLeaderboard(user.Username, user.Progress)
	patch, err := store.Fields(user, "progress", "leaderboardData")
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, store.Users, uid, patch); err != nil {
		return fmt.Errorf("%w: save progress of %s: %v", ErrStoreFailure, uid, err)
	}
	return nil
}

// EnsureProgressRecord returns the user's document, creating it when missing
// (idempotent).
func (s *ProgressionService) EnsureProgressRecord(ctx context.Context, uid, username string) (models.UserDocument, bool, error) {
	user, err := s.loadUser(ctx, uid)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.UserDocument{}, false, err
	}

	if username == "" {
		username = uid
	}
	user = models.UserDocument{
		Username:  username,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
		Progress:  models.NewUserProgress(),
	}
	user.Normalize(uid)
	user.Leaderboard = gamification.ProjectLeaderboard(user.Username, user.Progress)
	doc, err := store.Encode(user)
	if err != nil {
		return models.UserDocument{}, false, err
	}
	if err := s.store.Set(ctx, store.Users, uid, doc); err != nil {
		return models.UserDocument{}, false, fmt.Errorf("%w: create user %s: %v", ErrStoreFailure, uid, err)
	}
	log.Printf("✅ [SYNC] created progress record for %s", uid)
	return user, true, nil
}

// GetUserData loads (or creates) the user's progress, assigns any quests that
// are due and returns it with the settings the client needs.
func (s *ProgressionService) GetUserData(ctx context.Context, uid, username string) (UserDataResponse, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return UserDataResponse{}, err
	}

	unlock := s.locks.Lock(uid)
	defer unlock()

	user, _, err := s.EnsureProgressRecord(ctx, uid, username)
	if err != nil {
		return UserDataResponse{}, err
	}

	now := s.now().UTC()
	if assigned := gamification.AssignDueQuests(&user.Progress, settings, now, s.rng); len(assigned) > 0 {
		log.Printf("[SYNC] assigned quests to %s: %v", uid, assigned)
		if err := s.saveProgress(ctx, uid, user); err != nil {
			return UserDataResponse{}, err
		}
	}
	user.Progress.PruneSessionHistory(now)

	return UserDataResponse{
		Username:        uid,
		DisplayUsername: user.Username,
		AvatarURL:       user.AvatarURL,
		Progress:        user.Progress,
		GamificationSettings: SettingsView{
			Badges:   settings.Badges,
			Quests:   settings.Quests,
			Leveling: models.Leveling{BaseXPForLevelUp: settings.BaseXPForLevelUp(), XPIncreasePerLevel: settings.Leveling.XPIncreasePerLevel},
		},
	}, nil
}

// SyncUserData applies a client sync. Only session_completed changes server
// state through the gamification engine; any other sync keeps the server's
// values and logs where the client disagrees.
func (s *ProgressionService) SyncUserData(ctx context.Context, uid string, req SyncRequest) (SyncResponse, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return SyncResponse{}, err
	}

	unlock := s.locks.Lock(uid)
	defer unlock()

	user, err := s.loadUser(ctx, uid)
	if err != nil {
		return SyncResponse{}, err
	}

	resp := SyncResponse{Status: "success"}
	if req.EventType == EventSessionCompleted {
		minutes := int(req.EventData.Duration)
		if minutes < 0 {
			minutes = 0
		}
		out := gamification.CompleteSession(&user.Progress, settings, minutes, s.now())
		resp.NewBadges = out.NewBadges
		resp.CompletedQuests = out.CompletedQuests
		resp.XPEarned = out.XPEarned
		if out.LeveledUp {
			resp.LeveledUpTo = out.NewLevel
		}
		log.Printf("[SYNC] %s completed %dm session: +%d xp, level %d, badges=%v quests=%v",
			uid, minutes, out.XPEarned, user.Progress.Level, out.NewBadges, out.CompletedQuests)
	} else {
		logDivergence(uid, req.Progress, user.Progress)
	}

	if err := s.saveProgress(ctx, uid, user); err != nil {
		return SyncResponse{}, err
	}
	resp.Progress = user.Progress
	return resp, nil
}

func logDivergence(uid string, client map[string]any, server models.UserProgress) {
	if client == nil {
		return
	}
	if v, ok := client["xp"].(float64); ok && int(v) != server.XP {
		log.Printf("[SYNC] %s sent xp %v, server has %d; server value kept", uid, v, server.XP)
	}
	if v, ok := client["level"].(float64); ok && int(v) != server.Level {
		log.Printf("[SYNC] %s sent level %v, server has %d; server value kept", uid, v, server.Level)
	}
	if raw, ok := client["badges"].([]any); ok {
		sent := make([]string, 0, len(raw))
		for _, b := range raw {
			if id, isStr := b.(string); isStr {
				sent = append(sent, id)
			}
		}
		have := slices.Clone([]string(server.Badges))
		slices.Sort(sent)
		slices.Sort(have)
		if !slices.Equal(slices.Compact(sent), slices.Compact(have)) {
			log.Printf("[SYNC] %s sent badges %v; server badges kept", uid, sent)
		}
	}
	if _, ok := client["sessionHistory"]; ok {
		log.Printf("[SYNC] %s sent sessionHistory; server history kept", uid)
	}
}

// Leaderboard returns the top users by total XP or current streak.
func (s *ProgressionService) Leaderboard(ctx context.Context, kind string) ([]models.LeaderboardEntry, error) {
	field, ok := leaderboardFields[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown leaderboard %q", ErrValidation, kind)
	}
	snaps, err := s.store.TopN(ctx, store.Users, field, LeaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("%w: leaderboard query: %v", ErrStoreFailure, err)
	}

	out := make([]models.LeaderboardEntry, 0, len(snaps))
	for _, snap := range snaps {
		var user models.UserDocument
		if err := store.Decode(snap.Data, &user); err != nil {
			log.Printf("[SYNC] skipping unreadable user %s on leaderboard: %v", snap.ID, err)
			continue
		}
		lb := user.Leaderboard
		name := lb.Username
		if name == "" {
			name = user.Username
		}
		if name == "" {
			name = "N/A"
		}
		level := lb.Level
		if level == 0 {
			level = 1
		}
		out = append(out, models.LeaderboardEntry{
			Rank:     len(out) + 1,
			Username: name,
			XP:       lb.TotalXP,
			Streak:   lb.CurrentStreak,
			Level:    level,
		})
	}
	return out, nil
}
