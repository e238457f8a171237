package models

// UserDocument is the `users/{uid}` document.
type UserDocument struct {
	Username    string                `json:"username"`
	UsernameKey string                `json:"usernameKey,omitempty"`
	Email       string                `json:"email"`
	AvatarURL   string                `json:"avatarUrl,omitempty"`
	CreatedAt   string                `json:"created_at,omitempty"`
	Progress    UserProgress          `json:"progress"`
	Leaderboard LeaderboardProjection `json:"leaderboardData"`
}

// LeaderboardProjection is the denormalized row the leaderboard query orders on.
type LeaderboardProjection struct {
	Username      string `json:"username"`
	TotalXP       int    `json:"totalXp"`
	CurrentStreak int    `json:"currentStreak"`
	Level         int    `json:"level"`
}

// LeaderboardEntry is one ranked row of GET /api/leaderboard.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	XP       int    `json:"xp"`
	Streak   int    `json:"streak"`
	Level    int    `json:"level"`
}

// Normalize applies progress defaults and rebuilds a missing leaderboard projection.
func (u *UserDocument) Normalize(uid string) {
	u.Progress.Normalize()
	if u.Username == "" {
		u.Username = uid
	}
	if u.Leaderboard.Level == 0 {
		u.Leaderboard = LeaderboardProjection{
			Username:      u.Username,
			TotalXP:       u.Progress.XP,
			CurrentStreak: u.Progress.Streak,
			Level:         u.Progress.Level,
		}
	}
}
