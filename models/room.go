package models

const (
	DefaultWorkMinutes  = 25
	DefaultBreakMinutes = 5
)

// Room is the `rooms/{id}` document. Messages live in a separate ordered collection.
type Room struct {
	Name         string     `json:"name"`
	Slug         string     `json:"slug,omitempty"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    string     `json:"created_at,omitempty"`
	Participants []string   `json:"participants"`
	Timer        TimerState `json:"timer"`
}

// Normalize fills defaults for a room decoded from storage.
func (r *Room) Normalize() {
	if r.Participants == nil {
		r.Participants = []string{}
	}
	r.Timer.Normalize()
}

// HasParticipant reports whether a display name is already listed.
func (r *Room) HasParticipant(name string) bool {
	for _, p := range r.Participants {
		if p == name {
			return true
		}
	}
	return false
}

// AddParticipant appends name unless present. Returns true when the list changed.
func (r *Room) AddParticipant(name string) bool {
	if r.HasParticipant(name) {
		return false
	}
	r.Participants = append(r.Participants, name)
	return true
}

// RemoveParticipant drops name if listed. Returns true when the list changed.
func (r *Room) RemoveParticipant(name string) bool {
	for i, p := range r.Participants {
		if p == name {
			r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
			return true
		}
	}
	return false
}

// TimerState is the shared Pomodoro timer of a room. TimeLeft is in seconds,
// the durations in minutes.
type TimerState struct {
	TimeLeft      int  `json:"timeLeft"`
	IsWorkSession bool `json:"isWorkSession"`
	IsRunning     bool `json:"isRunning"`
	WorkDuration  int  `json:"workDuration"`
	BreakDuration int  `json:"breakDuration"`
}

func DefaultTimerState() TimerState {
	return TimerState{
		TimeLeft:      DefaultWorkMinutes * 60,
		IsWorkSession: true,
		IsRunning:     false,
		WorkDuration:  DefaultWorkMinutes,
		BreakDuration: DefaultBreakMinutes,
	}
}

// Normalize repairs a zero-valued or partially written timer.
func (t *TimerState) Normalize() {
	if t.WorkDuration <= 0 && t.BreakDuration <= 0 && t.TimeLeft <= 0 && !t.IsRunning {
		*t = DefaultTimerState()
		return
	}
	if t.WorkDuration <= 0 {
		t.WorkDuration = DefaultWorkMinutes
	}
	if t.BreakDuration <= 0 {
		t.BreakDuration = DefaultBreakMinutes
	}
	if t.TimeLeft < 0 {
		t.TimeLeft = 0
	}
	if !t.IsRunning && t.TimeLeft == 0 {
		t.TimeLeft = t.FullDuration()
	}
}

// FullDuration is the length in seconds of the current session type.
func (t TimerState) FullDuration() int {
	if t.IsWorkSession {
		return t.WorkDuration * 60
	}
	return t.BreakDuration * 60
}

// TimerSnapshot is the payload of room_timer_update.
type TimerSnapshot struct {
	Room          string `json:"room"`
	IsRunning     bool   `json:"isRunning"`
	IsPaused      bool   `json:"isPaused"`
	IsWorkSession bool   `json:"isWorkSession"`
	TimeLeft      int    `json:"timeLeft"`
	WorkDuration  int    `json:"workDuration"`
	BreakDuration int    `json:"breakDuration"`
}

// Snapshot renders the broadcast form of the timer for roomID.
func (t TimerState) Snapshot(roomID string) TimerSnapshot {
	return TimerSnapshot{
		Room:          roomID,
		IsRunning:     t.IsRunning,
		IsPaused:      !t.IsRunning,
		IsWorkSession: t.IsWorkSession,
		TimeLeft:      t.TimeLeft,
		WorkDuration:  t.WorkDuration,
		BreakDuration: t.BreakDuration,
	}
}

// MessageTimeLayout is fixed-width so timestamps sort as strings.
const MessageTimeLayout = "2006-01-02T15:04:05.000000Z"

// RoomMessage is one entry of a room's chat log.
type RoomMessage struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}
