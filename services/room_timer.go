package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"study-companion/models"
	"study-companion/realtime"
	"study-companion/utils"
)

// Timer actions accepted by room_timer_control.
const (
	TimerStart          = "start"
	TimerPause          = "pause"
	TimerReset          = "reset"
	TimerDurationChange = "duration_change"
)

// TimerControl is the body of a room_timer_control event.
type TimerControl struct {
	Room          string `json:"room"`
	Action        string `json:"action"`
	UserID        string `json:"user_id"`
	WorkDuration  any    `json:"workDuration,omitempty"`
	BreakDuration any    `json:"breakDuration,omitempty"`
}

// TimerCoordinator keeps at most one ticking task per running room.
//
// Two lock layers are involved: control serializes whole transitions of a room
// (including waiting for its ticker to exit), while RoomService.Update guards a
// single read-modify-write of the document. Tickers only take the latter, so a
// transition can wait on a ticker without deadlocking.
type TimerCoordinator struct {
	rooms       *RoomService
	hub         *realtime.Hub
	tasks       *utils.TaskRegistry
	control     *utils.KeyedMutex
	tick        time.Duration
	stopTimeout time.Duration
}

func NewTimerCoordinator(rooms *RoomService, hub *realtime.Hub, tasks *utils.TaskRegistry, tick, stopTimeout time.Duration) *TimerCoordinator {
	if tick <= 0 {
		tick = time.Second
	}
	if stopTimeout <= 0 {
		stopTimeout = time.Second
	}
	return &TimerCoordinator{
		rooms:       rooms,
		hub:         hub,
		tasks:       tasks,
		control:     utils.NewKeyedMutex(),
		tick:        tick,
		stopTimeout: stopTimeout,
	}
}

func tickerName(roomID string) string {
	return "timer:" + roomID
}

// Control applies one timer action and broadcasts the resulting snapshot. Any
// rejection is reported to conn only.
func (c *TimerCoordinator) Control(ctx context.Context, conn realtime.Conn, req TimerControl) error {
	err := c.applyControl(ctx, req)
	if err != nil {
		log.Printf("[TIMER] %s on room %s rejected: %v", req.Action, req.Room, err)
		if conn != nil {
			_ = c.hub.PublishToOne(conn, realtime.EventRoomTimerError, realtime.NoticePayload{
				Room:    req.Room,
				Message: timerErrorMessage(req, err),
			})
		}
	}
	return err
}

func timerErrorMessage(req TimerControl, err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return notice(noticeRoomNotFound, req.Room)
	case errors.Is(err, ErrValidation) && req.Action == TimerDurationChange:
		return notice(noticeBadDuration)
	case errors.Is(err, ErrValidation):
		return notice(noticeUnknownAction, req.Action)
	}
	return err.Error()
}

func (c *TimerCoordinator) applyControl(ctx context.Context, req TimerControl) error {
	if req.Room == "" {
		return fmt.Errorf("%w: room is required", ErrValidation)
	}

	var work, brk int
	switch req.Action {
	case TimerStart, TimerPause, TimerReset:
	case TimerDurationChange:
		var okWork, okBreak bool
		work, okWork = parseMinutes(req.WorkDuration)
		brk, okBreak = parseMinutes(req.BreakDuration)
		if !okWork || !okBreak {
			return fmt.Errorf("%w: durations must be positive integers, got %v/%v", ErrValidation, req.WorkDuration, req.BreakDuration)
		}
	default:
		return fmt.Errorf("%w: unknown timer action %q", ErrValidation, req.Action)
	}

	unlock := c.control.Lock(req.Room)
	defer unlock()

	if req.Action == TimerReset {
		c.stopTicker(req.Room)
	}

	started := false
	room, err := c.rooms.Update(ctx, req.Room, func(r *models.Room) ([]string, error) {
		t := &r.Timer
		switch req.Action {
		case TimerStart:
			if !t.IsRunning {
				t.IsRunning = true
				started = true
				if t.TimeLeft <= 0 {
					t.TimeLeft = t.FullDuration()
				}
			}
		case TimerPause:
			t.IsRunning = false
		case TimerReset:
			t.IsRunning = false
			t.IsWorkSession = true
			t.TimeLeft = t.WorkDuration * 60
		case TimerDurationChange:
			t.WorkDuration = work
			t.BreakDuration = brk
			if !t.IsRunning {
				t.TimeLeft = t.FullDuration()
			}
		}
		return []string{"timer"}, nil
	})
	if err != nil {
		return err
	}

	// A ticker that just auto-switched stays registered until its last
	// broadcast returns, so a fresh start always replaces whatever is there.
	switch {
	case req.Action == TimerPause:
		c.stopTicker(req.Room)
	case started:
		c.startTicker(req.Room)
	case room.Timer.IsRunning && !c.tasks.Running(tickerName(req.Room)):
		c.startTicker(req.Room)
	}

	log.Printf("[TIMER] room %s %s by %s: running=%v work=%v left=%ds",
		req.Room, req.Action, req.UserID, room.Timer.IsRunning, room.Timer.IsWorkSession, room.Timer.TimeLeft)
	c.hub.Publish(req.Room, realtime.EventRoomTimerUpdate, room.Timer.Snapshot(req.Room))
	return nil
}

// parseMinutes accepts a JSON number or numeric string holding a positive integer.
func parseMinutes(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n < 1 || n != math.Trunc(n) || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case int:
		return n, n > 0
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || i <= 0 {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

func (c *TimerCoordinator) startTicker(roomID string) {
	c.tasks.Start(tickerName(roomID), c.stopTimeout, func(ctx context.Context) {
		c.runTicker(ctx, roomID)
	})
}

func (c *TimerCoordinator) stopTicker(roomID string) {
	c.tasks.Stop(tickerName(roomID), c.stopTimeout)
}

// runTicker decrements the persisted timer once per tick until the room stops
// running, the session ends, the room vanishes or ctx is cancelled.
func (c *TimerCoordinator) runTicker(ctx context.Context, roomID string) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	log.Printf("[TIMER] ticker started for room %s", roomID)
	defer log.Printf("[TIMER] ticker stopped for room %s", roomID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return
		}

		done := false
		changed := false
		room, err := c.rooms.Update(ctx, roomID, func(r *models.Room) ([]string, error) {
			t := &r.Timer
			if !t.IsRunning {
				done = true
				return nil, nil
			}
			t.TimeLeft--
			if t.TimeLeft <= 0 {
				t.IsWorkSession = !t.IsWorkSession
				t.TimeLeft = t.FullDuration()
				t.IsRunning = false
				done = true
			}
			changed = true
			return []string{"timer"}, nil
		})
		if err != nil {
			if !errors.Is(err, ErrNotFound) && ctx.Err() == nil {
				log.Printf("❌ [TIMER] tick for room %s failed: %v", roomID, err)
			}
			return
		}
		if changed {
			c.hub.Publish(roomID, realtime.EventRoomTimerUpdate, room.Timer.Snapshot(roomID))
		}
		if done {
			return
		}
	}
}

// Snapshot returns the current timer of roomID in broadcast form.
func (c *TimerCoordinator) Snapshot(ctx context.Context, roomID string) (models.TimerSnapshot, error) {
	t, err := c.rooms.TimerState(ctx, roomID)
	if err != nil {
		return models.TimerSnapshot{}, err
	}
	return t.Snapshot(roomID), nil
}

// Resume restarts the ticker of a room persisted as running, e.g. after a
// process restart. It reports whether a ticker was started.
func (c *TimerCoordinator) Resume(ctx context.Context, roomID string) (bool, error) {
	unlock := c.control.Lock(roomID)
	defer unlock()

	t, err := c.rooms.TimerState(ctx, roomID)
	if err != nil {
		return false, err
	}
	if !t.IsRunning || c.tasks.Running(tickerName(roomID)) {
		return false, nil
	}
	c.startTicker(roomID)
	return true, nil
}

// Halt stops the ticker of a room that is about to be deleted.
func (c *TimerCoordinator) Halt(roomID string) {
	unlock := c.control.Lock(roomID)
	defer unlock()
	c.stopTicker(roomID)
}

// Active reports whether roomID has a live ticker.
func (c *TimerCoordinator) Active(roomID string) bool {
	return c.tasks.Running(tickerName(roomID))
}

// Shutdown stops every ticker, waiting up to timeout.
func (c *TimerCoordinator) Shutdown(timeout time.Duration) error {
	return c.tasks.Shutdown(timeout)
}
