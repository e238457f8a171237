package workers

import (
	"context"
	"log"

	"study-companion/services"
)

// RoomLister lists stored rooms.
type RoomLister interface {
	List(ctx context.Context) ([]services.RoomView, error)
}

// TimerResumer restarts the ticker of a room persisted as running.
type TimerResumer interface {
	Resume(ctx context.Context, roomID string) (bool, error)
}

// RecoverRoomTimers restarts the tickers of rooms whose timers were running
// when the previous process stopped. It returns how many were resumed.
func RecoverRoomTimers(ctx context.Context, rooms RoomLister, timers TimerResumer) (int, error) {
	views, err := rooms.List(ctx)
	if err != nil {
		return 0, err
	}
	resumed := 0
	for _, room := range views {
		if !room.Timer.IsRunning {
			continue
		}
		started, err := timers.Resume(ctx, room.ID)
		if err != nil {
			log.Printf("⚠️  [TIMER] could not resume timer of room %s: %v", room.ID, err)
			continue
		}
		if started {
			resumed++
		}
	}
	if resumed > 0 {
		log.Printf("🔁 [TIMER] resumed %d running room timers", resumed)
	}
	return resumed, nil
}
