// workers/room_sweep.go
package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// OrphanSweeper deletes rooms nobody is in anymore.
type OrphanSweeper interface {
	SweepOrphans(ctx context.Context) (int, error)
}

// RoomSweepWorker runs the orphaned room sweep on a fixed interval.
type RoomSweepWorker struct {
	sweeper  OrphanSweeper
	interval time.Duration
	sched    gocron.Scheduler
}

func NewRoomSweepWorker(sweeper OrphanSweeper, interval time.Duration) *RoomSweepWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &RoomSweepWorker{sweeper: sweeper, interval: interval}
}

// Start schedules the sweep, first run immediately. A run that is still busy
// when the next one is due makes that one wait.
func (w *RoomSweepWorker) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create sweep scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() { w.RunOnce(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule room sweep: %w", err)
	}
	sched.Start()
	w.sched = sched
	log.Printf("🔁 [SWEEP] orphaned room sweep every %s", w.interval)
	return nil
}

// RunOnce performs a single sweep and logs the outcome.
func (w *RoomSweepWorker) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	removed, err := w.sweeper.SweepOrphans(ctx)
	if err != nil {
		log.Printf("⚠️  [SWEEP] sweep finished with errors after removing %d rooms: %v", removed, err)
		return
	}
	if removed > 0 {
		log.Printf("✅ [SWEEP] removed %d orphaned rooms", removed)
	}
}

func (w *RoomSweepWorker) Shutdown() error {
	if w.sched == nil {
		return nil
	}
	return w.sched.Shutdown()
}
