package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"study-companion/models"
	"study-companion/services"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) SweepOrphans(ctx context.Context) (int, error) {
	s.calls.Add(1)
	return 1, s.err
}

func TestRoomSweepWorkerRunsImmediately(t *testing.T) {
	sweeper := &countingSweeper{}
	w := NewRoomSweepWorker(sweeper, time.Hour)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Shutdown()

	deadline := time.Now().Add(2 * time.Second)
	for sweeper.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweep never ran")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunOnceSkipsCancelledContext(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("boom")}
	w := NewRoomSweepWorker(sweeper, time.Minute)

	w.RunOnce(context.Background())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.RunOnce(ctx)

	if got := sweeper.calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	if err := NewRoomSweepWorker(&countingSweeper{}, 0).Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

type staticRooms []services.RoomView

func (r staticRooms) List(ctx context.Context) ([]services.RoomView, error) { return r, nil }

type recordingResumer struct {
	seen []string
	fail string
}

func (r *recordingResumer) Resume(ctx context.Context, roomID string) (bool, error) {
	r.seen = append(r.seen, roomID)
	if roomID == r.fail {
		return false, services.ErrNotFound
	}
	return roomID != "already", nil
}

func TestRecoverRoomTimers(t *testing.T) {
	running := models.DefaultTimerState()
	running.IsRunning = true
	rooms := staticRooms{
		{ID: "idle", Timer: models.DefaultTimerState()},
		{ID: "a", Timer: running},
		{ID: "already", Timer: running},
		{ID: "gone", Timer: running},
	}
	resumer := &recordingResumer{fail: "gone"}

	n, err := RecoverRoomTimers(context.Background(), rooms, resumer)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if n != 1 {
		t.Fatalf("resumed = %d, want 1", n)
	}
	if len(resumer.seen) != 3 || resumer.seen[0] != "a" {
		t.Fatalf("resumed rooms = %v", resumer.seen)
	}
}
