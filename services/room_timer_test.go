package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"study-companion/models"
	"study-companion/realtime"
	"study-companion/store"
)

func timerRoom(timer models.TimerState) models.Room {
	return models.Room{Name: "Focus", CreatedBy: "u1", Participants: []string{"Ann"}, Timer: timer}
}

func TestTimerStartTicksAndPauseStops(t *testing.T) {
	f := newRoomFixture(t, store.NewMemoryStore())
	ctx := context.Background()
	putRoom(t, f.store, "r1", timerRoom(models.DefaultTimerState()))

	viewer := newFakeConn("viewer")
	f.hub.Subscribe(viewer, "r1")

	if err := f.timers.Control(ctx, viewer, TimerControl{Room: "r1", Action: TimerStart}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !f.timers.Active("r1") {
		t.Fatal("expected a ticker after start")
	}
	waitFor(t, "three ticks", func() bool { return len(viewer.events(realtime.EventRoomTimerUpdate)) >= 4 })

	if err := f.timers.Control(ctx, viewer, TimerControl{Room: "r1", Action: TimerPause}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if f.timers.Active("r1") {
		t.Fatal("ticker still registered after pause returned")
	}
	state, err := f.rooms.TimerState(ctx, "r1")
	if err != nil {
		t.Fatalf("timer state: %v", err)
	}
	if state.IsRunning {
		t.Fatal("timer still running after pause")
	}
	if state.TimeLeft >= 25*60 {
		t.Fatalf("timeLeft = %d, expected it to have decreased", state.TimeLeft)
	}

	paused := state.TimeLeft
	viewer.reset()
	if err := f.timers.Control(ctx, viewer, TimerControl{Room: "r1", Action: TimerPause}); err != nil {
		t.Fatalf("second pause: %v", err)
	}
	state, _ = f.rooms.TimerState(ctx, "r1")
	if state.TimeLeft != paused {
		t.Fatalf("timeLeft moved while paused: %d -> %d", paused, state.TimeLeft)
	}
	snaps := viewer.events(realtime.EventRoomTimerUpdate)
	if len(snaps) != 1 || !snaps[0].(models.TimerSnapshot).IsPaused {
		t.Fatalf("pause should broadcast one paused snapshot, got %v", snaps)
	}
}

func TestTimerDoubleStartKeepsOneTicker(t *testing.T) {
	f := newRoomFixture(t, store.NewMemoryStore())
	ctx := context.Background()
	putRoom(t, f.store, "r1", timerRoom(models.DefaultTimerState()))

	for i := 0; i < 3; i++ {
		if err := f.timers.Control(ctx, nil, TimerControl{Room: "r1", Action: TimerStart}); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
	}
	if n := f.timers.tasks.Count(); n != 1 {
		t.Fatalf("tickers = %d, want 1", n)
	}
}

func TestTimerAutoSwitchStopsAtZero(t *testing.T) {
	f := newRoomFixture(t, store.NewMemoryStore())
	ctx := context.Background()
	timer := models.DefaultTimerState()
	timer.TimeLeft = 2
	putRoom(t, f.store, "r1", timerRoom(timer))

	viewer := newFakeConn("viewer")
	f.hub.Subscribe(viewer, "r1")
	if err := f.timers.Control(ctx, viewer, TimerControl{Room: "r1", Action: TimerStart}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "ticker exit", func() bool { return !f.timers.Active("r1") })

	state, err := f.rooms.TimerState(ctx, "r1")
	if err != nil {
		t.Fatalf("timer state: %v", err)
	}
	if state.IsRunning || state.IsWorkSession || state.TimeLeft != 5*60 {
		t.Fatalf("after switch: %+v", state)
	}
	snaps := viewer.events(realtime.EventRoomTimerUpdate)
	last := snaps[len(snaps)-1].(models.TimerSnapshot)
	if last.IsRunning || last.IsWorkSession || last.TimeLeft != 300 {
		t.Fatalf("last broadcast = %+v", last)
	}
}

// stallingConn holds up the first stopped snapshot it receives until release
// is closed, the way a slow socket holds up a broadcast.
type stallingConn struct {
	once    sync.Once
	stalled chan struct{}
	release chan struct{}
}

func (c *stallingConn) ID() string { return "stalling" }

func (c *stallingConn) Send(f realtime.Frame) error {
	snap, ok := f.Data.(models.TimerSnapshot)
	if !ok || snap.IsRunning {
		return nil
	}
	c.once.Do(func() {
		close(c.stalled)
		<-c.release
	})
	return nil
}

func TestTimerStartWhileSwitchBroadcastIsStalled(t *testing.T) {
	f := newRoomFixture(t, store.NewMemoryStore())
	ctx := context.Background()
	timer := models.DefaultTimerState()
	timer.TimeLeft = 1
	putRoom(t, f.store, "r1", timerRoom(timer))

	slow := &stallingConn{stalled: make(chan struct{}), release: make(chan struct{})}
	f.hub.Subscribe(slow, "r1")
	if err := f.timers.Control(ctx, nil, TimerControl{Room: "r1", Action: TimerStart}); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-slow.stalled:
	case <-time.After(2 * time.Second):
		t.Fatal("switch broadcast never reached the slow connection")
	}

	// the old ticker has saved isRunning=false but is still registered
	done := make(chan error, 1)
	go func() {
		done <- f.timers.Control(ctx, nil, TimerControl{Room: "r1", Action: TimerStart})
	}()
	waitFor(t, "start persisted", func() bool {
		state, err := f.rooms.TimerState(ctx, "r1")
		return err == nil && state.IsRunning
	})
	time.Sleep(20 * time.Millisecond)
	close(slow.release)
	if err := <-done; err != nil {
		t.Fatalf("second start: %v", err)
	}

	if !f.timers.Active("r1") {
		t.Fatal("room persisted as running without a ticker")
	}
	waitFor(t, "break countdown", func() bool {
		state, err := f.rooms.TimerState(ctx, "r1")
		return err == nil && state.TimeLeft < 5*60
	})
	if n := f.timers.tasks.Count(); n != 1 {
		t.Fatalf("tickers = %d, want 1", n)
	}
}

func TestTimerStartOnEmptyBreakSession(t *testing.T) {
	f := newRoomFixture(t, store.NewMemoryStore())
	ctx := context.Background()
	timer := models.TimerState{IsWorkSession: false, IsRunning: false, TimeLeft: 0, WorkDuration: 50, BreakDuration: 10}
	putRoom(t, f.store, "r1", timerRoom(timer))

	if err := f.timers.Control(ctx, nil, TimerControl{Room: "r1", Action: TimerStart}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.timers.Control(ctx, nil, TimerControl{Room: "r1", Action: TimerPause}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	state, _ := f.rooms.TimerState(ctx, "r1")
	if state.IsWorkSession || state.TimeLeft > 10*60 || state.TimeLeft < 10*60-5 {
		t.Fatalf("expected a fresh break session, got %+v", state)
	}
}

func TestTimerReset(t *testing.T) {
	f := newRoomFixture(t, store.NewMemoryStore())
	ctx := context.Background()
	timer := models.TimerState{IsWorkSession: false, IsRunning: false, TimeLeft: 42, WorkDuration: 40, BreakDuration: 10}
	putRoom(t, f.store, "r1", timerRoom(timer))

	if err := f.timers.Control(ctx, nil, TimerControl{Room: "r1", Action: TimerStart}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.timers.Control(ctx, nil, TimerControl{Room: "r1", Action: TimerReset}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if f.timers.Active("r1") {
		t.Fatal("ticker survived reset")
	}
	state, _ := f.rooms.TimerState(ctx, "r1")
	if state.IsRunning || !state.IsWorkSession || state.TimeLeft != 40*60 {
		t.Fatalf("after reset: %+v", state)
	}
}

func TestTimerDurationChange(t *testing.T) {
	cases := []struct {
		name      string
		work      any
		brk       any
		wantErr   bool
		wantWork  int
		wantBreak int
	}{
		{"numbers", float64(50), float64(10), false, 50, 10},
		{"numeric strings", "45", "15", false, 45, 15},
		{"zero", float64(0), float64(5), true, 25, 5},
		{"negative", float64(25), float64(-1), true, 25, 5},
		{"fraction", 25.5, float64(5), true, 25, 5},
		{"text", "soon", float64(5), true, 25, 5},
		{"missing", nil, float64(5), true, 25, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newRoomFixture(t, store.NewMemoryStore())
			ctx := context.Background()
			putRoom(t, f.store, "r1", timerRoom(models.DefaultTimerState()))
			requester := newFakeConn("req")
			other := newFakeConn("other")
			f.hub.Subscribe(requester, "r1")
			f.hub.Subscribe(other, "r1")

			err := f.timers.Control(ctx, requester, TimerControl{
				Room: "r1", Action: TimerDurationChange, WorkDuration: tc.work, BreakDuration: tc.brk,
			})
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			state, _ := f.rooms.TimerState(ctx, "r1")
			if state.WorkDuration != tc.wantWork || state.BreakDuration != tc.wantBreak {
				t.Fatalf("durations = %d/%d", state.WorkDuration, state.BreakDuration)
			}
			if tc.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected ErrValidation, got %v", err)
				}
				if len(requester.events(realtime.EventRoomTimerError)) != 1 {
					t.Fatal("requester did not get room_timer_error")
				}
				if len(other.events(realtime.EventRoomTimerError)) != 0 || len(other.events(realtime.EventRoomTimerUpdate)) != 0 {
					t.Fatal("rejected change leaked to other subscribers")
				}
				return
			}
			if state.TimeLeft != tc.wantWork*60 {
				t.Fatalf("stopped timer should reload timeLeft, got %d", state.TimeLeft)
			}
			if len(other.events(realtime.EventRoomTimerUpdate)) != 1 {
				t.Fatal("subscribers did not get the update")
			}
		})
	}
}

func TestTimerUnknownRoomAndAction(t *testing.T) {
	f := newRoomFixture(t, store.NewMemoryStore())
	ctx := context.Background()
	conn := newFakeConn("c")

	err := f.timers.Control(ctx, conn, TimerControl{Room: "missing", Action: TimerStart})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if f.timers.Active("missing") {
		t.Fatal("ticker started for a missing room")
	}

	putRoom(t, f.store, "r1", timerRoom(models.DefaultTimerState()))
	err = f.timers.Control(ctx, conn, TimerControl{Room: "r1", Action: "rewind"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if got := len(conn.events(realtime.EventRoomTimerError)); got != 2 {
		t.Fatalf("room_timer_error count = %d, want 2", got)
	}
}

func TestTimerTickerExitsWhenRoomDeleted(t *testing.T) {
	f := newRoomFixture(t, store.NewMemoryStore())
	ctx := context.Background()
	putRoom(t, f.store, "r1", timerRoom(models.DefaultTimerState()))

	if err := f.timers.Control(ctx, nil, TimerControl{Room: "r1", Action: TimerStart}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.store.Delete(ctx, store.Rooms, "r1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	waitFor(t, "ticker exit", func() bool { return !f.timers.Active("r1") })
}

func TestTimerResume(t *testing.T) {
	f := newRoomFixture(t, store.NewMemoryStore())
	ctx := context.Background()
	running := models.DefaultTimerState()
	running.IsRunning = true
	putRoom(t, f.store, "running", timerRoom(running))
	putRoom(t, f.store, "stopped", timerRoom(models.DefaultTimerState()))

	started, err := f.timers.Resume(ctx, "running")
	if err != nil || !started {
		t.Fatalf("resume running: started=%v err=%v", started, err)
	}
	started, err = f.timers.Resume(ctx, "running")
	if err != nil || started {
		t.Fatalf("second resume should be a no-op: started=%v err=%v", started, err)
	}
	started, err = f.timers.Resume(ctx, "stopped")
	if err != nil || started {
		t.Fatalf("resume stopped: started=%v err=%v", started, err)
	}
	if _, err := f.timers.Resume(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("resume missing: %v", err)
	}
}

func TestParseMinutes(t *testing.T) {
	cases := []struct {
		in   any
		want int
		ok   bool
	}{
		{float64(25), 25, true},
		{" 30 ", 30, true},
		{7, 7, true},
		{float64(0), 0, false},
		{1.5, 0, false},
		{"-3", 0, false},
		{true, 0, false},
	}
	for _, tc := range cases {
		got, ok := parseMinutes(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("parseMinutes(%v) = %d,%v want %d,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
