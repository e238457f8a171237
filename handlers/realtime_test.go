package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"study-companion/models"
	"study-companion/realtime"
	"study-companion/services"
	"study-companion/store"
	"study-companion/utils"
)

type capturedConn struct {
	id     string
	mu     sync.Mutex
	frames []realtime.Frame
}

func (c *capturedConn) ID() string { return c.id }

func (c *capturedConn) Send(f realtime.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *capturedConn) roomErrors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, f := range c.frames {
		if f.Event == realtime.EventRoomError {
			out = append(out, f.Data.(realtime.NoticePayload).Message)
		}
	}
	return out
}

func newRealtimeTestHandlers(t *testing.T) (*RealtimeHandlers, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	rooms := services.NewRoomService(s)
	hub := realtime.NewHub()
	timers := services.NewTimerCoordinator(rooms, hub, utils.NewTaskRegistry(), 5*time.Millisecond, time.Second)
	t.Cleanup(func() { _ = timers.Shutdown(time.Second) })
	presence := services.NewPresenceService(rooms, timers, hub, services.NewConnectionTable(), services.NewDisplayNameResolver(s, 16))
	return NewRealtimeHandlers(presence, services.NewRoomChatService(rooms, hub), timers), s
}

func TestRealtimeErrorsGoToSender(t *testing.T) {
	h, _ := newRealtimeTestHandlers(t)
	ctx := context.Background()

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"malformed frame", `{"event":`, "malformed message"},
		{"unknown event", `{"event":"dance","data":{}}`, "unknown event 'dance'"},
		{"bad payload", `{"event":"leave_room","data":"r1"}`, "malformed leave_room payload"},
		{"leave without room", `{"event":"leave_room","data":{}}`, "Room and user ID are required to leave."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := &capturedConn{id: "c1"}
			if !h.handleMessage(ctx, conn, "u1", "Ana", []byte(tc.raw)) {
				t.Fatal("connection should stay open")
			}
			got := conn.roomErrors()
			if len(got) != 1 || got[0] != tc.want {
				t.Fatalf("room_error = %v, want %q", got, tc.want)
			}
		})
	}
}

func TestRealtimeJoinUsesTokenIdentity(t *testing.T) {
	h, s := newRealtimeTestHandlers(t)
	ctx := context.Background()
	doc, err := store.Encode(models.Room{Name: "Focus", CreatedBy: "u9", Timer: models.DefaultTimerState()})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := s.Replace(ctx, store.Rooms, "r1", doc); err != nil {
		t.Fatalf("put room: %v", err)
	}

	conn := &capturedConn{id: "c1"}
	if !h.handleMessage(ctx, conn, "u1", "Ana", []byte(`{"event":"join_room","data":{"room":"r1","user_id":"someone-else"}}`)) {
		t.Fatal("join closed the connection")
	}
	got, err := s.Get(ctx, store.Rooms, "r1")
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	var room models.Room
	if err := store.Decode(got, &room); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(room.Participants) != 1 || room.Participants[0] != "Ana" {
		t.Fatalf("participants = %v", room.Participants)
	}

	if h.handleMessage(ctx, &capturedConn{id: "c2"}, "u2", "Bo", []byte(`{"event":"join_room","data":{"room":"nope"}}`)) {
		t.Fatal("join of a missing room should close the connection")
	}
}

// blockingWriter stalls every write until release is closed.
type blockingWriter struct {
	release chan struct{}
	mu      sync.Mutex
	written []realtime.Frame
	closed  bool
}

func (w *blockingWriter) SetWriteDeadline(time.Time) error { return nil }

func (w *blockingWriter) WriteJSON(v any) error {
	<-w.release
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("use of closed connection")
	}
	w.written = append(w.written, v.(realtime.Frame))
	return nil
}

func (w *blockingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestStalledSocketDoesNotBlockBroadcast(t *testing.T) {
	writer := &blockingWriter{release: make(chan struct{})}
	stalled := newWSConn("stalled", writer)
	go stalled.writeLoop()
	t.Cleanup(func() { close(writer.release) })
	fast := &capturedConn{id: "fast"}

	hub := realtime.NewHub()
	hub.Subscribe(stalled, "r1")
	hub.Subscribe(fast, "r1")

	start := time.Now()
	for i := 0; i < wsSendQueue+2; i++ {
		hub.Publish("r1", realtime.EventStatus, realtime.StatusPayload{Msg: "tick"})
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("publishing took %s behind a stalled socket", elapsed)
	}
	fast.mu.Lock()
	n := len(fast.frames)
	fast.mu.Unlock()
	if n != wsSendQueue+2 {
		t.Fatalf("fast subscriber got %d frames", n)
	}
	if err := stalled.Send(realtime.Frame{Event: realtime.EventStatus}); !errors.Is(err, errConnClosed) {
		t.Fatalf("overflowed connection should be closed, got %v", err)
	}
}

func TestCloseFlushesQueuedFrames(t *testing.T) {
	w := &blockingWriter{release: make(chan struct{})}
	close(w.release)
	conn := newWSConn("c1", w)

	_ = conn.Send(realtime.Frame{Event: realtime.EventJoinError})
	go conn.writeLoop()
	conn.closeAndFlush()

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.written) != 1 || w.written[0].Event != realtime.EventJoinError {
		t.Fatalf("written = %+v", w.written)
	}
}
