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
	"study-companion/utils"
)

var errInjected = errors.New("injected failure")

type fakeConn struct {
	id     string
	mu     sync.Mutex
	frames []realtime.Frame
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(f realtime.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

// events returns the payloads received for event, oldest first.
func (c *fakeConn) events(event string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []any
	for _, f := range c.frames {
		if f.Event == event {
			out = append(out, f.Data)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// flakyStore fails the selected operations and delegates the rest.
type flakyStore struct {
	store.Store
	mu             sync.Mutex
	failSet        bool
	failReplace    map[string]bool
	failAddMessage bool
	failDelete     bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: store.NewMemoryStore(), failReplace: map[string]bool{}}
}

func (f *flakyStore) Set(ctx context.Context, collection, id string, fields store.Document) error {
	f.mu.Lock()
	fail := f.failSet
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.Store.Set(ctx, collection, id, fields)
}

func (f *flakyStore) Replace(ctx context.Context, collection, id string, doc store.Document) error {
	f.mu.Lock()
	fail := f.failReplace[collection]
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.Store.Replace(ctx, collection, id, doc)
}

func (f *flakyStore) AddMessage(ctx context.Context, collection, parentID string, msg store.Document) error {
	if f.failAddMessage {
		return errInjected
	}
	return f.Store.AddMessage(ctx, collection, parentID, msg)
}

func (f *flakyStore) Delete(ctx context.Context, collection, id string) error {
	if f.failDelete {
		return errInjected
	}
	return f.Store.Delete(ctx, collection, id)
}

type roomFixture struct {
	store    store.Store
	hub      *realtime.Hub
	rooms    *RoomService
	timers   *TimerCoordinator
	conns    *ConnectionTable
	presence *PresenceService
	chat     *RoomChatService
}

func newRoomFixture(t *testing.T, s store.Store) *roomFixture {
	t.Helper()
	hub := realtime.NewHub()
	rooms := NewRoomService(s)
	timers := NewTimerCoordinator(rooms, hub, utils.NewTaskRegistry(), 5*time.Millisecond, time.Second)
	conns := NewConnectionTable()
	presence := NewPresenceService(rooms, timers, hub, conns, NewDisplayNameResolver(s, 16))
	t.Cleanup(func() { _ = timers.Shutdown(time.Second) })
	return &roomFixture{
		store:    s,
		hub:      hub,
		rooms:    rooms,
		timers:   timers,
		conns:    conns,
		presence: presence,
		chat:     NewRoomChatService(rooms, hub),
	}
}

// putRoom writes a room document directly.
func putRoom(t *testing.T, s store.Store, id string, room models.Room) {
	t.Helper()
	doc, err := store.Encode(room)
	if err != nil {
		t.Fatalf("encode room: %v", err)
	}
	if err := s.Replace(context.Background(), store.Rooms, id, doc); err != nil {
		t.Fatalf("put room: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
