package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/sahilm/fuzzy"

	"study-companion/models"
	"study-companion/store"
	"study-companion/utils"
)

const (
	maxRoomNameLength = 80
	roomSearchLimit   = 20
)

// RoomService owns the `rooms` collection. Every read-modify-write of a room
// document goes through Update, which serializes writers per room id.
type RoomService struct {
	store store.Store
	locks *utils.KeyedMutex
}

func NewRoomService(s store.Store) *RoomService {
	return &RoomService{store: s, locks: utils.NewKeyedMutex()}
}

// RoomView is the REST shape of a room.
type RoomView struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Slug         string            `json:"slug"`
	CreatedBy    string            `json:"created_by"`
	CreatedAt    string            `json:"created_at,omitempty"`
	Participants []string          `json:"participants"`
	Timer        models.TimerState `json:"timer"`
}

func roomView(id string, r models.Room) RoomView {
	return RoomView{
		ID:           id,
		Name:         r.Name,
		Slug:         r.Slug,
		CreatedBy:    r.CreatedBy,
		CreatedAt:    r.CreatedAt,
		Participants: r.Participants,
		Timer:        r.Timer,
	}
}

// CreateRoom stores a new room with the creator as first participant and a
// stopped default timer.
func (s *RoomService) CreateRoom(ctx context.Context, creatorID, creatorName, name string) (RoomView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return RoomView{}, fmt.Errorf("%w: room name is required", ErrValidation)
	}
	if len([]rune(name)) > maxRoomNameLength {
		return RoomView{}, fmt.Errorf("%w: room name is longer than %d characters", ErrValidation, maxRoomNameLength)
	}
	if creatorName == "" {
		creatorName = creatorID
	}

	id := uuid.NewString()[:8]
	room := models.Room{
		Name:         name,
		Slug:         slug.Make(name),
		CreatedBy:    creatorID,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		Participants: []string{creatorName},
		Timer:        models.DefaultTimerState(),
	}
	doc, err := store.Encode(room)
	if err != nil {
		return RoomView{}, err
	}
	if err := s.store.Replace(ctx, store.Rooms, id, doc); err != nil {
		return RoomView{}, fmt.Errorf("%w: create room: %v", ErrStoreFailure, err)
	}
	log.Printf("✅ [ROOM] %s created room %s (%q)", creatorID, id, name)
	return roomView(id, room), nil
}

// GetRoom loads and normalizes a room. Missing rooms yield ErrNotFound.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	doc, err := s.store.Get(ctx, store.Rooms, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Room{}, fmt.Errorf("%w: room %s", ErrNotFound, roomID)
	}
	if err != nil {
		return models.Room{}, fmt.Errorf("%w: load room %s: %v", ErrStoreFailure, roomID, err)
	}
	var room models.Room
	if err := store.Decode(doc, &room); err != nil {
		return models.Room{}, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	room.Normalize()
	return room, nil
}

func (s *RoomService) View(ctx context.Context, roomID string) (RoomView, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return RoomView{}, err
	}
	return roomView(roomID, room), nil
}

// Update runs fn on the current room under the room's lock and writes back the
// top-level fields fn names. Returning no fields skips the write.
func (s *RoomService) Update(ctx context.Context, roomID string, fn func(room *models.Room) ([]string, error)) (models.Room, error) {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return models.Room{}, err
	}
	fields, err := fn(&room)
	if err != nil {
		return models.Room{}, err
	}
	if len(fields) == 0 {
		return room, nil
	}
	patch, err := store.Fields(room, fields...)
	if err != nil {
		return models.Room{}, err
	}
	if err := s.store.Set(ctx, store.Rooms, roomID, patch); err != nil {
		return models.Room{}, fmt.Errorf("%w: update room %s: %v", ErrStoreFailure, roomID, err)
	}
	return room, nil
}

// DeleteRoom removes the room and its message log.
func (s *RoomService) DeleteRoom(ctx context.Context, roomID string) error {
	if err := s.store.Delete(ctx, store.Rooms, roomID); err != nil {
		return fmt.Errorf("%w: delete room %s: %v", ErrStoreFailure, roomID, err)
	}
	return nil
}

// DeleteIfEmpty deletes the room when, under its lock, it has no participants
// and idle (if given) still agrees. It reports whether the room was deleted;
// a room that is already gone counts as not deleted.
func (s *RoomService) DeleteIfEmpty(ctx context.Context, roomID string, idle func() bool) (bool, error) {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	room, err := s.GetRoom(ctx, roomID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(room.Participants) > 0 || (idle != nil && !idle()) {
		return false, nil
	}
	if err := s.DeleteRoom(ctx, roomID); err != nil {
		return false, err
	}
	return true, nil
}

// ParticipantsResponse is the body of GET /api/room_participants/:id.
type ParticipantsResponse struct {
	Participants []string `json:"participants"`
	HostID       *string  `json:"host_id"`
}

// Participants lists a room's participants. A missing room is an empty list
// with a null host rather than an error.
func (s *RoomService) Participants(ctx context.Context, roomID string) (ParticipantsResponse, error) {
	room, err := s.GetRoom(ctx, roomID)
	if errors.Is(err, ErrNotFound) {
		return ParticipantsResponse{Participants: []string{}}, nil
	}
	if err != nil {
		return ParticipantsResponse{}, err
	}
	host := room.CreatedBy
	return ParticipantsResponse{Participants: room.Participants, HostID: &host}, nil
}

// TimerState returns the persisted timer with defaults filled in.
func (s *RoomService) TimerState(ctx context.Context, roomID string) (models.TimerState, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return models.TimerState{}, err
	}
	return room.Timer, nil
}

// ChatHistory returns the room's messages oldest first.
func (s *RoomService) ChatHistory(ctx context.Context, roomID string) ([]models.RoomMessage, error) {
	docs, err := s.store.ListMessages(ctx, store.Rooms, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: list messages of %s: %v", ErrStoreFailure, roomID, err)
	}
	out := make([]models.RoomMessage, 0, len(docs))
	for _, d := range docs {
		var m models.RoomMessage
		if err := store.Decode(d, &m); err != nil {
			log.Printf("[ROOM] skipping malformed message in %s: %v", roomID, err)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// AppendMessage persists one chat message under the room's lock, so it cannot
// land in a room that is being deleted. Missing rooms yield ErrNotFound.
func (s *RoomService) AppendMessage(ctx context.Context, roomID string, msg models.RoomMessage) error {
	doc, err := store.Encode(msg)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(roomID)
	defer unlock()

	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return err
	}
	if err := s.store.AddMessage(ctx, store.Rooms, roomID, doc); err != nil {
		return fmt.Errorf("%w: save message in %s: %v", ErrStoreFailure, roomID, err)
	}
	return nil
}

// List returns every room, ordered by id.
func (s *RoomService) List(ctx context.Context) ([]RoomView, error) {
	snaps, err := s.store.List(ctx, store.Rooms)
	if err != nil {
		return nil, fmt.Errorf("%w: list rooms: %v", ErrStoreFailure, err)
	}
	out := make([]RoomView, 0, len(snaps))
	for _, snap := range snaps {
		var room models.Room
		if err := store.Decode(snap.Data, &room); err != nil {
			log.Printf("[ROOM] skipping malformed room %s: %v", snap.ID, err)
			continue
		}
		room.Normalize()
		out = append(out, roomView(snap.ID, room))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type roomSearchItems []RoomView

func (r roomSearchItems) String(i int) string { return r[i].Slug }
func (r roomSearchItems) Len() int            { return len(r) }

// Search fuzzy-matches query against room slugs, best match first.
func (s *RoomService) Search(ctx context.Context, query string) ([]RoomView, error) {
	query = slug.Make(query)
	if query == "" {
		return []RoomView{}, nil
	}
	rooms, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rooms {
		if rooms[i].Slug == "" {
			rooms[i].Slug = slug.Make(rooms[i].Name)
		}
	}
	items := roomSearchItems(rooms)
	matches := fuzzy.FindFrom(query, items)
	out := make([]RoomView, 0, len(matches))
	for i, m := range matches {
		if i == roomSearchLimit {
			break
		}
		out = append(out, items[m.Index])
	}
	return out, nil
}
