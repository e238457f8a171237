package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"study-companion/models"
	"study-companion/realtime"
)

const sweepConcurrency = 8

// JoinRequest is the body of join_room.
type JoinRequest struct {
	Room        string `json:"room"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// LeaveRequest is the body of leave_room.
type LeaveRequest struct {
	Room   string `json:"room"`
	UserID string `json:"user_id"`
}

// PresenceService tracks which connection sits in which room and keeps the
// room's participant list in step with joins, leaves and disconnects.
type PresenceService struct {
	rooms  *RoomService
	timers *TimerCoordinator
	hub    *realtime.Hub
	conns  *ConnectionTable
	names  *DisplayNameResolver
}

func NewPresenceService(rooms *RoomService, timers *TimerCoordinator, hub *realtime.Hub, conns *ConnectionTable, names *DisplayNameResolver) *PresenceService {
	return &PresenceService{rooms: rooms, timers: timers, hub: hub, conns: conns, names: names}
}

// Join admits conn to a room. On ErrValidation or ErrNotFound a join_error has
// already been sent and the caller should close the connection.
func (p *PresenceService) Join(ctx context.Context, conn realtime.Conn, req JoinRequest) error {
	req.Room = strings.TrimSpace(req.Room)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.Room == "" || req.UserID == "" || req.DisplayName == "" {
		_ = p.hub.PublishToOne(conn, realtime.EventJoinError, realtime.NoticePayload{Message: notice(noticeJoinMissing)})
		return fmt.Errorf("%w: join requires room, user_id and display_name", ErrValidation)
	}

	room, err := p.rooms.Update(ctx, req.Room, func(r *models.Room) ([]string, error) {
		if r.AddParticipant(req.DisplayName) {
			return []string{"participants"}, nil
		}
		return nil, nil
	})
	if err != nil {
		msg := notice(noticeRoomNotFound, req.Room)
		if !errors.Is(err, ErrNotFound) {
			msg = err.Error()
		}
		log.Printf("[ROOM] %s (%s) could not join %s: %v", req.DisplayName, req.UserID, req.Room, err)
		_ = p.hub.PublishToOne(conn, realtime.EventJoinError, realtime.NoticePayload{Room: req.Room, Message: msg})
		return err
	}

	// a connection lives in one room at a time
	if prev, ok := p.conns.Lookup(conn.ID()); ok && prev.RoomID != req.Room {
		p.conns.Unregister(conn.ID())
		p.hub.Unsubscribe(conn, prev.RoomID)
		p.departRoom(ctx, prev.RoomID, prev.UserID, prev.DisplayName)
	}

	entry := ConnectionEntry{
		Conn:        conn,
		RoomID:      req.Room,
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		VideoUID:    DeriveVideoUID(req.UserID),
	}
	p.conns.Register(entry)
	p.hub.Subscribe(conn, req.Room)
	log.Printf("[ROOM] %s (%s) joined %s, participants=%v", req.DisplayName, req.UserID, req.Room, room.Participants)

	_ = p.hub.PublishToOne(conn, realtime.EventExistingVideoUsers, realtime.ExistingVideoUsers{
		Identities: p.conns.Identities(req.Room, conn.ID()),
	})
	p.hub.Publish(req.Room, realtime.EventVideoUserIdentity, realtime.VideoIdentity{
		VideoUID:    entry.VideoUID,
		DisplayName: entry.DisplayName,
	})
	_ = p.hub.PublishToOne(conn, realtime.EventRoomTimerUpdate, room.Timer.Snapshot(req.Room))
	p.hub.Publish(req.Room, realtime.EventStatus, realtime.StatusPayload{Msg: notice(noticeJoined, req.DisplayName)})
	return nil
}

// Leave handles an explicit leave_room. The connection is unregistered and
// taken out of the room it had joined whatever the outcome.
func (p *PresenceService) Leave(ctx context.Context, conn realtime.Conn, req LeaveRequest) error {
	req.Room = strings.TrimSpace(req.Room)
	entry, registered := p.conns.Unregister(conn.ID())
	if registered {
		p.hub.Unsubscribe(conn, entry.RoomID)
	}
	if registered && (entry.RoomID != req.Room || req.UserID == "") {
		p.departRoom(ctx, entry.RoomID, entry.UserID, entry.DisplayName)
	}
	if req.Room == "" || req.UserID == "" {
		_ = p.hub.PublishToOne(conn, realtime.EventRoomError, realtime.NoticePayload{Room: req.Room, Message: notice(noticeLeaveMissing)})
		return fmt.Errorf("%w: leave requires room and user_id", ErrValidation)
	}
	p.hub.Unsubscribe(conn, req.Room)

	name := ""
	if registered && entry.RoomID == req.Room && entry.UserID == req.UserID {
		name = entry.DisplayName
	}
	p.departRoom(ctx, req.Room, req.UserID, name)
	return nil
}

// Disconnect cleans up after a closed connection.
func (p *PresenceService) Disconnect(ctx context.Context, conn realtime.Conn) {
	entry, ok := p.conns.Unregister(conn.ID())
	p.hub.UnsubscribeAll(conn)
	if !ok {
		log.Printf("[WS] connection %s closed without joining a room", conn.ID())
		return
	}
	log.Printf("[WS] connection %s of %s closed, cleaning up room %s", conn.ID(), entry.UserID, entry.RoomID)
	p.departRoom(ctx, entry.RoomID, entry.UserID, entry.DisplayName)
}

// departRoom removes a user from the participant list, announces it and
// deletes the room once nobody is listed.
func (p *PresenceService) departRoom(ctx context.Context, roomID, userID, name string) {
	if name == "" {
		name = p.names.Resolve(ctx, userID)
	}

	removed, empty := false, false
	_, err := p.rooms.Update(ctx, roomID, func(r *models.Room) ([]string, error) {
		if name == "" || !r.RemoveParticipant(name) {
			return nil, nil
		}
		removed = true
		empty = len(r.Participants) == 0
		return []string{"participants"}, nil
	})
	if errors.Is(err, ErrNotFound) {
		log.Printf("[ROOM] %s left %s, which no longer exists", userID, roomID)
		return
	}
	if err != nil {
		log.Printf("❌ [ROOM] removing %s from %s failed: %v", userID, roomID, err)
		p.hub.Publish(roomID, realtime.EventRoomError, realtime.NoticePayload{Room: roomID, Message: notice(noticeCleanupFailed)})
		return
	}

	switch {
	case removed:
		p.hub.Publish(roomID, realtime.EventStatus, realtime.StatusPayload{Msg: notice(noticeLeft, name)})
	case name != "":
		p.hub.Publish(roomID, realtime.EventStatus, realtime.StatusPayload{Msg: notice(noticeDisconnected, name)})
	default:
		p.hub.Publish(roomID, realtime.EventStatus, realtime.StatusPayload{Msg: notice(noticeAnonymousGone, userID)})
	}
	if empty {
		p.deleteEmptyRoom(ctx, roomID)
	}
}

func (p *PresenceService) deleteEmptyRoom(ctx context.Context, roomID string) {
	p.timers.Halt(roomID)
	deleted, err := p.rooms.DeleteIfEmpty(ctx, roomID, nil)
	if err != nil {
		log.Printf("❌ [ROOM] deleting empty room %s failed: %v", roomID, err)
		p.hub.Publish(roomID, realtime.EventRoomError, realtime.NoticePayload{Room: roomID, Message: notice(noticeCleanupFailed)})
		return
	}
	if !deleted {
		// someone rejoined between the leave and the delete
		if _, err := p.timers.Resume(ctx, roomID); err != nil && !errors.Is(err, ErrNotFound) {
			log.Printf("[TIMER] resuming %s after aborted delete failed: %v", roomID, err)
		}
		return
	}
	log.Printf("🗑️  [ROOM] room %s deleted, last participant left", roomID)
	p.hub.Publish(roomID, realtime.EventRoomDeleted, realtime.NoticePayload{Room: roomID, Message: notice(noticeRoomDeleted)})
}

// SweepOrphans deletes rooms with no listed participants and no live
// connection. Rooms that still list participants are left alone so that
// briefly disconnected clients can come back.
func (p *PresenceService) SweepOrphans(ctx context.Context) (int, error) {
	rooms, err := p.rooms.List(ctx)
	if err != nil {
		return 0, err
	}

	var deleted, failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, room := range rooms {
		if len(room.Participants) > 0 || p.conns.RoomHasConnections(room.ID) {
			continue
		}
		roomID := room.ID
		g.Go(func() error {
			p.timers.Halt(roomID)
			ok, err := p.rooms.DeleteIfEmpty(gctx, roomID, func() bool {
				return !p.conns.RoomHasConnections(roomID)
			})
			if err != nil {
				failed.Add(1)
				log.Printf("❌ [SWEEP] deleting orphaned room %s failed: %v", roomID, err)
				return nil
			}
			if !ok {
				// someone came back between the listing and the delete
				if _, err := p.timers.Resume(gctx, roomID); err != nil && !errors.Is(err, ErrNotFound) {
					log.Printf("⚠️  [SWEEP] resuming timer of %s failed: %v", roomID, err)
				}
				return nil
			}
			deleted.Add(1)
			log.Printf("🗑️  [SWEEP] deleted orphaned room %s", roomID)
			return nil
		})
	}
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		return int(deleted.Load()), fmt.Errorf("%w: %d orphaned rooms could not be deleted", ErrStoreFailure, n)
	}
	return int(deleted.Load()), nil
}
