package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"study-companion/middleware"
	"study-companion/realtime"
	"study-companion/services"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 64 << 10
	wsCleanupTimeout = 5 * time.Second
	wsSendQueue      = 64
)

var (
	errConnClosed    = errors.New("connection closed")
	errSendQueueFull = errors.New("send queue full")
)

// frameWriter is the write side of a websocket.
type frameWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteJSON(v any) error
	Close() error
}

// wsConn adapts a websocket to realtime.Conn. Send only enqueues; a single
// writer goroutine owns the socket, so a stalled client cannot hold up a
// room broadcast. A client whose queue overflows is dropped.
type wsConn struct {
	id      string
	conn    frameWriter
	out     chan realtime.Frame
	done    chan struct{}
	flushed chan struct{}
	once    sync.Once
}

func newWSConn(id string, conn frameWriter) *wsConn {
	return &wsConn{
		id:      id,
		conn:    conn,
		out:     make(chan realtime.Frame, wsSendQueue),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
	}
}

func (w *wsConn) ID() string { return w.id }

func (w *wsConn) Send(frame realtime.Frame) error {
	select {
	case <-w.done:
		return errConnClosed
	default:
	}
	select {
	case w.out <- frame:
		return nil
	case <-w.done:
		return errConnClosed
	default:
		log.Printf("[WS] connection %s fell %d frames behind, closing it", w.id, wsSendQueue)
		w.stop()
		_ = w.conn.Close()
		return errSendQueueFull
	}
}

// writeLoop drains the queue until stop, then flushes what is left so that
// a final join_error still reaches the client.
func (w *wsConn) writeLoop() {
	defer close(w.flushed)
	for {
		select {
		case frame := <-w.out:
			if !w.write(frame) {
				return
			}
		case <-w.done:
			for {
				select {
				case frame := <-w.out:
					if !w.write(frame) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (w *wsConn) write(frame realtime.Frame) bool {
	if err := w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err == nil {
		err = w.conn.WriteJSON(frame)
		if err == nil {
			return true
		}
		log.Printf("[WS] write %s to %s failed: %v", frame.Event, w.id, err)
	}
	w.stop()
	_ = w.conn.Close()
	return false
}

func (w *wsConn) stop() {
	w.once.Do(func() { close(w.done) })
}

// closeAndFlush stops accepting frames and waits for the queued ones.
func (w *wsConn) closeAndFlush() {
	w.stop()
	<-w.flushed
}

func sendRoomError(conn realtime.Conn, msg string) {
	_ = conn.Send(realtime.Frame{
		Event: realtime.EventRoomError,
		Data:  realtime.NoticePayload{Message: msg},
	})
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RealtimeHandlers routes websocket events to the room services.
type RealtimeHandlers struct {
	presence *services.PresenceService
	chat     *services.RoomChatService
	timers   *services.TimerCoordinator
}

func NewRealtimeHandlers(presence *services.PresenceService, chat *services.RoomChatService, timers *services.TimerCoordinator) *RealtimeHandlers {
	return &RealtimeHandlers{presence: presence, chat: chat, timers: timers}
}

// SetupRealtimeRoutes mounts the websocket endpoint. ctx bounds the lifetime
// of every connection's work.
func SetupRealtimeRoutes(ctx context.Context, app fiber.Router, authService *services.AuthService, h *RealtimeHandlers) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	app.Get("/ws",
		middleware.RealtimeAuthMiddleware(authService.AuthenticateRealtime),
		websocket.New(func(c *websocket.Conn) { h.serve(ctx, c) }),
	)
}

func (h *RealtimeHandlers) serve(ctx context.Context, c *websocket.Conn) {
	uid, _ := c.Locals(middleware.LocalUserID).(string)
	username, _ := c.Locals(middleware.LocalUsername).(string)
	conn := newWSConn(uuid.NewString(), c)
	go conn.writeLoop()
	c.SetReadLimit(wsMaxMessageSize)
	log.Printf("[WS] ✅ connection %s opened for %s", conn.id, uid)

	defer conn.closeAndFlush()
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), wsCleanupTimeout)
		defer cancel()
		h.presence.Disconnect(cleanupCtx, conn)
	}()

	_ = conn.Send(realtime.Frame{Event: realtime.EventStatus, Data: realtime.StatusPayload{Msg: "connected"}})

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[WS] connection %s read error: %v", conn.id, err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		if !h.handleMessage(ctx, conn, uid, username, raw) {
			return
		}
	}
}

// handleMessage decodes one inbound message and dispatches it. It reports
// whether the connection stays open.
func (h *RealtimeHandlers) handleMessage(ctx context.Context, conn realtime.Conn, uid, username string, raw []byte) bool {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		log.Printf("[WS] connection %s sent malformed frame: %v", conn.ID(), err)
		sendRoomError(conn, "malformed message")
		return true
	}
	return h.dispatch(ctx, conn, uid, username, frame)
}

// dispatch handles one event and reports whether the connection stays open.
func (h *RealtimeHandlers) dispatch(ctx context.Context, conn realtime.Conn, uid, username string, frame inboundFrame) bool {
	switch frame.Event {
	case realtime.EventJoinRoom:
		var req services.JoinRequest
		if !decodeData(conn, frame, &req) {
			return true
		}
		// the token decides who is joining
		req.UserID = uid
		if strings.TrimSpace(req.DisplayName) == "" {
			req.DisplayName = username
		}
		err := h.presence.Join(ctx, conn, req)
		if errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrNotFound) {
			return false
		}

	case realtime.EventLeaveRoom:
		var req services.LeaveRequest
		if !decodeData(conn, frame, &req) {
			return true
		}
		req.UserID = uid
		if err := h.presence.Leave(ctx, conn, req); err != nil {
			log.Printf("[WS] leave from %s: %v", conn.ID(), err)
		}

	case realtime.EventSendRoomMessage:
		var req services.RoomMessageRequest
		if !decodeData(conn, frame, &req) {
			return true
		}
		if strings.TrimSpace(req.Username) == "" {
			req.Username = username
		}
		_ = h.chat.Send(ctx, conn, req)

	case realtime.EventRoomTimerControl:
		var req services.TimerControl
		if !decodeData(conn, frame, &req) {
			return true
		}
		req.UserID = uid
		_ = h.timers.Control(ctx, conn, req)

	default:
		log.Printf("[WS] connection %s sent unknown event %q", conn.ID(), frame.Event)
		sendRoomError(conn, "unknown event '"+frame.Event+"'")
	}
	return true
}

func decodeData(conn realtime.Conn, frame inboundFrame, target any) bool {
	if len(frame.Data) == 0 {
		frame.Data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(frame.Data, target); err != nil {
		log.Printf("[WS] connection %s sent bad %s payload: %v", conn.ID(), frame.Event, err)
		sendRoomError(conn, "malformed "+frame.Event+" payload")
		return false
	}
	return true
}
