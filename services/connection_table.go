package services

import (
	"github.com/puzpuzpuz/xsync/v3"

	"study-companion/realtime"
)

// ConnectionEntry is what a live connection announced in join_room.
type ConnectionEntry struct {
	Conn        realtime.Conn
	RoomID      string
	UserID      string
	DisplayName string
	VideoUID    uint32
}

// ConnectionTable maps connection id to the room/user it joined. It is only
// populated after a successful join.
type ConnectionTable struct {
	entries *xsync.MapOf[string, ConnectionEntry]
}

func NewConnectionTable() *ConnectionTable {
	return &ConnectionTable{entries: xsync.NewMapOf[string, ConnectionEntry]()}
}

// Register records or replaces the entry of entry.Conn.
func (t *ConnectionTable) Register(entry ConnectionEntry) {
	t.entries.Store(entry.Conn.ID(), entry)
}

// Unregister removes and returns the entry for connID.
func (t *ConnectionTable) Unregister(connID string) (ConnectionEntry, bool) {
	return t.entries.LoadAndDelete(connID)
}

func (t *ConnectionTable) Lookup(connID string) (ConnectionEntry, bool) {
	return t.entries.Load(connID)
}

// RoomHasConnections reports whether any live connection is registered in roomID.
func (t *ConnectionTable) RoomHasConnections(roomID string) bool {
	found := false
	t.entries.Range(func(_ string, e ConnectionEntry) bool {
		if e.RoomID == roomID {
			found = true
			return false
		}
		return true
	})
	return found
}

// Identities lists the video identities of roomID, skipping excludeConnID.
func (t *ConnectionTable) Identities(roomID, excludeConnID string) []realtime.VideoIdentity {
	out := []realtime.VideoIdentity{}
	t.entries.Range(func(id string, e ConnectionEntry) bool {
		if e.RoomID == roomID && id != excludeConnID {
			out = append(out, realtime.VideoIdentity{VideoUID: e.VideoUID, DisplayName: e.DisplayName})
		}
		return true
	})
	return out
}

func (t *ConnectionTable) Len() int {
	return t.entries.Size()
}
