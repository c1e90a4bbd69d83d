package chat

import (
	"sync"
)

// RoomTracker maps connections to conversation channels. A room's recipient
// set is exactly the connections subscribed to it; persisted conversation
// membership is enforced upstream by the router, not here. Nothing persists:
// clients re-join their rooms on every reconnect.
type RoomTracker struct {
	mu     sync.RWMutex
	byRoom map[string]map[string]struct{} // room -> conn ids
	byConn map[string]map[string]struct{} // conn id -> rooms
}

func NewRoomTracker() *RoomTracker {
	return &RoomTracker{
		byRoom: make(map[string]map[string]struct{}),
		byConn: make(map[string]map[string]struct{}),
	}
}

// Join is idempotent.
func (t *RoomTracker) Join(connID, roomID string) {
	if connID == "" || roomID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.byRoom[roomID]
	if r == nil {
		r = make(map[string]struct{})
		t.byRoom[roomID] = r
	}
	r[connID] = struct{}{}

	c := t.byConn[connID]
	if c == nil {
		c = make(map[string]struct{})
		t.byConn[connID] = c
	}
	c[roomID] = struct{}{}
}

// LeaveAll removes every subscription of a closing connection. Called
// exactly once, on disconnect; there is no single-room leave.
func (t *RoomTracker) LeaveAll(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for roomID := range t.byConn[connID] {
		if r := t.byRoom[roomID]; r != nil {
			delete(r, connID)
			if len(r) == 0 {
				delete(t.byRoom, roomID)
			}
		}
	}
	delete(t.byConn, connID)
}

// RecipientsOf returns the connection ids currently subscribed to the room.
func (t *RoomTracker) RecipientsOf(roomID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r := t.byRoom[roomID]
	if len(r) == 0 {
		return nil
	}
	out := make([]string, 0, len(r))
	for id := range r {
		out = append(out, id)
	}
	return out
}

// Rooms lists the rooms a connection is subscribed to.
func (t *RoomTracker) Rooms(connID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c := t.byConn[connID]
	if len(c) == 0 {
		return nil
	}
	out := make([]string, 0, len(c))
	for id := range c {
		out = append(out, id)
	}
	return out
}
