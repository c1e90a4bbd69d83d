package chat

import (
	"sync"
	"time"
)

// PresenceDirectory is the process-wide source of truth for who is online:
// user -> set of live connection ids, plus a last-seen timestamp that only
// means something while the set is empty. Entries are never deleted, so
// last-seen survives across a user's sessions for the process lifetime.
type presenceEntry struct {
	conns    map[string]struct{}
	lastSeen time.Time
}

type PresenceDirectory struct {
	mu    sync.RWMutex
	users map[string]*presenceEntry
	clock func() time.Time // injectable for tests
}

func NewPresenceDirectory() *PresenceDirectory {
	return &PresenceDirectory{
		users: make(map[string]*presenceEntry),
		clock: time.Now,
	}
}

// Register adds a connection to the user's online set and reports whether
// this was the offline->online transition. The flag gates the presence
// broadcast: a second browser tab must not re-announce the user.
func (d *PresenceDirectory) Register(userID, connID string) (first bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := d.users[userID]
	if e == nil {
		e = &presenceEntry{conns: make(map[string]struct{})}
		d.users[userID] = e
	}
	first = len(e.conns) == 0
	e.conns[connID] = struct{}{}
	return first
}

// Unregister removes the connection and reports whether this was the
// online->offline transition; if so, last-seen is stamped now.
func (d *PresenceDirectory) Unregister(userID, connID string) (last bool, lastSeen time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := d.users[userID]
	if e == nil {
		return false, time.Time{}
	}
	if _, ok := e.conns[connID]; !ok {
		return false, time.Time{}
	}
	delete(e.conns, connID)
	if len(e.conns) == 0 {
		e.lastSeen = d.clock()
		return true, e.lastSeen
	}
	return false, time.Time{}
}

func (d *PresenceDirectory) IsOnline(userID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e := d.users[userID]
	return e != nil && len(e.conns) > 0
}

// Snapshot returns the identities of every currently-online user.
func (d *PresenceDirectory) Snapshot() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.users))
	for u, e := range d.users {
		if len(e.conns) > 0 {
			out = append(out, u)
		}
	}
	return out
}

// LastSeen returns the recorded timestamp; ok is false if the user never
// disconnected (or never connected) during this process lifetime.
func (d *PresenceDirectory) LastSeen(userID string) (time.Time, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e := d.users[userID]
	if e == nil || e.lastSeen.IsZero() {
		return time.Time{}, false
	}
	return e.lastSeen, true
}
