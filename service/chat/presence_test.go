package chat

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestPresenceTransitions(t *testing.T) {
	d := NewPresenceDirectory()

	if !d.Register("alice", "c1") {
		t.Fatal("first connection must report offline->online transition")
	}
	if d.Register("alice", "c2") {
		t.Fatal("second connection must not report a transition")
	}
	if !d.IsOnline("alice") {
		t.Fatal("alice should be online with two connections")
	}

	if last, _ := d.Unregister("alice", "c1"); last {
		t.Fatal("closing one of two connections must not report online->offline")
	}
	if !d.IsOnline("alice") {
		t.Fatal("alice should still be online")
	}

	last, lastSeen := d.Unregister("alice", "c2")
	if !last {
		t.Fatal("closing the last connection must report online->offline")
	}
	if lastSeen.IsZero() {
		t.Fatal("offline transition must stamp last-seen")
	}
	if d.IsOnline("alice") {
		t.Fatal("alice should be offline")
	}
}

func TestPresenceLastSeenRetained(t *testing.T) {
	d := NewPresenceDirectory()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d.clock = func() time.Time { return fixed }

	d.Register("bob", "c1")
	d.Unregister("bob", "c1")

	got, ok := d.LastSeen("bob")
	if !ok || !got.Equal(fixed) {
		t.Fatalf("last-seen = %v ok=%v, want %v", got, ok, fixed)
	}

	// entry survives a later session
	d.Register("bob", "c2")
	if _, ok := d.LastSeen("bob"); !ok {
		t.Fatal("last-seen record must persist across sessions")
	}
}

func TestPresenceUnregisterUnknown(t *testing.T) {
	d := NewPresenceDirectory()
	if last, _ := d.Unregister("ghost", "c1"); last {
		t.Fatal("unknown user must not report a transition")
	}
	d.Register("alice", "c1")
	if last, _ := d.Unregister("alice", "other"); last {
		t.Fatal("unknown connection must not report a transition")
	}
	if !d.IsOnline("alice") {
		t.Fatal("alice must remain online")
	}
}

// isOnline(u) must equal "registered minus unregistered > 0" for any
// interleaving.
func TestPresenceConcurrentRegisterUnregister(t *testing.T) {
	d := NewPresenceDirectory()
	const users = 8
	const connsPerUser = 16

	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		user := fmt.Sprintf("u%d", u)
		for c := 0; c < connsPerUser; c++ {
			c := c
			conn := fmt.Sprintf("%s-c%d", user, c)
			wg.Add(1)
			go func() {
				defer wg.Done()
				d.Register(user, conn)
				if c%2 == 0 {
					d.Unregister(user, conn)
				}
			}()
		}
	}
	wg.Wait()

	for u := 0; u < users; u++ {
		user := fmt.Sprintf("u%d", u)
		if !d.IsOnline(user) {
			t.Fatalf("%s should be online, odd connections remain", user)
		}
	}
	if got := len(d.Snapshot()); got != users {
		t.Fatalf("snapshot size = %d, want %d", got, users)
	}
}

func TestPresenceSnapshotOnlyOnline(t *testing.T) {
	d := NewPresenceDirectory()
	d.Register("alice", "c1")
	d.Register("bob", "c2")
	d.Unregister("bob", "c2")

	snap := d.Snapshot()
	if len(snap) != 1 || snap[0] != "alice" {
		t.Fatalf("snapshot = %v, want [alice]", snap)
	}
}
