package chat

import (
	"sort"
	"testing"
)

func TestRoomJoinIdempotent(t *testing.T) {
	tr := NewRoomTracker()
	tr.Join("c1", "r1")
	tr.Join("c1", "r1")
	tr.Join("c2", "r1")

	got := tr.RecipientsOf("r1")
	sort.Strings(got)
	if len(got) != 2 || got[0] != "c1" || got[1] != "c2" {
		t.Fatalf("recipients = %v, want [c1 c2]", got)
	}
}

func TestRoomLeaveAll(t *testing.T) {
	tr := NewRoomTracker()
	tr.Join("c1", "r1")
	tr.Join("c1", "r2")
	tr.Join("c2", "r1")

	tr.LeaveAll("c1")

	if got := tr.RecipientsOf("r1"); len(got) != 1 || got[0] != "c2" {
		t.Fatalf("r1 recipients = %v, want [c2]", got)
	}
	if got := tr.RecipientsOf("r2"); got != nil {
		t.Fatalf("r2 recipients = %v, want none", got)
	}
	if got := tr.Rooms("c1"); got != nil {
		t.Fatalf("c1 rooms = %v, want none", got)
	}
}

func TestRoomMultipleMembership(t *testing.T) {
	tr := NewRoomTracker()
	tr.Join("c1", "r1")
	tr.Join("c1", "r2")
	tr.Join("c1", "r3")

	rooms := tr.Rooms("c1")
	if len(rooms) != 3 {
		t.Fatalf("c1 rooms = %v, want 3", rooms)
	}
}

func TestRoomEmptyArgsIgnored(t *testing.T) {
	tr := NewRoomTracker()
	tr.Join("", "r1")
	tr.Join("c1", "")
	if got := tr.RecipientsOf("r1"); got != nil {
		t.Fatalf("recipients = %v, want none", got)
	}
}
