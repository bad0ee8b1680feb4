package signaling

import "sync"

// Outcome is the result of an admission attempt against the room table.
type Outcome int

const (
	// OutcomeCreated means the room did not exist yet; the caller opened it
	// and holds the first slot. First arrival makes the call initiator.
	OutcomeCreated Outcome = iota

	// OutcomeJoined means the caller took the second and final slot.
	// Second arrival makes the joiner.
	OutcomeJoined

	// OutcomeFull means both slots were already taken. The table is left
	// unchanged and the caller gains no membership.
	OutcomeFull
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeJoined:
		return "joined"
	case OutcomeFull:
		return "full"
	default:
		return "unknown"
	}
}

// room holds the member connection ids of one named room, in arrival order.
type room struct {
	members []string
}

func (rm *room) has(connID string) bool {
	for _, id := range rm.members {
		if id == connID {
			return true
		}
	}
	return false
}

// RoomTable partitions connections into named rooms of at most two members.
//
// Every admission decision runs its whole branch (lookup, capacity check,
// mutation) under one lock, so two concurrent joins against the same fresh
// room always produce exactly one Created and one Joined, never two of
// either.
type RoomTable struct {
	mu    sync.Mutex
	rooms map[string]*room
}

// NewRoomTable creates an empty RoomTable.
func NewRoomTable() *RoomTable {
	return &RoomTable{rooms: make(map[string]*room)}
}

// Join admits connID into roomID, creating the room when it does not exist.
// There is no separate create operation; the first join opens the room.
func (t *RoomTable) Join(roomID, connID string) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	rm, ok := t.rooms[roomID]
	if !ok {
		t.rooms[roomID] = &room{members: []string{connID}}
		return OutcomeCreated
	}
	if len(rm.members) >= roomCapacity {
		return OutcomeFull
	}
	rm.members = append(rm.members, connID)
	return OutcomeJoined
}

// roomCapacity is fixed at two peers; the protocol pairs exactly one
// initiator with one joiner.
const roomCapacity = 2

// Leave removes connID from roomID. When a member is left behind its id is
// returned with ok=true so the caller can notify it. The room is deleted as
// soon as its last member leaves, which frees the name for immediate reuse.
// Leaving a room or a membership that does not exist is a no-op.
func (t *RoomTable) Leave(roomID, connID string) (remaining string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rm, found := t.rooms[roomID]
	if !found || !rm.has(connID) {
		return "", false
	}

	kept := rm.members[:0]
	for _, id := range rm.members {
		if id != connID {
			kept = append(kept, id)
		}
	}
	rm.members = kept

	if len(rm.members) == 0 {
		delete(t.rooms, roomID)
		return "", false
	}
	return rm.members[0], true
}

// Peer returns the other member of roomID, provided connID is a member and
// a second member exists.
func (t *RoomTable) Peer(roomID, connID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rm, found := t.rooms[roomID]
	if !found || !rm.has(connID) {
		return "", false
	}
	for _, id := range rm.members {
		if id != connID {
			return id, true
		}
	}
	return "", false
}

// Members returns a snapshot of the room's members in arrival order.
func (t *RoomTable) Members(roomID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	rm, found := t.rooms[roomID]
	if !found {
		return nil
	}
	out := make([]string, len(rm.members))
	copy(out, rm.members)
	return out
}

// Count reports the number of active rooms.
func (t *RoomTable) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rooms)
}
