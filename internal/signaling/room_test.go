package signaling

import (
	"fmt"
	"sync"
	"testing"
)

func TestRoomTableJoinThreeWayBranch(t *testing.T) {
	table := NewRoomTable()

	if got := table.Join("alpha", "a"); got != OutcomeCreated {
		t.Fatalf("first join: got %v, want created", got)
	}
	if got := table.Join("alpha", "b"); got != OutcomeJoined {
		t.Fatalf("second join: got %v, want joined", got)
	}
	if got := table.Join("alpha", "c"); got != OutcomeFull {
		t.Fatalf("third join: got %v, want full", got)
	}

	// The rejected join must not have touched the room.
	members := table.Members("alpha")
	if len(members) != 2 || members[0] != "a" || members[1] != "b" {
		t.Fatalf("members after full rejection: %v", members)
	}
}

func TestRoomTableDistinctRoomsAreIndependent(t *testing.T) {
	table := NewRoomTable()

	if got := table.Join("alpha", "a"); got != OutcomeCreated {
		t.Fatalf("alpha: got %v, want created", got)
	}
	if got := table.Join("beta", "b"); got != OutcomeCreated {
		t.Fatalf("beta: got %v, want created", got)
	}
	if table.Count() != 2 {
		t.Fatalf("room count: got %d, want 2", table.Count())
	}
}

func TestRoomTableConcurrentJoinAdmitsExactlyTwo(t *testing.T) {
	const attempts = 32

	table := NewRoomTable()
	outcomes := make([]Outcome, attempts)

	var start, done sync.WaitGroup
	start.Add(1)
	for i := 0; i < attempts; i++ {
		done.Add(1)
		go func(i int) {
			defer done.Done()
			start.Wait()
			outcomes[i] = table.Join("contested", fmt.Sprintf("conn-%d", i))
		}(i)
	}
	start.Done()
	done.Wait()

	var created, joined, full int
	for _, o := range outcomes {
		switch o {
		case OutcomeCreated:
			created++
		case OutcomeJoined:
			joined++
		case OutcomeFull:
			full++
		}
	}
	if created != 1 || joined != 1 || full != attempts-2 {
		t.Fatalf("got created=%d joined=%d full=%d, want 1/1/%d", created, joined, full, attempts-2)
	}
	if got := len(table.Members("contested")); got != 2 {
		t.Fatalf("admitted members: got %d, want 2", got)
	}
}

func TestRoomTableLeaveReportsRemainingMember(t *testing.T) {
	table := NewRoomTable()
	table.Join("alpha", "a")
	table.Join("alpha", "b")

	remaining, ok := table.Leave("alpha", "a")
	if !ok || remaining != "b" {
		t.Fatalf("leave: got (%q, %v), want (b, true)", remaining, ok)
	}

	// Last member out deletes the room.
	if _, ok := table.Leave("alpha", "b"); ok {
		t.Fatal("leave of last member reported a remaining peer")
	}
	if table.Count() != 0 {
		t.Fatalf("room count after empty: got %d, want 0", table.Count())
	}
}

func TestRoomTableNameReusableAfterDeletion(t *testing.T) {
	table := NewRoomTable()
	table.Join("alpha", "a")
	table.Leave("alpha", "a")

	if got := table.Join("alpha", "x"); got != OutcomeCreated {
		t.Fatalf("rejoin of deleted room: got %v, want created", got)
	}
}

func TestRoomTableReadmitsAfterDeparture(t *testing.T) {
	table := NewRoomTable()
	table.Join("alpha", "a")
	table.Join("alpha", "b")

	if got := table.Join("alpha", "c"); got != OutcomeFull {
		t.Fatalf("full room: got %v, want full", got)
	}
	table.Leave("alpha", "b")
	if got := table.Join("alpha", "c"); got != OutcomeJoined {
		t.Fatalf("join after slot freed: got %v, want joined", got)
	}
}

func TestRoomTableLeaveIsNoOpForStrangers(t *testing.T) {
	table := NewRoomTable()
	table.Join("alpha", "a")

	if _, ok := table.Leave("alpha", "stranger"); ok {
		t.Fatal("leave by non-member reported a remaining peer")
	}
	if _, ok := table.Leave("missing", "a"); ok {
		t.Fatal("leave of missing room reported a remaining peer")
	}
	if got := len(table.Members("alpha")); got != 1 {
		t.Fatalf("members disturbed by stranger leave: got %d, want 1", got)
	}
}

func TestRoomTablePeer(t *testing.T) {
	table := NewRoomTable()
	table.Join("alpha", "a")

	if _, ok := table.Peer("alpha", "a"); ok {
		t.Fatal("solo member reported a peer")
	}

	table.Join("alpha", "b")
	if peer, ok := table.Peer("alpha", "a"); !ok || peer != "b" {
		t.Fatalf("peer of a: got (%q, %v), want (b, true)", peer, ok)
	}
	if peer, ok := table.Peer("alpha", "b"); !ok || peer != "a" {
		t.Fatalf("peer of b: got (%q, %v), want (a, true)", peer, ok)
	}
	if _, ok := table.Peer("alpha", "stranger"); ok {
		t.Fatal("non-member reported a peer")
	}
}
