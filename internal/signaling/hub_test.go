package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/awahab1116/video-streaming/internal/metrics"
)

func newTestHub(t *testing.T) (*Hub, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)), m)
	go h.Run()
	t.Cleanup(h.Stop)
	return h, m
}

// hubClient is a client without a socket; hub logic never touches Conn.
func hubClient(id string) *Client {
	return &Client{ID: id, Send: make(chan *Message, sendBufferSize)}
}

func connect(t *testing.T, h *Hub, id string) *Client {
	t.Helper()
	c := hubClient(id)
	h.Register <- c
	return c
}

func inbound(h *Hub, c *Client, msg Message) {
	msg.client = c
	h.Inbound <- &msg
}

func recv(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case m, ok := <-c.Send:
		if !ok {
			t.Fatal("send channel closed while expecting a message")
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message")
	}
	return nil
}

func expectSilence(t *testing.T, c *Client) {
	t.Helper()
	select {
	case m := <-c.Send:
		t.Fatalf("unexpected message %q", m.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubAdmissionReplies(t *testing.T) {
	h, _ := newTestHub(t)

	a := connect(t, h, "a")
	inbound(h, a, Message{Type: KindJoin, RoomID: "alpha"})
	if got := recv(t, a); got.Type != KindRoomCreated || got.RoomID != "alpha" {
		t.Fatalf("creator reply: got %q room %q", got.Type, got.RoomID)
	}

	b := connect(t, h, "b")
	inbound(h, b, Message{Type: KindJoin, RoomID: "alpha"})
	if got := recv(t, b); got.Type != KindRoomJoined || got.RoomID != "alpha" {
		t.Fatalf("joiner reply: got %q room %q", got.Type, got.RoomID)
	}

	c := connect(t, h, "c")
	inbound(h, c, Message{Type: KindJoin, RoomID: "alpha"})
	if got := recv(t, c); got.Type != KindFullRoom || got.RoomID != "alpha" {
		t.Fatalf("rejected reply: got %q room %q", got.Type, got.RoomID)
	}

	// The admission replies go only to the one who asked.
	expectSilence(t, a)
	expectSilence(t, b)
}

func TestHubStartCallReachesTheOtherMember(t *testing.T) {
	h, _ := newTestHub(t)
	a, b := pairUp(t, h, "alpha")

	inbound(h, b, Message{Type: KindStartCall, RoomID: "alpha"})
	got := recv(t, a)
	if got.Type != KindStartCall {
		t.Fatalf("initiator received %q, want start_call", got.Type)
	}
	if got.RoomID != "" || got.Payload != nil {
		t.Fatalf("start_call should carry no room id or payload, got %+v", got)
	}
	expectSilence(t, b)
}

func TestHubRelaysDescriptionsVerbatim(t *testing.T) {
	h, _ := newTestHub(t)
	a, b := pairUp(t, h, "alpha")

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0\r\no=- 46117 2 IN IP4 127.0.0.1\r\n"}`)
	inbound(h, a, Message{Type: KindOffer, RoomID: "alpha", Payload: offer})

	got := recv(t, b)
	if got.Type != KindOffer {
		t.Fatalf("peer received %q, want offer", got.Type)
	}
	if !bytes.Equal(got.Payload, offer) {
		t.Fatalf("offer payload altered in relay:\n got %s\nwant %s", got.Payload, offer)
	}
	if got.RoomID != "" {
		t.Fatalf("relayed offer kept room id %q", got.RoomID)
	}

	answer := json.RawMessage(`{"type":"answer","sdp":"v=0\r\n"}`)
	inbound(h, b, Message{Type: KindAnswer, RoomID: "alpha", Payload: answer})

	got = recv(t, a)
	if got.Type != KindAnswer || !bytes.Equal(got.Payload, answer) {
		t.Fatalf("answer altered in relay: %+v", got)
	}
}

func TestHubRelaysCandidateEnvelopeUnchanged(t *testing.T) {
	h, _ := newTestHub(t)
	a, b := pairUp(t, h, "alpha")

	cand := json.RawMessage(`{"candidate":"candidate:1 1 udp 2130706431 192.0.2.1 54321 typ host","sdpMid":"0","sdpMLineIndex":0}`)
	inbound(h, a, Message{Type: KindICECandidate, RoomID: "alpha", Payload: cand})

	got := recv(t, b)
	if got.Type != KindICECandidate || got.RoomID != "alpha" {
		t.Fatalf("candidate envelope altered: type %q room %q", got.Type, got.RoomID)
	}
	if !bytes.Equal(got.Payload, cand) {
		t.Fatalf("candidate payload altered:\n got %s\nwant %s", got.Payload, cand)
	}
}

func TestHubPreservesRelayOrder(t *testing.T) {
	h, _ := newTestHub(t)
	a, b := pairUp(t, h, "alpha")

	inbound(h, a, Message{Type: KindOffer, RoomID: "alpha", Payload: json.RawMessage(`{"seq":0}`)})
	for i := 1; i <= 5; i++ {
		payload := json.RawMessage(fmt.Sprintf(`{"seq":%d}`, i))
		inbound(h, a, Message{Type: KindICECandidate, RoomID: "alpha", Payload: payload})
	}

	for i := 0; i <= 5; i++ {
		got := recv(t, b)
		var body struct {
			Seq int `json:"seq"`
		}
		if err := json.Unmarshal(got.Payload, &body); err != nil {
			t.Fatalf("payload %d: %v", i, err)
		}
		if body.Seq != i {
			t.Fatalf("out of order delivery: got seq %d at position %d", body.Seq, i)
		}
	}
}

func TestHubDropsProtocolViolations(t *testing.T) {
	h, m := newTestHub(t)
	a, b := pairUp(t, h, "alpha")
	outsider := connect(t, h, "outsider")

	cases := []struct {
		name   string
		sender *Client
		msg    Message
	}{
		{"unknown kind", a, Message{Type: "transmute", RoomID: "alpha"}},
		{"join without room", outsider, Message{Type: KindJoin}},
		{"second join", a, Message{Type: KindJoin, RoomID: "beta"}},
		{"offer for foreign room", outsider, Message{Type: KindOffer, RoomID: "alpha", Payload: json.RawMessage(`{}`)}},
		{"offer without room", a, Message{Type: KindOffer, Payload: json.RawMessage(`{}`)}},
	}

	for _, tc := range cases {
		inbound(h, tc.sender, tc.msg)
	}

	// None of the above may surface anywhere.
	expectSilence(t, a)
	expectSilence(t, b)
	expectSilence(t, outsider)

	if got := m.Get(metrics.EventProtocolViolation); got != uint64(len(cases)) {
		t.Fatalf("violation count: got %d, want %d", got, len(cases))
	}

	// The offending connections stay usable.
	inbound(h, a, Message{Type: KindOffer, RoomID: "alpha", Payload: json.RawMessage(`{"ok":true}`)})
	if got := recv(t, b); got.Type != KindOffer {
		t.Fatalf("relay after violations: got %q", got.Type)
	}
}

func TestHubStartCallWithoutPeerIsDropped(t *testing.T) {
	h, m := newTestHub(t)

	a := connect(t, h, "a")
	inbound(h, a, Message{Type: KindJoin, RoomID: "alpha"})
	recv(t, a) // room_created

	inbound(h, a, Message{Type: KindStartCall, RoomID: "alpha"})
	expectSilence(t, a)
	if got := m.Get(metrics.EventProtocolViolation); got != 1 {
		t.Fatalf("violation count: got %d, want 1", got)
	}
}

func TestHubDisconnectNotifiesRemainingPeerOnce(t *testing.T) {
	h, _ := newTestHub(t)
	a, b := pairUp(t, h, "alpha")

	h.Unregister <- b
	if got := recv(t, a); got.Type != KindPeerLeft {
		t.Fatalf("remaining peer received %q, want peer_left", got.Type)
	}
	expectSilence(t, a)

	// b's pump may report the disconnect again; the second pass is a no-op.
	h.Unregister <- b
	expectSilence(t, a)

	// The vacated slot is open again.
	c := connect(t, h, "c")
	inbound(h, c, Message{Type: KindJoin, RoomID: "alpha"})
	if got := recv(t, c); got.Type != KindRoomJoined {
		t.Fatalf("re-admission after departure: got %q", got.Type)
	}
}

func TestHubDisconnectOfLastMemberDeletesRoom(t *testing.T) {
	h, _ := newTestHub(t)

	a := connect(t, h, "a")
	inbound(h, a, Message{Type: KindJoin, RoomID: "alpha"})
	recv(t, a)

	h.Unregister <- a
	waitFor(t, func() bool { return h.Rooms().Count() == 0 })
}

func TestHubDropsSlowClient(t *testing.T) {
	h, _ := newTestHub(t)
	a, b := pairUp(t, h, "alpha")

	// Flood b without draining it. Once its buffer is full the hub drops it
	// and the initiator hears peer_left.
	payload := json.RawMessage(`{"candidate":"x"}`)
	for i := 0; i < sendBufferSize+8; i++ {
		inbound(h, a, Message{Type: KindICECandidate, RoomID: "alpha", Payload: payload})
	}

	if got := recv(t, a); got.Type != KindPeerLeft {
		t.Fatalf("initiator received %q, want peer_left", got.Type)
	}

	// b's channel must be closed after the drop.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-b.Send:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("slow client's send channel never closed")
		}
	}
}

func pairUp(t *testing.T, h *Hub, room string) (initiator, joiner *Client) {
	t.Helper()
	a := connect(t, h, "a")
	inbound(h, a, Message{Type: KindJoin, RoomID: room})
	if got := recv(t, a); got.Type != KindRoomCreated {
		t.Fatalf("pair setup: got %q, want room_created", got.Type)
	}
	b := connect(t, h, "b")
	inbound(h, b, Message{Type: KindJoin, RoomID: room})
	if got := recv(t, b); got.Type != KindRoomJoined {
		t.Fatalf("pair setup: got %q, want room_joined", got.Type)
	}
	return a, b
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
