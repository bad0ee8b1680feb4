package signaling

import (
	"log/slog"

	"github.com/awahab1116/video-streaming/internal/metrics"
)

// Hub is the central brain of the signaling server. It owns the room table
// and the connection registry and funnels every protocol decision through a
// single goroutine, so admission and relay for a room never interleave.
//
// The loop never writes to a socket. Outbound messages are enqueued on the
// receiving client's buffered Send channel; the client's writePump performs
// the actual network write.
type Hub struct {
	rooms    *RoomTable
	registry *Registry

	// Register is a channel for registering new clients.
	Register chan *Client

	// Unregister is a channel for unregistering clients.
	Unregister chan *Client

	// Inbound carries decoded client messages into the loop.
	Inbound chan *Message

	quit chan struct{}

	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHub creates a new Hub instance.
func NewHub(log *slog.Logger, m *metrics.Metrics) *Hub {
	h := &Hub{
		rooms:      NewRoomTable(),
		registry:   NewRegistry(),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan *Message),
		quit:       make(chan struct{}),
		log:        log.With("component", "hub"),
		metrics:    m,
	}
	m.RegisterGauge("connections_active", func() int64 { return int64(h.registry.Len()) })
	m.RegisterGauge("rooms_active", func() int64 { return int64(h.rooms.Count()) })
	return h
}

// Rooms exposes the room table for admission tests and gauges.
func (h *Hub) Rooms() *RoomTable { return h.rooms }

// Run starts the hub's main processing loop.
// This is the single goroutine that applies all protocol decisions.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registry.Register(client)
			h.metrics.Inc(metrics.EventConnectionOpened)
			h.log.Info("client connected", "conn", client.ID)

		case client := <-h.Unregister:
			h.dropClient(client)

		case message := <-h.Inbound:
			h.handle(message)

		case <-h.quit:
			return
		}
	}
}

// Stop terminates the loop. Pending clients are torn down by their pumps
// when the listener closes their sockets.
func (h *Hub) Stop() {
	close(h.quit)
}

// handle dispatches one decoded client message. Messages that were already
// queued when their sender got dropped are discarded.
func (h *Hub) handle(msg *Message) {
	if msg.client.closed {
		return
	}
	switch msg.Type {
	case KindJoin:
		h.handleJoin(msg)
	case KindStartCall:
		h.handleStartCall(msg)
	case KindOffer, KindAnswer:
		h.relayDescription(msg)
	case KindICECandidate:
		h.relayCandidate(msg)
	default:
		h.violation(msg.client, "unknown message type "+msg.Type)
	}
}

// handleJoin runs the admission decision and answers with exactly one of
// room_created, room_joined or full_room.
func (h *Hub) handleJoin(msg *Message) {
	c := msg.client
	if msg.RoomID == "" {
		h.violation(c, "join without room id")
		return
	}
	if cur := h.registry.Room(c.ID); cur != "" {
		h.violation(c, "join while already in room "+cur)
		return
	}

	switch h.rooms.Join(msg.RoomID, c.ID) {
	case OutcomeCreated:
		h.registry.SetRoom(c.ID, msg.RoomID)
		h.metrics.Inc(metrics.EventRoomCreated)
		h.log.Info("room created", "room", msg.RoomID, "conn", c.ID)
		h.send(c, &Message{Type: KindRoomCreated, RoomID: msg.RoomID})

	case OutcomeJoined:
		h.registry.SetRoom(c.ID, msg.RoomID)
		h.metrics.Inc(metrics.EventRoomJoined)
		h.log.Info("room joined, pair complete", "room", msg.RoomID, "conn", c.ID)
		h.send(c, &Message{Type: KindRoomJoined, RoomID: msg.RoomID})

	case OutcomeFull:
		h.metrics.Inc(metrics.EventRoomFull)
		h.log.Info("room full, join rejected", "room", msg.RoomID, "conn", c.ID)
		h.send(c, &Message{Type: KindFullRoom, RoomID: msg.RoomID})
	}
}

// handleStartCall relays the joiner's readiness signal to the other member
// of a complete room. The payload-free envelope is rebuilt rather than
// forwarded so the sender's room id does not leak on.
func (h *Hub) handleStartCall(msg *Message) {
	peer, ok := h.relayTarget(msg)
	if !ok {
		return
	}
	h.metrics.Inc(metrics.EventRelayStartCall)
	h.send(peer, &Message{Type: KindStartCall})
}

// relayDescription forwards an offer or answer to the sender's peer,
// passing the session description through untouched.
func (h *Hub) relayDescription(msg *Message) {
	peer, ok := h.relayTarget(msg)
	if !ok {
		return
	}
	if msg.Type == KindOffer {
		h.metrics.Inc(metrics.EventRelayOffer)
	} else {
		h.metrics.Inc(metrics.EventRelayAnswer)
	}
	h.log.Debug("relaying description", "type", msg.Type, "room", msg.RoomID, "from", msg.client.ID, "to", peer.ID)
	h.send(peer, &Message{Type: msg.Type, Payload: msg.Payload})
}

// relayCandidate forwards a trickled ICE candidate envelope unchanged,
// room id included.
func (h *Hub) relayCandidate(msg *Message) {
	peer, ok := h.relayTarget(msg)
	if !ok {
		return
	}
	h.metrics.Inc(metrics.EventRelayICECandidate)
	h.log.Debug("relaying candidate", "room", msg.RoomID, "from", msg.client.ID, "to", peer.ID)
	h.send(peer, &Message{Type: KindICECandidate, RoomID: msg.RoomID, Payload: msg.Payload})
}

// relayTarget validates the relay preconditions shared by start_call, offer,
// answer and ice_candidate: the named room is the sender's own and a second
// member is present. Violations are dropped with the connection left open.
func (h *Hub) relayTarget(msg *Message) (*Client, bool) {
	c := msg.client
	if msg.RoomID == "" {
		h.violation(c, msg.Type+" without room id")
		return nil, false
	}
	if cur := h.registry.Room(c.ID); cur != msg.RoomID {
		h.violation(c, msg.Type+" for room "+msg.RoomID+" the sender is not in")
		return nil, false
	}
	peerID, ok := h.rooms.Peer(msg.RoomID, c.ID)
	if !ok {
		h.violation(c, msg.Type+" with no peer in room "+msg.RoomID)
		return nil, false
	}
	peer, ok := h.registry.Get(peerID)
	if !ok {
		return nil, false
	}
	return peer, true
}

// dropClient tears one connection down: registry and room table entries go,
// the remaining room member (if any) learns about the departure, and the
// send channel closes so the writePump exits. Safe to reach twice for the
// same client; everything here runs on the hub goroutine.
func (h *Hub) dropClient(c *Client) {
	if c.closed {
		return
	}
	c.closed = true

	roomID := h.registry.Unregister(c.ID)
	h.metrics.Inc(metrics.EventConnectionClosed)
	h.log.Info("client disconnected", "conn", c.ID, "room", roomID)

	if roomID != "" {
		if remaining, ok := h.rooms.Leave(roomID, c.ID); ok {
			if peer, found := h.registry.Get(remaining); found {
				h.metrics.Inc(metrics.EventPeerLeftSent)
				h.log.Info("notifying remaining peer", "room", roomID, "conn", remaining)
				h.send(peer, &Message{Type: KindPeerLeft})
			}
		} else {
			h.log.Info("room deleted", "room", roomID)
		}
	}

	close(c.Send)
}

// send enqueues msg for c without ever blocking the loop. A client whose
// buffer has filled up cannot keep pace with its call and is dropped so it
// cannot stall every other room on the server.
func (h *Hub) send(c *Client, msg *Message) {
	if c.closed {
		return
	}
	select {
	case c.Send <- msg:
	default:
		h.metrics.Inc(metrics.EventSlowClientDropped)
		h.log.Warn("send buffer full, dropping client", "conn", c.ID)
		h.dropClient(c)
	}
}

// violation records a message that does not fit the protocol. The offending
// message is dropped and the connection stays open.
func (h *Hub) violation(c *Client, detail string) {
	h.metrics.Inc(metrics.EventProtocolViolation)
	h.log.Warn("protocol violation", "conn", c.ID, "detail", detail)
}
