package signaling

import "encoding/json"

// Message kinds spoken over the signaling socket. Clients send the first
// five; the server answers admission attempts with the room decision kinds
// and relays the handshake kinds between peers.
const (
	KindJoin         = "join"
	KindStartCall    = "start_call"
	KindOffer        = "offer"
	KindAnswer       = "answer"
	KindICECandidate = "ice_candidate"

	KindRoomCreated = "room_created"
	KindRoomJoined  = "room_joined"
	KindFullRoom    = "full_room"
	KindPeerLeft    = "peer_left"
)

// Message defines the structure for all C2S (Client to Server)
// and S2C (Server to Client) websocket messages.
//
// Payload is opaque to the server: session descriptions and ICE candidates
// are relayed byte for byte, never parsed.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	RoomID  string          `json:"room_id,omitempty"`

	// client is the client that sent the message.
	// It's used internally by the Hub and not sent over JSON.
	client *Client `json:"-"`
}
