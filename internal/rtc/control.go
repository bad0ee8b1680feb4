package rtc

import (
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ControlKind enumerates the messages spoken on the in-call control channel.
type ControlKind string

const (
	ControlHello ControlKind = "hello"
	ControlPing  ControlKind = "ping"
	ControlPong  ControlKind = "pong"
	ControlBye   ControlKind = "bye"
)

const (
	controlLabel = "control"
	pingInterval = 5 * time.Second
)

// ControlMessage is the msgpack-framed envelope on the control data channel.
// hello carries the display name and client version, ping/pong correlate on
// Seq and carry the sender's clock in At for round-trip measurement.
type ControlMessage struct {
	Kind ControlKind `msgpack:"kind"`
	Name string      `msgpack:"name,omitempty"`
	Ver  string      `msgpack:"ver,omitempty"`
	Seq  uint64      `msgpack:"seq,omitempty"`
	At   int64       `msgpack:"at,omitempty"`
}

// EncodeControl serializes a control message for the data channel.
func EncodeControl(msg ControlMessage) ([]byte, error) {
	return msgpack.Marshal(msg)
}

// DecodeControl deserializes a control message received from the peer.
func DecodeControl(data []byte) (ControlMessage, error) {
	var msg ControlMessage
	err := msgpack.Unmarshal(data, &msg)
	return msg, err
}

// ControlEventKind tags notifications the control channel reports upward.
type ControlEventKind int

const (
	// ControlEventOpen fires when the channel opens on both ends.
	ControlEventOpen ControlEventKind = iota

	// ControlEventHello carries the peer's announced name and version.
	ControlEventHello

	// ControlEventRTT carries a fresh round-trip measurement.
	ControlEventRTT

	// ControlEventBye means the peer requested a graceful hangup.
	ControlEventBye
)

// ControlEvent is a notification from the control channel.
type ControlEvent struct {
	Kind ControlEventKind
	Name string
	Ver  string
	RTT  time.Duration
}

// control drives one side of the keepalive protocol. The transport is
// injected as a plain send function so the protocol logic stays independent
// of the data channel it runs on.
type control struct {
	send   func([]byte) error
	now    func() time.Time
	notify func(ControlEvent)
	name   string
	ver    string

	mu  sync.Mutex
	seq uint64
}

// open announces this side once the channel is usable.
func (c *control) open() {
	c.write(ControlMessage{Kind: ControlHello, Name: c.name, Ver: c.ver})
	c.notify(ControlEvent{Kind: ControlEventOpen})
}

// ping sends the next keepalive probe.
func (c *control) ping() {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	c.write(ControlMessage{Kind: ControlPing, Seq: seq, At: c.now().UnixNano()})
}

// bye requests a graceful hangup from the peer.
func (c *control) bye() {
	c.write(ControlMessage{Kind: ControlBye})
}

// handle processes one inbound frame. Malformed frames and unknown kinds are
// ignored so a newer peer can extend the protocol without breaking us.
func (c *control) handle(data []byte) {
	msg, err := DecodeControl(data)
	if err != nil {
		return
	}

	switch msg.Kind {
	case ControlHello:
		c.notify(ControlEvent{Kind: ControlEventHello, Name: msg.Name, Ver: msg.Ver})

	case ControlPing:
		c.write(ControlMessage{Kind: ControlPong, Seq: msg.Seq, At: msg.At})

	case ControlPong:
		rtt := c.now().Sub(time.Unix(0, msg.At))
		if rtt >= 0 {
			c.notify(ControlEvent{Kind: ControlEventRTT, RTT: rtt})
		}

	case ControlBye:
		c.notify(ControlEvent{Kind: ControlEventBye})
	}
}

func (c *control) write(msg ControlMessage) {
	data, err := EncodeControl(msg)
	if err != nil {
		return
	}
	c.send(data)
}
