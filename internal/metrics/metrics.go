package metrics

import "sync"

// Event names counted by the signaling server.
const (
	EventConnectionOpened  = "connection_opened"
	EventConnectionClosed  = "connection_closed"
	EventRoomCreated       = "room_created"
	EventRoomJoined        = "room_joined"
	EventRoomFull          = "room_full"
	EventRelayStartCall    = "relay_start_call"
	EventRelayOffer        = "relay_offer"
	EventRelayAnswer       = "relay_answer"
	EventRelayICECandidate = "relay_ice_candidate"
	EventPeerLeftSent      = "peer_left_sent"
	EventProtocolViolation = "protocol_violation"
	EventSlowClientDropped = "slow_client_dropped"
)

// Metrics is a minimal, concurrency-safe counter registry.
//
// Counters only ever go up; point-in-time values such as active connections
// or open rooms are exposed as gauges read from callbacks at scrape time.
type Metrics struct {
	mu     sync.Mutex
	m      map[string]uint64
	gauges map[string]func() int64
}

func New() *Metrics {
	return &Metrics{
		m:      make(map[string]uint64),
		gauges: make(map[string]func() int64),
	}
}

func (m *Metrics) Inc(name string) {
	m.mu.Lock()
	m.m[name]++
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}

// RegisterGauge exposes fn under name at scrape time. Re-registering a name
// replaces the previous callback.
func (m *Metrics) RegisterGauge(name string, fn func() int64) {
	m.mu.Lock()
	m.gauges[name] = fn
	m.mu.Unlock()
}

// Gauges returns the registered gauge callbacks.
func (m *Metrics) Gauges() map[string]func() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]func() int64, len(m.gauges))
	for k, fn := range m.gauges {
		out[k] = fn
	}
	return out
}
