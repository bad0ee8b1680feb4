package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/awahab1116/video-streaming/internal/rtc"
	"github.com/awahab1116/video-streaming/internal/signaling"
)

// State names a position in the call lifecycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingRoomDecision
	StateRoleInitiator
	StateRoleJoiner
	StateNegotiating
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingRoomDecision:
		return "awaiting_room_decision"
	case StateRoleInitiator:
		return "role_initiator"
	case StateRoleJoiner:
		return "role_joiner"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventKind tags notifications the endpoint reports to its consumer.
type EventKind int

const (
	EventRoomCreated EventKind = iota
	EventRoomJoined
	EventRoomFull
	EventNegotiating
	EventConnected
	EventPeerHello
	EventRTT
	EventPeerLeft
	EventClosed
)

// Event is one notification from the endpoint. The UI layer consumes these;
// the endpoint itself never touches the terminal.
type Event struct {
	Kind        EventKind
	State       State
	PeerName    string
	PeerVersion string
	RTT         time.Duration
	Err         error
}

// Signaler is the signaling transport the endpoint drives.
type Signaler interface {
	Send(*signaling.Message)
	Incoming() <-chan *signaling.Message
	Close()
}

// Media is the local capture source attached to the call.
type Media interface {
	Tracks() []webrtc.TrackLocal
	Play(context.Context)
	Stop()
}

// Peer is the slice of the WebRTC wrapper the state machine drives.
type Peer interface {
	AddTrack(webrtc.TrackLocal) error
	CreateOffer() (webrtc.SessionDescription, error)
	AcceptOffer(webrtc.SessionDescription) (webrtc.SessionDescription, error)
	AcceptAnswer(webrtc.SessionDescription) error
	AddCandidate(webrtc.ICECandidateInit) error
	OnCandidate(func(webrtc.ICECandidateInit))
	OnTrack(func(*webrtc.TrackRemote))
	OnStateChange(func(webrtc.PeerConnectionState))
	OnControl(func(rtc.ControlEvent))
	Bye()
	Close()
}

// Options configures an Endpoint.
type Options struct {
	// RoomID is the room to join or create. Must be non-empty; an empty id
	// is rejected here, before any frame reaches the server.
	RoomID string

	Signaler Signaler

	// Acquire produces the local media once the room decision arrives.
	Acquire func() (Media, error)

	// NewPeer builds the WebRTC wrapper when negotiation starts. The
	// initiator flag decides which side creates the control channel.
	NewPeer func(initiator bool) (Peer, error)

	// ConsumeTrack, when set, receives each remote track (stats/recording).
	ConsumeTrack func(*webrtc.TrackRemote)

	Log *slog.Logger
}

// localEvent carries pion callbacks and external requests onto the loop
// goroutine, so every state decision runs single-threaded.
type localEvent struct {
	kind      localEventKind
	candidate webrtc.ICECandidateInit
	track     *webrtc.TrackRemote
	connState webrtc.PeerConnectionState
	control   rtc.ControlEvent
}

type localEventKind int

const (
	localCandidate localEventKind = iota
	localTrack
	localConnState
	localControl
	localHangup
)

// Endpoint is the client-side signaling state machine. One goroutine (Run)
// owns all state; pion callbacks and Hangup post onto the local channel.
//
// Idle → AwaitingRoomDecision → (RoleInitiator | RoleJoiner) → Negotiating →
// Connected → Closed. Messages that do not fit the current state are logged
// and dropped, never acted on.
type Endpoint struct {
	roomID   string
	signaler Signaler
	acquire  func() (Media, error)
	newPeer  func(initiator bool) (Peer, error)
	consume  func(*webrtc.TrackRemote)
	log      *slog.Logger

	mu    sync.RWMutex
	state State

	media Media
	peer  Peer

	local  chan localEvent
	events chan Event
	done   chan struct{}
}

// New validates the options and builds an Endpoint in the Idle state.
func New(opts Options) (*Endpoint, error) {
	if opts.RoomID == "" {
		return nil, ErrEmptyRoomID
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	return &Endpoint{
		roomID:   opts.RoomID,
		signaler: opts.Signaler,
		acquire:  opts.Acquire,
		newPeer:  opts.NewPeer,
		consume:  opts.ConsumeTrack,
		log:      log.With("component", "endpoint", "room", opts.RoomID),
		state:    StateIdle,
		local:    make(chan localEvent, 64),
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
	}, nil
}

// Events returns the notification stream. It closes when the endpoint is
// fully torn down, so consumers can range over it.
func (e *Endpoint) Events() <-chan Event {
	return e.events
}

// State reports the current state. For the loop goroutine's own decisions
// the field is read directly; this accessor exists for consumers and tests.
func (e *Endpoint) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Endpoint) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Hangup requests a graceful teardown from any goroutine. Safe to call more
// than once and after the endpoint has closed.
func (e *Endpoint) Hangup() {
	select {
	case e.local <- localEvent{kind: localHangup}:
	case <-e.done:
	}
}

// Run sends the join request and processes events until the call ends. It
// owns all endpoint state and closes the Events channel on return.
func (e *Endpoint) Run(ctx context.Context) {
	defer close(e.events)
	defer close(e.done)

	e.signaler.Send(&signaling.Message{Type: signaling.KindJoin, RoomID: e.roomID})
	e.setState(StateAwaitingRoomDecision)

	for {
		select {
		case msg, ok := <-e.signaler.Incoming():
			if !ok {
				e.teardown(ErrTransportClosed)
				return
			}
			e.handleSignal(msg)

		case ev := <-e.local:
			e.handleLocal(ev)

		case <-ctx.Done():
			e.teardown(nil)
			return
		}

		if e.State() == StateClosed {
			return
		}
	}
}

// handleSignal applies one server message against the transition table.
func (e *Endpoint) handleSignal(msg *signaling.Message) {
	state := e.State()

	switch msg.Type {
	case signaling.KindRoomCreated:
		if state != StateAwaitingRoomDecision {
			e.drop(msg.Type, state)
			return
		}
		if !e.acquireMedia() {
			return
		}
		e.setState(StateRoleInitiator)
		e.emit(Event{Kind: EventRoomCreated, State: StateRoleInitiator})
		e.log.Info("room created, waiting for a peer")

	case signaling.KindRoomJoined:
		if state != StateAwaitingRoomDecision {
			e.drop(msg.Type, state)
			return
		}
		if !e.acquireMedia() {
			return
		}
		e.setState(StateRoleJoiner)
		// Media is up; tell the initiator we are ready to be called.
		e.signaler.Send(&signaling.Message{Type: signaling.KindStartCall, RoomID: e.roomID})
		e.emit(Event{Kind: EventRoomJoined, State: StateRoleJoiner})
		e.log.Info("joined room, start_call sent")

	case signaling.KindFullRoom:
		if state != StateAwaitingRoomDecision {
			e.drop(msg.Type, state)
			return
		}
		e.emit(Event{Kind: EventRoomFull, State: state})
		e.teardown(ErrRoomFull)

	case signaling.KindStartCall:
		if state != StateRoleInitiator {
			e.drop(msg.Type, state)
			return
		}
		e.startOffer()

	case signaling.KindOffer:
		if state != StateRoleJoiner {
			e.drop(msg.Type, state)
			return
		}
		e.answerOffer(msg.Payload)

	case signaling.KindAnswer:
		if state != StateNegotiating {
			e.drop(msg.Type, state)
			return
		}
		e.applyAnswer(msg.Payload)

	case signaling.KindICECandidate:
		if state != StateNegotiating && state != StateConnected {
			e.drop(msg.Type, state)
			return
		}
		e.applyCandidate(msg.Payload)

	case signaling.KindPeerLeft:
		e.emit(Event{Kind: EventPeerLeft, State: state})
		e.log.Info("peer left the room")
		e.teardown(nil)

	default:
		e.drop(msg.Type, state)
	}
}

// handleLocal applies one event from a pion callback or an external request.
func (e *Endpoint) handleLocal(ev localEvent) {
	state := e.State()

	switch ev.kind {
	case localCandidate:
		payload, err := json.Marshal(ev.candidate)
		if err != nil {
			e.log.Warn("marshal local candidate", "err", err)
			return
		}
		e.signaler.Send(&signaling.Message{
			Type:    signaling.KindICECandidate,
			RoomID:  e.roomID,
			Payload: payload,
		})

	case localTrack:
		if e.consume != nil && ev.track != nil {
			e.consume(ev.track)
		}
		e.connectedIfNegotiating()

	case localConnState:
		switch ev.connState {
		case webrtc.PeerConnectionStateConnected:
			e.connectedIfNegotiating()
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			if state != StateClosed {
				e.log.Warn("peer connection lost", "state", ev.connState.String())
				e.teardown(ErrConnectionFailed)
			}
		default:
			e.log.Debug("peer connection state", "state", ev.connState.String())
		}

	case localControl:
		switch ev.control.Kind {
		case rtc.ControlEventOpen:
			e.connectedIfNegotiating()
		case rtc.ControlEventHello:
			e.emit(Event{
				Kind:        EventPeerHello,
				State:       state,
				PeerName:    ev.control.Name,
				PeerVersion: ev.control.Ver,
			})
		case rtc.ControlEventRTT:
			e.emit(Event{Kind: EventRTT, State: state, RTT: ev.control.RTT})
		case rtc.ControlEventBye:
			e.emit(Event{Kind: EventPeerLeft, State: state})
			e.log.Info("peer hung up")
			e.teardown(nil)
		}

	case localHangup:
		if e.peer != nil {
			e.peer.Bye()
		}
		e.teardown(nil)
	}
}

// acquireMedia runs the media side effect shared by both room decisions.
// Failure closes the endpoint; the server learns via our disconnect.
func (e *Endpoint) acquireMedia() bool {
	media, err := e.acquire()
	if err != nil {
		e.log.Error("acquiring local media", "err", err)
		e.teardown(WrapError("acquire media", ErrMediaUnavailable, err.Error()))
		return false
	}
	e.media = media
	return true
}

// startOffer is the initiator's entry into negotiation: build the peer,
// attach media, offer.
func (e *Endpoint) startOffer() {
	if !e.buildPeer(true) {
		return
	}

	offer, err := e.peer.CreateOffer()
	if err != nil {
		e.log.Error("creating offer", "err", err)
		e.teardown(NewError("create offer", err))
		return
	}

	payload, err := json.Marshal(offer)
	if err != nil {
		e.teardown(NewError("marshal offer", err))
		return
	}

	e.signaler.Send(&signaling.Message{
		Type:    signaling.KindOffer,
		RoomID:  e.roomID,
		Payload: payload,
	})
	e.enterNegotiating()
}

// answerOffer is the joiner's entry into negotiation.
func (e *Endpoint) answerOffer(payload []byte) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		e.log.Warn("discarding malformed offer", "err", err)
		return
	}

	if !e.buildPeer(false) {
		return
	}

	answer, err := e.peer.AcceptOffer(offer)
	if err != nil {
		e.log.Error("answering offer", "err", err)
		e.teardown(NewError("accept offer", err))
		return
	}

	answerPayload, err := json.Marshal(answer)
	if err != nil {
		e.teardown(NewError("marshal answer", err))
		return
	}

	e.signaler.Send(&signaling.Message{
		Type:    signaling.KindAnswer,
		RoomID:  e.roomID,
		Payload: answerPayload,
	})
	e.enterNegotiating()
}

func (e *Endpoint) applyAnswer(payload []byte) {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &answer); err != nil {
		e.log.Warn("discarding malformed answer", "err", err)
		return
	}
	if err := e.peer.AcceptAnswer(answer); err != nil {
		e.log.Error("applying answer", "err", err)
		e.teardown(NewError("accept answer", err))
	}
}

func (e *Endpoint) applyCandidate(payload []byte) {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &candidate); err != nil {
		e.log.Warn("discarding malformed candidate", "err", err)
		return
	}
	if err := e.peer.AddCandidate(candidate); err != nil {
		// A single bad candidate is not fatal; others may still connect.
		e.log.Warn("adding remote candidate", "err", err)
	}
}

// buildPeer constructs the WebRTC wrapper, routes its callbacks onto the
// loop, and attaches the local tracks.
func (e *Endpoint) buildPeer(initiator bool) bool {
	peer, err := e.newPeer(initiator)
	if err != nil {
		e.log.Error("creating peer connection", "err", err)
		e.teardown(NewError("create peer", err))
		return false
	}
	e.peer = peer

	peer.OnCandidate(func(c webrtc.ICECandidateInit) {
		e.post(localEvent{kind: localCandidate, candidate: c})
	})
	peer.OnTrack(func(t *webrtc.TrackRemote) {
		e.post(localEvent{kind: localTrack, track: t})
	})
	peer.OnStateChange(func(s webrtc.PeerConnectionState) {
		e.post(localEvent{kind: localConnState, connState: s})
	})
	peer.OnControl(func(ev rtc.ControlEvent) {
		e.post(localEvent{kind: localControl, control: ev})
	})

	for _, track := range e.media.Tracks() {
		if err := peer.AddTrack(track); err != nil {
			e.log.Error("attaching local track", "err", err)
			e.teardown(NewError("add track", err))
			return false
		}
	}
	return true
}

func (e *Endpoint) enterNegotiating() {
	e.setState(StateNegotiating)
	e.media.Play(context.Background())
	e.emit(Event{Kind: EventNegotiating, State: StateNegotiating})
	e.log.Info("negotiation started")
}

// connectedIfNegotiating promotes the call on the first sign of a usable
// path: a remote track, the control channel opening, or pion reporting
// connected. Later signals of the same kind are no-ops.
func (e *Endpoint) connectedIfNegotiating() {
	if e.State() != StateNegotiating {
		return
	}
	e.setState(StateConnected)
	e.emit(Event{Kind: EventConnected, State: StateConnected})
	e.log.Info("call connected")
}

// post hands a callback event to the loop without ever blocking a pion
// goroutine. Events raced against shutdown are dropped; teardown handles
// the rest.
func (e *Endpoint) post(ev localEvent) {
	select {
	case e.local <- ev:
	case <-e.done:
	default:
		e.log.Warn("local event queue full, dropping event")
	}
}

// drop records an out-of-table message. Per protocol policy the message is
// ignored and the session continues.
func (e *Endpoint) drop(kind string, state State) {
	e.log.Warn("ignoring message out of turn", "type", kind, "state", state.String())
}

// teardown releases everything exactly once: local media stops, the peer
// connection and the signaling socket close, and the consumer gets a final
// Closed event.
func (e *Endpoint) teardown(err error) {
	if e.State() == StateClosed {
		return
	}
	e.setState(StateClosed)

	if e.media != nil {
		e.media.Stop()
	}
	if e.peer != nil {
		e.peer.Close()
	}
	e.signaler.Close()

	e.emit(Event{Kind: EventClosed, State: StateClosed, Err: err})
	e.log.Info("session closed", "err", err)
}

// emit never blocks the loop; the events channel is buffered generously and
// a consumer that stopped reading only loses notifications, not teardown.
func (e *Endpoint) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}
