// Package rtc wraps the pion WebRTC stack for the call client: peer
// connection setup, trickle ICE plumbing, and the msgpack control channel
// that rides alongside the media tracks.
package rtc

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
)

// Config carries everything needed to build a peer connection.
type Config struct {
	// ICEServers is the STUN/TURN list assembled from client config.
	ICEServers []webrtc.ICEServer

	// ForceRelay routes media through TURN even when a direct path exists.
	ForceRelay bool

	// Name and Version are announced to the peer in the control hello.
	Name    string
	Version string

	Log *slog.Logger
}

// Peer wraps a pion peer connection for one call. The initiator creates the
// control data channel before offering so it is negotiated with the rest of
// the session; the joiner picks it up via OnDataChannel.
type Peer struct {
	pc  *webrtc.PeerConnection
	cfg Config
	log *slog.Logger

	mu        sync.Mutex
	ctrl      *control
	onControl func(ControlEvent)

	done      chan struct{}
	closeOnce sync.Once
}

// New builds a peer connection with the configured ICE servers. When a TURN
// server is configured and either the user asked for relay or the local
// network looks like CGNAT/VPN territory, the transport policy is restricted
// to relayed candidates.
func New(cfg Config, initiator bool) (*Peer, error) {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	log := cfg.Log.With("component", "rtc")

	settings := webrtc.SettingEngine{LoggerFactory: &loggerFactory{log: log}}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settings))

	policy := webrtc.ICETransportPolicyAll
	if hasTURN(cfg.ICEServers) && (cfg.ForceRelay || ShouldForceRelay()) {
		policy = webrtc.ICETransportPolicyRelay
		log.Debug("restricting media to relayed candidates")
	}

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers:         cfg.ICEServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	p := &Peer{
		pc:   pc,
		cfg:  cfg,
		log:  log,
		done: make(chan struct{}),
	}

	if initiator {
		ordered := true
		dc, err := pc.CreateDataChannel(controlLabel, &webrtc.DataChannelInit{Ordered: &ordered})
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("create control channel: %w", err)
		}
		p.bindControl(dc)
	} else {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			if dc.Label() != controlLabel {
				log.Warn("ignoring unexpected data channel", "label", dc.Label())
				return
			}
			p.bindControl(dc)
		})
	}

	return p, nil
}

// bindControl attaches the keepalive protocol to the data channel and starts
// the ping loop once it opens.
func (p *Peer) bindControl(dc *webrtc.DataChannel) {
	ctrl := &control{
		send:   func(data []byte) error { return dc.Send(data) },
		now:    time.Now,
		notify: p.emitControl,
		name:   p.cfg.Name,
		ver:    p.cfg.Version,
	}

	p.mu.Lock()
	p.ctrl = ctrl
	p.mu.Unlock()

	dc.OnOpen(func() {
		ctrl.open()
		go p.pingLoop(ctrl)
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		ctrl.handle(msg.Data)
	})
}

func (p *Peer) pingLoop(ctrl *control) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctrl.ping()
		case <-p.done:
			return
		}
	}
}

func (p *Peer) emitControl(ev ControlEvent) {
	p.mu.Lock()
	fn := p.onControl
	p.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

// OnControl registers the callback for control channel events.
func (p *Peer) OnControl(fn func(ControlEvent)) {
	p.mu.Lock()
	p.onControl = fn
	p.mu.Unlock()
}

// AddTrack attaches a local track to the connection. RTCP from the remote end
// is drained and discarded so the interceptor chain keeps flowing.
func (p *Peer) AddTrack(track webrtc.TrackLocal) error {
	sender, err := p.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("add track: %w", err)
	}

	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

// CreateOffer produces and applies the local offer. Candidates trickle via
// OnCandidate as they are gathered.
func (p *Peer) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return offer, nil
}

// AcceptOffer applies the remote offer and produces the local answer.
func (p *Peer) AcceptOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set remote description: %w", err)
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return answer, nil
}

// AcceptAnswer applies the remote answer on the initiator side.
func (p *Peer) AcceptAnswer(answer webrtc.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

// AddCandidate applies a trickled remote candidate.
func (p *Peer) AddCandidate(candidate webrtc.ICECandidateInit) error {
	if err := p.pc.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("add ICE candidate: %w", err)
	}
	return nil
}

// OnCandidate registers the callback for locally gathered candidates. The
// nil candidate marking the end of gathering is filtered out.
func (p *Peer) OnCandidate(fn func(webrtc.ICECandidateInit)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		fn(c.ToJSON())
	})
}

// OnTrack registers the callback for remote media tracks.
func (p *Peer) OnTrack(fn func(*webrtc.TrackRemote)) {
	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(track)
	})
}

// OnStateChange registers the callback for connection state transitions.
func (p *Peer) OnStateChange(fn func(webrtc.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(fn)
}

// Bye asks the peer for a graceful hangup over the control channel.
func (p *Peer) Bye() {
	p.mu.Lock()
	ctrl := p.ctrl
	p.mu.Unlock()
	if ctrl != nil {
		ctrl.bye()
	}
}

// Close tears the connection down. Safe to call more than once.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		if err := p.pc.Close(); err != nil {
			p.log.Warn("closing peer connection", "err", err)
		}
	})
}

func hasTURN(servers []webrtc.ICEServer) bool {
	for _, s := range servers {
		for _, u := range s.URLs {
			if len(u) >= 4 && u[:4] == "turn" {
				return true
			}
		}
	}
	return false
}
