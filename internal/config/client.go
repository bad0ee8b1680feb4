package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pion/webrtc/v4"
)

// Default client configuration values.
const (
	DefaultServer = "localhost:8080"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
)

// Client holds the call client configuration.
type Client struct {
	// Server is the signaling server address as given by the user.
	Server string

	// SignalingURL is the normalized websocket URL derived from Server.
	SignalingURL string

	// ICE servers for WebRTC.
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay routes media through TURN even when a direct path exists.
	ForceRelay bool

	// Name is the display name announced to the peer.
	Name string
}

// Options carries CLI flag overrides into LoadClient.
type Options struct {
	Server     string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
	Name       string

	// Secure upgrades a bare host[:port] to wss. URLs with an explicit
	// scheme keep it.
	Secure bool
}

// LoadClient reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func LoadClient(opts Options) (*Client, error) {
	server := firstOf(opts.Server, os.Getenv("VSTREAM_SERVER"), DefaultServer)
	if opts.Secure && !strings.Contains(server, "://") {
		server = "wss://" + server
	}
	stun := firstOf(opts.STUNServer, os.Getenv("VSTREAM_STUN_SERVER"), DefaultSTUN)
	turn := firstOf(opts.TURNServer, os.Getenv("VSTREAM_TURN_SERVER"), "")
	turnUser := firstOf(opts.TURNUser, os.Getenv("VSTREAM_TURN_USERNAME"), "")
	turnPass := firstOf(opts.TURNPass, os.Getenv("VSTREAM_TURN_PASSWORD"), "")

	name := firstOf(opts.Name, os.Getenv("VSTREAM_NAME"), "")
	if name == "" {
		if host, err := os.Hostname(); err == nil {
			name = host
		} else {
			name = "peer"
		}
	}

	wsURL, err := SignalingURL(server)
	if err != nil {
		return nil, err
	}

	return &Client{
		Server:       server,
		SignalingURL: wsURL,
		STUNServer:   stun,
		TURNServer:   turn,
		TURNUser:     turnUser,
		TURNPass:     turnPass,
		ForceRelay:   opts.ForceRelay,
		Name:         name,
	}, nil
}

// SignalingURL normalizes a server address into the websocket endpoint URL.
// A bare host[:port] becomes ws://host[:port]/ws; https:// and wss:// keep
// TLS. The /ws path is appended unless already present.
func SignalingURL(server string) (string, error) {
	s := strings.TrimSpace(server)
	if s == "" {
		return "", errors.New("empty server address")
	}

	scheme := "ws"
	switch {
	case strings.HasPrefix(s, "wss://"):
		scheme, s = "wss", strings.TrimPrefix(s, "wss://")
	case strings.HasPrefix(s, "https://"):
		scheme, s = "wss", strings.TrimPrefix(s, "https://")
	case strings.HasPrefix(s, "ws://"):
		s = strings.TrimPrefix(s, "ws://")
	case strings.HasPrefix(s, "http://"):
		s = strings.TrimPrefix(s, "http://")
	}

	s = strings.TrimSuffix(s, "/")
	if s == "" {
		return "", fmt.Errorf("invalid server address %q", server)
	}
	if strings.HasSuffix(s, "/ws") {
		return scheme + "://" + s, nil
	}
	return fmt.Sprintf("%s://%s/ws", scheme, s), nil
}

// ICEServers assembles the pion ICE server list from the configuration.
func (c *Client) ICEServers() []webrtc.ICEServer {
	servers := []webrtc.ICEServer{{URLs: []string{c.STUNServer}}}
	if c.TURNServer != "" {
		servers = append(servers, webrtc.ICEServer{
			URLs:       []string{c.TURNServer},
			Username:   c.TURNUser,
			Credential: c.TURNPass,
		})
	}
	return servers
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
