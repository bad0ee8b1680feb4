package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/awahab1116/video-streaming/internal/config"
	"github.com/awahab1116/video-streaming/internal/metrics"
	"github.com/awahab1116/video-streaming/internal/signaling"
)

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	RoomID  string          `json:"room_id,omitempty"`
}

func startTestServer(t *testing.T, origins []string) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	hub := signaling.NewHub(logger, m)
	go hub.Run()
	t.Cleanup(hub.Stop)

	s := New(config.Server{ListenAddr: ":0", AllowedOrigins: origins}, hub, m, logger)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendWire(t *testing.T, conn *websocket.Conn, msg wireMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", msg.Type, err)
	}
}

func recvWire(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg wireMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestSignalingSessionOverWebSocket(t *testing.T) {
	ts := startTestServer(t, []string{"*"})

	a := dialWS(t, ts)
	sendWire(t, a, wireMessage{Type: "join", RoomID: "demo"})
	if got := recvWire(t, a); got.Type != "room_created" || got.RoomID != "demo" {
		t.Fatalf("first join: %+v", got)
	}

	b := dialWS(t, ts)
	sendWire(t, b, wireMessage{Type: "join", RoomID: "demo"})
	if got := recvWire(t, b); got.Type != "room_joined" || got.RoomID != "demo" {
		t.Fatalf("second join: %+v", got)
	}

	c := dialWS(t, ts)
	sendWire(t, c, wireMessage{Type: "join", RoomID: "demo"})
	if got := recvWire(t, c); got.Type != "full_room" {
		t.Fatalf("third join: %+v", got)
	}

	// Joiner announces readiness; the initiator hears it.
	sendWire(t, b, wireMessage{Type: "start_call", RoomID: "demo"})
	if got := recvWire(t, a); got.Type != "start_call" || got.RoomID != "" {
		t.Fatalf("start_call relay: %+v", got)
	}

	// Offer and answer pass through byte for byte, room id stripped.
	offer := json.RawMessage(`{"type":"offer","sdp":"v=0\r\ns=call\r\n"}`)
	sendWire(t, a, wireMessage{Type: "offer", RoomID: "demo", Payload: offer})
	got := recvWire(t, b)
	if got.Type != "offer" || got.RoomID != "" || string(got.Payload) != string(offer) {
		t.Fatalf("offer relay: %+v", got)
	}

	answer := json.RawMessage(`{"type":"answer","sdp":"v=0\r\n"}`)
	sendWire(t, b, wireMessage{Type: "answer", RoomID: "demo", Payload: answer})
	if got := recvWire(t, a); got.Type != "answer" || string(got.Payload) != string(answer) {
		t.Fatalf("answer relay: %+v", got)
	}

	// Candidates keep their full envelope.
	cand := json.RawMessage(`{"candidate":"candidate:1 1 udp 1 192.0.2.7 9 typ host","sdpMLineIndex":0}`)
	sendWire(t, a, wireMessage{Type: "ice_candidate", RoomID: "demo", Payload: cand})
	got = recvWire(t, b)
	if got.Type != "ice_candidate" || got.RoomID != "demo" || string(got.Payload) != string(cand) {
		t.Fatalf("candidate relay: %+v", got)
	}

	// Departure notifies the remaining member.
	b.Close()
	if got := recvWire(t, a); got.Type != "peer_left" {
		t.Fatalf("after departure: %+v", got)
	}
}

func TestHealthz(t *testing.T) {
	ts := startTestServer(t, []string{"*"})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status: %d", resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("healthz body: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("healthz status field: %q", body.Status)
	}
}

func TestMetricsExposition(t *testing.T) {
	ts := startTestServer(t, []string{"*"})

	a := dialWS(t, ts)
	sendWire(t, a, wireMessage{Type: "join", RoomID: "metrics"})
	recvWire(t, a)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("metrics body: %v", err)
	}
	body := string(raw)

	for _, want := range []string{
		"# TYPE vstream_signaling_events_total counter",
		`vstream_signaling_events_total{event="room_created"} 1`,
		`vstream_signaling_events_total{event="connection_opened"} 1`,
		"vstream_rooms_active 1",
		"vstream_connections_active 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestOriginPolicy(t *testing.T) {
	ts := startTestServer(t, []string{"https://app.example"})

	// Browsers from unlisted origins are refused during the handshake.
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	if err == nil {
		t.Fatal("dial with rejected origin succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("rejected origin response: %+v", resp)
	}

	// Listed origins and header-less clients connect fine.
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), http.Header{"Origin": []string{"https://app.example"}})
	if err != nil {
		t.Fatalf("dial with allowed origin: %v", err)
	}
	conn.Close()

	conn, _, err = websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial without origin: %v", err)
	}
	conn.Close()
}
