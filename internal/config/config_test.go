package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestSignalingURL(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "localhost:8080", want: "ws://localhost:8080/ws"},
		{in: "example.com", want: "ws://example.com/ws"},
		{in: "ws://example.com", want: "ws://example.com/ws"},
		{in: "wss://example.com", want: "wss://example.com/ws"},
		{in: "https://call.example.com", want: "wss://call.example.com/ws"},
		{in: "http://10.0.0.2:9000", want: "ws://10.0.0.2:9000/ws"},
		{in: "example.com/ws", want: "ws://example.com/ws"},
		{in: "wss://example.com/ws", want: "wss://example.com/ws"},
		{in: "example.com/", want: "ws://example.com/ws"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "ws://", wantErr: true},
	}

	for _, tc := range cases {
		got, err := SignalingURL(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("SignalingURL(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("SignalingURL(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("SignalingURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLoadClientPrecedence(t *testing.T) {
	t.Setenv("VSTREAM_SERVER", "env.example.com")
	t.Setenv("VSTREAM_TURN_SERVER", "turn:env.example.com:3478")

	// Flag beats env.
	cfg, err := LoadClient(Options{Server: "flag.example.com"})
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.Server != "flag.example.com" {
		t.Fatalf("server: got %q, want flag value", cfg.Server)
	}
	// Env beats default.
	if cfg.TURNServer != "turn:env.example.com:3478" {
		t.Fatalf("turn: got %q, want env value", cfg.TURNServer)
	}
	if cfg.STUNServer != DefaultSTUN {
		t.Fatalf("stun: got %q, want default", cfg.STUNServer)
	}
	if cfg.SignalingURL != "ws://flag.example.com/ws" {
		t.Fatalf("signaling url: got %q", cfg.SignalingURL)
	}
}

func TestLoadClientSecure(t *testing.T) {
	cfg, err := LoadClient(Options{Server: "call.example.com", Secure: true})
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.SignalingURL != "wss://call.example.com/ws" {
		t.Fatalf("secure url: got %q", cfg.SignalingURL)
	}

	// An explicit plaintext scheme wins over --secure.
	cfg, err = LoadClient(Options{Server: "ws://call.example.com", Secure: true})
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.SignalingURL != "ws://call.example.com/ws" {
		t.Fatalf("explicit scheme url: got %q", cfg.SignalingURL)
	}
}

func TestClientICEServers(t *testing.T) {
	cfg := &Client{STUNServer: DefaultSTUN}
	servers := cfg.ICEServers()
	if len(servers) != 1 || servers[0].URLs[0] != DefaultSTUN {
		t.Fatalf("stun only: got %+v", servers)
	}

	cfg = &Client{
		STUNServer: DefaultSTUN,
		TURNServer: "turn:relay.example.com:3478",
		TURNUser:   "u",
		TURNPass:   "p",
	}
	servers = cfg.ICEServers()
	if len(servers) != 2 {
		t.Fatalf("with turn: got %d servers, want 2", len(servers))
	}
	if servers[1].Username != "u" || servers[1].Credential != "p" {
		t.Fatalf("turn credentials not carried: %+v", servers[1])
	}
}

func TestLoadServerDefaultsAndFlags(t *testing.T) {
	lookup := func(string) (string, bool) { return "", false }

	cfg, err := loadServer(lookup, nil)
	if err != nil {
		t.Fatalf("loadServer: %v", err)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("addr: got %q, want default", cfg.ListenAddr)
	}
	if cfg.LogLevel != slog.LevelInfo || cfg.LogFormat != "text" {
		t.Fatalf("log defaults: level %v format %q", cfg.LogLevel, cfg.LogFormat)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("origins default: %v", cfg.AllowedOrigins)
	}
	if cfg.ShutdownTimeout != DefaultShutdownTimeout {
		t.Fatalf("shutdown default: %v", cfg.ShutdownTimeout)
	}

	cfg, err = loadServer(lookup, []string{
		"-addr", ":9100",
		"-log-level", "debug",
		"-log-format", "json",
		"-allowed-origins", "https://a.example, https://b.example",
		"-shutdown-timeout", "30s",
	})
	if err != nil {
		t.Fatalf("loadServer with flags: %v", err)
	}
	if cfg.ListenAddr != ":9100" || cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "json" {
		t.Fatalf("flag overrides: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins split: %v", cfg.AllowedOrigins)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Fatalf("shutdown: %v", cfg.ShutdownTimeout)
	}
}

func TestLoadServerEnvBeatsDefaultFlagBeatsEnv(t *testing.T) {
	env := map[string]string{
		"VSTREAM_ADDR":      ":7000",
		"VSTREAM_LOG_LEVEL": "warn",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg, err := loadServer(lookup, nil)
	if err != nil {
		t.Fatalf("loadServer: %v", err)
	}
	if cfg.ListenAddr != ":7000" || cfg.LogLevel != slog.LevelWarn {
		t.Fatalf("env values not applied: %+v", cfg)
	}

	cfg, err = loadServer(lookup, []string{"-addr", ":7001"})
	if err != nil {
		t.Fatalf("loadServer: %v", err)
	}
	if cfg.ListenAddr != ":7001" {
		t.Fatalf("flag did not beat env: %q", cfg.ListenAddr)
	}
}

func TestLoadServerRejectsBadValues(t *testing.T) {
	lookup := func(string) (string, bool) { return "", false }

	if _, err := loadServer(lookup, []string{"-log-level", "loud"}); err == nil {
		t.Fatal("bad log level accepted")
	}
	if _, err := loadServer(lookup, []string{"-log-format", "xml"}); err == nil {
		t.Fatal("bad log format accepted")
	}
	if _, err := loadServer(lookup, []string{"-addr", ""}); err == nil {
		t.Fatal("empty listen address accepted")
	}
}
