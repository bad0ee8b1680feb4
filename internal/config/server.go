package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/awahab1116/video-streaming/internal/logging"
)

const (
	envListenAddr      = "VSTREAM_ADDR"
	envLogLevel        = "VSTREAM_LOG_LEVEL"
	envLogFormat       = "VSTREAM_LOG_FORMAT"
	envAllowedOrigins  = "VSTREAM_ALLOWED_ORIGINS"
	envShutdownTimeout = "VSTREAM_SHUTDOWN_TIMEOUT"

	DefaultListenAddr      = ":8080"
	DefaultShutdownTimeout = 5 * time.Second
)

// Server holds the signaling server configuration.
type Server struct {
	ListenAddr      string
	LogLevel        slog.Level
	LogFormat       string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// LoadServer reads server configuration with flag > env > default precedence.
func LoadServer(args []string) (Server, error) {
	return loadServer(os.LookupEnv, args)
}

func loadServer(lookup func(string) (string, bool), args []string) (Server, error) {
	listenAddr := envOrDefault(lookup, envListenAddr, DefaultListenAddr)
	logLevelStr := envOrDefault(lookup, envLogLevel, "info")
	logFormatStr := envOrDefault(lookup, envLogFormat, "text")
	originsStr := envOrDefault(lookup, envAllowedOrigins, "*")

	shutdownTimeout := DefaultShutdownTimeout
	if raw, ok := lookup(envShutdownTimeout); ok && strings.TrimSpace(raw) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return Server{}, fmt.Errorf("invalid %s %q: %w", envShutdownTimeout, raw, err)
		}
		shutdownTimeout = d
	}

	fs := flag.NewFlagSet("vstream-server", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.StringVar(&listenAddr, "addr", listenAddr, "HTTP listen address (env "+envListenAddr+")")
	fs.StringVar(&logLevelStr, "log-level", logLevelStr, "Log level: debug, info, warn, error (env "+envLogLevel+")")
	fs.StringVar(&logFormatStr, "log-format", logFormatStr, "Log format: text or json (env "+envLogFormat+")")
	fs.StringVar(&originsStr, "allowed-origins", originsStr, "Comma-separated allowed Origin header values, * allows any (env "+envAllowedOrigins+")")
	fs.DurationVar(&shutdownTimeout, "shutdown-timeout", shutdownTimeout, "Graceful shutdown timeout (env "+envShutdownTimeout+")")
	if err := fs.Parse(args); err != nil {
		return Server{}, err
	}

	if strings.TrimSpace(listenAddr) == "" {
		return Server{}, errors.New("listen address must not be empty")
	}
	level, err := logging.ParseLevel(logLevelStr)
	if err != nil {
		return Server{}, err
	}
	format := strings.ToLower(strings.TrimSpace(logFormatStr))
	switch format {
	case "text", "json":
	default:
		return Server{}, fmt.Errorf("unsupported log format %q", logFormatStr)
	}

	return Server{
		ListenAddr:      listenAddr,
		LogLevel:        level,
		LogFormat:       format,
		AllowedOrigins:  splitList(originsStr),
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
