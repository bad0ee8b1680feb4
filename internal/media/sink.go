package media

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

// trackWriter is the slice of ivfwriter/oggwriter the sink needs.
type trackWriter interface {
	WriteRTP(*rtp.Packet) error
	Close() error
}

// SinkStats is a snapshot of what has arrived from the peer.
type SinkStats struct {
	VideoPackets int64
	VideoBytes   int64
	AudioPackets int64
	AudioBytes   int64
}

// Sink consumes remote tracks: it counts packets and bytes for the stats
// view and, when a record directory is configured, writes VP8 to IVF and
// Opus to Ogg alongside.
type Sink struct {
	recordDir string
	roomID    string
	log       *slog.Logger

	videoPackets atomic.Int64
	videoBytes   atomic.Int64
	audioPackets atomic.Int64
	audioBytes   atomic.Int64

	mu      sync.Mutex
	writers []trackWriter
}

// NewSink builds a sink. An empty recordDir disables recording.
func NewSink(recordDir, roomID string) *Sink {
	return &Sink{
		recordDir: recordDir,
		roomID:    roomID,
		log:       slog.Default().With("component", "media"),
	}
}

// Consume starts draining a remote track. It returns immediately; reading
// runs until the track ends.
func (s *Sink) Consume(track *webrtc.TrackRemote) {
	mime := track.Codec().MimeType
	s.log.Info("remote track started", "kind", track.Kind().String(), "codec", mime)

	writer := s.openWriter(mime)
	go s.drain(track, writer)
}

func (s *Sink) openWriter(mime string) trackWriter {
	if s.recordDir == "" {
		return nil
	}

	var (
		w   trackWriter
		err error
	)
	switch {
	case strings.EqualFold(mime, webrtc.MimeTypeVP8):
		path := filepath.Join(s.recordDir, s.roomID+"-video.ivf")
		w, err = ivfwriter.New(path)
	case strings.EqualFold(mime, webrtc.MimeTypeOpus):
		path := filepath.Join(s.recordDir, s.roomID+"-audio.ogg")
		w, err = oggwriter.New(path, 48000, 2)
	default:
		s.log.Warn("not recording unsupported codec", "codec", mime)
		return nil
	}
	if err != nil {
		s.log.Warn("recording disabled for track", "codec", mime, "err", err)
		return nil
	}

	s.mu.Lock()
	s.writers = append(s.writers, w)
	s.mu.Unlock()
	return w
}

func (s *Sink) drain(track *webrtc.TrackRemote, writer trackWriter) {
	video := track.Kind() == webrtc.RTPCodecTypeVideo

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			s.log.Debug("remote track ended", "kind", track.Kind().String(), "err", err)
			return
		}

		size := int64(pkt.MarshalSize())
		if video {
			s.videoPackets.Add(1)
			s.videoBytes.Add(size)
		} else {
			s.audioPackets.Add(1)
			s.audioBytes.Add(size)
		}

		if writer != nil {
			if err := writer.WriteRTP(pkt); err != nil {
				s.log.Warn("recording write failed, continuing without", "err", err)
				writer = nil
			}
		}
	}
}

// Stats returns a snapshot of the received counters.
func (s *Sink) Stats() SinkStats {
	return SinkStats{
		VideoPackets: s.videoPackets.Load(),
		VideoBytes:   s.videoBytes.Load(),
		AudioPackets: s.audioPackets.Load(),
		AudioBytes:   s.audioBytes.Load(),
	}
}

// Close flushes and closes any recording files.
func (s *Sink) Close() {
	s.mu.Lock()
	writers := s.writers
	s.writers = nil
	s.mu.Unlock()

	for _, w := range writers {
		if err := w.Close(); err != nil {
			s.log.Warn("closing recording", "err", err)
		}
	}
}
