// Package media provides the call's local media sources and remote sinks.
// Capture is delegated to files on disk: a VP8 IVF file stands in for the
// camera and an Opus Ogg file for the microphone, fed to the peer at their
// native cadence.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

// ErrNoSources means neither a video nor an audio file was configured.
var ErrNoSources = errors.New("no media sources configured")

// Opus frames its pages at a fixed cadence.
const oggPageDuration = 20 * time.Millisecond

// Constraints selects which files feed the call. At least one must be set.
type Constraints struct {
	VideoFile string // IVF container, VP8
	AudioFile string // Ogg container, Opus
}

// Stream owns the local tracks fed from disk. Playback loops the files until
// stopped, so a short clip keeps a long call alive.
type Stream struct {
	videoFile string
	audioFile string
	video     *webrtc.TrackLocalStaticSample
	audio     *webrtc.TrackLocalStaticSample
	log       *slog.Logger

	cancel   context.CancelFunc
	stopOnce sync.Once
}

// Acquire validates the configured files and builds the local tracks. The
// files are opened once up front so a bad path fails before the peer
// connection is built, not mid-handshake.
func Acquire(c Constraints) (*Stream, error) {
	if c.VideoFile == "" && c.AudioFile == "" {
		return nil, ErrNoSources
	}

	s := &Stream{
		videoFile: c.VideoFile,
		audioFile: c.AudioFile,
		log:       slog.Default().With("component", "media"),
	}

	if c.VideoFile != "" {
		if err := probeIVF(c.VideoFile); err != nil {
			return nil, fmt.Errorf("video source %s: %w", c.VideoFile, err)
		}
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "vstream")
		if err != nil {
			return nil, fmt.Errorf("create video track: %w", err)
		}
		s.video = track
	}

	if c.AudioFile != "" {
		if err := probeOgg(c.AudioFile); err != nil {
			return nil, fmt.Errorf("audio source %s: %w", c.AudioFile, err)
		}
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "vstream")
		if err != nil {
			return nil, fmt.Errorf("create audio track: %w", err)
		}
		s.audio = track
	}

	return s, nil
}

// Tracks returns the local tracks to attach to the peer connection.
func (s *Stream) Tracks() []webrtc.TrackLocal {
	var tracks []webrtc.TrackLocal
	if s.video != nil {
		tracks = append(tracks, s.video)
	}
	if s.audio != nil {
		tracks = append(tracks, s.audio)
	}
	return tracks
}

// Play starts feeding the tracks. Samples written before the connection is
// up are dropped by pion, so starting during negotiation is fine.
func (s *Stream) Play(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.video != nil {
		go s.playVideo(ctx)
	}
	if s.audio != nil {
		go s.playAudio(ctx)
	}
}

// Stop halts playback. Safe to call more than once, also before Play.
func (s *Stream) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// playVideo feeds IVF frames at the cadence the file header prescribes,
// reopening the file at EOF to loop.
func (s *Stream) playVideo(ctx context.Context) {
	for ctx.Err() == nil {
		file, err := os.Open(s.videoFile)
		if err != nil {
			s.log.Warn("video playback stopped", "err", err)
			return
		}

		ivf, header, err := ivfreader.NewWith(file)
		if err != nil {
			file.Close()
			s.log.Warn("video playback stopped", "err", err)
			return
		}

		frameDuration := time.Millisecond *
			time.Duration((float32(header.TimebaseNumerator)/float32(header.TimebaseDenominator))*1000)

		ticker := time.NewTicker(frameDuration)
		for {
			frame, _, err := ivf.ParseNextFrame()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				ticker.Stop()
				file.Close()
				s.log.Warn("video playback stopped", "err", err)
				return
			}

			if err := s.video.WriteSample(pionmedia.Sample{Data: frame, Duration: frameDuration}); err != nil {
				ticker.Stop()
				file.Close()
				s.log.Warn("video playback stopped", "err", err)
				return
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				ticker.Stop()
				file.Close()
				return
			}
		}
		ticker.Stop()
		file.Close()
	}
}

// playAudio feeds Ogg pages at the fixed Opus page cadence, looping at EOF.
func (s *Stream) playAudio(ctx context.Context) {
	for ctx.Err() == nil {
		file, err := os.Open(s.audioFile)
		if err != nil {
			s.log.Warn("audio playback stopped", "err", err)
			return
		}

		ogg, _, err := oggreader.NewWith(file)
		if err != nil {
			file.Close()
			s.log.Warn("audio playback stopped", "err", err)
			return
		}

		ticker := time.NewTicker(oggPageDuration)
		for {
			page, _, err := ogg.ParseNextPage()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				ticker.Stop()
				file.Close()
				s.log.Warn("audio playback stopped", "err", err)
				return
			}

			if err := s.audio.WriteSample(pionmedia.Sample{Data: page, Duration: oggPageDuration}); err != nil {
				ticker.Stop()
				file.Close()
				s.log.Warn("audio playback stopped", "err", err)
				return
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				ticker.Stop()
				file.Close()
				return
			}
		}
		ticker.Stop()
		file.Close()
	}
}

func probeIVF(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, _, err := ivfreader.NewWith(file); err != nil {
		return fmt.Errorf("not a valid IVF file: %w", err)
	}
	return nil
}

func probeOgg(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, _, err := oggreader.NewWith(file); err != nil {
		return fmt.Errorf("not a valid Ogg file: %w", err)
	}
	return nil
}
