package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/awahab1116/video-streaming/internal/config"
	"github.com/awahab1116/video-streaming/internal/logging"
	"github.com/awahab1116/video-streaming/internal/media"
	"github.com/awahab1116/video-streaming/internal/roomname"
	"github.com/awahab1116/video-streaming/internal/rtc"
	"github.com/awahab1116/video-streaming/internal/session"
	"github.com/awahab1116/video-streaming/internal/ui"
	"github.com/awahab1116/video-streaming/internal/version"
)

var (
	flagVideo    string
	flagAudio    string
	flagName     string
	flagRecord   string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagSecure   bool
)

var callCmd = &cobra.Command{
	Use:     "call [room]",
	Aliases: []string{"c"},
	Short:   "Join a room, or create one and wait for a peer",
	Long: `Join the named room, or create it if you arrive first. With no room
argument a memorable room name is generated for you to share.

Examples:
  vstream call --video clip.ivf --audio voice.ogg
  vstream call fluffy-otter-comet --video clip.ivf
  vstream call standup --server calls.example.com --audio voice.ogg --record ./recordings`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID := ""
		if len(args) == 1 {
			roomID = args[0]
		}
		return runCall(roomID)
	},
}

func runCall(roomID string) error {
	logging.Init(flagLogLevel)

	if flagVideo == "" && flagAudio == "" {
		return fmt.Errorf("no media sources: pass --video FILE.ivf and/or --audio FILE.ogg")
	}

	generated := false
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		roomID = roomname.Generate()
		generated = true
	}

	cfg, err := config.LoadClient(config.Options{
		Server:     flagServer,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
		Name:       flagName,
		Secure:     flagSecure,
	})
	if err != nil {
		return err
	}
	if cfg.ForceRelay && cfg.TURNServer == "" {
		return fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	constraints := media.Constraints{VideoFile: flagVideo, AudioFile: flagAudio}
	if flagRecord != "" {
		if err := os.MkdirAll(flagRecord, 0o755); err != nil {
			return fmt.Errorf("record directory: %w", err)
		}
	}
	sink := media.NewSink(flagRecord, roomID)
	defer sink.Close()

	stopSpinner := ui.RunConnectionSpinner("Connecting to " + cfg.Server + "...")
	client := session.NewClient(cfg.SignalingURL)
	if err := client.Connect(); err != nil {
		stopSpinner()
		return err
	}
	stopSpinner()

	endpoint, err := session.New(session.Options{
		RoomID:   roomID,
		Signaler: client,
		Acquire: func() (session.Media, error) {
			return media.Acquire(constraints)
		},
		NewPeer: func(initiator bool) (session.Peer, error) {
			return rtc.New(rtc.Config{
				ICEServers: cfg.ICEServers(),
				ForceRelay: cfg.ForceRelay,
				Name:       cfg.Name,
				Version:    version.Version,
			}, initiator)
		},
		ConsumeTrack: sink.Consume,
	})
	if err != nil {
		client.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go endpoint.Run(ctx)

	// Ctrl+C is a hangup, not an abort; the endpoint drives the teardown.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)
	go func() {
		<-sig
		endpoint.Hangup()
	}()

	return driveCall(endpoint, sink, cfg, roomID, generated)
}

// driveCall consumes endpoint events and keeps the terminal in step: plain
// spinners in the lobby, the live view once negotiation starts, a summary
// table after hangup.
func driveCall(endpoint *session.Endpoint, sink *media.Sink, cfg *config.Client, roomID string, generated bool) error {
	callUI := ui.NewCallUI(roomID, endpoint.Hangup)
	liveViewUp := false

	stopLobby := ui.RunWaitingSpinner("Joining room " + roomID + "...")

	summary := ui.CallSummary{Room: roomID, RecordDir: flagRecord}
	var (
		started   time.Time
		connected bool
		closedErr error
		rttSum    time.Duration
		rttCount  int
	)

	statsTicker := time.NewTicker(time.Second)
	defer statsTicker.Stop()

	events := endpoint.Events()
	for events != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}

			switch ev.Kind {
			case session.EventRoomCreated:
				summary.Role = "initiator"
				stopLobby()
				if generated {
					ui.PrintInfo("No room given, generated one for you.")
				}
				ui.RenderRoomInfo(roomID, cfg.Server)
				stopLobby = ui.RunWaitingSpinner("Waiting for a peer to join...")

			case session.EventRoomJoined:
				summary.Role = "joiner"
				stopLobby()
				ui.PrintSuccessf("Joined room %s", roomID)
				stopLobby = ui.RunWaitingSpinner("Starting the call...")

			case session.EventRoomFull:
				stopLobby()
				ui.PrintErrorf("Room %q already has two participants.", roomID)

			case session.EventNegotiating:
				stopLobby()
				started = time.Now()
				callUI.Start()
				liveViewUp = true

			case session.EventConnected:
				connected = true
				callUI.Update(ui.CallUpdate{State: "Connected"})

			case session.EventPeerHello:
				summary.Peer = ev.PeerName
				callUI.Update(ui.CallUpdate{PeerName: ev.PeerName})

			case session.EventRTT:
				rttSum += ev.RTT
				rttCount++
				callUI.Update(ui.CallUpdate{RTT: ev.RTT})

			case session.EventPeerLeft:
				if liveViewUp {
					callUI.Update(ui.CallUpdate{State: "Peer left"})
				}

			case session.EventClosed:
				closedErr = ev.Err
			}

		case <-statsTicker.C:
			if liveViewUp {
				stats := sink.Stats()
				callUI.Update(ui.CallUpdate{Stats: &stats})
			}
		}
	}

	stopLobby()
	if liveViewUp {
		callUI.Stop()
	}

	if closedErr != nil && !errors.Is(closedErr, session.ErrRoomFull) {
		slog.Debug("session ended with error", "err", closedErr)
		return closedErr
	}
	if errors.Is(closedErr, session.ErrRoomFull) {
		// Already reported; a busy room is not a client failure.
		return nil
	}

	if connected {
		summary.Duration = time.Since(started)
		if rttCount > 0 {
			summary.AvgRTT = rttSum / time.Duration(rttCount)
		}
		stats := sink.Stats()
		summary.VideoPackets = stats.VideoPackets
		summary.VideoBytes = stats.VideoBytes
		summary.AudioPackets = stats.AudioPackets
		summary.AudioBytes = stats.AudioBytes

		fmt.Println()
		ui.RenderCallSummary(summary)
	} else {
		ui.PrintInfo("Call ended before connecting.")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().StringVar(&flagVideo, "video", "", "VP8 video source (IVF file)")
	callCmd.Flags().StringVar(&flagAudio, "audio", "", "Opus audio source (Ogg file)")
	callCmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name announced to the peer")
	callCmd.Flags().StringVar(&flagRecord, "record", "", "Directory to record incoming media into")
	callCmd.Flags().StringVar(&flagSTUN, "stun", "", "Custom STUN server")
	callCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	callCmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	callCmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	callCmd.Flags().BoolVar(&flagSecure, "secure", false, "Use wss even for a bare host[:port] server address")
}
