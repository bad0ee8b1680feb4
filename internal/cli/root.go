package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/awahab1116/video-streaming/internal/ui"
	"github.com/awahab1116/video-streaming/internal/version"
)

var (
	flagServer   string
	flagLogLevel string
	flagRelay    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "vstream",
	Short:   "Two-party video calls from the terminal using WebRTC",
	Long:    `vstream places direct peer-to-peer video calls between two terminals. A lightweight signaling server pairs the two participants into a room and relays the WebRTC handshake; media then flows directly between the peers. Local camera and microphone are stood in for by media files (VP8 in IVF, Opus in Ogg).`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagServer, "server", "s", "", "Signaling server address (host[:port] or URL)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log verbosity (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&flagRelay, "relay", "r", false, "Force media through the TURN relay")
}
