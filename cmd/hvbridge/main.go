// hvbridge: clipboard and audio bridge for Hyper-V basic sessions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/hvbridge/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "hvbridge",
		Short: "Clipboard and audio bridge between a Windows host and a Linux guest",
		Long: `hvbridge mirrors the clipboard between a Windows host and a Linux guest
(typically a Hyper-V basic session without native clipboard passthrough) and
streams the guest's audio to the host.

Run "hvbridge serve" on the guest. Run "hvbridge client --host <guest>" on
the host. Use "hvbridge copy/paste/status" as CLI tools next to a running
daemon.

Clipboard sync is newline-delimited JSON over TCP (default port 12345);
audio is raw s16le 44.1kHz stereo PCM over a second TCP port (default 5001)
piped through external capture/player commands.

Config file search order (first found wins):
  /etc/hvbridge/hvbridge.toml
  $HOME/.config/hvbridge/hvbridge.toml
  path supplied via --config

All flags can be set via HVBRIDGE_<FLAG> env vars or config-file keys.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newClientCmd(),
		newCopyCmd(),
		newPasteCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("hvbridge %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
