package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/hvbridge/internal/ipc"
	"go.klb.dev/hvbridge/internal/record"
	"go.klb.dev/hvbridge/internal/wire"
)

func newPasteCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "paste",
		Short: "Print the shared clipboard to stdout (like pbpaste)",
		Long: `Asks the local hvbridge daemon for the current clipboard text and prints
it. Requires a running serve or client daemon; the daemons own the system
clipboard, so there is nothing to paste without one.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runPaste(v) },
	}

	addConfigFlag(cmd)
	return cmd
}

func runPaste(_ *viper.Viper) error {
	conn, err := ipc.Dial()
	if err != nil {
		return fmt.Errorf("no hvbridge daemon running (%s): %w", ipc.SocketPath(), err)
	}
	defer conn.Close()

	wc := wire.New(conn)
	if _, err := conn.Write([]byte(ipc.VerbPaste + "\n")); err != nil {
		return fmt.Errorf("paste request: %w", err)
	}
	line, err := wc.ReadLine(5 * time.Second)
	if err != nil {
		return fmt.Errorf("paste response: %w", err)
	}
	rec, res := record.Decode(line)
	if res != record.Received {
		return fmt.Errorf("unexpected response %q", line)
	}
	fmt.Print(rec.Content)
	return nil
}
