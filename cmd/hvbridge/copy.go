package main

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/hvbridge/internal/ipc"
	"go.klb.dev/hvbridge/internal/record"
	"go.klb.dev/hvbridge/internal/wire"
)

func newCopyCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "copy [file]",
		Short: "Copy stdin (or a file) to the shared clipboard (like pbcopy)",
		Long: `Reads stdin and sends it to the shared clipboard as a text record. With a
file argument, sends the file contents as a file record instead, to be
materialized in the peer's sync directory.

If a local hvbridge daemon is running, it is used via the IPC socket.
Otherwise connects directly to the guest listener given by --server.`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, args []string) error { return runCopy(v, args) },
	}

	f := cmd.Flags()
	f.String("server", "localhost:12345", "guest listener address (used if no local daemon)")
	addConfigFlag(cmd)

	return cmd
}

func runCopy(v *viper.Viper, args []string) error {
	var rec record.Record
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		rec = record.NewFile(filepath.Base(args[0]), data)
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		if len(data) == 0 {
			return nil
		}
		rec = record.NewText(string(data))
	}

	// Try local daemon first
	if ipc.IsRunning() {
		conn, err := ipc.Dial()
		if err == nil {
			defer conn.Close()
			wc := wire.New(conn)
			if err := sendAndConfirm(wc, rec); err != nil {
				slog.Warn("ipc copy failed", "err", err)
			} else {
				return nil
			}
		}
	}

	// Fall back to a direct guest connection
	serverAddr := v.GetString("server")
	conn, err := net.DialTimeout("tcp", serverAddr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("connect %s: %w", serverAddr, err)
	}
	defer conn.Close()

	if err := sendAndConfirm(wire.New(conn), rec); err != nil {
		return fmt.Errorf("copy to %s: %w", serverAddr, err)
	}
	return nil
}

// sendAndConfirm writes rec and waits for the OK line.
func sendAndConfirm(wc *wire.Conn, rec record.Record) error {
	if err := wc.WriteRecord(rec); err != nil {
		return err
	}
	line, err := wc.ReadLine(5 * time.Second)
	if err != nil {
		return fmt.Errorf("waiting for ack: %w", err)
	}
	if _, res := record.Decode(line); res != record.Acknowledged {
		return fmt.Errorf("unexpected response %q", line)
	}
	return nil
}
