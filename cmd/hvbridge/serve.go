package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/hvbridge/internal/audio"
	"go.klb.dev/hvbridge/internal/clip"
	"go.klb.dev/hvbridge/internal/hub"
	"go.klb.dev/hvbridge/internal/ipc"
	"go.klb.dev/hvbridge/internal/localpeer"
	"go.klb.dev/hvbridge/internal/record"
	"go.klb.dev/hvbridge/internal/session"
	"go.klb.dev/hvbridge/internal/tcppeer"
)

func newServeCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the guest-side daemon (clipboard listener + audio capture)",
		Long: `Starts the guest daemon. Hosts running "hvbridge client" connect here; all
connected hosts share this machine's clipboard. Audio captured from the
default monitor source is fanned out to every host connected on the audio
port.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runServe(v) },
	}

	f := cmd.Flags()
	f.String("bind", "0.0.0.0", "address to bind both listeners to")
	f.Int("clipboard-port", 12345, "TCP port for clipboard sync")
	f.Int("audio-port", 5001, "TCP port for the PCM audio stream")
	f.String("sync-dir", defaultSyncDir(), "directory for received files")
	f.Duration("update-threshold", session.DefaultUpdateThreshold, "debounce window for local clipboard changes")
	f.Duration("poll-interval", session.DefaultPollInterval, "clipboard poll interval")
	f.Bool("no-audio", false, "disable the audio capture relay")
	f.StringSlice("capture", audio.DefaultCaptureCommand(), "audio capture command (argv)")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runServe(v *viper.Viper) error {
	setupLogging(v)

	bind := v.GetString("bind")
	clipAddr := net.JoinHostPort(bind, strconv.Itoa(v.GetInt("clipboard-port")))
	audioAddr := net.JoinHostPort(bind, strconv.Itoa(v.GetInt("audio-port")))
	syncDir := v.GetString("sync-dir")
	noAudio := v.GetBool("no-audio")

	if err := ensureSyncDir(syncDir); err != nil {
		return err
	}

	slog.Info("hvbridge serve starting",
		"version", Version,
		"clipboard", clipAddr,
		"audio", audioAddr,
		"audio_enabled", !noAudio,
		"sync_dir", syncDir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := clip.New()
	defer provider.Close()

	h := hub.New()
	lp := localpeer.New(localpeer.Config{
		SyncDir:         syncDir,
		UpdateThreshold: v.GetDuration("update-threshold"),
		PollInterval:    v.GetDuration("poll-interval"),
	}, h, provider)
	go lp.Run(ctx)

	if !noAudio {
		captureCmd := v.GetStringSlice("capture")
		relay := &audio.Relay{
			Addr:   audioAddr,
			Source: func() (io.ReadCloser, error) { return audio.CaptureSource(captureCmd) },
		}
		go func() {
			if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("audio relay failed", "err", err)
			}
		}()
	}

	// IPC socket for copy/paste/status CLI tools
	status := func() ipc.Status {
		return ipc.Status{
			Role:       "serve",
			State:      serveState(h),
			Peers:      h.PeerCount(),
			LastChange: lp.LastChange(),
			Version:    Version,
		}
	}
	apply := func(rec record.Record) error {
		if err := lp.Apply(rec); err != nil {
			return err
		}
		if rec.Kind == record.KindText {
			h.Publish(rec, "ipc:copy")
		}
		return nil
	}
	if ipcLn, err := ipc.Listen(); err != nil {
		slog.Warn("IPC socket unavailable", "err", err)
	} else {
		slog.Info("IPC socket listening", "path", ipc.SocketPath())
		defer ipcLn.Close()
		go serveIPC(ipcLn, status, provider, apply)
	}

	ln, err := net.Listen("tcp", clipAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", clipAddr, err)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	slog.Info("listening", "addr", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("hvbridge serve stopped")
				return nil
			}
			slog.Error("accept failed", "err", err)
			continue
		}
		peer := tcppeer.New(conn, h, lp)
		go peer.Serve()
	}
}

func serveState(h *hub.Hub) string {
	if h.PeerCount() > 0 {
		return "Connected"
	}
	return "Not Connected"
}
