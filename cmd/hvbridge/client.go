package main

import (
	"context"
	"fmt"
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
	"go.klb.dev/hvbridge/internal/ipc"
	"go.klb.dev/hvbridge/internal/record"
	"go.klb.dev/hvbridge/internal/session"
	"go.klb.dev/hvbridge/internal/supervisor"
)

func newClientCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Run the host-side daemon (clipboard sync + audio playback)",
		Long: `Starts the host daemon. It keeps a sync session to the guest's clipboard
listener, reconnecting whenever the guest goes away, and pipes the guest's
audio stream into a local player command.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runClient(v) },
	}

	f := cmd.Flags()
	f.String("host", "", "guest address to sync with (required)")
	f.Int("clipboard-port", 12345, "guest clipboard port")
	f.Int("audio-port", 5001, "guest audio port")
	f.String("sync-dir", defaultSyncDir(), "directory for received files")
	f.Duration("reconnect-delay", session.DefaultReconnectDelay, "wait between reconnect attempts")
	f.Duration("update-threshold", session.DefaultUpdateThreshold, "debounce window for local clipboard changes")
	f.Duration("poll-interval", session.DefaultPollInterval, "clipboard poll interval")
	f.Bool("no-audio", false, "disable audio playback")
	f.StringSlice("player", audio.DefaultPlayerCommand(), "audio player command (argv)")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runClient(v *viper.Viper) error {
	setupLogging(v)

	host := v.GetString("host")
	if host == "" {
		return fmt.Errorf("--host is required")
	}
	clipAddr := net.JoinHostPort(host, strconv.Itoa(v.GetInt("clipboard-port")))
	audioAddr := net.JoinHostPort(host, strconv.Itoa(v.GetInt("audio-port")))
	syncDir := v.GetString("sync-dir")
	noAudio := v.GetBool("no-audio")

	if err := ensureSyncDir(syncDir); err != nil {
		return err
	}

	slog.Info("hvbridge client starting",
		"version", Version,
		"peer", clipAddr,
		"audio", audioAddr,
		"audio_enabled", !noAudio,
		"sync_dir", syncDir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := clip.New()
	sess := session.New(session.Config{
		Addr:            clipAddr,
		SyncDir:         syncDir,
		ReconnectDelay:  v.GetDuration("reconnect-delay"),
		UpdateThreshold: v.GetDuration("update-threshold"),
		PollInterval:    v.GetDuration("poll-interval"),
	}, provider)
	sv := supervisor.New(sess, closerFunc(func() error {
		provider.Close()
		return nil
	}))
	sv.Start()

	if !noAudio {
		playerCmd := v.GetStringSlice("player")
		pump := &audio.Pump{
			Addr:           audioAddr,
			ReconnectDelay: v.GetDuration("reconnect-delay"),
			NewSink:        func() (audio.Sink, error) { return audio.NewPlayerSink(playerCmd) },
		}
		go pump.Run(ctx)
	}

	// IPC socket for copy/paste/status CLI tools
	status := func() ipc.Status {
		return ipc.Status{
			Role:       "client",
			State:      sv.State().String(),
			Peer:       clipAddr,
			LastChange: sv.LastChange(),
			Version:    Version,
		}
	}
	// Records from "hvbridge copy" land on the local clipboard; the sync
	// session's outbound phase forwards them to the guest.
	apply := func(rec record.Record) error {
		if rec.Kind != record.KindText {
			return fmt.Errorf("only text records accepted over ipc, got %q", rec.Kind)
		}
		return provider.SetText(rec.Content)
	}
	if ipcLn, err := ipc.Listen(); err != nil {
		slog.Warn("IPC socket unavailable", "err", err)
	} else {
		slog.Info("IPC socket listening", "path", ipc.SocketPath())
		defer ipcLn.Close()
		go serveIPC(ipcLn, status, provider, apply)
	}

	<-ctx.Done()
	sv.Stop()
	slog.Info("hvbridge client stopped")
	return nil
}

// closerFunc adapts a func to io.Closer for supervisor resource cleanup.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }
