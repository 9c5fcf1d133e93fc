package main

import (
	"log/slog"
	"net"
	"strings"
	"time"

	"go.klb.dev/hvbridge/internal/clip"
	"go.klb.dev/hvbridge/internal/ipc"
	"go.klb.dev/hvbridge/internal/record"
	"go.klb.dev/hvbridge/internal/wire"
)

const ipcReadTimeout = 2 * time.Second

// serveIPC answers the local control socket for copy/paste/status tools.
// status snapshots daemon state, provider answers PASTE, and apply pushes a
// record from "hvbridge copy" into the daemon as if a peer had sent it.
func serveIPC(ln net.Listener, status func() ipc.Status, provider clip.Provider, apply func(rec record.Record) error) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go handleIPCConn(conn, status, provider, apply)
	}
}

func handleIPCConn(conn net.Conn, status func() ipc.Status, provider clip.Provider, apply func(rec record.Record) error) {
	defer conn.Close()
	wc := wire.New(conn)

	line, err := wc.ReadLine(ipcReadTimeout)
	if err != nil {
		return
	}

	switch strings.TrimSpace(line) {
	case ipc.VerbStatus:
		raw, err := status().Encode()
		if err != nil {
			return
		}
		_, _ = conn.Write(raw)

	case ipc.VerbPaste:
		_ = wc.WriteRecord(record.NewText(provider.GetText()))

	default:
		rec, res := record.Decode(line)
		if res != record.Received {
			return
		}
		if err := apply(rec); err != nil {
			slog.Warn("ipc: record apply failed", "type", rec.Kind, "err", err)
			return
		}
		slog.Debug("ipc: record accepted", "type", rec.Kind)
		_ = wc.WriteAck()
	}
}
