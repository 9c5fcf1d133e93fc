// Package tcppeer adapts an accepted clipboard-sync connection into a
// hub.Peer. Each connection gets a read loop (records in, applied and
// acked inline) and a writer goroutine (hub fan-out going back to the
// client).
package tcppeer

import (
	"errors"
	"log/slog"
	"net"
	"time"

	"go.klb.dev/hvbridge/internal/hub"
	"go.klb.dev/hvbridge/internal/record"
	"go.klb.dev/hvbridge/internal/wire"
)

const readTimeout = 100 * time.Millisecond

// Applier applies an inbound record to the local host: clipboard for text
// records, sync directory plus clipboard for file records. The
// acknowledgement contract requires Apply to complete before OK is sent,
// so it is called synchronously from the read loop.
type Applier interface {
	Apply(rec record.Record) error
}

// Peer wraps a single accepted TCP connection.
type Peer struct {
	id      string
	conn    *wire.Conn
	h       *hub.Hub
	applier Applier
	sendCh  chan record.Record
	done    chan struct{}
}

// New creates a Peer for conn.
func New(conn net.Conn, h *hub.Hub, applier Applier) *Peer {
	return &Peer{
		id:      conn.RemoteAddr().String(),
		conn:    wire.New(conn),
		h:       h,
		applier: applier,
		sendCh:  make(chan record.Record, 16),
		done:    make(chan struct{}),
	}
}

func (p *Peer) ID() string { return p.id }

// Send implements hub.Peer. The hub fans out after snapshotting its peer
// set, so a send can race Serve's teardown; records arriving after done
// are dropped.
func (p *Peer) Send(rec record.Record) {
	select {
	case <-p.done:
	case p.sendCh <- rec:
	default:
		slog.Warn("peer send channel full, dropping", "peer", p.id)
	}
}

// Serve registers with the hub and runs the read loop until the
// connection fails or closes. Call in a goroutine per connection.
func (p *Peer) Serve() {
	defer p.conn.Close()
	log := slog.With("peer", p.id)

	p.h.Register(p)
	defer func() {
		p.h.Unregister(p)
		close(p.done)
	}()

	// Writer
	go func() {
		for {
			select {
			case <-p.done:
				return
			case rec := <-p.sendCh:
				if err := p.conn.WriteRecord(rec); err != nil {
					log.Error("write failed", "err", err)
					p.conn.Close()
					return
				}
			}
		}
	}()

	// Reader
	for {
		line, err := p.conn.ReadLine(readTimeout)
		if err != nil {
			if wire.IsTimeout(err) {
				continue
			}
			if !errors.Is(err, net.ErrClosed) {
				log.Info("connection closed", "err", err)
			}
			return
		}
		if err := p.handleLine(log, line); err != nil {
			log.Info("connection closed", "err", err)
			return
		}
	}
}

// handleLine processes one inbound line. Returned errors are ack-write
// failures, which end the connection; apply failures only suppress the
// ack.
func (p *Peer) handleLine(log *slog.Logger, line string) error {
	rec, res := record.Decode(line)
	switch res {
	case record.Empty, record.Acknowledged:
		return nil
	case record.Malformed:
		log.Warn("malformed line discarded", "len", len(line))
		return nil
	}

	if err := p.applier.Apply(rec); err != nil {
		log.Error("apply failed, record unacknowledged", "type", rec.Kind, "err", err)
		return nil
	}

	if err := p.conn.WriteAck(); err != nil {
		return err
	}

	// Text updates propagate to every other client; file records are
	// applied host-side only, matching the reference behaviour.
	if rec.Kind == record.KindText {
		p.h.Publish(rec, p.id)
	}
	log.Debug("record applied", "type", rec.Kind)
	return nil
}
