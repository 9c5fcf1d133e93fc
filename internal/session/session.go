// Package session implements the clipboard sync session: one self-healing
// TCP link to a fixed peer, mirroring clipboard content in both directions.
//
// A session is a single-goroutine cooperative loop. Each iteration runs
// four phases: connect (if needed), drain inbound lines, send a local
// clipboard change if one is due, and sleep the poll interval. The only
// blocking points are the bounded-timeout socket read and the idle sleep,
// which keeps cancellation and reconnect latency bounded.
//
// Delivery is at-least-once: the sender updates its dedup state as soon as
// a record is written, before the peer acknowledges it. A record whose
// remote apply fails is never resent unless the clipboard changes again.
package session

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.klb.dev/hvbridge/internal/clip"
	"go.klb.dev/hvbridge/internal/record"
	"go.klb.dev/hvbridge/internal/wire"
)

// State is the connection state of a session.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Not Connected"
	}
}

// Config holds the tunables of a session. Zero values fall back to the
// defaults below.
type Config struct {
	// Addr is the peer address (host:port).
	Addr string

	// SyncDir is where incoming file records are materialized. It must
	// exist before the session starts.
	SyncDir string

	// ReconnectDelay is the wait between failed connect attempts and
	// after a mid-session I/O failure.
	ReconnectDelay time.Duration

	// UpdateThreshold is the minimum spacing between locally-originated
	// sends (the debounce window).
	UpdateThreshold time.Duration

	// PollInterval is the idle sleep between loop iterations, i.e. the
	// clipboard-change detection granularity.
	PollInterval time.Duration

	// ReadTimeout bounds each socket read in the inbound drain phase.
	ReadTimeout time.Duration

	// DialTimeout bounds a single connect attempt.
	DialTimeout time.Duration
}

const (
	DefaultReconnectDelay  = 5 * time.Second
	DefaultUpdateThreshold = 500 * time.Millisecond
	DefaultPollInterval    = 50 * time.Millisecond
	DefaultReadTimeout     = 100 * time.Millisecond
	DefaultDialTimeout     = 10 * time.Second
)

func (c *Config) applyDefaults() {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.UpdateThreshold <= 0 {
		c.UpdateThreshold = DefaultUpdateThreshold
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
}

// Session mirrors the local clipboard against one remote peer.
type Session struct {
	cfg      Config
	provider clip.Provider
	log      *slog.Logger

	state      atomic.Int32
	lastChange atomic.Int64 // UnixNano of last applied or sent record

	// connMu guards conn, which ForceClose touches from outside the
	// session goroutine. The debounce state below it is owned by the
	// loop alone.
	connMu sync.Mutex
	conn   *wire.Conn

	lastClipboard string
	lastUpdate    time.Time
}

// New creates a session. Call Run to start it.
func New(cfg Config, provider clip.Provider) *Session {
	cfg.applyDefaults()
	return &Session{
		cfg:      cfg,
		provider: provider,
		log:      slog.With("peer", cfg.Addr),
	}
}

// State returns the current connection state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// LastChange returns the time of the last record applied or sent, or the
// zero time if none yet.
func (s *Session) LastChange() time.Time {
	n := s.lastChange.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// ForceClose closes the live connection, if any, unblocking a pending
// read inside the loop. Used by the supervisor when cooperative shutdown
// exceeds its grace period.
func (s *Session) ForceClose() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// Run executes the session loop until ctx is cancelled. All I/O failures
// are handled internally via the reconnect path; Run only returns on
// cancellation.
func (s *Session) Run(ctx context.Context) {
	defer func() {
		s.dropConn()
		s.state.Store(int32(Disconnected))
	}()

	// Start the debounce window closed so a pre-existing clipboard value
	// is not blurted out the moment the link comes up.
	s.lastUpdate = time.Now()

	for ctx.Err() == nil {
		if s.current() == nil {
			if !s.connect(ctx) {
				continue
			}
		}

		if err := s.drainInbound(); err != nil {
			s.disconnect(err)
			sleepCtx(ctx, s.cfg.ReconnectDelay)
			continue
		}

		if err := s.drainOutbound(); err != nil {
			s.disconnect(err)
			sleepCtx(ctx, s.cfg.ReconnectDelay)
			continue
		}

		sleepCtx(ctx, s.cfg.PollInterval)
	}
}

// connect dials the peer, retrying is left to the caller loop. Returns
// true if a connection was established.
func (s *Session) connect(ctx context.Context) bool {
	s.state.Store(int32(Connecting))

	d := net.Dialer{Timeout: s.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		s.state.Store(int32(Disconnected))
		if ctx.Err() != nil {
			return false
		}
		s.log.Warn("connect failed", "err", err, "retry_in", s.cfg.ReconnectDelay)
		sleepCtx(ctx, s.cfg.ReconnectDelay)
		return false
	}

	s.connMu.Lock()
	s.conn = wire.New(conn)
	s.connMu.Unlock()
	s.state.Store(int32(Connected))
	s.log.Info("connected")
	return true
}

// drainInbound reads complete lines until the read deadline fires with
// nothing buffered. A timeout is the normal "no more data" outcome; any
// other error tears the connection down.
func (s *Session) drainInbound() error {
	conn := s.current()
	for {
		line, err := conn.ReadLine(s.cfg.ReadTimeout)
		if err != nil {
			if wire.IsTimeout(err) {
				return nil
			}
			return err
		}
		if err := s.handleLine(conn, line); err != nil {
			return err
		}
	}
}

// handleLine classifies and applies one inbound line. Only a failed ack
// write is returned as an error — apply failures are logged and the
// record goes unacknowledged, per the protocol's at-least-once gap.
func (s *Session) handleLine(conn *wire.Conn, line string) error {
	rec, res := record.Decode(line)
	switch res {
	case record.Empty, record.Acknowledged:
		return nil
	case record.Malformed:
		s.log.Warn("malformed line discarded", "len", len(line))
		return nil
	}

	switch rec.Kind {
	case record.KindText:
		if err := s.provider.SetText(rec.Content); err != nil {
			s.log.Error("clipboard write failed", "err", err)
			return nil
		}
		s.lastClipboard = rec.Content
	case record.KindFile:
		path, err := s.applyFile(rec)
		if err != nil {
			s.log.Error("file record apply failed", "filename", rec.Filename, "err", err)
			return nil
		}
		s.lastClipboard = path
	default:
		s.log.Warn("unknown record type discarded", "type", rec.Kind)
		return nil
	}

	s.lastUpdate = time.Now()
	s.lastChange.Store(time.Now().UnixNano())
	s.log.Debug("record applied", "type", rec.Kind)
	return conn.WriteAck()
}

// applyFile materializes a file record in the sync directory and points
// the clipboard at it. Returns the path written.
func (s *Session) applyFile(rec record.Record) (string, error) {
	data, err := rec.FileBytes()
	if err != nil {
		return "", err
	}
	// Strip any path components the peer may have sent.
	path := filepath.Join(s.cfg.SyncDir, filepath.Base(rec.Filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	if err := s.provider.SetFileReference(path); err != nil {
		return "", err
	}
	s.log.Info("file received", "path", path, "bytes", len(data))
	return path, nil
}

// drainOutbound sends the current clipboard text if it is non-empty, new,
// and the debounce window has elapsed. Dedup state updates immediately on
// write — the ack is consumed later in drainInbound as a no-op.
func (s *Session) drainOutbound() error {
	text := s.provider.GetText()
	if text == "" || text == s.lastClipboard {
		return nil
	}
	if time.Since(s.lastUpdate) < s.cfg.UpdateThreshold {
		return nil
	}

	if err := s.current().WriteRecord(record.NewText(text)); err != nil {
		return err
	}
	s.lastClipboard = text
	s.lastUpdate = time.Now()
	s.lastChange.Store(time.Now().UnixNano())
	s.log.Debug("clipboard sent", "len", len(text))
	return nil
}

func (s *Session) current() *wire.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

func (s *Session) disconnect(err error) {
	s.log.Warn("connection lost", "err", err, "retry_in", s.cfg.ReconnectDelay)
	s.dropConn()
	s.state.Store(int32(Disconnected))
}

func (s *Session) dropConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
