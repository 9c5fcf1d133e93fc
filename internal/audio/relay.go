package audio

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Relay fans one PCM source out to every connected TCP client. Dead
// clients are dropped on the next write that fails.
type Relay struct {
	// Addr is the TCP listen address.
	Addr string

	// Source opens the PCM byte stream; called once per Run.
	Source func() (io.ReadCloser, error)

	mu      sync.Mutex
	bound   net.Addr
	clients map[net.Conn]struct{}
}

// BoundAddr returns the listener address once Run has bound it, else nil.
func (r *Relay) BoundAddr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bound
}

// Run listens, accepts clients, and streams until ctx is cancelled or the
// source ends. Blocks; call in a goroutine.
func (r *Relay) Run(ctx context.Context) error {
	src, err := r.Source()
	if err != nil {
		return err
	}
	defer src.Close()

	ln, err := net.Listen("tcp", r.Addr)
	if err != nil {
		return err
	}
	slog.Info("audio relay listening", "addr", ln.Addr())

	r.mu.Lock()
	r.bound = ln.Addr()
	r.clients = make(map[net.Conn]struct{})
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
		_ = src.Close()
	}()

	go r.acceptLoop(ln)
	defer r.closeClients()

	buf := make([]byte, chunkBytes)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			r.broadcast(buf[:n])
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (r *Relay) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		slog.Info("audio client connected", "peer", conn.RemoteAddr())
		r.mu.Lock()
		r.clients[conn] = struct{}{}
		r.mu.Unlock()
	}
}

func (r *Relay) broadcast(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for conn := range r.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		if _, err := conn.Write(b); err != nil {
			slog.Info("audio client dropped", "peer", conn.RemoteAddr(), "err", err)
			_ = conn.Close()
			delete(r.clients, conn)
		}
	}
}

func (r *Relay) closeClients() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for conn := range r.clients {
		_ = conn.Close()
		delete(r.clients, conn)
	}
}

// Pump dials the relay and copies the stream into a fresh sink per
// connection, reconnecting with a fixed delay. No protocol state exists
// here — a drop simply restarts the byte pipe.
type Pump struct {
	// Addr is the relay address (host:port).
	Addr string

	// ReconnectDelay is the wait between connection attempts.
	ReconnectDelay time.Duration

	// NewSink opens a sink for one connection's lifetime.
	NewSink func() (Sink, error)
}

// Run streams until ctx is cancelled. Blocks; call in a goroutine.
func (p *Pump) Run(ctx context.Context) {
	delay := p.ReconnectDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}

	for ctx.Err() == nil {
		if err := p.stream(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("audio stream ended, reconnecting", "err", err, "retry_in", delay)
		}
		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}
}

func (p *Pump) stream(ctx context.Context) error {
	d := net.Dialer{Timeout: 10 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	sink, err := p.NewSink()
	if err != nil {
		return err
	}
	defer sink.Close()

	slog.Info("audio stream connected", "addr", p.Addr)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	_, err = io.Copy(sink, conn)
	return err
}
