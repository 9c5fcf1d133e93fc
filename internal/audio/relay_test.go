package audio

import (
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSink buffers everything written to it.
type memSink struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

func (s *memSink) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, b...)
	return len(b), nil
}

func (s *memSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.data)
}

// chanSource is a PCM source fed from a channel, standing in for a live
// capture process.
type chanSource struct {
	ch   chan []byte
	once sync.Once
}

func newChanSource() *chanSource {
	return &chanSource{ch: make(chan []byte, 8)}
}

func (c *chanSource) Read(b []byte) (int, error) {
	chunk, ok := <-c.ch
	if !ok {
		return 0, io.EOF
	}
	return copy(b, chunk), nil
}

func (c *chanSource) Close() error {
	c.once.Do(func() { close(c.ch) })
	return nil
}

func TestRelayFansOutToClients(t *testing.T) {
	src := newChanSource()
	relay := &Relay{
		Addr:   "127.0.0.1:0",
		Source: func() (io.ReadCloser, error) { return src, nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- relay.Run(ctx) }()

	require.Eventually(t, func() bool { return relay.BoundAddr() != nil },
		time.Second, 10*time.Millisecond)

	conn, err := net.Dial("tcp", relay.BoundAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	// Wait for the accept loop to pick the client up, then feed PCM.
	require.Eventually(t, func() bool {
		relay.mu.Lock()
		defer relay.mu.Unlock()
		return len(relay.clients) == 1
	}, time.Second, 10*time.Millisecond)

	src.ch <- []byte("pcm-bytes")

	buf := make([]byte, 64)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "pcm-bytes", string(buf[:n]))

	// Cancellation shuts the relay down and closes clients.
	cancel()
	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestRelayDropsDeadClient(t *testing.T) {
	src := newChanSource()
	relay := &Relay{
		Addr:   "127.0.0.1:0",
		Source: func() (io.ReadCloser, error) { return src, nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relay.Run(ctx) }()

	require.Eventually(t, func() bool { return relay.BoundAddr() != nil },
		time.Second, 10*time.Millisecond)

	conn, err := net.Dial("tcp", relay.BoundAddr().String())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		relay.mu.Lock()
		defer relay.mu.Unlock()
		return len(relay.clients) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	// Writes eventually fail against the closed peer and it gets swept.
	assert.Eventually(t, func() bool {
		src.ch <- []byte("x")
		relay.mu.Lock()
		defer relay.mu.Unlock()
		return len(relay.clients) == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestPumpCopiesStreamIntoSink(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte("raw-pcm"))
		_ = conn.Close()
	}()

	sink := &memSink{}
	pump := &Pump{
		Addr:           ln.Addr().String(),
		ReconnectDelay: 50 * time.Millisecond,
		NewSink:        func() (Sink, error) { return sink, nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pump.Run(ctx)

	assert.Eventually(t, func() bool {
		return strings.Contains(sink.String(), "raw-pcm")
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return sink.closed
	}, time.Second, 10*time.Millisecond)
}
