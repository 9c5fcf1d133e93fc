package supervisor

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/hvbridge/internal/clip"
	"go.klb.dev/hvbridge/internal/session"
)

type closeRecorder struct{ closed bool }

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func newTestSupervisor(t *testing.T, addr string) (*Supervisor, *closeRecorder) {
	t.Helper()
	sess := session.New(session.Config{
		Addr:           addr,
		SyncDir:        t.TempDir(),
		ReconnectDelay: 50 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
		ReadTimeout:    30 * time.Millisecond,
	}, clip.NewMemory())
	rec := &closeRecorder{}
	return New(sess, rec), rec
}

func TestStartStop(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	sv, rec := newTestSupervisor(t, ln.Addr().String())
	assert.False(t, sv.Running())

	sv.Start()
	assert.True(t, sv.Running())
	assert.Eventually(t, func() bool { return sv.State() == session.Connected },
		time.Second, 10*time.Millisecond)

	sv.Stop()
	assert.False(t, sv.Running())
	assert.Equal(t, session.Disconnected, sv.State())
	assert.True(t, rec.closed, "owned resources must be released on Stop")
}

func TestStopWhileDisconnected(t *testing.T) {
	// No listener: the session sits in its reconnect loop. Stop must
	// still return promptly.
	sv, rec := newTestSupervisor(t, "127.0.0.1:1")

	sv.Start()
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		sv.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop blocked on a disconnected session")
	}
	assert.True(t, rec.closed)
}

func TestStartTwiceIsNoop(t *testing.T) {
	sv, _ := newTestSupervisor(t, "127.0.0.1:1")
	sv.Start()
	sv.Start()
	sv.Stop()
	sv.Stop()
	assert.False(t, sv.Running())
}
