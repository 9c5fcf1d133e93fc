package wire

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/hvbridge/internal/record"
)

func pipe(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return New(a), b
}

func TestReadLine(t *testing.T) {
	wc, peer := pipe(t)

	go func() {
		_, _ = peer.Write([]byte("first\nsecond\n"))
	}()

	line, err := wc.ReadLine(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", line)

	line, err = wc.ReadLine(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "second", line)
}

func TestReadLineKeepsPartialAcrossTimeout(t *testing.T) {
	wc, peer := pipe(t)

	go func() {
		_, _ = peer.Write([]byte("hal"))
	}()
	time.Sleep(20 * time.Millisecond)

	_, err := wc.ReadLine(50 * time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))

	go func() {
		_, _ = peer.Write([]byte("f line\n"))
	}()

	line, err := wc.ReadLine(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "half line", line)
}

func TestReadLineTimeoutWhenIdle(t *testing.T) {
	wc, _ := pipe(t)

	start := time.Now()
	_, err := wc.ReadLine(50 * time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestWriteRecordAndAck(t *testing.T) {
	wc, peer := pipe(t)
	pc := New(peer)

	go func() {
		_ = wc.WriteRecord(record.NewText("hello"))
		_ = wc.WriteAck()
	}()

	line, err := pc.ReadLine(time.Second)
	require.NoError(t, err)
	rec, res := record.Decode(line)
	require.Equal(t, record.Received, res)
	assert.Equal(t, "hello", rec.Content)

	line, err = pc.ReadLine(time.Second)
	require.NoError(t, err)
	_, res = record.Decode(line)
	assert.Equal(t, record.Acknowledged, res)
}

func TestCloseUnblocksRead(t *testing.T) {
	wc, _ := pipe(t)

	done := make(chan error, 1)
	go func() {
		_, err := wc.ReadLine(5 * time.Second)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, wc.Close())

	select {
	case err := <-done:
		assert.Error(t, err)
		assert.False(t, IsTimeout(err))
	case <-time.After(time.Second):
		t.Fatal("read did not unblock after Close")
	}
}
