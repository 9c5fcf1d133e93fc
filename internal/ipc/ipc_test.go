package ipc

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketPathOverride(t *testing.T) {
	t.Setenv("HVBRIDGE_SOCKET", "/tmp/custom.sock")
	assert.Equal(t, "/tmp/custom.sock", SocketPath())
}

func TestStatusRoundTrip(t *testing.T) {
	orig := Status{
		Role:       "client",
		State:      "Connected",
		Peer:       "192.168.1.10:12345",
		LastChange: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Version:    "dev",
	}
	line, err := orig.Encode()
	require.NoError(t, err)

	got, err := DecodeStatus(string(line))
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestIsRunning(t *testing.T) {
	t.Setenv("HVBRIDGE_SOCKET", filepath.Join(t.TempDir(), "hvbridge.sock"))
	assert.False(t, IsRunning())

	ln, err := Listen()
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	assert.True(t, IsRunning())
}
