// Package ipc provides the local control channel used by CLI tools
// (copy/paste/status) to talk to a running hvbridge daemon instead of
// opening their own TCP connections.
//
// The channel is a Unix domain socket (named pipe on Windows) carrying
// the same newline-delimited framing as the sync link: a clipboard record
// line pushes content into the daemon, and the bare verbs below request
// state back. No auth is needed — the socket is local and
// owner-restricted by the OS.
package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"
)

// Control verbs accepted by daemons on the IPC socket, one per line.
const (
	// VerbStatus requests a Status JSON line.
	VerbStatus = "STATUS"
	// VerbPaste requests the current clipboard as a text record line.
	VerbPaste = "PASTE"
)

// Status is the daemon state reported over IPC.
type Status struct {
	Role       string    `json:"role"`                  // "serve" or "client"
	State      string    `json:"state"`                 // "Connected" / "Not Connected"
	Peer       string    `json:"peer,omitempty"`        // remote address (client role)
	Peers      int       `json:"peers"`                 // connected clients (serve role)
	LastChange time.Time `json:"last_change,omitempty"` // last record applied or sent
	Version    string    `json:"version"`
}

// Encode serialises the status as one newline-terminated JSON line.
func (s Status) Encode() ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("status encode: %w", err)
	}
	return append(raw, '\n'), nil
}

// DecodeStatus parses a status line.
func DecodeStatus(line string) (Status, error) {
	var s Status
	if err := json.Unmarshal([]byte(line), &s); err != nil {
		return Status{}, fmt.Errorf("status decode: %w", err)
	}
	return s, nil
}

// SocketPath returns the platform-appropriate path for the IPC socket,
// overridable with $HVBRIDGE_SOCKET.
func SocketPath() string {
	if s := os.Getenv("HVBRIDGE_SOCKET"); s != "" {
		return s
	}
	return socketPath()
}

// IsRunning reports whether an hvbridge daemon appears to be listening on
// the IPC socket. It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	c, err := Dial()
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a net.Listener on the IPC socket path.
func Listen() (net.Listener, error) {
	return listenIPC(SocketPath())
}

// Dial connects to the IPC socket of a running daemon.
func Dial() (net.Conn, error) {
	return dialIPC(SocketPath())
}
