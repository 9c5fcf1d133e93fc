// Package wire handles reading and writing newline-delimited lines over a
// net.Conn.
//
// Reads use a short per-call deadline and an internal accumulator: bytes
// that arrive without a terminating newline stay buffered across calls, so
// a timed-out read never loses a partial line. Every complete line is
// returned without its trailing newline; classification of the line (JSON
// record, OK ack, garbage) is the caller's job via the record package.
package wire

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"time"

	"go.klb.dev/hvbridge/internal/record"
)

const (
	// MaxLineSize is the largest line we will accumulate (16 MiB).
	MaxLineSize = 16 * 1024 * 1024

	writeDeadline = 5 * time.Second

	readChunk = 64 * 1024
)

// Conn wraps a net.Conn with newline framing and deadline management.
type Conn struct {
	conn    net.Conn
	pending []byte
	buf     [readChunk]byte
}

// New wraps conn.
func New(conn net.Conn) *Conn {
	return &Conn{conn: conn}
}

// Underlying returns the underlying net.Conn.
func (c *Conn) Underlying() net.Conn { return c.conn }

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Close closes the underlying connection. Safe to call from outside the
// reading goroutine to force-unblock a pending read.
func (c *Conn) Close() error { return c.conn.Close() }

// ReadLine returns the next complete line without its trailing newline,
// waiting at most timeout for more bytes. If no complete line arrives in
// time it returns an error for which IsTimeout reports true; bytes read so
// far remain buffered for the next call. Any other error means the
// connection is no longer usable.
func (c *Conn) ReadLine(timeout time.Duration) (string, error) {
	for {
		if i := bytes.IndexByte(c.pending, '\n'); i >= 0 {
			line := string(c.pending[:i])
			c.pending = c.pending[i+1:]
			return line, nil
		}
		if len(c.pending) > MaxLineSize {
			return "", fmt.Errorf("line exceeds %d bytes", MaxLineSize)
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
		n, err := c.conn.Read(c.buf[:])
		if n > 0 {
			c.pending = append(c.pending, c.buf[:n]...)
		}
		if err != nil {
			return "", err
		}
	}
}

// WriteRecord serialises rec and writes it as one line.
func (c *Conn) WriteRecord(rec record.Record) error {
	line, err := rec.Encode()
	if err != nil {
		return err
	}
	return c.writeLine(line)
}

// WriteAck writes the acknowledgement sentinel line.
func (c *Conn) WriteAck() error {
	return c.writeLine([]byte(record.Ack + "\n"))
}

func (c *Conn) writeLine(line []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	_, err := c.conn.Write(line)
	_ = c.conn.SetWriteDeadline(time.Time{})
	return err
}

// IsTimeout reports whether err is a read-deadline expiry rather than a
// real connection failure.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
