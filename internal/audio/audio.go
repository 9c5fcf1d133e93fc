// Package audio moves the raw PCM stream between hosts. The stream is a
// dumb byte pipe: signed 16-bit little-endian, 44100 Hz, stereo, no
// framing and no protocol. Capture and playback are delegated to external
// processes (parec/paplay, VLC, ...) configured as argv slices.
package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
)

// Stream parameters shared by both ends. The external capture and player
// commands must be configured to match.
const (
	SampleRate = 44100
	Channels   = 2

	// chunkBytes is 1024 frames of 16-bit stereo.
	chunkBytes = 4096
)

// DefaultCaptureCommand emits raw PCM on stdout (PulseAudio source).
func DefaultCaptureCommand() []string {
	return []string{
		"parec",
		"--format=s16le",
		fmt.Sprintf("--rate=%d", SampleRate),
		fmt.Sprintf("--channels=%d", Channels),
	}
}

// DefaultPlayerCommand consumes raw PCM on stdin (PulseAudio sink).
func DefaultPlayerCommand() []string {
	return []string{
		"paplay",
		"--raw",
		"--format=s16le",
		fmt.Sprintf("--rate=%d", SampleRate),
		fmt.Sprintf("--channels=%d", Channels),
	}
}

// Sink consumes a raw audio byte stream.
type Sink interface {
	io.WriteCloser
}

// PlayerSink pipes PCM into an external player process's stdin. Closing
// the sink closes stdin and reaps the process.
type PlayerSink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// NewPlayerSink starts the player process.
func NewPlayerSink(argv []string) (*PlayerSink, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty player command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("player stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("player start: %w", err)
	}
	slog.Info("audio player started", "command", argv[0], "pid", cmd.Process.Pid)
	return &PlayerSink{cmd: cmd, stdin: stdin}, nil
}

func (p *PlayerSink) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

// Close closes the player's stdin and waits for it to exit.
func (p *PlayerSink) Close() error {
	_ = p.stdin.Close()
	return p.cmd.Wait()
}

// CaptureSource starts the capture process and returns its stdout as the
// PCM source. Closing the returned source kills the process.
func CaptureSource(argv []string) (io.ReadCloser, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty capture command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("capture start: %w", err)
	}
	slog.Info("audio capture started", "command", argv[0], "pid", cmd.Process.Pid)
	return &captureSource{cmd: cmd, stdout: stdout}, nil
}

type captureSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

func (c *captureSource) Read(b []byte) (int, error) {
	return c.stdout.Read(b)
}

func (c *captureSource) Close() error {
	_ = c.cmd.Process.Kill()
	_ = c.stdout.Close()
	_ = c.cmd.Wait()
	return nil
}
