// Package clip provides a unified interface to the system clipboard across
// platforms. Build constraints select the implementation:
//
//	clip_linux.go    — Linux via golang.design/x/clipboard
//	clip_windows.go  — Windows via golang.design/x/clipboard
//	clip_other.go    — headless / container stub
//
// A headless no-op provider is also returned at runtime when the display
// environment is unavailable, so daemons keep running on servers without a
// desktop session.
package clip

import "sync"

// Provider is the clipboard primitive consumed by sync sessions and the
// local peer. Implementations are used from a single goroutine per session.
type Provider interface {
	// Name returns a human-readable name for the provider.
	Name() string

	// GetText returns the current clipboard text, or "" if the clipboard
	// is empty or holds a non-text payload.
	GetText() string

	// SetText replaces the clipboard contents with text.
	SetText(text string) error

	// SetFileReference points the clipboard at a file on disk. Platforms
	// without a file-drop clipboard format fall back to setting the path
	// as text.
	SetFileReference(path string) error

	// Close releases any resources held by the provider.
	Close()
}

// Memory is an in-process Provider used by tests and as the headless
// fallback. Unlike the platform providers it is safe for concurrent use,
// since tests poke it from outside the session goroutine.
type Memory struct {
	mu   sync.Mutex
	text string
	file string
}

// NewMemory returns an empty in-memory provider.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Name() string { return "memory" }

func (m *Memory) GetText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

func (m *Memory) SetText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	m.file = ""
	return nil
}

func (m *Memory) SetFileReference(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = path
	m.file = path
	return nil
}

// FileReference returns the last path set via SetFileReference, or "".
func (m *Memory) FileReference() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file
}

func (m *Memory) Close() {}
