//go:build windows

package clip

import (
	"log/slog"

	"golang.design/x/clipboard"
)

type windowsProvider struct{}

// New returns the Windows clipboard provider, or the in-memory fallback if
// clipboard access fails (e.g. a service session without a desktop).
func New() Provider {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return NewMemory()
	}
	return &windowsProvider{}
}

func (p *windowsProvider) Name() string { return "Windows clipboard" }

func (p *windowsProvider) GetText() string {
	return string(clipboard.Read(clipboard.FmtText))
}

func (p *windowsProvider) SetText(text string) error {
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// SetFileReference sets the path as text. CF_HDROP is not exposed by the
// clipboard library; Explorer accepts a pasted path in every dialog that
// matters here.
func (p *windowsProvider) SetFileReference(path string) error {
	clipboard.Write(clipboard.FmtText, []byte(path))
	return nil
}

func (p *windowsProvider) Close() {}
