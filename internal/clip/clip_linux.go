//go:build linux

package clip

import (
	"log/slog"

	"golang.design/x/clipboard"
)

type linuxProvider struct{}

// New returns the Linux clipboard provider, or the in-memory fallback if
// the display environment is unavailable (headless server without X11 or
// Wayland). clipboard.Init is called here rather than in init() so that
// CLI sub-commands (status, copy, paste) don't trigger the warning.
func New() Provider {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return NewMemory()
	}
	return &linuxProvider{}
}

func (p *linuxProvider) Name() string { return "Linux clipboard" }

func (p *linuxProvider) GetText() string {
	return string(clipboard.Read(clipboard.FmtText))
}

func (p *linuxProvider) SetText(text string) error {
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// SetFileReference sets the path as text. X11 selections have no portable
// file-drop format; pasting the path is what desktop file managers accept.
func (p *linuxProvider) SetFileReference(path string) error {
	clipboard.Write(clipboard.FmtText, []byte(path))
	return nil
}

func (p *linuxProvider) Close() {}
