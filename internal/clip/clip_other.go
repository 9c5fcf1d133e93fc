//go:build !linux && !windows

package clip

// New returns the in-memory provider on platforms without a supported
// system clipboard (containers, CI, BSDs).
func New() Provider {
	return NewMemory()
}
