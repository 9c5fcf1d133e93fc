// Package localpeer owns the serving host's clipboard: it applies inbound
// records from connected clients and publishes local clipboard changes to
// the hub with the standard debounce window.
//
// Unlike a sync session, the local peer is touched from multiple
// goroutines (its own poll loop plus one read loop per client), so its
// debounce state is mutex-guarded.
package localpeer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.klb.dev/hvbridge/internal/clip"
	"go.klb.dev/hvbridge/internal/hub"
	"go.klb.dev/hvbridge/internal/record"
)

const peerID = "local"

// Peer applies records to, and publishes changes from, the host clipboard.
type Peer struct {
	h        *hub.Hub
	provider clip.Provider
	syncDir  string

	updateThreshold time.Duration
	pollInterval    time.Duration

	mu            sync.Mutex
	lastClipboard string
	lastUpdate    time.Time
	lastChange    time.Time
}

// Config holds the local peer tunables.
type Config struct {
	SyncDir         string
	UpdateThreshold time.Duration
	PollInterval    time.Duration
}

// New creates the local peer. Call Run to start the clipboard monitor.
func New(cfg Config, h *hub.Hub, provider clip.Provider) *Peer {
	if cfg.UpdateThreshold <= 0 {
		cfg.UpdateThreshold = 500 * time.Millisecond
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	return &Peer{
		h:               h,
		provider:        provider,
		syncDir:         cfg.SyncDir,
		updateThreshold: cfg.UpdateThreshold,
		pollInterval:    cfg.PollInterval,
		lastUpdate:      time.Now(),
	}
}

// Apply implements tcppeer.Applier: text records land on the clipboard,
// file records are materialized in the sync directory and referenced from
// the clipboard. Updates the debounce state so the poll loop does not
// echo the applied value straight back.
func (p *Peer) Apply(rec record.Record) error {
	switch rec.Kind {
	case record.KindFile:
		data, err := rec.FileBytes()
		if err != nil {
			return err
		}
		path := filepath.Join(p.syncDir, filepath.Base(rec.Filename))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		if err := p.provider.SetFileReference(path); err != nil {
			return err
		}
		p.markApplied(path)
		slog.Info("file received", "path", path, "bytes", len(data))
	default:
		if err := p.provider.SetText(rec.Content); err != nil {
			return err
		}
		p.markApplied(rec.Content)
	}
	return nil
}

func (p *Peer) markApplied(value string) {
	p.mu.Lock()
	p.lastClipboard = value
	p.lastUpdate = time.Now()
	p.lastChange = time.Now()
	p.mu.Unlock()
}

// LastChange returns the time of the last applied or published record.
func (p *Peer) LastChange() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastChange
}

// Run polls the host clipboard and publishes debounced changes until ctx
// is cancelled. Call in a goroutine.
func (p *Peer) Run(ctx context.Context) {
	slog.Info("local clipboard peer started", "provider", p.provider.Name())

	t := time.NewTicker(p.pollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.poll()
		}
	}
}

func (p *Peer) poll() {
	text := p.provider.GetText()

	p.mu.Lock()
	due := text != "" && text != p.lastClipboard &&
		time.Since(p.lastUpdate) >= p.updateThreshold
	if due {
		p.lastClipboard = text
		p.lastUpdate = time.Now()
		p.lastChange = time.Now()
	}
	p.mu.Unlock()

	if due {
		slog.Debug("local clipboard changed, publishing", "len", len(text))
		p.h.Publish(record.NewText(text), peerID)
	}
}
