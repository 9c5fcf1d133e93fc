// Package hub implements the guest-side clipboard broker. It is
// transport-agnostic: peers register, receive records via Send, and
// publish records with an origin ID so updates never bounce back to the
// connection they arrived on.
package hub

import (
	"log/slog"
	"sync"

	"go.klb.dev/hvbridge/internal/record"
)

// Peer is anything that can receive clipboard records from the hub.
type Peer interface {
	ID() string
	// Send delivers a record to the peer. Must be non-blocking.
	Send(rec record.Record)
}

// Hub routes clipboard records between all registered peers.
type Hub struct {
	mu        sync.RWMutex
	peers     map[string]Peer
	latest    record.Record
	hasLatest bool
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{peers: make(map[string]Peer)}
}

// Register adds a peer and immediately delivers the latest record, so a
// freshly connected client starts with the current clipboard.
func (h *Hub) Register(p Peer) {
	h.mu.Lock()
	h.peers[p.ID()] = p
	latest, ok := h.latest, h.hasLatest
	total := len(h.peers)
	h.mu.Unlock()

	slog.Info("peer registered", "peer", p.ID(), "total", total)

	if ok {
		p.Send(latest)
	}
}

// Unregister removes a peer from the hub.
func (h *Hub) Unregister(p Peer) {
	h.mu.Lock()
	delete(h.peers, p.ID())
	total := len(h.peers)
	h.mu.Unlock()

	slog.Info("peer unregistered", "peer", p.ID(), "total", total)
}

// Publish stores rec as the latest clipboard state and fans it out to all
// peers except the origin.
func (h *Hub) Publish(rec record.Record, originID string) {
	h.mu.Lock()
	h.latest = rec
	h.hasLatest = true
	targets := make([]Peer, 0, len(h.peers))
	for id, p := range h.peers {
		if id == originID {
			continue
		}
		targets = append(targets, p)
	}
	h.mu.Unlock()

	for _, p := range targets {
		p.Send(rec)
	}
}

// Latest returns the most recently published record, if any.
func (h *Hub) Latest() (record.Record, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.hasLatest
}

// PeerCount returns the number of registered peers.
func (h *Hub) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}
