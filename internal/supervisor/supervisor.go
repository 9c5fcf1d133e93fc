// Package supervisor owns the execution context of a sync session and the
// resources that live only while it runs (the clipboard provider, the
// audio sink). Start and Stop are its only entry points; protocol failures
// never propagate here — the session handles those itself.
package supervisor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.klb.dev/hvbridge/internal/session"
)

// DefaultGracePeriod bounds cooperative shutdown before the session's
// connection is forcibly closed to unblock a pending read.
const DefaultGracePeriod = 2 * time.Second

// Supervisor runs one session on a dedicated goroutine.
type Supervisor struct {
	sess  *session.Session
	grace time.Duration

	// resources are closed on Stop, after the session goroutine exits.
	resources []io.Closer

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New creates a supervisor for sess. closers are released on Stop in the
// order given.
func New(sess *session.Session, closers ...io.Closer) *Supervisor {
	return &Supervisor{
		sess:      sess,
		grace:     DefaultGracePeriod,
		resources: closers,
	}
}

// Running reports whether the session goroutine is active.
func (sv *Supervisor) Running() bool {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return sv.running
}

// State returns the session's connection state ("Connected" / "Not
// Connected" surfaces from here).
func (sv *Supervisor) State() session.State {
	return sv.sess.State()
}

// LastChange returns the session's last record activity time.
func (sv *Supervisor) LastChange() time.Time {
	return sv.sess.LastChange()
}

// Start spawns the session loop. Calling Start on a running supervisor is
// a no-op.
func (sv *Supervisor) Start() {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sv.cancel = cancel
	sv.done = make(chan struct{})
	sv.running = true

	done := sv.done
	go func() {
		defer close(done)
		sv.sess.Run(ctx)
	}()
}

// Stop signals cancellation, waits for the session to observe it at the
// next phase boundary, and force-closes the connection if the grace
// period elapses first. Owned resources are released once the goroutine
// has exited. Stop on a stopped supervisor is a no-op.
func (sv *Supervisor) Stop() {
	sv.mu.Lock()
	if !sv.running {
		sv.mu.Unlock()
		return
	}
	cancel, done := sv.cancel, sv.done
	sv.running = false
	sv.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(sv.grace):
		slog.Warn("session did not stop within grace period, forcing close")
		sv.sess.ForceClose()
		<-done
	}

	for _, c := range sv.resources {
		if err := c.Close(); err != nil {
			slog.Warn("resource close failed", "err", err)
		}
	}
	slog.Info("session stopped")
}
