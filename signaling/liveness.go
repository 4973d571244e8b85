package signaling

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go4org/hashtriemap"
	"github.com/google/uuid"
)

// DefaultProbeInterval is how often the monitor sweeps tracked connections
// when no interval is configured.
const DefaultProbeInterval = 30 * time.Second

// watched is the monitor's view of one connection. alive is cleared when a
// probe goes out and set again by a probe answer or any inbound activity.
type watched struct {
	alive atomic.Bool
	probe func(context.Context) error
	kill  func()
}

// Monitor reaps half-open connections: transports that were accepted but
// whose remote end stopped responding without ever closing. A connection
// that stays unanswered across two consecutive sweeps is terminated through
// its kill func, which unwinds into the ordinary close path of its handler.
type Monitor struct {
	interval time.Duration
	conns    hashtriemap.HashTrieMap[uuid.UUID, *watched]
	log      *slog.Logger
}

// An interval <= 0 uses DefaultProbeInterval. Uses Default logger if log is
// nil.
func NewMonitor(interval time.Duration, log *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{interval: interval, log: log}
}

// Track starts watching a connection. probe asks the remote end for a sign
// of life and returns nil once it answers; kill force-closes the transport.
func (m *Monitor) Track(id uuid.UUID, probe func(context.Context) error, kill func()) {
	w := &watched{probe: probe, kill: kill}
	w.alive.Store(true)
	m.conns.Store(id, w)
}

// Activity records a sign of life for a tracked connection. Unknown ids are
// ignored.
func (m *Monitor) Activity(id uuid.UUID) {
	if w, ok := m.conns.Load(id); ok {
		w.alive.Store(true)
	}
}

// Forget stops watching a connection without killing it.
func (m *Monitor) Forget(id uuid.UUID) {
	m.conns.Delete(id)
}

// Run sweeps every tracked connection once per interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	for id, w := range m.conns.All() {
		if !w.alive.Swap(false) {
			// Unanswered since the previous sweep.
			m.log.Debug("reaping unresponsive connection", "id", id)
			m.conns.Delete(id)
			w.kill()
			continue
		}
		go func() {
			probeCtx, cancel := context.WithTimeout(ctx, m.interval)
			defer cancel()
			if err := w.probe(probeCtx); err == nil {
				w.alive.Store(true)
			}
		}()
	}
}
