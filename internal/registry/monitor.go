package registry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/strataops/vantage/internal/domain"
)

// Monitor is the background health loop. It is the only writer of the
// unreachable transition: agents silent past the missed threshold become
// unreachable within one tick, and agents silent past the eviction window
// are dropped from the in-memory directory. Status transitions are local
// state only; the loop never blocks on network calls to agents.
type Monitor struct {
	reg    *Registry
	logger *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewMonitor(reg *Registry, logger *zap.Logger) *Monitor {
	return &Monitor{
		reg:      reg,
		logger:   logger,
		interval: reg.policy.HeartbeatInterval / 2,
		stopCh:   make(chan struct{}),
	}
}

func (m *Monitor) SetInterval(d time.Duration) {
	m.interval = d
}

// Start runs the monitor on a periodic schedule in a background goroutine.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.logger.Info("health monitor started", zap.Duration("interval", m.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				m.Tick(ctx)
				cancel()
			case <-m.stopCh:
				m.logger.Info("health monitor stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the monitor.
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

// Tick applies the TTL policy to every known agent once. Exported so tests
// and operators can force a scan without waiting for the ticker.
func (m *Monitor) Tick(ctx context.Context) {
	now := time.Now()
	policy := m.reg.policy
	changed := false

	for _, e := range m.reg.snapshot() {
		e.mu.Lock()
		rec := e.rec
		stoppedAt := e.stoppedAt
		e.mu.Unlock()

		if rec.Status == domain.AgentStatusStopped {
			// Stopped records linger for the audit window, then go away.
			if !stoppedAt.IsZero() && now.Sub(stoppedAt) > policy.EvictAfter {
				m.reg.evict(rec.ID, rec.Addr())
				changed = true
			}
			continue
		}

		last := rec.LastHeartbeat
		if seen, ok, err := m.reg.tracker.LastSeen(ctx, rec.ID.String()); err == nil && ok && seen.After(last) {
			last = seen
		}
		silent := now.Sub(last)

		switch {
		case silent > policy.EvictAfter:
			m.reg.evict(rec.ID, rec.Addr())
			changed = true
			m.logger.Warn("agent evicted after prolonged silence",
				zap.String("agent_id", rec.ID.String()),
				zap.Duration("silent", silent))

		case silent > policy.MissedThreshold && rec.Status != domain.AgentStatusUnreachable:
			e.mu.Lock()
			// Re-check under the entry lock: a heartbeat may have raced in.
			if now.Sub(e.rec.LastHeartbeat) > policy.MissedThreshold &&
				e.rec.Status != domain.AgentStatusStopped {
				e.rec.Status = domain.AgentStatusUnreachable
				changed = true
			}
			rec = e.rec
			e.mu.Unlock()

			if rec.Status == domain.AgentStatusUnreachable {
				m.logger.Warn("agent unreachable, missed heartbeats",
					zap.String("agent_id", rec.ID.String()),
					zap.String("type", string(rec.Type)),
					zap.Duration("silent", silent))
				if m.reg.store != nil {
					if err := m.reg.store.UpdateStatus(ctx, rec.ID, domain.AgentStatusUnreachable, rec.LastHeartbeat); err != nil {
						m.logger.Warn("agent status audit write failed",
							zap.String("agent_id", rec.ID.String()), zap.Error(err))
					}
				}
			}
		}
	}

	if changed {
		m.reg.publishGauges()
	}
}
