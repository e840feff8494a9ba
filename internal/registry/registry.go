// Package registry is the directory of optimization agents: who is
// registered, where they listen, what they can do, and whether they are
// alive. Liveness follows a TTL policy driven by agent heartbeats.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strataops/vantage/internal/domain"
	"github.com/strataops/vantage/internal/liveness"
	"github.com/strataops/vantage/internal/obs"
)

// Policy is the TTL liveness policy: agents heartbeat every
// HeartbeatInterval; silence beyond MissedThreshold marks them unreachable;
// silence beyond EvictAfter removes them from listings entirely.
type Policy struct {
	HeartbeatInterval time.Duration
	MissedThreshold   time.Duration
	EvictAfter        time.Duration
}

// DefaultPolicy returns the 30s/45s/90s policy from the deployment defaults.
func DefaultPolicy() Policy {
	return Policy{
		HeartbeatInterval: 30 * time.Second,
		MissedThreshold:   45 * time.Second,
		EvictAfter:        90 * time.Second,
	}
}

// entry pairs a record with its own mutex so heartbeats for different
// agents never contend. The registry's RWMutex guards only map structure.
type entry struct {
	mu        sync.Mutex
	rec       domain.AgentRecord
	stoppedAt time.Time
}

// Filter narrows List results.
type Filter struct {
	Type        *domain.AgentType
	Capability  string
	HealthyOnly bool
}

type Registry struct {
	mu     sync.RWMutex
	agents map[uuid.UUID]*entry
	byAddr map[string]uuid.UUID

	tracker liveness.Tracker
	store   domain.AgentStore // nil disables the audit write-through
	policy  Policy
	logger  *zap.Logger
}

func New(tracker liveness.Tracker, store domain.AgentStore, policy Policy, logger *zap.Logger) *Registry {
	return &Registry{
		agents:  make(map[uuid.UUID]*entry),
		byAddr:  make(map[string]uuid.UUID),
		tracker: tracker,
		store:   store,
		policy:  policy,
		logger:  logger,
	}
}

// Register adds an agent to the directory. Re-registering an existing
// agent_id is idempotent and treated as a heartbeat plus metadata refresh.
// A different agent claiming an occupied host:port is a conflict.
func (r *Registry) Register(ctx context.Context, rec *domain.AgentRecord) (uuid.UUID, error) {
	if !rec.Type.Valid() {
		return uuid.Nil, domain.ErrConflict
	}
	if rec.Status == "" {
		rec.Status = domain.AgentStatusStarting
	}
	if !rec.Status.Valid() || rec.Status == domain.AgentStatusStopped {
		return uuid.Nil, domain.ErrConflict
	}

	now := time.Now()

	r.mu.Lock()
	if existing, ok := r.agents[rec.ID]; ok {
		r.mu.Unlock()
		return rec.ID, r.refresh(ctx, existing, rec, now)
	}
	if claimedBy, ok := r.byAddr[rec.Addr()]; ok && claimedBy != rec.ID {
		r.mu.Unlock()
		return uuid.Nil, domain.ErrConflict
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.RegisteredAt = now
	rec.LastHeartbeat = now
	e := &entry{rec: *rec}
	r.agents[rec.ID] = e
	r.byAddr[rec.Addr()] = rec.ID
	r.mu.Unlock()

	if err := r.tracker.Touch(ctx, rec.ID.String(), r.policy.EvictAfter); err != nil {
		r.logger.Warn("liveness touch failed on register",
			zap.String("agent_id", rec.ID.String()), zap.Error(err))
	}
	if r.store != nil {
		if err := r.store.Upsert(ctx, rec); err != nil {
			r.logger.Error("agent audit write failed",
				zap.String("agent_id", rec.ID.String()), zap.Error(err))
		}
	}

	r.logger.Info("agent registered",
		zap.String("agent_id", rec.ID.String()),
		zap.String("type", string(rec.Type)),
		zap.String("addr", rec.Addr()))
	r.publishGauges()
	return rec.ID, nil
}

// refresh handles the idempotent re-register path: metadata update plus
// a heartbeat, with host:port conflicts still enforced.
func (r *Registry) refresh(ctx context.Context, e *entry, rec *domain.AgentRecord, now time.Time) error {
	e.mu.Lock()
	oldAddr := e.rec.Addr()
	if oldAddr != rec.Addr() {
		r.mu.Lock()
		if claimedBy, ok := r.byAddr[rec.Addr()]; ok && claimedBy != rec.ID {
			r.mu.Unlock()
			e.mu.Unlock()
			return domain.ErrConflict
		}
		delete(r.byAddr, oldAddr)
		r.byAddr[rec.Addr()] = rec.ID
		r.mu.Unlock()
	}
	e.rec.Type = rec.Type
	e.rec.Host = rec.Host
	e.rec.Port = rec.Port
	e.rec.Capabilities = rec.Capabilities
	e.rec.Version = rec.Version
	e.rec.Status = rec.Status
	e.rec.LastHeartbeat = now
	e.stoppedAt = time.Time{}
	snapshot := e.rec
	e.mu.Unlock()

	if err := r.tracker.Touch(ctx, rec.ID.String(), r.policy.EvictAfter); err != nil {
		r.logger.Warn("liveness touch failed on refresh",
			zap.String("agent_id", rec.ID.String()), zap.Error(err))
	}
	if r.store != nil {
		if err := r.store.Upsert(ctx, &snapshot); err != nil {
			r.logger.Error("agent audit write failed",
				zap.String("agent_id", rec.ID.String()), zap.Error(err))
		}
	}
	r.publishGauges()
	return nil
}

// Heartbeat updates last_heartbeat and the agent-reported status. Safe for
// concurrent use; heartbeats for different agents never block each other.
// A stopped agent must re-register instead.
func (r *Registry) Heartbeat(ctx context.Context, id uuid.UUID, status domain.AgentStatus) error {
	if !status.Valid() || status == domain.AgentStatusStopped {
		return domain.ErrConflict
	}

	r.mu.RLock()
	e, ok := r.agents[id]
	r.mu.RUnlock()
	if !ok {
		return domain.ErrNotFound
	}

	e.mu.Lock()
	if e.rec.Status == domain.AgentStatusStopped {
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	e.rec.Status = status
	e.rec.LastHeartbeat = time.Now()
	last := e.rec.LastHeartbeat
	e.mu.Unlock()

	if err := r.tracker.Touch(ctx, id.String(), r.policy.EvictAfter); err != nil {
		r.logger.Warn("liveness touch failed on heartbeat",
			zap.String("agent_id", id.String()), zap.Error(err))
	}
	if r.store != nil {
		if err := r.store.UpdateStatus(ctx, id, status, last); err != nil {
			r.logger.Warn("agent status audit write failed",
				zap.String("agent_id", id.String()), zap.Error(err))
		}
	}
	return nil
}

// Unregister marks the agent stopped. It disappears from discovery
// immediately but the record stays visible to Get for a short audit window.
func (r *Registry) Unregister(ctx context.Context, id uuid.UUID) error {
	r.mu.RLock()
	e, ok := r.agents[id]
	r.mu.RUnlock()
	if !ok {
		return domain.ErrNotFound
	}

	e.mu.Lock()
	if e.rec.Status == domain.AgentStatusStopped {
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	e.rec.Status = domain.AgentStatusStopped
	e.stoppedAt = time.Now()
	last := e.rec.LastHeartbeat
	e.mu.Unlock()

	if err := r.tracker.Forget(ctx, id.String()); err != nil {
		r.logger.Warn("liveness forget failed",
			zap.String("agent_id", id.String()), zap.Error(err))
	}
	if r.store != nil {
		if err := r.store.UpdateStatus(ctx, id, domain.AgentStatusStopped, last); err != nil {
			r.logger.Warn("agent status audit write failed",
				zap.String("agent_id", id.String()), zap.Error(err))
		}
	}

	r.logger.Info("agent unregistered", zap.String("agent_id", id.String()))
	r.publishGauges()
	return nil
}

// Get returns a copy of the agent record, stopped agents included.
func (r *Registry) Get(id uuid.UUID) (domain.AgentRecord, error) {
	r.mu.RLock()
	e, ok := r.agents[id]
	r.mu.RUnlock()
	if !ok {
		return domain.AgentRecord{}, domain.ErrNotFound
	}
	e.mu.Lock()
	rec := e.rec
	e.mu.Unlock()
	return rec, nil
}

// List returns discoverable agents matching the filter. Stopped agents are
// never listed; evicted agents have already been removed by the monitor.
// Results are eventually consistent with in-flight heartbeats and sorted
// by agent ID for stable output.
func (r *Registry) List(f Filter) []domain.AgentRecord {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.agents))
	for _, e := range r.agents {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]domain.AgentRecord, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		rec := e.rec
		e.mu.Unlock()

		if rec.Status == domain.AgentStatusStopped {
			continue
		}
		if f.Type != nil && rec.Type != *f.Type {
			continue
		}
		if f.Capability != "" && !rec.HasCapability(f.Capability) {
			continue
		}
		if f.HealthyOnly && !rec.Routable() {
			continue
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// snapshot returns every live entry pointer for the health monitor.
func (r *Registry) snapshot() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]*entry, 0, len(r.agents))
	for _, e := range r.agents {
		entries = append(entries, e)
	}
	return entries
}

// evict removes an agent from the in-memory directory. Its history stays
// in the audit store.
func (r *Registry) evict(id uuid.UUID, addr string) {
	r.mu.Lock()
	delete(r.agents, id)
	if claimedBy, ok := r.byAddr[addr]; ok && claimedBy == id {
		delete(r.byAddr, addr)
	}
	r.mu.Unlock()
}

// publishGauges refreshes the registry population metrics.
func (r *Registry) publishGauges() {
	counts := make(map[[2]string]int)
	for _, e := range r.snapshot() {
		e.mu.Lock()
		rec := e.rec
		e.mu.Unlock()
		counts[[2]string{string(rec.Type), string(rec.Status)}]++
	}
	obs.AgentsByStatus.Reset()
	for key, n := range counts {
		obs.AgentsByStatus.WithLabelValues(key[0], key[1]).Set(float64(n))
	}
}
