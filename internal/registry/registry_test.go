package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strataops/vantage/internal/domain"
	"github.com/strataops/vantage/internal/liveness"
)

// mockAgentStore implements domain.AgentStore for testing.
type mockAgentStore struct {
	mu       sync.Mutex
	upserts  []domain.AgentRecord
	statuses map[uuid.UUID]domain.AgentStatus
}

func newMockAgentStore() *mockAgentStore {
	return &mockAgentStore{statuses: make(map[uuid.UUID]domain.AgentStatus)}
}

func (m *mockAgentStore) Upsert(ctx context.Context, a *domain.AgentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts = append(m.upserts, *a)
	m.statuses[a.ID] = a.Status
	return nil
}

func (m *mockAgentStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AgentStatus, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = status
	return nil
}

func (m *mockAgentStore) Get(ctx context.Context, id uuid.UUID) (*domain.AgentRecord, error) {
	return nil, domain.ErrNotFound
}

func (m *mockAgentStore) List(ctx context.Context) ([]domain.AgentRecord, error) {
	return nil, nil
}

func testRegistry(policy Policy) (*Registry, *mockAgentStore) {
	store := newMockAgentStore()
	reg := New(liveness.NewMemoryTracker(), store, policy, zap.NewNop())
	return reg, store
}

func costAgent(host string, port int) *domain.AgentRecord {
	return &domain.AgentRecord{
		Type:         domain.AgentTypeCost,
		Host:         host,
		Port:         port,
		Capabilities: []string{"billing_analysis"},
		Version:      "1.0.0",
		Status:       domain.AgentStatusHealthy,
	}
}

func TestRegistry_Register(t *testing.T) {
	reg, store := testRegistry(DefaultPolicy())
	ctx := context.Background()

	rec := costAgent("10.0.0.1", 9000)
	id, err := reg.Register(ctx, rec)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("expected an assigned agent id")
	}

	got, err := reg.Get(id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Addr() != "10.0.0.1:9000" {
		t.Fatalf("unexpected addr %s", got.Addr())
	}
	if got.RegisteredAt.IsZero() || got.LastHeartbeat.IsZero() {
		t.Fatal("expected registration timestamps to be set")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.upserts) != 1 {
		t.Fatalf("expected 1 audit upsert, got %d", len(store.upserts))
	}
}

func TestRegistry_RegisterDuplicateAddr(t *testing.T) {
	reg, _ := testRegistry(DefaultPolicy())
	ctx := context.Background()

	if _, err := reg.Register(ctx, costAgent("10.0.0.1", 9000)); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	_, err := reg.Register(ctx, costAgent("10.0.0.1", 9000))
	if err != domain.ErrConflict {
		t.Fatalf("expected ErrConflict for duplicate host:port, got %v", err)
	}
}

func TestRegistry_ReregisterIsIdempotent(t *testing.T) {
	reg, _ := testRegistry(DefaultPolicy())
	ctx := context.Background()

	rec := costAgent("10.0.0.1", 9000)
	id, err := reg.Register(ctx, rec)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	firstBeat, _ := reg.Get(id)

	again := costAgent("10.0.0.1", 9000)
	again.ID = id
	again.Version = "1.1.0"
	id2, err := reg.Register(ctx, again)
	if err != nil {
		t.Fatalf("re-register failed: %v", err)
	}
	if id2 != id {
		t.Fatalf("expected same agent id, got %s and %s", id, id2)
	}

	agents := reg.List(Filter{})
	if len(agents) != 1 {
		t.Fatalf("expected exactly 1 listed agent after re-register, got %d", len(agents))
	}
	if agents[0].Version != "1.1.0" {
		t.Fatalf("expected metadata refresh, got version %s", agents[0].Version)
	}
	if agents[0].LastHeartbeat.Before(firstBeat.LastHeartbeat) {
		t.Fatal("re-register must not move last_heartbeat backwards")
	}
}

func TestRegistry_Heartbeat(t *testing.T) {
	reg, store := testRegistry(DefaultPolicy())
	ctx := context.Background()

	id, _ := reg.Register(ctx, costAgent("10.0.0.1", 9000))

	if err := reg.Heartbeat(ctx, id, domain.AgentStatusDegraded); err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}
	got, _ := reg.Get(id)
	if got.Status != domain.AgentStatusDegraded {
		t.Fatalf("expected degraded, got %s", got.Status)
	}

	store.mu.Lock()
	if store.statuses[id] != domain.AgentStatusDegraded {
		t.Fatal("expected status audit write")
	}
	store.mu.Unlock()

	if err := reg.Heartbeat(ctx, uuid.New(), domain.AgentStatusHealthy); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown agent, got %v", err)
	}
}

func TestRegistry_HeartbeatMonotonic(t *testing.T) {
	reg, _ := testRegistry(DefaultPolicy())
	ctx := context.Background()

	id, _ := reg.Register(ctx, costAgent("10.0.0.1", 9000))
	prev, _ := reg.Get(id)

	for i := 0; i < 5; i++ {
		if err := reg.Heartbeat(ctx, id, domain.AgentStatusHealthy); err != nil {
			t.Fatalf("heartbeat failed: %v", err)
		}
		got, _ := reg.Get(id)
		if got.LastHeartbeat.Before(prev.LastHeartbeat) {
			t.Fatal("last_heartbeat must be monotonically non-decreasing")
		}
		prev = got
	}
}

func TestRegistry_Unregister(t *testing.T) {
	reg, _ := testRegistry(DefaultPolicy())
	ctx := context.Background()

	id, _ := reg.Register(ctx, costAgent("10.0.0.1", 9000))

	if err := reg.Unregister(ctx, id); err != nil {
		t.Fatalf("unregister failed: %v", err)
	}
	if agents := reg.List(Filter{}); len(agents) != 0 {
		t.Fatalf("stopped agent must not be listed, got %d", len(agents))
	}

	// Still readable for the audit window.
	got, err := reg.Get(id)
	if err != nil {
		t.Fatalf("expected stopped agent to remain readable, got %v", err)
	}
	if got.Status != domain.AgentStatusStopped {
		t.Fatalf("expected stopped, got %s", got.Status)
	}

	if err := reg.Unregister(ctx, id); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound on double unregister, got %v", err)
	}
	if err := reg.Heartbeat(ctx, id, domain.AgentStatusHealthy); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound heartbeating a stopped agent, got %v", err)
	}
}

func TestRegistry_ListFilters(t *testing.T) {
	reg, _ := testRegistry(DefaultPolicy())
	ctx := context.Background()

	cost := costAgent("10.0.0.1", 9000)
	_, _ = reg.Register(ctx, cost)

	perf := &domain.AgentRecord{
		Type:         domain.AgentTypePerformance,
		Host:         "10.0.0.2",
		Port:         9000,
		Capabilities: []string{"latency_analysis", "gpu_profiling"},
		Status:       domain.AgentStatusHealthy,
	}
	_, _ = reg.Register(ctx, perf)

	starting := costAgent("10.0.0.3", 9000)
	starting.Status = domain.AgentStatusStarting
	_, _ = reg.Register(ctx, starting)

	perfType := domain.AgentTypePerformance
	if got := reg.List(Filter{Type: &perfType}); len(got) != 1 || got[0].Type != perfType {
		t.Fatalf("type filter failed: %+v", got)
	}
	if got := reg.List(Filter{Capability: "gpu_profiling"}); len(got) != 1 {
		t.Fatalf("capability filter failed: %+v", got)
	}
	if got := reg.List(Filter{HealthyOnly: true}); len(got) != 2 {
		t.Fatalf("healthy_only should exclude starting agents, got %d", len(got))
	}
	if got := reg.List(Filter{}); len(got) != 3 {
		t.Fatalf("expected 3 discoverable agents, got %d", len(got))
	}
}

func TestRegistry_ConcurrentHeartbeats(t *testing.T) {
	reg, _ := testRegistry(DefaultPolicy())
	ctx := context.Background()

	ids := make([]uuid.UUID, 8)
	for i := range ids {
		id, err := reg.Register(ctx, costAgent("10.0.1.1", 9000+i))
		if err != nil {
			t.Fatalf("register failed: %v", err)
		}
		ids[i] = id
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for j := 0; j < 20; j++ {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				_ = reg.Heartbeat(ctx, id, domain.AgentStatusHealthy)
			}(id)
		}
	}
	wg.Wait()

	if got := reg.List(Filter{HealthyOnly: true}); len(got) != len(ids) {
		t.Fatalf("expected %d healthy agents, got %d", len(ids), len(got))
	}
}
