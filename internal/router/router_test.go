package router

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/strataops/vantage/internal/domain"
	"github.com/strataops/vantage/internal/liveness"
	"github.com/strataops/vantage/internal/registry"
)

func testSetup(t *testing.T) (*Router, *registry.Registry) {
	t.Helper()
	reg := registry.New(liveness.NewMemoryTracker(), nil, registry.DefaultPolicy(), zap.NewNop())
	return New(reg, zap.NewNop()), reg
}

func register(t *testing.T, reg *registry.Registry, agentType domain.AgentType, port int, caps ...string) domain.AgentRecord {
	t.Helper()
	rec := &domain.AgentRecord{
		Type:         agentType,
		Host:         "10.0.0.1",
		Port:         port,
		Capabilities: caps,
		Status:       domain.AgentStatusHealthy,
	}
	if _, err := reg.Register(context.Background(), rec); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return *rec
}

func TestRouter_NoAgentAvailable(t *testing.T) {
	r, _ := testSetup(t)

	_, err := r.Route(Request{Type: domain.AgentTypeCost, ResourceID: "cluster-a"})
	if err != domain.ErrNoAgentAvailable {
		t.Fatalf("expected ErrNoAgentAvailable, got %v", err)
	}
}

func TestRouter_FiltersByTypeAndCapability(t *testing.T) {
	r, reg := testSetup(t)

	register(t, reg, domain.AgentTypeCost, 9000, "billing_analysis")
	perf := register(t, reg, domain.AgentTypePerformance, 9001, "latency_analysis", "gpu_profiling")
	register(t, reg, domain.AgentTypePerformance, 9002, "latency_analysis")

	got, err := r.Route(Request{
		Type:         domain.AgentTypePerformance,
		Capabilities: []string{"gpu_profiling"},
		ResourceID:   "cluster-a",
	})
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}
	if got.ID != perf.ID {
		t.Fatalf("expected the gpu_profiling instance, got %s", got.ID)
	}

	_, err = r.Route(Request{
		Type:         domain.AgentTypeCost,
		Capabilities: []string{"gpu_profiling"},
		ResourceID:   "cluster-a",
	})
	if err != domain.ErrNoAgentAvailable {
		t.Fatalf("expected ErrNoAgentAvailable for unmatched capability, got %v", err)
	}
}

func TestRouter_StableRouting(t *testing.T) {
	r, reg := testSetup(t)

	for i := 0; i < 4; i++ {
		register(t, reg, domain.AgentTypeCost, 9000+i)
	}

	first, err := r.Route(Request{Type: domain.AgentTypeCost, ResourceID: "cluster-a"})
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}
	for i := 0; i < 20; i++ {
		got, err := r.Route(Request{Type: domain.AgentTypeCost, ResourceID: "cluster-a"})
		if err != nil {
			t.Fatalf("route failed: %v", err)
		}
		if got.ID != first.ID {
			t.Fatalf("routing must be stable for an unchanged healthy set: got %s then %s", first.ID, got.ID)
		}
	}
}

func TestRouter_SpreadsAcrossResources(t *testing.T) {
	r, reg := testSetup(t)

	for i := 0; i < 4; i++ {
		register(t, reg, domain.AgentTypeCost, 9000+i)
	}

	seen := make(map[string]bool)
	for _, resource := range []string{"r-1", "r-2", "r-3", "r-4", "r-5", "r-6", "r-7", "r-8"} {
		got, err := r.Route(Request{Type: domain.AgentTypeCost, ResourceID: resource})
		if err != nil {
			t.Fatalf("route failed: %v", err)
		}
		seen[got.ID.String()] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected load to spread over multiple instances, all went to one")
	}
}

func TestRouter_FailoverWhenInstanceUnhealthy(t *testing.T) {
	r, reg := testSetup(t)
	ctx := context.Background()

	a := register(t, reg, domain.AgentTypeCost, 9000)
	b := register(t, reg, domain.AgentTypeCost, 9001)

	first, err := r.Route(Request{Type: domain.AgentTypeCost, ResourceID: "cluster-a"})
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}

	// Degrade the chosen instance; routing must move to the survivor.
	_ = reg.Heartbeat(ctx, first.ID, domain.AgentStatusDegraded)

	got, err := r.Route(Request{Type: domain.AgentTypeCost, ResourceID: "cluster-a"})
	if err != nil {
		t.Fatalf("route failed after degrade: %v", err)
	}
	if got.ID == first.ID {
		t.Fatal("degraded instance must not receive new work")
	}
	if got.ID != a.ID && got.ID != b.ID {
		t.Fatalf("unexpected instance %s", got.ID)
	}
}

func TestRouter_RouteEach(t *testing.T) {
	r, reg := testSetup(t)

	register(t, reg, domain.AgentTypeCost, 9000)
	register(t, reg, domain.AgentTypeApplication, 9001)

	agents, err := r.RouteEach(nil, nil, "cluster-a")
	if err != nil {
		t.Fatalf("route each failed: %v", err)
	}
	// Only cost and application have instances; the other domains are skipped.
	if len(agents) != 2 {
		t.Fatalf("expected 2 routed agents, got %d", len(agents))
	}

	_, err = r.RouteEach([]domain.AgentType{domain.AgentTypeResource}, nil, "cluster-a")
	if err != domain.ErrNoAgentAvailable {
		t.Fatalf("expected ErrNoAgentAvailable, got %v", err)
	}
}
