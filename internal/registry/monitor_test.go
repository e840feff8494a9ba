package registry

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/strataops/vantage/internal/domain"
)

func shortPolicy() Policy {
	return Policy{
		HeartbeatInterval: 40 * time.Millisecond,
		MissedThreshold:   60 * time.Millisecond,
		EvictAfter:        150 * time.Millisecond,
	}
}

func TestMonitor_SilentAgentBecomesUnreachable(t *testing.T) {
	reg, store := testRegistry(shortPolicy())
	mon := NewMonitor(reg, zap.NewNop())
	ctx := context.Background()

	id, _ := reg.Register(ctx, costAgent("10.0.0.1", 9000))

	// Fresh agent survives a tick.
	mon.Tick(ctx)
	got, _ := reg.Get(id)
	if got.Status != domain.AgentStatusHealthy {
		t.Fatalf("fresh agent must stay healthy, got %s", got.Status)
	}

	time.Sleep(80 * time.Millisecond)
	mon.Tick(ctx)

	got, _ = reg.Get(id)
	if got.Status != domain.AgentStatusUnreachable {
		t.Fatalf("silent agent must be unreachable within one tick, got %s", got.Status)
	}
	if listed := reg.List(Filter{HealthyOnly: true}); len(listed) != 0 {
		t.Fatalf("unreachable agent must not appear in healthy listings, got %d", len(listed))
	}

	store.mu.Lock()
	if store.statuses[id] != domain.AgentStatusUnreachable {
		t.Fatal("expected unreachable transition in the audit store")
	}
	store.mu.Unlock()
}

func TestMonitor_ProlongedSilenceEvicts(t *testing.T) {
	reg, _ := testRegistry(shortPolicy())
	mon := NewMonitor(reg, zap.NewNop())
	ctx := context.Background()

	id, _ := reg.Register(ctx, costAgent("10.0.0.1", 9000))

	time.Sleep(170 * time.Millisecond)
	mon.Tick(ctx)

	if _, err := reg.Get(id); err != domain.ErrNotFound {
		t.Fatalf("expected eviction after prolonged silence, got %v", err)
	}

	// The address frees up for a new registration after eviction.
	if _, err := reg.Register(ctx, costAgent("10.0.0.1", 9000)); err != nil {
		t.Fatalf("expected evicted addr to be reusable, got %v", err)
	}
}

func TestMonitor_HeartbeatRecoversBeforeEviction(t *testing.T) {
	reg, _ := testRegistry(shortPolicy())
	mon := NewMonitor(reg, zap.NewNop())
	ctx := context.Background()

	id, _ := reg.Register(ctx, costAgent("10.0.0.1", 9000))

	time.Sleep(80 * time.Millisecond)
	mon.Tick(ctx)
	got, _ := reg.Get(id)
	if got.Status != domain.AgentStatusUnreachable {
		t.Fatalf("expected unreachable, got %s", got.Status)
	}

	// A heartbeat brings the agent back without re-registration.
	if err := reg.Heartbeat(ctx, id, domain.AgentStatusHealthy); err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}
	mon.Tick(ctx)
	got, _ = reg.Get(id)
	if got.Status != domain.AgentStatusHealthy {
		t.Fatalf("expected recovery to healthy, got %s", got.Status)
	}
}

func TestMonitor_StoppedAgentsEvictedAfterAuditWindow(t *testing.T) {
	reg, _ := testRegistry(shortPolicy())
	mon := NewMonitor(reg, zap.NewNop())
	ctx := context.Background()

	id, _ := reg.Register(ctx, costAgent("10.0.0.1", 9000))
	_ = reg.Unregister(ctx, id)

	mon.Tick(ctx)
	if _, err := reg.Get(id); err != nil {
		t.Fatalf("stopped agent should survive the audit window, got %v", err)
	}

	time.Sleep(170 * time.Millisecond)
	mon.Tick(ctx)
	if _, err := reg.Get(id); err != domain.ErrNotFound {
		t.Fatalf("expected stopped agent eviction after audit window, got %v", err)
	}
}

func TestMonitor_StartStop(t *testing.T) {
	reg, _ := testRegistry(shortPolicy())
	mon := NewMonitor(reg, zap.NewNop())
	mon.SetInterval(10 * time.Millisecond)

	id, _ := reg.Register(context.Background(), costAgent("10.0.0.1", 9000))

	mon.Start()
	time.Sleep(100 * time.Millisecond)
	mon.Stop()

	got, err := reg.Get(id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != domain.AgentStatusUnreachable {
		t.Fatalf("running monitor should have marked the agent unreachable, got %s", got.Status)
	}
}
