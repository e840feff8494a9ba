package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AgentStore is the durable audit trail of agent registrations. The
// in-memory registry is authoritative for liveness; every registration and
// status transition is written through here so history survives eviction.
type AgentStore interface {
	Upsert(ctx context.Context, a *AgentRecord) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status AgentStatus, lastHeartbeat time.Time) error
	Get(ctx context.Context, id uuid.UUID) (*AgentRecord, error)
	List(ctx context.Context) ([]AgentRecord, error)
}

// ProposalStore persists every proposal an agent produces, including the
// ones the resolver supersedes. Superseded proposals are never deleted.
type ProposalStore interface {
	Create(ctx context.Context, p *ChangeProposal) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status ProposalStatus) error
	GetByID(ctx context.Context, id uuid.UUID) (*ChangeProposal, error)
	ListByResource(ctx context.Context, resourceID string) ([]ChangeProposal, error)
}

// PlanStore persists action plans and their step ordering.
type PlanStore interface {
	Create(ctx context.Context, p *ActionPlan) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status PlanStatus, failureReason string) error
	GetByID(ctx context.Context, id uuid.UUID) (*ActionPlan, error)
	List(ctx context.Context, status *PlanStatus) ([]ActionPlan, error)
}

// PhaseStore persists rollout phase records.
type PhaseStore interface {
	Create(ctx context.Context, ph *RolloutPhase) error
	Finish(ctx context.Context, id uuid.UUID, observed map[string]float64, verdict PhaseVerdict, completedAt time.Time) error
	ListByPlan(ctx context.Context, planID uuid.UUID) ([]RolloutPhase, error)
}

// AgentClient is the execution contract every agent exposes. How an agent
// computes a proposal (including any LLM calls) is opaque to the core.
type AgentClient interface {
	GenerateProposal(ctx context.Context, agent AgentRecord, trigger Trigger) (*ChangeProposal, error)
	Execute(ctx context.Context, agent AgentRecord, step ChangeProposal, fraction float64) error
	Rollback(ctx context.Context, agent AgentRecord, step ChangeProposal) error
}

// MetricPoint is one reading from the external metrics store.
type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// MetricsSource reads time-series quality/latency/error signals keyed by
// (resource, metric, time range) from the external metrics store.
type MetricsSource interface {
	Query(ctx context.Context, resourceID, metric string, from, to time.Time) ([]MetricPoint, error)
}
