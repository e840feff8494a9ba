package domain

import (
	"time"

	"github.com/google/uuid"
)

// PriorityDomain is the business domain a proposal optimizes for. It decides
// which proposal wins when agents disagree about the same resource.
type PriorityDomain string

const (
	DomainApplication PriorityDomain = "application"
	DomainPerformance PriorityDomain = "performance"
	DomainResource    PriorityDomain = "resource"
	DomainCost        PriorityDomain = "cost"
)

func (d PriorityDomain) Valid() bool {
	switch d {
	case DomainApplication, DomainPerformance, DomainResource, DomainCost:
		return true
	}
	return false
}

// ActionType is the kind of change a proposal wants to make to a resource.
type ActionType string

const (
	ActionRightSize   ActionType = "right_size"
	ActionScaleUp     ActionType = "scale_up"
	ActionScaleDown   ActionType = "scale_down"
	ActionMigrate     ActionType = "migrate"
	ActionReconfigure ActionType = "reconfigure"
	ActionTerminate   ActionType = "terminate"
	ActionKeep        ActionType = "keep"
)

// ProposalStatus tracks what the resolver decided about a proposal.
// Every proposal is retained for the audit trail regardless of outcome.
type ProposalStatus string

const (
	ProposalStatusPending    ProposalStatus = "pending"
	ProposalStatusSelected   ProposalStatus = "selected"
	ProposalStatusSuperseded ProposalStatus = "superseded"
)

// ChangeProposal is a single candidate change produced by an agent in
// response to a routed trigger. It is an immutable value once created;
// only the stored audit record's status changes after resolution.
type ChangeProposal struct {
	ID              uuid.UUID          `json:"id"`
	AgentID         uuid.UUID          `json:"agent_id"`
	ResourceID      string             `json:"resource_id"`
	Action          ActionType         `json:"action"`
	Domain          PriorityDomain     `json:"domain"`
	EstimatedImpact map[string]float64 `json:"estimated_impact,omitempty"`
	Confidence      float64            `json:"confidence"`
	Status          ProposalStatus     `json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
}

// Trigger is the event that starts a coordination window for one resource:
// a customer request or a scheduler tick asking the responsible agents to
// propose changes.
type Trigger struct {
	ID           uuid.UUID   `json:"id"`
	ResourceID   string      `json:"resource_id"`
	Reason       string      `json:"reason,omitempty"`
	Domains      []AgentType `json:"domains,omitempty"` // empty means all domains
	Capabilities []string    `json:"capabilities,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}
