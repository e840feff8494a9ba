package domain

import (
	"time"

	"github.com/google/uuid"
)

// PlanStatus is the lifecycle state of an action plan.
type PlanStatus string

const (
	PlanStatusPendingApproval PlanStatus = "pending_approval"
	PlanStatusApproved        PlanStatus = "approved"
	PlanStatusExecuting       PlanStatus = "executing"
	PlanStatusCompleted       PlanStatus = "completed"
	PlanStatusRolledBack      PlanStatus = "rolled_back"
	PlanStatusFailed          PlanStatus = "failed"
	PlanStatusRejected        PlanStatus = "rejected"
)

// Terminal reports whether the plan can no longer change state.
func (s PlanStatus) Terminal() bool {
	switch s {
	case PlanStatusCompleted, PlanStatusRolledBack, PlanStatusFailed, PlanStatusRejected:
		return true
	}
	return false
}

// ActionPlan is the resolved, ordered set of steps to execute for one
// resource after conflict resolution. Exactly one plan exists per resource
// per coordination window, and at most one plan is active per resource.
type ActionPlan struct {
	ID            uuid.UUID        `json:"id"`
	ResourceID    string           `json:"resource_id"`
	Steps         []ChangeProposal `json:"steps"`
	Status        PlanStatus       `json:"status"`
	FailureReason string           `json:"failure_reason,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// PhaseVerdict is the quality judgement for one rollout phase.
type PhaseVerdict string

const (
	VerdictPending PhaseVerdict = "pending"
	VerdictPass    PhaseVerdict = "pass"
	VerdictFail    PhaseVerdict = "fail"
	// VerdictCanceled marks a phase cut short by an operator cancel before
	// any quality judgement could run. Distinct from fail: the metrics were
	// never found wanting.
	VerdictCanceled PhaseVerdict = "canceled"
)

// RolloutPhase records one fractional step of a plan's rollout. The record
// is immutable once its verdict is set.
type RolloutPhase struct {
	ID          uuid.UUID          `json:"id"`
	PlanID      uuid.UUID          `json:"plan_id"`
	Fraction    float64            `json:"fraction"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	Baseline    map[string]float64 `json:"baseline_snapshot,omitempty"`
	Observed    map[string]float64 `json:"observed_snapshot,omitempty"`
	Verdict     PhaseVerdict       `json:"verdict"`
}
