// Package resolver turns the proposals collected in one coordination
// window into at most one action plan per resource. Resolution is a fixed
// business policy, encoded as explicit tables so it can be unit-tested
// directly, and fully deterministic: the same proposal set produces the
// same plan regardless of input order.
package resolver

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/strataops/vantage/internal/domain"
)

// DomainPriority is the fixed ordering used when proposals conflict:
// application quality and safety outrank performance, performance outranks
// resource efficiency, and cost always loses to all of them.
var DomainPriority = []domain.PriorityDomain{
	domain.DomainApplication,
	domain.DomainPerformance,
	domain.DomainResource,
	domain.DomainCost,
}

var domainRank = func() map[domain.PriorityDomain]int {
	m := make(map[domain.PriorityDomain]int, len(DomainPriority))
	for i, d := range DomainPriority {
		m[d] = i
	}
	return m
}()

// Rank returns the priority rank of a domain; lower wins. Unknown domains
// rank below every known one.
func Rank(d domain.PriorityDomain) int {
	if r, ok := domainRank[d]; ok {
		return r
	}
	return len(DomainPriority)
}

// actionClass groups action types that cannot be applied together to one
// resource: two sizing decisions are mutually exclusive, as are two
// placement decisions.
type actionClass int

const (
	classLifecycle actionClass = iota
	classSizing
	classPlacement
	classTuning
)

var actionClasses = map[domain.ActionType]actionClass{
	domain.ActionTerminate:   classLifecycle,
	domain.ActionKeep:        classLifecycle,
	domain.ActionRightSize:   classSizing,
	domain.ActionScaleUp:     classSizing,
	domain.ActionScaleDown:   classSizing,
	domain.ActionMigrate:     classPlacement,
	domain.ActionReconfigure: classTuning,
}

// lifecycle actions decide whether the resource exists at all, so they
// exclude every other action on the same resource.
var excludesAll = map[domain.ActionType]bool{
	domain.ActionTerminate: true,
	domain.ActionKeep:      true,
}

// Conflicts reports whether two actions are mutually exclusive on one
// resource. Unknown action types conflict conservatively.
func Conflicts(a, b domain.ActionType) bool {
	if a == b {
		return true
	}
	if excludesAll[a] || excludesAll[b] {
		return true
	}
	ca, okA := actionClasses[a]
	cb, okB := actionClasses[b]
	if !okA || !okB {
		return true
	}
	return ca == cb
}

// Resolution is the outcome of one coordination window: at most one plan
// per resource, plus every proposal that lost and must be recorded for the
// audit trail.
type Resolution struct {
	Plans      []domain.ActionPlan
	Superseded []domain.ChangeProposal
}

// Resolve groups proposals by resource and reduces each group to a single
// plan. Within a group, proposals are considered strongest-first (domain
// priority, then confidence, then proposal ID) and accepted greedily: a
// proposal joins the plan unless it conflicts with one already accepted.
// Non-conflicting proposals therefore all merge; a pure conflict reduces
// to the single highest-priority proposal. Accepted steps are ordered by
// descending confidence.
func Resolve(proposals []domain.ChangeProposal) Resolution {
	byResource := make(map[string][]domain.ChangeProposal)
	for _, p := range proposals {
		byResource[p.ResourceID] = append(byResource[p.ResourceID], p)
	}

	resources := make([]string, 0, len(byResource))
	for r := range byResource {
		resources = append(resources, r)
	}
	sort.Strings(resources)

	var res Resolution
	now := time.Now()

	for _, resource := range resources {
		group := byResource[resource]
		sort.Slice(group, func(i, j int) bool {
			return strongerThan(&group[i], &group[j])
		})

		var accepted []domain.ChangeProposal
		for _, p := range group {
			conflicted := false
			for _, a := range accepted {
				if Conflicts(p.Action, a.Action) {
					conflicted = true
					break
				}
			}
			if conflicted {
				p.Status = domain.ProposalStatusSuperseded
				res.Superseded = append(res.Superseded, p)
				continue
			}
			p.Status = domain.ProposalStatusSelected
			accepted = append(accepted, p)
		}

		// Execution order inside the plan is by confidence, not priority:
		// the steps no longer compete once the conflicts are settled.
		sort.Slice(accepted, func(i, j int) bool {
			if accepted[i].Confidence != accepted[j].Confidence {
				return accepted[i].Confidence > accepted[j].Confidence
			}
			return accepted[i].ID.String() < accepted[j].ID.String()
		})

		res.Plans = append(res.Plans, domain.ActionPlan{
			ID:         uuid.New(),
			ResourceID: resource,
			Steps:      accepted,
			Status:     domain.PlanStatusPendingApproval,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	return res
}

// strongerThan is the canonical conflict ordering: domain priority first,
// then higher confidence, then earliest proposal ID for reproducibility.
func strongerThan(a, b *domain.ChangeProposal) bool {
	ra, rb := Rank(a.Domain), Rank(b.Domain)
	if ra != rb {
		return ra < rb
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.ID.String() < b.ID.String()
}
