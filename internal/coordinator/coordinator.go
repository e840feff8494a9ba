// Package coordinator runs one coordination window per trigger: route the
// trigger to the responsible agent per domain, collect their proposals in
// parallel, resolve conflicts and persist the resulting plan for operator
// approval.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strataops/vantage/internal/domain"
	"github.com/strataops/vantage/internal/obs"
	"github.com/strataops/vantage/internal/resolver"
	"github.com/strataops/vantage/internal/router"
)

// Outcome is the result of one coordination window. Plan is nil when no
// agent produced a usable proposal.
type Outcome struct {
	Trigger    domain.Trigger          `json:"trigger"`
	Proposals  []domain.ChangeProposal `json:"proposals"`
	Superseded []domain.ChangeProposal `json:"superseded,omitempty"`
	Plan       *domain.ActionPlan      `json:"plan,omitempty"`
}

type Coordinator struct {
	router    *router.Router
	client    domain.AgentClient
	proposals domain.ProposalStore
	plans     domain.PlanStore
	window    time.Duration
	logger    *zap.Logger
}

func New(rt *router.Router, client domain.AgentClient, proposals domain.ProposalStore, plans domain.PlanStore, window time.Duration, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		router:    rt,
		client:    client,
		proposals: proposals,
		plans:     plans,
		window:    window,
		logger:    logger,
	}
}

// HandleTrigger runs the full coordination window for one trigger.
// Returns domain.ErrNoAgentAvailable when no healthy agent covers any of
// the requested domains. Agents that fail or miss the window are logged
// and skipped; their absence never blocks the proposals that did arrive.
func (c *Coordinator) HandleTrigger(ctx context.Context, trigger domain.Trigger) (*Outcome, error) {
	if trigger.ResourceID == "" {
		return nil, fmt.Errorf("trigger resource_id is required")
	}
	if trigger.ID == uuid.Nil {
		trigger.ID = uuid.New()
	}
	if trigger.CreatedAt.IsZero() {
		trigger.CreatedAt = time.Now()
	}

	log := c.logger.With(
		zap.String("trigger_id", trigger.ID.String()),
		zap.String("resource_id", trigger.ResourceID))

	agents, err := c.router.RouteEach(trigger.Domains, trigger.Capabilities, trigger.ResourceID)
	if err != nil {
		return nil, err
	}
	log.Info("coordination window opened",
		zap.Int("agents", len(agents)),
		zap.Duration("window", c.window))

	proposals := c.collect(ctx, trigger, agents, log)
	outcome := &Outcome{Trigger: trigger, Proposals: proposals}
	if len(proposals) == 0 {
		log.Warn("coordination window closed with no proposals")
		return outcome, nil
	}

	// Persist every proposal before resolution so the audit trail has the
	// raw inputs even if resolution bookkeeping fails midway.
	for i := range proposals {
		if err := c.proposals.Create(ctx, &proposals[i]); err != nil {
			return nil, fmt.Errorf("persist proposal %s: %w", proposals[i].ID, err)
		}
	}

	res := resolver.Resolve(proposals)
	for _, p := range res.Superseded {
		if err := c.proposals.UpdateStatus(ctx, p.ID, domain.ProposalStatusSuperseded); err != nil {
			return nil, fmt.Errorf("mark proposal %s superseded: %w", p.ID, err)
		}
		obs.ProposalsTotal.WithLabelValues(string(p.Domain), string(domain.ProposalStatusSuperseded)).Inc()
	}
	outcome.Superseded = res.Superseded

	// One trigger names one resource, so resolution yields one plan.
	plan := res.Plans[0]
	for _, step := range plan.Steps {
		if err := c.proposals.UpdateStatus(ctx, step.ID, domain.ProposalStatusSelected); err != nil {
			return nil, fmt.Errorf("mark proposal %s selected: %w", step.ID, err)
		}
		obs.ProposalsTotal.WithLabelValues(string(step.Domain), string(domain.ProposalStatusSelected)).Inc()
	}
	if err := c.plans.Create(ctx, &plan); err != nil {
		return nil, fmt.Errorf("persist plan: %w", err)
	}
	outcome.Plan = &plan

	log.Info("coordination window resolved",
		zap.String("plan_id", plan.ID.String()),
		zap.Int("steps", len(plan.Steps)),
		zap.Int("superseded", len(res.Superseded)))
	return outcome, nil
}

// collect fans the trigger out to every routed agent and gathers the
// proposals that arrive within the coordination window.
func (c *Coordinator) collect(ctx context.Context, trigger domain.Trigger, agents []domain.AgentRecord, log *zap.Logger) []domain.ChangeProposal {
	ctx, cancel := context.WithTimeout(ctx, c.window)
	defer cancel()

	results := make(chan *domain.ChangeProposal, len(agents))
	var wg sync.WaitGroup
	for _, agent := range agents {
		wg.Add(1)
		go func(agent domain.AgentRecord) {
			defer wg.Done()
			proposal, err := c.client.GenerateProposal(ctx, agent, trigger)
			if err != nil {
				log.Warn("agent produced no proposal",
					zap.String("agent_id", agent.ID.String()),
					zap.String("type", string(agent.Type)),
					zap.Error(err))
				return
			}
			results <- proposal
		}(agent)
	}
	wg.Wait()
	close(results)

	proposals := make([]domain.ChangeProposal, 0, len(agents))
	for p := range results {
		proposals = append(proposals, *p)
		obs.ProposalsTotal.WithLabelValues(string(p.Domain), string(domain.ProposalStatusPending)).Inc()
	}
	return proposals
}
