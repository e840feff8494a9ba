// Package rollout executes approved action plans in graduated phases,
// checking quality after every phase and rolling back on degradation.
package rollout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strataops/vantage/internal/config"
	"github.com/strataops/vantage/internal/domain"
	"github.com/strataops/vantage/internal/obs"
	"github.com/strataops/vantage/internal/quality"
)

// AgentLookup resolves the agent instance a step must be executed on.
// The registry satisfies this.
type AgentLookup interface {
	Get(id uuid.UUID) (domain.AgentRecord, error)
}

// sleepFunc waits for d or until the context is done. Injected so tests
// can run phase dwells without wall-clock delays.
type sleepFunc func(ctx context.Context, d time.Duration) error

func realSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Engine drives plan execution. At most one plan runs per resource at a
// time; a second approval for the same resource is rejected until the
// first reaches a terminal state.
type Engine struct {
	plans   domain.PlanStore
	phases  domain.PhaseStore
	agents  AgentLookup
	client  domain.AgentClient
	quality *quality.Monitor
	policy  config.RolloutPolicy
	logger  *zap.Logger
	sleep   sleepFunc

	mu      sync.Mutex
	active  map[string]uuid.UUID // resource -> running plan
	cancels map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
}

func NewEngine(plans domain.PlanStore, phases domain.PhaseStore, agents AgentLookup, client domain.AgentClient, qm *quality.Monitor, policy config.RolloutPolicy, logger *zap.Logger) *Engine {
	return &Engine{
		plans:   plans,
		phases:  phases,
		agents:  agents,
		client:  client,
		quality: qm,
		policy:  policy,
		logger:  logger,
		sleep:   realSleep,
		active:  make(map[string]uuid.UUID),
		cancels: make(map[uuid.UUID]context.CancelFunc),
	}
}

// Approve moves a pending plan to approved and starts its rollout in the
// background. Returns domain.ErrConflict if the plan is not awaiting
// approval or another plan is already running for the same resource.
func (e *Engine) Approve(ctx context.Context, planID uuid.UUID) error {
	plan, err := e.plans.GetByID(ctx, planID)
	if err != nil {
		return err
	}
	if plan.Status != domain.PlanStatusPendingApproval {
		return fmt.Errorf("plan %s is %s: %w", planID, plan.Status, domain.ErrConflict)
	}

	e.mu.Lock()
	if running, ok := e.active[plan.ResourceID]; ok {
		e.mu.Unlock()
		return fmt.Errorf("plan %s already running for resource %s: %w", running, plan.ResourceID, domain.ErrConflict)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	e.active[plan.ResourceID] = plan.ID
	e.cancels[plan.ID] = cancel
	e.mu.Unlock()

	if err := e.plans.UpdateStatus(ctx, plan.ID, domain.PlanStatusApproved, ""); err != nil {
		e.release(plan)
		return err
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.release(plan)
		e.run(runCtx, plan)
	}()
	return nil
}

// Reject marks a pending plan rejected. Its proposals stay in the audit
// trail untouched.
func (e *Engine) Reject(ctx context.Context, planID uuid.UUID) error {
	plan, err := e.plans.GetByID(ctx, planID)
	if err != nil {
		return err
	}
	if plan.Status != domain.PlanStatusPendingApproval {
		return fmt.Errorf("plan %s is %s: %w", planID, plan.Status, domain.ErrConflict)
	}
	return e.plans.UpdateStatus(ctx, planID, domain.PlanStatusRejected, "rejected by operator")
}

// Cancel asks a running rollout to stop. The in-flight agent call is
// allowed to settle first; applied steps are then rolled back and the plan
// marked rolled back. If the cancel lands while a step's outcome is still
// unacknowledged, the plan fails with an unknown-state reason instead of
// pretending a clean rollback. Returns domain.ErrConflict if the plan is
// not running.
func (e *Engine) Cancel(_ context.Context, planID uuid.UUID) error {
	e.mu.Lock()
	cancel, ok := e.cancels[planID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("plan %s is not executing: %w", planID, domain.ErrConflict)
	}
	cancel()
	return nil
}

// Running reports the plan currently executing for a resource, if any.
func (e *Engine) Running(resourceID string) (uuid.UUID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.active[resourceID]
	return id, ok
}

// Drain blocks until every running rollout has finished. Cancel running
// plans first for a fast shutdown.
func (e *Engine) Drain() {
	e.wg.Wait()
}

func (e *Engine) release(plan *domain.ActionPlan) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cancel, ok := e.cancels[plan.ID]; ok {
		cancel()
		delete(e.cancels, plan.ID)
	}
	if e.active[plan.ResourceID] == plan.ID {
		delete(e.active, plan.ResourceID)
	}
}

// run executes the plan phase by phase. Store writes use a background
// context so bookkeeping survives cancellation of the rollout itself.
func (e *Engine) run(ctx context.Context, plan *domain.ActionPlan) {
	store := context.Background()
	log := e.logger.With(
		zap.String("plan_id", plan.ID.String()),
		zap.String("resource_id", plan.ResourceID))

	if err := e.plans.UpdateStatus(store, plan.ID, domain.PlanStatusExecuting, ""); err != nil {
		log.Error("failed to mark plan executing", zap.Error(err))
		return
	}
	log.Info("rollout started", zap.Int("steps", len(plan.Steps)), zap.Int("phases", len(e.policy.Phases)))

	// Steps whose Execute succeeded at least once; these are what a
	// rollback must undo, in reverse order.
	var applied []domain.ChangeProposal

	for _, spec := range e.policy.Phases {
		if ctx.Err() != nil {
			e.rollBack(store, plan, applied, log, "canceled by operator")
			return
		}

		phase := &domain.RolloutPhase{
			ID:        uuid.New(),
			PlanID:    plan.ID,
			Fraction:  spec.Fraction,
			StartedAt: time.Now(),
			Verdict:   domain.VerdictPending,
		}

		baseline, err := e.quality.Snapshot(ctx, plan.ResourceID)
		if err != nil {
			log.Error("baseline snapshot failed", zap.Error(err))
			e.rollBack(store, plan, applied, log, fmt.Sprintf("baseline snapshot failed: %v", err))
			return
		}
		phase.Baseline = baseline

		if err := e.phases.Create(store, phase); err != nil {
			log.Error("failed to persist phase", zap.Error(err))
			e.rollBack(store, plan, applied, log, fmt.Sprintf("phase bookkeeping failed: %v", err))
			return
		}

		for _, step := range plan.Steps {
			if ctx.Err() != nil {
				e.finishPhase(store, phase, nil, domain.VerdictCanceled)
				e.rollBack(store, plan, applied, log, "canceled by operator")
				return
			}
			err := e.executeStep(ctx, step, spec.Fraction, log)
			switch {
			case err == nil:
				if !containsStep(applied, step.ID) {
					applied = append(applied, step)
				}
			case domain.IsTransient(err):
				// Retries exhausted without an acknowledgement: the change
				// may or may not have landed, so rolling back could undo a
				// change that never happened. Stop and page the operator.
				log.Error("rollout outcome unknown, operator intervention required",
					zap.String("step_id", step.ID.String()),
					zap.Error(err))
				e.finishPhase(store, phase, nil, domain.VerdictFail)
				e.fail(store, plan, fmt.Sprintf("step %s outcome unknown after retries: %v: %v", step.ID, domain.ErrUnknownState, err))
				return
			default:
				log.Warn("step execution rejected", zap.String("step_id", step.ID.String()), zap.Error(err))
				e.finishPhase(store, phase, nil, domain.VerdictFail)
				e.rollBack(store, plan, applied, log, fmt.Sprintf("step %s failed: %v", step.ID, err))
				return
			}
		}

		log.Info("phase applied, dwelling",
			zap.Float64("fraction", spec.Fraction),
			zap.Duration("dwell", spec.Dwell.Std()))

		if err := e.sleep(ctx, spec.Dwell.Std()); err != nil {
			// Canceled mid-dwell. Seal the phase with a real judgement over
			// whatever observation window elapsed before undoing the change,
			// so the audit trail never shows a quality fail that never ran.
			if observed, snapErr := e.quality.Snapshot(store, plan.ResourceID); snapErr == nil {
				verdict, _ := e.quality.Judge(baseline, observed)
				e.finishPhase(store, phase, observed, verdict)
			} else {
				e.finishPhase(store, phase, nil, domain.VerdictCanceled)
			}
			e.rollBack(store, plan, applied, log, "canceled by operator")
			return
		}

		observed, err := e.quality.Snapshot(store, plan.ResourceID)
		if err != nil {
			log.Error("observed snapshot failed", zap.Error(err))
			e.finishPhase(store, phase, nil, domain.VerdictFail)
			e.rollBack(store, plan, applied, log, fmt.Sprintf("observed snapshot failed: %v", err))
			return
		}

		verdict, breaches := e.quality.Judge(baseline, observed)
		e.finishPhase(store, phase, observed, verdict)

		if verdict == domain.VerdictFail {
			for _, b := range breaches {
				log.Warn("quality threshold breached",
					zap.Float64("fraction", spec.Fraction),
					zap.String("metric", b.Metric),
					zap.Float64("baseline", b.Baseline),
					zap.Float64("observed", b.Observed),
					zap.Float64("limit", b.Limit))
			}
			e.rollBack(store, plan, applied, log, fmt.Sprintf("quality breach at %.0f%%", spec.Fraction*100))
			return
		}
		log.Info("phase passed", zap.Float64("fraction", spec.Fraction))
	}

	if err := e.plans.UpdateStatus(store, plan.ID, domain.PlanStatusCompleted, ""); err != nil {
		log.Error("failed to mark plan completed", zap.Error(err))
		return
	}
	obs.RolloutsTotal.WithLabelValues("completed").Inc()
	log.Info("rollout completed")
}

// executeStep applies one step at a fraction, retrying transient
// transport failures with exponential backoff. The Execute RPC itself is
// shielded from plan cancellation: aborting it mid-flight would leave the
// change in an unknown state, so a cancel only takes effect between
// attempts, once the in-flight call has settled.
func (e *Engine) executeStep(ctx context.Context, step domain.ChangeProposal, fraction float64, log *zap.Logger) error {
	agent, err := e.agents.Get(step.AgentID)
	if err != nil {
		return fmt.Errorf("agent for step %s: %w", step.ID, err)
	}

	callCtx := context.WithoutCancel(ctx)
	backoff := e.policy.Retry.Backoff.Std()
	var lastErr error
	for attempt := 1; attempt <= e.policy.Retry.Attempts; attempt++ {
		lastErr = e.client.Execute(callCtx, agent, step, fraction)
		if lastErr == nil {
			return nil
		}
		if !domain.IsTransient(lastErr) {
			return lastErr
		}
		if ctx.Err() != nil {
			// Canceled with the last attempt unacknowledged. No retry will
			// settle the outcome now, so surface it as exhaustion.
			return lastErr
		}
		if attempt < e.policy.Retry.Attempts {
			log.Warn("transient execute failure, retrying",
				zap.String("step_id", step.ID.String()),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			if err := e.sleep(ctx, backoff); err != nil {
				return lastErr
			}
			backoff *= 2
		}
	}
	return lastErr
}

// rollBack undoes the applied steps in reverse order and marks the plan
// rolled back. A rollback call that itself fails leaves the resource in
// an unknown state, which is flagged instead of silently swallowed.
func (e *Engine) rollBack(ctx context.Context, plan *domain.ActionPlan, applied []domain.ChangeProposal, log *zap.Logger, reason string) {
	var failed []string
	for i := len(applied) - 1; i >= 0; i-- {
		step := applied[i]
		agent, err := e.agents.Get(step.AgentID)
		if err == nil {
			err = e.client.Rollback(ctx, agent, step)
		}
		if err != nil {
			log.Error("rollback of step failed", zap.String("step_id", step.ID.String()), zap.Error(err))
			failed = append(failed, step.ID.String())
		}
	}

	if len(failed) > 0 {
		e.fail(ctx, plan, fmt.Sprintf("%s; rollback incomplete for steps %v: %v", reason, failed, domain.ErrUnknownState))
		return
	}

	if err := e.plans.UpdateStatus(ctx, plan.ID, domain.PlanStatusRolledBack, reason); err != nil {
		log.Error("failed to mark plan rolled back", zap.Error(err))
	}
	obs.RolloutsTotal.WithLabelValues("rolled_back").Inc()
	log.Info("rollout rolled back", zap.String("reason", reason), zap.Int("steps_undone", len(applied)))
}

func (e *Engine) fail(ctx context.Context, plan *domain.ActionPlan, reason string) {
	if err := e.plans.UpdateStatus(ctx, plan.ID, domain.PlanStatusFailed, reason); err != nil {
		e.logger.Error("failed to mark plan failed",
			zap.String("plan_id", plan.ID.String()), zap.Error(err))
	}
	obs.RolloutsTotal.WithLabelValues("failed").Inc()
}

func (e *Engine) finishPhase(ctx context.Context, phase *domain.RolloutPhase, observed map[string]float64, verdict domain.PhaseVerdict) {
	now := time.Now()
	if err := e.phases.Finish(ctx, phase.ID, observed, verdict, now); err != nil {
		e.logger.Error("failed to finish phase record",
			zap.String("phase_id", phase.ID.String()), zap.Error(err))
	}
	obs.PhaseDuration.WithLabelValues(string(verdict)).Observe(now.Sub(phase.StartedAt).Seconds())
}

func containsStep(steps []domain.ChangeProposal, id uuid.UUID) bool {
	for _, s := range steps {
		if s.ID == id {
			return true
		}
	}
	return false
}
