package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/strataops/vantage/internal/domain"
	"github.com/strataops/vantage/internal/rollout"
)

type PlanHandler struct {
	plans     domain.PlanStore
	phases    domain.PhaseStore
	proposals domain.ProposalStore
	engine    *rollout.Engine
}

func NewPlanHandler(plans domain.PlanStore, phases domain.PhaseStore, proposals domain.ProposalStore, engine *rollout.Engine) *PlanHandler {
	return &PlanHandler{plans: plans, phases: phases, proposals: proposals, engine: engine}
}

func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	var status *domain.PlanStatus
	if s := r.URL.Query().Get("status"); s != "" {
		ps := domain.PlanStatus(s)
		status = &ps
	}

	plans, err := h.plans.List(r.Context(), status)
	if err != nil {
		writeDomainError(w, err, "failed to list plans")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"plans": plans,
		"count": len(plans),
	})
}

func (h *PlanHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid plan id")
		return
	}

	plan, err := h.plans.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to get plan")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// Phases returns the rollout history of a plan, oldest first.
func (h *PlanHandler) Phases(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid plan id")
		return
	}

	phases, err := h.phases.ListByPlan(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to list phases")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"phases": phases,
		"count":  len(phases),
	})
}

func (h *PlanHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid plan id")
		return
	}

	if err := h.engine.Approve(r.Context(), id); err != nil {
		writeDomainError(w, err, "failed to approve plan")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "approved"})
}

func (h *PlanHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid plan id")
		return
	}

	if err := h.engine.Reject(r.Context(), id); err != nil {
		writeDomainError(w, err, "failed to reject plan")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func (h *PlanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid plan id")
		return
	}

	if err := h.engine.Cancel(r.Context(), id); err != nil {
		writeDomainError(w, err, "failed to cancel plan")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "canceling"})
}

// Proposals returns the audit trail of proposals for one resource,
// superseded ones included.
func (h *PlanHandler) Proposals(w http.ResponseWriter, r *http.Request) {
	resourceID := r.URL.Query().Get("resource_id")
	if resourceID == "" {
		writeError(w, http.StatusBadRequest, "resource_id is required")
		return
	}

	proposals, err := h.proposals.ListByResource(r.Context(), resourceID)
	if err != nil {
		writeDomainError(w, err, "failed to list proposals")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"proposals": proposals,
		"count":     len(proposals),
	})
}
