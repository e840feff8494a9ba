package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/strataops/vantage/internal/coordinator"
	"github.com/strataops/vantage/internal/domain"
)

type TriggerHandler struct {
	coord *coordinator.Coordinator
}

func NewTriggerHandler(coord *coordinator.Coordinator) *TriggerHandler {
	return &TriggerHandler{coord: coord}
}

type submitTriggerRequest struct {
	ResourceID   string             `json:"resource_id"`
	Reason       string             `json:"reason,omitempty"`
	Domains      []domain.AgentType `json:"domains,omitempty"`
	Capabilities []string           `json:"capabilities,omitempty"`
}

// Submit opens a coordination window for one resource and blocks until it
// resolves. The response carries every proposal collected plus the plan
// awaiting approval, if any.
func (h *TriggerHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ResourceID == "" {
		writeError(w, http.StatusBadRequest, "resource_id is required")
		return
	}
	for _, d := range req.Domains {
		if !d.Valid() {
			writeError(w, http.StatusBadRequest, "unknown domain "+string(d))
			return
		}
	}

	outcome, err := h.coord.HandleTrigger(r.Context(), domain.Trigger{
		ResourceID:   req.ResourceID,
		Reason:       req.Reason,
		Domains:      req.Domains,
		Capabilities: req.Capabilities,
	})
	if err != nil {
		writeDomainError(w, err, "coordination failed")
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
