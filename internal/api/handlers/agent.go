package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/strataops/vantage/internal/domain"
	"github.com/strataops/vantage/internal/registry"
)

type AgentHandler struct {
	reg *registry.Registry
}

func NewAgentHandler(reg *registry.Registry) *AgentHandler {
	return &AgentHandler{reg: reg}
}

type registerAgentRequest struct {
	ID           *uuid.UUID       `json:"id,omitempty"` // set on re-registration
	Type         domain.AgentType `json:"type"`
	Host         string           `json:"host"`
	Port         int              `json:"port"`
	Capabilities []string         `json:"capabilities,omitempty"`
	Version      string           `json:"version,omitempty"`
}

type registerAgentResponse struct {
	Agent             domain.AgentRecord `json:"agent"`
	HeartbeatInterval string             `json:"heartbeat_interval"`
}

// Register admits an agent into the registry. The response tells the
// agent how often it must heartbeat to stay routable.
func (h *AgentHandler) Register(heartbeatInterval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerAgentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if !req.Type.Valid() {
			writeError(w, http.StatusBadRequest, "unknown agent type")
			return
		}
		if req.Host == "" || req.Port <= 0 {
			writeError(w, http.StatusBadRequest, "host and port are required")
			return
		}

		rec := &domain.AgentRecord{
			Type:         req.Type,
			Host:         req.Host,
			Port:         req.Port,
			Capabilities: req.Capabilities,
			Version:      req.Version,
			Status:       domain.AgentStatusHealthy,
		}
		if req.ID != nil {
			rec.ID = *req.ID
		}

		if _, err := h.reg.Register(r.Context(), rec); err != nil {
			writeDomainError(w, err, "failed to register agent")
			return
		}

		writeJSON(w, http.StatusCreated, registerAgentResponse{
			Agent:             *rec,
			HeartbeatInterval: heartbeatInterval.String(),
		})
	}
}

type heartbeatRequest struct {
	Status domain.AgentStatus `json:"status,omitempty"`
}

func (h *AgentHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	req := heartbeatRequest{Status: domain.AgentStatusHealthy}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown agent status")
		return
	}

	if err := h.reg.Heartbeat(r.Context(), id, req.Status); err != nil {
		writeDomainError(w, err, "failed to record heartbeat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AgentHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	if err := h.reg.Unregister(r.Context(), id); err != nil {
		writeDomainError(w, err, "failed to unregister agent")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AgentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	rec, err := h.reg.Get(id)
	if err != nil {
		writeDomainError(w, err, "failed to get agent")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	var f registry.Filter

	if t := r.URL.Query().Get("type"); t != "" {
		at := domain.AgentType(t)
		if !at.Valid() {
			writeError(w, http.StatusBadRequest, "unknown agent type")
			return
		}
		f.Type = &at
	}
	f.Capability = r.URL.Query().Get("capability")
	f.HealthyOnly = r.URL.Query().Get("healthy") == "true"

	agents := h.reg.List(f)
	writeJSON(w, http.StatusOK, map[string]any{
		"agents": agents,
		"count":  len(agents),
	})
}
