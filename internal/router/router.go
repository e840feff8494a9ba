// Package router maps an optimization request to the agent instance
// responsible for it. Selection is a pure snapshot decision over the
// registry: filter to healthy candidates, score, pick the winner. It never
// waits for an agent to become healthy.
package router

import (
	"hash/fnv"

	"go.uber.org/zap"

	"github.com/strataops/vantage/internal/domain"
	"github.com/strataops/vantage/internal/registry"
)

// Request describes what kind of agent a trigger needs.
type Request struct {
	Type         domain.AgentType
	Capabilities []string
	ResourceID   string
}

type Router struct {
	reg    *registry.Registry
	logger *zap.Logger
}

func New(reg *registry.Registry, logger *zap.Logger) *Router {
	return &Router{reg: reg, logger: logger}
}

// Route picks the healthy agent instance responsible for the request's
// resource. The same resource maps to the same instance for as long as
// that instance stays healthy: each candidate is scored by a hash of
// (resource, agent) and the highest score wins, so instances joining or
// leaving only remap the resources they directly gain or lose.
func (r *Router) Route(req Request) (domain.AgentRecord, error) {
	candidates := r.filter(req)
	if len(candidates) == 0 {
		return domain.AgentRecord{}, domain.ErrNoAgentAvailable
	}

	best := candidates[0]
	bestScore := routeScore(req.ResourceID, best.ID.String())
	for _, c := range candidates[1:] {
		if score := routeScore(req.ResourceID, c.ID.String()); score > bestScore {
			best, bestScore = c, score
		}
	}

	r.logger.Debug("routed request",
		zap.String("resource_id", req.ResourceID),
		zap.String("type", string(req.Type)),
		zap.String("agent_id", best.ID.String()))
	return best, nil
}

// RouteEach resolves one agent per requested domain. Domains with no
// healthy agent are skipped; the caller decides whether partial coverage
// is acceptable. An empty result is ErrNoAgentAvailable.
func (r *Router) RouteEach(types []domain.AgentType, capabilities []string, resourceID string) ([]domain.AgentRecord, error) {
	if len(types) == 0 {
		types = domain.AllAgentTypes
	}

	agents := make([]domain.AgentRecord, 0, len(types))
	for _, t := range types {
		rec, err := r.Route(Request{Type: t, Capabilities: capabilities, ResourceID: resourceID})
		if err != nil {
			r.logger.Warn("no agent available for domain",
				zap.String("type", string(t)),
				zap.String("resource_id", resourceID))
			continue
		}
		agents = append(agents, rec)
	}
	if len(agents) == 0 {
		return nil, domain.ErrNoAgentAvailable
	}
	return agents, nil
}

// filter returns the healthy candidates matching type and capabilities.
func (r *Router) filter(req Request) []domain.AgentRecord {
	t := req.Type
	listed := r.reg.List(registry.Filter{Type: &t, HealthyOnly: true})

	candidates := listed[:0]
	for _, rec := range listed {
		if hasAll(&rec, req.Capabilities) {
			candidates = append(candidates, rec)
		}
	}
	return candidates
}

func hasAll(rec *domain.AgentRecord, capabilities []string) bool {
	for _, c := range capabilities {
		if !rec.HasCapability(c) {
			return false
		}
	}
	return true
}

// routeScore is the rendezvous weight of an agent for a resource.
func routeScore(resourceID, agentID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(resourceID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(agentID))
	return h.Sum64()
}
