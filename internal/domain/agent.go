package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AgentType identifies the optimization domain an agent analyzes.
type AgentType string

const (
	AgentTypeCost        AgentType = "cost"
	AgentTypePerformance AgentType = "performance"
	AgentTypeResource    AgentType = "resource"
	AgentTypeApplication AgentType = "application"
)

// AllAgentTypes lists every optimization domain, in fan-out order.
var AllAgentTypes = []AgentType{
	AgentTypeCost,
	AgentTypePerformance,
	AgentTypeResource,
	AgentTypeApplication,
}

func (t AgentType) Valid() bool {
	switch t {
	case AgentTypeCost, AgentTypePerformance, AgentTypeResource, AgentTypeApplication:
		return true
	}
	return false
}

// AgentStatus is the liveness state of a registered agent.
type AgentStatus string

const (
	AgentStatusStarting    AgentStatus = "starting"
	AgentStatusHealthy     AgentStatus = "healthy"
	AgentStatusDegraded    AgentStatus = "degraded"
	AgentStatusUnreachable AgentStatus = "unreachable"
	AgentStatusStopped     AgentStatus = "stopped"
)

func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusStarting, AgentStatusHealthy, AgentStatusDegraded,
		AgentStatusUnreachable, AgentStatusStopped:
		return true
	}
	return false
}

// AgentRecord is the registry's view of one agent instance.
type AgentRecord struct {
	ID            uuid.UUID   `json:"id"`
	Type          AgentType   `json:"type"`
	Host          string      `json:"host"`
	Port          int         `json:"port"`
	Capabilities  []string    `json:"capabilities,omitempty"`
	Version       string      `json:"version,omitempty"`
	Status        AgentStatus `json:"status"`
	LastHeartbeat time.Time   `json:"last_heartbeat"`
	RegisteredAt  time.Time   `json:"registered_at"`
}

// Addr returns the host:port endpoint the agent serves its RPC contract on.
func (a *AgentRecord) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// HasCapability reports whether the agent advertises the given capability.
func (a *AgentRecord) HasCapability(cap string) bool {
	for _, c := range a.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// Routable reports whether the agent should receive new work.
// Degraded agents stay discoverable but are not routed to.
func (a *AgentRecord) Routable() bool {
	return a.Status == AgentStatusHealthy
}
