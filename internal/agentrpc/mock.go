package agentrpc

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/strataops/vantage/internal/domain"
)

// MockClient is a configurable agent client for testing.
// Set the response fields to control what each method returns; error
// functions override the static errors when set, keyed by call count so
// tests can script "fail twice, then succeed".
type MockClient struct {
	mu sync.Mutex

	ProposalResponses map[uuid.UUID]*domain.ChangeProposal // keyed by agent ID
	ProposalError     error
	ExecuteError      error
	ExecuteErrFunc    func(call int, step domain.ChangeProposal, fraction float64) error
	RollbackError     error

	// Call tracking for assertions
	ProposalCalls []uuid.UUID
	ExecuteCalls  []ExecuteCall
	RollbackCalls []domain.ChangeProposal
}

type ExecuteCall struct {
	AgentID  uuid.UUID
	Step     domain.ChangeProposal
	Fraction float64
}

func NewMockClient() *MockClient {
	return &MockClient{
		ProposalResponses: make(map[uuid.UUID]*domain.ChangeProposal),
	}
}

func (c *MockClient) GenerateProposal(_ context.Context, agent domain.AgentRecord, trigger domain.Trigger) (*domain.ChangeProposal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ProposalCalls = append(c.ProposalCalls, agent.ID)
	if c.ProposalError != nil {
		return nil, c.ProposalError
	}
	if p, ok := c.ProposalResponses[agent.ID]; ok {
		cp := *p
		cp.ID = uuid.New()
		cp.AgentID = agent.ID
		cp.ResourceID = trigger.ResourceID
		cp.Status = domain.ProposalStatusPending
		return &cp, nil
	}
	return nil, domain.ErrNoAgentAvailable
}

func (c *MockClient) Execute(_ context.Context, agent domain.AgentRecord, step domain.ChangeProposal, fraction float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	call := len(c.ExecuteCalls)
	c.ExecuteCalls = append(c.ExecuteCalls, ExecuteCall{AgentID: agent.ID, Step: step, Fraction: fraction})
	if c.ExecuteErrFunc != nil {
		return c.ExecuteErrFunc(call, step, fraction)
	}
	return c.ExecuteError
}

func (c *MockClient) Rollback(_ context.Context, _ domain.AgentRecord, step domain.ChangeProposal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RollbackCalls = append(c.RollbackCalls, step)
	return c.RollbackError
}

// Executes returns a snapshot of the recorded execute calls.
func (c *MockClient) Executes() []ExecuteCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ExecuteCall, len(c.ExecuteCalls))
	copy(out, c.ExecuteCalls)
	return out
}

// Rollbacks returns a snapshot of the recorded rollback calls.
func (c *MockClient) Rollbacks() []domain.ChangeProposal {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ChangeProposal, len(c.RollbackCalls))
	copy(out, c.RollbackCalls)
	return out
}
