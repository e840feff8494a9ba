// Package agentrpc implements the HTTP contract every optimization agent
// serves. The core calls three endpoints: POST /v1/proposals to ask for a
// change proposal, POST /v1/execute to apply one step at a traffic
// fraction, and POST /v1/rollback to undo it.
package agentrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/strataops/vantage/internal/domain"
)

type Client struct {
	httpClient *http.Client
}

// NewClient builds an agent client with the given per-call timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

type proposalRequest struct {
	TriggerID    uuid.UUID `json:"trigger_id"`
	ResourceID   string    `json:"resource_id"`
	Reason       string    `json:"reason,omitempty"`
	Capabilities []string  `json:"capabilities,omitempty"`
}

type executeRequest struct {
	Step     domain.ChangeProposal `json:"step"`
	Fraction float64               `json:"fraction"`
}

type rollbackRequest struct {
	Step domain.ChangeProposal `json:"step"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) GenerateProposal(ctx context.Context, agent domain.AgentRecord, trigger domain.Trigger) (*domain.ChangeProposal, error) {
	body, err := c.post(ctx, agent, "/v1/proposals", proposalRequest{
		TriggerID:    trigger.ID,
		ResourceID:   trigger.ResourceID,
		Reason:       trigger.Reason,
		Capabilities: trigger.Capabilities,
	})
	if err != nil {
		return nil, err
	}

	var proposal domain.ChangeProposal
	if err := json.Unmarshal(body, &proposal); err != nil {
		return nil, fmt.Errorf("unmarshal proposal from agent %s: %w", agent.ID, err)
	}

	// The agent fills the substance of the proposal; identity and
	// provenance are stamped here so agents cannot forge them.
	proposal.ID = uuid.New()
	proposal.AgentID = agent.ID
	proposal.ResourceID = trigger.ResourceID
	proposal.Status = domain.ProposalStatusPending
	proposal.CreatedAt = time.Now()

	if !proposal.Domain.Valid() {
		return nil, fmt.Errorf("agent %s returned invalid domain %q", agent.ID, proposal.Domain)
	}
	return &proposal, nil
}

func (c *Client) Execute(ctx context.Context, agent domain.AgentRecord, step domain.ChangeProposal, fraction float64) error {
	_, err := c.post(ctx, agent, "/v1/execute", executeRequest{Step: step, Fraction: fraction})
	return err
}

func (c *Client) Rollback(ctx context.Context, agent domain.AgentRecord, step domain.ChangeProposal) error {
	_, err := c.post(ctx, agent, "/v1/rollback", rollbackRequest{Step: step})
	return err
}

// post sends one JSON request to the agent. Network failures, timeouts
// and 5xx/429 responses are transient; other non-2xx responses are
// permanent agent errors.
func (c *Client) post(ctx context.Context, agent domain.AgentRecord, path string, payload any) ([]byte, error) {
	op := fmt.Sprintf("agent %s %s", agent.ID, path)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", path, err)
	}

	url := "http://" + agent.Addr() + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.Transient(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.Transient(op, err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.Transient(op, fmt.Errorf("status %d: %s", resp.StatusCode, agentErrMsg(respBody)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, agentErrMsg(respBody))
	}
	return respBody, nil
}

func agentErrMsg(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return string(body)
}
