package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strataops/vantage/internal/domain"
)

type PlanStore struct {
	db *pgxpool.Pool
}

func NewPlanStore(db *pgxpool.Pool) *PlanStore {
	return &PlanStore{db: db}
}

// Create persists the plan and its step ordering atomically. Steps
// reference proposals already persisted by the coordinator.
func (s *PlanStore) Create(ctx context.Context, p *domain.ActionPlan) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO plans (id, resource_id, status, failure_reason, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.ResourceID, p.Status, p.FailureReason, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return err
	}

	for i, step := range p.Steps {
		_, err = tx.Exec(ctx,
			`INSERT INTO plan_steps (plan_id, step_index, proposal_id) VALUES ($1, $2, $3)`,
			p.ID, i, step.ID,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PlanStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PlanStatus, failureReason string) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE plans SET status = $2, failure_reason = $3, updated_at = now() WHERE id = $1`,
		id, status, failureReason,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *PlanStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ActionPlan, error) {
	p := &domain.ActionPlan{}
	err := s.db.QueryRow(ctx,
		`SELECT id, resource_id, status, failure_reason, created_at, updated_at
		 FROM plans WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.ResourceID, &p.Status, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if p.Steps, err = s.steps(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PlanStore) List(ctx context.Context, status *domain.PlanStatus) ([]domain.ActionPlan, error) {
	query := `SELECT id, resource_id, status, failure_reason, created_at, updated_at
	          FROM plans ORDER BY created_at DESC`
	args := []any{}
	if status != nil {
		query = `SELECT id, resource_id, status, failure_reason, created_at, updated_at
		         FROM plans WHERE status = $1 ORDER BY created_at DESC`
		args = append(args, *status)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ActionPlan
	for rows.Next() {
		var p domain.ActionPlan
		if err := rows.Scan(&p.ID, &p.ResourceID, &p.Status, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Steps, err = s.steps(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *PlanStore) steps(ctx context.Context, planID uuid.UUID) ([]domain.ChangeProposal, error) {
	rows, err := s.db.Query(ctx,
		`SELECT p.id, p.agent_id, p.resource_id, p.action, p.domain, p.estimated_impact, p.confidence, p.status, p.created_at
		 FROM plan_steps ps
		 JOIN proposals p ON p.id = ps.proposal_id
		 WHERE ps.plan_id = $1
		 ORDER BY ps.step_index`,
		planID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProposals(rows)
}
