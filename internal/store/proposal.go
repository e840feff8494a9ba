package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strataops/vantage/internal/domain"
)

type ProposalStore struct {
	db *pgxpool.Pool
}

func NewProposalStore(db *pgxpool.Pool) *ProposalStore {
	return &ProposalStore{db: db}
}

func (s *ProposalStore) Create(ctx context.Context, p *domain.ChangeProposal) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO proposals (id, agent_id, resource_id, action, domain, estimated_impact, confidence, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.AgentID, p.ResourceID, p.Action, p.Domain, p.EstimatedImpact, p.Confidence, p.Status, p.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (s *ProposalStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ProposalStatus) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE proposals SET status = $2 WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *ProposalStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ChangeProposal, error) {
	p := &domain.ChangeProposal{}
	err := s.db.QueryRow(ctx,
		`SELECT id, agent_id, resource_id, action, domain, estimated_impact, confidence, status, created_at
		 FROM proposals WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.AgentID, &p.ResourceID, &p.Action, &p.Domain, &p.EstimatedImpact, &p.Confidence, &p.Status, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *ProposalStore) ListByResource(ctx context.Context, resourceID string) ([]domain.ChangeProposal, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, resource_id, action, domain, estimated_impact, confidence, status, created_at
		 FROM proposals WHERE resource_id = $1 ORDER BY created_at DESC`,
		resourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProposals(rows)
}

func scanProposals(rows pgx.Rows) ([]domain.ChangeProposal, error) {
	var out []domain.ChangeProposal
	for rows.Next() {
		var p domain.ChangeProposal
		if err := rows.Scan(&p.ID, &p.AgentID, &p.ResourceID, &p.Action, &p.Domain, &p.EstimatedImpact, &p.Confidence, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
