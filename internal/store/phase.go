package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strataops/vantage/internal/domain"
)

type PhaseStore struct {
	db *pgxpool.Pool
}

func NewPhaseStore(db *pgxpool.Pool) *PhaseStore {
	return &PhaseStore{db: db}
}

func (s *PhaseStore) Create(ctx context.Context, ph *domain.RolloutPhase) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO rollout_phases (id, plan_id, fraction, started_at, baseline_snapshot, verdict)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ph.ID, ph.PlanID, ph.Fraction, ph.StartedAt, ph.Baseline, ph.Verdict,
	)
	return err
}

// Finish seals a phase record with its observed snapshot and verdict.
func (s *PhaseStore) Finish(ctx context.Context, id uuid.UUID, observed map[string]float64, verdict domain.PhaseVerdict, completedAt time.Time) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE rollout_phases SET observed_snapshot = $2, verdict = $3, completed_at = $4
		 WHERE id = $1 AND completed_at IS NULL`,
		id, observed, verdict, completedAt,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *PhaseStore) ListByPlan(ctx context.Context, planID uuid.UUID) ([]domain.RolloutPhase, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, plan_id, fraction, started_at, completed_at, baseline_snapshot, observed_snapshot, verdict
		 FROM rollout_phases WHERE plan_id = $1 ORDER BY started_at`,
		planID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RolloutPhase
	for rows.Next() {
		var ph domain.RolloutPhase
		if err := rows.Scan(&ph.ID, &ph.PlanID, &ph.Fraction, &ph.StartedAt, &ph.CompletedAt, &ph.Baseline, &ph.Observed, &ph.Verdict); err != nil {
			return nil, err
		}
		out = append(out, ph)
	}
	return out, rows.Err()
}
