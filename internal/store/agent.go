// Package store is the Postgres audit trail. The registry is
// authoritative for liveness; these stores keep the durable history of
// registrations, proposals, plans and rollout phases.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strataops/vantage/internal/domain"
)

type AgentStore struct {
	db *pgxpool.Pool
}

func NewAgentStore(db *pgxpool.Pool) *AgentStore {
	return &AgentStore{db: db}
}

// Upsert records a registration. Re-registration of the same agent ID
// refreshes the stored metadata in place.
func (s *AgentStore) Upsert(ctx context.Context, a *domain.AgentRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO agents (id, type, host, port, capabilities, version, status, last_heartbeat, registered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   type = EXCLUDED.type,
		   host = EXCLUDED.host,
		   port = EXCLUDED.port,
		   capabilities = EXCLUDED.capabilities,
		   version = EXCLUDED.version,
		   status = EXCLUDED.status,
		   last_heartbeat = EXCLUDED.last_heartbeat`,
		a.ID, a.Type, a.Host, a.Port, a.Capabilities, a.Version, a.Status, a.LastHeartbeat, a.RegisteredAt,
	)
	return err
}

func (s *AgentStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AgentStatus, lastHeartbeat time.Time) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE agents SET status = $2, last_heartbeat = $3 WHERE id = $1`,
		id, status, lastHeartbeat,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AgentStore) Get(ctx context.Context, id uuid.UUID) (*domain.AgentRecord, error) {
	a := &domain.AgentRecord{}
	err := s.db.QueryRow(ctx,
		`SELECT id, type, host, port, capabilities, version, status, last_heartbeat, registered_at
		 FROM agents WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Type, &a.Host, &a.Port, &a.Capabilities, &a.Version, &a.Status, &a.LastHeartbeat, &a.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *AgentStore) List(ctx context.Context) ([]domain.AgentRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, type, host, port, capabilities, version, status, last_heartbeat, registered_at
		 FROM agents ORDER BY registered_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AgentRecord
	for rows.Next() {
		var a domain.AgentRecord
		if err := rows.Scan(&a.ID, &a.Type, &a.Host, &a.Port, &a.Capabilities, &a.Version, &a.Status, &a.LastHeartbeat, &a.RegisteredAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
