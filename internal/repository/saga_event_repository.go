package repository

import (
	"context"
	"fmt"

	"ticket-exchange/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SagaEventRepository interface {
	// Create 以事件 ID 去重，queue 重送同一筆事件不會重複寫入
	Create(ctx context.Context, event *model.SagaEvent) error
	ListByTicketID(ctx context.Context, ticketID uuid.UUID) ([]*model.SagaEvent, error)
}

type SagaEventRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewSagaEventRepository(pool *pgxpool.Pool) SagaEventRepository {
	return &SagaEventRepositoryImpl{
		pool: pool,
	}
}

func (r *SagaEventRepositoryImpl) Create(ctx context.Context, event *model.SagaEvent) error {
	query := `
		INSERT INTO saga_events (id, ticket_id, step, outcome, actor_id, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID, event.TicketID, event.Step, event.Outcome, event.ActorID, event.Detail, event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record saga event: %w", err)
	}

	return nil
}

func (r *SagaEventRepositoryImpl) ListByTicketID(ctx context.Context, ticketID uuid.UUID) ([]*model.SagaEvent, error) {
	query := `
		SELECT id, ticket_id, step, outcome, COALESCE(actor_id, ''), COALESCE(detail, ''), occurred_at
		FROM saga_events
		WHERE ticket_id = $1
		ORDER BY occurred_at ASC
	`

	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*model.SagaEvent, 0)
	for rows.Next() {
		var e model.SagaEvent
		if err := rows.Scan(&e.ID, &e.TicketID, &e.Step, &e.Outcome, &e.ActorID, &e.Detail, &e.OccurredAt); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
