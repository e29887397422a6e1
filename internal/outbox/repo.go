package outbox

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type EventRepo struct {
	db        *sqlx.DB
	tableName string
}

func NewEventRepo(db *sqlx.DB) *EventRepo {
	return &EventRepo{
		db:        db,
		tableName: "outbox_events",
	}
}

func (r *EventRepo) GetRepo() *sqlx.DB {
	return r.db
}

func (r *EventRepo) Insert(ctx context.Context, tx *sqlx.Tx, e *Event) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (event_id, routing_key, payload, status, created_at)
		VALUES (:event_id, :routing_key, :payload, :status, :created_at)`, r.tableName)
	_, err := tx.NamedExecContext(ctx, query, e)
	return err
}

// GetAllPending locks the pending rows for the duration of the draining
// transaction. SKIP LOCKED lets a second publisher replica work past rows a
// crashed-but-uncommitted drain still holds.
func (r *EventRepo) GetAllPending(ctx context.Context, tx *sqlx.Tx, limit int) ([]*Event, error) {
	events := []*Event{}
	query := fmt.Sprintf(`
		SELECT event_id, routing_key, payload, status, created_at FROM %s
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, r.tableName)
	if err := tx.SelectContext(ctx, &events, query, EventStatus_Pending, limit); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *EventRepo) UpdateStatusByIds(ctx context.Context, tx *sqlx.Tx, eventIds []string, status EventStatus) (int, error) {
	if len(eventIds) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf("UPDATE %s SET status = $1 WHERE event_id = ANY($2)", r.tableName)
	res, err := tx.ExecContext(ctx, query, status, pq.Array(eventIds))
	if err != nil {
		return 0, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}
