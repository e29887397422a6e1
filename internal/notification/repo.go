package notification

import (
	"context"

	"github.com/gnd-labs/scooter-saga/internal/outbox"
	dbpostgres "github.com/gnd-labs/scooter-saga/pkg/db/postgres"
	pkgerrors "github.com/gnd-labs/scooter-saga/pkg/errors"
	"github.com/jmoiron/sqlx"
)

type PostgresStore struct {
	db        *sqlx.DB
	eventRepo *outbox.EventRepo
}

func NewPostgresStore(db *sqlx.DB, eventRepo *outbox.EventRepo) *PostgresStore {
	return &PostgresStore{
		db:        db,
		eventRepo: eventRepo,
	}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	_, err := dbpostgres.TxClosure(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) (struct{}, error) {
		return struct{}{}, fn(&postgresTx{tx: tx, eventRepo: s.eventRepo})
	})
	return err
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID int) ([]*Notification, error) {
	notifications := []*Notification{}
	err := s.db.SelectContext(ctx, &notifications, `
		SELECT id, user_id, event, created_at, idempotency_key FROM notification
		WHERE user_id = $1
		ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

type postgresTx struct {
	tx        *sqlx.Tx
	eventRepo *outbox.EventRepo
}

func (t *postgresTx) InsertNotification(ctx context.Context, n *Notification) error {
	err := t.tx.GetContext(ctx, &n.ID, `
		INSERT INTO notification (user_id, event, created_at, idempotency_key)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, n.UserID, n.Event, n.CreatedAt, n.IdempotencyKey)
	if dbpostgres.IsDuplicateKeyErr(err) {
		return pkgerrors.NewDuplicateKeyError(err)
	}
	return err
}

func (t *postgresTx) AppendEvent(ctx context.Context, e *outbox.Event) error {
	return t.eventRepo.Insert(ctx, t.tx, e)
}
