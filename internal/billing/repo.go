package billing

import (
	"context"
	"database/sql"
	"errors"

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

func (s *PostgresStore) GetAccount(ctx context.Context, userID int) (*Account, error) {
	acc := &Account{}
	err := s.db.GetContext(ctx, acc, `SELECT user_id, balance FROM account WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.NewNotFoundError(err)
		}
		return nil, err
	}
	return acc, nil
}

type postgresTx struct {
	tx        *sqlx.Tx
	eventRepo *outbox.EventRepo
}

func (t *postgresTx) LockAccount(ctx context.Context, userID int) (*Account, error) {
	acc := &Account{}
	err := t.tx.GetContext(ctx, acc, `
		SELECT user_id, balance FROM account WHERE user_id = $1
		FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.NewNotFoundError(err)
		}
		return nil, err
	}
	return acc, nil
}

func (t *postgresTx) InsertAccount(ctx context.Context, userID int) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO account (user_id, balance) VALUES ($1, 0)`, userID)
	if dbpostgres.IsDuplicateKeyErr(err) {
		return pkgerrors.NewDuplicateKeyError(err)
	}
	return err
}

func (t *postgresTx) InsertPayment(ctx context.Context, p *Payment) error {
	err := t.tx.GetContext(ctx, &p.ID, `
		INSERT INTO payment (user_id, amount, idempotency_key)
		VALUES ($1, $2, $3)
		RETURNING id`, p.UserID, p.Amount, p.IdempotencyKey)
	if dbpostgres.IsDuplicateKeyErr(err) {
		return pkgerrors.NewDuplicateKeyError(err)
	}
	return err
}

func (t *postgresTx) GetPayment(ctx context.Context, userID int, idempotencyKey string) (*Payment, error) {
	p := &Payment{}
	err := t.tx.GetContext(ctx, p, `
		SELECT id, user_id, amount, idempotency_key FROM payment
		WHERE user_id = $1 AND idempotency_key = $2`, userID, idempotencyKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.NewNotFoundError(err)
		}
		return nil, err
	}
	return p, nil
}

func (t *postgresTx) UpdateBalance(ctx context.Context, userID int, delta int64) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE account SET balance = balance + $1 WHERE user_id = $2`, delta, userID)
	return err
}

func (t *postgresTx) AppendEvent(ctx context.Context, e *outbox.Event) error {
	return t.eventRepo.Insert(ctx, t.tx, e)
}
