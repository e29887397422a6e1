package scooter

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

func (s *PostgresStore) GetLatestRent(ctx context.Context, userID int) (*Rent, error) {
	rent := &Rent{}
	err := s.db.GetContext(ctx, rent, `
		SELECT id, scooter_id, user_id, status FROM rent
		WHERE user_id = $1
		ORDER BY id DESC LIMIT 1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.NewNotFoundError(err)
		}
		return nil, err
	}
	return rent, nil
}

func (s *PostgresStore) AvailableScooters(ctx context.Context) ([]*Scooter, error) {
	scooters := []*Scooter{}
	err := s.db.SelectContext(ctx, &scooters, `
		SELECT id, charge, latitude, longitude FROM scooter
		WHERE id NOT IN (
			SELECT scooter_id FROM rent WHERE status IN ('PENDING', 'ACTIVE')
		)
		ORDER BY charge DESC`)
	if err != nil {
		return nil, err
	}
	return scooters, nil
}

type postgresTx struct {
	tx        *sqlx.Tx
	eventRepo *outbox.EventRepo
}

func (t *postgresTx) InsertPendingRent(ctx context.Context, userID int, scooterID string) (*Rent, error) {
	rent := &Rent{}
	err := t.tx.GetContext(ctx, rent, `
		INSERT INTO rent (scooter_id, user_id, status)
		VALUES ($1, $2, 'PENDING')
		RETURNING id, scooter_id, user_id, status`, scooterID, userID)
	if err != nil {
		if dbpostgres.IsDuplicateKeyErr(err) {
			return nil, pkgerrors.NewConflictError(err)
		}
		if dbpostgres.IsForeignKeyErr(err) {
			return nil, pkgerrors.NewNotFoundError(err)
		}
		return nil, err
	}
	return rent, nil
}

func (t *postgresTx) FinishActiveRent(ctx context.Context, userID int) (*Rent, error) {
	rent := &Rent{}
	err := t.tx.GetContext(ctx, rent, `
		UPDATE rent SET status = 'FINISHED'
		WHERE user_id = $1 AND status = 'ACTIVE'
		RETURNING id, scooter_id, user_id, status`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.NewNotFoundError(err)
		}
		return nil, err
	}
	return rent, nil
}

func (t *postgresTx) ResolvePendingRent(ctx context.Context, userID int, scooterID string, status RentStatus) (int, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE rent SET status = $1
		WHERE user_id = $2 AND scooter_id = $3 AND status = 'PENDING'`,
		status, userID, scooterID)
	if err != nil {
		return 0, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

func (t *postgresTx) AppendEvent(ctx context.Context, e *outbox.Event) error {
	return t.eventRepo.Insert(ctx, t.tx, e)
}
