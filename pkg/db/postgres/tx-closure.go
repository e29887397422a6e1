package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// TxClosure runs fn inside a transaction, committing on a nil error and
// rolling back otherwise. A rolled-back transaction still returns fn's
// result so callers can distinguish deliberate aborts. The returns are named
// so a commit failure reaches the caller: consumer handlers must report it
// to get the event redelivered.
func TxClosure[T any](ctx context.Context, db *sqlx.DB, fn func(ctx context.Context, tx *sqlx.Tx) (T, error)) (res T, err error) {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return res, err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}

		if err != nil {
			tx.Rollback()
			return
		}

		err = tx.Commit()
		if err != nil {
			logrus.Errorf("err on commit = %v", err)
		}
	}()

	res, err = fn(ctx, tx)
	return res, err
}
