package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// Minimal driver whose transactions record their outcome and can be told to
// fail on commit. Enough surface for BeginTxx/Commit/Rollback, no statements.

type fakeTx struct {
	commitErr  error
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit() error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback() error {
	t.rolledBack = true
	return nil
}

type fakeConn struct {
	tx *fakeTx
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("statements not supported")
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) { return c.tx, nil }

func (c *fakeConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	return c.tx, nil
}

type fakeConnector struct {
	conn *fakeConn
}

func (c *fakeConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }

func (c *fakeConnector) Driver() driver.Driver { return fakeDriver{} }

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("open via connector")
}

func newFakeDB(tx *fakeTx) *sqlx.DB {
	return sqlx.NewDb(sql.OpenDB(&fakeConnector{conn: &fakeConn{tx: tx}}), "postgres")
}

func TestTxClosureCommitsOnSuccess(t *testing.T) {
	tx := &fakeTx{}
	db := newFakeDB(tx)
	defer db.Close()

	res, err := TxClosure(context.Background(), db, func(ctx context.Context, tx *sqlx.Tx) (string, error) {
		return "applied", nil
	})
	require.NoError(t, err)
	require.Equal(t, "applied", res)
	require.True(t, tx.committed)
	require.False(t, tx.rolledBack)
}

func TestTxClosureCommitErrorPropagates(t *testing.T) {
	commitErr := errors.New("connection reset")
	tx := &fakeTx{commitErr: commitErr}
	db := newFakeDB(tx)
	defer db.Close()

	_, err := TxClosure(context.Background(), db, func(ctx context.Context, tx *sqlx.Tx) (string, error) {
		return "applied", nil
	})
	require.ErrorIs(t, err, commitErr)
	require.False(t, tx.committed)
}

func TestTxClosureRollsBackOnError(t *testing.T) {
	fnErr := errors.New("declined")
	tx := &fakeTx{}
	db := newFakeDB(tx)
	defer db.Close()

	res, err := TxClosure(context.Background(), db, func(ctx context.Context, tx *sqlx.Tx) (int, error) {
		return 7, fnErr
	})
	require.ErrorIs(t, err, fnErr)
	require.Equal(t, 7, res)
	require.True(t, tx.rolledBack)
	require.False(t, tx.committed)
}
