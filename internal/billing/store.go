package billing

import (
	"context"

	"github.com/gnd-labs/scooter-saga/internal/outbox"
)

type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	GetAccount(ctx context.Context, userID int) (*Account, error)
}

type Tx interface {
	// LockAccount acquires the row lock that serializes every mutation of
	// the aggregate for the rest of the transaction. Returns
	// pkgerrors.ErrNotFound for an unknown user.
	LockAccount(ctx context.Context, userID int) (*Account, error)
	// InsertAccount returns pkgerrors.ErrDuplicateKey when the account
	// already exists.
	InsertAccount(ctx context.Context, userID int) error
	// InsertPayment returns pkgerrors.ErrDuplicateKey when this
	// (user_id, idempotency_key) pair was already applied.
	InsertPayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, userID int, idempotencyKey string) (*Payment, error)
	UpdateBalance(ctx context.Context, userID int, delta int64) error
	AppendEvent(ctx context.Context, e *outbox.Event) error
}
