package notification

import (
	"context"

	"github.com/gnd-labs/scooter-saga/internal/outbox"
)

type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	ListNotifications(ctx context.Context, userID int) ([]*Notification, error)
}

type Tx interface {
	// InsertNotification returns pkgerrors.ErrDuplicateKey when this
	// (user_id, idempotency_key) pair was already recorded.
	InsertNotification(ctx context.Context, n *Notification) error
	AppendEvent(ctx context.Context, e *outbox.Event) error
}
