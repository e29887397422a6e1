package scooter

import (
	"context"

	"github.com/gnd-labs/scooter-saga/internal/outbox"
)

type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	GetLatestRent(ctx context.Context, userID int) (*Rent, error)
	AvailableScooters(ctx context.Context) ([]*Scooter, error)
}

type Tx interface {
	// InsertPendingRent returns pkgerrors.ErrConflict when the user or the
	// scooter already holds a PENDING/ACTIVE rent, pkgerrors.ErrNotFound
	// when the scooter does not exist.
	InsertPendingRent(ctx context.Context, userID int, scooterID string) (*Rent, error)
	// FinishActiveRent flips the user's ACTIVE rent to FINISHED, returning
	// pkgerrors.ErrNotFound when there is none.
	FinishActiveRent(ctx context.Context, userID int) (*Rent, error)
	// ResolvePendingRent flips the matching PENDING rent to the given
	// terminal-or-active status. Zero affected rows is the idempotent no-op
	// path on redelivery, not an error.
	ResolvePendingRent(ctx context.Context, userID int, scooterID string, status RentStatus) (int, error)
	AppendEvent(ctx context.Context, e *outbox.Event) error
}
