package scooter

import (
	"context"

	"github.com/gnd-labs/scooter-saga/internal/outbox"
	pkgtypes "github.com/gnd-labs/scooter-saga/pkg/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type RentService struct {
	store Store
}

func NewRentService(store Store) *RentService {
	return &RentService{store: store}
}

// StartRent inserts the PENDING rent and the rent.pending outbox event in
// one transaction, so the event cannot be lost once the rent commits. The
// idempotency key minted here travels unchanged through the whole saga
// attempt.
func (s *RentService) StartRent(ctx context.Context, userID int, scooterID string) (*Rent, error) {
	var rent *Rent
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		rent, err = tx.InsertPendingRent(ctx, userID, scooterID)
		if err != nil {
			return err
		}

		return tx.AppendEvent(ctx, outbox.NewEvent(pkgtypes.RoutingKey_RentPending, &pkgtypes.Payload{
			UserID:         userID,
			ScooterID:      scooterID,
			IdempotencyKey: uuid.NewString(),
		}))
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"USER_ID":    userID,
		"SCOOTER_ID": scooterID,
	}).Info("RENT:PENDING")
	return rent, nil
}

func (s *RentService) StopRent(ctx context.Context, userID int) (*Rent, error) {
	var rent *Rent
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		rent, err = tx.FinishActiveRent(ctx, userID)
		if err != nil {
			return err
		}

		return tx.AppendEvent(ctx, outbox.NewEvent(pkgtypes.RoutingKey_RentFinished, &pkgtypes.Payload{
			UserID:         userID,
			ScooterID:      rent.ScooterID,
			IdempotencyKey: uuid.NewString(),
		}))
	})
	if err != nil {
		return nil, err
	}

	logrus.WithField("USER_ID", userID).Info("RENT:FINISHED")
	return rent, nil
}

func (s *RentService) GetRent(ctx context.Context, userID int) (*Rent, error) {
	return s.store.GetLatestRent(ctx, userID)
}

func (s *RentService) Scooters(ctx context.Context) ([]*Scooter, error) {
	return s.store.AvailableScooters(ctx)
}

// OnRentActivated consumes rent.activated. Zero affected rows means the rent
// already left PENDING (redelivery, or a cancellation won the race) and the
// update commits as a no-op.
func (s *RentService) OnRentActivated(ctx context.Context, p *pkgtypes.Payload) error {
	return s.resolvePending(ctx, p, RentStatus_Active)
}

// OnRentCanceled consumes rent.canceled, same no-op semantics.
func (s *RentService) OnRentCanceled(ctx context.Context, p *pkgtypes.Payload) error {
	return s.resolvePending(ctx, p, RentStatus_Canceled)
}

func (s *RentService) resolvePending(ctx context.Context, p *pkgtypes.Payload, status RentStatus) error {
	return s.store.WithinTx(ctx, func(tx Tx) error {
		rows, err := tx.ResolvePendingRent(ctx, p.UserID, p.ScooterID, status)
		if err != nil {
			return err
		}
		if rows > 0 {
			logrus.WithFields(logrus.Fields{
				"USER_ID":    p.UserID,
				"SCOOTER_ID": p.ScooterID,
				"STATUS":     status,
			}).Info("RENT:RESOLVED")
		}
		return nil
	})
}
