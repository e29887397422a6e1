package notification

import (
	"context"
	"time"

	"github.com/gnd-labs/scooter-saga/internal/outbox"
	pkgerrors "github.com/gnd-labs/scooter-saga/pkg/errors"
	pkgtypes "github.com/gnd-labs/scooter-saga/pkg/types"
	"github.com/sirupsen/logrus"
)

type NotificationService struct {
	store Store

	// faultScooterID makes recording fail for that scooter, which triggers
	// the compensation path all the way back to billing.
	faultScooterID string
}

func NewNotificationService(store Store, faultScooterID string) *NotificationService {
	return &NotificationService{
		store:          store,
		faultScooterID: faultScooterID,
	}
}

// CompensationKey derives the idempotency key for the notification-failure
// signal from the attempt key. It is distinct from the forward-path key, so
// the refund insert cannot collide with the debit row, and it is stable
// across redeliveries, so the refund is applied at most once.
func CompensationKey(attemptKey string) string {
	return attemptKey + ":comp"
}

// OnPaymentSucceeded records the rent notification and, in the same
// transaction, publishes the activation. When the fault condition holds,
// nothing is persisted and the failure signal is published instead, so the
// debit gets compensated.
func (s *NotificationService) OnPaymentSucceeded(ctx context.Context, p *pkgtypes.Payload) error {
	if s.faultScooterID != "" && s.faultScooterID == p.ScooterID {
		logrus.WithFields(logrus.Fields{
			"USER_ID":    p.UserID,
			"SCOOTER_ID": p.ScooterID,
		}).Warn("NOTIFICATION:FAULTED")

		return s.store.WithinTx(ctx, func(tx Tx) error {
			return tx.AppendEvent(ctx, outbox.NewEvent(pkgtypes.RoutingKey_NotificationFailed, &pkgtypes.Payload{
				UserID:         p.UserID,
				ScooterID:      p.ScooterID,
				IdempotencyKey: CompensationKey(p.IdempotencyKey),
			}))
		})
	}

	return s.store.WithinTx(ctx, func(tx Tx) error {
		err := tx.InsertNotification(ctx, &Notification{
			UserID:         p.UserID,
			Event:          string(pkgtypes.RoutingKey_PaymentSucceeded),
			CreatedAt:      time.Now().UTC(),
			IdempotencyKey: p.IdempotencyKey,
		})
		if pkgerrors.IsDuplicateKeyError(err) {
			return nil
		}
		if err != nil {
			return err
		}

		err = tx.AppendEvent(ctx, outbox.NewEvent(pkgtypes.RoutingKey_NotificationSucceeded, &pkgtypes.Payload{
			UserID:    p.UserID,
			ScooterID: p.ScooterID,
		}))
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, outbox.NewEvent(pkgtypes.RoutingKey_RentActivated, &pkgtypes.Payload{
			UserID:    p.UserID,
			ScooterID: p.ScooterID,
		}))
	})
}

// OnPaymentCanceled, OnFundsTransferred and OnRentFinished are plain
// idempotent appends with no compensation.
func (s *NotificationService) OnPaymentCanceled(ctx context.Context, p *pkgtypes.Payload) error {
	return s.record(ctx, p, pkgtypes.RoutingKey_PaymentCanceled)
}

func (s *NotificationService) OnFundsTransferred(ctx context.Context, p *pkgtypes.Payload) error {
	return s.record(ctx, p, pkgtypes.RoutingKey_FundsTransferred)
}

func (s *NotificationService) OnRentFinished(ctx context.Context, p *pkgtypes.Payload) error {
	return s.record(ctx, p, pkgtypes.RoutingKey_RentFinished)
}

func (s *NotificationService) record(ctx context.Context, p *pkgtypes.Payload, event pkgtypes.RoutingKey) error {
	return s.store.WithinTx(ctx, func(tx Tx) error {
		err := tx.InsertNotification(ctx, &Notification{
			UserID:         p.UserID,
			Event:          string(event),
			CreatedAt:      time.Now().UTC(),
			IdempotencyKey: p.IdempotencyKey,
		})
		if pkgerrors.IsDuplicateKeyError(err) {
			return nil
		}
		return err
	})
}

func (s *NotificationService) List(ctx context.Context, userID int) ([]*Notification, error) {
	return s.store.ListNotifications(ctx, userID)
}
