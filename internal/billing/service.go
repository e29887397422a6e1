package billing

import (
	"context"
	"errors"

	"github.com/gnd-labs/scooter-saga/internal/outbox"
	pkgerrors "github.com/gnd-labs/scooter-saga/pkg/errors"
	pkgtypes "github.com/gnd-labs/scooter-saga/pkg/types"
	"github.com/sirupsen/logrus"
)

// errDeclined forces a rollback so the just-inserted payment row does not
// survive a declined debit. The dedup guard therefore only protects the
// success path: a redelivered decline re-evaluates and re-declines, which is
// harmless because the cancel events it re-publishes carry the same attempt
// key and deduplicate downstream.
var errDeclined = errors.New("debit declined")

type BillingService struct {
	store Store

	// faultScooterID injects a debit failure for that scooter, used to
	// exercise the cancellation path end to end.
	faultScooterID string
}

func NewBillingService(store Store, faultScooterID string) *BillingService {
	return &BillingService{
		store:          store,
		faultScooterID: faultScooterID,
	}
}

// OnUserCreated consumes user.created and opens an empty account. A
// duplicate primary key means the event was redelivered.
func (s *BillingService) OnUserCreated(ctx context.Context, p *pkgtypes.Payload) error {
	return s.store.WithinTx(ctx, func(tx Tx) error {
		err := tx.InsertAccount(ctx, p.UserID)
		if pkgerrors.IsDuplicateKeyError(err) {
			return nil
		}
		return err
	})
}

// OnRentPending consumes rent.pending and applies the debit. The account row
// lock serializes concurrent debits; the payment insert is the idempotency
// guard: a duplicate key means this exact event was already fully applied,
// so the transaction commits as a no-op without re-evaluating the balance or
// re-publishing anything.
func (s *BillingService) OnRentPending(ctx context.Context, p *pkgtypes.Payload) error {
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		acc, err := tx.LockAccount(ctx, p.UserID)
		if pkgerrors.IsNotFoundError(err) {
			return errDeclined
		}
		if err != nil {
			return err
		}

		err = tx.InsertPayment(ctx, &Payment{
			UserID:         p.UserID,
			Amount:         -RentPrice,
			IdempotencyKey: p.IdempotencyKey,
		})
		if pkgerrors.IsDuplicateKeyError(err) {
			return nil
		}
		if err != nil {
			return err
		}

		if acc.Balance < RentPrice || (s.faultScooterID != "" && s.faultScooterID == p.ScooterID) {
			return errDeclined
		}

		if err := tx.UpdateBalance(ctx, p.UserID, -RentPrice); err != nil {
			return err
		}

		return tx.AppendEvent(ctx, outbox.NewEvent(pkgtypes.RoutingKey_PaymentSucceeded, &pkgtypes.Payload{
			UserID:         p.UserID,
			ScooterID:      p.ScooterID,
			IdempotencyKey: p.IdempotencyKey,
		}))
	})

	if errors.Is(err, errDeclined) {
		logrus.WithFields(logrus.Fields{
			"USER_ID":    p.UserID,
			"SCOOTER_ID": p.ScooterID,
		}).Info("PAYMENT:DECLINED")
		return s.publishCanceled(ctx, p, p.IdempotencyKey)
	}
	return err
}

// OnRentNotificationFailed is the compensating transaction: the debit
// committed but the notification step could not be recorded. The refund row,
// the balance credit and the cancel events all commit together, so a
// redelivered failure signal is a pure no-op once the refund row exists.
func (s *BillingService) OnRentNotificationFailed(ctx context.Context, p *pkgtypes.Payload) error {
	refunded := false
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		if _, err := tx.LockAccount(ctx, p.UserID); err != nil {
			return err
		}

		err := tx.InsertPayment(ctx, &Payment{
			UserID:         p.UserID,
			Amount:         RentPrice,
			IdempotencyKey: p.IdempotencyKey,
		})
		if pkgerrors.IsDuplicateKeyError(err) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.UpdateBalance(ctx, p.UserID, RentPrice); err != nil {
			return err
		}

		refunded = true
		return s.appendCanceled(ctx, tx, p, p.IdempotencyKey)
	})
	if err != nil {
		return err
	}

	if refunded {
		logrus.WithFields(logrus.Fields{
			"USER_ID":    p.UserID,
			"SCOOTER_ID": p.ScooterID,
		}).Info("PAYMENT:REFUNDED")
	}
	return nil
}

// publishCanceled records the cancel events in their own transaction: the
// decline path rolled its transaction back, so the events cannot ride on it.
func (s *BillingService) publishCanceled(ctx context.Context, p *pkgtypes.Payload, key string) error {
	return s.store.WithinTx(ctx, func(tx Tx) error {
		return s.appendCanceled(ctx, tx, p, key)
	})
}

func (s *BillingService) appendCanceled(ctx context.Context, tx Tx, p *pkgtypes.Payload, key string) error {
	err := tx.AppendEvent(ctx, outbox.NewEvent(pkgtypes.RoutingKey_PaymentCanceled, &pkgtypes.Payload{
		UserID:         p.UserID,
		ScooterID:      p.ScooterID,
		IdempotencyKey: key,
	}))
	if err != nil {
		return err
	}
	return tx.AppendEvent(ctx, outbox.NewEvent(pkgtypes.RoutingKey_RentCanceled, &pkgtypes.Payload{
		UserID:    p.UserID,
		ScooterID: p.ScooterID,
	}))
}

// AddFunds is the synchronous locked read-modify-write. The caller-supplied
// idempotency key makes retries safe: replaying the same key with the same
// amount returns the account unchanged, replaying it with a different amount
// is a Conflict.
func (s *BillingService) AddFunds(ctx context.Context, userID int, amount int64, key string) (*Account, error) {
	var acc *Account
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		acc, err = tx.LockAccount(ctx, userID)
		if err != nil {
			return err
		}

		err = tx.InsertPayment(ctx, &Payment{
			UserID:         userID,
			Amount:         amount,
			IdempotencyKey: key,
		})
		if pkgerrors.IsDuplicateKeyError(err) {
			prev, getErr := tx.GetPayment(ctx, userID, key)
			if getErr != nil {
				return getErr
			}
			if prev.Amount != amount {
				return pkgerrors.NewConflictError(err)
			}
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.UpdateBalance(ctx, userID, amount); err != nil {
			return err
		}
		acc.Balance += amount

		return tx.AppendEvent(ctx, outbox.NewEvent(pkgtypes.RoutingKey_FundsTransferred, &pkgtypes.Payload{
			UserID:         userID,
			Amount:         amount,
			IdempotencyKey: key,
		}))
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *BillingService) GetBalance(ctx context.Context, userID int) (*Account, error) {
	return s.store.GetAccount(ctx, userID)
}
