package notification

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/gnd-labs/scooter-saga/internal/outbox"
	pkgerrors "github.com/gnd-labs/scooter-saga/pkg/errors"
	pkgtypes "github.com/gnd-labs/scooter-saga/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu            sync.Mutex
	notifications []*Notification
	byKey         map[string]bool
	events        []*outbox.Event
}

func newMemStore() *memStore {
	return &memStore{byKey: map[string]bool{}}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapLen := len(s.notifications)
	snapEvents := len(s.events)

	if err := fn(&memTx{store: s}); err != nil {
		for _, n := range s.notifications[snapLen:] {
			delete(s.byKey, dedupKey(n.UserID, n.IdempotencyKey))
		}
		s.notifications = s.notifications[:snapLen]
		s.events = s.events[:snapEvents]
		return err
	}
	return nil
}

func (s *memStore) ListNotifications(ctx context.Context, userID int) ([]*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := []*Notification{}
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if s.notifications[i].UserID == userID {
			matched = append(matched, s.notifications[i])
		}
	}
	return matched, nil
}

func (s *memStore) eventsFor(key pkgtypes.RoutingKey) []*outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := []*outbox.Event{}
	for _, e := range s.events {
		if e.RoutingKey == string(key) {
			matched = append(matched, e)
		}
	}
	return matched
}

func dedupKey(userID int, idempotencyKey string) string {
	return fmt.Sprintf("%d/%s", userID, idempotencyKey)
}

type memTx struct {
	store *memStore
}

func (t *memTx) InsertNotification(ctx context.Context, n *Notification) error {
	k := dedupKey(n.UserID, n.IdempotencyKey)
	if t.store.byKey[k] {
		return pkgerrors.ErrDuplicateKey
	}
	t.store.byKey[k] = true
	n.ID = len(t.store.notifications) + 1
	t.store.notifications = append(t.store.notifications, n)
	return nil
}

func (t *memTx) AppendEvent(ctx context.Context, e *outbox.Event) error {
	t.store.events = append(t.store.events, e)
	return nil
}

func TestOnPaymentSucceeded(t *testing.T) {
	store := newMemStore()
	svc := NewNotificationService(store, "")
	ctx := context.Background()

	payload := &pkgtypes.Payload{UserID: 1, ScooterID: "s-1", IdempotencyKey: "attempt-1"}
	require.NoError(t, svc.OnPaymentSucceeded(ctx, payload))

	got, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "payment.succeeded", got[0].Event)

	assert.Len(t, store.eventsFor(pkgtypes.RoutingKey_NotificationSucceeded), 1)
	activated := store.eventsFor(pkgtypes.RoutingKey_RentActivated)
	require.Len(t, activated, 1)
	p, err := pkgtypes.ParsePayload(activated[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, "s-1", p.ScooterID)
}

func TestOnPaymentSucceeded_Redelivery(t *testing.T) {
	store := newMemStore()
	svc := NewNotificationService(store, "")
	ctx := context.Background()

	payload := &pkgtypes.Payload{UserID: 1, ScooterID: "s-1", IdempotencyKey: "attempt-1"}
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.OnPaymentSucceeded(ctx, payload))
	}

	got, err := svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1, "exactly one row regardless of deliveries")
	assert.Len(t, store.eventsFor(pkgtypes.RoutingKey_RentActivated), 1, "must not re-publish activation")
}

func TestOnPaymentSucceeded_Fault(t *testing.T) {
	store := newMemStore()
	svc := NewNotificationService(store, "s-broken")
	ctx := context.Background()

	payload := &pkgtypes.Payload{UserID: 1, ScooterID: "s-broken", IdempotencyKey: "attempt-1"}
	require.NoError(t, svc.OnPaymentSucceeded(ctx, payload))

	// nothing recorded, failure signal published instead
	got, err := svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, store.eventsFor(pkgtypes.RoutingKey_RentActivated))

	failed := store.eventsFor(pkgtypes.RoutingKey_NotificationFailed)
	require.Len(t, failed, 1)
	p, err := pkgtypes.ParsePayload(failed[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, CompensationKey("attempt-1"), p.IdempotencyKey)
	assert.NotEqual(t, "attempt-1", p.IdempotencyKey,
		"compensation key must not collide with the forward-path key")

	// the key is stable across redeliveries so the refund applies once
	require.NoError(t, svc.OnPaymentSucceeded(ctx, payload))
	failed = store.eventsFor(pkgtypes.RoutingKey_NotificationFailed)
	require.Len(t, failed, 2)
	p2, err := pkgtypes.ParsePayload(failed[1].Payload)
	require.NoError(t, err)
	assert.Equal(t, p.IdempotencyKey, p2.IdempotencyKey)
}

func TestSimpleRecords(t *testing.T) {
	store := newMemStore()
	svc := NewNotificationService(store, "")
	ctx := context.Background()

	require.NoError(t, svc.OnRentFinished(ctx, &pkgtypes.Payload{UserID: 1, ScooterID: "s-1", IdempotencyKey: "fin-1"}))
	require.NoError(t, svc.OnFundsTransferred(ctx, &pkgtypes.Payload{UserID: 1, Amount: 5000, IdempotencyKey: "topup-1"}))
	require.NoError(t, svc.OnPaymentCanceled(ctx, &pkgtypes.Payload{UserID: 1, ScooterID: "s-1", IdempotencyKey: "attempt-1"}))

	// redeliveries
	require.NoError(t, svc.OnRentFinished(ctx, &pkgtypes.Payload{UserID: 1, ScooterID: "s-1", IdempotencyKey: "fin-1"}))
	require.NoError(t, svc.OnPaymentCanceled(ctx, &pkgtypes.Payload{UserID: 1, ScooterID: "s-1", IdempotencyKey: "attempt-1"}))

	got, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// newest first
	assert.Equal(t, "payment.canceled", got[0].Event)
	assert.Equal(t, "funds.transferred", got[1].Event)
	assert.Equal(t, "rent.finished", got[2].Event)

	// the ledger keeps no events at all for these
	assert.Empty(t, store.events)
}
