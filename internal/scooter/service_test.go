package scooter

import (
	"context"
	"sync"
	"testing"

	"github.com/gnd-labs/scooter-saga/internal/outbox"
	pkgerrors "github.com/gnd-labs/scooter-saga/pkg/errors"
	pkgtypes "github.com/gnd-labs/scooter-saga/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore emulates the scooter database, including the partial unique
// indexes on live rents. The tx mutex stands in for row locking; a failed
// transaction restores the pre-tx snapshot.
type memStore struct {
	mu       sync.Mutex
	scooters []*Scooter
	rents    []*Rent
	events   []*outbox.Event
}

func newMemStore(scooterIDs ...string) *memStore {
	s := &memStore{}
	for i, id := range scooterIDs {
		s.scooters = append(s.scooters, &Scooter{ID: id, Charge: float64(100 - i)})
	}
	return s
}

func (s *memStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapRents := make([]*Rent, len(s.rents))
	for i, r := range s.rents {
		cp := *r
		snapRents[i] = &cp
	}
	snapEvents := len(s.events)

	if err := fn(&memTx{store: s}); err != nil {
		s.rents = snapRents
		s.events = s.events[:snapEvents]
		return err
	}
	return nil
}

func (s *memStore) GetLatestRent(ctx context.Context, userID int) (*Rent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.rents) - 1; i >= 0; i-- {
		if s.rents[i].UserID == userID {
			return s.rents[i], nil
		}
	}
	return nil, pkgerrors.ErrNotFound
}

func (s *memStore) AvailableScooters(ctx context.Context) ([]*Scooter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	available := []*Scooter{}
	for _, sc := range s.scooters {
		if !s.scooterHeld(sc.ID) {
			available = append(available, sc)
		}
	}
	return available, nil
}

func (s *memStore) scooterHeld(scooterID string) bool {
	for _, r := range s.rents {
		if r.ScooterID == scooterID && (r.Status == RentStatus_Pending || r.Status == RentStatus_Active) {
			return true
		}
	}
	return false
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

type memTx struct {
	store *memStore
}

func (t *memTx) InsertPendingRent(ctx context.Context, userID int, scooterID string) (*Rent, error) {
	known := false
	for _, sc := range t.store.scooters {
		if sc.ID == scooterID {
			known = true
			break
		}
	}
	if !known {
		return nil, pkgerrors.ErrNotFound
	}

	for _, r := range t.store.rents {
		if r.Status != RentStatus_Pending && r.Status != RentStatus_Active {
			continue
		}
		if r.UserID == userID || r.ScooterID == scooterID {
			return nil, pkgerrors.ErrConflict
		}
	}

	rent := &Rent{
		ID:        len(t.store.rents) + 1,
		ScooterID: scooterID,
		UserID:    userID,
		Status:    RentStatus_Pending,
	}
	t.store.rents = append(t.store.rents, rent)
	return rent, nil
}

func (t *memTx) FinishActiveRent(ctx context.Context, userID int) (*Rent, error) {
	for _, r := range t.store.rents {
		if r.UserID == userID && r.Status == RentStatus_Active {
			r.Status = RentStatus_Finished
			return r, nil
		}
	}
	return nil, pkgerrors.ErrNotFound
}

func (t *memTx) ResolvePendingRent(ctx context.Context, userID int, scooterID string, status RentStatus) (int, error) {
	rows := 0
	for _, r := range t.store.rents {
		if r.UserID == userID && r.ScooterID == scooterID && r.Status == RentStatus_Pending {
			r.Status = status
			rows++
		}
	}
	return rows, nil
}

func (t *memTx) AppendEvent(ctx context.Context, e *outbox.Event) error {
	t.store.events = append(t.store.events, e)
	return nil
}

func TestStartRent(t *testing.T) {
	store := newMemStore("s-1", "s-2")
	svc := NewRentService(store)
	ctx := context.Background()

	rent, err := svc.StartRent(ctx, 1, "s-1")
	require.NoError(t, err)
	assert.Equal(t, RentStatus_Pending, rent.Status)

	pending := store.eventsFor(pkgtypes.RoutingKey_RentPending)
	require.Len(t, pending, 1)
	p, err := pkgtypes.ParsePayload(pending[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, 1, p.UserID)
	assert.Equal(t, "s-1", p.ScooterID)
	assert.NotEmpty(t, p.IdempotencyKey, "a fresh attempt key must be minted")
}

func TestStartRent_Conflicts(t *testing.T) {
	store := newMemStore("s-1", "s-2")
	svc := NewRentService(store)
	ctx := context.Background()

	_, err := svc.StartRent(ctx, 1, "s-1")
	require.NoError(t, err)

	// one live rent per user
	_, err = svc.StartRent(ctx, 1, "s-2")
	assert.True(t, pkgerrors.IsConflictError(err))

	// one live rent per scooter
	_, err = svc.StartRent(ctx, 2, "s-1")
	assert.True(t, pkgerrors.IsConflictError(err))

	// a conflicting request must not leak an event
	assert.Len(t, store.eventsFor(pkgtypes.RoutingKey_RentPending), 1)
}

func TestStartRent_UnknownScooter(t *testing.T) {
	store := newMemStore("s-1")
	svc := NewRentService(store)

	_, err := svc.StartRent(context.Background(), 1, "nope")
	assert.True(t, pkgerrors.IsNotFoundError(err))
}

func TestStartRent_Concurrent(t *testing.T) {
	store := newMemStore("s-1")
	svc := NewRentService(store)
	ctx := context.Background()

	wg := new(sync.WaitGroup)
	callers := 8
	wg.Add(callers)
	conflicts := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func(userID int) {
			defer wg.Done()
			_, err := svc.StartRent(ctx, userID, "s-1")
			conflicts <- err
		}(i + 1)
	}
	wg.Wait()
	close(conflicts)

	succeeded := 0
	for err := range conflicts {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, pkgerrors.IsConflictError(err))
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one caller wins the scooter")
	assert.Len(t, store.eventsFor(pkgtypes.RoutingKey_RentPending), 1)
}

func TestStopRent(t *testing.T) {
	store := newMemStore("s-1")
	svc := NewRentService(store)
	ctx := context.Background()

	_, err := svc.StopRent(ctx, 1)
	assert.True(t, pkgerrors.IsNotFoundError(err), "no active rent to stop")

	_, err = svc.StartRent(ctx, 1, "s-1")
	require.NoError(t, err)

	// PENDING is not stoppable, only ACTIVE
	_, err = svc.StopRent(ctx, 1)
	assert.True(t, pkgerrors.IsNotFoundError(err))

	require.NoError(t, svc.OnRentActivated(ctx, &pkgtypes.Payload{UserID: 1, ScooterID: "s-1"}))

	rent, err := svc.StopRent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, RentStatus_Finished, rent.Status)
	assert.Len(t, store.eventsFor(pkgtypes.RoutingKey_RentFinished), 1)
}

func TestOnRentActivated_Idempotent(t *testing.T) {
	store := newMemStore("s-1")
	svc := NewRentService(store)
	ctx := context.Background()

	_, err := svc.StartRent(ctx, 1, "s-1")
	require.NoError(t, err)

	payload := &pkgtypes.Payload{UserID: 1, ScooterID: "s-1"}
	require.NoError(t, svc.OnRentActivated(ctx, payload))
	require.NoError(t, svc.OnRentActivated(ctx, payload), "redelivery is a no-op")

	rent, err := svc.GetRent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, RentStatus_Active, rent.Status)
}

func TestOnRentCanceled_TerminalStaysTerminal(t *testing.T) {
	store := newMemStore("s-1")
	svc := NewRentService(store)
	ctx := context.Background()

	_, err := svc.StartRent(ctx, 1, "s-1")
	require.NoError(t, err)

	payload := &pkgtypes.Payload{UserID: 1, ScooterID: "s-1"}
	require.NoError(t, svc.OnRentCanceled(ctx, payload))

	rent, err := svc.GetRent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, RentStatus_Canceled, rent.Status)

	// a late activation for the same attempt must not resurrect the rent
	require.NoError(t, svc.OnRentActivated(ctx, payload))
	rent, err = svc.GetRent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, RentStatus_Canceled, rent.Status)

	// a canceled rent releases both the user and the scooter
	_, err = svc.StartRent(ctx, 1, "s-1")
	require.NoError(t, err)
}

func TestFinishedRentStaysFinished(t *testing.T) {
	store := newMemStore("s-1")
	svc := NewRentService(store)
	ctx := context.Background()

	_, err := svc.StartRent(ctx, 1, "s-1")
	require.NoError(t, err)
	payload := &pkgtypes.Payload{UserID: 1, ScooterID: "s-1"}
	require.NoError(t, svc.OnRentActivated(ctx, payload))
	_, err = svc.StopRent(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, svc.OnRentCanceled(ctx, payload), "cancel after finish is a no-op")
	rent, err := svc.GetRent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, RentStatus_Finished, rent.Status)
}

func TestAvailableScooters(t *testing.T) {
	store := newMemStore("s-1", "s-2", "s-3")
	svc := NewRentService(store)
	ctx := context.Background()

	_, err := svc.StartRent(ctx, 1, "s-2")
	require.NoError(t, err)

	available, err := svc.Scooters(ctx)
	require.NoError(t, err)
	ids := []string{}
	for _, sc := range available {
		ids = append(ids, sc.ID)
	}
	assert.ElementsMatch(t, []string{"s-1", "s-3"}, ids)

	// a finished rent frees the scooter again
	require.NoError(t, svc.OnRentActivated(ctx, &pkgtypes.Payload{UserID: 1, ScooterID: "s-2"}))
	_, err = svc.StopRent(ctx, 1)
	require.NoError(t, err)

	available, err = svc.Scooters(ctx)
	require.NoError(t, err)
	assert.Len(t, available, 3)
}

func TestMutualExclusivityInvariant(t *testing.T) {
	store := newMemStore("s-1", "s-2")
	svc := NewRentService(store)
	ctx := context.Background()

	users := []int{1, 2, 3}
	wg := new(sync.WaitGroup)
	for _, u := range users {
		for _, sc := range []string{"s-1", "s-2"} {
			wg.Add(1)
			go func(u int, sc string) {
				defer wg.Done()
				svc.StartRent(ctx, u, sc)
			}(u, sc)
		}
	}
	wg.Wait()

	perUser := map[int]int{}
	perScooter := map[string]int{}
	store.mu.Lock()
	for _, r := range store.rents {
		if r.Status == RentStatus_Pending || r.Status == RentStatus_Active {
			perUser[r.UserID]++
			perScooter[r.ScooterID]++
		}
	}
	store.mu.Unlock()

	for u, n := range perUser {
		assert.LessOrEqualf(t, n, 1, "user %d holds %d live rents", u, n)
	}
	for sc, n := range perScooter {
		assert.LessOrEqualf(t, n, 1, "scooter %s held by %d live rents", sc, n)
	}
}

func TestStartRent_EventRollsBackWithRent(t *testing.T) {
	store := newMemStore("s-1")
	svc := NewRentService(store)
	ctx := context.Background()

	_, err := svc.StartRent(ctx, 1, "s-1")
	require.NoError(t, err)
	_, err = svc.StartRent(ctx, 2, "s-1")
	require.True(t, pkgerrors.IsConflictError(err))

	require.Len(t, store.eventsFor(pkgtypes.RoutingKey_RentPending), 1)
	rent, err := svc.GetRent(ctx, 2)
	assert.True(t, pkgerrors.IsNotFoundError(err))
	assert.Nil(t, rent)
}
