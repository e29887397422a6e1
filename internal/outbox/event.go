package outbox

import (
	"encoding/json"
	"time"

	pkgtypes "github.com/gnd-labs/scooter-saga/pkg/types"
	"github.com/google/uuid"
)

type EventStatus string

const (
	EventStatus_Pending  EventStatus = "pending"
	EventStatus_Produced EventStatus = "produced"
)

// Event is one row of the per-service outbox table. It is written in the
// same transaction as the state transition it announces and drained to the
// bus by the background publisher.
type Event struct {
	EventID    string          `db:"event_id"`
	RoutingKey string          `db:"routing_key"`
	Payload    json.RawMessage `db:"payload"`
	Status     EventStatus     `db:"status"`
	CreatedAt  time.Time       `db:"created_at"`
}

func NewEvent(key pkgtypes.RoutingKey, payload *pkgtypes.Payload) *Event {
	return &Event{
		EventID:    uuid.NewString(),
		RoutingKey: string(key),
		Payload:    payload.Marshal(),
		Status:     EventStatus_Pending,
		CreatedAt:  time.Now().UTC(),
	}
}
