package pkgtypes

import (
	"encoding/json"
	"fmt"
)

type RoutingKey string

const (
	RoutingKey_UserCreated           RoutingKey = "user.created"
	RoutingKey_RentPending           RoutingKey = "rent.pending"
	RoutingKey_RentActivated         RoutingKey = "rent.activated"
	RoutingKey_RentCanceled          RoutingKey = "rent.canceled"
	RoutingKey_RentFinished          RoutingKey = "rent.finished"
	RoutingKey_PaymentSucceeded      RoutingKey = "payment.succeeded"
	RoutingKey_PaymentCanceled       RoutingKey = "payment.canceled"
	RoutingKey_NotificationSucceeded RoutingKey = "rent.notification.succeeded"
	RoutingKey_NotificationFailed    RoutingKey = "rent.notification.failed"
	RoutingKey_FundsTransferred      RoutingKey = "funds.transferred"
)

// Payload is the event envelope body shared by every saga topic. The
// idempotency key is minted once per logical attempt and threaded unchanged
// through the forward path so every consumer deduplicates on the same key.
type Payload struct {
	UserID         int    `json:"user_id"`
	ScooterID      string `json:"scooter_id,omitempty"`
	Amount         int64  `json:"amount,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

func ParsePayload(data []byte) (*Payload, error) {
	p := &Payload{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if p.UserID == 0 {
		return nil, fmt.Errorf("payload is missing user_id")
	}
	return p, nil
}

func (p *Payload) Marshal() []byte {
	b, err := json.Marshal(p)
	if err != nil {
		panic(fmt.Sprintf("unable to marshal payload = %v", err))
	}
	return b
}
