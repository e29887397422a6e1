package notification

import "time"

// Notification is the user-visible append-only ledger. Idempotency works the
// same way as the payment ledger: the unique (user_id, idempotency_key) pair
// records that an event was already applied.
type Notification struct {
	ID             int       `db:"id" json:"id"`
	UserID         int       `db:"user_id" json:"user_id"`
	Event          string    `db:"event" json:"event"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	IdempotencyKey string    `db:"idempotency_key" json:"idempotency_key"`
}
