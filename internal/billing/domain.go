package billing

// Amounts are integer cents. RentPrice is the flat per-trip charge.
const RentPrice int64 = 10000

type Account struct {
	UserID  int   `db:"user_id" json:"user_id"`
	Balance int64 `db:"balance" json:"balance"`
}

// Payment is the append-only ledger. The unique (user_id, idempotency_key)
// pair is the durable answer to "has this event already been applied": the
// ledger, not the bus, is the source of idempotency truth. Negative amounts
// are debits, positive amounts refunds or top-ups.
type Payment struct {
	ID             int    `db:"id" json:"id"`
	UserID         int    `db:"user_id" json:"user_id"`
	Amount         int64  `db:"amount" json:"amount"`
	IdempotencyKey string `db:"idempotency_key" json:"idempotency_key"`
}
