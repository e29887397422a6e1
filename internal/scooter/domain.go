package scooter

type RentStatus string

const (
	RentStatus_Pending  RentStatus = "PENDING"
	RentStatus_Active   RentStatus = "ACTIVE"
	RentStatus_Canceled RentStatus = "CANCELED"
	RentStatus_Finished RentStatus = "FINISHED"
)

// Rent rows are never deleted. The partial unique indexes on user_id and
// scooter_id (filtered to PENDING/ACTIVE) enforce one live rent per user and
// per scooter.
type Rent struct {
	ID        int        `db:"id" json:"id"`
	ScooterID string     `db:"scooter_id" json:"scooter_id"`
	UserID    int        `db:"user_id" json:"user_id"`
	Status    RentStatus `db:"status" json:"status"`
}

type Scooter struct {
	ID        string  `db:"id" json:"id"`
	Charge    float64 `db:"charge" json:"charge"`
	Latitude  float64 `db:"latitude" json:"latitude"`
	Longitude float64 `db:"longitude" json:"longitude"`
}
