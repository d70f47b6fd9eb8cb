package billing

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusBilled    Status = "billed"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Prices are integer minor units. COP carries no subunit, so values are
// whole pesos.
type Record struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	ServiceID     uuid.UUID
	DoctorID      uuid.UUID
	BasePrice     int64
	OverridePrice *int64
	FinalPrice    int64
	Currency      string
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AuditEntry is one row of the append-only trail kept per record.
type AuditEntry struct {
	ID         int64
	RecordID   uuid.UUID
	FromStatus Status
	ToStatus   Status
	FromPrice  int64
	ToPrice    int64
	Note       string
	CreatedAt  time.Time
}

// Service is a catalog row consumed read-only.
type Service struct {
	ID        uuid.UUID
	Name      string
	BasePrice int64
	Currency  string
}

// PriceQuote is the outcome of resolving a price for a doctor/service
// pair: final = override when an active override exists, else base.
type PriceQuote struct {
	ServiceID     uuid.UUID
	BasePrice     int64
	OverridePrice *int64
	FinalPrice    int64
	Currency      string
}
