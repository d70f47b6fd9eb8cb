package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrRecordNotFound  = errors.New("billing record not found")
	ErrServiceNotFound = errors.New("no matching service in catalog")
	ErrNoOverride      = errors.New("no doctor price override")
)

// Catalog is the read-only service/price lookup collaborator.
type Catalog interface {
	GetServiceByID(ctx context.Context, id uuid.UUID) (*Service, error)
	// FindServiceByName matches a specialty name to a service name.
	FindServiceByName(ctx context.Context, name string) (*Service, error)
	// FindOverridePrice returns the doctor-specific active price, or
	// ErrNoOverride.
	FindOverridePrice(ctx context.Context, doctorID, serviceID uuid.UUID) (int64, error)
}

// Repository persists billing records and their audit trail.
type Repository interface {
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Record, error)
	Create(ctx context.Context, rec *Record) (*Record, error)
	UpdatePrices(ctx context.Context, id uuid.UUID, doctorID uuid.UUID, quote PriceQuote) (*Record, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to Status) (*Record, error)
	AppendAudit(ctx context.Context, e AuditEntry) error
}
