package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Cascader keeps a derived billing record consistent with whichever
// doctor and service the appointment ends up holding. Every operation
// here is best-effort from the scheduler's point of view: failures are
// surfaced to the caller, which logs them and carries on.
type Cascader struct {
	catalog         Catalog
	repo            Repository
	defaultCurrency string
}

func NewCascader(catalog Catalog, repo Repository, defaultCurrency string) *Cascader {
	return &Cascader{
		catalog:         catalog,
		repo:            repo,
		defaultCurrency: defaultCurrency,
	}
}

// ResolvePrice looks up the base price from the service row and the
// doctor-specific override when an active one exists.
func (c *Cascader) ResolvePrice(ctx context.Context, doctorID, serviceID uuid.UUID) (PriceQuote, error) {
	svc, err := c.catalog.GetServiceByID(ctx, serviceID)
	if err != nil {
		return PriceQuote{}, fmt.Errorf("resolve service: %w", err)
	}

	quote := PriceQuote{
		ServiceID:  svc.ID,
		BasePrice:  svc.BasePrice,
		FinalPrice: svc.BasePrice,
		Currency:   svc.Currency,
	}
	if quote.Currency == "" {
		quote.Currency = c.defaultCurrency
	}

	override, err := c.catalog.FindOverridePrice(ctx, doctorID, serviceID)
	if err != nil {
		if errors.Is(err, ErrNoOverride) {
			return quote, nil
		}
		return PriceQuote{}, fmt.Errorf("resolve override: %w", err)
	}

	quote.OverridePrice = &override
	quote.FinalPrice = override
	return quote, nil
}

// CascadeInput carries what the cascader needs from a finalized
// appointment. ServiceID is the explicit request field; when absent the
// service is matched by specialty name.
type CascadeInput struct {
	AppointmentID uuid.UUID
	DoctorID      uuid.UUID
	ServiceID     *uuid.UUID
	SpecialtyName string
}

// Cascade creates the billing record lazily the first time the
// appointment resolves to a billable service. Calling it again for the
// same appointment returns the existing record untouched.
func (c *Cascader) Cascade(ctx context.Context, in CascadeInput) (*Record, error) {
	existing, err := c.repo.GetByAppointment(ctx, in.AppointmentID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, fmt.Errorf("load billing record: %w", err)
	}

	var svc *Service
	if in.ServiceID != nil {
		svc, err = c.catalog.GetServiceByID(ctx, *in.ServiceID)
	} else {
		svc, err = c.catalog.FindServiceByName(ctx, in.SpecialtyName)
	}
	if err != nil {
		return nil, fmt.Errorf("match service: %w", err)
	}

	quote, err := c.ResolvePrice(ctx, in.DoctorID, svc.ID)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		AppointmentID: in.AppointmentID,
		ServiceID:     quote.ServiceID,
		DoctorID:      in.DoctorID,
		BasePrice:     quote.BasePrice,
		OverridePrice: quote.OverridePrice,
		FinalPrice:    quote.FinalPrice,
		Currency:      quote.Currency,
		Status:        StatusPending,
	}

	created, err := c.repo.Create(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("create billing record: %w", err)
	}
	return created, nil
}

// Recascade re-resolves the price after the appointment's doctor
// changed, overwriting base/override/final/currency and appending one
// audit entry carrying the prior and new price.
func (c *Cascader) Recascade(ctx context.Context, appointmentID, newDoctorID uuid.UUID) (*Record, error) {
	rec, err := c.repo.GetByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	quote, err := c.ResolvePrice(ctx, newDoctorID, rec.ServiceID)
	if err != nil {
		return nil, err
	}

	updated, err := c.repo.UpdatePrices(ctx, rec.ID, newDoctorID, quote)
	if err != nil {
		return nil, fmt.Errorf("update billing prices: %w", err)
	}

	audit := AuditEntry{
		RecordID:   rec.ID,
		FromStatus: rec.Status,
		ToStatus:   updated.Status,
		FromPrice:  rec.FinalPrice,
		ToPrice:    updated.FinalPrice,
		Note:       "doctor reassigned",
	}
	if err := c.repo.AppendAudit(ctx, audit); err != nil {
		return nil, fmt.Errorf("append billing audit: %w", err)
	}

	return updated, nil
}

// UpdateStatus transitions the record and appends the audit entry for
// the transition.
func (c *Cascader) UpdateStatus(ctx context.Context, appointmentID uuid.UUID, to Status) (*Record, error) {
	rec, err := c.repo.GetByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if rec.Status == to {
		return rec, nil
	}

	updated, err := c.repo.UpdateStatus(ctx, rec.ID, to)
	if err != nil {
		return nil, fmt.Errorf("update billing status: %w", err)
	}

	audit := AuditEntry{
		RecordID:   rec.ID,
		FromStatus: rec.Status,
		ToStatus:   to,
		FromPrice:  rec.FinalPrice,
		ToPrice:    updated.FinalPrice,
		Note:       "status transition",
	}
	if err := c.repo.AppendAudit(ctx, audit); err != nil {
		return nil, fmt.Errorf("append billing audit: %w", err)
	}

	return updated, nil
}
