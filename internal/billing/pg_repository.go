package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgCatalog struct {
	db querier
}

func NewPgCatalog(pool *pgxpool.Pool) *PgCatalog {
	return &PgCatalog{db: pool}
}

func NewPgCatalogWithQuerier(q querier) *PgCatalog {
	return &PgCatalog{db: q}
}

func scanService(row pgx.Row) (*Service, error) {
	var s Service
	err := row.Scan(&s.ID, &s.Name, &s.BasePrice, &s.Currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (c *PgCatalog) GetServiceByID(ctx context.Context, id uuid.UUID) (*Service, error) {
	row := c.db.QueryRow(ctx, `
		SELECT id, name, base_price, currency
		FROM services
		WHERE id = $1
	`, id)
	return scanService(row)
}

func (c *PgCatalog) FindServiceByName(ctx context.Context, name string) (*Service, error) {
	row := c.db.QueryRow(ctx, `
		SELECT id, name, base_price, currency
		FROM services
		WHERE lower(name) = lower($1)
		ORDER BY id
		LIMIT 1
	`, name)
	return scanService(row)
}

func (c *PgCatalog) FindOverridePrice(ctx context.Context, doctorID, serviceID uuid.UUID) (int64, error) {
	var price int64
	err := c.db.QueryRow(ctx, `
		SELECT price
		FROM doctor_service_prices
		WHERE doctor_id = $1
		  AND service_id = $2
		  AND active
	`, doctorID, serviceID).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNoOverride
		}
		return 0, err
	}
	return price, nil
}

type PgRepository struct {
	db querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: pool}
}

func NewPgRepositoryWithQuerier(q querier) *PgRepository {
	return &PgRepository{db: q}
}

const recordColumns = `id, appointment_id, service_id, doctor_id, base_price,
		override_price, final_price, currency, status, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.AppointmentID,
		&rec.ServiceID,
		&rec.DoctorID,
		&rec.BasePrice,
		&rec.OverridePrice,
		&rec.FinalPrice,
		&rec.Currency,
		&rec.Status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *PgRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Record, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM billing_records
		WHERE appointment_id = $1
	`, appointmentID)
	return scanRecord(row)
}

func (r *PgRepository) Create(ctx context.Context, rec *Record) (*Record, error) {
	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO billing_records (id, appointment_id, service_id, doctor_id,
			base_price, override_price, final_price, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING `+recordColumns+`
	`, id, rec.AppointmentID, rec.ServiceID, rec.DoctorID,
		rec.BasePrice, rec.OverridePrice, rec.FinalPrice, rec.Currency, rec.Status)

	return scanRecord(row)
}

func (r *PgRepository) UpdatePrices(ctx context.Context, id uuid.UUID, doctorID uuid.UUID, quote PriceQuote) (*Record, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE billing_records
		SET doctor_id = $2,
		    service_id = $3,
		    base_price = $4,
		    override_price = $5,
		    final_price = $6,
		    currency = $7,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+recordColumns+`
	`, id, doctorID, quote.ServiceID, quote.BasePrice, quote.OverridePrice,
		quote.FinalPrice, quote.Currency)

	return scanRecord(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to Status) (*Record, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE billing_records
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+recordColumns+`
	`, id, to)

	return scanRecord(row)
}

func (r *PgRepository) AppendAudit(ctx context.Context, e AuditEntry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO billing_audit_entries (record_id, from_status, to_status,
			from_price, to_price, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, e.RecordID, e.FromStatus, e.ToStatus, e.FromPrice, e.ToPrice, e.Note)
	return err
}
