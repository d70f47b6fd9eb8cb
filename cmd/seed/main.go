package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otakuogeek/Callcenter-MCP-sub005/internal/db"
)

var specialtyNames = []string{
	"Cardiología",
	"Dermatología",
	"Medicina General",
	"Ortopedia",
	"Endocrinología",
	"Neurología",
	"Pediatría",
	"Psiquiatría",
	"Oftalmología",
	"Otorrinolaringología",
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	seedCtx := context.Background()

	specialties, err := seedSpecialties(seedCtx, pool)
	if err != nil {
		log.Fatalf("seed specialties: %v", err)
	}
	locations, err := seedLocations(seedCtx, pool, 3)
	if err != nil {
		log.Fatalf("seed locations: %v", err)
	}
	services, err := seedServices(seedCtx, pool, specialties)
	if err != nil {
		log.Fatalf("seed services: %v", err)
	}
	doctors, err := seedDoctors(seedCtx, pool, specialties, 60)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedOverrides(seedCtx, pool, doctors, services); err != nil {
		log.Fatalf("seed price overrides: %v", err)
	}
	if err := seedPatients(seedCtx, pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedWindows(seedCtx, pool, doctors, specialties, locations); err != nil {
		log.Fatalf("seed availability windows: %v", err)
	}
	if err := seedBlocks(seedCtx, pool, doctors); err != nil {
		log.Fatalf("seed preallocation blocks: %v", err)
	}

	log.Println("seed complete")
}

func seedSpecialties(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	log.Printf("seeding %d specialties", len(specialtyNames))

	ids := make([]uuid.UUID, 0, len(specialtyNames))
	for _, name := range specialtyNames {
		id := uuid.New()
		_, err := pool.Exec(ctx, `
			INSERT INTO specialties (id, name) VALUES ($1, $2)
			ON CONFLICT (name) DO NOTHING
		`, id, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func seedLocations(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d locations", count)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := pool.Exec(ctx, `
			INSERT INTO locations (id, name, city) VALUES ($1, $2, $3)
		`, id, "Sede "+gofakeit.City(), gofakeit.City())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)

		// a couple of rooms per location
		for j := 0; j < 2; j++ {
			_, err := pool.Exec(ctx, `
				INSERT INTO rooms (id, location_id, name) VALUES ($1, $2, $3)
			`, uuid.New(), id, gofakeit.LetterN(1)+"-10"+gofakeit.DigitN(1))
			if err != nil {
				return nil, err
			}
		}
	}
	return ids, nil
}

func seedServices(ctx context.Context, pool *pgxpool.Pool, specialties []uuid.UUID) ([]uuid.UUID, error) {
	log.Printf("seeding %d services", len(specialtyNames))

	ids := make([]uuid.UUID, 0, len(specialtyNames))
	for _, name := range specialtyNames {
		id := uuid.New()
		base := int64(gofakeit.Number(30, 120)) * 1000
		_, err := pool.Exec(ctx, `
			INSERT INTO services (id, name, base_price, currency) VALUES ($1, $2, $3, 'COP')
		`, id, name, base)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	_ = specialties
	return ids, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, specialties []uuid.UUID, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty_id, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, "Dr. "+gofakeit.Name(), spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func seedOverrides(ctx context.Context, pool *pgxpool.Pool, doctors, services []uuid.UUID) error {
	log.Println("seeding doctor price overrides")

	// Roughly a third of the doctors carry an override for one service.
	for i, doctorID := range doctors {
		if i%3 != 0 {
			continue
		}
		serviceID := services[gofakeit.Number(0, len(services)-1)]
		price := int64(gofakeit.Number(40, 150)) * 1000
		_, err := pool.Exec(ctx, `
			INSERT INTO doctor_service_prices (doctor_id, service_id, price, active)
			VALUES ($1, $2, $3, true)
			ON CONFLICT (doctor_id, service_id) DO NOTHING
		`, doctorID, serviceID, price)
		if err != nil {
			return err
		}
	}
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, phone, email, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, uuid.New(), gofakeit.Name(), gofakeit.Phone(), gofakeit.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	return nil
}

func seedWindows(ctx context.Context, pool *pgxpool.Pool, doctors, specialties, locations []uuid.UUID) error {
	log.Println("seeding availability windows")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	today := time.Now().UTC().Truncate(24 * time.Hour)
	for _, doctorID := range doctors {
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		loc := locations[gofakeit.Number(0, len(locations)-1)]

		// two weeks of morning and afternoon windows
		for d := 0; d < 14; d++ {
			day := today.AddDate(0, 0, d)
			for _, startHour := range []int{8, 14} {
				starts := day.Add(time.Duration(startHour) * time.Hour)
				_, err := tx.Exec(ctx, `
					INSERT INTO availability_windows (id, doctor_id, specialty_id, location_id,
						day, starts_at, ends_at, capacity, booked_count)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0)
				`, uuid.New(), doctorID, spec, loc, day, starts, starts.Add(4*time.Hour),
					gofakeit.Number(4, 8))
				if err != nil {
					return err
				}
			}
		}
	}

	return tx.Commit(ctx)
}

func seedBlocks(ctx context.Context, pool *pgxpool.Pool, doctors []uuid.UUID) error {
	log.Println("seeding preallocation blocks")

	today := time.Now().UTC().Truncate(24 * time.Hour)
	for i, doctorID := range doctors {
		if i%2 != 0 {
			continue
		}
		target := today.AddDate(0, 0, gofakeit.Number(1, 10))
		reserved := today.AddDate(0, 0, -gofakeit.Number(0, 5))
		_, err := pool.Exec(ctx, `
			INSERT INTO preallocation_blocks (id, doctor_id, target_day, reserved_on,
				slot_count, assigned_count)
			VALUES ($1, $2, $3, $4, $5, 0)
		`, uuid.New(), doctorID, target, reserved, gofakeit.Number(1, 4))
		if err != nil {
			return err
		}
	}
	return nil
}
