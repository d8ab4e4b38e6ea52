package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joaoviitorsx/SistemaDeAgendamento/internal/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS patients (
	id         uuid PRIMARY KEY,
	name       text NOT NULL,
	email      text NOT NULL,
	phone      text,
	active     boolean NOT NULL DEFAULT true,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS physicians (
	id         uuid PRIMARY KEY,
	name       text NOT NULL,
	license    text NOT NULL,
	specialty  text NOT NULL,
	active     boolean NOT NULL DEFAULT true,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS working_windows (
	id           uuid PRIMARY KEY,
	physician_id uuid NOT NULL REFERENCES physicians (id),
	weekday      int NOT NULL,
	start_min    int NOT NULL,
	end_min      int NOT NULL,
	slot_minutes int NOT NULL,
	created_at   timestamptz NOT NULL DEFAULT now(),
	updated_at   timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS appointments (
	id           uuid PRIMARY KEY,
	patient_id   uuid NOT NULL REFERENCES patients (id),
	physician_id uuid NOT NULL REFERENCES physicians (id),
	start_at     timestamptz NOT NULL,
	duration_min int NOT NULL,
	status       text NOT NULL,
	notes        text,
	created_at   timestamptz NOT NULL DEFAULT now(),
	updated_at   timestamptz NOT NULL DEFAULT now()
);

-- Second line of defense behind the per-physician lock: two active rows can
-- never share a physician and start time.
CREATE UNIQUE INDEX IF NOT EXISTS appointments_physician_start_active
	ON appointments (physician_id, start_at)
	WHERE status IN ('scheduled', 'confirmed');
`

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

	if _, err := pool.Exec(context.Background(), schema); err != nil {
		log.Fatalf("create schema: %v", err)
	}
	log.Println("schema ready")

	gofakeit.Seed(time.Now().UnixNano())

	physicianIDs, err := seedPhysicians(context.Background(), pool, 50)
	if err != nil {
		log.Fatalf("seed physicians: %v", err)
	}
	if err := seedWindows(context.Background(), pool, physicianIDs); err != nil {
		log.Fatalf("seed working windows: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedPhysicians(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d physicians", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		license := gofakeit.Regex(`CRM-[0-9]{6}`)
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO physicians (id, name, license, specialty, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, true, now(), now())
		`, id, name, license, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("physicians seeded")
	return ids, nil
}

func seedWindows(ctx context.Context, pool *pgxpool.Pool, physicianIDs []uuid.UUID) error {
	log.Printf("seeding working windows for %d physicians", len(physicianIDs))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, pid := range physicianIDs {
		slot := []int{15, 20, 30}[gofakeit.Number(0, 2)]
		// Weekday mornings plus two afternoons per physician.
		for wd := 1; wd <= 5; wd++ {
			if err := insertWindow(ctx, tx, pid, wd, 8*60, 12*60, slot); err != nil {
				return err
			}
		}
		for _, wd := range []int{gofakeit.Number(1, 2), gofakeit.Number(3, 5)} {
			if err := insertWindow(ctx, tx, pid, wd, 14*60, 18*60, slot); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("working windows seeded")
	return nil
}

func insertWindow(ctx context.Context, tx pgx.Tx, physicianID uuid.UUID, weekday, startMin, endMin, slotMinutes int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO working_windows (id, physician_id, weekday, start_min, end_min, slot_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`, uuid.New(), physicianID, weekday, startMin, endMin, slotMinutes)
	return err
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
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()
			phone := gofakeit.Phone()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, phone, active, created_at, updated_at)
				VALUES ($1, $2, $3, $4, true, now(), now())
			`, id, name, email, phone)
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

	log.Println("patients seeded")
	return nil
}
