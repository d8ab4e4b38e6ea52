package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/joaoviitorsx/SistemaDeAgendamento/internal/booking"
	"github.com/joaoviitorsx/SistemaDeAgendamento/internal/config"
	"github.com/joaoviitorsx/SistemaDeAgendamento/internal/db"
	redisclient "github.com/joaoviitorsx/SistemaDeAgendamento/internal/redis"
)

// simulate fires a burst of concurrent booking requests at the same slot of
// the same physician and reports how many won. With the per-physician lock
// and the partial unique index in place the winner count must be exactly one.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	workers := getInt("SIM_WORKERS", 50)
	rounds := getInt("SIM_ROUNDS", 10)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	defer rdb.Close()

	repo := booking.NewPgRepository(pgPool)
	locker := redisclient.NewRedisPhysicianLocker(rdb, cfg.LockTTL)
	svc := booking.NewService(repo, locker, cfg, zerolog.New(os.Stderr).Level(zerolog.WarnLevel))
	cal := booking.NewCalendar(repo)

	physicians, err := repo.ListPhysicians(ctx)
	if err != nil || len(physicians) == 0 {
		log.Fatalf("no physicians available (run cmd/seed first): %v", err)
	}
	patients, err := repo.ListPatients(ctx)
	if err != nil || len(patients) < workers {
		log.Fatalf("need at least %d patients (run cmd/seed first): %v", workers, err)
	}

	admin := booking.Actor{ID: uuid.New(), Role: booking.RoleAdmin}

	failed := 0
	for round := 0; round < rounds; round++ {
		phys := physicians[round%len(physicians)]

		start, duration, ok := nextFreeSlot(ctx, cal, phys.ID)
		if !ok {
			log.Printf("round %d: no free slot for %s, skipping", round, phys.Name)
			continue
		}

		var wins, conflicts, other int64
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(patient booking.Patient) {
				defer wg.Done()
				_, err := svc.CreateAppointment(ctx, admin, booking.CreateInput{
					PatientID:   patient.ID,
					PhysicianID: phys.ID,
					StartAt:     start,
					DurationMin: duration,
				})
				switch {
				case err == nil:
					atomic.AddInt64(&wins, 1)
				case errors.Is(err, booking.ErrSlotUnavailable):
					atomic.AddInt64(&conflicts, 1)
				default:
					atomic.AddInt64(&other, 1)
				}
			}(patients[i])
		}
		wg.Wait()

		status := "OK"
		if wins != 1 {
			status = "VIOLATION"
			failed++
		}
		fmt.Printf("round %2d  physician=%s slot=%s  wins=%d conflicts=%d errors=%d  [%s]\n",
			round, phys.ID, start.Format(time.RFC3339), wins, conflicts, other, status)
	}

	if failed > 0 {
		log.Fatalf("%d/%d rounds ended with a winner count other than one", failed, rounds)
	}
	log.Println("simulation complete: every contested slot had exactly one winner")
}

// nextFreeSlot walks the next two weeks of the physician's calendar and
// returns the first available slot.
func nextFreeSlot(ctx context.Context, cal *booking.Calendar, physicianID uuid.UUID) (time.Time, int, bool) {
	for d := 1; d <= 14; d++ {
		day := time.Now().AddDate(0, 0, d)
		seq, err := cal.AvailableSlots(ctx, physicianID, day)
		if err != nil {
			continue
		}
		for slot := range seq {
			if slot.Available {
				return slot.StartAt, slot.DurationMin, true
			}
		}
	}
	return time.Time{}, 0, false
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
