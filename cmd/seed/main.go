package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/medibook/scheduling/internal/config"
	"github.com/medibook/scheduling/internal/db"
	"github.com/medibook/scheduling/internal/schedule"
)

var timezones = []string{
	"UTC",
	"America/New_York",
	"America/Chicago",
	"Europe/London",
	"Europe/Berlin",
	"Asia/Singapore",
}

var specialties = []string{
	"General Practice",
	"Cardiology",
	"Dermatology",
	"Pediatrics",
	"Orthopedics",
}

func main() {
	doctorCount := flag.Int("doctors", 10, "number of doctors to create")
	patientCount := flag.Int("patients", 50, "number of patients to create")
	blockedCount := flag.Int("blocked", 5, "number of blocked dates to create")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	schedules := schedule.NewPgRepository(pgPool)

	log.Printf("seeding %d doctors, %d patients", *doctorCount, *patientCount)

	doctorIDs := make([]uuid.UUID, 0, *doctorCount)
	for i := 0; i < *doctorCount; i++ {
		id := uuid.New()
		specialty := specialties[gofakeit.Number(0, len(specialties)-1)]
		tz := timezones[gofakeit.Number(0, len(timezones)-1)]

		_, err := pgPool.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, timezone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, "Dr. "+gofakeit.Name(), specialty, tz)
		if err != nil {
			log.Fatalf("insert doctor: %v", err)
		}

		// Every registered doctor starts with the Mon-Fri default.
		if err := schedules.EnsureDefaultTemplate(ctx, id); err != nil {
			log.Fatalf("ensure default template: %v", err)
		}
		doctorIDs = append(doctorIDs, id)
	}

	for i := 0; i < *patientCount; i++ {
		email := gofakeit.Email()
		_, err := pgPool.Exec(ctx, `
			INSERT INTO patients (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, uuid.New(), gofakeit.Name(), email)
		if err != nil {
			log.Fatalf("insert patient: %v", err)
		}
	}

	for i := 0; i < *blockedCount && len(doctorIDs) > 0; i++ {
		doctorID := doctorIDs[gofakeit.Number(0, len(doctorIDs)-1)]
		date := time.Now().AddDate(0, 0, gofakeit.Number(1, 30))

		block := schedule.BlockedDate{DoctorID: doctorID, Date: date}
		if gofakeit.Bool() {
			block.Window = &schedule.TimeWindow{Start: 12 * 60, End: 14 * 60}
		}
		if _, err := schedules.AddBlockedDate(ctx, block); err != nil {
			log.Fatalf("insert blocked date: %v", err)
		}
	}

	log.Printf("seed complete: %d doctors, %d patients, %d blocked dates",
		*doctorCount, *patientCount, *blockedCount)
}
