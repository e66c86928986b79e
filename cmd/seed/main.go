package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/config"
	"github.com/hackgods/clinic-availability/internal/db"
	"github.com/hackgods/clinic-availability/internal/directory"
	"github.com/hackgods/clinic-availability/internal/logger"
)

const (
	clinicCount      = 20
	doctorsPerClinic = 5
	patientCount     = 2000
	slotDays         = 7
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("prod", "info")
		bootLog.Fatal().Err(err).Msg("config load error")
	}
	log := logger.New(cfg.Env, cfg.LogLevel).With().Str("service", "seed").Logger()
	log.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.ApplySchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("apply schema")
	}

	faker := gofakeit.New(int64(time.Now().UnixNano()))

	doctorIDs, err := seedClinicsAndDoctors(ctx, pool, faker, log)
	if err != nil {
		log.Fatal().Err(err).Msg("seed clinics")
	}
	if err := seedPatients(ctx, pool, faker, doctorIDs, log); err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}

	svc := availability.NewService(availability.NewPgRepository(pool), directory.NewPgDirectory(pool), nil, cfg.Location, nil, log)
	if err := seedSlots(ctx, svc, faker, doctorIDs, time.Now().In(cfg.Location), log); err != nil {
		log.Fatal().Err(err).Msg("seed slots")
	}

	log.Info().Msg("seed complete")
}

func seedClinicsAndDoctors(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, log zerolog.Logger) ([]string, error) {
	log.Info().Int("clinics", clinicCount).Int("doctors_per_clinic", doctorsPerClinic).Msg("seeding clinics")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var doctorIDs []string
	for i := 0; i < clinicCount; i++ {
		clinicID := uuid.New()
		addr := faker.Address()
		address := fmt.Sprintf("%s, %s %s", addr.Street, addr.City, addr.Zip)

		_, err := tx.Exec(ctx, `
			INSERT INTO clinics (id, name, address, created_at)
			VALUES ($1, $2, $3, now())
		`, clinicID, faker.Company()+" Medical Centre", address)
		if err != nil {
			return nil, err
		}

		for j := 0; j < doctorsPerClinic; j++ {
			doctorID := fmt.Sprintf("dr-%03d-%d", i, j)
			_, err := tx.Exec(ctx, `
				INSERT INTO doctors (doctor_id, name, clinic_id, created_at)
				VALUES ($1, $2, $3, now())
			`, doctorID, "Dr "+faker.LastName(), clinicID)
			if err != nil {
				return nil, err
			}
			doctorIDs = append(doctorIDs, doctorID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	log.Info().Int("doctors", len(doctorIDs)).Msg("clinics seeded")
	return doctorIDs, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, doctorIDs []string, log zerolog.Logger) error {
	log.Info().Int("patients", patientCount).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < patientCount; offset += batchSize {
		end := offset + batchSize
		if end > patientCount {
			end = patientCount
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			var preferred *string
			// roughly half the patients have a regular GP
			if faker.Bool() {
				id := doctorIDs[faker.Number(0, len(doctorIDs)-1)]
				preferred = &id
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, preferred_doctor_id, created_at)
				VALUES ($1, $2, $3, now())
			`, fmt.Sprintf("p-%05d", i), faker.Name(), preferred)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
		log.Info().Int("seeded", end).Int("total", patientCount).Msg("patients batch committed")
	}

	return nil
}

// seedSlots gives every doctor a handful of 15 minute slots per day during
// clinic hours, in the clinic timezone.
func seedSlots(ctx context.Context, svc *availability.Service, faker *gofakeit.Faker, doctorIDs []string, now time.Time, log zerolog.Logger) error {
	created := 0
	for day := 0; day < slotDays; day++ {
		date := now.AddDate(0, 0, day).Format(availability.DateLayout)
		for _, doctorID := range doctorIDs {
			for k := 0; k < 4; k++ {
				hour := faker.Number(8, 16)
				minute := faker.RandomInt([]int{0, 15, 30, 45})
				start := fmt.Sprintf("%02d:%02d", hour, minute)
				end := fmt.Sprintf("%02d:%02d", hour, minute+14)

				_, err := svc.SetAvailability(ctx, availability.NewSlot{
					DoctorID:  doctorID,
					Date:      date,
					StartTime: start,
					EndTime:   end,
				})
				if err != nil {
					return fmt.Errorf("slot for %s on %s: %w", doctorID, date, err)
				}
				created++
			}
		}
	}
	log.Info().Int("slots", created).Msg("slots seeded")
	return nil
}
