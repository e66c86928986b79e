package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const slotColumns = `id, doctor_id, date, start_time, end_time, is_booked, booked_by, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var bookedBy *string

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&s.StartTime,
		&s.EndTime,
		&s.IsBooked,
		&bookedBy,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.BookedBy = bookedBy
	s.StartTime = s.StartTime.UTC()
	s.EndTime = s.EndTime.UTC()
	return &s, nil
}

func (r *PgRepository) listSlots(ctx context.Context, query string, args ...any) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) Create(ctx context.Context, s Slot) (*Slot, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_slots (id, doctor_id, date, start_time, end_time, is_booked, booked_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+slotColumns,
		s.ID, s.DoctorID, s.Date, s.StartTime, s.EndTime, s.IsBooked, s.BookedBy)

	created, err := scanSlot(row)
	if err != nil {
		return nil, fmt.Errorf("insert slot: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListByDoctorID(ctx context.Context, doctorID string) ([]Slot, error) {
	return r.listSlots(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE doctor_id = $1
	`, doctorID)
}

func (r *PgRepository) ListByDoctorIDs(ctx context.Context, doctorIDs []string) ([]Slot, error) {
	return r.listSlots(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE doctor_id = ANY($1)
	`, doctorIDs)
}

func (r *PgRepository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]Slot, error) {
	return r.listSlots(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE start_time >= $1
		  AND start_time < $2
		ORDER BY start_time, id
	`, from, to)
}

func (r *PgRepository) ListUnbooked(ctx context.Context) ([]Slot, error) {
	return r.listSlots(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE is_booked = false
		ORDER BY start_time, id
	`)
}

func (r *PgRepository) Update(ctx context.Context, doctorID string, id uuid.UUID, ch SlotChanges) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE availability_slots
		SET date = $3,
		    start_time = $4,
		    end_time = $5,
		    is_booked = $6,
		    booked_by = $7,
		    updated_at = now()
		WHERE doctor_id = $1
		  AND id = $2
		  AND is_booked = $8
		  AND booked_by IS NOT DISTINCT FROM $9
		RETURNING `+slotColumns,
		doctorID, id, ch.Date, ch.StartTime, ch.EndTime, ch.IsBooked, ch.BookedBy, ch.PrevIsBooked, ch.PrevBookedBy)

	return scanSlot(row)
}

func (r *PgRepository) Delete(ctx context.Context, doctorID string, id uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM availability_slots
		WHERE doctor_id = $1
		  AND id = $2
	`, doctorID, id)
	if err != nil {
		return 0, fmt.Errorf("delete slot: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) MarkBooked(ctx context.Context, id uuid.UUID, patientID string) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE availability_slots
		SET is_booked = true,
		    booked_by = $2,
		    updated_at = now()
		WHERE id = $1
		  AND is_booked = false
		RETURNING `+slotColumns,
		id, patientID)

	return scanSlot(row)
}

func (r *PgRepository) MarkReleased(ctx context.Context, id uuid.UUID, patientID string) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE availability_slots
		SET is_booked = false,
		    booked_by = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND is_booked = true
		  AND booked_by = $2
		RETURNING `+slotColumns,
		id, patientID)

	return scanSlot(row)
}

func (r *PgRepository) DeleteUnbookedEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM availability_slots
		WHERE is_booked = false
		  AND end_time < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge stale slots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, slot_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.SlotID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
