package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-availability/internal/directory"
	"github.com/hackgods/clinic-availability/internal/metrics"
	redisclient "github.com/hackgods/clinic-availability/internal/redis"
)

type Service struct {
	repo    Repository
	clinics directory.ClinicFinder
	locker  redisclient.Locker
	loc     *time.Location
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewService builds the availability service. loc is the clinic zone: local
// date/time input is read in it and query dates are days in it; nil means
// UTC. locker guards slot edits against concurrent bookings and may be nil
// for tools that never race the booking path.
func NewService(repo Repository, clinics directory.ClinicFinder, locker redisclient.Locker, loc *time.Location, m *metrics.Metrics, log zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:    repo,
		clinics: clinics,
		locker:  locker,
		loc:     loc,
		metrics: m,
		log:     log.With().Str("component", "availability").Logger(),
	}
}

// SetAvailability creates an unbooked slot. The start must fall on date in
// the clinic zone. The stored date is the UTC day of the normalized start
// time, so EffectiveStart always equals StartTime.
func (s *Service) SetAvailability(ctx context.Context, in NewSlot) (*Slot, error) {
	doctorID := strings.TrimSpace(in.DoctorID)
	if doctorID == "" {
		return nil, fmt.Errorf("%w: doctorID is required", ErrValidation)
	}
	if _, err := ParseDate(in.Date); err != nil {
		return nil, err
	}
	day := strings.TrimSpace(in.Date)

	start, err := ParseInstant("startTime", in.StartTime, day, s.loc)
	if err != nil {
		return nil, err
	}
	end, err := ParseInstant("endTime", in.EndTime, day, s.loc)
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: startTime must be before endTime", ErrValidation)
	}
	if got := localDay(start, s.loc); got != day {
		return nil, fmt.Errorf("%w: startTime falls on %s, not on date %s", ErrValidation, got, day)
	}

	created, err := s.repo.Create(ctx, Slot{
		DoctorID:  doctorID,
		Date:      dayOf(start),
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}

	s.log.Info().
		Str("slot_id", created.ID.String()).
		Str("doctor_id", doctorID).
		Time("start_time", start).
		Msg("availability set")
	return created, nil
}

func (s *Service) GetByDoctorID(ctx context.Context, doctorID string) ([]Slot, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return nil, fmt.Errorf("%w: doctorID is required", ErrValidation)
	}
	slots, err := s.repo.ListByDoctorID(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list slots by doctor: %w", err)
	}
	return slots, nil
}

// GetByDate returns the slots starting on date in the clinic zone.
func (s *Service) GetByDate(ctx context.Context, date string) ([]Slot, error) {
	d, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	from, to := localDayBounds(d, s.loc)
	slots, err := s.repo.ListStartingBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list slots by date: %w", err)
	}
	return slots, nil
}

// GetByAddress returns every slot of the doctors working at the first clinic
// whose address contains partial, case-insensitively.
func (s *Service) GetByAddress(ctx context.Context, partial string) ([]Slot, error) {
	partial = strings.TrimSpace(partial)
	if partial == "" {
		return nil, fmt.Errorf("%w: address is required", ErrValidation)
	}

	clinic, err := s.clinics.ClinicByAddress(ctx, partial)
	if err != nil {
		return nil, fmt.Errorf("find clinic by address %q: %w", partial, err)
	}

	doctorIDs, err := s.clinics.DoctorIDsByClinic(ctx, clinic.ID)
	if err != nil {
		return nil, fmt.Errorf("list clinic doctors: %w", err)
	}
	if len(doctorIDs) == 0 {
		return []Slot{}, nil
	}

	slots, err := s.repo.ListByDoctorIDs(ctx, doctorIDs)
	if err != nil {
		return nil, fmt.Errorf("list slots by clinic: %w", err)
	}
	return slots, nil
}

func (s *Service) GetAllUnbooked(ctx context.Context) ([]Slot, error) {
	slots, err := s.repo.ListUnbooked(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unbooked slots: %w", err)
	}
	return slots, nil
}

// UpdateSlot edits a slot's times and booked state. Both timestamps are
// required; nothing is written unless every field validates. The write only
// lands if the booked state is still the one the edit was computed from,
// otherwise ErrSlotConflict is returned.
func (s *Service) UpdateSlot(ctx context.Context, doctorID string, slotID uuid.UUID, upd SlotUpdate) (*Slot, error) {
	start, err := ParseInstant("startTime", upd.StartTime, "", s.loc)
	if err != nil {
		return nil, err
	}
	end, err := ParseInstant("endTime", upd.EndTime, "", s.loc)
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: startTime must be before endTime", ErrValidation)
	}

	if s.locker == nil {
		return s.updateSlot(ctx, doctorID, slotID, upd, start, end)
	}

	var updated *Slot
	err = s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		var err error
		updated, err = s.updateSlot(lockCtx, doctorID, slotID, upd, start, end)
		return err
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return nil, fmt.Errorf("%w: slot is being booked, retry", ErrSlotConflict)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) updateSlot(ctx context.Context, doctorID string, slotID uuid.UUID, upd SlotUpdate, start, end time.Time) (*Slot, error) {
	current, err := s.repo.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if current.DoctorID != doctorID {
		return nil, ErrSlotNotFound
	}

	isBooked := current.IsBooked
	bookedBy := current.BookedBy
	if upd.IsBooked != nil {
		isBooked = *upd.IsBooked
		if !isBooked {
			bookedBy = nil
		}
	}
	if upd.BookedBy != nil {
		bookedBy = upd.BookedBy
		if strings.TrimSpace(*bookedBy) == "" {
			bookedBy = nil
		}
	}
	if isBooked != (bookedBy != nil) {
		return nil, fmt.Errorf("%w: isBooked and bookedBy must be set together", ErrValidation)
	}

	updated, err := s.repo.Update(ctx, doctorID, slotID, SlotChanges{
		Date:         dayOf(start),
		StartTime:    start,
		EndTime:      end,
		IsBooked:     isBooked,
		BookedBy:     bookedBy,
		PrevIsBooked: current.IsBooked,
		PrevBookedBy: current.BookedBy,
	})
	if errors.Is(err, ErrSlotNotFound) {
		// the slot was there a moment ago, so its booking moved under us
		if _, getErr := s.repo.GetByID(ctx, slotID); getErr == nil {
			s.log.Warn().Str("slot_id", slotID.String()).Msg("slot edit lost to a concurrent booking change")
			return nil, ErrSlotConflict
		}
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) DeleteSlot(ctx context.Context, doctorID string, slotID uuid.UUID) error {
	n, err := s.repo.Delete(ctx, doctorID, slotID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSlotNotFound
	}
	s.log.Info().Str("slot_id", slotID.String()).Str("doctor_id", doctorID).Msg("slot deleted")
	return nil
}

// PurgeStale deletes unbooked slots that ended more than retention before now.
func (s *Service) PurgeStale(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	n, err := s.repo.DeleteUnbookedEndedBefore(ctx, now.UTC().Add(-retention))
	if err != nil {
		return 0, err
	}
	s.metrics.Purged(n)
	return n, nil
}
