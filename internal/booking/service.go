package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/directory"
	"github.com/hackgods/clinic-availability/internal/geo"
	"github.com/hackgods/clinic-availability/internal/matching"
	"github.com/hackgods/clinic-availability/internal/metrics"
	redisclient "github.com/hackgods/clinic-availability/internal/redis"
)

const (
	EventSlotBooked   = "SLOT_BOOKED"
	EventSlotReleased = "SLOT_RELEASED"
)

var (
	ErrSlotAlreadyBooked  = errors.New("slot is already booked")
	ErrSlotBeingBooked    = errors.New("slot is currently being booked, please retry")
	ErrNotBookedByPatient = errors.New("slot is not booked by this patient")
	ErrNoSlotAvailable    = errors.New("no bookable slot found")
	ErrPatientRequired    = errors.New("patient id is required")
)

type Service struct {
	repo     availability.Repository
	locker   redisclient.Locker
	engine   *matching.Engine
	profiles directory.ProfileLookup
	attempts int
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewService wires the booking transitions. attempts bounds how many matches
// AutoBook tries when it keeps losing races; values below 1 mean 1.
func NewService(
	repo availability.Repository,
	locker redisclient.Locker,
	engine *matching.Engine,
	profiles directory.ProfileLookup,
	attempts int,
	m *metrics.Metrics,
	log zerolog.Logger,
) *Service {
	if attempts < 1 {
		attempts = 1
	}
	return &Service{
		repo:     repo,
		locker:   locker,
		engine:   engine,
		profiles: profiles,
		attempts: attempts,
		metrics:  m,
		log:      log.With().Str("component", "booking").Logger(),
	}
}

// Book marks an unbooked slot as booked by patientID. Concurrent callers are
// serialized by a per slot lock and the store's conditional update; exactly
// one of them wins.
func (s *Service) Book(ctx context.Context, slotID uuid.UUID, patientID string) (*availability.Slot, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrPatientRequired
	}

	var booked *availability.Slot
	err := s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		slot, err := s.repo.MarkBooked(lockCtx, slotID, patientID)
		if errors.Is(err, availability.ErrSlotNotFound) {
			// tell a missing slot apart from one somebody else holds
			if _, getErr := s.repo.GetByID(lockCtx, slotID); getErr != nil {
				return getErr
			}
			return ErrSlotAlreadyBooked
		}
		if err != nil {
			return fmt.Errorf("mark slot booked: %w", err)
		}
		booked = slot

		s.logEvent(lockCtx, slotID, EventSlotBooked, map[string]any{
			"patient_id": patientID,
			"doctor_id":  slot.DoctorID,
			"start_time": slot.StartTime,
		})
		return nil
	})

	if err != nil {
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			s.metrics.Booking("contended")
			return nil, ErrSlotBeingBooked
		case errors.Is(err, ErrSlotAlreadyBooked):
			s.metrics.Booking("already_booked")
			return nil, err
		case errors.Is(err, availability.ErrSlotNotFound):
			s.metrics.Booking("not_found")
			return nil, err
		}
		s.metrics.Booking("error")
		return nil, err
	}

	s.metrics.Booking("booked")
	s.log.Info().
		Str("slot_id", slotID.String()).
		Str("patient_id", patientID).
		Msg("slot booked")
	return booked, nil
}

// Cancel releases a booking held by patientID.
func (s *Service) Cancel(ctx context.Context, slotID uuid.UUID, patientID string) (*availability.Slot, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrPatientRequired
	}

	slot, err := s.repo.MarkReleased(ctx, slotID, patientID)
	if errors.Is(err, availability.ErrSlotNotFound) {
		if _, getErr := s.repo.GetByID(ctx, slotID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrNotBookedByPatient
	}
	if err != nil {
		return nil, fmt.Errorf("release slot: %w", err)
	}

	s.metrics.Booking("released")
	s.logEvent(ctx, slotID, EventSlotReleased, map[string]any{
		"patient_id": patientID,
	})
	return slot, nil
}

// AutoBook matches the best unbooked slot for the patient and books it. A
// slot lost to a concurrent booking is excluded and matching runs again.
func (s *Service) AutoBook(ctx context.Context, patientID string, location geo.Coordinate, now time.Time) (*matching.Candidate, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrPatientRequired
	}

	profile, err := s.profile(ctx, patientID)
	if err != nil {
		return nil, err
	}

	lost := make(map[uuid.UUID]struct{})
	for attempt := 1; attempt <= s.attempts; attempt++ {
		slots, err := s.repo.ListUnbooked(ctx)
		if err != nil {
			return nil, fmt.Errorf("list unbooked slots: %w", err)
		}
		open := slots[:0]
		for _, sl := range slots {
			if _, skip := lost[sl.ID]; !skip {
				open = append(open, sl)
			}
		}

		best, err := s.engine.FindBestSlot(ctx, open, matching.Request{
			Location: &location,
			Profile:  profile,
			Now:      now,
		})
		if err != nil {
			return nil, err
		}
		if best == nil {
			return nil, ErrNoSlotAvailable
		}

		booked, err := s.Book(ctx, best.Slot.ID, patientID)
		switch {
		case err == nil:
			best.Slot = *booked
			return best, nil
		case errors.Is(err, ErrSlotAlreadyBooked),
			errors.Is(err, ErrSlotBeingBooked),
			errors.Is(err, availability.ErrSlotNotFound):
			s.log.Debug().
				Int("attempt", attempt).
				Str("slot_id", best.Slot.ID.String()).
				Err(err).
				Msg("lost slot, matching again")
			lost[best.Slot.ID] = struct{}{}
		default:
			return nil, err
		}
	}

	return nil, ErrNoSlotAvailable
}

// profile treats an unknown patient as one without a preferred doctor.
func (s *Service) profile(ctx context.Context, patientID string) (directory.Profile, error) {
	if s.profiles == nil {
		return directory.Profile{PatientID: patientID}, nil
	}
	p, err := s.profiles.ProfileByPatientID(ctx, patientID)
	if errors.Is(err, directory.ErrPatientNotFound) {
		return directory.Profile{PatientID: patientID}, nil
	}
	if err != nil {
		return directory.Profile{}, fmt.Errorf("load patient profile: %w", err)
	}
	return *p, nil
}

func (s *Service) logEvent(ctx context.Context, slotID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	id := slotID
	ev := availability.EventLog{
		EventType: eventType,
		SlotID:    &id,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event_type", eventType).
			Str("slot_id", slotID.String()).
			Msg("failed to insert event log")
	}
}
