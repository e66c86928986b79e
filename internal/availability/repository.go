package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrSlotNotFound = errors.New("slot not found")
	// ErrSlotConflict means the slot's booking changed while an edit was in
	// flight, or is being changed right now.
	ErrSlotConflict = errors.New("slot was changed concurrently")
)

// Repository contains all slot storage needed by the availability and
// booking services.
type Repository interface {
	Create(ctx context.Context, s Slot) (*Slot, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)

	ListByDoctorID(ctx context.Context, doctorID string) ([]Slot, error)
	ListByDoctorIDs(ctx context.Context, doctorIDs []string) ([]Slot, error)
	// ListStartingBetween returns slots with from <= start_time < to.
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]Slot, error)
	ListUnbooked(ctx context.Context) ([]Slot, error)

	// Update applies changes to the slot matching doctorID and id, but only
	// while its booked state still equals ch.PrevIsBooked and ch.PrevBookedBy.
	// Otherwise it returns ErrSlotNotFound.
	Update(ctx context.Context, doctorID string, id uuid.UUID, ch SlotChanges) (*Slot, error)
	Delete(ctx context.Context, doctorID string, id uuid.UUID) (int64, error)

	// MarkBooked flips an unbooked slot to booked by patientID. It returns
	// ErrSlotNotFound when no unbooked slot with that id exists.
	MarkBooked(ctx context.Context, id uuid.UUID, patientID string) (*Slot, error)
	// MarkReleased clears a booking held by patientID, or returns ErrSlotNotFound.
	MarkReleased(ctx context.Context, id uuid.UUID, patientID string) (*Slot, error)

	// Sweeper
	DeleteUnbookedEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
