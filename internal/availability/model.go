package availability

import (
	"time"

	"github.com/google/uuid"
)

// Slot is one bookable interval owned by a doctor. All times are UTC.
type Slot struct {
	ID        uuid.UUID
	DoctorID  string
	Date      time.Time // midnight UTC of the slot's day
	StartTime time.Time
	EndTime   time.Time
	IsBooked  bool
	BookedBy  *string // non-nil iff IsBooked
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectiveStart combines the slot's date with the hour and minute of its
// start time, in UTC.
func (s Slot) EffectiveStart() time.Time {
	st := s.StartTime.UTC()
	return time.Date(s.Date.Year(), s.Date.Month(), s.Date.Day(), st.Hour(), st.Minute(), 0, 0, time.UTC)
}

// NewSlot carries raw "set availability" input before parsing.
type NewSlot struct {
	DoctorID  string
	Date      string
	StartTime string
	EndTime   string
}

// SlotUpdate carries raw slot edit input. Nil fields keep their stored value.
type SlotUpdate struct {
	StartTime string
	EndTime   string
	IsBooked  *bool
	BookedBy  *string
}

// SlotChanges is a validated edit ready for storage. PrevIsBooked and
// PrevBookedBy hold the booked state the edit was computed from.
type SlotChanges struct {
	Date      time.Time
	StartTime time.Time
	EndTime   time.Time
	IsBooked  bool
	BookedBy  *string

	PrevIsBooked bool
	PrevBookedBy *string
}

type EventLog struct {
	ID        int64
	EventType string
	SlotID    *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}
