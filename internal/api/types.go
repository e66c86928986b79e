package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/matching"
)

type SetAvailabilityRequest struct {
	DoctorID  string `json:"doctorID"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type UpdateSlotRequest struct {
	StartTime string  `json:"startTime"`
	EndTime   string  `json:"endTime"`
	IsBooked  *bool   `json:"isBooked,omitempty"`
	BookedBy  *string `json:"bookedBy,omitempty"`
}

// LocationRequest is the body of /match and /autobook.
type LocationRequest struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	PatientID string   `json:"patient_id,omitempty"`
}

type PatientRequest struct {
	PatientID string `json:"patient_id"`
}

type SlotResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  string    `json:"doctorID"`
	Date      string    `json:"date"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	IsBooked  bool      `json:"isBooked"`
	BookedBy  *string   `json:"bookedBy"`
}

type MatchResponse struct {
	Slot       SlotResponse `json:"slot"`
	DistanceKm float64      `json:"distance_km"`
	Score      float64      `json:"score"`
}

type GeocodeResponse struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toSlotResponse(s availability.Slot) SlotResponse {
	return SlotResponse{
		ID:        s.ID,
		DoctorID:  s.DoctorID,
		Date:      s.Date.Format(availability.DateLayout),
		StartTime: s.StartTime.UTC(),
		EndTime:   s.EndTime.UTC(),
		IsBooked:  s.IsBooked,
		BookedBy:  s.BookedBy,
	}
}

func toSlotResponses(slots []availability.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResponse(s))
	}
	return out
}

func toMatchResponse(c *matching.Candidate) MatchResponse {
	return MatchResponse{
		Slot:       toSlotResponse(c.Slot),
		DistanceKm: c.DistanceKm,
		Score:      c.Score,
	}
}
