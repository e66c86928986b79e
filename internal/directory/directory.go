package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrClinicNotFound  = errors.New("clinic not found")
	ErrPatientNotFound = errors.New("patient not found")
)

type Doctor struct {
	DoctorID string     `json:"doctor_id"`
	Name     string     `json:"name"`
	ClinicID *uuid.UUID `json:"clinic_id,omitempty"`
}

type Clinic struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Address string    `json:"address"`
}

// Profile is the part of a patient record the matcher cares about.
type Profile struct {
	PatientID         string `json:"patient_id"`
	PreferredDoctorID string `json:"preferred_doctor_id,omitempty"`
}

// ProviderDirectory resolves the doctor -> clinic chain behind a slot.
type ProviderDirectory interface {
	DoctorByID(ctx context.Context, doctorID string) (*Doctor, error)
	ClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
}

// ClinicFinder backs address based slot lookups.
type ClinicFinder interface {
	ClinicByAddress(ctx context.Context, partial string) (*Clinic, error)
	DoctorIDsByClinic(ctx context.Context, clinicID uuid.UUID) ([]string, error)
}

type ProfileLookup interface {
	ProfileByPatientID(ctx context.Context, patientID string) (*Profile, error)
}
