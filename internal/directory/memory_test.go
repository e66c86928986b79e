package directory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDirectory_Chain(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()
	c := d.AddClinic(Clinic{Name: "Park Road Medical", Address: "50 Park Road, Auckland 1023"})
	d.AddDoctor(Doctor{DoctorID: "D1", Name: "Dr. Ngata", ClinicID: &c.ID})
	d.AddDoctor(Doctor{DoctorID: "D2", Name: "Dr. Lee", ClinicID: &c.ID})
	d.AddDoctor(Doctor{DoctorID: "D3", Name: "Dr. Orphan"})

	doc, err := d.DoctorByID(ctx, "D1")
	require.NoError(t, err)
	clinic, err := d.ClinicByID(ctx, *doc.ClinicID)
	require.NoError(t, err)
	assert.Equal(t, "50 Park Road, Auckland 1023", clinic.Address)

	found, err := d.ClinicByAddress(ctx, "auckland")
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)

	ids, err := d.DoctorIDsByClinic(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"D1", "D2"}, ids)
}

func TestMemoryDirectory_NotFound(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()

	_, err := d.DoctorByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrDoctorNotFound)
	_, err = d.ClinicByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrClinicNotFound)
	_, err = d.ClinicByAddress(ctx, "Wellington")
	assert.ErrorIs(t, err, ErrClinicNotFound)
	_, err = d.ProfileByPatientID(ctx, "p1")
	assert.ErrorIs(t, err, ErrPatientNotFound)
}
