package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	if err := row.Scan(&c.ID, &c.Name, &c.Address); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (d *PgDirectory) DoctorByID(ctx context.Context, doctorID string) (*Doctor, error) {
	var doc Doctor
	err := d.pool.QueryRow(ctx, `
		SELECT doctor_id, name, clinic_id
		FROM doctors
		WHERE doctor_id = $1
	`, doctorID).Scan(&doc.DoctorID, &doc.Name, &doc.ClinicID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("load doctor %s: %w", doctorID, err)
	}
	return &doc, nil
}

func (d *PgDirectory) ClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, name, address
		FROM clinics
		WHERE id = $1
	`, id)
	return scanClinic(row)
}

// ClinicByAddress returns the oldest clinic whose address contains partial,
// compared case-insensitively. LIKE wildcards in partial match literally.
func (d *PgDirectory) ClinicByAddress(ctx context.Context, partial string) (*Clinic, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, name, address
		FROM clinics
		WHERE address ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY created_at, id
		LIMIT 1
	`, escapeLike(partial))
	return scanClinic(row)
}

func (d *PgDirectory) DoctorIDsByClinic(ctx context.Context, clinicID uuid.UUID) ([]string, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT doctor_id
		FROM doctors
		WHERE clinic_id = $1
	`, clinicID)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect doctor ids: %w", err)
	}
	return ids, nil
}

func (d *PgDirectory) ProfileByPatientID(ctx context.Context, patientID string) (*Profile, error) {
	var p Profile
	var preferred *string
	err := d.pool.QueryRow(ctx, `
		SELECT id, preferred_doctor_id
		FROM patients
		WHERE id = $1
	`, patientID).Scan(&p.PatientID, &preferred)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("load patient %s: %w", patientID, err)
	}
	if preferred != nil {
		p.PreferredDoctorID = *preferred
	}
	return &p, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
