package directory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryDirectory is an in-process directory used by tests and local tools.
type MemoryDirectory struct {
	mu       sync.RWMutex
	clinics  []Clinic // insertion order is the address match order
	doctors  map[string]Doctor
	profiles map[string]Profile
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		doctors:  make(map[string]Doctor),
		profiles: make(map[string]Profile),
	}
}

func (m *MemoryDirectory) AddClinic(c Clinic) Clinic {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.clinics = append(m.clinics, c)
	return c
}

func (m *MemoryDirectory) AddDoctor(d Doctor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors[d.DoctorID] = d
}

func (m *MemoryDirectory) AddProfile(p Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.PatientID] = p
}

func (m *MemoryDirectory) DoctorByID(_ context.Context, doctorID string) (*Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.doctors[doctorID]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (m *MemoryDirectory) ClinicByID(_ context.Context, id uuid.UUID) (*Clinic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clinics {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, ErrClinicNotFound
}

func (m *MemoryDirectory) ClinicByAddress(_ context.Context, partial string) (*Clinic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(partial)
	for _, c := range m.clinics {
		if strings.Contains(strings.ToLower(c.Address), needle) {
			c := c
			return &c, nil
		}
	}
	return nil, ErrClinicNotFound
}

func (m *MemoryDirectory) DoctorIDsByClinic(_ context.Context, clinicID uuid.UUID) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for _, d := range m.doctors {
		if d.ClinicID != nil && *d.ClinicID == clinicID {
			ids = append(ids, d.DoctorID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryDirectory) ProfileByPatientID(_ context.Context, patientID string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[patientID]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}
