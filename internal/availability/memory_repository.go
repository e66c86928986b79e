package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps slots in process. Conditional transitions hold the
// write lock for the whole check-and-set, mirroring the guarded UPDATEs in
// PgRepository.
type MemoryRepository struct {
	mu     sync.RWMutex
	slots  map[uuid.UUID]Slot
	order  []uuid.UUID
	events []EventLog
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		slots: make(map[uuid.UUID]Slot),
		now:   time.Now,
	}
}

func (m *MemoryRepository) Create(_ context.Context, s Slot) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := m.now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	m.slots[s.ID] = s
	m.order = append(m.order, s.ID)
	return clone(s), nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return clone(s), nil
}

func (m *MemoryRepository) filter(keep func(Slot) bool) []Slot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Slot
	for _, id := range m.order {
		s, ok := m.slots[id]
		if ok && keep(s) {
			out = append(out, *clone(s))
		}
	}
	return out
}

func (m *MemoryRepository) ListByDoctorID(_ context.Context, doctorID string) ([]Slot, error) {
	return m.filter(func(s Slot) bool { return s.DoctorID == doctorID }), nil
}

func (m *MemoryRepository) ListByDoctorIDs(_ context.Context, doctorIDs []string) ([]Slot, error) {
	want := make(map[string]struct{}, len(doctorIDs))
	for _, id := range doctorIDs {
		want[id] = struct{}{}
	}
	return m.filter(func(s Slot) bool {
		_, ok := want[s.DoctorID]
		return ok
	}), nil
}

func (m *MemoryRepository) ListStartingBetween(_ context.Context, from, to time.Time) ([]Slot, error) {
	out := m.filter(func(s Slot) bool { return !s.StartTime.Before(from) && s.StartTime.Before(to) })
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *MemoryRepository) ListUnbooked(_ context.Context) ([]Slot, error) {
	out := m.filter(func(s Slot) bool { return !s.IsBooked })
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *MemoryRepository) Update(_ context.Context, doctorID string, id uuid.UUID, ch SlotChanges) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok || s.DoctorID != doctorID {
		return nil, ErrSlotNotFound
	}
	if s.IsBooked != ch.PrevIsBooked || !sameString(s.BookedBy, ch.PrevBookedBy) {
		return nil, ErrSlotNotFound
	}
	s.Date = ch.Date
	s.StartTime = ch.StartTime
	s.EndTime = ch.EndTime
	s.IsBooked = ch.IsBooked
	s.BookedBy = copyString(ch.BookedBy)
	s.UpdatedAt = m.now().UTC()
	m.slots[id] = s
	return clone(s), nil
}

func (m *MemoryRepository) Delete(_ context.Context, doctorID string, id uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok || s.DoctorID != doctorID {
		return 0, nil
	}
	delete(m.slots, id)
	return 1, nil
}

func (m *MemoryRepository) MarkBooked(_ context.Context, id uuid.UUID, patientID string) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok || s.IsBooked {
		return nil, ErrSlotNotFound
	}
	s.IsBooked = true
	s.BookedBy = &patientID
	s.UpdatedAt = m.now().UTC()
	m.slots[id] = s
	return clone(s), nil
}

func (m *MemoryRepository) MarkReleased(_ context.Context, id uuid.UUID, patientID string) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok || !s.IsBooked || s.BookedBy == nil || *s.BookedBy != patientID {
		return nil, ErrSlotNotFound
	}
	s.IsBooked = false
	s.BookedBy = nil
	s.UpdatedAt = m.now().UTC()
	m.slots[id] = s
	return clone(s), nil
}

func (m *MemoryRepository) DeleteUnbookedEndedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.slots {
		if !s.IsBooked && s.EndTime.Before(cutoff) {
			delete(m.slots, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the recorded event log.
func (m *MemoryRepository) Events() []EventLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]EventLog(nil), m.events...)
}

func clone(s Slot) *Slot {
	s.BookedBy = copyString(s.BookedBy)
	return &s
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
