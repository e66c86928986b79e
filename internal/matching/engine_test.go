package matching

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/directory"
	"github.com/hackgods/clinic-availability/internal/geo"
)

var (
	testNow   = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	requester = geo.Coordinate{Lat: 0, Lng: 0}
)

// kmNorth returns a point d kilometres due north of the requester.
func kmNorth(d float64) geo.Coordinate {
	return geo.Coordinate{Lat: d / (geo.EarthRadiusKm * math.Pi / 180), Lng: 0}
}

type fixture struct {
	dir       *directory.MemoryDirectory
	mu        sync.Mutex
	locations map[string]geo.Coordinate
	failing   map[string]error
	calls     int
}

func newFixture() *fixture {
	return &fixture{
		dir:       directory.NewMemoryDirectory(),
		locations: make(map[string]geo.Coordinate),
		failing:   make(map[string]error),
	}
}

// addDoctor registers a doctor at a clinic the given distance from the requester.
func (f *fixture) addDoctor(doctorID, address string, km float64) {
	c := f.dir.AddClinic(directory.Clinic{Name: address, Address: address})
	f.dir.AddDoctor(directory.Doctor{DoctorID: doctorID, ClinicID: &c.ID})
	f.locations[address] = kmNorth(km)
}

func (f *fixture) Geocode(ctx context.Context, address string) (geo.Coordinate, error) {
	f.mu.Lock()
	f.calls++
	err, failing := f.failing[address]
	c, ok := f.locations[address]
	f.mu.Unlock()

	if failing {
		return geo.Coordinate{}, err
	}
	if !ok {
		return geo.Coordinate{}, geo.ErrGeocode
	}
	return c, nil
}

func (f *fixture) engine(concurrency int) *Engine {
	return NewEngine(f.dir, f, Options{Concurrency: concurrency, GeocodeTimeout: 50 * time.Millisecond}, nil, zerolog.Nop())
}

func slotIn(doctorID string, after time.Duration) availability.Slot {
	start := testNow.Add(after)
	return availability.Slot{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		Date:      time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		StartTime: start,
		EndTime:   start.Add(15 * time.Minute),
	}
}

func request(preferred string) Request {
	loc := requester
	return Request{
		Location: &loc,
		Profile:  directory.Profile{PatientID: "P1", PreferredDoctorID: preferred},
		Now:      testNow,
	}
}

func TestFindBestSlot_CloserSlotWins(t *testing.T) {
	f := newFixture()
	f.addDoctor("D1", "5 km street", 5)
	f.addDoctor("D2", "50 km street", 50)
	s1 := slotIn("D1", 2*time.Hour)
	s2 := slotIn("D2", time.Hour)

	best, err := f.engine(1).FindBestSlot(context.Background(), []availability.Slot{s1, s2}, request(""))
	require.NoError(t, err)
	require.NotNil(t, best)

	assert.Equal(t, s1.ID, best.Slot.ID)
	assert.InDelta(t, 5.0, best.DistanceKm, 0.001)
	assert.InDelta(t, 7.0, best.Score, 0.001)
}

func TestFindBestSlot_PreferredDoctorBonusIsNotUnbounded(t *testing.T) {
	// D2's slot scores 1 + 50 - 10 = 41, still worse than D1's 7.
	f := newFixture()
	f.addDoctor("D1", "5 km street", 5)
	f.addDoctor("D2", "50 km street", 50)
	s1 := slotIn("D1", 2*time.Hour)
	s2 := slotIn("D2", time.Hour)

	best, err := f.engine(1).FindBestSlot(context.Background(), []availability.Slot{s1, s2}, request("D2"))
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, s1.ID, best.Slot.ID)
}

func TestFindBestSlot_PreferredDoctorWinsWithinBonus(t *testing.T) {
	f := newFixture()
	f.addDoctor("D1", "Clinic A", 5)
	f.addDoctor("D2", "Clinic B", 12)
	other := slotIn("D1", 2*time.Hour)     // 2 + 5 = 7
	preferred := slotIn("D2", 3*time.Hour) // 3 + 12 - 10 = 5

	best, err := f.engine(1).FindBestSlot(context.Background(), []availability.Slot{other, preferred}, request("D2"))
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, preferred.ID, best.Slot.ID)
	assert.InDelta(t, 5.0, best.Score, 0.001)

	// identical slots except for the doctor
	f.addDoctor("D3", "Clinic A twin", 5)
	same := slotIn("D3", 2*time.Hour)
	best, err = f.engine(1).FindBestSlot(context.Background(), []availability.Slot{other, same}, request("D3"))
	require.NoError(t, err)
	assert.Equal(t, same.ID, best.Slot.ID)
}

func TestFindBestSlot_GeocoderNotConfigured(t *testing.T) {
	f := newFixture()
	f.addDoctor("D1", "5 km street", 5)
	unconfigured := geo.GeocoderFunc(func(ctx context.Context, address string) (geo.Coordinate, error) {
		return geo.Coordinate{}, geo.ErrNotConfigured
	})
	e := NewEngine(f.dir, unconfigured, Options{Concurrency: 4}, nil, zerolog.Nop())

	best, err := e.FindBestSlot(context.Background(), []availability.Slot{slotIn("D1", time.Hour), slotIn("D1", 2*time.Hour)}, request(""))
	assert.NoError(t, err)
	assert.Nil(t, best)
}

func TestFindBestSlot_EmptyInput(t *testing.T) {
	f := newFixture()
	best, err := f.engine(2).FindBestSlot(context.Background(), nil, request(""))
	assert.NoError(t, err)
	assert.Nil(t, best)
}

func TestFindBestSlot_OneGeocodeFailureDoesNotAbort(t *testing.T) {
	f := newFixture()
	f.addDoctor("D1", "Broken address", 1)
	f.addDoctor("D2", "Clinic B", 20)
	f.addDoctor("D3", "Clinic C", 10)
	f.failing["Broken address"] = geo.ErrGeocode

	best, err := f.engine(3).FindBestSlot(context.Background(), []availability.Slot{
		slotIn("D1", time.Hour), // would win if it could be geocoded
		slotIn("D2", time.Hour),
		slotIn("D3", time.Hour),
	}, request(""))
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "D3", best.Slot.DoctorID)
}

func TestFindBestSlot_HangingGeocodeIsSkipped(t *testing.T) {
	f := newFixture()
	f.addDoctor("D1", "Slow clinic", 1)
	f.addDoctor("D2", "Clinic B", 20)

	hanging := geo.GeocoderFunc(func(ctx context.Context, address string) (geo.Coordinate, error) {
		if address == "Slow clinic" {
			<-ctx.Done()
			return geo.Coordinate{}, ctx.Err()
		}
		return f.Geocode(ctx, address)
	})
	e := NewEngine(f.dir, hanging, Options{Concurrency: 2, GeocodeTimeout: 20 * time.Millisecond}, nil, zerolog.Nop())

	best, err := e.FindBestSlot(context.Background(), []availability.Slot{slotIn("D1", time.Hour), slotIn("D2", time.Hour)}, request(""))
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "D2", best.Slot.DoctorID)
}

func TestFindBestSlot_SkipsPastSlots(t *testing.T) {
	f := newFixture()
	f.addDoctor("D1", "Next door", 0)
	f.addDoctor("D2", "Clinic B", 30)
	past := slotIn("D1", -time.Minute)
	future := slotIn("D2", 5*time.Hour)

	best, err := f.engine(1).FindBestSlot(context.Background(), []availability.Slot{past, future}, request(""))
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, future.ID, best.Slot.ID)

	best, err = f.engine(1).FindBestSlot(context.Background(), []availability.Slot{past}, request(""))
	require.NoError(t, err)
	assert.Nil(t, best)
}

func TestFindBestSlot_SlotStartingNowIsOffered(t *testing.T) {
	f := newFixture()
	f.addDoctor("D1", "Next door", 0)

	best, err := f.engine(1).FindBestSlot(context.Background(), []availability.Slot{slotIn("D1", 0)}, request(""))
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, 0.0, best.Score)
}

func TestFindBestSlot_MissingDirectoryLinksAreSkipped(t *testing.T) {
	f := newFixture()
	f.addDoctor("D1", "Clinic A", 40)
	f.dir.AddDoctor(directory.Doctor{DoctorID: "NOCLINIC"})
	ghost := uuid.New()
	f.dir.AddDoctor(directory.Doctor{DoctorID: "GHOSTCLINIC", ClinicID: &ghost})
	empty := f.dir.AddClinic(directory.Clinic{Name: "No address"})
	f.dir.AddDoctor(directory.Doctor{DoctorID: "NOADDRESS", ClinicID: &empty.ID})

	best, err := f.engine(2).FindBestSlot(context.Background(), []availability.Slot{
		slotIn("UNKNOWN", time.Minute),
		slotIn("NOCLINIC", time.Minute),
		slotIn("GHOSTCLINIC", time.Minute),
		slotIn("NOADDRESS", time.Minute),
		slotIn("D1", time.Hour),
	}, request(""))
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "D1", best.Slot.DoctorID)
}

func TestFindBestSlot_TieKeepsFirstSeen(t *testing.T) {
	f := newFixture()
	f.addDoctor("D1", "Clinic A", 5)
	f.addDoctor("D2", "Clinic B", 5)
	first := slotIn("D1", time.Hour)
	second := slotIn("D2", time.Hour)

	for i := 0; i < 20; i++ {
		best, err := f.engine(4).FindBestSlot(context.Background(), []availability.Slot{first, second}, request(""))
		require.NoError(t, err)
		assert.Equal(t, first.ID, best.Slot.ID)
	}
}

func TestFindBestSlot_DeterministicAndMinimal(t *testing.T) {
	f := newFixture()
	var slots []availability.Slot
	for i := 0; i < 12; i++ {
		id := string(rune('A' + i))
		f.addDoctor(id, "Clinic "+id, float64((i*7)%13+1))
		slots = append(slots, slotIn(id, time.Duration((i*5)%9+1)*time.Hour))
	}
	req := request("E")

	first, err := f.engine(1).FindBestSlot(context.Background(), slots, req)
	require.NoError(t, err)
	require.NotNil(t, first)

	for _, workers := range []int{1, 3, 8} {
		got, err := f.engine(workers).FindBestSlot(context.Background(), slots, req)
		require.NoError(t, err)
		assert.Equal(t, first.Slot.ID, got.Slot.ID)
		assert.Equal(t, first.Score, got.Score)
	}

	e := f.engine(1)
	for _, s := range slots {
		c := e.evaluate(context.Background(), s, req)
		require.NotNil(t, c)
		assert.LessOrEqual(t, first.Score, c.Score)
	}
}

func TestFindBestSlot_InvalidRequest(t *testing.T) {
	f := newFixture()
	e := f.engine(1)
	slots := []availability.Slot{slotIn("D1", time.Hour)}

	req := request("")
	req.Location = nil
	_, err := e.FindBestSlot(context.Background(), slots, req)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	bad := geo.Coordinate{Lat: 120, Lng: 0}
	req = request("")
	req.Location = &bad
	_, err = e.FindBestSlot(context.Background(), slots, req)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	req = request("")
	req.Now = time.Time{}
	_, err = e.FindBestSlot(context.Background(), slots, req)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestFindBestSlot_CancelledContext(t *testing.T) {
	f := newFixture()
	f.addDoctor("D1", "Clinic A", 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine(1).FindBestSlot(ctx, []availability.Slot{slotIn("D1", time.Hour)}, request(""))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindBestSlot_DoesNotMutateInput(t *testing.T) {
	f := newFixture()
	f.addDoctor("D1", "Clinic A", 5)
	slots := []availability.Slot{slotIn("D1", time.Hour)}
	before := slots[0]

	_, err := f.engine(1).FindBestSlot(context.Background(), slots, request(""))
	require.NoError(t, err)
	assert.Equal(t, before, slots[0])
}
