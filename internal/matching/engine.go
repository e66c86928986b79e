package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/directory"
	"github.com/hackgods/clinic-availability/internal/geo"
	"github.com/hackgods/clinic-availability/internal/metrics"
)

// PreferredDoctorBonus is added to the score of slots owned by the
// requester's preferred doctor. Lower scores win.
const PreferredDoctorBonus = -10.0

var ErrInvalidRequest = errors.New("invalid match request")

// Candidate is a slot that survived a matching run together with the values
// it was ranked by.
type Candidate struct {
	Slot       availability.Slot
	DistanceKm float64
	Score      float64
}

// Request is everything one matching run depends on besides the slots.
type Request struct {
	Location *geo.Coordinate
	Profile  directory.Profile
	Now      time.Time
}

// Options tunes how a matching run fans out over candidates.
type Options struct {
	Concurrency    int           // candidates evaluated in parallel, 0 means 1
	GeocodeTimeout time.Duration // per-candidate bound, 0 means 3s
}

// Engine ranks candidate slots by
//
//	score = hoursUntilStart + distanceKm + (preferred doctor ? -10 : 0)
//
// and returns the lowest. Hours and kilometres are added without weighting:
// an hour sooner counts the same as a kilometre closer. The formula is a
// heuristic kept stable for compatibility; changing the weights changes which
// slot patients are offered.
type Engine struct {
	providers      directory.ProviderDirectory
	geocoder       geo.Geocoder
	concurrency    int
	geocodeTimeout time.Duration
	metrics        *metrics.Metrics
	log            zerolog.Logger
}

// NewEngine builds an engine. Zero Options fields fall back to their defaults.
func NewEngine(providers directory.ProviderDirectory, geocoder geo.Geocoder, opts Options, m *metrics.Metrics, log zerolog.Logger) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.GeocodeTimeout <= 0 {
		opts.GeocodeTimeout = 3 * time.Second
	}
	return &Engine{
		providers:      providers,
		geocoder:       geocoder,
		concurrency:    opts.Concurrency,
		geocodeTimeout: opts.GeocodeTimeout,
		metrics:        m,
		log:            log.With().Str("component", "matching").Logger(),
	}
}

// FindBestSlot returns the lowest scoring slot, or nil when every candidate
// was skipped. Per-candidate lookup and geocoding failures only drop that
// candidate. Equal scores keep the earlier slot in input order.
func (e *Engine) FindBestSlot(ctx context.Context, slots []availability.Slot, req Request) (*Candidate, error) {
	if req.Location == nil {
		return nil, fmt.Errorf("%w: requester location is required", ErrInvalidRequest)
	}
	if err := req.Location.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Now.IsZero() {
		return nil, fmt.Errorf("%w: current time is required", ErrInvalidRequest)
	}

	start := time.Now()
	results := make([]*Candidate, len(slots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range slots {
		i := i
		g.Go(func() error {
			results[i] = e.evaluate(gctx, slots[i], req)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		e.metrics.MatchRun("cancelled", time.Since(start).Seconds())
		return nil, err
	}

	var best *Candidate
	survivors := 0
	for _, c := range results {
		if c == nil {
			continue
		}
		survivors++
		if best == nil || c.Score < best.Score {
			best = c
		}
	}

	outcome := "matched"
	if best == nil {
		outcome = "no_candidate"
	}
	e.metrics.MatchRun(outcome, time.Since(start).Seconds())

	ev := e.log.Info().
		Int("candidates", len(slots)).
		Int("survivors", survivors).
		Dur("took", time.Since(start))
	if best != nil {
		ev = ev.Str("slot_id", best.Slot.ID.String()).
			Str("doctor_id", best.Slot.DoctorID).
			Float64("score", best.Score).
			Float64("distance_km", best.DistanceKm)
	}
	ev.Msg("match run complete")

	return best, nil
}

func (e *Engine) evaluate(ctx context.Context, slot availability.Slot, req Request) *Candidate {
	log := e.log.With().
		Str("slot_id", slot.ID.String()).
		Str("doctor_id", slot.DoctorID).
		Logger()

	startsAt := slot.EffectiveStart()
	if startsAt.Before(req.Now) {
		e.skip(log.Debug(), "past", nil)
		return nil
	}

	doctor, err := e.providers.DoctorByID(ctx, slot.DoctorID)
	if err != nil {
		e.skip(log.Warn(), "doctor_lookup", err)
		return nil
	}
	if doctor.ClinicID == nil {
		e.skip(log.Warn(), "doctor_without_clinic", nil)
		return nil
	}

	clinic, err := e.providers.ClinicByID(ctx, *doctor.ClinicID)
	if err != nil {
		e.skip(log.Warn(), "clinic_lookup", err)
		return nil
	}
	if strings.TrimSpace(clinic.Address) == "" {
		e.skip(log.Warn(), "clinic_without_address", nil)
		return nil
	}

	gctx, cancel := context.WithTimeout(ctx, e.geocodeTimeout)
	clinicAt, err := e.geocoder.Geocode(gctx, clinic.Address)
	cancel()
	if err != nil {
		e.skip(log.Warn().Str("address", clinic.Address), "geocode", err)
		return nil
	}

	distance, err := geo.DistanceKm(*req.Location, clinicAt)
	if err != nil {
		e.skip(log.Warn(), "distance", err)
		return nil
	}

	score := startsAt.Sub(req.Now).Hours() + distance
	if req.Profile.PreferredDoctorID != "" && req.Profile.PreferredDoctorID == slot.DoctorID {
		score += PreferredDoctorBonus
	}

	return &Candidate{Slot: slot, DistanceKm: distance, Score: score}
}

func (e *Engine) skip(ev *zerolog.Event, reason string, err error) {
	e.metrics.CandidateSkipped(reason)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Str("reason", reason).Msg("candidate skipped")
}
