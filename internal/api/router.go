package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/booking"
	"github.com/hackgods/clinic-availability/internal/directory"
	"github.com/hackgods/clinic-availability/internal/geo"
	"github.com/hackgods/clinic-availability/internal/matching"
)

type RouterConfig struct {
	Availability *availability.Service
	Booking      *booking.Service
	Engine       *matching.Engine
	Profiles     directory.ProfileLookup
	Geocoder     geo.Geocoder

	Postgres Pinger
	Redis    Pinger
	Gatherer prometheus.Gatherer // nil disables /metrics

	Logger  zerolog.Logger
	Now     func() time.Time // nil means time.Now
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/availability", func(r chi.Router) {
		r.Post("/", setAvailabilityHandler(cfg.Availability))
		r.Get("/unbooked", listUnbookedHandler(cfg.Availability))
		r.Get("/date/{date}", listByDateHandler(cfg.Availability))
		r.Get("/address/{address}", listByAddressHandler(cfg.Availability))
		r.Get("/doctor/{doctorID}", listByDoctorHandler(cfg.Availability))
		r.Put("/doctor/{doctorID}/slots/{slotID}", updateSlotHandler(cfg.Availability))
		r.Delete("/doctor/{doctorID}/slots/{slotID}", deleteSlotHandler(cfg.Availability))
	})

	r.Post("/match", matchHandler(matchDeps{
		slots:    cfg.Availability,
		engine:   cfg.Engine,
		profiles: cfg.Profiles,
		now:      now,
	}))

	r.Post("/slots/{slotID}/book", bookSlotHandler(cfg.Booking))
	r.Post("/slots/{slotID}/cancel", cancelSlotHandler(cfg.Booking))
	r.Post("/autobook", autoBookHandler(cfg.Booking, now))

	r.Get("/geocode", geocodeHandler(cfg.Geocoder))

	return r
}
