package geo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"

	"github.com/hackgods/clinic-availability/internal/metrics"
)

type GoogleConfig struct {
	APIKey  string
	BaseURL string        // overrides the Maps API host, used by tests
	Timeout time.Duration // per-call bound, 0 means 3s
	RPS     int           // outbound requests per second, 0 means unlimited
}

// GoogleGeocoder calls the Google Geocoding API. Calls are rate limited and
// pass through a circuit breaker.
type GoogleGeocoder struct {
	client  *maps.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewGoogleGeocoder builds a geocoder. A missing API key is not an error here:
// the returned geocoder reports ErrNotConfigured from every Geocode call.
func NewGoogleGeocoder(cfg GoogleConfig, m *metrics.Metrics, log zerolog.Logger) (*GoogleGeocoder, error) {
	g := &GoogleGeocoder{
		timeout: cfg.Timeout,
		metrics: m,
		log:     log.With().Str("component", "geocoder").Logger(),
	}
	if g.timeout <= 0 {
		g.timeout = 3 * time.Second
	}

	if cfg.APIKey == "" {
		g.log.Warn().Msg("no geocoder API key configured, every lookup will fail")
		return g, nil
	}

	opts := []maps.ClientOption{
		maps.WithAPIKey(cfg.APIKey),
		maps.WithHTTPClient(&http.Client{Timeout: g.timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.BaseURL))
	}

	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	g.client = client

	if cfg.RPS > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS)
	}

	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "geocoder",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("geocoder breaker state change")
		},
	})

	return g, nil
}

func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) (Coordinate, error) {
	if g.client == nil {
		g.metrics.Geocode("remote", "not_configured")
		return Coordinate{}, ErrNotConfigured
	}

	address = strings.TrimSpace(address)
	if address == "" {
		return Coordinate{}, fmt.Errorf("%w: empty address", ErrGeocode)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			g.metrics.Geocode("remote", "rate_limited")
			return Coordinate{}, fmt.Errorf("%w: rate limit wait: %v", ErrGeocode, err)
		}
	}

	start := time.Now()
	res, err := g.breaker.Execute(func() (interface{}, error) {
		results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
		if err != nil {
			return nil, err
		}
		// zero results is an address problem, not a remote failure
		return results, nil
	})
	g.metrics.GeocodeRemote(time.Since(start).Seconds())

	if err != nil {
		status := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			status = "breaker_open"
		}
		g.metrics.Geocode("remote", status)
		return Coordinate{}, fmt.Errorf("%w: %q: %v", ErrGeocode, address, err)
	}

	results, _ := res.([]maps.GeocodingResult)
	if len(results) == 0 {
		g.metrics.Geocode("remote", "not_found")
		return Coordinate{}, fmt.Errorf("%w: %q: no results", ErrGeocode, address)
	}

	loc := results[0].Geometry.Location
	g.metrics.Geocode("remote", "ok")
	return Coordinate{Lat: loc.Lat, Lng: loc.Lng}, nil
}
