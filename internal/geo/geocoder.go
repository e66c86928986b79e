package geo

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotConfigured is returned on every call when no API credential is set.
	ErrNotConfigured = errors.New("geocoder is not configured")
	// ErrGeocode covers unresolvable addresses and remote failures.
	ErrGeocode = errors.New("address could not be geocoded")
)

// Geocoder resolves a free-text address to a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coordinate, error)
}

// GeocoderFunc adapts a plain function to Geocoder.
type GeocoderFunc func(ctx context.Context, address string) (Coordinate, error)

func (f GeocoderFunc) Geocode(ctx context.Context, address string) (Coordinate, error) {
	return f(ctx, address)
}

// normalizeAddress folds case and whitespace so equivalent spellings share a cache key.
func normalizeAddress(address string) string {
	return strings.Join(strings.Fields(strings.ToLower(address)), " ")
}
