package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	aucklandCBD = Coordinate{Lat: -36.8485, Lng: 174.7633}
	grafton     = Coordinate{Lat: -36.8600, Lng: 174.7700}
	wellington  = Coordinate{Lat: -41.2865, Lng: 174.7762}
)

func TestDistanceKm_SamePoint(t *testing.T) {
	d, err := DistanceKm(aucklandCBD, aucklandCBD)
	require.NoError(t, err)
	assert.Equal(t, 0.0, d)
}

func TestDistanceKm_KnownDistances(t *testing.T) {
	d, err := DistanceKm(aucklandCBD, wellington)
	require.NoError(t, err)
	assert.InDelta(t, 493.5, d, 1.0)

	// one degree of latitude along a meridian
	d, err = DistanceKm(Coordinate{Lat: 0, Lng: 0}, Coordinate{Lat: 1, Lng: 0})
	require.NoError(t, err)
	assert.Equal(t, 111.195, d)
}

func TestDistanceKm_RoundedToThreeDecimals(t *testing.T) {
	d, err := DistanceKm(aucklandCBD, grafton)
	require.NoError(t, err)
	assert.Equal(t, d, math.Round(d*1000)/1000)
}

func TestDistanceKm_Symmetric(t *testing.T) {
	pairs := [][2]Coordinate{
		{aucklandCBD, wellington},
		{aucklandCBD, grafton},
		{{Lat: 51.5074, Lng: -0.1278}, {Lat: -33.8688, Lng: 151.2093}},
		{{Lat: 0, Lng: 179.9}, {Lat: 0, Lng: -179.9}},
	}
	for _, p := range pairs {
		ab, err := DistanceKm(p[0], p[1])
		require.NoError(t, err)
		ba, err := DistanceKm(p[1], p[0])
		require.NoError(t, err)
		assert.InDelta(t, ab, ba, 0.001)
	}
}

func TestDistanceKm_InvalidInput(t *testing.T) {
	bad := []Coordinate{
		{Lat: math.NaN(), Lng: 0},
		{Lat: 0, Lng: math.Inf(1)},
		{Lat: 91, Lng: 0},
		{Lat: 0, Lng: -180.5},
	}
	for _, c := range bad {
		_, err := DistanceKm(aucklandCBD, c)
		assert.ErrorIs(t, err, ErrInvalidCoordinate)
		_, err = DistanceKm(c, aucklandCBD)
		assert.ErrorIs(t, err, ErrInvalidCoordinate)
	}
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 1.235, roundHalfUp(1.2345001, 3))
	assert.Equal(t, 1.234, roundHalfUp(1.2344, 3))
	assert.Equal(t, 2.0, roundHalfUp(1.9996, 3))
}
