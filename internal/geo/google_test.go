package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMapsServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("address") {
		case "50 Park Road, Auckland 1023":
			fmt.Fprint(w, `{"status":"OK","results":[{"geometry":{"location":{"lat":-36.86,"lng":174.77}}}]}`)
		case "nowhere":
			fmt.Fprint(w, `{"status":"ZERO_RESULTS","results":[]}`)
		case "denied":
			fmt.Fprint(w, `{"status":"REQUEST_DENIED","error_message":"bad key","results":[]}`)
		case "slow":
			time.Sleep(300 * time.Millisecond)
			fmt.Fprint(w, `{"status":"OK","results":[{"geometry":{"location":{"lat":1,"lng":1}}}]}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `oops`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleGeocoder_NotConfigured(t *testing.T) {
	g, err := NewGoogleGeocoder(GoogleConfig{}, nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = g.Geocode(context.Background(), "50 Park Road, Auckland 1023")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGoogleGeocoder_Resolves(t *testing.T) {
	srv := newMapsServer(t, nil)
	g, err := NewGoogleGeocoder(GoogleConfig{APIKey: "test-key", BaseURL: srv.URL, Timeout: time.Second}, nil, zerolog.Nop())
	require.NoError(t, err)

	c, err := g.Geocode(context.Background(), "50 Park Road, Auckland 1023")
	require.NoError(t, err)
	assert.Equal(t, Coordinate{Lat: -36.86, Lng: 174.77}, c)
}

func TestGoogleGeocoder_Failures(t *testing.T) {
	srv := newMapsServer(t, nil)
	g, err := NewGoogleGeocoder(GoogleConfig{APIKey: "test-key", BaseURL: srv.URL, Timeout: 100 * time.Millisecond}, nil, zerolog.Nop())
	require.NoError(t, err)

	for _, addr := range []string{"nowhere", "denied", "broken", "slow", "   "} {
		_, err := g.Geocode(context.Background(), addr)
		assert.ErrorIs(t, err, ErrGeocode, "address %q", addr)
	}
}

func TestGoogleGeocoder_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	srv := newMapsServer(t, &calls)
	g, err := NewGoogleGeocoder(GoogleConfig{APIKey: "test-key", BaseURL: srv.URL, Timeout: time.Second}, nil, zerolog.Nop())
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		_, err := g.Geocode(context.Background(), "broken")
		assert.ErrorIs(t, err, ErrGeocode)
	}
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}
