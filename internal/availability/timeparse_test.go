package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstant(t *testing.T) {
	loc := auckland(t)
	want := time.Date(2026, 11, 1, 20, 0, 0, 0, time.UTC)

	for _, in := range []string{
		"2026-11-01T20:00:00Z",
		"2026-11-02T09:00:00+13:00",
		"2026-11-02 09:00",
		"2026-11-02T09:00",
		"2026-11-02 09:00:00",
	} {
		got, err := ParseInstant("startTime", in, "", loc)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
		assert.Equal(t, time.UTC, got.Location(), in)
	}

	got, err := ParseInstant("startTime", "09:00", "2026-11-02", loc)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseInstant_Rejects(t *testing.T) {
	for _, in := range []string{"", "invalid-date", "25:00", "2026-13-01 09:00"} {
		_, err := ParseInstant("startTime", in, "2026-11-02", time.UTC)
		assert.ErrorIs(t, err, ErrValidation, in)
	}

	for _, in := range []string{"2026-11-02T09:00:30Z", "2026-11-02 09:00:59", "2026-11-02T09:00:00.5+13:00"} {
		_, err := ParseInstant("startTime", in, "", time.UTC)
		assert.ErrorIs(t, err, ErrValidation, in)
	}

	// a bare clock needs a day to anchor it
	_, err := ParseInstant("startTime", "09:00", "", time.UTC)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-11-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("2026-02-30")
	assert.ErrorIs(t, err, ErrValidation)
}
