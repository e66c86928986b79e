package availability

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout    = "2006-01-02"
	clockLayout   = "15:04"
	localDateTime = "2006-01-02 15:04"
)

var localLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseDate parses YYYY-MM-DD to midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", ErrValidation)
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrValidation, s)
	}
	return d, nil
}

// ParseInstant parses a time-of-slot string and returns it in UTC.
//
// Accepted forms: RFC3339 with an explicit offset; a local date-time
// (YYYY-MM-DD HH:mm[:ss], space or T separated) read in loc; or a bare HH:mm
// which is joined with day and read in loc. day may be empty when no bare
// clock value is expected.
func ParseInstant(field, s, day string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	if loc == nil {
		loc = time.UTC
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return wholeMinute(field, s, t)
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return wholeMinute(field, s, t)
		}
	}
	if day != "" {
		if _, err := time.Parse(clockLayout, s); err == nil {
			if t, err := time.ParseInLocation(localDateTime, day+" "+s, loc); err == nil {
				return t.UTC(), nil
			}
		}
	}

	return time.Time{}, fmt.Errorf("%w: %s %q is not a valid time", ErrValidation, field, s)
}

// wholeMinute rejects instants with seconds. Slots are ranked by hour and
// minute only.
func wholeMinute(field, s string, t time.Time) (time.Time, error) {
	if t.Second() != 0 || t.Nanosecond() != 0 {
		return time.Time{}, fmt.Errorf("%w: %s %q must be on a whole minute", ErrValidation, field, s)
	}
	return t.UTC(), nil
}

// localDay returns the calendar date of t in loc as YYYY-MM-DD.
func localDay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// localDayBounds returns the UTC instants at which day starts and ends in loc.
func localDayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	to := time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc)
	return from.UTC(), to.UTC()
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
