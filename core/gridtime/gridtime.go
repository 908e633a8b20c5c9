// Package gridtime centralizes timezone handling for the pipeline. Upstream
// sources report naive local times in their own zones; everything past the
// parser boundary is UTC.
package gridtime

import (
	"fmt"
	"time"
)

// Now returns the current wall-clock time in UTC.
func Now() time.Time { return time.Now().UTC() }

// ParseInLocation parses a naive local timestamp in the named IANA zone and
// returns the equivalent UTC instant.
func ParseInLocation(layout, value, tz string) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %s: %w", tz, err)
	}
	t, err := time.ParseInLocation(layout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q as %q: %w", value, layout, err)
	}
	return t.UTC(), nil
}

// CombineClock combines an HH:MM local clock reading with today's date in the
// named zone. A result ahead of now indicates the reading belongs to
// yesterday and is shifted back a day.
func CombineClock(hhmm, tz string, now time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %s: %w", tz, err)
	}
	clock, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse clock %q: %w", hhmm, err)
	}
	local := now.In(loc)
	t := time.Date(local.Year(), local.Month(), local.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
	if t.After(now) {
		t = t.AddDate(0, 0, -1)
	}
	return t.UTC(), nil
}

// Truncate quantizes t down to the source-native interval.
func Truncate(t time.Time, interval time.Duration) time.Time {
	return t.UTC().Truncate(interval)
}

// MWFromMWh converts energy per interval to average power over the interval.
func MWFromMWh(mwh float64, interval time.Duration) float64 {
	return mwh / interval.Hours()
}

// Age returns how far behind wall-clock the observation is. A future
// timestamp yields a negative age.
func Age(t, now time.Time) time.Duration { return now.Sub(t) }

// WithinHorizon reports whether t sits within ±horizon of now.
func WithinHorizon(t, now time.Time, horizon time.Duration) bool {
	d := now.Sub(t)
	if d < 0 {
		d = -d
	}
	return d <= horizon
}
