package weather

import (
	"fmt"
	"time"
)

// ForecastDays is the number of days covered by a full forecast.
const ForecastDays = 5

// ValidateDay checks that day is within 1..ForecastDays.
func ValidateDay(day int) error {
	if day < 1 || day > ForecastDays {
		return fmt.Errorf("%w: day must be between 1 and %d, got %d", ErrInvalidParameter, ForecastDays, day)
	}
	return nil
}

// StartOfDay returns local midnight of t's calendar date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// DayWindow returns [start, end) of the target day `day` days after now's
// calendar date, so day 1 starts at the next local midnight. Both bounds are
// local midnights, so the window spans 23 or 25 hours across a DST change.
func DayWindow(now time.Time, day int, loc *time.Location) (time.Time, time.Time) {
	today := StartOfDay(now, loc)
	return today.AddDate(0, 0, day), today.AddDate(0, 0, day+1)
}

// DayHours returns the start of every wall-clock hour 0..23 of day's
// calendar date in loc. Hours skipped by a DST gap are left out and a
// repeated hour appears once.
func DayHours(day time.Time, loc *time.Location) []time.Time {
	if loc == nil {
		loc = time.Local
	}
	d := day.In(loc)
	hours := make([]time.Time, 0, 24)
	for h := 0; h < 24; h++ {
		t := time.Date(d.Year(), d.Month(), d.Day(), h, 0, 0, 0, loc)
		if t.Hour() != h {
			continue
		}
		hours = append(hours, t)
	}
	return hours
}

// HourWindow returns [start, end) of the clock hour containing t in loc.
func HourWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	lt := t.In(loc)
	start := time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), 0, 0, 0, loc)
	return start, start.Add(time.Hour)
}
