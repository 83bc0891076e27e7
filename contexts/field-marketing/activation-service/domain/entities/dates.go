package entities

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// CivilDate drops the time of day, keeping the calendar day t falls on in its
// own location. Every stored date is a UTC midnight produced by this function.
func CivilDate(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func ParseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	return CivilDate(parsed), nil
}

// TimeOfDay is a wall-clock time expressed in minutes after midnight.
type TimeOfDay int

const minutesPerDay = 24 * 60

func NewTimeOfDay(hour int, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func ParseTimeOfDay(value string) (TimeOfDay, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(strings.TrimSpace(value), "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", value, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("parse time of day %q: out of range", value)
	}
	return NewTimeOfDay(hour, minute), nil
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}
