package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04:05"
)

var clockLayouts = []string{ClockLayout, "15:04"}

// Slot is a location/date/time interval, the unit the conflict checker works on.
type Slot struct {
	ID       string `json:"id,omitempty"`
	Location string `json:"location"`
	Date     string `json:"date"`
	Start    string `json:"start_time"`
	End      string `json:"end_time"`
}

func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// ParseClock parses a time of day in HH:MM:SS or HH:MM form.
func ParseClock(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time of day %q", s)
}

// NormalizeClock rewrites a time of day into HH:MM:SS.
func NormalizeClock(s string) (string, error) {
	t, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return t.Format(ClockLayout), nil
}

// StartsAt returns the absolute start instant of a slot in loc.
func (s Slot) StartsAt(loc *time.Location) (time.Time, error) {
	return s.at(s.Start, loc)
}

// EndsAt returns the absolute end instant of a slot in loc.
func (s Slot) EndsAt(loc *time.Location) (time.Time, error) {
	return s.at(s.End, loc)
}

func (s Slot) at(clock string, loc *time.Location) (time.Time, error) {
	day, err := ParseDate(s.Date)
	if err != nil {
		return time.Time{}, err
	}
	t, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
}
