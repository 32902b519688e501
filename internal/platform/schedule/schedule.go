// Package schedule computes the daily run time for digest generation in a
// configured timezone.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	// Embed tzdata for environments without zoneinfo.
	_ "time/tzdata"
)

// Time conversion constants.
const (
	maxHour   = 23
	maxMinute = 59
)

// Static errors for schedule validation.
var (
	ErrTimeFormat     = errors.New("time must be HH:MM")
	ErrInvalidHour    = errors.New("invalid hour")
	ErrInvalidMinute  = errors.New("invalid minute")
	ErrHourOutOfRange = errors.New("hour out of range")
)

// Schedule defines the daily digest generation time in a timezone.
type Schedule struct {
	Timezone string
	Time     string
}

// New validates and returns a schedule.
func New(timezone, at string) (*Schedule, error) {
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}

	if _, _, err := parseTime(at); err != nil {
		return nil, err
	}

	return &Schedule{Timezone: timezone, Time: at}, nil
}

// NextRun returns the next scheduled run strictly after now.
func (s *Schedule) NextRun(now time.Time) time.Time {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		loc = time.UTC
	}

	hour, minute, err := parseTime(s.Time)
	if err != nil {
		hour, minute = 0, 0
	}

	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)

	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}

	return next
}

func parseTime(at string) (hour, minute int, err error) {
	parts := strings.Split(at, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrTimeFormat, at)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidHour, parts[0])
	}

	if hour < 0 || hour > maxHour {
		return 0, 0, fmt.Errorf("%w: %d", ErrHourOutOfRange, hour)
	}

	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > maxMinute {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMinute, parts[1])
	}

	return hour, minute, nil
}
