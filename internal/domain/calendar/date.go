// Package calendar holds the canonical date representation used by the
// consistency core. Every value entering the core is converted to a
// civil.Date (a day, no time of day, no zone) before any invariant logic runs.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Layout is the only textual date form the core accepts.
const Layout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid calendar date")
var ErrInvalidRange = errors.New("invalid date range: start is after end")

// Parse reads a YYYY-MM-DD string.
func Parse(s string) (civil.Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil || !d.IsValid() {
		return civil.Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// Normalize converts the representations found in stored documents into a
// civil.Date. A time.Time is read as the calendar day in its own location.
func Normalize(v any) (civil.Date, error) {
	switch x := v.(type) {
	case civil.Date:
		if !x.IsValid() {
			return civil.Date{}, fmt.Errorf("%w: %v", ErrInvalidDate, x)
		}
		return x, nil
	case time.Time:
		if x.IsZero() {
			return civil.Date{}, fmt.Errorf("%w: zero time", ErrInvalidDate)
		}
		return civil.DateOf(x), nil
	case *time.Time:
		if x == nil {
			return civil.Date{}, fmt.Errorf("%w: nil time", ErrInvalidDate)
		}
		return Normalize(*x)
	case string:
		return Parse(x)
	default:
		return civil.Date{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidDate, v)
	}
}

// Today returns the calendar day of now in now's location.
func Today(now time.Time) civil.Date {
	return civil.DateOf(now)
}

// Clock supplies "now". It is injected wherever the current day matters.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }
