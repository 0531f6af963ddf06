// Package tz converts instants between their absolute form and a "normal"
// form whose UTC fields carry the wall clock of a timezone.
//
// Arithmetic in normal form never crosses a DST transition, so adding 24h
// always lands on the same wall-clock time of the next calendar day.
package tz

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownTimezone is returned when a timezone name cannot be loaded.
	ErrUnknownTimezone = errors.New("tz: unknown timezone")
	// ErrInvalidDay is returned when a day string is not YYYY-MM-DD.
	ErrInvalidDay = errors.New("tz: invalid day")
)

// DayLayout is the layout of calendar day strings, e.g. "2023-03-13".
const DayLayout = "2006-01-02"

const day = 24 * time.Hour

// Direction selects the conversion done by SafeMirroredConvertDate.
type Direction int

const (
	// BaseToTarget converts an absolute instant to normal form.
	BaseToTarget Direction = iota
	// TargetToBase converts a normal instant back to its absolute form.
	TargetToBase
)

// Mirrored is the result of SafeMirroredConvertDate.
type Mirrored struct {
	Date time.Time
	// DaylightSavingsOffset is the number of hours the caller must add to
	// Date to keep the wall clock of the original date.
	DaylightSavingsOffset int
}

// Normal converts instants for a single timezone. It is immutable and safe
// for concurrent use.
type Normal struct {
	loc *time.Location
}

// New returns a Normal for loc. A nil loc means the system timezone.
func New(loc *time.Location) *Normal {
	if loc == nil {
		loc = time.Local
	}
	return &Normal{loc: loc}
}

// Load returns a Normal for the IANA timezone name. An empty name means the
// system timezone.
func Load(name string) (*Normal, error) {
	if name == "" {
		return New(time.Local), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnknownTimezone, name, err)
	}
	return New(loc), nil
}

// Location returns the timezone.
func (n *Normal) Location() *time.Location { return n.loc }

// Name returns the timezone name.
func (n *Normal) Name() string { return n.loc.String() }

// BaseDateToTargetDate re-expresses t so that its UTC fields show the wall
// clock of the timezone.
func (n *Normal) BaseDateToTargetDate(t time.Time) time.Time {
	return wallAs(t.In(n.loc), time.UTC)
}

// TargetDateToBaseDate is the inverse of BaseDateToTargetDate.
//
// Wall-clock times that do not exist in the timezone (spring forward) are
// resolved the way time.Date resolves them.
func (n *Normal) TargetDateToBaseDate(t time.Time) time.Time {
	return wallAs(t.UTC(), n.loc)
}

// SystemDateToTargetDate re-expresses t so that its fields in the system
// timezone show the wall clock of the timezone.
func (n *Normal) SystemDateToTargetDate(t time.Time) time.Time {
	return wallAs(t.In(n.loc), time.Local)
}

// TargetDateToSystemDate is the inverse of SystemDateToTargetDate.
func (n *Normal) TargetDateToSystemDate(t time.Time) time.Time {
	return wallAs(t.In(time.Local), n.loc)
}

// StartOfDayInTargetTimezone returns the timezone-local midnight of the day
// that contains t.
func (n *Normal) StartOfDayInTargetTimezone(t time.Time) time.Time {
	return n.TargetDateToBaseDate(StartOfNormalDay(n.BaseDateToTargetDate(t)))
}

// StartOfDay returns the timezone-local midnight of a YYYY-MM-DD day string.
func (n *Normal) StartOfDay(dayString string) (time.Time, error) {
	d, err := ParseDay(dayString)
	if err != nil {
		return time.Time{}, err
	}
	return n.TargetDateToBaseDate(d), nil
}

// IsStartOfDay reports whether t is midnight in the timezone.
func (n *Normal) IsStartOfDay(t time.Time) bool {
	return n.StartOfDayInTargetTimezone(t).Equal(t)
}

// SafeMirroredConvertDate converts value in the given direction and reports
// the hour offset between the timezone's UTC offset at original and at
// value. A non-zero offset means value and original sit on opposite sides
// of a DST transition, and a wall-clock copied from original is off by that
// many hours after the conversion.
func (n *Normal) SafeMirroredConvertDate(value, original time.Time, dir Direction) Mirrored {
	var (
		converted time.Time
		absolute  time.Time
	)
	switch dir {
	case TargetToBase:
		converted = n.TargetDateToBaseDate(value)
		absolute = converted
	default:
		converted = n.BaseDateToTargetDate(value)
		absolute = value
	}

	_, originalOffset := original.In(n.loc).Zone()
	_, valueOffset := absolute.In(n.loc).Zone()

	return Mirrored{
		Date:                  converted,
		DaylightSavingsOffset: (originalOffset - valueOffset) / 3600,
	}
}

// ParseDay parses a YYYY-MM-DD string as UTC midnight, which is already the
// normal form of that calendar day in every timezone.
func ParseDay(dayString string) (time.Time, error) {
	d, err := time.ParseInLocation(DayLayout, dayString, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDay, dayString)
	}
	return d, nil
}

// StartOfNormalDay truncates a normal instant to its midnight.
func StartOfNormalDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalDays returns the number of whole days between two normal instants,
// floored, so a result of 0 means b is within 24h after a.
func NormalDays(a, b time.Time) int {
	diff := b.Sub(a)
	days := int(diff / day)
	if diff%day < 0 {
		days--
	}
	return days
}

// AddNormalDays adds whole 24h days to a normal instant.
func AddNormalDays(t time.Time, days int) time.Time {
	return t.Add(time.Duration(days) * day)
}

func wallAs(t time.Time, loc *time.Location) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), loc)
}
