// Package cell computes recurring, timezone-correct day cells: the timing
// model, index/date conversion, range algebra, expansion into concrete
// occurrences and day progress.
package cell

import (
	"errors"
	"fmt"
	"time"

	"datecell/internal/model"
	"datecell/internal/tz"
)

var (
	// ErrDurationTooLong is returned when a duration exceeds one day.
	ErrDurationTooLong = errors.New("cell: duration cannot be longer than 24 hours")
	// ErrInvalidDuration is returned when a duration is zero or negative.
	ErrInvalidDuration = errors.New("cell: duration must be positive")
	// ErrInvalidStartDate is returned when an explicit range start is not
	// midnight in the timing's timezone.
	ErrInvalidStartDate = errors.New("cell: range start must be the start of a day in the timezone")
)

// RangeInput selects the days a timing covers. It is one of Days,
// DayDistance or DateRange.
type RangeInput interface {
	rangeInput()
}

// Days is a number of consecutive days beginning on the startsAt day.
// Values below 1 are treated as 1.
type Days int

// DayDistance is a number of days beginning on the day that contains Date.
// If the time-of-day of startsAt has already passed at Date, the first
// occurrence moves to the next day and one day is dropped.
type DayDistance struct {
	Date     time.Time
	Distance int
}

// DateRange is the half-open range [Start, End). Start must be midnight in
// the timing's timezone.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (Days) rangeInput()        {}
func (DayDistance) rangeInput() {}
func (DateRange) rangeInput()   {}

// NewTiming builds a validated timing.
//
// The date of the first occurrence comes from the range input when it
// carries one, and from span.StartsAt otherwise; the time-of-day always
// comes from span.StartsAt. An empty timezone means the system timezone.
func NewTiming(span model.DateDurationSpan, rng RangeInput, timezone string) (model.FullTiming, error) {
	if span.Duration > model.MinutesInDay {
		return model.FullTiming{}, fmt.Errorf("%w: %d minutes", ErrDurationTooLong, span.Duration)
	}
	if span.Duration <= 0 {
		return model.FullTiming{}, fmt.Errorf("%w: %d minutes", ErrInvalidDuration, span.Duration)
	}

	normal, err := tz.Load(timezone)
	if err != nil {
		return model.FullTiming{}, err
	}

	var (
		blocks     int
		rangeStart time.Time
		hasRange   bool
	)

	switch r := rng.(type) {
	case nil:
	case Days:
		blocks = max(int(r)-1, 0)
	case DayDistance:
		rangeStart = r.Date
		blocks = max(r.Distance-1, 0)
		hasRange = true
	case DateRange:
		if !normal.IsStartOfDay(r.Start) {
			return model.FullTiming{}, fmt.Errorf("%w: %s", ErrInvalidStartDate, r.Start.Format(time.RFC3339))
		}
		rangeStart = r.Start
		hasRange = true
		if r.End.After(r.Start) {
			lastInstant := normal.BaseDateToTargetDate(r.End.Add(-time.Nanosecond))
			blocks = tz.NormalDays(normal.BaseDateToTargetDate(r.Start), lastInstant)
		}
	default:
		return model.FullTiming{}, fmt.Errorf("cell: unsupported range input %T", rng)
	}

	normalStartsAt := normal.BaseDateToTargetDate(span.StartsAt)

	if hasRange {
		normalRangeStart := normal.BaseDateToTargetDate(rangeStart)
		h, m, _ := normalStartsAt.Clock()
		normalStartsAt = tz.StartOfNormalDay(normalRangeStart).Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)

		if normalStartsAt.Before(normalRangeStart) {
			normalStartsAt = tz.AddNormalDays(normalStartsAt, 1)
			blocks = max(blocks-1, 0)
		}
	} else {
		normalStartsAt = normalStartsAt.Truncate(time.Minute)
	}

	// A wall clock that falls in a spring-forward gap on the first day is
	// resolved once here, and every later day uses the resolved wall clock.
	startsAt := normal.TargetDateToBaseDate(normalStartsAt)
	normalStartsAt = normal.BaseDateToTargetDate(startsAt)
	finalStartsAt := normal.TargetDateToBaseDate(tz.AddNormalDays(normalStartsAt, blocks))

	return model.FullTiming{
		Timing: model.Timing{
			StartsAt: startsAt,
			Duration: span.Duration,
			End:      finalStartsAt.Add(span.Duration.Duration()),
			Timezone: normal.Name(),
		},
		Start: normal.TargetDateToBaseDate(tz.StartOfNormalDay(normalStartsAt)),
	}, nil
}

// UpdateTimingEvent keeps the first day and the number of days of timing
// but replaces the time-of-day and duration with those of span.
func UpdateTimingEvent(timing model.Timing, span model.DateDurationSpan) (model.FullTiming, error) {
	normal, err := tz.Load(timing.Timezone)
	if err != nil {
		return model.FullTiming{}, err
	}
	last, err := LastIndex(timing)
	if err != nil {
		return model.FullTiming{}, err
	}
	start := normal.StartOfDayInTargetTimezone(timing.StartsAt)
	return NewTiming(span, DayDistance{Date: start, Distance: int(last) + 1}, timing.Timezone)
}

// ShiftToTimezone returns a timing with the same wall-clock times and days
// as timing, anchored in another timezone.
func ShiftToTimezone(timing model.Timing, timezone string) (model.FullTiming, error) {
	from, err := tz.Load(timing.Timezone)
	if err != nil {
		return model.FullTiming{}, err
	}
	to, err := tz.Load(timezone)
	if err != nil {
		return model.FullTiming{}, err
	}
	last, err := LastIndex(timing)
	if err != nil {
		return model.FullTiming{}, err
	}

	startsAt := to.TargetDateToBaseDate(from.BaseDateToTargetDate(timing.StartsAt))
	return NewTiming(model.DateDurationSpan{StartsAt: startsAt, Duration: timing.Duration}, Days(int(last)+1), timezone)
}

// TimingStart returns the timezone-local midnight of index 0.
func TimingStart(timing model.Timing) (time.Time, error) {
	normal, err := tz.Load(timing.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	return normal.StartOfDayInTargetTimezone(timing.StartsAt), nil
}

// FinalStartsAt returns the start of the last occurrence.
func FinalStartsAt(timing model.Timing) time.Time {
	return timing.End.Add(-timing.Duration.Duration())
}

// LastIndex returns the index of the last occurrence.
func LastIndex(timing model.Timing) (model.Index, error) {
	f, err := NewIndexFactory(timing)
	if err != nil {
		return 0, err
	}
	return f.Index(FinalStartsAt(timing)), nil
}

// TimingRange returns the range of indexes the timing covers.
func TimingRange(timing model.Timing) (model.Range, error) {
	last, err := LastIndex(timing)
	if err != nil {
		return model.Range{}, err
	}
	return model.Range{I: 0, To: last}, nil
}

// FirstEvent returns the first occurrence of timing.
func FirstEvent(timing model.Timing) model.DateDurationSpan {
	return model.DateDurationSpan{StartsAt: timing.StartsAt, Duration: timing.Duration}
}

// EventForIndex returns the occurrence of timing on index i.
func EventForIndex(timing model.Timing, i model.Index) (model.DateDurationSpan, error) {
	f, err := NewStartsAtDateFactory(timing)
	if err != nil {
		return model.DateDurationSpan{}, err
	}
	return model.DateDurationSpan{StartsAt: f.Date(i), Duration: timing.Duration}, nil
}

// HoursInEvent returns the length of one occurrence in hours.
func HoursInEvent(timing model.Timing) float64 {
	return timing.Duration.Duration().Hours()
}

// IsSameTiming reports whether a and b describe the same occurrences.
func IsSameTiming(a, b model.Timing) bool {
	return a.StartsAt.Equal(b.StartsAt) &&
		a.End.Equal(b.End) &&
		a.Duration == b.Duration &&
		a.Timezone == b.Timezone
}
