package cell

import (
	"time"

	"datecell/internal/model"
)

// TimingValidity describes which checks a timing passes.
type TimingValidity struct {
	IsValid bool

	IsTimezoneValid    bool
	IsStartsAtValid    bool
	IsDurationValid    bool
	IsEndAfterStartsAt bool
	// IsExpectedValidEnd reports whether End is exactly Duration after an
	// occurrence that shares the wall-clock time of StartsAt.
	IsExpectedValidEnd bool
}

// FullTimingValidity extends TimingValidity with the checks on Start.
type FullTimingValidity struct {
	TimingValidity

	IsStartValid         bool
	IsStartsAtOnStartDay bool
	IsFullValid          bool
}

// IsValidTiming checks timing without trusting how it was built.
//
// The expected end is recomputed with calendar arithmetic in the timezone:
// the day of the last occurrence is read from End, StartsAt's wall clock is
// placed on that day and Duration is added.
func IsValidTiming(timing model.Timing) TimingValidity {
	var v TimingValidity

	loc, err := time.LoadLocation(timing.Timezone)
	v.IsTimezoneValid = err == nil && timing.Timezone != ""
	v.IsStartsAtValid = timing.StartsAt.Second() == 0 && timing.StartsAt.Nanosecond() == 0
	v.IsDurationValid = timing.Duration > 0 && timing.Duration <= model.MinutesInDay
	v.IsEndAfterStartsAt = timing.End.After(timing.StartsAt)

	if v.IsTimezoneValid && v.IsDurationValid && v.IsEndAfterStartsAt {
		v.IsExpectedValidEnd = hasExpectedEnd(timing, loc)
	}

	v.IsValid = v.IsTimezoneValid && v.IsStartsAtValid && v.IsDurationValid &&
		v.IsEndAfterStartsAt && v.IsExpectedValidEnd
	return v
}

func hasExpectedEnd(timing model.Timing, loc *time.Location) bool {
	first := timing.StartsAt.In(loc)
	duration := timing.Duration.Duration()
	approxLast := timing.End.Add(-duration).In(loc)

	// A DST transition can move the wall clock of the last occurrence by an
	// hour, which may change its date near midnight; try the neighbours too.
	for _, shift := range []int{0, -1, 1} {
		y, m, d := approxLast.AddDate(0, 0, shift).Date()
		candidate := time.Date(y, m, d, first.Hour(), first.Minute(), 0, 0, loc)
		if candidate.Before(timing.StartsAt) {
			continue
		}
		if candidate.Add(duration).Equal(timing.End) {
			return true
		}
	}
	return false
}

// IsValidFullTiming checks the timing and its Start.
func IsValidFullTiming(timing model.FullTiming) FullTimingValidity {
	v := FullTimingValidity{TimingValidity: IsValidTiming(timing.Timing)}

	if v.IsTimezoneValid {
		loc, _ := time.LoadLocation(timing.Timezone)
		start := timing.Start.In(loc)
		v.IsStartValid = start.Hour() == 0 && start.Minute() == 0 && start.Second() == 0 && start.Nanosecond() == 0

		sy, sm, sd := start.Date()
		y, m, d := timing.StartsAt.In(loc).Date()
		v.IsStartsAtOnStartDay = sy == y && sm == m && sd == d && !timing.StartsAt.Before(timing.Start)
	}

	v.IsFullValid = v.IsValid && v.IsStartValid && v.IsStartsAtOnStartDay
	return v
}
