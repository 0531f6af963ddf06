package cell

import (
	"time"

	"datecell/internal/model"
	"datecell/internal/tz"
)

// IndexFactory maps instants and calendar days to the index of the day
// they fall on, relative to a timing. It is immutable and safe for
// concurrent use.
type IndexFactory struct {
	timing      model.Timing
	normal      *tz.Normal
	normalStart time.Time
}

// NewIndexFactory returns an IndexFactory anchored to the day that contains
// timing.StartsAt in timing.Timezone.
func NewIndexFactory(timing model.Timing) (*IndexFactory, error) {
	normal, err := tz.Load(timing.Timezone)
	if err != nil {
		return nil, err
	}
	return &IndexFactory{
		timing:      timing,
		normal:      normal,
		normalStart: tz.StartOfNormalDay(normal.BaseDateToTargetDate(timing.StartsAt)),
	}, nil
}

// Timing returns the timing the factory was built from.
func (f *IndexFactory) Timing() model.Timing { return f.timing }

// Normal returns the timezone converter of the timing.
func (f *IndexFactory) Normal() *tz.Normal { return f.normal }

// Index returns the index of the day that contains t in the timing's
// timezone. Instants before the first day return negative indexes.
func (f *IndexFactory) Index(t time.Time) model.Index {
	return f.indexOfNormal(f.normal.BaseDateToTargetDate(t))
}

// IndexOfDay returns the index of a YYYY-MM-DD calendar day. The day is
// read as a calendar date, independent of any wall-clock time.
func (f *IndexFactory) IndexOfDay(day string) (model.Index, error) {
	d, err := tz.ParseDay(day)
	if err != nil {
		return 0, err
	}
	return f.indexOfNormal(d), nil
}

func (f *IndexFactory) indexOfNormal(t time.Time) model.Index {
	return model.Index(tz.NormalDays(f.normalStart, t))
}

// DateFactory maps an index to an instant on that index's day.
type DateFactory interface {
	Date(i model.Index) time.Time
}

// anchoredDateFactory adds whole normal days to a normal anchor.
type anchoredDateFactory struct {
	timing model.Timing
	normal *tz.Normal
	anchor time.Time
}

// NewStartDateFactory returns a factory producing the timezone-local
// midnight of each index.
func NewStartDateFactory(timing model.Timing) (DateFactory, error) {
	normal, err := tz.Load(timing.Timezone)
	if err != nil {
		return nil, err
	}
	return &anchoredDateFactory{
		timing: timing,
		normal: normal,
		anchor: tz.StartOfNormalDay(normal.BaseDateToTargetDate(timing.StartsAt)),
	}, nil
}

// NewStartsAtDateFactory returns a factory producing the occurrence start
// of each index.
func NewStartsAtDateFactory(timing model.Timing) (DateFactory, error) {
	normal, err := tz.Load(timing.Timezone)
	if err != nil {
		return nil, err
	}
	return &anchoredDateFactory{
		timing: timing,
		normal: normal,
		anchor: normal.BaseDateToTargetDate(timing.StartsAt),
	}, nil
}

func (f *anchoredDateFactory) Date(i model.Index) time.Time {
	return f.normal.TargetDateToBaseDate(tz.AddNormalDays(f.anchor, int(i)))
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

// Now returns current time.
func (SystemClock) Now() time.Time { return time.Now() }

// nowTimeDateFactory places the clock's current wall-clock time, read in
// the timing's timezone, on the day of an index.
type nowTimeDateFactory struct {
	normal      *tz.Normal
	normalStart time.Time
	clock       Clock
}

// NewNowTimeDateFactory returns a factory producing, for each index, the
// instant on that day whose wall clock matches the current time. A nil
// clock means SystemClock.
func NewNowTimeDateFactory(timing model.Timing, clock Clock) (DateFactory, error) {
	normal, err := tz.Load(timing.Timezone)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &nowTimeDateFactory{
		normal:      normal,
		normalStart: tz.StartOfNormalDay(normal.BaseDateToTargetDate(timing.StartsAt)),
		clock:       clock,
	}, nil
}

func (f *nowTimeDateFactory) Date(i model.Index) time.Time {
	now := f.normal.BaseDateToTargetDate(f.clock.Now())
	timeOfDay := now.Sub(tz.StartOfNormalDay(now))
	return f.normal.TargetDateToBaseDate(tz.AddNormalDays(f.normalStart, int(i)).Add(timeOfDay))
}
