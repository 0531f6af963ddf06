package schedule

import (
	"math"
	"time"

	"datecell/internal/cell"
	"datecell/internal/model"
)

// FilterConfig configures a DateFilter.
type FilterConfig struct {
	Schedule model.Schedule
	// Timezone is the IANA zone days are read in; empty means the system
	// timezone.
	Timezone string
	// Start is an instant on the day of index 0. Zero means today according
	// to Clock.
	Start time.Time
	// End is an instant on the last allowed day. Zero means no upper bound.
	End time.Time
	// AllowBeforeStart lifts the lower bound of index 0.
	AllowBeforeStart bool
	// MinIndex and MaxIndex override the bounds derived above. Both are
	// inclusive.
	MinIndex *model.Index
	MaxIndex *model.Index
	Clock    cell.Clock
}

// DateFilter decides whether an index is allowed by a schedule. It is
// immutable and safe for concurrent use.
type DateFilter struct {
	index    *cell.IndexFactory
	anchor   time.Weekday
	days     Weekdays
	include  map[model.Index]struct{}
	exclude  map[model.Index]struct{}
	minIndex model.Index
	maxIndex model.Index
}

// NewDateFilter compiles cfg into a DateFilter.
func NewDateFilter(cfg FilterConfig) (*DateFilter, error) {
	days, err := WeekdaysOf(cfg.Schedule.W)
	if err != nil {
		return nil, err
	}

	start := cfg.Start
	if start.IsZero() {
		clock := cfg.Clock
		if clock == nil {
			clock = cell.SystemClock{}
		}
		start = clock.Now()
	}
	index, err := cell.NewIndexFactory(model.Timing{StartsAt: start, Timezone: cfg.Timezone})
	if err != nil {
		return nil, err
	}

	f := &DateFilter{
		index:    index,
		anchor:   index.Normal().BaseDateToTargetDate(start).Weekday(),
		days:     days,
		include:  indexSet(cfg.Schedule.D),
		exclude:  indexSet(cfg.Schedule.Ex),
		minIndex: 0,
		maxIndex: math.MaxInt,
	}
	if cfg.AllowBeforeStart {
		f.minIndex = math.MinInt
	}
	if !cfg.End.IsZero() {
		f.maxIndex = index.Index(cfg.End)
	}
	if cfg.MinIndex != nil {
		f.minIndex = *cfg.MinIndex
	}
	if cfg.MaxIndex != nil {
		f.maxIndex = *cfg.MaxIndex
	}
	return f, nil
}

func indexSet(indexes []model.Index) map[model.Index]struct{} {
	set := make(map[model.Index]struct{}, len(indexes))
	for _, i := range indexes {
		set[i] = struct{}{}
	}
	return set
}

// AllowsIndex reports whether i is allowed. An explicit include always
// allows; otherwise an explicit exclude disallows; otherwise i must be in
// bounds and fall on an allowed weekday.
func (f *DateFilter) AllowsIndex(i model.Index) bool {
	if _, ok := f.include[i]; ok {
		return true
	}
	if _, ok := f.exclude[i]; ok {
		return false
	}
	return i >= f.minIndex && i <= f.maxIndex && f.days.Has(f.Weekday(i))
}

// AllowsDate reports whether the day that contains t is allowed.
func (f *DateFilter) AllowsDate(t time.Time) bool {
	return f.AllowsIndex(f.index.Index(t))
}

// AllowsDay reports whether a YYYY-MM-DD calendar day is allowed.
func (f *DateFilter) AllowsDay(day string) (bool, error) {
	i, err := f.index.IndexOfDay(day)
	if err != nil {
		return false, err
	}
	return f.AllowsIndex(i), nil
}

// Weekday returns the weekday of index i in the filter's timezone.
func (f *DateFilter) Weekday(i model.Index) time.Weekday {
	return weekdayAfter(f.anchor, i)
}

// IndexFactory returns the factory used to convert instants.
func (f *DateFilter) IndexFactory() *cell.IndexFactory { return f.index }

func weekdayAfter(anchor time.Weekday, i model.Index) time.Weekday {
	return time.Weekday(((int(anchor)+int(i)%7)%7 + 7) % 7)
}

// WeekdayOfIndexFactory returns a function giving the weekday of each index
// of timing in its timezone.
func WeekdayOfIndexFactory(timing model.Timing) (func(model.Index) time.Weekday, error) {
	index, err := cell.NewIndexFactory(timing)
	if err != nil {
		return nil, err
	}
	anchor := index.Normal().BaseDateToTargetDate(timing.StartsAt).Weekday()
	return func(i model.Index) time.Weekday { return weekdayAfter(anchor, i) }, nil
}

// FilterConfigForTiming bounds a schedule to the days of timing.
func FilterConfigForTiming(timing model.Timing, s model.Schedule) FilterConfig {
	return FilterConfig{
		Schedule: s,
		Timezone: timing.Timezone,
		Start:    timing.StartsAt,
		End:      cell.FinalStartsAt(timing),
	}
}
