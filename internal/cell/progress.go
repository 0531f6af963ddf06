package cell

import (
	"time"

	"datecell/internal/model"
)

// DayProgress describes the state of a timing on one day relative to now.
type DayProgress struct {
	Now  time.Time `json:"now"`
	Date time.Time `json:"date"`

	DayIndex     model.Index `json:"dayIndex"`
	CurrentIndex model.Index `json:"currentIndex"`
	NextIndex    model.Index `json:"nextIndex"`
	// NextIndexInRange is NextIndex when it is within the limit, else nil.
	NextIndexInRange *model.Index `json:"nextIndexInRange,omitempty"`

	IsInRange bool `json:"isInRange"`

	StartsAtOnDay time.Time `json:"startsAtOnDay"`
	EndsAtOnDay   time.Time `json:"endsAtOnDay"`

	// IsInProgressForDayIndex reports whether now is within the occurrence
	// of DayIndex.
	IsInProgressForDayIndex bool `json:"isInProgressForDayIndex"`
	// IsInProgress reports whether now is within the occurrence of
	// CurrentIndex, which may have started on the previous day.
	IsInProgress     bool `json:"isInProgress"`
	HasOccurredToday bool `json:"hasOccurredToday"`
	IsComplete       bool `json:"isComplete"`
}

// ProgressConfig configures a DayProgressFactory.
type ProgressConfig struct {
	Timing model.Timing
	// Limit bounds which indexes are in range; nil means the timing's own
	// range and NoLimit means every index.
	Limit RangeLimit
	// Clock supplies the time-of-day used when only an index is given. Nil
	// means SystemClock.
	Clock Clock
}

// DayProgressFactory derives DayProgress values. Each call recomputes from
// scratch; the factory is immutable and safe for concurrent use.
type DayProgressFactory struct {
	duration time.Duration
	bounds   IndexBounds
	index    *IndexFactory
	nowTime  DateFactory
	startsAt DateFactory
}

// NewDayProgressFactory builds a DayProgressFactory for cfg.
func NewDayProgressFactory(cfg ProgressConfig) (*DayProgressFactory, error) {
	bounds, err := IndexRange(cfg.Timing, cfg.Limit, true)
	if err != nil {
		return nil, err
	}
	index, err := NewIndexFactory(cfg.Timing)
	if err != nil {
		return nil, err
	}
	nowTime, err := NewNowTimeDateFactory(cfg.Timing, cfg.Clock)
	if err != nil {
		return nil, err
	}
	startsAt, err := NewStartsAtDateFactory(cfg.Timing)
	if err != nil {
		return nil, err
	}
	return &DayProgressFactory{
		duration: cfg.Timing.Duration.Duration(),
		bounds:   bounds,
		index:    index,
		nowTime:  nowTime,
		startsAt: startsAt,
	}, nil
}

// ForDate returns the progress on the day that contains date. A zero now
// means date itself.
func (f *DayProgressFactory) ForDate(date, now time.Time) DayProgress {
	if now.IsZero() {
		now = date
	}
	return f.compute(f.index.Index(date), date, now)
}

// ForIndex returns the progress on index i. A zero now means the current
// wall-clock time placed on the day of i.
func (f *DayProgressFactory) ForIndex(i model.Index, now time.Time) DayProgress {
	date := f.nowTime.Date(i)
	if now.IsZero() {
		now = date
	}
	return f.compute(i, date, now)
}

func (f *DayProgressFactory) compute(dayIndex model.Index, date, now time.Time) DayProgress {
	p := DayProgress{
		Now:       now,
		Date:      date,
		DayIndex:  dayIndex,
		IsInRange: f.bounds.Contains(dayIndex),
	}

	p.StartsAtOnDay = f.startsAt.Date(dayIndex)
	p.EndsAtOnDay = p.StartsAtOnDay.Add(f.duration)

	started := !p.StartsAtOnDay.After(now)
	p.IsInProgressForDayIndex = started && !now.After(p.EndsAtOnDay)
	p.HasOccurredToday = started && !p.IsInProgressForDayIndex

	if started {
		p.CurrentIndex = dayIndex
		p.IsInProgress = p.IsInProgressForDayIndex
	} else {
		p.CurrentIndex = dayIndex - 1
		priorStartsAt := f.startsAt.Date(p.CurrentIndex)
		p.IsInProgress = !priorStartsAt.After(now) && !now.After(priorStartsAt.Add(f.duration))
	}

	p.NextIndex = p.CurrentIndex + 1
	if f.bounds.Contains(p.NextIndex) {
		next := p.NextIndex
		p.NextIndexInRange = &next
	}

	p.IsComplete = p.CurrentIndex >= 0 && p.NextIndexInRange == nil && (!p.IsInRange || p.HasOccurredToday)
	return p
}
