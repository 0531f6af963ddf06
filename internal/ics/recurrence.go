// Package ics converts day-cell timings to and from iCalendar (RFC 5545)
// recurring events.
package ics

import (
	"errors"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	"datecell/internal/cell"
	"datecell/internal/model"
	"datecell/internal/schedule"
	"datecell/internal/tz"
)

// ErrNoOccurrences is returned when a timing and schedule allow no day.
var ErrNoOccurrences = errors.New("ics: timing has no occurrences")

var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Recurrence is the RFC 5545 form of a timing plus schedule: a daily rule
// limited to the allowed weekdays, corrected by exception and extra dates.
type Recurrence struct {
	Location *time.Location
	// Start is the first allowed occurrence, used as DTSTART.
	Start    time.Time
	Duration time.Duration
	// Rule is nil when the schedule allows no weekday at all.
	Rule    *rrule.RRule
	ExDates []time.Time
	RDates  []time.Time
}

// NewRecurrence builds the recurrence whose occurrences are exactly the
// occurrences of timing allowed by s. A nil s allows every day.
func NewRecurrence(timing model.Timing, s *model.Schedule) (*Recurrence, error) {
	normal, err := tz.Load(timing.Timezone)
	if err != nil {
		return nil, err
	}
	loc := normal.Location()

	var (
		spans []model.DurationSpan
		days  = schedule.Weekdays(0)
	)
	if s == nil {
		f, ferr := cell.NewExpansionFactory(cell.ExpansionConfig{Timing: timing})
		if ferr != nil {
			return nil, ferr
		}
		spans = f.ExpandBounds()
		for d := time.Sunday; d <= time.Saturday; d++ {
			days = days.With(d)
		}
	} else {
		if days, err = schedule.WeekdaysOf(s.W); err != nil {
			return nil, err
		}
		if spans, err = schedule.ExpandTimingSchedule(timing, *s, schedule.ExpandOptions{}); err != nil {
			return nil, err
		}
	}
	if len(spans) == 0 {
		return nil, ErrNoOccurrences
	}

	rec := &Recurrence{
		Location: loc,
		Start:    spans[0].StartsAt.In(loc),
		Duration: timing.Duration.Duration(),
	}

	var generated []time.Time
	if days.Len() > 0 {
		opt := rrule.ROption{
			Freq:    rrule.DAILY,
			Dtstart: rec.Start,
			Until:   cell.FinalStartsAt(timing).In(loc),
		}
		if days.Len() < 7 {
			for _, d := range days.List() {
				opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
			}
		}
		if rec.Rule, err = rrule.NewRRule(opt); err != nil {
			return nil, err
		}
		generated = rec.Rule.All()
	}

	want := make(map[int64]struct{}, len(spans))
	for _, sp := range spans {
		want[sp.StartsAt.Unix()] = struct{}{}
	}
	got := make(map[int64]struct{}, len(generated))
	for _, g := range generated {
		got[g.Unix()] = struct{}{}
		if _, ok := want[g.Unix()]; !ok {
			rec.ExDates = append(rec.ExDates, g)
		}
	}
	for _, sp := range spans {
		if _, ok := got[sp.StartsAt.Unix()]; !ok {
			rec.RDates = append(rec.RDates, sp.StartsAt.In(loc))
		}
	}
	slices.SortFunc(rec.RDates, time.Time.Compare)
	return rec, nil
}

// Set returns the recurrence as an rrule-go set.
func (r *Recurrence) Set() *rrule.Set {
	set := &rrule.Set{}
	if r.Rule != nil {
		set.RRule(r.Rule)
	}
	for _, ex := range r.ExDates {
		set.ExDate(ex)
	}
	for _, rd := range r.RDates {
		set.RDate(rd)
	}
	return set
}

// RuleSet returns an rrule-go set whose occurrences are the occurrences of
// timing allowed by s.
func RuleSet(timing model.Timing, s *model.Schedule) (*rrule.Set, error) {
	rec, err := NewRecurrence(timing, s)
	if err != nil {
		return nil, err
	}
	return rec.Set(), nil
}
