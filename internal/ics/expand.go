package ics

import (
	"errors"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	"datecell/internal/cell"
	appLog "datecell/internal/log"
	"datecell/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// Location is the timezone occurrences are returned in. If nil, each
	// event's own timezone is kept.
	Location *time.Location

	// RangeStart / RangeEnd define the inclusive time window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap to avoid extremely large
	// expansions. If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// Occurrence is one concrete instance of an event.
type Occurrence struct {
	UID     string    `json:"uid"`
	Summary string    `json:"summary,omitempty"`
	AllDay  bool      `json:"allDay,omitempty"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	// InstanceKey is stable per instance: the start in RFC3339.
	InstanceKey string `json:"instanceKey"`
}

// ExpandResult wraps the expanded occurrences and the UIDs that hit the
// cap.
type ExpandResult struct {
	Occurrences     []Occurrence
	TruncatedEvents []string
}

// Expand turns events into concrete occurrences within the configured
// window, ordered by start. It handles single events, RRULE recurrence,
// EXDATE and RDATE, and RECURRENCE-ID overrides.
func Expand(events []Event, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("ics: expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID, keeping first-seen order.
	var uids []string
	baseByUID := make(map[string][]Event)
	overridesByUID := make(map[string][]Event)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	for _, uid := range uids {
		ov := overridesByUID[uid]
		truncated := false

		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(ev, ov, cfg)
			truncated = truncated || hitCap
			result.Occurrences = append(result.Occurrences, occ...)
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	slices.SortStableFunc(result.Occurrences, func(a, b Occurrence) int {
		return a.Start.Compare(b.Start)
	})
	return result, nil
}

func expandEvent(ev Event, overrides []Event, cfg ExpandConfig) ([]Occurrence, bool) {
	duration := ev.End.Sub(ev.Start)

	var starts []time.Time
	if ev.RawRRule == "" && len(ev.RDates) == 0 {
		if timeRangesOverlap(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
			starts = append(starts, ev.Start)
		}
	} else {
		starts = recurringStarts(ev, cfg)
	}

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]Occurrence, 0, len(starts))
	for _, start := range starts {
		base, end := ev, start.Add(duration)
		if ev.AllDay {
			start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
			end = start.AddDate(0, 0, 1)
		}
		if o, ok := findOverrideForStart(overrides, start); ok {
			base, start, end = o, o.Start, o.End
		}
		out = append(out, makeOccurrence(base, start, end, cfg.Location))
	}
	return out, hitCap
}

// recurringStarts returns the starts of ev within the window. DTSTART is
// always an instance, even when the rule itself would skip it.
func recurringStarts(ev Event, cfg ExpandConfig) []time.Time {
	loc := ev.Start.Location()
	var set rrule.Set

	if ev.RawRRule != "" {
		r, err := rrule.StrToRRule(ev.RawRRule)
		if err != nil {
			appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
			return nil
		}
		r.DTStart(ev.Start)
		set.RRule(r)
	}
	set.RDate(ev.Start)
	for _, rd := range ev.RDates {
		set.RDate(rd.In(loc))
	}
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(loc))
	}

	starts := set.Between(cfg.RangeStart.In(loc), cfg.RangeEnd.In(loc), true)
	slices.SortFunc(starts, time.Time.Compare)
	return slices.CompactFunc(starts, time.Time.Equal)
}

// findOverrideForStart finds an override whose RECURRENCE-ID is the same
// instant as start.
func findOverrideForStart(overrides []Event, start time.Time) (Event, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return Event{}, false
}

func makeOccurrence(ev Event, start, end time.Time, loc *time.Location) Occurrence {
	if loc != nil {
		start, end = start.In(loc), end.In(loc)
	}
	return Occurrence{
		UID:         ev.UID,
		Summary:     ev.Summary,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         end,
		InstanceKey: start.Format(time.RFC3339Nano),
	}
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}

// Index maps occurrences onto the indexes of timing. Occurrences that do
// not start at the timing's time-of-day keep their own start and length.
func Index(occurrences []Occurrence, timing model.Timing) ([]model.DurationSpan, error) {
	f, err := cell.NewIndexFactory(timing)
	if err != nil {
		return nil, err
	}
	out := make([]model.DurationSpan, 0, len(occurrences))
	for _, o := range occurrences {
		out = append(out, model.DurationSpan{
			I:        f.Index(o.Start),
			StartsAt: o.Start,
			Duration: model.Minutes(o.End.Sub(o.Start) / time.Minute),
		})
	}
	slices.SortStableFunc(out, func(a, b model.DurationSpan) int {
		return cell.CompareRanges(a.CellRange(), b.CellRange())
	})
	return out, nil
}
