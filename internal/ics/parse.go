package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "datecell/internal/log"
)

const (
	propertyRDate        = "RDATE"
	propertyRecurrenceID = "RECURRENCE-ID"
)

// Event is the normalized form of a VEVENT. Recurrence expansion operates
// on this type.
type Event struct {
	UID string
	Seq int

	Summary     string
	Description string

	Start    time.Time
	End      time.Time
	AllDay   bool
	Timezone string

	RawRRule   string
	ExDates    []time.Time
	RDates     []time.Time
	Recurrence *time.Time // RECURRENCE-ID, in the event's timezone
	IsOverride bool       // true if this VEVENT overrides one recurring instance
}

// Parse reads every VEVENT of an ICS payload.
//
//   - DTSTART, DTEND, EXDATE, RDATE and RECURRENCE-ID honour their TZID
//     parameter; values without one are read as UTC when they end in Z and
//     as local time otherwise.
//   - All-day events are detected from the DTSTART value format.
//   - RRULE is kept raw; Expand turns it into occurrences.
//
// Events that cannot be read are logged and skipped.
func Parse(body []byte) ([]Event, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, err
	}

	events := make([]Event, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (Event, error) {
	var out Event

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Seq = n
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, err := propertyTimes(dtStart)
	if err != nil || len(start) != 1 {
		return out, errors.New("invalid DTSTART")
	}
	out.Start = start[0]
	out.Timezone = param(dtStart, "TZID")
	out.AllDay = !strings.Contains(dtStart.Value, "T") || strings.EqualFold(param(dtStart, "VALUE"), "DATE")

	switch dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); {
	case dtEnd != nil:
		end, err := propertyTimes(dtEnd)
		if err != nil || len(end) != 1 {
			return out, errors.New("invalid DTEND")
		}
		out.End = end[0]
	case out.AllDay:
		out.End = out.Start.AddDate(0, 0, 1)
	default:
		out.End = out.Start
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		if times, err := propertyTimes(p); err == nil {
			out.ExDates = append(out.ExDates, times...)
		}
	}
	for _, p := range ve.GetProperties(ical.ComponentProperty(propertyRDate)) {
		if times, err := propertyTimes(p); err == nil {
			out.RDates = append(out.RDates, times...)
		}
	}

	if p := ve.GetProperty(ical.ComponentProperty(propertyRecurrenceID)); p != nil {
		if times, err := propertyTimes(p); err == nil && len(times) == 1 {
			out.Recurrence = &times[0]
			out.IsOverride = true
		}
	}

	return out, nil
}

func param(p *ical.IANAProperty, key string) string {
	if p.ICalParameters == nil {
		return ""
	}
	if vs, ok := p.ICalParameters[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// propertyTimes reads the comma-separated date or date-time values of p in
// the location named by its TZID parameter.
func propertyTimes(p *ical.IANAProperty) ([]time.Time, error) {
	loc := time.Local
	if tzid := param(p, "TZID"); tzid != "" {
		l, err := time.LoadLocation(tzid)
		if err != nil {
			return nil, err
		}
		loc = l
	}

	var out []time.Time
	for _, part := range strings.Split(p.Value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, err := parseICSTime(part, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// parseICSTime parses a basic ICS date or date-time in loc. Values ending
// in Z are UTC regardless of loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse(utcLayout, v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation(localLayout, v, loc)
	}
	const layoutDate = "20060102"
	return time.ParseInLocation(layoutDate, v, loc)
}
