package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "datecell/internal/log"
	"datecell/internal/model"
)

const (
	localLayout = "20060102T150405"
	utcLayout   = "20060102T150405Z"

	defaultProductID = "datecell"
)

// Cell is one named timing to export.
type Cell struct {
	ID          string
	Summary     string
	Description string
	Timing      model.Timing
	// Schedule limits the exported days; nil exports every day.
	Schedule *model.Schedule
}

// ExportOptions tunes Export.
type ExportOptions struct {
	// ProductID names the calendar producer. Empty means "datecell".
	ProductID string
	// Namespace seeds the event UIDs, so the same cell id always exports
	// with the same UID.
	Namespace string
	// Now is the DTSTAMP of every event. Zero means time.Now.
	Now time.Time
}

// Export writes cells as a VCALENDAR with one recurring VEVENT per cell.
func Export(cells []Cell, opts ExportOptions) ([]byte, error) {
	if opts.ProductID == "" {
		opts.ProductID = defaultProductID
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	cal := ical.NewCalendarFor(opts.ProductID)
	cal.SetMethod(ical.MethodPublish)

	for _, c := range cells {
		rec, err := NewRecurrence(c.Timing, c.Schedule)
		if err != nil {
			return nil, fmt.Errorf("ics: export cell %q: %w", c.ID, err)
		}

		ev := cal.AddEvent(EventUID(opts.Namespace, c))
		ev.SetDtStampTime(opts.Now)
		if c.Summary != "" {
			ev.SetSummary(c.Summary)
		}
		if c.Description != "" {
			ev.SetDescription(c.Description)
		}

		value, params := formatTime(rec.Start)
		ev.AddProperty(ical.ComponentPropertyDtStart, value, params...)
		value, params = formatTime(rec.Start.Add(rec.Duration))
		ev.AddProperty(ical.ComponentPropertyDtEnd, value, params...)

		if rec.Rule != nil {
			ev.AddProperty(ical.ComponentPropertyRrule, rec.Rule.OrigOptions.RRuleString())
		}
		if len(rec.ExDates) > 0 {
			value, params = formatTimes(rec.ExDates, rec.Location)
			ev.AddProperty(ical.ComponentPropertyExdate, value, params...)
		}
		if len(rec.RDates) > 0 {
			value, params = formatTimes(rec.RDates, rec.Location)
			ev.AddProperty(ical.ComponentProperty(propertyRDate), value, params...)
		}

		appLog.Debug("ics: exported cell", "id", c.ID, "exdates", len(rec.ExDates), "rdates", len(rec.RDates))
	}

	return []byte(cal.Serialize()), nil
}

// EventUID returns the stable UID Export gives c.
func EventUID(namespace string, c Cell) string {
	key := c.ID
	if key == "" {
		key = fmt.Sprintf("%s/%d/%s", c.Timing.StartsAt.UTC().Format(time.RFC3339), c.Timing.Duration, c.Timing.Timezone)
	}
	space := uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace))
	return uuid.NewSHA1(space, []byte(key)).String()
}

func tzidParam(loc *time.Location) []ical.PropertyParameter {
	return []ical.PropertyParameter{&ical.KeyValues{Key: "TZID",Value: []string{loc.String()}}}
}

func formatTime(t time.Time) (string, []ical.PropertyParameter) {
	if t.Location() == time.UTC {
		return t.Format(utcLayout), nil
	}
	return t.Format(localLayout), tzidParam(t.Location())
}

func formatTimes(times []time.Time, loc *time.Location) (string, []ical.PropertyParameter) {
	values := make([]string, len(times))
	if loc == time.UTC {
		for k, t := range times {
			values[k] = t.UTC().Format(utcLayout)
		}
		return strings.Join(values, ","), nil
	}
	for k, t := range times {
		values[k] = t.In(loc).Format(localLayout)
	}
	return strings.Join(values, ","), tzidParam(loc)
}
