// Package schedule compiles a weekly day-of-week encoding plus explicit
// include and exclude index lists into a per-index predicate.
package schedule

import (
	"errors"
	"fmt"
	"math/bits"
	"slices"
	"strings"
	"time"

	"datecell/internal/model"
)

// ErrInvalidWeek is returned when an encoded week contains a non-digit.
var ErrInvalidWeek = errors.New("schedule: invalid encoded week")

// DayCode is one digit of an encoded week.
type DayCode int

const (
	DayCodeNone DayCode = iota
	DayCodeSunday
	DayCodeMonday
	DayCodeTuesday
	DayCodeWednesday
	DayCodeThursday
	DayCodeFriday
	DayCodeSaturday
	// DayCodeWeekday stands for Monday through Friday.
	DayCodeWeekday
	// DayCodeWeekend stands for Saturday and Sunday.
	DayCodeWeekend
)

// DayCodeForWeekday returns the code of a single weekday.
func DayCodeForWeekday(d time.Weekday) DayCode {
	return DayCode(d) + DayCodeSunday
}

// Weekdays is a set of weekdays, one bit per time.Weekday.
type Weekdays uint8

const (
	weekdayBits Weekdays = 1<<time.Monday | 1<<time.Tuesday | 1<<time.Wednesday | 1<<time.Thursday | 1<<time.Friday
	weekendBits Weekdays = 1<<time.Saturday | 1<<time.Sunday
)

// Has reports whether d is in the set.
func (w Weekdays) Has(d time.Weekday) bool { return w&(1<<d) != 0 }

// With returns the set plus d.
func (w Weekdays) With(d time.Weekday) Weekdays { return w | 1<<d }

// Len returns the number of days in the set.
func (w Weekdays) Len() int { return bits.OnesCount8(uint8(w)) }

// List returns the days in the set from Sunday to Saturday.
func (w Weekdays) List() []time.Weekday {
	out := make([]time.Weekday, 0, w.Len())
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// ParseWeek reads an encoded week into day codes, keeping their order and
// duplicates. The empty string and "0" hold no codes.
func ParseWeek(w string) ([]DayCode, error) {
	codes := make([]DayCode, 0, len(w))
	for _, c := range w {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("%w: %q", ErrInvalidWeek, w)
		}
		if c != '0' {
			codes = append(codes, DayCode(c-'0'))
		}
	}
	return codes, nil
}

// ExpandDayCodes resolves day codes, including the weekday and weekend
// tokens, into a set of weekdays.
func ExpandDayCodes(codes []DayCode) Weekdays {
	var set Weekdays
	for _, c := range codes {
		switch {
		case c == DayCodeWeekday:
			set |= weekdayBits
		case c == DayCodeWeekend:
			set |= weekendBits
		case c >= DayCodeSunday && c <= DayCodeSaturday:
			set = set.With(time.Weekday(c - DayCodeSunday))
		}
	}
	return set
}

// WeekdaysOf parses and expands an encoded week.
func WeekdaysOf(w string) (Weekdays, error) {
	codes, err := ParseWeek(w)
	if err != nil {
		return 0, err
	}
	return ExpandDayCodes(codes), nil
}

// SimplifyDayCodes returns the shortest ascending codes for the same set of
// weekdays, using the weekday and weekend tokens where the set is full.
func SimplifyDayCodes(codes []DayCode) []DayCode {
	set := ExpandDayCodes(codes)
	out := make([]DayCode, 0, 2)

	if set&weekdayBits == weekdayBits {
		set &^= weekdayBits
		out = append(out, DayCodeWeekday)
	}
	if set&weekendBits == weekendBits {
		set &^= weekendBits
		out = append(out, DayCodeWeekend)
	}
	for _, d := range set.List() {
		out = append(out, DayCodeForWeekday(d))
	}
	slices.Sort(out)
	return out
}

// EncodeWeek joins day codes into an encoded week, ascending and without
// duplicates. No codes encode as the empty string.
func EncodeWeek(codes []DayCode) string {
	sorted := slices.Clone(codes)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var b strings.Builder
	for _, c := range sorted {
		if c > DayCodeNone && c <= DayCodeWeekend {
			b.WriteByte(byte('0' + c))
		}
	}
	return b.String()
}

// EnabledDays is a flag per weekday, for forms and config.
type EnabledDays struct {
	Sunday    bool `yaml:"sunday" json:"sunday"`
	Monday    bool `yaml:"monday" json:"monday"`
	Tuesday   bool `yaml:"tuesday" json:"tuesday"`
	Wednesday bool `yaml:"wednesday" json:"wednesday"`
	Thursday  bool `yaml:"thursday" json:"thursday"`
	Friday    bool `yaml:"friday" json:"friday"`
	Saturday  bool `yaml:"saturday" json:"saturday"`
}

func (e *EnabledDays) flags() [7]*bool {
	return [7]*bool{&e.Sunday, &e.Monday, &e.Tuesday, &e.Wednesday, &e.Thursday, &e.Friday, &e.Saturday}
}

// EnabledDaysFromCodes sets the flag of every day the codes cover.
func EnabledDaysFromCodes(codes []DayCode) EnabledDays {
	set := ExpandDayCodes(codes)
	var e EnabledDays
	for d, flag := range e.flags() {
		*flag = set.Has(time.Weekday(d))
	}
	return e
}

// DayCodes returns one code per enabled day, Sunday first.
func (e EnabledDays) DayCodes() []DayCode {
	var out []DayCode
	for d, on := range e.flags() {
		if *on {
			out = append(out, DayCodeForWeekday(time.Weekday(d)))
		}
	}
	return out
}

// IsSameSchedule reports whether a and b allow the same weekdays and hold
// the same include and exclude indexes, ignoring order and duplicates.
func IsSameSchedule(a, b model.Schedule) bool {
	wa, errA := WeekdaysOf(a.W)
	wb, errB := WeekdaysOf(b.W)
	if errA != nil || errB != nil {
		return a.W == b.W && sameIndexes(a.D, b.D) && sameIndexes(a.Ex, b.Ex)
	}
	return wa == wb && sameIndexes(a.D, b.D) && sameIndexes(a.Ex, b.Ex)
}

func sameIndexes(a, b []model.Index) bool {
	return slices.Equal(sortedSet(a), sortedSet(b))
}

func sortedSet(in []model.Index) []model.Index {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
