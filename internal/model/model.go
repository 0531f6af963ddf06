package model

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Index is a zero-based day offset from a timing's first day.
type Index int

// Minutes is a duration expressed in whole minutes.
type Minutes int

// MinutesInDay is the longest duration a single cell may have.
const MinutesInDay Minutes = 24 * 60

// Duration converts m to a time.Duration.
func (m Minutes) Duration() time.Duration {
	return time.Duration(m) * time.Minute
}

// IndexPtr returns a pointer to i. Used for optional index bounds.
func IndexPtr(i Index) *Index {
	return &i
}

// Ranged is implemented by every value that covers a closed range of indexes.
type Ranged interface {
	CellRange() Range
}

// Range is the closed interval [I, To] over indexes.
//
// A single-index range has To == I; use Single to build one. When decoded
// from YAML an absent "to" defaults to "i".
type Range struct {
	I  Index `yaml:"i" json:"i"`
	To Index `yaml:"to" json:"to"`
}

// Single returns the range that covers only i.
func Single(i Index) Range {
	return Range{I: i, To: i}
}

// CellRange implements Ranged.
func (r Range) CellRange() Range { return r }

// Len returns the number of indexes covered by r, or 0 for an inverted range.
func (r Range) Len() int {
	if r.To < r.I {
		return 0
	}
	return int(r.To-r.I) + 1
}

// Contains reports whether index i lies within r.
func (r Range) Contains(i Index) bool {
	return i >= r.I && i <= r.To
}

func (r Range) String() string {
	if r.I == r.To {
		return fmt.Sprintf("[%d]", r.I)
	}
	return fmt.Sprintf("[%d-%d]", r.I, r.To)
}

// UnmarshalYAML accepts either a bare index or a mapping with "i" and an
// optional "to".
func (r *Range) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var i Index
		if err := node.Decode(&i); err != nil {
			return err
		}
		*r = Single(i)
		return nil
	}

	var raw struct {
		I  Index  `yaml:"i"`
		To *Index `yaml:"to"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	r.I = raw.I
	r.To = raw.I
	if raw.To != nil {
		r.To = *raw.To
	}
	return nil
}

// UniqueRange is a Range carrying an optional identity, used by the merge
// engine to track where each output block came from.
type UniqueRange struct {
	Range `yaml:",inline"`
	ID    string `yaml:"id,omitempty" json:"id,omitempty"`
}

// UnmarshalYAML decodes the inline range and the id; it shadows the promoted
// Range decoder, which would drop the id.
func (u *UniqueRange) UnmarshalYAML(node *yaml.Node) error {
	if err := u.Range.UnmarshalYAML(node); err != nil {
		return err
	}
	if node.Kind != yaml.MappingNode {
		u.ID = ""
		return nil
	}
	var raw struct {
		ID string `yaml:"id"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	u.ID = raw.ID
	return nil
}

// DateDurationSpan is an event start plus its length.
type DateDurationSpan struct {
	StartsAt time.Time `yaml:"starts_at" json:"startsAt"`
	Duration Minutes   `yaml:"duration" json:"duration"`
}

// End returns the instant the span finishes.
func (s DateDurationSpan) End() time.Time {
	return s.StartsAt.Add(s.Duration.Duration())
}

// Timing anchors a recurrence to a timezone.
//
// StartsAt is the first occurrence, End is the instant the last occurrence
// finishes and Duration is the length of each occurrence.
type Timing struct {
	StartsAt time.Time `yaml:"starts_at" json:"startsAt"`
	Duration Minutes   `yaml:"duration" json:"duration"`
	End      time.Time `yaml:"end" json:"end"`
	Timezone string    `yaml:"timezone" json:"timezone"`
}

// FullTiming is a Timing plus the timezone-local midnight of index 0.
type FullTiming struct {
	Timing `yaml:",inline"`
	Start  time.Time `yaml:"start" json:"start"`
}

// DurationSpan is a concrete occurrence: an index, the absolute instant it
// starts and its duration.
type DurationSpan struct {
	I        Index     `json:"i"`
	StartsAt time.Time `json:"startsAt"`
	Duration Minutes   `json:"duration"`
}

// End returns the instant the occurrence finishes.
func (s DurationSpan) End() time.Time {
	return s.StartsAt.Add(s.Duration.Duration())
}

// CellRange implements Ranged.
func (s DurationSpan) CellRange() Range { return Single(s.I) }

// Schedule restricts a timing to some days of the week plus explicit
// overrides.
//
// W is an encoded week: digits 1-7 are Sunday-Saturday, 8 is every weekday
// and 9 is every weekend day. D force-includes indexes and Ex force-excludes
// them; an index in both is included.
type Schedule struct {
	W  string  `yaml:"w" json:"w"`
	D  []Index `yaml:"d,omitempty" json:"d,omitempty"`
	Ex []Index `yaml:"ex,omitempty" json:"ex,omitempty"`
}
