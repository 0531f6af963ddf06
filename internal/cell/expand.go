package cell

import (
	"math"

	appLog "datecell/internal/log"
	"datecell/internal/model"
)

// RangeLimit restricts the indexes an expansion or day-progress
// computation considers. A nil RangeLimit means the timing's own range.
// It is one of NoLimit, IndexLimit, DateRangeLimit or DayDistanceLimit.
type RangeLimit interface {
	rangeLimit()
}

// NoLimit disables range limiting entirely.
type NoLimit struct{}

// IndexLimit limits to an explicit range of indexes.
type IndexLimit model.Range

// DateRangeLimit limits to the days touched by [Start, End].
type DateRangeLimit DateRange

// DayDistanceLimit limits to Distance days beginning on the day of Date.
type DayDistanceLimit DayDistance

func (NoLimit) rangeLimit()          {}
func (IndexLimit) rangeLimit()       {}
func (DateRangeLimit) rangeLimit()   {}
func (DayDistanceLimit) rangeLimit() {}

// IndexBounds is a range of indexes with an exclusive MaxIndex.
type IndexBounds struct {
	MinIndex model.Index `json:"minIndex"`
	MaxIndex model.Index `json:"maxIndex"`
}

// Unbounded covers every index.
var Unbounded = IndexBounds{MinIndex: math.MinInt, MaxIndex: math.MaxInt}

// Contains reports whether MinIndex <= i < MaxIndex.
func (b IndexBounds) Contains(i model.Index) bool {
	return i >= b.MinIndex && i < b.MaxIndex
}

// IndexRange returns the indexes of timing allowed by limit. When fit is
// true the result never leaves the timing's own range.
func IndexRange(timing model.Timing, limit RangeLimit, fit bool) (IndexBounds, error) {
	f, err := NewIndexFactory(timing)
	if err != nil {
		return IndexBounds{}, err
	}

	own := IndexBounds{MinIndex: 0, MaxIndex: f.Index(FinalStartsAt(timing)) + 1}

	var limited IndexBounds
	switch l := limit.(type) {
	case nil:
		return own, nil
	case NoLimit:
		return Unbounded, nil
	case IndexLimit:
		limited = IndexBounds{MinIndex: l.I, MaxIndex: l.To + 1}
	case DateRangeLimit:
		limited = IndexBounds{MinIndex: f.Index(l.Start), MaxIndex: f.Index(l.End) + 1}
	case DayDistanceLimit:
		first := f.Index(l.Date)
		limited = IndexBounds{MinIndex: first, MaxIndex: first + model.Index(max(l.Distance, 0))}
	}

	if fit {
		limited.MinIndex = max(limited.MinIndex, own.MinIndex)
		limited.MaxIndex = min(limited.MaxIndex, own.MaxIndex)
	}
	return limited, nil
}

// ExpansionConfig configures an ExpansionFactory.
type ExpansionConfig struct {
	Timing model.Timing
	// Limit restricts the indexes that are kept; nil means the timing's
	// own range.
	Limit RangeLimit
	// DontFitToTiming allows Limit to reach outside the timing's range.
	DontFitToTiming bool
	// Filter drops indexes before their occurrence is computed.
	Filter func(i model.Index) bool
	// SpanFilter drops computed occurrences.
	SpanFilter func(span model.DurationSpan) bool
	// MaxCellsToReturn stops the expansion once this many occurrences are
	// collected. Zero means no cap.
	MaxCellsToReturn int
	// EvaluationLimit stops the expansion once this many indexes have been
	// evaluated. Zero means no cap.
	EvaluationLimit int
}

// ExpansionFactory turns indexes and ranges into concrete occurrences. It
// is immutable and safe for concurrent use.
type ExpansionFactory struct {
	cfg      ExpansionConfig
	bounds   IndexBounds
	startsAt DateFactory
}

// NewExpansionFactory validates cfg and precomputes the effective bounds.
func NewExpansionFactory(cfg ExpansionConfig) (*ExpansionFactory, error) {
	bounds, err := IndexRange(cfg.Timing, cfg.Limit, !cfg.DontFitToTiming)
	if err != nil {
		return nil, err
	}
	startsAt, err := NewStartsAtDateFactory(cfg.Timing)
	if err != nil {
		return nil, err
	}
	return &ExpansionFactory{cfg: cfg, bounds: bounds, startsAt: startsAt}, nil
}

// Bounds returns the effective index bounds.
func (f *ExpansionFactory) Bounds() IndexBounds { return f.bounds }

// Expand explodes every block into one item per index, in input order, and
// returns the occurrences that pass the bounds and filters.
func (f *ExpansionFactory) Expand(blocks []model.Range) []model.DurationSpan {
	var (
		out       []model.DurationSpan
		evaluated int
	)

	for _, b := range blocks {
		for i := b.I; i <= b.To; i++ {
			if f.cfg.EvaluationLimit > 0 && evaluated >= f.cfg.EvaluationLimit {
				appLog.Debug("expand: evaluation limit reached", "limit", f.cfg.EvaluationLimit, "returned", len(out))
				return out
			}
			evaluated++

			span, ok := f.evaluate(i)
			if !ok {
				continue
			}
			out = append(out, span)

			if f.cfg.MaxCellsToReturn > 0 && len(out) >= f.cfg.MaxCellsToReturn {
				appLog.Debug("expand: max cells reached", "max", f.cfg.MaxCellsToReturn, "evaluated", evaluated)
				return out
			}
		}
	}
	return out
}

// ExpandBounds expands every index of the effective bounds in order. It
// returns nothing when the bounds are unbounded and no cap is set.
func (f *ExpansionFactory) ExpandBounds() []model.DurationSpan {
	if f.bounds == Unbounded && f.cfg.MaxCellsToReturn == 0 && f.cfg.EvaluationLimit == 0 {
		return nil
	}
	return f.ExpandIndexes(max(f.bounds.MinIndex, 0), f.bounds.MaxIndex)
}

// ExpandIndexes expands the contiguous indexes [minIndex, maxIndex).
func (f *ExpansionFactory) ExpandIndexes(minIndex, maxIndex model.Index) []model.DurationSpan {
	if maxIndex <= minIndex {
		return nil
	}
	return f.Expand([]model.Range{{I: minIndex, To: maxIndex - 1}})
}

func (f *ExpansionFactory) evaluate(i model.Index) (model.DurationSpan, bool) {
	if !f.bounds.Contains(i) {
		return model.DurationSpan{}, false
	}
	if f.cfg.Filter != nil && !f.cfg.Filter(i) {
		return model.DurationSpan{}, false
	}
	span := model.DurationSpan{
		I:        i,
		StartsAt: f.startsAt.Date(i),
		Duration: f.cfg.Timing.Duration,
	}
	if f.cfg.SpanFilter != nil && !f.cfg.SpanFilter(span) {
		return model.DurationSpan{}, false
	}
	return span, true
}
