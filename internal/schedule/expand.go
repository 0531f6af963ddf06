package schedule

import (
	"datecell/internal/cell"
	"datecell/internal/model"
)

// ExpandOptions tunes ExpandTimingSchedule.
type ExpandOptions struct {
	Limit            cell.RangeLimit
	SpanFilter       func(model.DurationSpan) bool
	MaxCellsToReturn int
	EvaluationLimit  int
}

// NewTimingExpansion returns an ExpansionFactory that yields the
// occurrences of timing allowed by s.
func NewTimingExpansion(timing model.Timing, s model.Schedule, opts ExpandOptions) (*cell.ExpansionFactory, error) {
	filter, err := NewDateFilter(FilterConfigForTiming(timing, s))
	if err != nil {
		return nil, err
	}
	return cell.NewExpansionFactory(cell.ExpansionConfig{
		Timing:           timing,
		Limit:            opts.Limit,
		Filter:           filter.AllowsIndex,
		SpanFilter:       opts.SpanFilter,
		MaxCellsToReturn: opts.MaxCellsToReturn,
		EvaluationLimit:  opts.EvaluationLimit,
	})
}

// ExpandTimingSchedule returns every occurrence of timing allowed by s, in
// index order.
func ExpandTimingSchedule(timing model.Timing, s model.Schedule, opts ExpandOptions) ([]model.DurationSpan, error) {
	f, err := NewTimingExpansion(timing, s, opts)
	if err != nil {
		return nil, err
	}
	return f.ExpandBounds(), nil
}
