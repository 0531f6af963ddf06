package cell

import (
	"cmp"
	"slices"

	"datecell/internal/model"
)

// NewRange returns the range [i, to]. A to below i yields the single index i.
func NewRange(i, to model.Index) model.Range {
	if to < i {
		to = i
	}
	return model.Range{I: i, To: to}
}

// RangeOfIndexes returns the smallest range that contains every index, and
// false when indexes is empty.
func RangeOfIndexes(indexes []model.Index) (model.Range, bool) {
	if len(indexes) == 0 {
		return model.Range{}, false
	}
	return model.Range{I: slices.Min(indexes), To: slices.Max(indexes)}, true
}

// CompareRanges orders ranges by I, then by To.
func CompareRanges(a, b model.Range) int {
	if c := cmp.Compare(a.I, b.I); c != 0 {
		return c
	}
	return cmp.Compare(a.To, b.To)
}

// SortRanges sorts ranges in place by I then To, keeping the input order of
// equal ranges.
func SortRanges[T model.Ranged](ranges []T) {
	slices.SortStableFunc(ranges, func(a, b T) int {
		return CompareRanges(a.CellRange(), b.CellRange())
	})
}

// GroupRanges merges contiguous and overlapping ranges into the minimal set
// of disjoint groups, in ascending order. The input is not modified.
func GroupRanges[T model.Ranged](ranges []T) []model.Range {
	if len(ranges) == 0 {
		return nil
	}

	sorted := make([]model.Range, len(ranges))
	for i, r := range ranges {
		sorted[i] = r.CellRange()
	}
	SortRanges(sorted)

	groups := make([]model.Range, 0, len(sorted))
	current := sorted[0]
	for _, r := range sorted[1:] {
		if r.I <= current.To+1 {
			current.To = max(current.To, r.To)
			continue
		}
		groups = append(groups, current)
		current = r
	}
	return append(groups, current)
}

// RangesOverlap reports whether a and b share at least one index.
func RangesOverlap(a, b model.Range) bool {
	return a.I <= b.To && b.I <= a.To
}

// RangeIncludesRange reports whether a contains every index of b.
func RangeIncludesRange(a, b model.Range) bool {
	return a.I <= b.I && a.To >= b.To
}

// RangesHaveRange reports whether target is fully covered by a single group
// of ranges. Coverage is never stitched across a gap.
func RangesHaveRange[T model.Ranged](ranges []T, target model.Range) bool {
	for _, g := range GroupRanges(ranges) {
		if RangeIncludesRange(g, target) {
			return true
		}
	}
	return false
}

// RangesIncludeIndex reports whether any range contains i.
func RangesIncludeIndex[T model.Ranged](ranges []T, i model.Index) bool {
	for _, r := range ranges {
		if r.CellRange().Contains(i) {
			return true
		}
	}
	return false
}

// IndexesInRanges returns every index covered by ranges, ascending and
// without duplicates.
func IndexesInRanges[T model.Ranged](ranges []T) []model.Index {
	groups := GroupRanges(ranges)
	out := make([]model.Index, 0, CountUniqueIndexes(groups))
	for _, g := range groups {
		for i := g.I; i <= g.To; i++ {
			out = append(out, i)
		}
	}
	return out
}

// CountUniqueIndexes returns the number of distinct indexes covered by
// ranges. Overlapping ranges are counted once.
func CountUniqueIndexes[T model.Ranged](ranges []T) int {
	total := 0
	for _, g := range GroupRanges(ranges) {
		total += g.Len()
	}
	return total
}

// BlockCountInfo summarizes the indexes covered by a set of ranges.
type BlockCountInfo struct {
	// Count is the sum of each range's length; overlaps count twice.
	Count int
	// Unique is the number of distinct indexes covered.
	Unique int
	// Average is the mean of the distinct indexes, 0 when there are none.
	Average float64
}

// RangeBlockCountInfo computes BlockCountInfo for ranges.
func RangeBlockCountInfo[T model.Ranged](ranges []T) BlockCountInfo {
	var info BlockCountInfo
	for _, r := range ranges {
		info.Count += r.CellRange().Len()
	}

	var sum float64
	for _, g := range GroupRanges(ranges) {
		n := g.Len()
		info.Unique += n
		sum += float64(g.I+g.To) * float64(n) / 2
	}
	if info.Unique > 0 {
		info.Average = sum / float64(info.Unique)
	}
	return info
}

// LeastAndGreatest returns the smallest I and the largest To among ranges,
// and false when ranges is empty.
func LeastAndGreatest[T model.Ranged](ranges []T) (model.Range, bool) {
	if len(ranges) == 0 {
		return model.Range{}, false
	}
	out := ranges[0].CellRange()
	for _, x := range ranges[1:] {
		r := x.CellRange()
		out.I = min(out.I, r.I)
		out.To = max(out.To, r.To)
	}
	return out, true
}

// FitRangeToRange clips r to bounds. It returns false when they do not
// overlap.
func FitRangeToRange(bounds, r model.Range) (model.Range, bool) {
	if !RangesOverlap(bounds, r) {
		return model.Range{}, false
	}
	return model.Range{I: max(bounds.I, r.I), To: min(bounds.To, r.To)}, true
}

// FitRangesToRange clips each range to bounds, dropping ranges outside it.
func FitRangesToRange(bounds model.Range, ranges []model.Range) []model.Range {
	out := make([]model.Range, 0, len(ranges))
	for _, r := range ranges {
		if fitted, ok := FitRangeToRange(bounds, r); ok {
			out = append(out, fitted)
		}
	}
	return out
}

// RangeValidity describes which checks a range passes.
type RangeValidity struct {
	IsValid        bool
	IsIndexValid   bool
	IsToValid      bool
	IsToNotBeforeI bool
}

// IsValidRange checks that both ends are non-negative and To >= I.
func IsValidRange(r model.Range) RangeValidity {
	v := RangeValidity{
		IsIndexValid:   r.I >= 0,
		IsToValid:      r.To >= 0,
		IsToNotBeforeI: r.To >= r.I,
	}
	v.IsValid = v.IsIndexValid && v.IsToValid && v.IsToNotBeforeI
	return v
}

// RangeSeriesValidity describes which checks a series of ranges passes.
type RangeSeriesValidity struct {
	IsValid        bool
	AllRangesValid bool
	IsSorted       bool
	HasNoOverlap   bool
	// FirstInvalid is the position of the first range that breaks a check,
	// or -1.
	FirstInvalid int
}

// IsValidRangeSeries checks that every range is valid and that the ranges
// are ascending without sharing any index.
func IsValidRangeSeries(ranges []model.Range) RangeSeriesValidity {
	v := RangeSeriesValidity{
		AllRangesValid: true,
		IsSorted:       true,
		HasNoOverlap:   true,
		FirstInvalid:   -1,
	}
	fail := func(pos int) {
		if v.FirstInvalid == -1 {
			v.FirstInvalid = pos
		}
	}

	for pos, r := range ranges {
		if !IsValidRange(r).IsValid {
			v.AllRangesValid = false
			fail(pos)
		}
		if pos == 0 {
			continue
		}
		prev := ranges[pos-1]
		if r.I < prev.I {
			v.IsSorted = false
			fail(pos)
		}
		if RangesOverlap(prev, r) {
			v.HasNoOverlap = false
			fail(pos)
		}
	}

	v.IsValid = v.AllRangesValid && v.IsSorted && v.HasNoOverlap
	return v
}
